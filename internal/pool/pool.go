// Package pool manages a bounded set of reusable outbound connection
// handles. A handle lives in exactly one of two disjoint sets: available
// (owned by the pool) or in-use (owned by the borrower).
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Config tunes pool behavior. Zero values fall back to defaults.
type Config struct {
	// Size is the number of warm handles kept available.
	Size int
	// MaxConnections is the hard ceiling on simultaneously in-use handles.
	MaxConnections int
	// MaxIdle expires available handles idle longer than this.
	MaxIdle time.Duration
	// MaxAge marks handles older than this unhealthy on HealthCheck.
	MaxAge time.Duration
	// WaitCeiling bounds how long Acquire blocks when the ceiling is hit.
	WaitCeiling time.Duration
	// PollInterval is the re-check period while Acquire waits.
	PollInterval time.Duration
	// ConnConfig is copied into every created handle.
	ConnConfig map[string]any
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 5
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 5 * time.Minute
	}
	if c.MaxAge <= 0 {
		c.MaxAge = time.Hour
	}
	if c.WaitCeiling <= 0 {
		c.WaitCeiling = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	return c
}

// Handle is a reusable outbound connection handle. The borrower owns it
// exclusively between Acquire and Release.
type Handle struct {
	ID         string
	CreatedAt  time.Time
	LastUsed   time.Time
	UsageCount int
	Healthy    bool
	ConnConfig map[string]any
}

// Stats is a point-in-time snapshot of pool accounting.
type Stats struct {
	Available int
	InUse     int
	Total     int
	Created   int
	Reused    int
	Destroyed int
	Exhausted int
}

type Pool struct {
	mx        sync.Mutex
	cfg       Config
	available []*Handle
	inUse     map[string]*Handle
	closed    bool

	created   int
	reused    int
	destroyed int
	exhausted int
}

// New creates a pool with cfg.Size warm handles.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:   cfg,
		inUse: make(map[string]*Handle, cfg.MaxConnections),
	}
	for range cfg.Size {
		p.available = append(p.available, p.newHandle())
	}
	return p
}

func (p *Pool) newHandle() *Handle {
	now := time.Now().UTC()
	p.created++
	return &Handle{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastUsed:   now,
		UsageCount: 0,
		Healthy:    true,
		ConnConfig: maps.Clone(p.cfg.ConnConfig),
	}
}

// Acquire hands out a healthy available handle, creating one while under
// the MaxConnections ceiling. At the ceiling it blocks, re-checking every
// PollInterval, and fails with ErrResourceExhausted once WaitCeiling passes.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	deadline := time.Now().Add(p.cfg.WaitCeiling)
	for {
		h, ok, err := p.tryAcquire()
		if err != nil {
			return nil, err
		}
		if ok {
			return h, nil
		}

		if time.Now().After(deadline) {
			p.mx.Lock()
			p.exhausted++
			p.mx.Unlock()
			return nil, fmt.Errorf("waited %s for a handle: %w",
				p.cfg.WaitCeiling, model.ErrResourceExhausted)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

func (p *Pool) tryAcquire() (*Handle, bool, error) {
	p.mx.Lock()
	defer p.mx.Unlock()

	if p.closed {
		return nil, false, model.ErrPoolClosed
	}

	now := time.Now().UTC()
	// scan for a healthy, non-expired available handle; drop the rest
	for len(p.available) > 0 {
		h := p.available[0]
		p.available = p.available[1:]
		if !h.Healthy || now.Sub(h.LastUsed) > p.cfg.MaxIdle {
			p.destroyed++
			continue
		}
		h.UsageCount++
		h.LastUsed = now
		p.inUse[h.ID] = h
		p.reused++
		return h, true, nil
	}

	if len(p.inUse) < p.cfg.MaxConnections {
		h := p.newHandle()
		h.UsageCount = 1
		p.inUse[h.ID] = h
		return h, true, nil
	}

	return nil, false, nil
}

// Release returns a handle to the pool. Healthy, non-expired handles go
// back to the available set while there is spare capacity; everything else
// is destroyed. Releasing an untracked handle is a no-op with a warning,
// so a double release cannot corrupt accounting.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mx.Lock()
	defer p.mx.Unlock()

	if _, ok := p.inUse[h.ID]; !ok {
		slog.Warn("releasing a handle not tracked as in-use", "handle_id", h.ID)
		return
	}
	delete(p.inUse, h.ID)

	now := time.Now().UTC()
	expired := now.Sub(h.CreatedAt) > p.cfg.MaxAge
	if p.closed || !h.Healthy || expired || len(p.available) >= p.cfg.Size {
		p.destroyed++
		return
	}
	h.LastUsed = now
	p.available = append(p.available, h)
}

// HealthCheck marks handles older than MaxAge unhealthy and returns how
// many were marked. Unhealthy handles are skipped by Acquire and removed
// by Cleanup.
func (p *Pool) HealthCheck() int {
	p.mx.Lock()
	defer p.mx.Unlock()

	now := time.Now().UTC()
	var marked int
	for _, h := range p.available {
		if h.Healthy && now.Sub(h.CreatedAt) > p.cfg.MaxAge {
			h.Healthy = false
			marked++
		}
	}
	for _, h := range p.inUse {
		if h.Healthy && now.Sub(h.CreatedAt) > p.cfg.MaxAge {
			h.Healthy = false
			marked++
		}
	}
	return marked
}

// Cleanup destroys unhealthy and idle-expired available handles.
// In-use handles are never revoked.
func (p *Pool) Cleanup() int {
	p.mx.Lock()
	defer p.mx.Unlock()

	now := time.Now().UTC()
	kept := p.available[:0]
	var removed int
	for _, h := range p.available {
		if !h.Healthy || now.Sub(h.LastUsed) > p.cfg.MaxIdle {
			removed++
			p.destroyed++
			continue
		}
		kept = append(kept, h)
	}
	p.available = kept
	return removed
}

// Resize grows the pool by creating idle handles or shrinks it by
// destroying idle ones down to n total. Handles in use are left alone.
func (p *Pool) Resize(n int) {
	if n < 0 {
		n = 0
	}
	p.mx.Lock()
	defer p.mx.Unlock()

	p.cfg.Size = n
	for len(p.available)+len(p.inUse) < n {
		p.available = append(p.available, p.newHandle())
	}
	for len(p.available)+len(p.inUse) > n && len(p.available) > 0 {
		p.available = p.available[:len(p.available)-1]
		p.destroyed++
	}
}

// Close destroys idle handles and fails further Acquire calls.
// In-use handles are destroyed on their Release.
func (p *Pool) Close() {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.destroyed += len(p.available)
	p.available = nil
}

func (p *Pool) Stats() Stats {
	p.mx.Lock()
	defer p.mx.Unlock()
	return Stats{
		Available: len(p.available),
		InUse:     len(p.inUse),
		Total:     len(p.available) + len(p.inUse),
		Created:   p.created,
		Reused:    p.reused,
		Destroyed: p.destroyed,
		Exhausted: p.exhausted,
	}
}
