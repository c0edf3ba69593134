package retry

import (
	"slices"
	"sync"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// History keeps the recent failure statuses and observed recovery times per
// target. Written by many workers, so every access takes the mutex.
type History struct {
	mx    sync.Mutex
	limit int
	facts map[string]*targetHistory
}

type targetHistory struct {
	failures   []model.Status
	recoveries []time.Duration
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 10
	}
	return &History{
		limit: limit,
		facts: make(map[string]*targetHistory),
	}
}

// RecordFailure appends a failed status for the target, keeping the last
// `limit` entries.
func (h *History) RecordFailure(key string, status model.Status) {
	h.mx.Lock()
	defer h.mx.Unlock()
	th := h.target(key)
	th.failures = append(th.failures, status)
	if len(th.failures) > h.limit {
		th.failures = th.failures[len(th.failures)-h.limit:]
	}
}

// RecordRecovery notes the time from first attempt to eventual success.
func (h *History) RecordRecovery(key string, d time.Duration) {
	h.mx.Lock()
	defer h.mx.Unlock()
	th := h.target(key)
	th.recoveries = append(th.recoveries, d)
	if len(th.recoveries) > h.limit {
		th.recoveries = th.recoveries[len(th.recoveries)-h.limit:]
	}
}

// Snapshot returns a copy of recent failures and the average recovery time.
func (h *History) Snapshot(key string) ([]model.Status, time.Duration) {
	h.mx.Lock()
	defer h.mx.Unlock()
	th, ok := h.facts[key]
	if !ok {
		return nil, 0
	}
	var avg time.Duration
	if len(th.recoveries) > 0 {
		var sum time.Duration
		for _, d := range th.recoveries {
			sum += d
		}
		avg = sum / time.Duration(len(th.recoveries))
	}
	return slices.Clone(th.failures), avg
}

func (h *History) target(key string) *targetHistory {
	th, ok := h.facts[key]
	if !ok {
		th = &targetHistory{}
		h.facts[key] = th
	}
	return th
}
