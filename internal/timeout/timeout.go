// Package timeout enforces a per-job time budget around probe execution.
// Two interchangeable strategies exist behind the same contract: a context
// strategy that cooperatively cancels the in-flight call, and a polling
// strategy that can only observe an overrun after the call returns.
package timeout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/probe"
)

// Strategy runs p against target with the given limit and reports the
// outcome. Implementations must return a synthetic Timeout result, never an
// error, when the limit is exceeded.
type Strategy interface {
	Execute(ctx context.Context, p probe.Probe, target string, probeCtx map[string]any, limit time.Duration) (model.Result, error)
}

// Config tunes the controller. Zero values fall back to defaults.
type Config struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
	// HistoryLimit caps remembered execution times per probe/target key.
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.Default <= 0 {
		c.Default = 30 * time.Second
	}
	if c.Min <= 0 {
		c.Min = time.Second
	}
	if c.Max <= 0 {
		c.Max = 5 * time.Minute
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	return c
}

// Controller validates timeouts into [Min, Max], delegates to the strategy
// and records execution times for the adaptive variant.
type Controller struct {
	cfg      Config
	strategy Strategy

	mx      sync.Mutex
	history map[string][]time.Duration
}

func NewController(cfg Config, strategy Strategy) *Controller {
	if strategy == nil {
		strategy = ContextStrategy{}
	}
	return &Controller{
		cfg:      cfg.withDefaults(),
		strategy: strategy,
		history:  make(map[string][]time.Duration),
	}
}

// Clamp validates a requested timeout into the configured bounds.
// A non-positive request means "use the default".
func (c *Controller) Clamp(d time.Duration) time.Duration {
	if d <= 0 {
		d = c.cfg.Default
	}
	if d < c.cfg.Min {
		return c.cfg.Min
	}
	if d > c.cfg.Max {
		return c.cfg.Max
	}
	return d
}

// Execute runs the probe under the clamped limit and records the observed
// execution time under the probeName/target key for adaptive tuning.
func (c *Controller) Execute(ctx context.Context, probeName string, p probe.Probe, target string, probeCtx map[string]any, limit time.Duration) (model.Result, error) {
	limit = c.Clamp(limit)
	res, err := c.strategy.Execute(ctx, p, target, probeCtx, limit)
	if err == nil {
		if res.ProbeName == "" {
			res.ProbeName = probeName
		}
		c.record(key(probeName, target), res.ExecutionTime)
	}
	return res, err
}

// Adaptive computes a timeout of 1.5x the average historical execution time
// for the probe/target pair, clamped to bounds. Without history it falls
// back to the default.
func (c *Controller) Adaptive(probeName, target string) time.Duration {
	c.mx.Lock()
	samples := c.history[key(probeName, target)]
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	n := len(samples)
	c.mx.Unlock()

	if n == 0 {
		return c.cfg.Default
	}
	avg := sum / time.Duration(n)
	return c.Clamp(avg + avg/2)
}

// ExecuteEscalating retries with the limit multiplied by the attempt number
// (1x, 2x, 3x, ...) up to maxAttempts, returning the first non-timeout
// result or the final timeout.
func (c *Controller) ExecuteEscalating(ctx context.Context, probeName string, p probe.Probe, target string, probeCtx map[string]any, base time.Duration, maxAttempts int) (model.Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	base = c.Clamp(base)

	var res model.Result
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		limit := min(time.Duration(attempt)*base, c.cfg.Max)
		res, err = c.Execute(ctx, probeName, p, target, probeCtx, limit)
		if err != nil || res.Status != model.StatusTimeout {
			return res, err
		}
		slog.DebugContext(ctx, "timeout escalation",
			"probe", probeName, "target", target, "attempt", attempt, "limit", limit)
	}
	return res, err
}

func (c *Controller) record(key string, d time.Duration) {
	c.mx.Lock()
	defer c.mx.Unlock()
	samples := append(c.history[key], d)
	if len(samples) > c.cfg.HistoryLimit {
		samples = samples[len(samples)-c.cfg.HistoryLimit:]
	}
	c.history[key] = samples
}

func key(probeName, target string) string {
	return probeName + "|" + target
}

// timeoutResult synthesizes the Timeout outcome for an overrun call.
func timeoutResult(probeName, target string, limit, elapsed time.Duration) model.Result {
	r := model.Result{
		ProbeName: probeName,
		Target:    target,
		Status:    model.StatusTimeout,
		Message:   fmt.Sprintf("execution exceeded timeout of %s", limit),
		Timestamp: time.Now().UTC(),
	}
	r.SetData("timeout_limit", limit.Seconds())
	r.SetData("actual_execution_time", elapsed.Seconds())
	r.SetData("exceeded_by", (elapsed - limit).Seconds())
	r.ExecutionTime = elapsed
	return r
}

// ContextStrategy enforces a hard deadline: the probe runs under a context
// expiring at the limit, and an overrun produces a synthetic Timeout while
// the in-flight call is cooperatively cancelled.
type ContextStrategy struct{}

type outcome struct {
	res model.Result
	err error
}

func (ContextStrategy) Execute(ctx context.Context, p probe.Probe, target string, probeCtx map[string]any, limit time.Duration) (model.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1) // buffered, the probe goroutine must not leak
	go func() {
		res, err := p.Run(ctx, target, probeCtx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		elapsed := time.Since(start)
		if o.err == nil {
			if o.res.ExecutionTime == 0 {
				o.res.ExecutionTime = elapsed
			}
			if elapsed > limit {
				return timeoutResult(o.res.ProbeName, target, limit, elapsed), nil
			}
		}
		return o.res, o.err
	case <-ctx.Done():
		elapsed := time.Since(start)
		if elapsed >= limit {
			return timeoutResult("", target, limit, elapsed), nil
		}
		return model.Result{}, ctx.Err()
	}
}

// PollingStrategy checks elapsed time only after the call returns, for
// probes that cannot be cancelled mid-flight. It cannot abort a probe that
// blocks past its limit; such probes must bound their own I/O for true
// enforcement. A known limitation, not hidden.
type PollingStrategy struct{}

func (PollingStrategy) Execute(ctx context.Context, p probe.Probe, target string, probeCtx map[string]any, limit time.Duration) (model.Result, error) {
	start := time.Now()
	res, err := p.Run(ctx, target, probeCtx)
	elapsed := time.Since(start)
	if err != nil {
		return res, err
	}
	if res.ExecutionTime == 0 {
		res.ExecutionTime = elapsed
	}
	if elapsed > limit {
		return timeoutResult(res.ProbeName, target, limit, elapsed), nil
	}
	return res, nil
}
