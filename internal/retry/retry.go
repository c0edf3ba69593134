// Package retry wraps probe execution with bounded retries, exponential
// backoff with jitter, and history-based tuning.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Config tunes retry behavior. Zero values fall back to defaults.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// probe runs at most MaxRetries+1 times.
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	// MaxDelay caps the computed backoff before jitter.
	MaxDelay time.Duration
	// JitterMax adds up to delay*JitterMax of random noise per wait.
	JitterMax float64
	// RetryableStatuses lists result statuses worth another attempt.
	RetryableStatuses []model.Status
	// RetryableErrors lists fault sentinels matched with errors.Is.
	RetryableErrors []error
	// HistoryLimit caps remembered failures per target.
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.JitterMax < 0 {
		c.JitterMax = 0
	}
	if c.RetryableStatuses == nil {
		c.RetryableStatuses = []model.Status{model.StatusError, model.StatusTimeout}
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	return c
}

// Attempt is one entry of the append-only per-job execution log.
type Attempt struct {
	Number        int           `json:"number"`
	Status        model.Status  `json:"status,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Exec runs a single attempt; the engine composes resource acquisition and
// timeout handling inside it, so every retry attempt is itself bounded.
type Exec func(ctx context.Context, attempt int) (model.Result, error)

// Controller drives retries for one engine instance. Safe for concurrent
// use; the inter-attempt delay is a per-call timer, never a global pause.
type Controller struct {
	cfg        Config
	predicates []func(model.Result) bool
	history    *History
}

func New(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:     cfg,
		history: NewHistory(cfg.HistoryLimit),
	}
}

// Config returns the controller defaults, for callers composing SmartConfig.
func (c *Controller) Config() Config {
	return c.cfg
}

// History exposes the failure history consumed by SmartConfig.
func (c *Controller) History() *History {
	return c.history
}

// RegisterPredicate adds a custom retry decision over a result. A result is
// retried when its status is retryable or any predicate returns true.
func (c *Controller) RegisterPredicate(f func(model.Result) bool) {
	if f != nil {
		c.predicates = append(c.predicates, f)
	}
}

// Do executes fn with the controller defaults. key identifies the target
// for history purposes.
func (c *Controller) Do(ctx context.Context, key string, fn Exec) (model.Result, error) {
	return c.DoWith(ctx, key, c.cfg, fn)
}

// DoWith executes fn up to cfg.MaxRetries+1 times. Retryable outcomes wait
// an exponential backoff with jitter between attempts (not after the last).
// Eventual success after two or more attempts gains retry metadata; on
// exhaustion a Fail result is synthesized carrying the last result's data
// and score plus retries_exhausted=true. Faults not matching the retryable
// list stop immediately and convert to an Error result; faults are never
// re-raised to the caller.
func (c *Controller) DoWith(ctx context.Context, key string, cfg Config, fn Exec) (model.Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	attempts := make([]Attempt, 0, cfg.MaxRetries+1)

	var last model.Result
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		attemptStart := time.Now()
		res, err := fn(ctx, attempt)
		elapsed := time.Since(attemptStart)

		a := Attempt{Number: attempt, ExecutionTime: elapsed}
		if err != nil {
			a.Error = err.Error()
		} else {
			a.Status = res.Status
		}
		attempts = append(attempts, a)

		if err != nil {
			last, lastErr = res, err
			c.history.RecordFailure(key, model.StatusError)
			if !c.retryableErr(cfg, err) {
				return errorResult(err, attempts), nil
			}
		} else {
			last, lastErr = res, nil
			if !c.retryable(cfg, res) {
				if attempt >= 2 {
					annotate(&res, attempts)
					c.history.RecordRecovery(key, time.Since(start))
				}
				return res, nil
			}
			c.history.RecordFailure(key, res.Status)
		}

		if attempt > cfg.MaxRetries {
			break
		}
		if err := c.sleep(ctx, cfg, attempt); err != nil {
			return model.Result{}, err
		}
	}

	return exhausted(last, lastErr, attempts), nil
}

func (c *Controller) retryable(cfg Config, res model.Result) bool {
	for _, s := range cfg.RetryableStatuses {
		if res.Status == s {
			return true
		}
	}
	for _, p := range c.predicates {
		if p(res) {
			return true
		}
	}
	return false
}

func (c *Controller) retryableErr(cfg Config, err error) bool {
	for _, target := range cfg.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before attempt+1:
// base * multiplier^(attempt-1), capped at MaxDelay, plus jitter of
// delay * JitterMax * uniform(0,1).
func (c *Controller) Delay(cfg Config, attempt int) time.Duration {
	cfg = cfg.withDefaults()
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	if d > cfg.MaxDelay || d <= 0 {
		d = cfg.MaxDelay
	}
	if cfg.JitterMax > 0 {
		d += time.Duration(float64(d) * cfg.JitterMax * rand.Float64())
	}
	return d
}

func (c *Controller) sleep(ctx context.Context, cfg Config, attempt int) error {
	t := time.NewTimer(c.Delay(cfg, attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SmartConfig tunes MaxRetries and BaseDelay from the last recorded
// failures for the target: more retries when errors dominate timeouts,
// longer delays when timeouts dominate, and the delay floored at 10% of the
// average observed recovery time.
func (c *Controller) SmartConfig(key string) Config {
	cfg := c.cfg
	failures, avgRecovery := c.history.Snapshot(key)
	if len(failures) == 0 {
		return cfg
	}

	var errs, timeouts int
	for _, s := range failures {
		switch s {
		case model.StatusTimeout:
			timeouts++
		default:
			errs++
		}
	}
	switch {
	case errs > timeouts:
		cfg.MaxRetries++
	case timeouts > errs:
		cfg.BaseDelay *= 2
	}

	if floor := avgRecovery / 10; floor > cfg.BaseDelay {
		cfg.BaseDelay = floor
	}
	return cfg
}

func annotate(res *model.Result, attempts []Attempt) {
	res.SetData("retry_attempts", len(attempts))
	res.SetData("attempts", attempts)
	res.Message = fmt.Sprintf("%s (succeeded after %d attempts)", res.Message, len(attempts))
}

func exhausted(last model.Result, lastErr error, attempts []Attempt) model.Result {
	carried := last.Clone()
	res := model.Result{
		ProbeName: last.ProbeName,
		Target:    last.Target,
		Status:    model.StatusFail,
		Data:      carried.Data,
		Score:     carried.Score,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case lastErr != nil:
		res.Message = fmt.Sprintf("all %d attempts failed: %s", len(attempts), lastErr)
	default:
		res.Message = fmt.Sprintf("all %d attempts failed: %s", len(attempts), last.Message)
	}
	res.SetData("retries_exhausted", true)
	res.SetData("retry_attempts", len(attempts))
	res.SetData("attempts", attempts)
	res.SetData("last_status", string(last.Status))
	return res
}

func errorResult(err error, attempts []Attempt) model.Result {
	res := model.Result{
		Status:    model.StatusError,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
	res.SetData("retry_attempts", len(attempts))
	res.SetData("attempts", attempts)
	return res
}
