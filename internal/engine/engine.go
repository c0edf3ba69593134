// Package engine drives the probe execution pipeline: dependency analysis,
// plan composition, sequential or bounded-parallel execution with timeout,
// retry and inversion handling, and execution statistics.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/udovicic/security-scanner-sub004/internal/graph"
	"github.com/udovicic/security-scanner-sub004/internal/invert"
	"github.com/udovicic/security-scanner-sub004/internal/log"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/pool"
	"github.com/udovicic/security-scanner-sub004/internal/probe"
	"github.com/udovicic/security-scanner-sub004/internal/retry"
	"github.com/udovicic/security-scanner-sub004/internal/schedule"
	"github.com/udovicic/security-scanner-sub004/internal/timeout"
)

// Config is the engine option bag. An engine instance owns its
// configuration and statistics; there is no process-wide state.
type Config struct {
	ParallelExecution     bool
	MaxParallelTests      int
	EnableTimeouts        bool
	EnableRetries         bool
	SmartRetry            bool
	EnableResultInversion bool
	InversionRule         string
	FailFast              bool
	// ExecutionTimeout is the per-job limit when timeouts are enabled.
	ExecutionTimeout time.Duration
	// AdaptiveTimeouts derives per-job limits from execution history
	// instead of ExecutionTimeout.
	AdaptiveTimeouts bool
}

func (c Config) withDefaults() Config {
	if c.MaxParallelTests <= 0 {
		c.MaxParallelTests = 4
	}
	return c
}

// ProgressFunc is invoked once per job as it reaches a terminal result.
type ProgressFunc func(current, total int, jobID string)

type Engine struct {
	cfg      Config
	registry *probe.Registry
	pool     *pool.Pool
	timeouts *timeout.Controller
	retries  *retry.Controller
	rules    *invert.Rules
	progress ProgressFunc

	stats *stats
}

type Option func(*Engine)

// WithPool substitutes the resource pool; nil disables pooling entirely.
func WithPool(p *pool.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

func WithTimeoutController(c *timeout.Controller) Option {
	return func(e *Engine) { e.timeouts = c }
}

func WithRetryController(c *retry.Controller) Option {
	return func(e *Engine) { e.retries = c }
}

func WithRules(r *invert.Rules) Option {
	return func(e *Engine) { e.rules = r }
}

func WithProgress(f ProgressFunc) Option {
	return func(e *Engine) { e.progress = f }
}

// New builds an engine around the probe registry. Collaborators not
// provided through options get sane defaults.
func New(cfg Config, registry *probe.Registry, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		registry: registry,
		stats:    newStats(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeouts == nil {
		e.timeouts = timeout.NewController(timeout.Config{}, nil)
	}
	if e.retries == nil {
		e.retries = retry.New(retry.Config{})
	}
	if e.rules == nil {
		e.rules = invert.NewRules()
	}
	return e
}

// Rules exposes the inversion rule table, so callers can register custom
// rules before executing batches.
func (e *Engine) Rules() *invert.Rules {
	return e.rules
}

// ExecuteBatch validates and analyzes jobs, plans the order and executes
// everything. A cyclic dependency graph or an unknown inversion rule abort
// before any probe runs; every other failure is a typed per-job Result.
func (e *Engine) ExecuteBatch(ctx context.Context, name, target string, jobs []model.Job) (model.BatchResult, error) {
	return e.execute(ctx, name, target, jobs, 0)
}

// ExecuteBatchWithTimeouts is the deadline variant: jobs are first admitted
// by OptimizeForDeadline, and during execution a job with insufficient
// remaining time is synthesized as Timeout without running its probe.
func (e *Engine) ExecuteBatchWithTimeouts(ctx context.Context, name, target string, jobs []model.Job, deadline time.Duration) (model.BatchResult, error) {
	if deadline <= 0 {
		return e.execute(ctx, name, target, jobs, 0)
	}
	admitted := schedule.OptimizeForDeadline(jobs, deadline)
	return e.execute(ctx, name, target, admitted, deadline)
}

func (e *Engine) execute(ctx context.Context, name, target string, jobs []model.Job, deadline time.Duration) (model.BatchResult, error) {
	if err := model.ValidateJobs(jobs); err != nil {
		return model.BatchResult{}, err
	}
	if e.cfg.EnableResultInversion {
		if _, err := e.rules.Lookup(e.cfg.InversionRule); err != nil {
			return model.BatchResult{}, err
		}
	}

	g := graph.New(jobs)
	analysis, err := g.Analyze()
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("analyzing batch %s: %w", name, err)
	}

	plan := schedule.Plan(jobs, analysis.Order)

	batchID := uuid.NewString()
	ctx = log.ContextAttrs(ctx,
		slog.String("batch", name),
		slog.String("batch_id", batchID),
	)
	slog.DebugContext(ctx, "executing batch",
		"jobs", len(plan),
		"critical_path", analysis.CriticalPath.Length,
		"parallel", e.cfg.ParallelExecution,
	)

	start := time.Now()
	var results map[string]model.Result
	if e.cfg.ParallelExecution {
		results, err = e.runParallel(ctx, g, plan, deadline)
	} else {
		results, err = e.runSequential(ctx, g, plan, deadline)
	}
	if err != nil {
		return model.BatchResult{}, err
	}

	e.stats.recordBatch(time.Since(start))
	return model.BatchResult{
		Name:          name,
		Target:        target,
		Results:       results,
		ExecutionTime: time.Since(start),
		Context:       map[string]any{"batch_id": batchID},
		Timestamp:     start.UTC(),
	}, nil
}

// readiness of a job against completed results.
type readiness int

const (
	ready   readiness = iota // all deps terminal and non-problematic
	waiting                  // some dep has no result yet
	blocked                  // some dep finished problematic
)

// canExecute implements the dependency guard: a job runs only once every
// in-batch dependency has a terminal, non-problematic result.
func canExecute(g depGraph, job model.Job, completed map[string]model.Result) readiness {
	for _, dep := range g.Deps(job.ID) {
		res, ok := completed[dep]
		if !ok {
			return waiting
		}
		if res.Status.Problematic() {
			return blocked
		}
	}
	return ready
}

func skipResult(job model.Job, reason string) model.Result {
	res := model.Result{
		ProbeName: job.Probe,
		Target:    job.Target,
		Status:    model.StatusSkip,
		Message:   reason,
		Timestamp: time.Now().UTC(),
	}
	res.SetData("skip_reason", reason)
	return res
}

func deadlineResult(job model.Job, remaining time.Duration) model.Result {
	res := model.Result{
		ProbeName: job.Probe,
		Target:    job.Target,
		Status:    model.StatusTimeout,
		Message:   "insufficient time remaining before batch deadline",
		Timestamp: time.Now().UTC(),
	}
	res.SetData("remaining", remaining.Seconds())
	res.SetData("estimated_duration", job.EstimatedDuration.Seconds())
	return res
}
