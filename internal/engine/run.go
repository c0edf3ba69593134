package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/log"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/probe"
)

const skipDependencies = "dependencies not met"

// runSequential executes one job at a time in plan order. A job whose
// dependencies are still pending later in the plan is requeued to the back;
// the plan is acyclic, so this always terminates.
func (e *Engine) runSequential(ctx context.Context, g depGraph, plan []model.Job, deadline time.Duration) (map[string]model.Result, error) {
	total := len(plan)
	completed := make(map[string]model.Result, total)
	queue := append([]model.Job(nil), plan...)
	start := time.Now()

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job := queue[0]
		queue = queue[1:]

		if deadline > 0 {
			remaining := deadline - time.Since(start)
			if job.EstimatedDuration > remaining {
				e.finish(ctx, job, deadlineResult(job, remaining), completed, total)
				continue
			}
		}

		switch canExecute(g, job, completed) {
		case waiting:
			queue = append(queue, job)
			continue
		case blocked:
			e.finish(ctx, job, skipResult(job, skipDependencies), completed, total)
			continue
		}

		res := e.runJob(ctx, job)
		e.finish(ctx, job, res, completed, total)

		if e.cfg.FailFast && res.Status.Problematic() {
			slog.WarnContext(ctx, "fail fast, aborting batch", "job_id", job.ID, "status", res.Status)
			for _, rest := range queue {
				e.finish(ctx, rest, skipResult(rest, "aborted by fail_fast"), completed, total)
			}
			break
		}
	}
	return completed, nil
}

// depGraph is the slice of graph behavior the executor needs.
type depGraph interface {
	Deps(id string) []string
}

// finish records a terminal result, updates statistics and reports progress.
func (e *Engine) finish(ctx context.Context, job model.Job, res model.Result, completed map[string]model.Result, total int) {
	completed[job.ID] = res
	e.stats.recordJob(job.Probe, res)
	if e.progress != nil {
		e.progress(len(completed), total, job.ID)
	}
	slog.DebugContext(ctx, "job finished",
		log.Job(job.ID, job.Probe, job.Target),
		slog.String("status", string(res.Status)),
		slog.Duration("took", res.ExecutionTime),
	)
}

// runJob executes a single job through the configured controllers:
// (pool acquire -> timeout-bounded probe call) per attempt, retries around
// that, inversion applied last.
func (e *Engine) runJob(ctx context.Context, job model.Job) model.Result {
	p, err := e.registry.New(job.Probe)
	if err != nil {
		res := model.Result{
			ProbeName: job.Probe,
			Target:    job.Target,
			Status:    model.StatusError,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
		return e.invert(ctx, res)
	}

	attempt := func(ctx context.Context, _ int) (model.Result, error) {
		return e.runAttempt(ctx, job, p)
	}

	var res model.Result
	if e.cfg.EnableRetries {
		cfg := e.retries.Config()
		if e.cfg.SmartRetry {
			cfg = e.retries.SmartConfig(job.Target)
		}
		res, err = e.retries.DoWith(ctx, job.Target, cfg, attempt)
	} else {
		res, err = attempt(ctx, 1)
	}
	if err != nil {
		// context cancellation or a fault outside retry handling
		res = model.Result{
			ProbeName: job.Probe,
			Target:    job.Target,
			Status:    model.StatusError,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	if res.ProbeName == "" {
		res.ProbeName = job.Probe
	}
	if res.Target == "" {
		res.Target = job.Target
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return e.invert(ctx, res)
}

// runAttempt is one execution attempt: acquire a handle, run the probe
// under its time budget, release the handle.
func (e *Engine) runAttempt(ctx context.Context, job model.Job, p probe.Probe) (model.Result, error) {
	probeCtx := make(map[string]any, len(job.Context)+1)
	for k, v := range job.Context {
		probeCtx[k] = v
	}

	if e.pool != nil {
		h, err := e.pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, model.ErrResourceExhausted) || errors.Is(err, model.ErrPoolClosed) {
				res := model.Result{
					ProbeName: job.Probe,
					Target:    job.Target,
					Status:    model.StatusError,
					Message:   err.Error(),
					Timestamp: time.Now().UTC(),
				}
				return res, nil // an Error result, retryable by default
			}
			return model.Result{}, err
		}
		defer e.pool.Release(h)
		probeCtx["resource_id"] = h.ID
	}

	if !e.cfg.EnableTimeouts {
		start := time.Now()
		res, err := p.Run(ctx, job.Target, probeCtx)
		if err != nil {
			return res, err
		}
		if res.ExecutionTime == 0 {
			res.ExecutionTime = time.Since(start)
		}
		return res, nil
	}

	limit := e.cfg.ExecutionTimeout
	if e.cfg.AdaptiveTimeouts {
		limit = e.timeouts.Adaptive(job.Probe, job.Target)
	}
	return e.timeouts.Execute(ctx, job.Probe, p, job.Target, probeCtx, limit)
}

func (e *Engine) invert(ctx context.Context, res model.Result) model.Result {
	if !e.cfg.EnableResultInversion {
		return res
	}
	out, err := e.rules.Apply(res, e.cfg.InversionRule)
	if err != nil {
		// rule existence is checked before execution; keep the original
		// result rather than dropping it
		slog.ErrorContext(ctx, "applying inversion rule", "rule", e.cfg.InversionRule, "error", err)
		return res
	}
	return out
}
