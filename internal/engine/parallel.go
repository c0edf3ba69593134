package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

type jobResult struct {
	job model.Job
	res model.Result
}

// runParallel keeps up to MaxParallelTests jobs in flight. A job starts
// only once its dependencies are satisfied; jobs still waiting stay queued
// and are re-examined after every completion, so nothing busy-spins.
func (e *Engine) runParallel(ctx context.Context, g depGraph, plan []model.Job, deadline time.Duration) (map[string]model.Result, error) {
	total := len(plan)
	completed := make(map[string]model.Result, total)
	pending := append([]model.Job(nil), plan...)
	start := time.Now()

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.cfg.MaxParallelTests)
	done := make(chan jobResult, e.cfg.MaxParallelTests)
	inFlight := 0

	drain := func() error {
		jr := <-done
		inFlight--
		e.finish(ctx, jr.job, jr.res, completed, total)
		return ctx.Err()
	}

	for len(pending) > 0 || inFlight > 0 {
		if err := ctx.Err(); err != nil {
			// let in-flight probes finish, they hold pool handles
			for inFlight > 0 {
				jr := <-done
				inFlight--
				e.finish(context.WithoutCancel(ctx), jr.job, jr.res, completed, total)
			}
			_ = grp.Wait()
			return nil, err
		}

		launched := false
		rest := pending[:0]
		for _, job := range pending {
			if inFlight >= e.cfg.MaxParallelTests {
				rest = append(rest, job)
				continue
			}

			if deadline > 0 {
				remaining := deadline - time.Since(start)
				if job.EstimatedDuration > remaining {
					e.finish(ctx, job, deadlineResult(job, remaining), completed, total)
					continue
				}
			}

			switch canExecute(g, job, completed) {
			case waiting:
				rest = append(rest, job)
			case blocked:
				e.finish(ctx, job, skipResult(job, skipDependencies), completed, total)
			case ready:
				inFlight++
				launched = true
				grp.Go(func() error {
					done <- jobResult{job: job, res: e.runJob(gctx, job)}
					return nil
				})
			}
		}
		pending = rest

		if inFlight == 0 {
			if !launched && len(pending) > 0 {
				// cannot happen on an acyclic plan; never hang on bad input
				for _, job := range pending {
					e.finish(ctx, job, skipResult(job, skipDependencies), completed, total)
				}
				pending = nil
			}
			continue
		}
		if !launched || len(pending) > 0 || inFlight >= e.cfg.MaxParallelTests {
			if err := drain(); err != nil {
				continue // cancellation path above cleans up
			}
		}
	}

	_ = grp.Wait()
	return completed, nil
}
