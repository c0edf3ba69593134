// Package schedule orders a batch for execution. The plan composes four
// passes in a fixed order: topological reordering, priority sort, complexity
// load balancing and adaptive batching. The later passes are heuristics and
// may locally break dependency order; the engine re-checks dependencies at
// execution time, so the plan is a preference, not a safety guarantee.
package schedule

import (
	"sort"
	"strings"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Plan produces the execution order of jobs given the topological order
// from graph analysis.
func Plan(jobs []model.Job, topoOrder []string) []model.Job {
	ordered := reorderTopological(jobs, topoOrder)
	sortByPriority(ordered)
	ordered = balanceByComplexity(ordered)
	return batchByLocality(ordered)
}

// reorderTopological places jobs in dependency-safe order; jobs absent from
// the topological result (isolated submissions) are appended at the end.
func reorderTopological(jobs []model.Job, topoOrder []string) []model.Job {
	byID := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	out := make([]model.Job, 0, len(jobs))
	seen := make(map[string]struct{}, len(jobs))
	for _, id := range topoOrder {
		j, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		out = append(out, j)
		seen[id] = struct{}{}
	}
	for _, j := range jobs {
		if _, ok := seen[j.ID]; !ok {
			out = append(out, j)
			seen[j.ID] = struct{}{}
		}
	}
	return out
}

// sortByPriority sorts stably by priority descending; ties go to shorter
// estimated duration so dependents unblock sooner.
func sortByPriority(jobs []model.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].Priority != jobs[k].Priority {
			return jobs[i].Priority > jobs[k].Priority
		}
		return jobs[i].EstimatedDuration < jobs[k].EstimatedDuration
	})
}

// balanceByComplexity buckets jobs into heavy (>2.0), medium (0.5-2.0] and
// light (<=0.5) and interleaves them round robin, so a serial run of heavy
// jobs does not starve everything else.
func balanceByComplexity(jobs []model.Job) []model.Job {
	var heavy, medium, light []model.Job
	for _, j := range jobs {
		switch {
		case j.Complexity > 2.0:
			heavy = append(heavy, j)
		case j.Complexity > 0.5:
			medium = append(medium, j)
		default:
			light = append(light, j)
		}
	}

	out := make([]model.Job, 0, len(jobs))
	for len(heavy) > 0 || len(medium) > 0 || len(light) > 0 {
		if len(heavy) > 0 {
			out = append(out, heavy[0])
			heavy = heavy[1:]
		}
		if len(medium) > 0 {
			out = append(out, medium[0])
			medium = medium[1:]
		}
		if len(light) > 0 {
			out = append(out, light[0])
			light = light[1:]
		}
	}
	return out
}

// batchByLocality groups jobs by (probe, target host) and chunks each group
// into size-scaled batches. Cache and connection locality only, the result
// keeps every job.
func batchByLocality(jobs []model.Job) []model.Job {
	size := batchSize(len(jobs))

	var keys []string
	grouped := make(map[string][]model.Job)
	for _, j := range jobs {
		key := j.Probe + "|" + hostOf(j.Target)
		if _, ok := grouped[key]; !ok {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], j)
	}

	out := make([]model.Job, 0, len(jobs))
	for _, key := range keys {
		group := grouped[key]
		for len(group) > 0 {
			n := min(size, len(group))
			out = append(out, group[:n]...)
			group = group[n:]
		}
	}
	return out
}

func batchSize(total int) int {
	switch {
	case total <= 10:
		return 3
	case total <= 50:
		return 5
	case total <= 200:
		return 10
	default:
		return 20
	}
}

// hostOf strips scheme, path and port from a target. Targets are opaque to
// the engine, so this stays tolerant of bare hosts and host:port strings.
func hostOf(target string) string {
	host := target
	if _, rest, ok := strings.Cut(host, "://"); ok {
		host = rest
	}
	host, _, _ = strings.Cut(host, "/")
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return host
}

// OptimizeForDeadline ranks jobs by priority per unit of estimated duration
// and greedily admits those fitting the remaining budget. Jobs that would
// blow the budget are dropped from this batch.
func OptimizeForDeadline(jobs []model.Job, deadline time.Duration) []model.Job {
	ranked := make([]model.Job, len(jobs))
	copy(ranked, jobs)
	sort.SliceStable(ranked, func(i, k int) bool {
		return efficiency(ranked[i]) > efficiency(ranked[k])
	})

	var admitted []model.Job
	var budget time.Duration
	for _, j := range ranked {
		if budget+j.EstimatedDuration > deadline {
			continue
		}
		budget += j.EstimatedDuration
		admitted = append(admitted, j)
	}
	return admitted
}

func efficiency(j model.Job) float64 {
	d := j.EstimatedDuration.Seconds()
	if d <= 0 {
		d = 0.001 // zero-cost jobs rank first
	}
	return float64(j.Priority) / d
}
