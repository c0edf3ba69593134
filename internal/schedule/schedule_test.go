package schedule_test

import (
	"testing"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/schedule"
	"github.com/stretchr/testify/require"
)

func ids(jobs []model.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func TestPlanKeepsEveryJob(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		{ID: "a", Probe: "tcp_connect", Target: "one.example.com", Complexity: 3},
		{ID: "b", Probe: "http_status", Target: "two.example.com", Complexity: 1},
		{ID: "c", Probe: "http_status", Target: "two.example.com"},
		{ID: "d", Probe: "ssl_expiry", Target: "one.example.com:443", Complexity: 0.5},
	}
	plan := schedule.Plan(jobs, []string{"a", "b", "c", "d"})
	require.Len(t, plan, len(jobs))
	require.ElementsMatch(t, ids(jobs), ids(plan))
}

func TestPlanPriorityOrder(t *testing.T) {
	t.Parallel()

	// same probe, target and complexity, so only the priority pass moves jobs
	jobs := []model.Job{
		{ID: "low", Probe: "p", Target: "t", Priority: 1},
		{ID: "high", Probe: "p", Target: "t", Priority: 10},
		{ID: "mid-slow", Probe: "p", Target: "t", Priority: 5, EstimatedDuration: 2 * time.Second},
		{ID: "mid-fast", Probe: "p", Target: "t", Priority: 5, EstimatedDuration: time.Second},
	}
	plan := schedule.Plan(jobs, []string{"low", "high", "mid-slow", "mid-fast"})
	require.Equal(t, []string{"high", "mid-fast", "mid-slow", "low"}, ids(plan))
}

func TestPlanComplexityInterleaving(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		{ID: "h1", Probe: "p", Target: "t1", Complexity: 3},
		{ID: "h2", Probe: "p", Target: "t2", Complexity: 4},
		{ID: "m1", Probe: "p", Target: "t3", Complexity: 1},
		{ID: "l1", Probe: "p", Target: "t4", Complexity: 0.1},
	}
	plan := schedule.Plan(jobs, []string{"h1", "h2", "m1", "l1"})
	// round robin heavy, medium, light
	require.Equal(t, []string{"h1", "m1", "l1", "h2"}, ids(plan))
}

func TestPlanLocalityGrouping(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		{ID: "a1", Probe: "http_status", Target: "https://a.example.com/x"},
		{ID: "b1", Probe: "http_status", Target: "https://b.example.com"},
		{ID: "a2", Probe: "http_status", Target: "a.example.com:8443"},
		{ID: "b2", Probe: "http_status", Target: "b.example.com"},
	}
	plan := schedule.Plan(jobs, []string{"a1", "b1", "a2", "b2"})
	// same probe and host end up adjacent
	require.Equal(t, []string{"a1", "a2", "b1", "b2"}, ids(plan))
}

func TestOptimizeForDeadline(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		{ID: "slow", Probe: "p", Target: "t", Priority: 1, EstimatedDuration: 5 * time.Second},
		{ID: "fast", Probe: "p", Target: "t", Priority: 10, EstimatedDuration: time.Second},
		{ID: "mid", Probe: "p", Target: "t", Priority: 4, EstimatedDuration: 2 * time.Second},
	}

	t.Run("tight budget admits only the most efficient", func(t *testing.T) {
		admitted := schedule.OptimizeForDeadline(jobs, time.Second)
		require.Equal(t, []string{"fast"}, ids(admitted))
	})

	t.Run("scan continues past an oversized job", func(t *testing.T) {
		admitted := schedule.OptimizeForDeadline(jobs, 3*time.Second)
		require.Equal(t, []string{"fast", "mid"}, ids(admitted))
	})

	t.Run("large budget admits everything", func(t *testing.T) {
		admitted := schedule.OptimizeForDeadline(jobs, time.Minute)
		require.Len(t, admitted, 3)
	})

	t.Run("zero budget admits nothing", func(t *testing.T) {
		require.Empty(t, schedule.OptimizeForDeadline(jobs, 0))
	})
}
