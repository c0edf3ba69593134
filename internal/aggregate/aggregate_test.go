package aggregate_test

import (
	"testing"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/aggregate"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/stretchr/testify/require"
)

func results(statuses ...model.Status) []model.Result {
	out := make([]model.Result, len(statuses))
	for i, s := range statuses {
		out[i] = model.Result{ProbeName: "noop", Status: s, ExecutionTime: time.Second}
	}
	return out
}

func TestAggregateSuccessRate(t *testing.T) {
	t.Parallel()

	rs := results(
		model.StatusPass, model.StatusPass, model.StatusPass, model.StatusPass,
		model.StatusPass, model.StatusPass, model.StatusPass,
		model.StatusFail, model.StatusFail,
		model.StatusWarning,
	)
	s := aggregate.Aggregate(rs)
	require.Equal(t, 10, s.Total)
	require.InDelta(t, 70.0, s.SuccessRate, 0.001)
	require.Equal(t, 7, s.StatusCounts[model.StatusPass])
	require.Equal(t, 2, s.StatusCounts[model.StatusFail])
	require.Equal(t, time.Second, s.AverageTime)
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	s := aggregate.Aggregate(nil)
	require.Zero(t, s.Total)
	require.Zero(t, s.SuccessRate)
	require.Empty(t, s.Recommendations)
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		given string
		then  string
	}{
		{"ssl_expiry", aggregate.CategorySecurity},
		{"security_headers", aggregate.CategorySecurity},
		{"response_time", aggregate.CategoryPerformance},
		{"performance_budget", aggregate.CategoryPerformance},
		{"http_status", aggregate.CategoryAvailability},
		{"availability_ping", aggregate.CategoryAvailability},
		{"tcp_connect", aggregate.CategoryGeneral},
		{"SSL_EXPIRY", aggregate.CategorySecurity},
	}
	for _, tc := range cases {
		t.Run(tc.given, func(t *testing.T) {
			require.Equal(t, tc.then, aggregate.Categorize(tc.given))
		})
	}
}

func TestAggregateWeighted(t *testing.T) {
	t.Parallel()

	score := func(n int) *int { return &n }
	rs := []model.Result{
		{ProbeName: "ssl_expiry", Status: model.StatusPass, Score: score(100)},
		{ProbeName: "response_time", Status: model.StatusPass, Score: score(80)},
		{ProbeName: "http_status", Status: model.StatusFail, Score: score(50)},
		{ProbeName: "tcp_connect", Status: model.StatusPass, Score: score(10)},
	}

	s := aggregate.Aggregate(rs)
	require.Equal(t, 4, s.Scored)
	require.InDelta(t, 60.0, s.AverageScore, 0.001)

	require.Len(t, s.Categories, 4)
	require.Equal(t, 1, s.Categories[aggregate.CategorySecurity].Total)
	require.InDelta(t, 100.0, s.Categories[aggregate.CategorySecurity].AverageScore, 0.001)
	require.InDelta(t, 0.4, s.Categories[aggregate.CategorySecurity].Weight, 0.001)

	// 100*0.4 + 80*0.3 + 50*0.3 + 10*0 = 79
	require.InDelta(t, 79.0, s.OverallScore, 0.001)
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	t.Run("healthy batch has none", func(t *testing.T) {
		s := aggregate.Aggregate(results(model.StatusPass, model.StatusPass))
		require.Empty(t, s.Recommendations)
	})

	t.Run("low success rate", func(t *testing.T) {
		s := aggregate.Aggregate(results(model.StatusPass, model.StatusFail))
		require.Len(t, s.Recommendations, 1)
		require.Contains(t, s.Recommendations[0], "below 80%")
	})

	t.Run("slow, erroring and timing out", func(t *testing.T) {
		rs := []model.Result{
			{ProbeName: "noop", Status: model.StatusError, ExecutionTime: time.Minute},
			{ProbeName: "noop", Status: model.StatusTimeout, ExecutionTime: time.Minute},
		}
		s := aggregate.Aggregate(rs)
		require.Len(t, s.Recommendations, 4)
	})
}

func TestAggregateBatch(t *testing.T) {
	t.Parallel()

	b := model.BatchResult{
		Name: "nightly",
		Results: map[string]model.Result{
			"a": {ProbeName: "noop", Status: model.StatusPass},
			"b": {ProbeName: "noop", Status: model.StatusFail},
		},
	}
	s := aggregate.AggregateBatch(b)
	require.Equal(t, 2, s.Total)
	require.InDelta(t, 50.0, s.SuccessRate, 0.001)
}
