package graph_test

import (
	"testing"

	"github.com/udovicic/security-scanner-sub004/internal/graph"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/stretchr/testify/require"
)

func job(id string, deps ...string) model.Job {
	return model.Job{ID: id, Probe: "noop", Target: "t", DependsOn: deps}
}

// position of id within order, -1 when missing
func position(order []string, id string) int {
	for i, x := range order {
		if x == id {
			return i
		}
	}
	return -1
}

func TestAnalyzeTopologicalOrder(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		job("d", "b", "c"),
		job("b", "a"),
		job("c", "a"),
		job("a"),
	}
	g := graph.New(jobs)
	analysis, err := g.Analyze()
	require.NoError(t, err)
	require.Len(t, analysis.Order, 4)

	for _, j := range jobs {
		for _, dep := range j.DependsOn {
			require.Less(t, position(analysis.Order, dep), position(analysis.Order, j.ID),
				"%s must come before %s", dep, j.ID)
		}
	}

	// independent jobs keep submission order: d was submitted before b,
	// but ordering starts with a, then b and c in submission order
	require.Equal(t, []string{"a", "b", "c", "d"}, analysis.Order)
}

func TestAnalyzeCycle(t *testing.T) {
	t.Parallel()

	g := graph.New([]model.Job{job("a", "b"), job("b", "a")})
	_, err := g.Analyze()
	require.ErrorIs(t, err, model.ErrCycle)
	require.Contains(t, err.Error(), "a")
	require.Contains(t, err.Error(), "b")
}

func TestAnalyzeSelfCycle(t *testing.T) {
	t.Parallel()

	g := graph.New([]model.Job{job("a", "a")})
	_, err := g.Analyze()
	require.ErrorIs(t, err, model.ErrCycle)
}

func TestAnalyzeExternalDepsIgnored(t *testing.T) {
	t.Parallel()

	g := graph.New([]model.Job{job("a", "not-in-batch"), job("b", "a")})
	analysis, err := g.Analyze()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, analysis.Order)
	require.Empty(t, g.Deps("a"))
}

func TestAnalyzeCriticalPath(t *testing.T) {
	t.Parallel()

	// chain a -> b -> c plus isolated x
	g := graph.New([]model.Job{job("a"), job("b", "a"), job("c", "b"), job("x")})
	analysis, err := g.Analyze()
	require.NoError(t, err)
	require.Equal(t, 2, analysis.CriticalPath.Length)
	require.Contains(t, analysis.CriticalPath.Ends, "c")
}

func TestAnalyzeGroups(t *testing.T) {
	t.Parallel()

	g := graph.New([]model.Job{job("a"), job("x"), job("b", "a"), job("c", "a"), job("d", "b", "c")})
	analysis, err := g.Analyze()
	require.NoError(t, err)

	require.Len(t, analysis.Groups, 3)
	require.ElementsMatch(t, []string{"a", "x"}, analysis.Groups[0])
	require.ElementsMatch(t, []string{"b", "c"}, analysis.Groups[1])
	require.ElementsMatch(t, []string{"d"}, analysis.Groups[2])
}
