package fd

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumModel builds x + y = t with x, y in [0, 3] and t in [lo, hi].
func sumModel(t *testing.T, lo, hi int) (*Store, []*IntVar, *IntVar) {
	t.Helper()
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 3, "x")
	y, _ := s.NewIntVar(0, 3, "y")
	total, _ := s.NewIntVar(lo, hi, "t")
	c, err := NewLinearSum([]*IntVar{x, y}, []int{1, 1}, total)
	require.NoError(t, err)
	require.NoError(t, s.Impose(c))
	return s, []*IntVar{x, y}, total
}

func TestSearch_SolveAll(t *testing.T) {
	for _, vh := range []ValueHeuristic{ValueMin, ValueMax, ValueSplit} {
		t.Run(vh.String(), func(t *testing.T) {
			s, vars, _ := sumModel(t, 4, 4)
			cfg := DefaultSolverConfig()
			cfg.ValueHeuristic = vh
			cfg.VariableHeuristic = HeuristicLex

			sols, err := NewSearch(s, vars, cfg).Solve(context.Background(), 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, [][]int{{1, 3}, {2, 2}, {3, 1}}, sols)

			// the store is back where it started
			assert.Equal(t, 0, s.Level())
			assert.Equal(t, Interval{0, 3}, vars[0].Domain())
		})
	}
}

func TestSearch_ValueOrder(t *testing.T) {
	s, vars, _ := sumModel(t, 4, 4)
	cfg := &SolverConfig{VariableHeuristic: HeuristicLex, ValueHeuristic: ValueMin}
	sols, err := NewSearch(s, vars, cfg).Solve(context.Background(), 0)
	require.NoError(t, err)
	if diff := cmp.Diff([][]int{{1, 3}, {2, 2}, {3, 1}}, sols); diff != "" {
		t.Fatalf("solutions (-want +got):\n%s", diff)
	}

	cfg.ValueHeuristic = ValueMax
	sols, err = NewSearch(s, vars, cfg).Solve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3, 1}}, sols)
}

func TestSearch_Infeasible(t *testing.T) {
	s, vars, _ := sumModel(t, 7, 9)
	sols, err := NewSearch(s, vars, nil).Solve(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, sols)
}

func TestSearch_Maximize(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 4, "x")
	y, _ := s.NewIntVar(0, 4, "y")
	w, _ := s.NewIntVar(0, 10, "w")
	obj, _ := s.NewIntVar(0, 100, "obj")
	weight, err := NewLinearSum([]*IntVar{x, y}, []int{3, 2}, w)
	require.NoError(t, err)
	value, err := NewLinearSum([]*IntVar{x, y}, []int{5, 3}, obj)
	require.NoError(t, err)
	require.NoError(t, s.Impose(weight))
	require.NoError(t, s.Impose(value))

	sol, err := NewSearch(s, []*IntVar{x, y}, nil).Maximize(context.Background(), obj)
	require.NoError(t, err)
	require.NotNil(t, sol.Values)
	assert.True(t, sol.Optimal)
	// 3x + 2y <= 10: best is x=2, y=2 (value 16)
	assert.Equal(t, 16, sol.Objective)
	assert.Equal(t, []int{2, 2}, sol.Values)
}

func TestSearch_MaximizeNilObjective(t *testing.T) {
	s, vars, _ := sumModel(t, 0, 6)
	_, err := NewSearch(s, vars, nil).Maximize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSearch_Cancelled(t *testing.T) {
	s, vars, _ := sumModel(t, 0, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSearch(s, vars, nil).Solve(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Level())
}

func TestSearch_MonitorCounts(t *testing.T) {
	m := NewSolverMonitor()
	logger, _ := test.NewNullLogger()
	s := NewStore(&SolverConfig{Monitor: m, Logger: logger})
	x, _ := s.NewIntVar(0, 3, "x")
	y, _ := s.NewIntVar(0, 3, "y")
	total, _ := s.NewIntVar(4, 4, "t")
	c, err := NewLinearSum([]*IntVar{x, y}, []int{1, 1}, total)
	require.NoError(t, err)
	require.NoError(t, s.Impose(c))

	sols, err := NewSearch(s, []*IntVar{x, y}, nil).Solve(context.Background(), 0)
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, len(sols), stats.SolutionsFound)
	assert.Positive(t, stats.NodesExplored)
	assert.Positive(t, stats.PropagationCount)
	assert.Equal(t, 1, stats.ConstraintsAdded)
	assert.Contains(t, stats.String(), "3 solutions")

	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg), "registering twice is tolerated")
	assert.Equal(t, float64(3), testutil.ToFloat64(m.solutions))
	assert.Equal(t, float64(stats.NodesExplored), testutil.ToFloat64(m.nodes))
}
