package instance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/gokanfd/pkg/fd"
)

func intp(v int) *int { return &v }

func newStore() *fd.Store {
	logger, _ := test.NewNullLogger()
	return fd.NewStore(&fd.SolverConfig{Logger: logger})
}

func TestLoad(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "forbidden.yaml"))
	require.NoError(t, err)

	want := &Instance{
		Name:     "forbidden",
		Capacity: Range{Min: 0, Max: intp(4)},
		Profit:   Range{Min: 21, Max: intp(23)},
		Items: []Item{
			{Name: "A", Weight: 1, Profit: 10, Max: 1},
			{Name: "B", Weight: 2, Profit: 10, Max: 1},
			{Name: "C", Weight: 1, Profit: 1, Max: 2},
			{Name: "D", Weight: 3, Profit: 1, Max: 1},
		},
		Solver: SolverOptions{Heuristic: "lex", ValueOrder: "max", UpdateLimit: 2, TimeLimit: 2 * time.Second},
	}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Fatalf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NameFromFile(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "scenario1.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "scenario1", in.Name)
	assert.Equal(t, 100, *in.Profit.Max)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Defaults(t *testing.T) {
	in, err := Parse([]byte(`
capacity: {max: 9}
items:
  - {weight: 2, profit: 3, max: 2}
  - {weight: 1, profit: 1, min: 1, max: 4}
`))
	require.NoError(t, err)
	assert.Equal(t, "item0", in.Items[0].Name)
	assert.Equal(t, "item1", in.Items[1].Name)
	assert.Equal(t, 10, *in.Profit.Max)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"unknown key", "capacity: {max: 1}\nitems: [{weight: 1, profit: 1, max: 1}]\ncolour: red\n", "colour"},
		{"no items", "capacity: {max: 1}\n", "no items"},
		{"no capacity", "items: [{weight: 1, profit: 1, max: 1}]\n", "capacity.max is required"},
		{"zero weight", "capacity: {max: 1}\nitems: [{name: a, weight: 0, profit: 1, max: 1}]\n", "weight 0 must be positive"},
		{"negative profit", "capacity: {max: 1}\nitems: [{name: a, weight: 1, profit: -1, max: 1}]\n", "profit -1 must be positive"},
		{"max below min", "capacity: {max: 1}\nitems: [{name: a, weight: 1, profit: 1, min: 2, max: 1}]\n", "max 1 below min 2"},
		{"duplicate", "capacity: {max: 1}\nitems: [{name: a, weight: 1, profit: 1, max: 1}, {name: a, weight: 1, profit: 1, max: 1}]\n", "duplicate name"},
		{"capacity range", "capacity: {min: 5, max: 1}\nitems: [{weight: 1, profit: 1, max: 1}]\n", "capacity max 1 below min 5"},
		{"profit range", "capacity: {max: 1}\nprofit: {min: 5, max: 2}\nitems: [{weight: 1, profit: 1, max: 1}]\n", "profit max 2 below min 5"},
		{"heuristic", "capacity: {max: 1}\nitems: [{weight: 1, profit: 1, max: 1}]\nsolver: {heuristic: random}\n", "unknown variable heuristic"},
		{"value order", "capacity: {max: 1}\nitems: [{weight: 1, profit: 1, max: 1}]\nsolver: {value_order: middle}\n", "unknown value heuristic"},
		{"update limit", "capacity: {max: 1}\nitems: [{weight: 1, profit: 1, max: 1}]\nsolver: {update_limit: -3}\n", "update_limit -3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInstance)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_ReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte("items: [{name: a, weight: 0, profit: 0, max: 1}]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight 0")
	assert.Contains(t, err.Error(), "profit 0")
	assert.Contains(t, err.Error(), "capacity.max")
}

func TestMarshalRoundTrip(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "forbidden.yaml"))
	require.NoError(t, err)
	data, err := in.Marshal()
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	if diff := cmp.Diff(in, again); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Propagates(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "forbidden.yaml"))
	require.NoError(t, err)
	s := newStore()
	m, err := in.Build(s, BuildOptions{Debug: true})
	require.NoError(t, err)
	require.NotNil(t, m.Knapsack)
	require.NoError(t, s.Consistency())

	got := map[string]fd.Interval{}
	for _, q := range m.Quantities {
		got[q.Name()] = q.Domain()
	}
	want := map[string]fd.Interval{
		"A": {Min: 1, Max: 1},
		"B": {Min: 1, Max: 1},
		"C": {Min: 1, Max: 1},
		"D": {Min: 0, Max: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("quantities (-want +got):\n%s", diff)
	}
	assert.Equal(t, fd.Interval{Min: 4, Max: 4}, m.Capacity.Domain())
	assert.Equal(t, fd.Interval{Min: 21, Max: 21}, m.Profit.Domain())
}

func TestBuild_Decompose(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "scenario1.yaml"))
	require.NoError(t, err)
	s := newStore()
	m, err := in.Build(s, BuildOptions{Decompose: true})
	require.NoError(t, err)
	assert.Nil(t, m.Knapsack)
	require.NotNil(t, m.Weight)
	require.NotNil(t, m.Value)
	assert.Len(t, s.Constraints(), 2)
	require.NoError(t, s.Consistency())
	// bounds reasoning alone: 2*3 + 2*5 + 2*6 = 28
	assert.Equal(t, 28, m.Profit.Max())
}

func TestBuild_Infeasible(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "infeasible.yaml"))
	require.NoError(t, err)
	s := newStore()
	_, err = in.Build(s, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, fd.IsFailure(s.Consistency()))
}

func TestSolverConfig(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "forbidden.yaml"))
	require.NoError(t, err)
	base := fd.DefaultSolverConfig()
	cfg := in.SolverConfig(base)
	assert.Equal(t, fd.HeuristicLex, cfg.VariableHeuristic)
	assert.Equal(t, fd.ValueMax, cfg.ValueHeuristic)
	assert.Equal(t, fd.HeuristicDom, base.VariableHeuristic, "base is untouched")

	plain, err := Load(filepath.Join("testdata", "scenario1.yaml"))
	require.NoError(t, err)
	assert.Equal(t, fd.HeuristicDom, plain.SolverConfig(nil).VariableHeuristic)
}

func TestModelTotals(t *testing.T) {
	in, err := Load(filepath.Join("testdata", "scenario1.yaml"))
	require.NoError(t, err)
	m, err := in.Build(newStore(), BuildOptions{})
	require.NoError(t, err)
	w, p := m.Totals([]int{2, 2, 0})
	assert.Equal(t, 10, w)
	assert.Equal(t, 16, p)
	assert.Equal(t, map[string]int{"A": 2, "B": 2, "C": 0}, m.Assignment([]int{2, 2, 0}))
}
