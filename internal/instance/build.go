package instance

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gitrdm/gokanfd/pkg/fd"
	"github.com/gitrdm/gokanfd/pkg/knapsack"
)

// BuildOptions selects how an instance is modelled.
type BuildOptions struct {
	// Decompose models the instance with two LinearSum constraints
	// instead of the knapsack constraint.
	Decompose bool
	// UpdateLimit overrides the instance's solver.update_limit when set.
	UpdateLimit int
	Debug       bool
	Logger      logrus.FieldLogger
}

// Model is an instance built into a store.
type Model struct {
	Instance   *Instance
	Store      *fd.Store
	Quantities []*fd.IntVar
	Capacity   *fd.IntVar
	Profit     *fd.IntVar

	// Knapsack is nil when the model was decomposed.
	Knapsack *knapsack.Knapsack
	Weight   *fd.LinearSum
	Value    *fd.LinearSum
}

// Build creates the instance's variables in s and imposes its constraints.
func (in *Instance) Build(s *fd.Store, opts BuildOptions) (*Model, error) {
	m := &Model{Instance: in, Store: s}
	weights := make([]int, len(in.Items))
	profits := make([]int, len(in.Items))
	for i, it := range in.Items {
		q, err := s.NewIntVar(it.Min, it.Max, it.Name)
		if err != nil {
			return nil, err
		}
		m.Quantities = append(m.Quantities, q)
		weights[i], profits[i] = it.Weight, it.Profit
	}

	var err error
	if m.Capacity, err = s.NewIntVar(in.Capacity.Min, *in.Capacity.Max, "capacity"); err != nil {
		return nil, err
	}
	if m.Profit, err = s.NewIntVar(in.Profit.Min, *in.Profit.Max, "profit"); err != nil {
		return nil, err
	}

	if opts.Decompose {
		if m.Weight, err = fd.NewLinearSum(m.Quantities, weights, m.Capacity); err != nil {
			return nil, err
		}
		if m.Value, err = fd.NewLinearSum(m.Quantities, profits, m.Profit); err != nil {
			return nil, err
		}
		if err := s.Impose(m.Weight); err != nil {
			return nil, err
		}
		if err := s.Impose(m.Value); err != nil {
			return nil, err
		}
		return m, nil
	}

	limit := in.Solver.UpdateLimit
	if opts.UpdateLimit > 0 {
		limit = opts.UpdateLimit
	}
	m.Knapsack, err = knapsack.NewFromSlices(m.Quantities, weights, profits, m.Capacity, m.Profit, knapsack.Options{
		UpdateLimit: limit,
		Debug:       opts.Debug,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", in.Name, err)
	}
	if err := s.Impose(m.Knapsack); err != nil {
		return nil, err
	}
	return m, nil
}

// SolverConfig returns the instance's search settings on top of base. base
// is not modified.
func (in *Instance) SolverConfig(base *fd.SolverConfig) *fd.SolverConfig {
	cfg := *fd.DefaultSolverConfig()
	if base != nil {
		cfg = *base
	}
	if in.Solver.Heuristic != "" {
		cfg.VariableHeuristic, _ = fd.ParseVariableHeuristic(in.Solver.Heuristic)
	}
	if in.Solver.ValueOrder != "" {
		cfg.ValueHeuristic, _ = fd.ParseValueHeuristic(in.Solver.ValueOrder)
	}
	return &cfg
}

// Assignment pairs item names with solution values.
func (m *Model) Assignment(values []int) map[string]int {
	out := make(map[string]int, len(values))
	for i, v := range values {
		out[m.Quantities[i].Name()] = v
	}
	return out
}

// Totals returns the weight and profit of a solution.
func (m *Model) Totals(values []int) (weight, profit int) {
	for i, v := range values {
		weight += v * m.Instance.Items[i].Weight
		profit += v * m.Instance.Items[i].Profit
	}
	return weight, profit
}
