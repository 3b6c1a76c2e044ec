package fd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Search is a depth-first search over a Store. Every choice opens a new
// store level; failed or exhausted branches are undone with Backtrack.
//
// Search is not safe for concurrent use; it drives a single store.
type Search struct {
	store   *Store
	vars    []*IntVar
	config  *SolverConfig
	monitor *SolverMonitor
	logger  logrus.FieldLogger
}

// Solution is the result of an optimisation run.
type Solution struct {
	Values    []int
	Objective int
	// Optimal is set when the search space was exhausted.
	Optimal bool
}

// NewSearch creates a search labelling vars. A nil config uses
// DefaultSolverConfig.
func NewSearch(store *Store, vars []*IntVar, config *SolverConfig) *Search {
	if config == nil {
		config = DefaultSolverConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = store.Logger()
	}
	return &Search{
		store:   store,
		vars:    append([]*IntVar(nil), vars...),
		config:  config,
		monitor: store.Monitor(),
		logger:  logger.WithField("component", "search"),
	}
}

// Solve returns up to maxSolutions assignments of the search variables, or
// all of them if maxSolutions <= 0. Solutions are in the order vars were
// given. The store is restored to its starting level on return.
//
// Cancelling ctx stops the search and returns the solutions found so far
// together with ctx.Err().
func (s *Search) Solve(ctx context.Context, maxSolutions int) ([][]int, error) {
	solutions := make([][]int, 0)
	err := s.run(ctx, nil, func(values []int) bool {
		solutions = append(solutions, values)
		return maxSolutions <= 0 || len(solutions) < maxSolutions
	})
	return solutions, err
}

// Maximize finds an assignment maximising objective with branch and bound:
// once a solution of value b is known every node requires objective >= b+1.
// The objective must be fixed by propagation once the search variables are
// bound. The returned Solution has Values == nil when no solution exists.
func (s *Search) Maximize(ctx context.Context, objective *IntVar) (Solution, error) {
	if objective == nil {
		return Solution{}, fmt.Errorf("%w: nil objective", ErrInvalidArgument)
	}
	best := Solution{}
	bound := func(level int) error {
		if best.Values == nil {
			return nil
		}
		return s.store.InMin(level, objective, best.Objective+1)
	}
	err := s.run(ctx, bound, func(values []int) bool {
		best = Solution{Values: values, Objective: objective.Min()}
		s.logger.WithField("objective", best.Objective).Debug("improved solution")
		return true
	})
	best.Optimal = err == nil
	return best, err
}

// choice is one branch of a frame: the interval the variable is restricted to.
type choice struct{ lo, hi int }

type searchFrame struct {
	v       *IntVar
	choices []choice
	next    int
	base    int // store level the frame's branches are opened from
	opened  bool
}

// run drives the explicit-stack depth-first search. onSolution returns
// false to stop.
func (s *Search) run(ctx context.Context, bound func(level int) error, onSolution func([]int) bool) error {
	if s.monitor != nil {
		defer s.monitor.FinishSearch()
	}
	root := s.store.Level()
	defer s.store.Backtrack(root)

	// Root propagation happens in its own level so the caller's store is
	// left untouched.
	rootLevel := s.store.PushLevel()
	if err := s.store.Consistency(); err != nil {
		if IsFailure(err) {
			return nil
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v := s.selectVariable()
	if v == nil {
		s.record(onSolution)
		return nil
	}

	stack := make([]*searchFrame, 0, len(s.vars)+1)
	stack = append(stack, &searchFrame{v: v, choices: s.branch(v), base: rootLevel})

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame := stack[len(stack)-1]
		if frame.opened {
			s.store.Backtrack(frame.base)
			frame.opened = false
		}
		if frame.next >= len(frame.choices) {
			stack = stack[:len(stack)-1]
			if s.monitor != nil {
				s.monitor.RecordBacktrack()
			}
			continue
		}

		if s.monitor != nil {
			s.monitor.RecordNode()
			s.monitor.RecordDepth(len(stack))
		}

		ch := frame.choices[frame.next]
		frame.next++
		level := s.store.PushLevel()
		frame.opened = true

		err := s.store.In(level, frame.v, ch.lo, ch.hi)
		if err == nil && bound != nil {
			err = bound(level)
		}
		if err == nil {
			err = s.store.Consistency()
		}
		if err != nil {
			if !IsFailure(err) {
				return err
			}
			continue
		}

		next := s.selectVariable()
		if next == nil {
			if !s.record(onSolution) {
				return nil
			}
			continue
		}
		stack = append(stack, &searchFrame{v: next, choices: s.branch(next), base: level})
	}
	return nil
}

func (s *Search) record(onSolution func([]int) bool) bool {
	values := make([]int, len(s.vars))
	for i, v := range s.vars {
		values[i] = v.Min()
	}
	if s.monitor != nil {
		s.monitor.RecordSolution()
	}
	s.logger.WithField("values", values).Trace("solution")
	return onSolution(values)
}

// selectVariable returns the unbound variable preferred by the configured
// heuristic, or nil when all are bound.
func (s *Search) selectVariable() *IntVar {
	var best *IntVar
	bestScore := 0.0
	for i, v := range s.vars {
		if v.Singleton() {
			continue
		}
		score := s.score(i, v)
		if best == nil || score < bestScore {
			best, bestScore = v, score
		}
	}
	return best
}

// score is lower for variables to branch on first.
func (s *Search) score(i int, v *IntVar) float64 {
	switch s.config.VariableHeuristic {
	case HeuristicLex:
		return float64(i)
	case HeuristicDeg:
		return -float64(v.Degree())
	case HeuristicDomDeg:
		return float64(v.Domain().Size()) / float64(1+v.Degree())
	default:
		return float64(v.Domain().Size())
	}
}

// branch splits v's domain into the ordered choices of the value heuristic.
func (s *Search) branch(v *IntVar) []choice {
	lo, hi := v.Min(), v.Max()
	switch s.config.ValueHeuristic {
	case ValueMax:
		return []choice{{hi, hi}, {lo, hi - 1}}
	case ValueSplit:
		mid := lo + (hi-lo)/2
		return []choice{{lo, mid}, {mid + 1, hi}}
	default:
		return []choice{{lo, lo}, {lo + 1, hi}}
	}
}
