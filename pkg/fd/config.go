package fd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// VariableHeuristic selects the next variable to branch on.
type VariableHeuristic int

const (
	// HeuristicDom picks the smallest domain first.
	HeuristicDom VariableHeuristic = iota
	// HeuristicLex picks variables in the order they were given.
	HeuristicLex
	// HeuristicDeg picks the variable watched by the most constraints.
	HeuristicDeg
	// HeuristicDomDeg picks the smallest domain/degree ratio.
	HeuristicDomDeg
)

func (h VariableHeuristic) String() string {
	switch h {
	case HeuristicDom:
		return "dom"
	case HeuristicLex:
		return "lex"
	case HeuristicDeg:
		return "deg"
	case HeuristicDomDeg:
		return "domdeg"
	default:
		return fmt.Sprintf("VariableHeuristic(%d)", int(h))
	}
}

// ValueHeuristic selects how the chosen variable's domain is split.
type ValueHeuristic int

const (
	// ValueMin tries the lower bound first, then the rest.
	ValueMin ValueHeuristic = iota
	// ValueMax tries the upper bound first, then the rest.
	ValueMax
	// ValueSplit bisects the domain, lower half first.
	ValueSplit
)

func (h ValueHeuristic) String() string {
	switch h {
	case ValueMin:
		return "min"
	case ValueMax:
		return "max"
	case ValueSplit:
		return "split"
	default:
		return fmt.Sprintf("ValueHeuristic(%d)", int(h))
	}
}

// ParseVariableHeuristic maps a name to a VariableHeuristic.
func ParseVariableHeuristic(name string) (VariableHeuristic, error) {
	switch strings.ToLower(name) {
	case "", "dom":
		return HeuristicDom, nil
	case "lex":
		return HeuristicLex, nil
	case "deg":
		return HeuristicDeg, nil
	case "domdeg":
		return HeuristicDomDeg, nil
	}
	return 0, fmt.Errorf("%w: unknown variable heuristic %q", ErrInvalidArgument, name)
}

// ParseValueHeuristic maps a name to a ValueHeuristic.
func ParseValueHeuristic(name string) (ValueHeuristic, error) {
	switch strings.ToLower(name) {
	case "", "min":
		return ValueMin, nil
	case "max":
		return ValueMax, nil
	case "split":
		return ValueSplit, nil
	}
	return 0, fmt.Errorf("%w: unknown value heuristic %q", ErrInvalidArgument, name)
}

// SolverConfig holds store and search settings.
type SolverConfig struct {
	VariableHeuristic VariableHeuristic
	ValueHeuristic    ValueHeuristic
	// Logger receives store and search diagnostics. Nil means logrus.StandardLogger().
	Logger logrus.FieldLogger
	// Monitor collects statistics when set.
	Monitor *SolverMonitor
}

// DefaultSolverConfig returns dom/min search with the standard logger.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		VariableHeuristic: HeuristicDom,
		ValueHeuristic:    ValueMin,
		Logger:            logrus.StandardLogger(),
	}
}
