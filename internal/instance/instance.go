// Package instance reads knapsack problems from YAML files and builds them
// into a store.
//
// A file looks like:
//
//	name: pantry
//	capacity: {min: 0, max: 10}
//	profit: {min: 12}
//	items:
//	  - {name: rice, weight: 2, profit: 3, max: 2}
//	  - {name: beans, weight: 3, profit: 5, max: 2}
//	solver:
//	  heuristic: domdeg
//	  value_order: max
//	  time_limit: 5s
//
// Item minimums default to 0. A missing profit maximum defaults to the
// profit of taking every item at its maximum.
package instance

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gitrdm/gokanfd/pkg/fd"
)

// ErrInvalidInstance wraps every validation failure.
var ErrInvalidInstance = errors.New("invalid instance")

// Range is an inclusive bound pair. Max is optional where a default exists.
type Range struct {
	Min int  `yaml:"min"`
	Max *int `yaml:"max,omitempty"`
}

// Item is one kind of object that can be packed.
type Item struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
	Profit int    `yaml:"profit"`
	Min    int    `yaml:"min"`
	Max    int    `yaml:"max"`
}

// SolverOptions are per-instance search settings. Command-line flags
// override them.
type SolverOptions struct {
	Heuristic   string        `yaml:"heuristic,omitempty"`
	ValueOrder  string        `yaml:"value_order,omitempty"`
	UpdateLimit int           `yaml:"update_limit,omitempty"`
	TimeLimit   time.Duration `yaml:"time_limit,omitempty"`
}

// Instance is a parsed knapsack problem.
type Instance struct {
	Name     string        `yaml:"name"`
	Capacity Range         `yaml:"capacity"`
	Profit   Range         `yaml:"profit"`
	Items    []Item        `yaml:"items"`
	Solver   SolverOptions `yaml:"solver,omitempty"`
}

// Load reads and validates the instance at path. An instance without a
// name is named after the file.
func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance %s: %w", path, err)
	}
	in, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in, nil
}

// Parse decodes and validates a YAML instance. Unknown keys are rejected.
func Parse(data []byte) (*Instance, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	in := &Instance{}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstance, err)
	}
	in.applyDefaults()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) applyDefaults() {
	for i := range in.Items {
		if in.Items[i].Name == "" {
			in.Items[i].Name = fmt.Sprintf("item%d", i)
		}
	}
	if in.Profit.Max == nil {
		total := 0
		for _, it := range in.Items {
			total += it.Profit * max(it.Max, 0)
		}
		total = max(total, in.Profit.Min)
		in.Profit.Max = &total
	}
}

// Validate reports every problem with the instance at once.
func (in *Instance) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidInstance, fmt.Sprintf(format, args...)))
	}

	if len(in.Items) == 0 {
		bad("no items")
	}
	seen := make(map[string]bool, len(in.Items))
	for i, it := range in.Items {
		if seen[it.Name] {
			bad("item %d: duplicate name %q", i, it.Name)
		}
		seen[it.Name] = true
		if it.Weight <= 0 {
			bad("item %q: weight %d must be positive", it.Name, it.Weight)
		}
		if it.Profit <= 0 {
			bad("item %q: profit %d must be positive", it.Name, it.Profit)
		}
		if it.Min < 0 {
			bad("item %q: min %d is negative", it.Name, it.Min)
		}
		if it.Max < it.Min {
			bad("item %q: max %d below min %d", it.Name, it.Max, it.Min)
		}
	}

	if in.Capacity.Max == nil {
		bad("capacity.max is required")
	} else if *in.Capacity.Max < in.Capacity.Min {
		bad("capacity max %d below min %d", *in.Capacity.Max, in.Capacity.Min)
	}
	if in.Profit.Max != nil && *in.Profit.Max < in.Profit.Min {
		bad("profit max %d below min %d", *in.Profit.Max, in.Profit.Min)
	}

	if _, err := fd.ParseVariableHeuristic(in.Solver.Heuristic); err != nil {
		bad("solver: %v", err)
	}
	if _, err := fd.ParseValueHeuristic(in.Solver.ValueOrder); err != nil {
		bad("solver: %v", err)
	}
	if in.Solver.UpdateLimit < 0 {
		bad("solver: update_limit %d is negative", in.Solver.UpdateLimit)
	}
	if in.Solver.TimeLimit < 0 {
		bad("solver: time_limit %s is negative", in.Solver.TimeLimit)
	}
	return errors.Join(errs...)
}

// Marshal encodes the instance back to YAML.
func (in *Instance) Marshal() ([]byte, error) {
	return yaml.Marshal(in)
}
