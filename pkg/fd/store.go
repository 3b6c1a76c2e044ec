package fd

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Store owns bounded integer variables, the constraints imposed on them and
// the undo trail that makes every change reversible by level.
//
// Levels increase by one at every choice point. Narrowings are stamped with
// the level they happen at; RemoveLevel(l) restores everything stamped l or
// higher, then notifies LevelListeners so constraints can rebuild caches
// derived from the restored bounds.
//
// Typical usage:
//
//	s := NewStore(nil)
//	x, _ := s.NewIntVar(0, 5, "x")
//	// impose constraints...
//	if err := s.Consistency(); IsFailure(err) { ... }
//
// A Store is not safe for concurrent use. Solve independent problems on
// independent stores.
type Store struct {
	vars        []*IntVar
	constraints []Constraint
	listeners   []LevelListener
	nextID      int

	level int
	trail []trailEntry

	queue   []Constraint
	queued  map[Constraint]bool
	current Constraint

	// entailed maps deactivated constraints to the level they were entailed at.
	entailed map[Constraint]int

	logger  logrus.FieldLogger
	monitor *SolverMonitor
}

// NewStore creates an empty store at level 0. A nil config uses
// DefaultSolverConfig.
func NewStore(cfg *SolverConfig) *Store {
	if cfg == nil {
		cfg = DefaultSolverConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		vars:     make([]*IntVar, 0, 64),
		trail:    make([]trailEntry, 0, 1024),
		queue:    make([]Constraint, 0, 32),
		queued:   make(map[Constraint]bool),
		entailed: make(map[Constraint]int),
		logger:   logger,
		monitor:  cfg.Monitor,
	}
}

// Logger returns the store's logger.
func (s *Store) Logger() logrus.FieldLogger { return s.logger }

// Monitor returns the attached monitor, possibly nil.
func (s *Store) Monitor() *SolverMonitor { return s.monitor }

// NewIntVar creates a variable with domain [lo, hi].
func (s *Store) NewIntVar(lo, hi int, name string) (*IntVar, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: variable %q has empty initial domain [%d, %d]", ErrInvalidArgument, name, lo, hi)
	}
	id := len(s.vars)
	if name == "" {
		name = fmt.Sprintf("_v%d", id)
	}
	v := &IntVar{id: id, name: name, dom: Interval{Min: lo, Max: hi}, stamp: s.level}
	s.vars = append(s.vars, v)
	return v, nil
}

// Vars returns the variables in creation order.
func (s *Store) Vars() []*IntVar { return s.vars }

// Constraints returns the imposed constraints.
func (s *Store) Constraints() []Constraint { return s.constraints }

// Level returns the current level.
func (s *Store) Level() int { return s.level }

// PushLevel opens a new level and returns it.
func (s *Store) PushLevel() int {
	s.level++
	return s.level
}

// TrailSize returns the number of pending undo entries.
func (s *Store) TrailSize() int { return len(s.trail) }

// Impose assigns c an id, lets it register itself and queues it for the
// next Consistency call. Constraints imposed above level 0 are retracted
// when their level is removed.
func (s *Store) Impose(c Constraint) error {
	c.SetID(s.nextID)
	s.nextID++
	if err := c.Impose(s); err != nil {
		return fmt.Errorf("impose %s: %w", c, err)
	}
	s.constraints = append(s.constraints, c)
	if s.level > 0 {
		s.push(trailEntry{kind: trailImposed, level: s.level, c: c})
	}
	s.enqueue(c)
	if s.monitor != nil {
		s.monitor.RecordConstraint()
	}
	s.logger.WithFields(logrus.Fields{"constraint": c.ID(), "level": s.level}).Tracef("imposed %s", c)
	return nil
}

// Watch subscribes c to changes of v.
func (s *Store) Watch(v *IntVar, c Constraint) {
	if !slices.Contains(v.deps, c) {
		v.deps = append(v.deps, c)
	}
}

// AddLevelListener registers l for RemoveLevelLate callbacks.
func (s *Store) AddLevelListener(l LevelListener) {
	s.listeners = append(s.listeners, l)
}

// retract removes a constraint imposed at a level being removed.
func (s *Store) retract(c Constraint) {
	for _, v := range c.Variables() {
		v.deps = slices.DeleteFunc(v.deps, func(d Constraint) bool { return d == c })
	}
	s.constraints = slices.DeleteFunc(s.constraints, func(d Constraint) bool { return d == c })
	if l, ok := c.(LevelListener); ok {
		s.listeners = slices.DeleteFunc(s.listeners, func(d LevelListener) bool { return d == l })
	}
	delete(s.entailed, c)
}

// InMin requires v >= lo.
func (s *Store) InMin(level int, v *IntVar, lo int) error {
	return s.In(level, v, lo, v.dom.Max)
}

// InMax requires v <= hi.
func (s *Store) InMax(level int, v *IntVar, hi int) error {
	return s.In(level, v, v.dom.Min, hi)
}

// InValue binds v to val.
func (s *Store) InValue(level int, v *IntVar, val int) error {
	return s.In(level, v, val, val)
}

// In requires lo <= v <= hi. It is a no-op when the bounds are not tighter,
// and returns an error wrapping ErrDomainEmpty when nothing is left.
func (s *Store) In(level int, v *IntVar, lo, hi int) error {
	nd := v.dom.Intersect(lo, hi)
	if nd == v.dom {
		return nil
	}
	if nd.IsEmpty() {
		if s.monitor != nil {
			s.monitor.RecordFailure()
		}
		return fmt.Errorf("%w: %s cannot take [%d, %d]", ErrDomainEmpty, v, lo, hi)
	}
	if v.stamp < level {
		s.push(trailEntry{kind: trailDomain, level: level, v: v, dom: v.dom, stamp: v.stamp})
		v.stamp = level
	}
	v.dom = nd
	if s.monitor != nil {
		s.monitor.RecordNarrowing()
	}
	for _, c := range v.deps {
		c.QueueVariable(level, v)
		if c == s.current {
			continue
		}
		if _, off := s.entailed[c]; off {
			continue
		}
		s.enqueue(c)
	}
	return nil
}

func (s *Store) enqueue(c Constraint) {
	if s.queued[c] {
		return
	}
	s.queued[c] = true
	s.queue = append(s.queue, c)
	if s.monitor != nil {
		s.monitor.RecordQueueSize(len(s.queue))
	}
}

func (s *Store) clearQueue() {
	clear(s.queued)
	clear(s.queue)
	s.queue = s.queue[:0]
}

// Consistency runs queued constraints until the queue is empty or one of
// them fails. On failure the queue is dropped; the caller is expected to
// backtrack.
func (s *Store) Consistency() error {
	for len(s.queue) > 0 {
		c := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		delete(s.queued, c)
		if _, off := s.entailed[c]; off {
			continue
		}

		if s.monitor != nil {
			s.monitor.StartPropagation()
		}
		s.current = c
		err := c.Consistency(s)
		s.current = nil
		if s.monitor != nil {
			s.monitor.EndPropagation()
		}
		if err != nil {
			s.clearQueue()
			if IsFailure(err) {
				s.logger.WithFields(logrus.Fields{"constraint": c.ID(), "level": s.level}).Tracef("failure: %v", err)
			}
			return err
		}
		if c.Satisfied() {
			s.entailed[c] = s.level
			if s.level > 0 {
				s.push(trailEntry{kind: trailEntailed, level: s.level, c: c})
			}
		}
	}
	return nil
}

// RemoveLevel restores every change stamped at level or above, then calls
// RemoveLevelLate(level) on all listeners. The store ends up at level-1.
func (s *Store) RemoveLevel(level int) {
	s.undo(level)
	s.clearQueue()
	for _, l := range s.listeners {
		l.RemoveLevelLate(level)
	}
	if s.level >= level {
		s.level = level - 1
	}
}

// Backtrack removes levels down to, but excluding, level to.
func (s *Store) Backtrack(to int) {
	for l := s.level; l > to; l-- {
		s.RemoveLevel(l)
	}
}

// Snapshot returns the current domains in variable creation order.
func (s *Store) Snapshot() []Interval {
	out := make([]Interval, len(s.vars))
	for i, v := range s.vars {
		out[i] = v.dom
	}
	return out
}
