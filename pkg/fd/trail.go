package fd

type trailKind uint8

const (
	trailDomain trailKind = iota
	trailInt
	trailEntailed
	trailImposed
)

// trailEntry records the state to restore when its level is removed.
type trailEntry struct {
	kind  trailKind
	level int

	v     *IntVar
	dom   Interval
	stamp int

	cell *TrailedInt
	old  int

	c Constraint
}

// TrailedInt is an integer cell whose value is restored on backtrack.
type TrailedInt struct {
	s     *Store
	value int
	stamp int
}

// NewTrailedInt creates a trailed cell holding v.
func (s *Store) NewTrailedInt(v int) *TrailedInt {
	return &TrailedInt{s: s, value: v, stamp: s.level}
}

// Value returns the current value.
func (t *TrailedInt) Value() int { return t.value }

// Set updates the value at the given level. The previous value is trailed
// once per level.
func (t *TrailedInt) Set(level, v int) {
	if t.value == v {
		return
	}
	if t.stamp < level {
		t.s.push(trailEntry{kind: trailInt, level: level, cell: t, old: t.value, stamp: t.stamp})
		t.stamp = level
	}
	t.value = v
}

func (s *Store) push(e trailEntry) {
	s.trail = append(s.trail, e)
	if s.monitor != nil {
		s.monitor.RecordTrailSize(len(s.trail))
	}
}

// undo restores every entry stamped at level or above.
func (s *Store) undo(level int) {
	i := len(s.trail) - 1
	for ; i >= 0 && s.trail[i].level >= level; i-- {
		e := s.trail[i]
		switch e.kind {
		case trailDomain:
			e.v.dom = e.dom
			e.v.stamp = e.stamp
		case trailInt:
			e.cell.value = e.old
			e.cell.stamp = e.stamp
		case trailEntailed:
			delete(s.entailed, e.c)
		case trailImposed:
			s.retract(e.c)
		}
	}
	clear(s.trail[i+1:])
	s.trail = s.trail[:i+1]
}
