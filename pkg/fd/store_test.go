package fd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a constraint that only records notifications.
type recorder struct {
	BaseConstraint
	vars    []*IntVar
	events  []string
	late    []int
	runs    int
	fail    bool
	satisfy bool
}

func (r *recorder) Impose(s *Store) error {
	for _, v := range r.vars {
		s.Watch(v, r)
	}
	s.AddLevelListener(r)
	return nil
}

func (r *recorder) QueueVariable(level int, v *IntVar) {
	r.events = append(r.events, fmt.Sprintf("%d:%s", level, v))
}

func (r *recorder) Consistency(*Store) error {
	r.runs++
	if r.fail {
		return Fail("recorder asked to fail")
	}
	return nil
}

func (r *recorder) RemoveLevelLate(level int) { r.late = append(r.late, level) }
func (r *recorder) Satisfied() bool           { return r.satisfy }
func (r *recorder) Variables() []*IntVar      { return r.vars }
func (r *recorder) String() string            { return "recorder" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewStore(&SolverConfig{Logger: logger, Monitor: NewSolverMonitor()})
}

func TestNewIntVar(t *testing.T) {
	s := newTestStore(t)
	x, err := s.NewIntVar(0, 5, "x")
	require.NoError(t, err)
	assert.Equal(t, 0, x.ID())
	assert.Equal(t, "x{0..5}", x.String())
	assert.False(t, x.Singleton())

	_, err = s.NewIntVar(3, 2, "bad")
	require.ErrorIs(t, err, ErrInvalidArgument)

	y, err := s.NewIntVar(4, 4, "")
	require.NoError(t, err)
	assert.Equal(t, "_v1", y.Name())
	assert.Equal(t, 4, y.Value())

	_, err = x.TryValue()
	require.ErrorIs(t, err, ErrNotBound)
	assert.Panics(t, func() { x.Value() })
}

func TestNarrowingTrailsOncePerLevel(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")

	l := s.PushLevel()
	require.NoError(t, s.InMin(l, x, 2))
	require.NoError(t, s.InMax(l, x, 8))
	require.NoError(t, s.In(l, x, 3, 7))
	assert.Equal(t, 1, s.TrailSize())
	assert.Equal(t, Interval{3, 7}, x.Domain())

	l2 := s.PushLevel()
	require.NoError(t, s.InValue(l2, x, 5))
	assert.Equal(t, 2, s.TrailSize())

	s.RemoveLevel(l2)
	assert.Equal(t, Interval{3, 7}, x.Domain())
	assert.Equal(t, l, s.Level())

	s.RemoveLevel(l)
	assert.Equal(t, Interval{0, 10}, x.Domain())
	assert.Equal(t, 0, s.Level())
	assert.Equal(t, 0, s.TrailSize())
	assert.Equal(t, []Interval{{0, 10}}, s.Snapshot())
}

func TestNarrowingNoopAndFailure(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(2, 4, "x")
	r := &recorder{vars: []*IntVar{x}}
	require.NoError(t, s.Impose(r))

	require.NoError(t, s.In(0, x, 0, 9))
	assert.Empty(t, r.events, "widening must not notify")

	err := s.InMin(0, x, 5)
	require.Error(t, err)
	assert.True(t, IsFailure(err))
	assert.ErrorIs(t, err, ErrDomainEmpty)
	assert.Equal(t, Interval{2, 4}, x.Domain())
	assert.Equal(t, 1, s.Monitor().GetStats().Failures)
}

func TestLevelZeroChangesArePermanent(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	require.NoError(t, s.InMax(0, x, 4))
	assert.Equal(t, 0, s.TrailSize())
	s.Backtrack(0)
	assert.Equal(t, 4, x.Max())
}

func TestNotificationAndQueue(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	y, _ := s.NewIntVar(0, 10, "y")
	a := &recorder{vars: []*IntVar{x}}
	b := &recorder{vars: []*IntVar{x, y}}
	require.NoError(t, s.Impose(a))
	require.NoError(t, s.Impose(b))
	assert.Equal(t, 0, a.ID())
	assert.Equal(t, 1, b.ID())

	require.NoError(t, s.Consistency())
	assert.Equal(t, 1, a.runs)
	assert.Equal(t, 1, b.runs)

	l := s.PushLevel()
	require.NoError(t, s.InMax(l, y, 3))
	require.NoError(t, s.InMax(l, x, 3))
	require.NoError(t, s.Consistency())
	assert.Equal(t, []string{"1:x{0..3}"}, a.events)
	assert.Equal(t, []string{"1:y{0..3}", "1:x{0..3}"}, b.events)
	assert.Equal(t, 2, a.runs)
	assert.Equal(t, 2, b.runs, "queued once despite two events")
}

func TestRemoveLevelCallsListenersAfterRestore(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	var seen []Interval
	r := &lateProbe{recorder: recorder{vars: []*IntVar{x}}, probe: func() { seen = append(seen, x.Domain()) }}
	require.NoError(t, s.Impose(r))

	l1 := s.PushLevel()
	require.NoError(t, s.InMax(l1, x, 6))
	l2 := s.PushLevel()
	require.NoError(t, s.InMax(l2, x, 2))

	s.Backtrack(0)
	assert.Equal(t, []int{2, 1}, r.late)
	if diff := cmp.Diff([]Interval{{0, 6}, {0, 10}}, seen); diff != "" {
		t.Fatalf("domains seen by RemoveLevelLate (-want +got):\n%s", diff)
	}
}

type lateProbe struct {
	recorder
	probe func()
}

func (p *lateProbe) Impose(s *Store) error {
	for _, v := range p.vars {
		s.Watch(v, p)
	}
	s.AddLevelListener(p)
	return nil
}

func (p *lateProbe) RemoveLevelLate(level int) {
	p.probe()
	p.recorder.RemoveLevelLate(level)
}

func TestTrailedInt(t *testing.T) {
	s := newTestStore(t)
	c := s.NewTrailedInt(7)

	l1 := s.PushLevel()
	c.Set(l1, 3)
	c.Set(l1, 4)
	l2 := s.PushLevel()
	c.Set(l2, 9)
	assert.Equal(t, 9, c.Value())

	s.RemoveLevel(l2)
	assert.Equal(t, 4, c.Value())
	s.RemoveLevel(l1)
	assert.Equal(t, 7, c.Value())
}

func TestFailureClearsQueue(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	bad := &recorder{vars: []*IntVar{x}, fail: true}
	other := &recorder{vars: []*IntVar{x}}
	require.NoError(t, s.Impose(bad))
	require.NoError(t, s.Impose(other))

	err := s.Consistency()
	require.Error(t, err)
	assert.True(t, IsFailure(err))
	assert.Equal(t, 0, other.runs)

	require.NoError(t, s.Consistency(), "queue is empty after a failure")
}

func TestEntailedConstraintRevivedOnBacktrack(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	r := &recorder{vars: []*IntVar{x}}
	require.NoError(t, s.Impose(r))
	require.NoError(t, s.Consistency())

	l := s.PushLevel()
	r.satisfy = true
	require.NoError(t, s.InMax(l, x, 5))
	require.NoError(t, s.Consistency())
	assert.Equal(t, 2, r.runs)

	require.NoError(t, s.InMax(l, x, 4))
	require.NoError(t, s.Consistency())
	assert.Equal(t, 2, r.runs, "entailed constraint is not run")

	s.RemoveLevel(l)
	r.satisfy = false
	l = s.PushLevel()
	require.NoError(t, s.InMax(l, x, 3))
	require.NoError(t, s.Consistency())
	assert.Equal(t, 3, r.runs)
}

func TestImposeAboveRootIsRetracted(t *testing.T) {
	s := newTestStore(t)
	x, _ := s.NewIntVar(0, 10, "x")
	l := s.PushLevel()
	r := &recorder{vars: []*IntVar{x}}
	require.NoError(t, s.Impose(r))
	assert.Len(t, s.Constraints(), 1)

	s.RemoveLevel(l)
	assert.Empty(t, s.Constraints())
	assert.Equal(t, 0, x.Degree())
	require.NoError(t, s.InMax(0, x, 2))
	assert.Empty(t, r.events)
}

func TestStoreLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	s := NewStore(&SolverConfig{Logger: logger})
	x, _ := s.NewIntVar(0, 10, "x")
	require.NoError(t, s.Impose(&recorder{vars: []*IntVar{x}, fail: true}))
	require.Error(t, s.Consistency())
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "failure")
}

func TestFailWrapsInconsistent(t *testing.T) {
	err := Fail("x=%d", 3)
	assert.True(t, errors.Is(err, ErrInconsistent))
	assert.Equal(t, "constraint store is inconsistent: x=3", err.Error())
	assert.False(t, IsFailure(ErrInvalidArgument))
}
