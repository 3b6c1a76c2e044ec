package fd

// Constraint is a propagator registered with a Store.
//
// The store calls QueueVariable synchronously whenever a watched variable
// changes, including changes made by the constraint itself, and later runs
// Consistency from its queue. A constraint is never re-queued by its own
// narrowings while its Consistency is running, so Consistency has to reach
// its own fixpoint before returning.
type Constraint interface {
	// ID returns the identifier assigned by Store.Impose.
	ID() int
	// SetID is called once by the store at imposition.
	SetID(id int)
	// Impose registers watches and builds internal state.
	Impose(s *Store) error
	// QueueVariable records that v changed at the given level.
	QueueVariable(level int, v *IntVar)
	// Consistency narrows domains. Returned errors wrapping ErrInconsistent
	// make the search backtrack.
	Consistency(s *Store) error
	// Satisfied reports entailment. Entailed constraints are deactivated
	// until the store backtracks past the entailment level.
	Satisfied() bool
	// Variables returns every variable the constraint reads.
	Variables() []*IntVar
	String() string
}

// LevelListener is notified after the store has restored all trailed state
// of a removed level.
type LevelListener interface {
	RemoveLevelLate(level int)
}

// BaseConstraint carries the store-assigned id. Embed it in constraint types.
type BaseConstraint struct {
	id int
}

// ID returns the assigned identifier.
func (b *BaseConstraint) ID() int { return b.id }

// SetID stores the identifier.
func (b *BaseConstraint) SetID(id int) { b.id = id }
