package fd

import "fmt"

// IntVar is a bounded integer variable owned by a Store. Its domain only
// shrinks through the store's narrowing calls and is restored on backtrack.
type IntVar struct {
	id    int
	name  string
	dom   Interval
	stamp int // level of the last trailed change
	deps  []Constraint
}

// ID returns the store-assigned identifier.
func (v *IntVar) ID() int { return v.id }

// Name returns the variable name given at creation.
func (v *IntVar) Name() string { return v.name }

// Min returns the lower bound.
func (v *IntVar) Min() int { return v.dom.Min }

// Max returns the upper bound.
func (v *IntVar) Max() int { return v.dom.Max }

// Domain returns the current bounds.
func (v *IntVar) Domain() Interval { return v.dom }

// Singleton reports whether the variable is bound to one value.
func (v *IntVar) Singleton() bool { return v.dom.IsSingleton() }

// Value returns the bound value. It panics when the variable is not bound.
func (v *IntVar) Value() int {
	if !v.Singleton() {
		panic(fmt.Sprintf("fd: Value called on unbound variable %s", v))
	}
	return v.dom.Min
}

// TryValue returns the bound value or ErrNotBound.
func (v *IntVar) TryValue() (int, error) {
	if !v.Singleton() {
		return 0, fmt.Errorf("%s: %w", v.name, ErrNotBound)
	}
	return v.dom.Min, nil
}

// Degree returns the number of constraints watching the variable.
func (v *IntVar) Degree() int { return len(v.deps) }

func (v *IntVar) String() string {
	return v.name + v.dom.String()
}
