package fd

// LinearSum enforces Σ a[i]*x[i] = t with bounds-consistent propagation.
//
// Propagation:
//   - Prune t to [SumMin..SumMax], where
//     SumMin = Σ (a[i]>0 ? a[i]*min(x[i]) : a[i]*max(x[i]))
//     SumMax = Σ (a[i]>0 ? a[i]*max(x[i]) : a[i]*min(x[i]))
//   - For each x[k], a[k]*x[k] ∈ [t.min - OtherMax, t.max - OtherMin],
//     turned into bounds on x[k] with sign-aware ceil/floor division.
//
// The rule is repeated until nothing changes, since the store does not
// re-queue a constraint for its own narrowings.

import (
	"fmt"
	"strings"
)

// LinearSum is a bounds-consistent weighted sum constraint.
type LinearSum struct {
	BaseConstraint
	vars   []*IntVar
	coeffs []int
	total  *IntVar
}

// NewLinearSum constructs Σ coeffs[i]*vars[i] = total.
func NewLinearSum(vars []*IntVar, coeffs []int, total *IntVar) (*LinearSum, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: LinearSum: vars cannot be empty", ErrInvalidArgument)
	}
	if len(vars) != len(coeffs) {
		return nil, fmt.Errorf("%w: LinearSum: %d vars but %d coefficients", ErrInvalidArgument, len(vars), len(coeffs))
	}
	if total == nil {
		return nil, fmt.Errorf("%w: LinearSum: total cannot be nil", ErrInvalidArgument)
	}
	for i, v := range vars {
		if v == nil {
			return nil, fmt.Errorf("%w: LinearSum: vars[%d] is nil", ErrInvalidArgument, i)
		}
	}
	return &LinearSum{
		vars:   append([]*IntVar(nil), vars...),
		coeffs: append([]int(nil), coeffs...),
		total:  total,
	}, nil
}

// Impose watches every term and the total.
func (c *LinearSum) Impose(s *Store) error {
	for _, v := range c.vars {
		s.Watch(v, c)
	}
	s.Watch(c.total, c)
	return nil
}

// QueueVariable is a no-op; Consistency always rescans every term.
func (c *LinearSum) QueueVariable(int, *IntVar) {}

// Consistency prunes the total and every term until a fixpoint.
func (c *LinearSum) Consistency(s *Store) error {
	level := s.Level()
	for {
		changed := false

		sumMin, sumMax := 0, 0
		for i, v := range c.vars {
			lo, hi := c.term(i, v)
			sumMin += lo
			sumMax += hi
		}

		before := c.total.Domain()
		if err := s.In(level, c.total, sumMin, sumMax); err != nil {
			return err
		}
		changed = changed || before != c.total.Domain()

		for k, v := range c.vars {
			a := c.coeffs[k]
			if a == 0 {
				continue
			}
			lo, hi := c.term(k, v)
			otherMin, otherMax := sumMin-lo, sumMax-hi
			low := c.total.Min() - otherMax
			high := c.total.Max() - otherMin

			var newMin, newMax int
			if a > 0 {
				newMin, newMax = ceilDiv(low, a), floorDiv(high, a)
			} else {
				newMin, newMax = ceilDiv(-high, -a), floorDiv(-low, -a)
			}

			d := v.Domain()
			if err := s.In(level, v, newMin, newMax); err != nil {
				return err
			}
			if d != v.Domain() {
				changed = true
				nlo, nhi := c.term(k, v)
				sumMin += nlo - lo
				sumMax += nhi - hi
			}
		}

		if !changed {
			return nil
		}
	}
}

// term returns the contribution range of a[i]*x[i].
func (c *LinearSum) term(i int, v *IntVar) (int, int) {
	a := c.coeffs[i]
	if a >= 0 {
		return a * v.Min(), a * v.Max()
	}
	return a * v.Max(), a * v.Min()
}

// Satisfied reports whether every variable is bound and the sum holds.
func (c *LinearSum) Satisfied() bool {
	if !c.total.Singleton() {
		return false
	}
	sum := 0
	for i, v := range c.vars {
		if !v.Singleton() {
			return false
		}
		sum += c.coeffs[i] * v.Min()
	}
	return sum == c.total.Min()
}

// Variables returns the terms followed by the total.
func (c *LinearSum) Variables() []*IntVar {
	out := make([]*IntVar, 0, len(c.vars)+1)
	out = append(out, c.vars...)
	return append(out, c.total)
}

func (c *LinearSum) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LinearSum#%d(", c.ID())
	for i, v := range c.vars {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%d*%s", c.coeffs[i], v.Name())
	}
	fmt.Fprintf(&b, " = %s)", c.total.Name())
	return b.String()
}

// ceilDiv returns ceil(a/b) for b > 0.
func ceilDiv(a, b int) int {
	if b <= 0 {
		panic("ceilDiv: non-positive divisor")
	}
	if a >= 0 {
		return (a + b - 1) / b
	}
	return a / b
}

// floorDiv returns floor(a/b) for b > 0.
func floorDiv(a, b int) int {
	if b <= 0 {
		panic("floorDiv: non-positive divisor")
	}
	if a >= 0 || a%b == 0 {
		return a / b
	}
	return a/b - 1
}
