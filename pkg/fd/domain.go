package fd

import "fmt"

// Interval is a closed integer range [Min, Max]. An interval with Min > Max
// is empty.
type Interval struct {
	Min int
	Max int
}

// NewInterval returns [lo, hi].
func NewInterval(lo, hi int) Interval { return Interval{Min: lo, Max: hi} }

// IsEmpty reports whether the interval holds no value.
func (d Interval) IsEmpty() bool { return d.Min > d.Max }

// IsSingleton reports whether the interval holds exactly one value.
func (d Interval) IsSingleton() bool { return d.Min == d.Max }

// Size returns the number of values, 0 when empty.
func (d Interval) Size() int {
	if d.IsEmpty() {
		return 0
	}
	return d.Max - d.Min + 1
}

// Contains reports whether v lies in the interval.
func (d Interval) Contains(v int) bool { return v >= d.Min && v <= d.Max }

// Intersect returns d ∩ [lo, hi].
func (d Interval) Intersect(lo, hi int) Interval {
	return Interval{Min: max(d.Min, lo), Max: min(d.Max, hi)}
}

func (d Interval) String() string {
	switch {
	case d.IsEmpty():
		return "{}"
	case d.IsSingleton():
		return fmt.Sprintf("{%d}", d.Min)
	default:
		return fmt.Sprintf("{%d..%d}", d.Min, d.Max)
	}
}
