package knapsack

import "math/bits"

// changeLog lists the leaf positions touched during one level. Once more
// than limit entries would be needed it drops them and only remembers that
// a full recompute is due.
type changeLog struct {
	positions []int
	overflow  bool
}

func (l *changeLog) add(pos, limit int) {
	if l.overflow {
		return
	}
	if len(l.positions) >= limit {
		l.overflow = true
		l.positions = l.positions[:0]
		return
	}
	l.positions = append(l.positions, pos)
}

func (l *changeLog) reset() {
	l.positions = l.positions[:0]
	l.overflow = false
}

func (l *changeLog) empty() bool { return !l.overflow && len(l.positions) == 0 }

// apply brings the tree up to date with every leaf in the log. It reports
// whether a full recompute was needed.
func (l *changeLog) apply(t *Tree) bool {
	if l.overflow {
		t.recompute()
		return true
	}
	t.updateFromList(l.positions, 0)
	return false
}

// defaultUpdateLimit returns max(1, n/log2(n)): past that many changed
// leaves, k·log n incremental updates cost more than one O(n) recompute.
func defaultUpdateLimit(n int) int {
	lg := bits.Len(uint(n)) - 1
	if lg < 1 {
		return 1
	}
	return max(1, n/lg)
}
