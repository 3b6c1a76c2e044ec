package knapsack

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvariant reports a tree whose cached aggregates or slices disagree
// with the variable bounds. It is only checked when Options.Debug is set.
var ErrInvariant = errors.New("knapsack: internal invariant violated")

// Tree is an order-statistics tree over the items sorted by decreasing
// efficiency. Its shape is fixed at construction; only the cached
// aggregates, the slices and the running totals change.
//
// The critical leaf is the first leaf, in efficiency order, that a greedy
// fill of the remaining capacity can only take in part. Every leaf left of
// it is fully used by the fractional optimum and every leaf right of it is
// unused.
type Tree struct {
	nodes  []node
	leaves []leaf // by position
	root   int

	alreadyUsedCapacity   int
	alreadyObtainedProfit int

	critical      int // position; len(leaves) when everything fits
	criticalLeft  int
	criticalRight int

	// Fractional optimum for the remaining capacity at the last critical
	// computation.
	remaining     int     // capacity.max - alreadyUsedCapacity
	prefixW       int     // remaining weight strictly left of the critical leaf
	prefixP       int     // remaining profit strictly left of the critical leaf
	criticalUsed  int     // weight of the critical leaf taken by the optimum
	optimalProfit float64 // prefixP plus the fractional part of the critical leaf
	profitBound   int     // floor(optimalProfit)
}

// newTree builds a balanced tree over items, which must already be sorted.
func newTree(items []*Item) *Tree {
	n := len(items)
	t := &Tree{
		nodes:    make([]node, 0, 2*n),
		leaves:   make([]leaf, n),
		critical: n,
	}
	for i, it := range items {
		t.leaves[i] = leaf{
			item:          it,
			position:      i,
			leftNeighbor:  i - 1,
			rightNeighbor: i + 1,
		}
	}
	if n > 0 {
		t.leaves[n-1].rightNeighbor = none
		t.root = t.build(0, n-1, none)
	} else {
		t.root = none
	}
	t.criticalLeft, t.criticalRight = none, none
	return t
}

func (t *Tree) build(lo, hi, parent int) int {
	i := len(t.nodes)
	t.nodes = append(t.nodes, node{parent: parent, left: none, right: none, leaf: none})
	if lo == hi {
		t.nodes[i].leaf = lo
		t.leaves[lo].node = i
		return i
	}
	mid := lo + (hi-lo)/2
	l := t.build(lo, mid, i)
	r := t.build(mid+1, hi, i)
	t.nodes[i].left, t.nodes[i].right = l, r
	return i
}

// size returns the number of leaves.
func (t *Tree) size() int { return len(t.leaves) }

func (t *Tree) rootNode() node {
	if t.root == none {
		return node{}
	}
	return t.nodes[t.root]
}

// leafWeight returns the cached remaining weight of the leaf at pos.
func (t *Tree) leafWeight(pos int) int { return t.nodes[t.leaves[pos].node].wSum }

// recompute refreshes every leaf and aggregate from the current bounds.
func (t *Tree) recompute() {
	if t.root != none {
		t.recomputeDown(t.root)
	}
}

// updateFromList refreshes the leaves at positions list[start:] and their
// ancestors.
func (t *Tree) updateFromList(list []int, start int) {
	for _, pos := range list[start:] {
		l := &t.leaves[pos]
		l.updateInternalValues(t)
		t.recomputeUp(t.nodes[l.node].parent)
	}
}

// scanRight consumes leaves from position start rightwards while
// fits(accumulated weight, accumulated profit) holds, taking whole subtrees
// at a time. fits must be monotone. It returns the first position not
// consumed (size() when all were) and the consumed sums.
func (t *Tree) scanRight(start int, fits func(w, p int) bool) (int, int, int) {
	n := t.size()
	if start >= n {
		return n, 0, 0
	}
	w, p := 0, 0
	i := t.leaves[max(start, 0)].node
	for {
		nd := &t.nodes[i]
		if !fits(w+nd.wSum, p+nd.pSum) {
			break
		}
		w += nd.wSum
		p += nd.pSum
		for {
			par := t.nodes[i].parent
			if par == none {
				return n, w, p
			}
			if t.nodes[par].left == i {
				i = t.nodes[par].right
				break
			}
			i = par
		}
	}
	for !t.nodes[i].isLeaf() {
		l := &t.nodes[t.nodes[i].left]
		if fits(w+l.wSum, p+l.pSum) {
			w += l.wSum
			p += l.pSum
			i = t.nodes[i].right
		} else {
			i = t.nodes[i].left
		}
	}
	return t.nodes[i].leaf, w, p
}

// scanLeft is scanRight mirrored: it consumes leaves from start leftwards
// and returns none when every leaf was consumed.
func (t *Tree) scanLeft(start int, fits func(w, p int) bool) (int, int, int) {
	if start < 0 {
		return none, 0, 0
	}
	w, p := 0, 0
	i := t.leaves[min(start, t.size()-1)].node
	for {
		nd := &t.nodes[i]
		if !fits(w+nd.wSum, p+nd.pSum) {
			break
		}
		w += nd.wSum
		p += nd.pSum
		for {
			par := t.nodes[i].parent
			if par == none {
				return none, w, p
			}
			if t.nodes[par].right == i {
				i = t.nodes[par].left
				break
			}
			i = par
		}
	}
	for !t.nodes[i].isLeaf() {
		r := &t.nodes[t.nodes[i].right]
		if fits(w+r.wSum, p+r.pSum) {
			w += r.wSum
			p += r.pSum
			i = t.nodes[i].left
		} else {
			i = t.nodes[i].right
		}
	}
	return t.nodes[i].leaf, w, p
}

// prefix returns the remaining weight and profit of the leaves strictly
// before pos.
func (t *Tree) prefix(pos int) (int, int) {
	if pos >= t.size() {
		r := t.rootNode()
		return r.wSum, r.pSum
	}
	w, p := 0, 0
	i := t.leaves[pos].node
	for par := t.nodes[i].parent; par != none; i, par = par, t.nodes[par].parent {
		if t.nodes[par].right == i {
			l := &t.nodes[t.nodes[par].left]
			w += l.wSum
			p += l.pSum
		}
	}
	return w, p
}

// updateCritical finds the critical leaf for remainingCapacity: every leaf
// before it fits, and it does not.
func (t *Tree) updateCritical(remainingCapacity int) {
	pos, w, p := t.scanRight(0, func(w, _ int) bool { return w <= remainingCapacity })
	t.setCritical(pos, w, p, remainingCapacity)
}

// refreshCritical keeps the current critical position if it is still the
// split point for remainingCapacity and recomputes it otherwise.
func (t *Tree) refreshCritical(remainingCapacity int) {
	pos := t.critical
	w, p := t.prefix(pos)
	if w <= remainingCapacity && (pos >= t.size() || w+t.leafWeight(pos) > remainingCapacity) {
		t.setCritical(pos, w, p, remainingCapacity)
		return
	}
	t.updateCritical(remainingCapacity)
}

func (t *Tree) setCritical(pos, w, p, remainingCapacity int) {
	n := t.size()
	t.critical = pos
	t.remaining = remainingCapacity
	t.prefixW, t.prefixP = w, p
	t.criticalLeft, t.criticalRight = pos-1, pos+1
	if pos >= n {
		t.criticalRight = none
		t.criticalUsed = 0
		t.optimalProfit = float64(p)
		t.profitBound = p
		return
	}
	if pos == 0 {
		t.criticalLeft = none
	}
	if pos == n-1 {
		t.criticalRight = none
	}
	it := t.leaves[pos].item
	used := remainingCapacity - w
	t.criticalUsed = used
	t.optimalProfit = float64(p) + float64(used)*float64(it.profit)/float64(it.weight)
	t.profitBound = p + used*it.profit/it.weight
}

// computeMinWeight returns the least remaining weight that can yield
// requiredProfit more profit, taking items in efficiency order and the
// last one in part. ok is false when the remaining items cannot reach it.
func (t *Tree) computeMinWeight(requiredProfit int) (weight int, ok bool) {
	if requiredProfit <= 0 {
		return 0, true
	}
	if t.rootNode().pSum < requiredProfit {
		return 0, false
	}
	pos, w, p := t.scanRight(0, func(_, p int) bool { return p < requiredProfit })
	it := t.leaves[pos].item
	return w + ceilDiv((requiredProfit-p)*it.weight, it.profit), true
}

// computeMinProfit returns the least profit obtainable while using
// requiredWeight more weight, taking the least efficient items first.
func (t *Tree) computeMinProfit(requiredWeight int) (profit int, ok bool) {
	if requiredWeight <= 0 {
		return 0, true
	}
	if t.rootNode().wSum < requiredWeight {
		return 0, false
	}
	pos, w, p := t.scanLeft(t.size()-1, func(w, _ int) bool { return w < requiredWeight })
	it := t.leaves[pos].item
	return p + ceilDiv((requiredWeight-w)*it.profit, it.weight), true
}

// slackTolerance widens float comparisons so rounding never prunes a value.
func slackTolerance(slack float64) float64 { return 1e-9 * (1 + math.Abs(slack)) }

// computeReplacableWeight returns how much of the weight of the leaf at
// pos, which lies left of the critical leaf, can be given up while the
// fractional optimum loses at most slack profit. Freed capacity is refilled
// with the unused part of the critical leaf, then with the leaves right of
// it in order.
func (t *Tree) computeReplacableWeight(pos int, slack float64) float64 {
	slack = max(slack, 0)
	tol := slackTolerance(slack)
	it := t.leaves[pos].item
	limit := float64(t.leafWeight(pos))
	e := it.Efficiency()

	if t.critical >= t.size() {
		return min(limit, slack/e)
	}

	c := t.leaves[t.critical].item
	ec := c.Efficiency()
	taken := float64(t.leafWeight(t.critical) - t.criticalUsed)
	if taken*(e-ec) > slack+tol {
		return min(limit, slack/(e-ec))
	}
	gain := taken * ec
	if taken >= limit {
		return limit
	}

	next, w, p := t.scanRight(t.critical+1, func(w, p int) bool {
		x := taken + float64(w)
		return x <= limit && x*e-(gain+float64(p)) <= slack+tol
	})
	taken += float64(w)
	gain += float64(p)
	room := max(slack-(taken*e-gain), 0)
	if next >= t.size() {
		return min(limit, taken+room/e)
	}
	ej := t.leaves[next].item.Efficiency()
	y := float64(t.leafWeight(next))
	if e > ej {
		y = min(y, room/(e-ej))
	}
	return min(limit, taken+y)
}

// computeIntrusionWeight returns how much weight of the leaf at pos, which
// lies right of the critical leaf, can be packed while the fractional
// optimum loses at most slack profit. The intruding weight evicts the used
// part of the critical leaf first, then the leaves left of it from the
// least efficient one.
func (t *Tree) computeIntrusionWeight(pos int, slack float64) float64 {
	slack = max(slack, 0)
	tol := slackTolerance(slack)
	it := t.leaves[pos].item
	limit := float64(min(t.leafWeight(pos), t.remaining))
	e := it.Efficiency()

	c := t.leaves[t.critical].item
	ec := c.Efficiency()
	taken := float64(t.criticalUsed)
	if taken*(ec-e) > slack+tol {
		return min(limit, slack/(ec-e))
	}
	lost := taken * ec
	if taken >= limit {
		return limit
	}

	prev, w, p := t.scanLeft(t.critical-1, func(w, p int) bool {
		x := taken + float64(w)
		return x <= limit && (lost+float64(p))-x*e <= slack+tol
	})
	taken += float64(w)
	lost += float64(p)
	if prev == none {
		return min(limit, taken)
	}
	room := max(slack-(lost-taken*e), 0)
	ei := t.leaves[prev].item.Efficiency()
	y := float64(t.leafWeight(prev))
	if ei > e {
		y = min(y, room/(ei-e))
	}
	return min(limit, taken+y)
}

// getFirst returns the first leaf with remaining weight, or none.
func (t *Tree) getFirst() int { return t.findNextLeafAtLeastOfWeight(none, 0) }

// getLast returns the last leaf with remaining weight, or none.
func (t *Tree) getLast() int { return t.findPreviousLeafAtLeastOfWeight(t.size(), 0) }

// findNextLeafAtLeastOfWeight returns the first position after pos whose
// remaining weight exceeds weight, or none. Subtrees whose wMax is too
// small are skipped whole.
func (t *Tree) findNextLeafAtLeastOfWeight(pos, weight int) int {
	start := pos + 1
	if start >= t.size() {
		return none
	}
	i := t.leaves[max(start, 0)].node
	for t.nodes[i].wMax <= weight {
		for {
			par := t.nodes[i].parent
			if par == none {
				return none
			}
			if t.nodes[par].left == i {
				i = t.nodes[par].right
				break
			}
			i = par
		}
	}
	for !t.nodes[i].isLeaf() {
		if l := t.nodes[i].left; t.nodes[l].wMax > weight {
			i = l
		} else {
			i = t.nodes[i].right
		}
	}
	return t.nodes[i].leaf
}

// findPreviousLeafAtLeastOfWeight is findNextLeafAtLeastOfWeight mirrored.
func (t *Tree) findPreviousLeafAtLeastOfWeight(pos, weight int) int {
	start := pos - 1
	if start < 0 || t.size() == 0 {
		return none
	}
	i := t.leaves[min(start, t.size()-1)].node
	for t.nodes[i].wMax <= weight {
		for {
			par := t.nodes[i].parent
			if par == none {
				return none
			}
			if t.nodes[par].right == i {
				i = t.nodes[par].left
				break
			}
			i = par
		}
	}
	for !t.nodes[i].isLeaf() {
		if r := t.nodes[i].right; t.nodes[r].wMax > weight {
			i = r
		} else {
			i = t.nodes[i].left
		}
	}
	return t.nodes[i].leaf
}

// validate checks slices, leaf aggregates, internal aggregates and running
// totals against the current bounds.
func (t *Tree) validate() error {
	usedW, usedP := 0, 0
	for pos := range t.leaves {
		l := &t.leaves[pos]
		q := l.item.quantity
		if l.slice != q.Min() || l.slice < 0 || l.slice > q.Max() {
			return fmt.Errorf("%w: leaf %d slice %d, quantity %s", ErrInvariant, pos, l.slice, q)
		}
		n := &t.nodes[l.node]
		r := q.Max() - l.slice
		if n.wSum != r*l.item.weight || n.wMax != n.wSum || n.pSum != r*l.item.profit {
			return fmt.Errorf("%w: leaf %d aggregates (%d,%d,%d), quantity %s", ErrInvariant, pos, n.wMax, n.wSum, n.pSum, q)
		}
		usedW += l.slice * l.item.weight
		usedP += l.slice * l.item.profit
	}
	if usedW != t.alreadyUsedCapacity || usedP != t.alreadyObtainedProfit {
		return fmt.Errorf("%w: totals (%d,%d), slices give (%d,%d)", ErrInvariant,
			t.alreadyUsedCapacity, t.alreadyObtainedProfit, usedW, usedP)
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.isLeaf() {
			continue
		}
		l, r := &t.nodes[n.left], &t.nodes[n.right]
		if n.wSum != l.wSum+r.wSum || n.pSum != l.pSum+r.pSum || n.wMax != max(l.wMax, r.wMax) {
			return fmt.Errorf("%w: node %d aggregates (%d,%d,%d)", ErrInvariant, i, n.wMax, n.wSum, n.pSum)
		}
	}
	return nil
}

// ceilDiv returns ceil(a/b) for a >= 0, b > 0.
func ceilDiv(a, b int) int { return (a + b - 1) / b }

// floorTolerant returns floor(v) unless v is within rounding noise below
// the next integer.
func floorTolerant(v float64) int {
	return int(math.Floor(v + 1e-9*(1+math.Abs(v))))
}
