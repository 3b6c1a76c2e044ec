package knapsack

// none marks a missing arena index or leaf position.
const none = -1

// node is an arena slot of the aggregate tree. Internal nodes have
// leaf == none and cache the aggregates of their children; leaf nodes
// cache the aggregates of their own leaf.
type node struct {
	parent int
	left   int
	right  int
	leaf   int // position of the leaf payload, none for internal nodes

	wMax int // largest remaining weight of a single leaf in the subtree
	wSum int // remaining weight of the subtree
	pSum int // remaining profit of the subtree
}

func (n *node) isLeaf() bool { return n.leaf != none }

// leaf is the per-item payload of a leaf node.
//
// slice is the part of the quantity minimum already folded into the tree's
// running totals; the node aggregates only count the units above it.
type leaf struct {
	item     *Item
	node     int
	position int

	slice   int
	prevMin int
	prevMax int

	leftNeighbor  int
	rightNeighbor int
}

func (l *leaf) hasMinChanged() bool { return l.item.quantity.Min() != l.prevMin }

func (l *leaf) hasMaxChanged() bool { return l.item.quantity.Max() != l.prevMax }

// remaining returns the cached number of units above the slice.
func (l *leaf) remaining(t *Tree) int { return t.nodes[l.node].wSum / l.item.weight }

// updateInternalValues folds the quantity's current minimum into the
// tree's running totals, moves the slice up (or back down after a
// backtrack) and refreshes the leaf's own aggregates.
func (l *leaf) updateInternalValues(t *Tree) {
	q := l.item.quantity
	lo, hi := q.Min(), q.Max()
	d := lo - l.slice
	t.alreadyUsedCapacity += d * l.item.weight
	t.alreadyObtainedProfit += d * l.item.profit
	l.slice = lo
	l.prevMin, l.prevMax = lo, hi

	n := &t.nodes[l.node]
	r := hi - lo
	n.wSum = r * l.item.weight
	n.wMax = n.wSum
	n.pSum = r * l.item.profit
}

// pull recomputes an internal node from its children.
func (t *Tree) pull(i int) {
	n := &t.nodes[i]
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	n.wSum = l.wSum + r.wSum
	n.pSum = l.pSum + r.pSum
	n.wMax = max(l.wMax, r.wMax)
}

// recomputeUp recomputes node i from its children, then every ancestor.
func (t *Tree) recomputeUp(i int) {
	for ; i != none; i = t.nodes[i].parent {
		if !t.nodes[i].isLeaf() {
			t.pull(i)
		}
	}
}

// recomputeDown refreshes every leaf below i and rebuilds the aggregates
// bottom-up.
func (t *Tree) recomputeDown(i int) {
	n := &t.nodes[i]
	if n.isLeaf() {
		t.leaves[n.leaf].updateInternalValues(t)
		return
	}
	t.recomputeDown(n.left)
	t.recomputeDown(n.right)
	t.pull(i)
}
