// Package knapsack implements the knapsack global constraint:
//
//	Σ weight[i]*quantity[i] = capacity
//	Σ profit[i]*quantity[i] = profit
//
// over bounded integer quantities. The upper bound of capacity is the
// knapsack size and the lower bound of profit is the profit target.
//
// Propagation reasons on the fractional relaxation. Items are kept in an
// order-statistics tree sorted by decreasing efficiency, so the critical
// item, the profit and capacity bounds and the per-item mandatory and
// forbidden amounts are all found by O(log n) descents instead of scans.
// Quantity minimums already forced are folded ("sliced") into running
// totals, and the tree is updated incrementally from a per-level change
// log, falling back to a full recompute when too many leaves changed.
package knapsack

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/gitrdm/gokanfd/pkg/fd"
)

// Options tunes a Knapsack constraint.
type Options struct {
	// UpdateLimit is the number of changed leaves per level above which the
	// tree is recomputed in full. Zero means max(1, n/log2(n)).
	UpdateLimit int
	// Debug checks the tree invariants after every consistency call.
	Debug bool
	// Logger defaults to the store's logger.
	Logger logrus.FieldLogger
}

// DefaultOptions returns the zero Options.
func DefaultOptions() Options { return Options{} }

// Knapsack is the knapsack propagator.
type Knapsack struct {
	fd.BaseConstraint

	items     []*Item
	capacity  *fd.IntVar
	profit    *fd.IntVar
	positions map[*fd.IntVar]int

	store       *fd.Store
	tree        *Tree
	criticalPos *fd.TrailedInt
	opts        Options
	updateLimit int
	logger      logrus.FieldLogger

	// logs holds the leaves changed at each level, replayed when the level
	// is removed. pending holds the leaves not yet folded into the tree.
	logs    map[int]*changeLog
	pending changeLog

	needUpdate         bool
	needMandatory      bool
	needForbidden      bool
	needCriticalUpdate bool
	needConsistency    bool
	inConsistency      bool
	impositionFailure  bool
}

// New creates a knapsack constraint over items.
func New(items []*Item, capacity, profit *fd.IntVar, opts Options) (*Knapsack, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: knapsack needs at least one item", fd.ErrInvalidArgument)
	}
	if capacity == nil || profit == nil {
		return nil, fmt.Errorf("%w: knapsack capacity and profit variables are required", fd.ErrInvalidArgument)
	}
	if capacity == profit {
		return nil, fmt.Errorf("%w: knapsack capacity and profit must be distinct variables", fd.ErrInvalidArgument)
	}
	if opts.UpdateLimit < 0 {
		return nil, fmt.Errorf("%w: update limit %d is negative", fd.ErrInvalidArgument, opts.UpdateLimit)
	}
	positions := make(map[*fd.IntVar]int, len(items))
	for i, it := range items {
		if it == nil {
			return nil, fmt.Errorf("%w: item %d is nil", fd.ErrInvalidArgument, i)
		}
		q := it.quantity
		if q == capacity || q == profit {
			return nil, fmt.Errorf("%w: quantity %s is also the capacity or profit variable", fd.ErrInvalidArgument, q.Name())
		}
		if _, dup := positions[q]; dup {
			return nil, fmt.Errorf("%w: quantity %s is used by two items", fd.ErrInvalidArgument, q.Name())
		}
		if q.Min() < 0 {
			return nil, fmt.Errorf("%w: quantity %s may be negative", fd.ErrInvalidArgument, q)
		}
		positions[q] = i
	}
	return &Knapsack{
		items:     slices.Clone(items),
		capacity:  capacity,
		profit:    profit,
		positions: positions,
		opts:      opts,
		logs:      make(map[int]*changeLog),
	}, nil
}

// NewFromSlices creates a knapsack constraint from parallel slices.
func NewFromSlices(quantities []*fd.IntVar, weights, profits []int, capacity, profit *fd.IntVar, opts Options) (*Knapsack, error) {
	if len(quantities) != len(weights) || len(quantities) != len(profits) {
		return nil, fmt.Errorf("%w: %d quantities, %d weights, %d profits",
			fd.ErrInvalidArgument, len(quantities), len(weights), len(profits))
	}
	items := make([]*Item, len(quantities))
	for i, q := range quantities {
		it, err := NewItem(q, weights[i], profits[i])
		if err != nil {
			return nil, err
		}
		items[i] = it
	}
	return New(items, capacity, profit, opts)
}

// Impose sorts the items, builds the tree and registers with the store.
// Infeasibility found here is reported by the first Consistency call.
func (k *Knapsack) Impose(s *fd.Store) error {
	k.store = s
	k.logger = k.opts.Logger
	if k.logger == nil {
		k.logger = s.Logger()
	}
	k.logger = k.logger.WithField("constraint", k.ID())

	slices.SortStableFunc(k.items, compareItems)
	for i, it := range k.items {
		k.positions[it.quantity] = i
	}
	n := len(k.items)
	k.updateLimit = k.opts.UpdateLimit
	if k.updateLimit == 0 {
		k.updateLimit = defaultUpdateLimit(n)
	}

	k.tree = newTree(k.items)
	k.tree.recompute()

	for _, it := range k.items {
		s.Watch(it.quantity, k)
	}
	s.Watch(k.capacity, k)
	s.Watch(k.profit, k)
	s.AddLevelListener(k)

	t := k.tree
	root := t.rootNode()
	used, obtained := t.alreadyUsedCapacity, t.alreadyObtainedProfit
	switch {
	case k.capacity.Max() < used:
		k.impositionFailure = true
	case k.capacity.Min() > used+root.wSum:
		k.impositionFailure = true
	case k.profit.Min() > obtained+root.pSum:
		k.impositionFailure = true
	case k.profit.Max() < obtained:
		k.impositionFailure = true
	}
	if k.impositionFailure {
		k.logger.WithFields(logrus.Fields{
			"capacity": k.capacity.Domain().String(),
			"profit":   k.profit.Domain().String(),
			"used":     used,
			"obtained": obtained,
		}).Debug("knapsack infeasible at imposition")
		k.criticalPos = s.NewTrailedInt(n)
		return nil
	}

	t.updateCritical(k.capacity.Max() - used)
	k.criticalPos = s.NewTrailedInt(t.critical)
	k.markAll()
	return nil
}

func (k *Knapsack) markAll() {
	k.needUpdate = true
	k.needMandatory = true
	k.needForbidden = true
	k.needCriticalUpdate = true
	k.needConsistency = true
}

// QueueVariable records a bound change and decides which parts of the
// fixpoint it invalidates.
func (k *Knapsack) QueueVariable(level int, v *fd.IntVar) {
	if k.impositionFailure {
		return
	}
	if v == k.capacity || v == k.profit {
		k.markAll()
		return
	}
	pos, ok := k.positions[v]
	if !ok {
		return
	}

	log := k.logs[level]
	if log == nil {
		log = &changeLog{}
		k.logs[level] = log
	}
	log.add(pos, k.updateLimit)
	k.pending.add(pos, k.updateLimit)
	k.needUpdate = true
	k.needConsistency = true

	l := &k.tree.leaves[pos]
	minChanged, maxChanged := l.hasMinChanged(), l.hasMaxChanged()
	critical := k.tree.critical
	switch {
	case pos == critical:
		k.markAll()
	case pos < critical:
		// A used leaf losing units moves the critical leaf. A used leaf
		// gaining forced units only shrinks what can be evicted.
		if maxChanged {
			k.markAll()
		} else if minChanged {
			k.needForbidden = true
			k.needCriticalUpdate = true
		}
	default:
		// An unused leaf only feeds mandatory reasoning, unless its forced
		// units consume capacity.
		if minChanged {
			k.markAll()
		} else if maxChanged {
			k.needMandatory = true
		}
	}
}

// Consistency runs blockUpdate, single-item restriction, mandatory and
// forbidden reasoning until none of them narrows anything.
func (k *Knapsack) Consistency(s *fd.Store) error {
	if k.impositionFailure {
		return fd.Fail("%s infeasible at imposition", k)
	}
	if !k.needConsistency || k.inConsistency {
		return nil
	}
	k.inConsistency = true
	defer func() { k.inConsistency = false }()

	level := s.Level()
	for k.needConsistency {
		k.needConsistency = false

		if err := k.blockUpdate(level); err != nil {
			return err
		}
		if err := k.restrictItemQuantity(level); err != nil {
			return err
		}
		if k.needUpdate {
			continue
		}

		if k.needMandatory {
			k.needMandatory = false
			if err := k.computeMandatory(level); err != nil {
				return err
			}
			if k.needUpdate {
				continue
			}
		}

		if k.needForbidden {
			k.needForbidden = false
			if err := k.computeForbidden(level); err != nil {
				return err
			}
		}
	}

	if k.opts.Debug {
		if err := k.tree.validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// blockUpdate folds pending leaf changes into the tree, then tightens the
// capacity and profit variables from the running totals and the
// fractional optimum.
func (k *Knapsack) blockUpdate(level int) error {
	t := k.tree
	if k.needUpdate {
		k.needUpdate = false
		if k.pending.apply(t) {
			k.logger.WithField("level", level).Trace("full tree recompute")
		}
		k.pending.reset()
	}

	used, obtained := t.alreadyUsedCapacity, t.alreadyObtainedProfit
	if need := k.profit.Min() - obtained; need > 0 {
		w, ok := t.computeMinWeight(need)
		if !ok {
			return fd.Fail("%s cannot reach profit %d", k, k.profit.Min())
		}
		if err := k.store.InMin(level, k.capacity, used+w); err != nil {
			return err
		}
	}
	if err := k.store.In(level, k.capacity, used, used+t.rootNode().wSum); err != nil {
		return err
	}
	if need := k.capacity.Min() - used; need > 0 {
		if p, ok := t.computeMinProfit(need); ok {
			if err := k.store.InMin(level, k.profit, obtained+p); err != nil {
				return err
			}
		}
	}

	remaining := k.capacity.Max() - used
	if k.needCriticalUpdate {
		k.needCriticalUpdate = false
		t.updateCritical(remaining)
	} else {
		t.refreshCritical(remaining)
	}
	k.criticalPos.Set(level, t.critical)

	return k.store.In(level, k.profit, obtained, obtained+t.profitBound)
}

// restrictItemQuantity caps every leaf whose remaining weight alone exceeds
// the remaining capacity.
func (k *Knapsack) restrictItemQuantity(level int) error {
	t := k.tree
	if t.root == none {
		return nil
	}
	remaining := k.capacity.Max() - t.alreadyUsedCapacity
	return k.restrictNode(level, t.root, remaining)
}

func (k *Knapsack) restrictNode(level, i, remaining int) error {
	t := k.tree
	n := &t.nodes[i]
	if n.wMax <= remaining {
		return nil
	}
	if !n.isLeaf() {
		left, right := n.left, n.right
		if err := k.restrictNode(level, left, remaining); err != nil {
			return err
		}
		return k.restrictNode(level, right, remaining)
	}
	l := &t.leaves[n.leaf]
	return k.store.InMax(level, l.item.quantity, l.slice+remaining/l.item.weight)
}

// slack is how much profit the fractional optimum can lose before it falls
// under the profit target.
func (k *Knapsack) slack() float64 {
	t := k.tree
	s := float64(t.alreadyObtainedProfit + t.prefixP - k.profit.Min())
	if t.critical < t.size() {
		it := t.leaves[t.critical].item
		s += float64(t.criticalUsed) * float64(it.profit) / float64(it.weight)
	}
	return s
}

// skipWeight returns a weight under which no leaf can be pruned by
// mandatory or forbidden reasoning: any leaf can always trade at least
// slack/maxEfficiency weight.
func (k *Knapsack) skipWeight(slack float64) int {
	best := k.tree.leaves[0].item.Efficiency()
	return max(floorTolerant(slack/best)-1, 0)
}

// computeMandatory raises the minimum of every leaf left of the critical
// leaf whose weight cannot be fully replaced by less efficient items.
func (k *Knapsack) computeMandatory(level int) error {
	t := k.tree
	if t.critical == 0 {
		return nil
	}
	slack := k.slack()
	skip := k.skipWeight(slack)
	for pos := t.findNextLeafAtLeastOfWeight(none, skip); pos != none && pos < t.critical; pos = t.findNextLeafAtLeastOfWeight(pos, skip) {
		l := &t.leaves[pos]
		w := l.item.weight
		replaceable := t.computeReplacableWeight(pos, slack)
		r := l.remaining(t)
		keep := floorTolerant(replaceable / float64(w))
		if keep >= r {
			continue
		}
		q := l.item.quantity
		k.logger.WithFields(logrus.Fields{"item": q.Name(), "min": l.slice + r - keep}).Trace("mandatory")
		if err := k.store.InMin(level, q, l.slice+r-keep); err != nil {
			return err
		}
	}
	return nil
}

// computeForbidden lowers the maximum of every leaf right of the critical
// leaf whose full use would evict too much of the more efficient items.
func (k *Knapsack) computeForbidden(level int) error {
	t := k.tree
	if t.critical >= t.size()-1 {
		return nil
	}
	slack := k.slack()
	skip := k.skipWeight(slack)
	for pos := t.findPreviousLeafAtLeastOfWeight(t.size(), skip); pos != none && pos > t.critical; pos = t.findPreviousLeafAtLeastOfWeight(pos, skip) {
		l := &t.leaves[pos]
		w := l.item.weight
		intrusion := t.computeIntrusionWeight(pos, slack)
		r := l.remaining(t)
		allowed := floorTolerant(intrusion / float64(w))
		if allowed >= r {
			continue
		}
		q := l.item.quantity
		k.logger.WithFields(logrus.Fields{"item": q.Name(), "max": l.slice + allowed}).Trace("forbidden")
		if err := k.store.InMax(level, q, l.slice+allowed); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLevelLate resynchronises the tree with the bounds restored by the
// store and takes the critical position back from its trailed cell.
func (k *Knapsack) RemoveLevelLate(level int) {
	if k.tree == nil || k.impositionFailure {
		return
	}
	for l, log := range k.logs {
		if l < level {
			continue
		}
		if log.apply(k.tree) {
			k.logger.WithField("level", l).Trace("full tree recompute on backtrack")
		}
		delete(k.logs, l)
	}
	k.tree.critical = k.criticalPos.Value()
}

// Satisfied reports whether every variable is bound and both sums hold.
func (k *Knapsack) Satisfied() bool {
	if !k.capacity.Singleton() || !k.profit.Singleton() {
		return false
	}
	w, p := 0, 0
	for _, it := range k.items {
		if !it.quantity.Singleton() {
			return false
		}
		w += it.weight * it.quantity.Min()
		p += it.profit * it.quantity.Min()
	}
	return w == k.capacity.Min() && p == k.profit.Min()
}

// Variables returns the quantities, then capacity and profit.
func (k *Knapsack) Variables() []*fd.IntVar {
	out := make([]*fd.IntVar, 0, len(k.items)+2)
	for _, it := range k.items {
		out = append(out, it.quantity)
	}
	return append(out, k.capacity, k.profit)
}

// Items returns the items, in efficiency order once imposed.
func (k *Knapsack) Items() []*Item { return k.items }

// Capacity returns the capacity variable.
func (k *Knapsack) Capacity() *fd.IntVar { return k.capacity }

// Profit returns the profit variable.
func (k *Knapsack) Profit() *fd.IntVar { return k.profit }

// AlreadyUsedCapacity returns the weight of the folded quantity minimums.
func (k *Knapsack) AlreadyUsedCapacity() int { return k.tree.alreadyUsedCapacity }

// AlreadyObtainedProfit returns the profit of the folded quantity minimums.
func (k *Knapsack) AlreadyObtainedProfit() int { return k.tree.alreadyObtainedProfit }

// CriticalItem returns the critical item, or nil when every remaining unit
// fits in the capacity.
func (k *Knapsack) CriticalItem() *Item {
	if k.tree == nil || k.tree.critical >= k.tree.size() {
		return nil
	}
	return k.tree.leaves[k.tree.critical].item
}

// OptimalProfit returns the fractional optimum above the obtained profit at
// the last consistency call.
func (k *Knapsack) OptimalProfit() float64 { return k.tree.optimalProfit }

func (k *Knapsack) String() string {
	return fmt.Sprintf("Knapsack#%d(%d items, capacity=%s, profit=%s)", k.ID(), len(k.items), k.capacity, k.profit)
}
