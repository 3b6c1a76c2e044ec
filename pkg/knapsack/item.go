package knapsack

import (
	"fmt"

	"github.com/gitrdm/gokanfd/pkg/fd"
)

// Item is one kind of object that can be packed: a per-unit weight and
// profit, and the store variable counting how many units are packed.
type Item struct {
	quantity *fd.IntVar
	weight   int
	profit   int
}

// NewItem builds an item. Weight and profit must both be positive.
func NewItem(quantity *fd.IntVar, weight, profit int) (*Item, error) {
	if quantity == nil {
		return nil, fmt.Errorf("%w: item quantity variable is nil", fd.ErrInvalidArgument)
	}
	if weight <= 0 {
		return nil, fmt.Errorf("%w: item %s has weight %d, want > 0", fd.ErrInvalidArgument, quantity.Name(), weight)
	}
	if profit <= 0 {
		return nil, fmt.Errorf("%w: item %s has profit %d, want > 0", fd.ErrInvalidArgument, quantity.Name(), profit)
	}
	return &Item{quantity: quantity, weight: weight, profit: profit}, nil
}

// Quantity returns the variable counting packed units.
func (it *Item) Quantity() *fd.IntVar { return it.quantity }

// Weight returns the weight of one unit.
func (it *Item) Weight() int { return it.weight }

// Profit returns the profit of one unit.
func (it *Item) Profit() int { return it.profit }

// Efficiency returns profit per unit of weight.
func (it *Item) Efficiency() float64 { return float64(it.profit) / float64(it.weight) }

func (it *Item) String() string {
	return fmt.Sprintf("%s(w=%d,p=%d)", it.quantity, it.weight, it.profit)
}

// compareItems orders by decreasing efficiency without dividing: a comes
// first when w_a*p_b < w_b*p_a. Equal efficiencies put the heavier item first.
func compareItems(a, b *Item) int {
	cross := a.weight*b.profit - b.weight*a.profit
	switch {
	case cross < 0:
		return -1
	case cross > 0:
		return 1
	case a.weight > b.weight:
		return -1
	case a.weight < b.weight:
		return 1
	default:
		return 0
	}
}
