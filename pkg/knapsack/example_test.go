package knapsack_test

import (
	"context"
	"fmt"

	"github.com/gitrdm/gokanfd/pkg/fd"
	"github.com/gitrdm/gokanfd/pkg/knapsack"
)

func ExampleNewFromSlices() {
	s := fd.NewStore(nil)
	a, _ := s.NewIntVar(0, 2, "A")
	b, _ := s.NewIntVar(0, 2, "B")
	c, _ := s.NewIntVar(0, 2, "C")
	capacity, _ := s.NewIntVar(0, 10, "capacity")
	profit, _ := s.NewIntVar(0, 100, "profit")

	quantities := []*fd.IntVar{a, b, c}
	k, err := knapsack.NewFromSlices(quantities, []int{2, 3, 5}, []int{3, 5, 6}, capacity, profit, knapsack.DefaultOptions())
	if err != nil {
		fmt.Println(err)
		return
	}
	_ = s.Impose(k)
	if err := s.Consistency(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(profit)

	best, _ := fd.NewSearch(s, quantities, nil).Maximize(context.Background(), profit)
	fmt.Printf("A=%d B=%d C=%d profit=%d\n", best.Values[0], best.Values[1], best.Values[2], best.Objective)
	// Output:
	// profit{0..16}
	// A=2 B=2 C=0 profit=16
}
