package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gitrdm/gokanfd/pkg/fd"
)

func newPropagateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "propagate FILE",
		Short: "Run root propagation and print the narrowed domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := o.build(args[0], nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := m.Store.Consistency(); err != nil {
				if !fd.IsFailure(err) {
					return err
				}
				fmt.Fprintf(out, "%s: infeasible\n", m.Instance.Name)
				o.logger.WithError(err).Debug("root propagation failed")
				return nil
			}

			fmt.Fprintf(out, "%s:\n", m.Instance.Name)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, v := range m.Quantities {
				fmt.Fprintf(w, "  %s\t%s\n", v.Name(), v.Domain())
			}
			fmt.Fprintf(w, "  %s\t%s\n", m.Capacity.Name(), m.Capacity.Domain())
			fmt.Fprintf(w, "  %s\t%s\n", m.Profit.Name(), m.Profit.Domain())
			if err := w.Flush(); err != nil {
				return err
			}

			if k := m.Knapsack; k != nil {
				critical := "none"
				if it := k.CriticalItem(); it != nil {
					critical = it.Quantity().Name()
				}
				fmt.Fprintf(out, "  critical item %s, fractional optimum %.2f\n",
					critical, float64(k.AlreadyObtainedProfit())+k.OptimalProfit())
			}
			return nil
		},
	}
}
