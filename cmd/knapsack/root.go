package main

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/gokanfd/internal/instance"
	"github.com/gitrdm/gokanfd/pkg/fd"
)

type options struct {
	logLevel    string
	updateLimit int
	decompose   bool
	debug       bool

	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "knapsack",
		Short:        "Propagate and solve knapsack constraint problems",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(o.logLevel)
			if err != nil {
				return err
			}
			o.logger = logrus.New()
			o.logger.SetOutput(cmd.ErrOrStderr())
			o.logger.SetLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "warning", "log level (trace, debug, info, warning, error)")
	cmd.PersistentFlags().IntVar(&o.updateLimit, "update-limit", 0, "changed items per level before the knapsack tree is rebuilt (0 uses the instance or default)")
	cmd.PersistentFlags().BoolVar(&o.decompose, "decompose", false, "model with two linear sums instead of the knapsack constraint")
	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "check knapsack tree invariants after every propagation")

	cmd.AddCommand(newPropagateCmd(o), newSolveCmd(o), newVersionCmd())
	return cmd
}

// build loads path into a fresh store configured with monitor.
func (o *options) build(path string, monitor *fd.SolverMonitor) (*instance.Model, *fd.SolverConfig, error) {
	in, err := instance.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger.WithField("instance", in.Name)
	cfg := in.SolverConfig(&fd.SolverConfig{Logger: logger, Monitor: monitor})
	s := fd.NewStore(cfg)
	m, err := in.Build(s, instance.BuildOptions{
		Decompose:   o.decompose,
		UpdateLimit: o.updateLimit,
		Debug:       o.debug,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "knapsack %s (%s)\n", version, runtime.Version())
		},
	}
}
