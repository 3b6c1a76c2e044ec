package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/gokanfd/internal/instance"
	"github.com/gitrdm/gokanfd/internal/parallel"
	"github.com/gitrdm/gokanfd/pkg/fd"
)

type solveOptions struct {
	all         bool
	limit       int
	timeout     time.Duration
	workers     int
	stats       bool
	metricsAddr string
}

// result is the outcome of one instance file.
type result struct {
	path      string
	model     *instance.Model
	best      fd.Solution
	solutions [][]int
	timedOut  bool
	elapsed   time.Duration
	err       error
}

func newSolveCmd(o *options) *cobra.Command {
	so := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve FILE...",
		Short: "Maximise profit, or enumerate solutions, for each instance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return o.solve(ctx, so, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&so.all, "all", false, "enumerate solutions instead of maximising profit")
	cmd.Flags().IntVar(&so.limit, "limit", 0, "with --all, stop after this many solutions (0 for all)")
	cmd.Flags().DurationVar(&so.timeout, "timeout", 0, "time limit per instance, overriding solver.time_limit (0 for none)")
	cmd.Flags().IntVar(&so.workers, "workers", 0, "instances solved concurrently (0 for one per CPU)")
	cmd.Flags().BoolVar(&so.stats, "stats", false, "print search statistics")
	cmd.Flags().StringVar(&so.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while solving")
	return cmd
}

func (o *options) solve(ctx context.Context, so *solveOptions, paths []string, out io.Writer) error {
	monitor := fd.NewSolverMonitor()
	if so.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := monitor.Register(reg); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: so.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				o.logger.Errorf("Metrics serving failed: %v", err)
			}
		}()
		defer srv.Close()
	}

	pool := parallel.NewWorkerPool(so.workers)
	defer pool.Shutdown()

	results, err := parallel.Map(ctx, pool, paths, func(ctx context.Context, path string) result {
		return o.solveOne(ctx, so, path, monitor)
	})

	failed := 0
	for _, r := range results {
		if r.path == "" {
			continue // never submitted
		}
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", r.path, r.err)
			continue
		}
		printResult(out, so, r)
	}
	if so.stats {
		fmt.Fprintf(out, "stats: %s\n", monitor.GetStats())
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed", failed, len(paths))
	}
	return nil
}

func (o *options) solveOne(ctx context.Context, so *solveOptions, path string, monitor *fd.SolverMonitor) result {
	r := result{path: path}
	m, cfg, err := o.build(path, monitor)
	if err != nil {
		r.err = err
		return r
	}
	r.model = m

	timeout := so.timeout
	if timeout == 0 {
		timeout = m.Instance.Solver.TimeLimit
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger := o.logger.WithFields(logrus.Fields{"instance": m.Instance.Name, "items": len(m.Quantities)})
	logger.Info("solving")
	start := time.Now()
	search := fd.NewSearch(m.Store, m.Quantities, cfg)
	if so.all {
		r.solutions, err = search.Solve(ctx, so.limit)
	} else {
		r.best, err = search.Maximize(ctx, m.Profit)
	}
	r.elapsed = time.Since(start)
	if errors.Is(err, context.DeadlineExceeded) {
		r.timedOut = true
		err = nil
	}
	r.err = err
	logger.WithField("elapsed", r.elapsed).Info("done")
	return r
}

func printResult(out io.Writer, so *solveOptions, r result) {
	m := r.model
	name := m.Instance.Name
	note := ""
	if r.timedOut {
		note = " (time limit reached)"
	}

	if so.all {
		fmt.Fprintf(out, "%s: %d solutions%s\n", name, len(r.solutions), note)
		for _, sol := range r.solutions {
			fmt.Fprintf(out, "  %s\n", formatValues(m, sol))
		}
		return
	}

	if r.best.Values == nil {
		if r.timedOut {
			fmt.Fprintf(out, "%s: no solution found%s\n", name, note)
		} else {
			fmt.Fprintf(out, "%s: infeasible\n", name)
		}
		return
	}
	status := "optimal"
	if !r.best.Optimal {
		status = "best found"
	}
	weight, _ := m.Totals(r.best.Values)
	fmt.Fprintf(out, "%s: profit %d, weight %d (%s)%s\n", name, r.best.Objective, weight, status, note)
	fmt.Fprintf(out, "  %s\n", formatValues(m, r.best.Values))
}

func formatValues(m *instance.Model, values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s=%d", m.Quantities[i].Name(), v)
	}
	return strings.Join(parts, " ")
}
