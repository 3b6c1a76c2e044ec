package fd

// monitor.go: statistics for store propagation and search

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SolverStats holds statistics about propagation and search.
type SolverStats struct {
	// Search statistics
	NodesExplored  int
	Backtracks     int
	SolutionsFound int
	SearchTime     time.Duration
	MaxDepth       int

	// Propagation statistics
	PropagationCount int
	PropagationTime  time.Duration
	ConstraintsAdded int
	Narrowings       int
	Failures         int

	// Memory statistics
	PeakTrailSize int
	PeakQueueSize int
}

// SolverMonitor collects SolverStats and mirrors the counters into
// Prometheus collectors. One monitor may be shared by stores solved on
// different goroutines.
type SolverMonitor struct {
	mu        sync.Mutex
	stats     SolverStats
	startTime time.Time
	propStart time.Time

	nodes        prometheus.Counter
	backtracks   prometheus.Counter
	solutions    prometheus.Counter
	propagations prometheus.Counter
	failures     prometheus.Counter
}

// NewSolverMonitor creates a monitor. Its collectors are not registered
// until Register is called.
func NewSolverMonitor() *SolverMonitor {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gokanfd",
			Subsystem: "solver",
			Name:      name,
			Help:      help,
		})
	}
	return &SolverMonitor{
		startTime:    time.Now(),
		nodes:        counter("nodes_total", "Search nodes explored."),
		backtracks:   counter("backtracks_total", "Search backtracks."),
		solutions:    counter("solutions_total", "Solutions found."),
		propagations: counter("propagations_total", "Constraint consistency calls."),
		failures:     counter("failures_total", "Narrowings that emptied a domain."),
	}
}

// Register adds the monitor's collectors to reg. Collectors that are
// already registered are not an error.
func (m *SolverMonitor) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.nodes, m.backtracks, m.solutions, m.propagations, m.failures} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register solver metrics: %w", err)
		}
	}
	return nil
}

// GetStats returns a copy of the current statistics.
func (m *SolverMonitor) GetStats() SolverStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// StartPropagation marks the beginning of a consistency call.
func (m *SolverMonitor) StartPropagation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propStart = time.Now()
}

// EndPropagation marks the end of a consistency call.
func (m *SolverMonitor) EndPropagation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.propStart.IsZero() {
		m.stats.PropagationTime += time.Since(m.propStart)
		m.stats.PropagationCount++
		m.propStart = time.Time{}
		m.propagations.Inc()
	}
}

// RecordBacktrack records a backtrack.
func (m *SolverMonitor) RecordBacktrack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Backtracks++
	m.backtracks.Inc()
}

// RecordNode records exploring a search node.
func (m *SolverMonitor) RecordNode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.NodesExplored++
	m.nodes.Inc()
}

// RecordSolution records a solution.
func (m *SolverMonitor) RecordSolution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SolutionsFound++
	m.solutions.Inc()
}

// RecordFailure records a narrowing that emptied a domain.
func (m *SolverMonitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Failures++
	m.failures.Inc()
}

// RecordNarrowing records a successful bound change.
func (m *SolverMonitor) RecordNarrowing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Narrowings++
}

// RecordDepth records the current search depth.
func (m *SolverMonitor) RecordDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.stats.MaxDepth {
		m.stats.MaxDepth = depth
	}
}

// RecordConstraint records an imposed constraint.
func (m *SolverMonitor) RecordConstraint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ConstraintsAdded++
}

// RecordTrailSize records the current trail size.
func (m *SolverMonitor) RecordTrailSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size > m.stats.PeakTrailSize {
		m.stats.PeakTrailSize = size
	}
}

// RecordQueueSize records the current queue size.
func (m *SolverMonitor) RecordQueueSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size > m.stats.PeakQueueSize {
		m.stats.PeakQueueSize = size
	}
}

// FinishSearch marks the end of the search process.
func (m *SolverMonitor) FinishSearch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.SearchTime = time.Since(m.startTime)
}

// String returns a formatted summary.
func (s SolverStats) String() string {
	return fmt.Sprintf(
		"Solver Statistics:\n"+
			"  Search: %d nodes, %d backtracks, %d solutions, %v time, max depth %d\n"+
			"  Propagation: %d ops, %v time, %d constraints, %d narrowings, %d failures\n"+
			"  Memory: peak trail %d, peak queue %d",
		s.NodesExplored, s.Backtracks, s.SolutionsFound, s.SearchTime, s.MaxDepth,
		s.PropagationCount, s.PropagationTime, s.ConstraintsAdded, s.Narrowings, s.Failures,
		s.PeakTrailSize, s.PeakQueueSize,
	)
}
