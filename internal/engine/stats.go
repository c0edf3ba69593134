package engine

import (
	"maps"
	"sync"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// ProbeStats is the per-probe execution record kept for observability and
// for feeding the adaptive controllers.
type ProbeStats struct {
	Executions int                  `json:"executions"`
	TotalTime  time.Duration        `json:"total_time"`
	Statuses   map[model.Status]int `json:"statuses"`
}

// AverageTime of one execution, zero without executions.
func (s ProbeStats) AverageTime() time.Duration {
	if s.Executions == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Executions)
}

// Stats is the engine-level snapshot.
type Stats struct {
	Batches        int                   `json:"batches"`
	Jobs           int                   `json:"jobs"`
	TotalBatchTime time.Duration         `json:"total_batch_time"`
	Probes         map[string]ProbeStats `json:"probes"`
}

// stats tolerates concurrent increments from every worker.
type stats struct {
	mx      sync.Mutex
	batches int
	jobs    int
	total   time.Duration
	probes  map[string]*ProbeStats
}

func newStats() *stats {
	return &stats{
		probes: make(map[string]*ProbeStats),
	}
}

func (s *stats) recordJob(probeName string, res model.Result) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.jobs++
	ps, ok := s.probes[probeName]
	if !ok {
		ps = &ProbeStats{Statuses: make(map[model.Status]int, 6)}
		s.probes[probeName] = ps
	}
	ps.Executions++
	ps.TotalTime += res.ExecutionTime
	ps.Statuses[res.Status]++
}

func (s *stats) recordBatch(d time.Duration) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.batches++
	s.total += d
}

// Stats returns a copy of the engine statistics.
func (e *Engine) Stats() Stats {
	e.stats.mx.Lock()
	defer e.stats.mx.Unlock()
	out := Stats{
		Batches:        e.stats.batches,
		Jobs:           e.stats.jobs,
		TotalBatchTime: e.stats.total,
		Probes:         make(map[string]ProbeStats, len(e.stats.probes)),
	}
	for name, ps := range e.stats.probes {
		cp := *ps
		cp.Statuses = maps.Clone(ps.Statuses)
		out.Probes[name] = cp
	}
	return out
}
