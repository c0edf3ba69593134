package model

import (
	"maps"
	"slices"
	"time"
)

// Result is the outcome of a single probe execution.
// Score is optional, in range [0, 100] when present.
type Result struct {
	ProbeName       string         `json:"probe_name"`
	Target          string         `json:"target"`
	Status          Status         `json:"status"`
	Message         string         `json:"message,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	ExecutionTime   time.Duration  `json:"execution_time"`
	MemoryUsage     int64          `json:"memory_usage,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Context         map[string]any `json:"context,omitempty"`
	Score           *int           `json:"score,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// NewResult constructs a Result with a validated status.
func NewResult(probeName, target string, status Status, message string) (Result, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Result{}, err
	}
	return Result{
		ProbeName: probeName,
		Target:    target,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Clone returns a deep copy, so rule application never mutates the original.
func (r Result) Clone() Result {
	c := r
	if r.Data != nil {
		c.Data = maps.Clone(r.Data)
	}
	if r.Context != nil {
		c.Context = maps.Clone(r.Context)
	}
	if r.Score != nil {
		score := *r.Score
		c.Score = &score
	}
	c.Recommendations = slices.Clone(r.Recommendations)
	return c
}

// SetData writes a key into Data, allocating the map on first use.
func (r *Result) SetData(key string, value any) {
	if r.Data == nil {
		r.Data = make(map[string]any, 4)
	}
	r.Data[key] = value
}

// BatchResult collects per-job results of one ExecuteBatch call.
// Derived statistics (pass count, success rate) are computed, not stored.
type BatchResult struct {
	Name          string            `json:"name"`
	Target        string            `json:"target"`
	Results       map[string]Result `json:"results"`
	ExecutionTime time.Duration     `json:"execution_time"`
	Context       map[string]any    `json:"context,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Passed counts results with StatusPass.
func (b BatchResult) Passed() int {
	var n int
	for _, r := range b.Results {
		if r.Status == StatusPass {
			n++
		}
	}
	return n
}

// SuccessRate is passed/total in percent, 0 for an empty batch.
func (b BatchResult) SuccessRate() float64 {
	if len(b.Results) == 0 {
		return 0
	}
	return float64(b.Passed()) / float64(len(b.Results)) * 100
}
