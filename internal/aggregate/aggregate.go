// Package aggregate folds a batch of results into summary statistics,
// category breakdowns and rule-based recommendations.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

const (
	CategorySecurity     = "security"
	CategoryPerformance  = "performance"
	CategoryAvailability = "availability"
	CategoryGeneral      = "general"
)

// DefaultWeights drive the weighted overall score. General results carry no
// weight; they are reported but do not move the overall score.
var DefaultWeights = map[string]float64{
	CategorySecurity:     0.4,
	CategoryPerformance:  0.3,
	CategoryAvailability: 0.3,
	CategoryGeneral:      0,
}

// Category is the per-category slice of a summary.
type Category struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	SuccessRate  float64 `json:"success_rate"`
	AverageScore float64 `json:"average_score"`
	Scored       int     `json:"scored"`
	Weight       float64 `json:"weight"`
}

// Summary is the aggregated view of one batch.
type Summary struct {
	Total           int                  `json:"total"`
	StatusCounts    map[model.Status]int `json:"status_counts"`
	SuccessRate     float64              `json:"success_rate"`
	AverageScore    float64              `json:"average_score"`
	Scored          int                  `json:"scored"`
	TotalTime       time.Duration        `json:"total_time"`
	AverageTime     time.Duration        `json:"average_time"`
	TotalMemory     int64                `json:"total_memory"`
	AverageMemory   int64                `json:"average_memory"`
	Categories      map[string]Category  `json:"categories"`
	OverallScore    float64              `json:"overall_score"`
	Recommendations []string             `json:"recommendations"`
	Timestamp       time.Time            `json:"timestamp"`
}

// Aggregate computes the summary of a result set with the default weights.
func Aggregate(results []model.Result) Summary {
	return AggregateWeighted(results, DefaultWeights)
}

// AggregateBatch summarizes a BatchResult in a deterministic job order.
func AggregateBatch(b model.BatchResult) Summary {
	ids := make([]string, 0, len(b.Results))
	for id := range b.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	results := make([]model.Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, b.Results[id])
	}
	return Aggregate(results)
}

// AggregateWeighted computes the summary with caller-provided category
// weights.
func AggregateWeighted(results []model.Result, weights map[string]float64) Summary {
	s := Summary{
		Total:        len(results),
		StatusCounts: make(map[model.Status]int, 6),
		Categories:   make(map[string]Category, 4),
		Timestamp:    time.Now().UTC(),
	}

	var scoreSum int
	categoryScores := make(map[string]int)
	for _, r := range results {
		s.StatusCounts[r.Status]++
		s.TotalTime += r.ExecutionTime
		s.TotalMemory += r.MemoryUsage

		cat := Categorize(r.ProbeName)
		c := s.Categories[cat]
		c.Total++
		if r.Status == model.StatusPass {
			c.Passed++
		}
		if r.Score != nil {
			s.Scored++
			scoreSum += *r.Score
			c.Scored++
			categoryScores[cat] += *r.Score
		}
		s.Categories[cat] = c
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.StatusCounts[model.StatusPass]) / float64(s.Total) * 100
		s.AverageTime = s.TotalTime / time.Duration(s.Total)
		s.AverageMemory = s.TotalMemory / int64(s.Total)
	}
	if s.Scored > 0 {
		s.AverageScore = float64(scoreSum) / float64(s.Scored)
	}

	for cat, c := range s.Categories {
		if c.Total > 0 {
			c.SuccessRate = float64(c.Passed) / float64(c.Total) * 100
		}
		if c.Scored > 0 {
			c.AverageScore = float64(categoryScores[cat]) / float64(c.Scored)
		}
		c.Weight = weights[cat]
		s.Categories[cat] = c
		s.OverallScore += c.AverageScore * c.Weight
	}

	s.Recommendations = recommendations(s)
	return s
}

// Categorize classifies a probe by name substring.
func Categorize(probeName string) string {
	name := strings.ToLower(probeName)
	switch {
	case strings.Contains(name, "ssl"), strings.Contains(name, "security"):
		return CategorySecurity
	case strings.Contains(name, "response_time"), strings.Contains(name, "performance"):
		return CategoryPerformance
	case strings.Contains(name, "status"), strings.Contains(name, "availability"):
		return CategoryAvailability
	default:
		return CategoryGeneral
	}
}

func recommendations(s Summary) []string {
	if s.Total == 0 {
		return nil
	}
	var recs []string
	if s.SuccessRate < 80 {
		recs = append(recs, fmt.Sprintf(
			"success rate %.1f%% is below 80%%, investigate failing checks", s.SuccessRate))
	}
	if s.AverageTime > 10*time.Second {
		recs = append(recs, fmt.Sprintf(
			"average execution time %s exceeds 10s, consider tuning timeouts or target load", s.AverageTime))
	}
	if s.StatusCounts[model.StatusError] > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d check(s) errored, review probe stability", s.StatusCounts[model.StatusError]))
	}
	if s.StatusCounts[model.StatusTimeout] > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d check(s) timed out, review target responsiveness", s.StatusCounts[model.StatusTimeout]))
	}
	return recs
}
