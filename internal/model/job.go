package model

import (
	"errors"
	"fmt"
	"time"
)

// Job is one scheduled probe execution against one target within a batch.
// Immutable once submitted; ID is unique within a batch.
type Job struct {
	ID                string         `json:"id"`
	Probe             string         `json:"probe"`
	Target            string         `json:"target"`
	DependsOn         []string       `json:"depends_on,omitempty"`
	Priority          int            `json:"priority,omitempty"`
	Complexity        float64        `json:"complexity,omitempty"`
	EstimatedDuration time.Duration  `json:"estimated_duration,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
}

func (j Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is empty")
	}
	if j.Probe == "" {
		return fmt.Errorf("job %s: probe name is empty", j.ID)
	}
	return nil
}

// ValidateJobs checks every job and the batch-unique id invariant.
func ValidateJobs(jobs []Job) error {
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		if _, ok := seen[j.ID]; ok {
			return fmt.Errorf("%s: %w", j.ID, ErrDuplicateJob)
		}
		seen[j.ID] = struct{}{}
	}
	return nil
}
