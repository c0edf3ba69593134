package model_test

import (
	"testing"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/stretchr/testify/require"
)

func TestJobValidate(t *testing.T) {
	t.Parallel()

	job := model.Job{ID: "j1", Probe: "tcp_connect", Target: "example.com:443"}
	require.NoError(t, job.Validate())

	require.Error(t, model.Job{Probe: "tcp_connect", Target: "t"}.Validate())
	require.Error(t, model.Job{ID: "j1", Target: "t"}.Validate())
	require.Error(t, model.Job{ID: "j1", Probe: "tcp_connect"}.Validate())
}

func TestValidateJobs(t *testing.T) {
	t.Parallel()

	jobs := []model.Job{
		{ID: "a", Probe: "tcp_connect", Target: "t"},
		{ID: "b", Probe: "tcp_connect", Target: "t"},
	}
	require.NoError(t, model.ValidateJobs(jobs))

	dup := append(jobs, model.Job{ID: "a", Probe: "http_status", Target: "t"})
	err := model.ValidateJobs(dup)
	require.ErrorIs(t, err, model.ErrDuplicateJob)
}
