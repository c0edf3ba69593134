package model_test

import (
	"strings"
	"testing"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
engine:
  parallel_execution: true
  max_parallel_tests: 8
  enable_retries: true
  retry:
    max_retries: 3
    base_delay: 500ms
  pool:
    max_connections: 5
batches:
  - name: nightly
    target: https://example.com
    jobs:
      - id: connect
        probe: tcp_connect
        priority: 10
      - id: status
        probe: http_status
        depends_on: [connect]
        estimated_duration: 2s
service:
  mode: manual
  log: stderr
  repository:
    enabled: true
    url: https://example.com/repo
    auth:
      type: static_token
      token: ABC123
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Version)

	require.NotNil(t, cfg.Engine.ParallelExecution)
	require.True(t, *cfg.Engine.ParallelExecution)
	require.NotNil(t, cfg.Engine.MaxParallelTests)
	require.Equal(t, 8, *cfg.Engine.MaxParallelTests)
	require.NotNil(t, cfg.Engine.Retry)
	require.Equal(t, 3, *cfg.Engine.Retry.MaxRetries)
	require.Equal(t, "500ms", *cfg.Engine.Retry.BaseDelay)
	require.NotNil(t, cfg.Engine.Pool)
	require.Equal(t, 5, *cfg.Engine.Pool.MaxConnections)

	require.Len(t, cfg.Batches, 1)
	batch := cfg.Batches[0]
	require.Equal(t, "nightly", batch.Name)
	jobs, err := batch.JobList()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "https://example.com", jobs[0].Target)
	require.Equal(t, []string{"connect"}, jobs[1].DependsOn)

	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.NotNil(t, cfg.Service.Log)
	require.Equal(t, model.LogStderr, *cfg.Service.Log)
	require.NotNil(t, cfg.Service.Repository)
	require.True(t, cfg.Service.Repository.Enabled)
	require.Equal(t, model.AuthTypeStaticToken, cfg.Service.Repository.Auth.Type)
	require.Equal(t, "ABC123", cfg.Service.Repository.Auth.Token)
}

func TestLoadConfig_Fail(t *testing.T) {
	cases := []struct {
		scenario string
		given    string
	}{
		{"bad version", "version: 1\nservice:\n  mode: manual\n"},
		{"bad mode", "version: 0\nservice:\n  mode: cron\n"},
		{"bad duration", `
version: 0
engine:
  execution_timeout: five seconds
service:
  mode: manual
`},
		{"bad strategy", `
version: 0
engine:
  timeout:
    strategy: hoping
service:
  mode: manual
`},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			require.NotEmpty(t, model.CueErrDetails(err))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig(t.Context())
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
}
