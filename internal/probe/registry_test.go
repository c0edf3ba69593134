package probe_test

import (
	"context"
	"testing"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/probe"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, target string, _ map[string]any) (model.Result, error) {
	return model.NewResult("noop", target, model.StatusPass, "")
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := probe.NewRegistry()
	factory := func() (probe.Probe, error) { return probe.Func(noop), nil }

	require.NoError(t, r.Register("noop", factory))

	t.Run("duplicate registration fails", func(t *testing.T) {
		require.Error(t, r.Register("noop", factory))
	})

	t.Run("empty name fails", func(t *testing.T) {
		require.Error(t, r.Register("", factory))
	})

	t.Run("nil factory fails", func(t *testing.T) {
		require.Error(t, r.Register("other", nil))
	})

	t.Run("new builds a probe", func(t *testing.T) {
		p, err := r.New("noop")
		require.NoError(t, err)
		res, err := p.Run(t.Context(), "example.com", nil)
		require.NoError(t, err)
		require.Equal(t, model.StatusPass, res.Status)
	})

	t.Run("unknown probe", func(t *testing.T) {
		_, err := r.New("missing")
		require.ErrorIs(t, err, model.ErrUnknownProbe)
	})
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	r := probe.NewRegistry()
	require.NoError(t, r.Register("noop", func() (probe.Probe, error) { return probe.Func(noop), nil }))
	require.NoError(t, probe.RegisterBuiltins(r))
	require.Equal(t, []string{"http_status", "noop", "response_time", "ssl_expiry", "tcp_connect"}, r.Names())
}
