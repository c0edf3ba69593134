// Package probe defines the pluggable check contract and the registration
// table mapping probe names to factories. Probes are opaque to the engine
// beyond Run; concrete checks live with the caller.
package probe

import (
	"context"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Probe is a single pluggable check executed against one target.
// Run should honor ctx cancellation; blocking I/O must carry its own
// deadline, otherwise the polling timeout strategy cannot bound it.
type Probe interface {
	Run(ctx context.Context, target string, probeCtx map[string]any) (model.Result, error)
}

// Func adapts a plain function to the Probe interface.
type Func func(ctx context.Context, target string, probeCtx map[string]any) (model.Result, error)

func (f Func) Run(ctx context.Context, target string, probeCtx map[string]any) (model.Result, error) {
	return f(ctx, target, probeCtx)
}

// Factory builds a fresh probe instance for one job execution.
type Factory func() (Probe, error)
