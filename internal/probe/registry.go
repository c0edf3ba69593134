package probe

import (
	"fmt"
	"slices"
	"sync"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// Registry is an explicit probe table built at startup.
// There is no filesystem discovery: callers register what they ship.
type Registry struct {
	mx        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a named factory. Registering a name twice is an error,
// silently replacing a probe hides wiring mistakes.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("probe name is empty")
	}
	if f == nil {
		return fmt.Errorf("probe %s: factory is nil", name)
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("probe %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New builds a probe instance by name.
func (r *Registry) New(name string) (Probe, error) {
	r.mx.RLock()
	f, ok := r.factories[name]
	r.mx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, model.ErrUnknownProbe)
	}
	return f()
}

// Names lists registered probes in a stable order.
func (r *Registry) Names() []string {
	r.mx.RLock()
	defer r.mx.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
