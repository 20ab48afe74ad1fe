package portalpay

import "sync"

// Registry tracks the payment backends a settlement system composes, keyed
// by unit and backend name. A mint typically registers one backend per
// supported unit, but several backends may serve the same unit (e.g. a
// simulated backend next to a real one during migration).
type Registry struct {
	mu       sync.RWMutex
	backends map[CurrencyUnit]map[string]MintPayment
}

// NewRegistry creates an empty backend registry
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[CurrencyUnit]map[string]MintPayment),
	}
}

// Register registers a backend for a unit under the given name
func (r *Registry) Register(unit CurrencyUnit, name string, backend MintPayment) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backends[unit] == nil {
		r.backends[unit] = make(map[string]MintPayment)
	}
	r.backends[unit][name] = backend
	return r
}

// Lookup returns the named backend for a unit, or nil if none is registered
func (r *Registry) Lookup(unit CurrencyUnit, name string) MintPayment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.backends[unit][name]
}

// Backends returns a copy of the name->backend map for a unit
func (r *Registry) Backends(unit CurrencyUnit) map[string]MintPayment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]MintPayment, len(r.backends[unit]))
	for name, backend := range r.backends[unit] {
		out[name] = backend
	}
	return out
}

// Units returns the units that have at least one registered backend
func (r *Registry) Units() []CurrencyUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]CurrencyUnit, 0, len(r.backends))
	for unit, byName := range r.backends {
		if len(byName) > 0 {
			units = append(units, unit)
		}
	}
	return units
}
