package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry holds the configured adapters and routes an ordered base/quote
// pair to the one adapter that supports it. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Adapter
	ordered []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Adapter),
	}
}

// Register adds an adapter under its name. Duplicate names and adapters whose
// pair is already claimed by a registered adapter are rejected.
func (r *Registry) Register(a *Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[a.Name()]; ok {
		return fmt.Errorf("%w: adapter %q already registered", ErrInvalidConfiguration, a.Name())
	}
	for _, existing := range r.byName {
		if existing.Supports(a.VaultToken(), a.QuoteUnit()) {
			return fmt.Errorf("%w: pair %s/%s already served by %q",
				ErrInvalidConfiguration, a.VaultToken().Hex(), a.QuoteUnit().Hex(), existing.Name())
		}
	}

	r.byName[a.Name()] = a
	r.ordered = append(r.ordered, a.Name())
	sort.Strings(r.ordered)
	return nil
}

// Lookup returns the adapter serving the ordered pair base/quote.
func (r *Registry) Lookup(base, quote common.Address) (*Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.ordered {
		if r.byName[name].Supports(base, quote) {
			return r.byName[name], nil
		}
	}
	return nil, fmt.Errorf("%w: base %s, quote %s", ErrPairNotSupported, base.Hex(), quote.Hex())
}

// Get returns the adapter registered under name, if any.
func (r *Registry) Get(name string) (*Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// List returns all registered adapters in name order.
func (r *Registry) List() []*Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Adapter, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.byName[name])
	}
	return out
}
