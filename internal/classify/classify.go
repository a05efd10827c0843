package classify

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Tier is the complexity classification for a tool. It drives where an
// invocation runs, how long the result is cached, and the priority a
// deferred job receives.
type Tier string

const (
	TierSimple  Tier = "simple"
	TierMedium  Tier = "medium"
	TierComplex Tier = "complex"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierSimple, TierMedium, TierComplex:
		return true
	}
	return false
}

// QueuePriority returns the offline queue priority for jobs originating
// from this tier. Cheap latency-sensitive work drains before expensive
// work once connectivity returns.
func (t Tier) QueuePriority() int {
	switch t {
	case TierSimple:
		return 30
	case TierMedium:
		return 20
	default:
		return 10
	}
}

// Policy holds the per-tier defaults applied to descriptors that do not
// override them.
type Policy struct {
	CacheTTL     time.Duration
	LocalTimeout time.Duration // zero means no local deadline
}

// DefaultPolicy returns the default policy table for a tier.
func DefaultPolicy(t Tier) Policy {
	switch t {
	case TierSimple:
		return Policy{CacheTTL: time.Hour}
	case TierMedium:
		return Policy{CacheTTL: 30 * time.Minute, LocalTimeout: 2 * time.Second}
	default:
		return Policy{CacheTTL: 2 * time.Hour}
	}
}

// Descriptor describes a registered tool. Immutable after registration.
type Descriptor struct {
	Name         string
	Tier         Tier
	LocalTimeout time.Duration
	CacheTTL     time.Duration
}

// ErrAlreadyRegistered indicates a duplicate tool name.
var ErrAlreadyRegistered = errors.New("tool already registered")

// Registry is the static tool classification table. Tools are registered
// once at startup; lookups are concurrent and read-only afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a descriptor, filling zero policy fields from the tier
// defaults. The name must be unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if !d.Tier.Valid() {
		return fmt.Errorf("tool %s: invalid tier %q", d.Name, d.Tier)
	}

	pol := DefaultPolicy(d.Tier)
	if d.CacheTTL == 0 {
		d.CacheTTL = pol.CacheTTL
	}
	if d.LocalTimeout == 0 {
		d.LocalTimeout = pol.LocalTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[d.Name]; ok {
		return fmt.Errorf("tool %s: %w", d.Name, ErrAlreadyRegistered)
	}
	r.tools[d.Name] = d
	return nil
}

// Lookup returns the descriptor for a tool name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
