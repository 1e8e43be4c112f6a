// Package generator defines the pluggable step generators the pipeline
// invokes after a plan passes its attestation gate. A generator is a pure
// function of the verified plan and one step definition: given the same
// plan it must produce the same bytes, which is what makes re-runs
// byte-identical and artifact overwriting safe.
package generator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/planseal/planseal/internal/plan"
)

// Info describes a generator's identity.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("generator: id is required")
	}
	if i.Version == "" {
		return fmt.Errorf("generator: version is required for %s", i.ID)
	}
	return nil
}

// Config carries generator-specific configuration (opaque to the runtime).
type Config map[string]any

// Request bundles everything a generator may consult: the verified plan
// and the step being executed. Generators must not touch the filesystem
// or the network; they only return content bytes.
type Request struct {
	Plan *plan.Plan
	Step plan.Step
}

// Input resolves a named value, step params taking precedence over plan
// inputs. Missing or non-string values resolve to the empty string.
func (r Request) Input(key string) string {
	if v, ok := r.Step.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if r.Plan == nil {
		return ""
	}
	if v, ok := r.Plan.Inputs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// InputOr resolves a named value with a fallback for absent inputs.
func (r Request) InputOr(key, fallback string) string {
	if v := strings.TrimSpace(r.Input(key)); v != "" {
		return v
	}
	return fallback
}

// Generator is implemented by every content producer.
type Generator interface {
	Info() Info
	Generate(req Request) ([]byte, error)
}

// Factory constructs a generator with the provided configuration.
type Factory func(Config) (Generator, error)

// Registry maintains known generator factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a generator factory. Returns an error if the ID
// already exists.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("generator: id is required")
	}
	if factory == nil {
		return fmt.Errorf("generator: factory is required for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("generator: %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a generator by ID.
func (r *Registry) Resolve(id string, cfg Config) (Generator, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("generator: unknown id %s", id)
	}
	gen, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := gen.Info().Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// IDs returns a sorted list of registered generator identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
