package provider

import (
	"fmt"
	"sort"
	"strings"
)

// Bundle groups the provider roles a run consumes. Text and Image are
// required; exactly one of Evaluator or Judge selects the ranking mode.
// Critic is required for refinement iterations.
type Bundle struct {
	Text      TextProvider
	Image     ImageProvider
	Evaluator Evaluator
	Judge     PairwiseJudge
	Critic    CritiqueGenerator
}

// Factory creates a provider bundle.
type Factory func() (Bundle, error)

// Registry maps bundle names to factory functions.
// It is not safe for concurrent use; registration should happen at startup.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named bundle factory. Overwrites if name already exists.
// Panics if name is empty or f is nil (programmer error).
func (r *Registry) Register(name string, f Factory) {
	if name == "" {
		panic("provider: Register called with empty name")
	}
	if f == nil {
		panic("provider: Register called with nil factory")
	}
	r.factories[name] = f
}

// NewBundle instantiates a bundle by name.
// Returns an error if the name is not registered or the factory fails.
func (r *Registry) NewBundle(name string) (Bundle, error) {
	f, ok := r.factories[name]
	if !ok {
		return Bundle{}, &UnknownProviderError{
			Name:      name,
			Available: r.Available(),
		}
	}
	b, err := f()
	if err != nil {
		return Bundle{}, fmt.Errorf("provider factory %q: %w", name, err)
	}
	return b, nil
}

// Available returns registered bundle names in sorted order.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownProviderError indicates a bundle name is not registered.
type UnknownProviderError struct {
	Name      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
