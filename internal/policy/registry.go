package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/registry"
)

var (
	ErrPolicyExists  = errors.New("policy already exists")
	ErrPolicyNil     = errors.New("policy factory is nil")
	ErrPolicyUnknown = errors.New("unknown policy")
)

// DefaultName selects the counting policy when a platform names none.
const DefaultName = "counting"

// Deps carries what a policy may need at construction.
type Deps struct {
	Agents *registry.Table
	Logger zerolog.Logger
}

// Factory builds a policy bound to one agent topology.
type Factory func(Deps) (Policy, error)

// Registry stores policy factories by name so platform config can pick
// one at startup.
type Registry struct {
	items map[string]Factory
}

// NewRegistry creates a registry holding the built-in policies.
func NewRegistry() *Registry {
	r := &Registry{items: make(map[string]Factory)}
	// Built-ins cannot collide in a fresh map.
	_ = r.Register(DefaultName, func(d Deps) (Policy, error) { return NewCounting(d) })
	_ = r.Register("passthrough", func(Deps) (Policy, error) { return Passthrough{}, nil })
	return r
}

// Register adds a named factory.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return ErrPolicyNil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("policy name is required")
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %q", ErrPolicyExists, name)
	}
	r.items[name] = f
	return nil
}

// Build instantiates the named policy.
func (r *Registry) Build(name string, deps Deps) (Policy, error) {
	f, ok := r.items[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrPolicyUnknown, name, strings.Join(r.Names(), ", "))
	}
	return f(deps)
}

// Names returns the registered policy names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
