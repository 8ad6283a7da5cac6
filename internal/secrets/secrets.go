// Package secrets resolves secretref:<provider>:<reference> patterns found
// in loaded configuration against a set of pluggable secret providers,
// grounded on the same two-tier scheme (a real provider backed by Bitwarden
// Secrets Manager, falling back to plain environment variables when it is
// disabled) the gateway's own reference implementation uses.
package secrets

import (
	"context"
	"fmt"
)

// Provider resolves one secret reference for a single secretref scheme.
type Provider interface {
	// Name is the scheme this provider answers for, e.g. "bws".
	Name() string
	// Resolve returns the secret value for reference, or an error if it
	// cannot be found or the provider itself could not be reached.
	Resolve(ctx context.Context, reference string) (string, error)
}

// Factory constructs a Provider from its SecretProviderConfig.Config map.
type Factory func(cfg map[string]any) (Provider, error)

// Registry maps provider scheme names to the factory that builds them.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any existing one. Providers
// registered later win, which lets a caller register a cheap fallback first
// and override it once the real provider's config is known to be enabled.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create builds the named provider. It returns an error if name was never
// registered.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown secret provider %q", name)
	}
	return f(cfg)
}
