package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvFallbackProvider resolves a secretref reference against the process
// environment, using the last '/'-delimited path segment as the variable
// name. It is registered under whatever scheme name its caller chooses:
// "env" for explicit use, or "bws" as the stand-in used when the real
// Bitwarden Secrets Manager provider is disabled or unconfigured, so a
// config written against "bws" still resolves in a plain dev environment.
type EnvFallbackProvider struct {
	scheme string
}

// NewEnvFallbackProvider returns a provider registered under scheme.
func NewEnvFallbackProvider(scheme string) *EnvFallbackProvider {
	return &EnvFallbackProvider{scheme: scheme}
}

// Name returns the scheme this provider was constructed for.
func (p *EnvFallbackProvider) Name() string { return p.scheme }

// Resolve looks up reference's final path segment as an environment
// variable.
func (p *EnvFallbackProvider) Resolve(_ context.Context, reference string) (string, error) {
	key := reference
	if idx := strings.LastIndex(reference, "/"); idx >= 0 {
		key = reference[idx+1:]
	}
	if key == "" {
		return "", fmt.Errorf("cannot extract a variable name from secretref reference %q", reference)
	}
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secretref:%s:%s — %s provider is disabled and env var %q was not found; set %q in the environment", p.scheme, reference, p.scheme, key, key)
	}
	return value, nil
}
