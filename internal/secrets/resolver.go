package secrets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// referencePattern matches secretref:<provider>:<reference> occurrences.
// Provider names exclude ':' and whitespace; references are the path-like
// identifiers providers hand back to their caller (e.g. "project/x/key/Y").
var referencePattern = regexp.MustCompile(`secretref:([^:\s]+):([\w/.\-]+)`)

// Resolver dispatches secretref:<provider>:<reference> patterns to the
// provider registered under <provider>, honoring strict mode: a provider
// that resolves a reference to an empty string is treated as a resolution
// failure rather than silently producing an empty secret.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver builds a Resolver from an already-instantiated provider set.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers)), strict: strict}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[p.Name()] = p
	}
	return r
}

// ResolveValue resolves every secretref pattern in value. A value with no
// "secretref:" substring is returned unchanged. A value consisting of
// exactly one secretref pattern spanning the whole string returns the raw
// resolved secret (so a binary or multi-line secret isn't mangled by string
// splicing); anything else is resolved with in-place substitution.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	if !strings.Contains(value, "secretref:") {
		return value, nil
	}

	matches := referencePattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	if len(matches) == 1 {
		m := matches[0]
		if m[0] == 0 && m[1] == len(value) {
			return r.resolveSingle(ctx, value[m[2]:m[3]], value[m[4]:m[5]])
		}
	}

	// Splice right-to-left so earlier match byte offsets stay valid as later
	// (higher-offset) matches are replaced first.
	result := value
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		resolved, err := r.resolveSingle(ctx, result[m[2]:m[3]], result[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		result = result[:m[0]] + resolved + result[m[1]:]
	}
	return result, nil
}

func (r *Resolver) resolveSingle(ctx context.Context, providerName, reference string) (string, error) {
	p, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("unknown secret provider %q", providerName)
	}
	value, err := p.Resolve(ctx, reference)
	if err != nil {
		return "", fmt.Errorf("provider %q failed to resolve %q: %w", providerName, reference, err)
	}
	if r.strict && value == "" {
		return "", fmt.Errorf("secret provider %q returned empty value for %q (strict mode)", providerName, reference)
	}
	return value, nil
}

// ResolveSlice resolves every element of values in place.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) error {
	for i, v := range values {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return err
		}
		values[i] = resolved
	}
	return nil
}

// ResolveMap resolves every value of m in place, leaving keys untouched.
func (r *Resolver) ResolveMap(ctx context.Context, m map[string]string) error {
	for k, v := range m {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return err
		}
		m[k] = resolved
	}
	return nil
}
