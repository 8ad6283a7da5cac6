package config

import (
	"context"
	"fmt"

	"github.com/jonwraymond/metatools-mcp/internal/secrets"
)

// resolveSecretRefs resolves secretref:<provider>:<reference> patterns found
// in the gateway's backend configs, in place, honoring cfg.Secrets.Strict. A
// value containing no "secretref:" substring passes through unchanged.
func resolveSecretRefs(cfg *AppConfig) error {
	resolver, err := buildSecretResolver(cfg.Secrets)
	if err != nil {
		return fmt.Errorf("build secret resolver: %w", err)
	}

	ctx := context.Background()
	for i := range cfg.Gateway.Backends {
		b := &cfg.Gateway.Backends[i]

		resolved, err := resolver.ResolveValue(ctx, b.Command)
		if err != nil {
			return fmt.Errorf("gateway backend %q command: %w", b.Name, err)
		}
		b.Command = resolved

		if err := resolver.ResolveSlice(ctx, b.Args); err != nil {
			return fmt.Errorf("gateway backend %q args: %w", b.Name, err)
		}
		if err := resolver.ResolveMap(ctx, b.Env); err != nil {
			return fmt.Errorf("gateway backend %q env: %w", b.Name, err)
		}

		resolved, err = resolver.ResolveValue(ctx, b.URL)
		if err != nil {
			return fmt.Errorf("gateway backend %q url: %w", b.Name, err)
		}
		b.URL = resolved

		if err := resolver.ResolveMap(ctx, b.Headers); err != nil {
			return fmt.Errorf("gateway backend %q headers: %w", b.Name, err)
		}

		resolved, err = resolver.ResolveValue(ctx, b.Prerequisite.StartCommand)
		if err != nil {
			return fmt.Errorf("gateway backend %q prerequisite start_command: %w", b.Name, err)
		}
		b.Prerequisite.StartCommand = resolved

		if err := resolver.ResolveSlice(ctx, b.Prerequisite.StartArgs); err != nil {
			return fmt.Errorf("gateway backend %q prerequisite start_args: %w", b.Name, err)
		}
	}
	return nil
}

// buildSecretResolver instantiates the providers named in cfg.Providers.
// "bws" always resolves, either against a real Bitwarden Secrets Manager
// client when providers.bws.enabled is true, or against the environment
// (the same dev-mode stand-in the reference implementation uses) otherwise.
func buildSecretResolver(cfg SecretsConfig) (*secrets.Resolver, error) {
	reg := secrets.NewRegistry()
	reg.Register("bws", secrets.NewBWSProvider)

	providers := []secrets.Provider{secrets.NewEnvFallbackProvider("env")}

	bwsCfg, bwsConfigured := cfg.Providers["bws"]
	if bwsConfigured && bwsCfg.Enabled {
		p, err := reg.Create("bws", bwsCfg.Config)
		if err != nil {
			return nil, fmt.Errorf("bws provider: %w", err)
		}
		providers = append(providers, p)
	} else {
		providers = append(providers, secrets.NewEnvFallbackProvider("bws"))
	}

	for name, providerCfg := range cfg.Providers {
		if name == "bws" || !providerCfg.Enabled {
			continue
		}
		p, err := reg.Create(name, providerCfg.Config)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		providers = append(providers, p)
	}

	return secrets.NewResolver(cfg.Strict, providers...), nil
}
