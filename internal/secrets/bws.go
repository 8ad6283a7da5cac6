package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdk "github.com/bitwarden/sdk-go"
)

// BWSProvider resolves secretref:bws:project/<name>/key/<key> references
// against Bitwarden Secrets Manager. It logs in once and caches every
// project and secret the access token can see, so later Resolve calls are
// pure map lookups rather than one round trip per reference.
type BWSProvider struct {
	client         sdk.BitwardenClientInterface
	projectsByName map[string]string
	secretsByKey   map[string]string // "<projectID>/<key>" -> value
}

// NewBWSProvider authenticates against Bitwarden Secrets Manager and caches
// its projects and secrets. cfg is the provider's SecretProviderConfig.Config
// map; it accepts:
//
//	access_token    BWS service account access token (falls back to BWS_ACCESS_TOKEN)
//	organization_id organization UUID (falls back to BWS_ORG_ID)
//	api_url         override for the Bitwarden API base URL
//	identity_url    override for the Bitwarden identity base URL
//	state_file      path BWS persists its session state to
func NewBWSProvider(cfg map[string]any) (Provider, error) {
	accessToken := stringOrEnv(cfg, "access_token", "BWS_ACCESS_TOKEN")
	if accessToken == "" {
		return nil, fmt.Errorf("bws provider requires \"access_token\" in config or BWS_ACCESS_TOKEN in the environment")
	}
	orgID := stringOrEnv(cfg, "organization_id", "BWS_ORG_ID")
	if orgID == "" {
		return nil, fmt.Errorf("bws provider requires \"organization_id\" in config or BWS_ORG_ID in the environment")
	}

	apiURL := stringPtr(cfg, "api_url")
	identityURL := stringPtr(cfg, "identity_url")
	stateFile := stringPtr(cfg, "state_file")

	client, err := sdk.NewBitwardenClient(apiURL, identityURL)
	if err != nil {
		return nil, fmt.Errorf("create bws client: %w", err)
	}
	if err := client.AccessTokenLogin(accessToken, stateFile); err != nil {
		return nil, fmt.Errorf("bws authentication failed: %w", err)
	}

	projects, err := client.Projects().List(orgID)
	if err != nil {
		return nil, fmt.Errorf("list bws projects: %w", err)
	}
	projectsByName := make(map[string]string, len(projects.Data))
	for _, p := range projects.Data {
		projectsByName[p.Name] = p.ID
	}

	identifiers, err := client.Secrets().List(orgID)
	if err != nil {
		return nil, fmt.Errorf("list bws secret identifiers: %w", err)
	}
	ids := make([]string, 0, len(identifiers.Data))
	for _, id := range identifiers.Data {
		ids = append(ids, id.ID)
	}

	secretsByKey := make(map[string]string, len(ids))
	if len(ids) > 0 {
		secrets, err := client.Secrets().GetByIDS(ids)
		if err != nil {
			return nil, fmt.Errorf("fetch bws secrets: %w", err)
		}
		for _, s := range secrets.Data {
			if s.ProjectID == nil {
				continue
			}
			secretsByKey[*s.ProjectID+"/"+s.Key] = s.Value
		}
	}

	return &BWSProvider{client: client, projectsByName: projectsByName, secretsByKey: secretsByKey}, nil
}

// Name returns "bws".
func (p *BWSProvider) Name() string { return "bws" }

// Resolve looks up a "project/<name>/key/<key>" reference in the cached
// project/secret maps.
func (p *BWSProvider) Resolve(_ context.Context, reference string) (string, error) {
	parts := strings.SplitN(reference, "/", 4)
	if len(parts) != 4 || parts[0] != "project" || parts[2] != "key" {
		return "", fmt.Errorf("invalid bws reference %q (expected \"project/<name>/key/<key>\")", reference)
	}
	projectName, key := parts[1], parts[3]

	projectID, ok := p.projectsByName[projectName]
	if !ok {
		return "", fmt.Errorf("bws project not found: %q", projectName)
	}
	value, ok := p.secretsByKey[projectID+"/"+key]
	if !ok {
		return "", fmt.Errorf("bws secret not found: project=%q key=%q", projectName, key)
	}
	return value, nil
}

func stringPtr(cfg map[string]any, key string) *string {
	v, _ := cfg[key].(string)
	if v == "" {
		return nil
	}
	return &v
}

func stringOrEnv(cfg map[string]any, key, envVar string) string {
	if v, _ := cfg[key].(string); v != "" {
		return v
	}
	return os.Getenv(envVar)
}
