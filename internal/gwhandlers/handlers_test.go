package gwhandlers

import (
	"context"
	"testing"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/prereq"
	"github.com/jonwraymond/metatools-mcp/internal/registry"
	"github.com/jonwraymond/metatools-mcp/internal/tracker"
	"github.com/jonwraymond/metatools-mcp/pkg/metatools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(t *testing.T) (*Handlers, *registry.Registry, *backendmgr.Manager) {
	t.Helper()
	reg := registry.New()
	reg.Register("github", "github", []registry.ToolSpec{
		{
			OriginalName: "get_repo",
			Description:  "Fetches repository metadata. Returns owner and stars.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"owner": map[string]any{"type": "string"}, "name": map[string]any{"type": "string"}},
			},
			Tags: []string{"vcs"},
		},
	})

	mgr := backendmgr.New(reg, prereq.New(nil), 0, nil)
	mgr.StartAll(context.Background(), []backendmgr.Config{
		{
			Name:         "github",
			Namespace:    "github",
			Transport:    backendmgr.TransportComposite,
			RequiredKeys: []string{"GITHUB_TOKEN"},
			Env:          []string{"GITHUB_API_URL=https://api.github.com"},
		},
	})

	h := New(reg, mgr, tracker.New(0), nil, Config{})
	return h, reg, mgr
}

func TestSearchToolsReturnsBriefSummary(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	out, err := h.SearchTools(context.Background(), metatools.SearchToolsInput{TaskDescription: "repository metadata"})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "github.get_repo", out.Tools[0].Name)
	assert.Equal(t, "github", out.Tools[0].Backend)
	assert.Equal(t, "Fetches repository metadata.", out.Tools[0].FirstSentence)
}

func TestSearchToolsRejectsEmptyDescription(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	_, err := h.SearchTools(context.Background(), metatools.SearchToolsInput{})
	assert.Error(t, err)
}

func TestListToolsMetaPaginates(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	pageSize := 1
	out, err := h.ListToolsMeta(context.Background(), metatools.ListToolsMetaInput{PageSize: &pageSize})
	require.NoError(t, err)
	assert.Len(t, out.Names, 1)
	assert.Empty(t, out.NextCursor)
}

func TestToolInfoFullIncludesSchema(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	out, err := h.ToolInfo(context.Background(), metatools.ToolInfoInput{ToolName: "github.get_repo", Detail: "full"})
	require.NoError(t, err)
	assert.Equal(t, "github", out.Backend)
	assert.NotNil(t, out.InputSchema)
	assert.ElementsMatch(t, []string{"owner", "name"}, out.ParamNames)
}

func TestToolInfoUnknownToolErrors(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	_, err := h.ToolInfo(context.Background(), metatools.ToolInfoInput{ToolName: "missing"})
	assert.Error(t, err)
}

func TestGetRequiredKeysUnionsEnvAndRequiredKeys(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	out, err := h.GetRequiredKeysForTool(context.Background(), metatools.GetRequiredKeysInput{ToolName: "github.get_repo"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"GITHUB_TOKEN", "GITHUB_API_URL"}, out.Keys)
}

func TestRegisterManualRefusedWhenDisabled(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	err := h.RegisterManual(context.Background(), metatools.RegisterManualInput{Name: "local", Transport: "stdio", Command: "./tool"})
	assert.Error(t, err)
}

func TestRegisterManualEnforcesMaxDynamicBackends(t *testing.T) {
	reg := registry.New()
	mgr := backendmgr.New(reg, prereq.New(nil), 0, nil)
	h := New(reg, mgr, tracker.New(0), nil, Config{AllowRuntimeRegistration: true, MaxDynamicBackends: 0})
	err := h.RegisterManual(context.Background(), metatools.RegisterManualInput{Name: "local", Transport: "stdio", Command: "./tool"})
	assert.ErrorContains(t, err, "max_dynamic_backends")
}

func TestDeregisterManualRefusesStaticBackend(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	err := h.DeregisterManual(context.Background(), metatools.DeregisterManualInput{Name: "github"})
	assert.ErrorContains(t, err, "not registered at runtime")
}
