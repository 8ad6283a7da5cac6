package metaproviders

import (
	"context"

	"github.com/jonwraymond/metatools-mcp/internal/gwhandlers"
	"github.com/jonwraymond/metatools-mcp/internal/provider"
	"github.com/jonwraymond/metatools-mcp/pkg/metatools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// All returns every meta-tool provider backed by h.
func All(h *gwhandlers.Handlers) []provider.ToolProvider {
	return []provider.ToolProvider{
		&searchToolsProvider{h},
		&listToolsMetaProvider{h},
		&toolInfoProvider{h},
		&getRequiredKeysProvider{h},
		&callToolChainProvider{h},
		&registerManualProvider{h},
		&deregisterManualProvider{h},
	}
}

// Register adds every meta-tool provider backed by h into reg.
func Register(reg *provider.Registry, h *gwhandlers.Handlers) error {
	for _, p := range All(h) {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

type searchToolsProvider struct{ h *gwhandlers.Handlers }

func (p *searchToolsProvider) Name() string   { return "search_tools" }
func (p *searchToolsProvider) Enabled() bool  { return true }
func (p *searchToolsProvider) Tool() mcp.Tool { return searchToolsTool() }
func (p *searchToolsProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.SearchToolsInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	out, err := p.h.SearchTools(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

type listToolsMetaProvider struct{ h *gwhandlers.Handlers }

func (p *listToolsMetaProvider) Name() string   { return "list_tools_meta" }
func (p *listToolsMetaProvider) Enabled() bool  { return true }
func (p *listToolsMetaProvider) Tool() mcp.Tool { return listToolsMetaTool() }
func (p *listToolsMetaProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.ListToolsMetaInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	out, err := p.h.ListToolsMeta(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

type toolInfoProvider struct{ h *gwhandlers.Handlers }

func (p *toolInfoProvider) Name() string   { return "tool_info" }
func (p *toolInfoProvider) Enabled() bool  { return true }
func (p *toolInfoProvider) Tool() mcp.Tool { return toolInfoTool() }
func (p *toolInfoProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.ToolInfoInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	out, err := p.h.ToolInfo(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

type getRequiredKeysProvider struct{ h *gwhandlers.Handlers }

func (p *getRequiredKeysProvider) Name() string   { return "get_required_keys_for_tool" }
func (p *getRequiredKeysProvider) Enabled() bool  { return true }
func (p *getRequiredKeysProvider) Tool() mcp.Tool { return getRequiredKeysTool() }
func (p *getRequiredKeysProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.GetRequiredKeysInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	out, err := p.h.GetRequiredKeysForTool(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

type callToolChainProvider struct{ h *gwhandlers.Handlers }

func (p *callToolChainProvider) Name() string   { return "call_tool_chain" }
func (p *callToolChainProvider) Enabled() bool  { return true }
func (p *callToolChainProvider) Tool() mcp.Tool { return callToolChainTool() }
func (p *callToolChainProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.CallToolChainInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	out := p.h.CallToolChain(ctx, in)
	return &mcp.CallToolResult{IsError: out.Error != nil}, out, nil
}

type registerManualProvider struct{ h *gwhandlers.Handlers }

func (p *registerManualProvider) Name() string   { return "register_manual" }
func (p *registerManualProvider) Enabled() bool  { return true }
func (p *registerManualProvider) Tool() mcp.Tool { return registerManualTool() }
func (p *registerManualProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.RegisterManualInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	if err := p.h.RegisterManual(ctx, in); err != nil {
		return nil, nil, err
	}
	return nil, struct {
		Registered string `json:"registered"`
	}{Registered: in.Name}, nil
}

type deregisterManualProvider struct{ h *gwhandlers.Handlers }

func (p *deregisterManualProvider) Name() string   { return "deregister_manual" }
func (p *deregisterManualProvider) Enabled() bool  { return true }
func (p *deregisterManualProvider) Tool() mcp.Tool { return deregisterManualTool() }
func (p *deregisterManualProvider) Handle(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	var in metatools.DeregisterManualInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	if err := p.h.DeregisterManual(ctx, in); err != nil {
		return nil, nil, err
	}
	return nil, struct {
		Deregistered string `json:"deregistered"`
	}{Deregistered: in.Name}, nil
}
