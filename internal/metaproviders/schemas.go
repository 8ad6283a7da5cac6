package metaproviders

import "github.com/modelcontextprotocol/go-sdk/mcp"

func searchToolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_tools",
		Description: "Search the aggregated tool catalog by task description",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_description": map[string]any{"type": "string"},
				"limit":             map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
				"brief":             map[string]any{"type": "boolean"},
			},
			"required":             []string{"task_description"},
			"additionalProperties": false,
		},
	}
}

func listToolsMetaTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_tools_meta",
		Description: "List every registered tool name, paginated",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cursor":    map[string]any{"type": "string"},
				"page_size": map[string]any{"type": "integer", "minimum": 1, "maximum": 500},
			},
			"additionalProperties": false,
		},
	}
}

func toolInfoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "tool_info",
		Description: "Describe one tool by name, in brief or full detail",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tool_name": map[string]any{"type": "string"},
				"detail":    map[string]any{"type": "string", "enum": []string{"brief", "full"}},
			},
			"required":             []string{"tool_name"},
			"additionalProperties": false,
		},
	}
}

func getRequiredKeysTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_required_keys_for_tool",
		Description: "Return the environment/secret keys a tool's backend requires",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tool_name": map[string]any{"type": "string"},
			},
			"required":             []string{"tool_name"},
			"additionalProperties": false,
		},
	}
}

func callToolChainTool() mcp.Tool {
	return mcp.Tool{
		Name: "call_tool_chain",
		Description: "Invoke one tool directly, or evaluate multi-tool orchestration code in the sandbox",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code":            map[string]any{"type": "string"},
				"timeout":         map[string]any{"type": "integer", "minimum": 1},
				"max_output_size": map[string]any{"type": "integer", "minimum": 1},
			},
			"required":             []string{"code"},
			"additionalProperties": false,
		},
	}
}

func registerManualTool() mcp.Tool {
	return mcp.Tool{
		Name:        "register_manual",
		Description: "Register a backend at runtime from an explicit transport/command/url template",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":      map[string]any{"type": "string"},
				"transport": map[string]any{"type": "string", "enum": []string{"stdio", "http", "sse", "streamable"}},
				"command":   map[string]any{"type": "string"},
				"args":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"env":       map[string]any{"type": "object"},
				"url":       map[string]any{"type": "string"},
			},
			"required":             []string{"name", "transport"},
			"additionalProperties": false,
		},
	}
}

func deregisterManualTool() mcp.Tool {
	return mcp.Tool{
		Name:        "deregister_manual",
		Description: "Remove a runtime-registered backend",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required":             []string{"name"},
			"additionalProperties": false,
		},
	}
}
