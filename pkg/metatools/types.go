// Package metatools defines the request/response contracts for the
// gateway's meta-tool surface: the small set of tools exposed to an MCP
// client that let it search, inspect, and call across every aggregated
// backend without the client needing to know which backend owns what.
package metatools

import "errors"

// ErrorObject is the structured error shape returned inline in a meta-tool
// result rather than as a transport-level failure, so a calling model can
// see exactly which tool/step failed without losing the rest of a batch.
type ErrorObject struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	ToolName  string         `json:"tool_name,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToolSummary is the brief-mode shape search_tools and tool_info return.
type ToolSummary struct {
	Name          string   `json:"name"`
	Backend       string   `json:"backend"`
	FirstSentence string   `json:"first_sentence,omitempty"`
	ParamNames    []string `json:"param_names,omitempty"`
	CallExample   string   `json:"call_example,omitempty"`
}

// SearchToolsInput is the input for search_tools.
type SearchToolsInput struct {
	TaskDescription string `json:"task_description"`
	Limit           *int   `json:"limit,omitempty"`
	Brief           *bool  `json:"brief,omitempty"`
}

func (s *SearchToolsInput) Validate() error {
	if s.TaskDescription == "" {
		return errors.New("task_description is required")
	}
	return nil
}

// GetLimit returns the effective result limit, defaulting to 10.
func (s *SearchToolsInput) GetLimit() int {
	if s.Limit == nil || *s.Limit <= 0 {
		return 10
	}
	return *s.Limit
}

// GetBrief returns whether brief mode is requested, defaulting to true.
func (s *SearchToolsInput) GetBrief() bool {
	if s.Brief == nil {
		return true
	}
	return *s.Brief
}

// SearchToolsOutput is the output for search_tools.
type SearchToolsOutput struct {
	Tools []ToolSummary `json:"tools"`
}

// ListToolsMetaInput is the input for list_tools_meta.
type ListToolsMetaInput struct {
	Cursor   string `json:"cursor,omitempty"`
	PageSize *int   `json:"page_size,omitempty"`
}

// GetPageSize returns the effective page size, defaulting to 50.
func (l *ListToolsMetaInput) GetPageSize() int {
	if l.PageSize == nil || *l.PageSize <= 0 {
		return 50
	}
	return *l.PageSize
}

// ListToolsMetaOutput is the output for list_tools_meta.
type ListToolsMetaOutput struct {
	Names      []string `json:"names"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// ToolInfoInput is the input for tool_info.
type ToolInfoInput struct {
	ToolName string `json:"tool_name"`
	Detail   string `json:"detail,omitempty"` // "brief" or "full"
}

func (t *ToolInfoInput) Validate() error {
	if t.ToolName == "" {
		return errors.New("tool_name is required")
	}
	return nil
}

// GetDetail returns the effective detail level, defaulting to "brief".
func (t *ToolInfoInput) GetDetail() string {
	if t.Detail == "" {
		return "brief"
	}
	return t.Detail
}

// ToolInfoOutput is the output for tool_info.
type ToolInfoOutput struct {
	Name        string         `json:"name"`
	Backend     string         `json:"backend"`
	Description string         `json:"description,omitempty"`
	ParamNames  []string       `json:"param_names,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// GetRequiredKeysInput is the input for get_required_keys_for_tool.
type GetRequiredKeysInput struct {
	ToolName string `json:"tool_name"`
}

func (g *GetRequiredKeysInput) Validate() error {
	if g.ToolName == "" {
		return errors.New("tool_name is required")
	}
	return nil
}

// GetRequiredKeysOutput is the output for get_required_keys_for_tool.
type GetRequiredKeysOutput struct {
	Keys []string `json:"keys"`
}

// CallToolChainInput is the input for call_tool_chain.
type CallToolChainInput struct {
	Code          string `json:"code"`
	TimeoutMs     *int   `json:"timeout,omitempty"`
	MaxOutputSize *int   `json:"max_output_size,omitempty"`
}

func (c *CallToolChainInput) Validate() error {
	if c.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

// GetMaxOutputSize returns the effective output cap, defaulting to 200000 bytes.
func (c *CallToolChainInput) GetMaxOutputSize() int {
	if c.MaxOutputSize == nil || *c.MaxOutputSize <= 0 {
		return 200_000
	}
	return *c.MaxOutputSize
}

// CallToolChainOutput is the output for call_tool_chain.
type CallToolChainOutput struct {
	Result any          `json:"result,omitempty"`
	Output string       `json:"output,omitempty"`
	Error  *ErrorObject `json:"error,omitempty"`
}

// RegisterManualInput is the input for register_manual.
type RegisterManualInput struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
}

var manualNamePattern = "^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$"

func (r *RegisterManualInput) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !matchesManualNamePattern(r.Name) {
		return errors.New("name must match " + manualNamePattern)
	}
	switch r.Transport {
	case "stdio":
		if r.Command == "" {
			return errors.New("command is required for stdio transport")
		}
	case "http", "sse", "streamable":
		if r.URL == "" {
			return errors.New("url is required for " + r.Transport + " transport")
		}
	default:
		return errors.New("transport must be one of: stdio, http, sse, streamable")
	}
	return nil
}

func matchesManualNamePattern(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	if !isAlnum(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isAlnum(c) && c != '_' && c != '-' {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// DeregisterManualInput is the input for deregister_manual.
type DeregisterManualInput struct {
	Name string `json:"name"`
}

func (d *DeregisterManualInput) Validate() error {
	if d.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
