package sandbox

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolAccessor describes one backend tool exposed into a sandbox evaluation.
type ToolAccessor struct {
	Backend      string
	OriginalName string
	Description  string
	InputSchema  map[string]any
}

var dangerousIdentifiers = []string{"require", "process", "module", "exports", "Buffer"}

// sanitizeIdentifier turns an arbitrary backend/tool name into a valid
// JS-style identifier: each non-alphanumeric character becomes `_`, a leading digit
// is prefixed, and an empty result becomes `_unnamed`.
func sanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_unnamed"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// BuildPreamble renders the JS-style preamble source injected ahead of every
// sandbox evaluation: one accessor object per backend, one sanitized method
// per tool, a parallel __interfaces map, and shadowed dangerous globals.
// Backend and tool names are embedded via json.Marshal so user-controlled
// names can never break out of the generated source.
func BuildPreamble(tools []ToolAccessor) (string, error) {
	byBackend := make(map[string][]ToolAccessor)
	var backendOrder []string
	for _, t := range tools {
		if _, seen := byBackend[t.Backend]; !seen {
			backendOrder = append(backendOrder, t.Backend)
		}
		byBackend[t.Backend] = append(byBackend[t.Backend], t)
	}
	sort.Strings(backendOrder)

	var src strings.Builder
	src.WriteString("// auto-generated sandbox preamble\n")
	src.WriteString("const __interfaces = {};\n")

	for _, backend := range backendOrder {
		ident := sanitizeIdentifier(backend)
		backendJSON, err := json.Marshal(backend)
		if err != nil {
			return "", fmt.Errorf("encode backend name %q: %w", backend, err)
		}
		fmt.Fprintf(&src, "const %s = {};\n", ident)

		entries := byBackend[backend]
		sort.Slice(entries, func(i, j int) bool { return entries[i].OriginalName < entries[j].OriginalName })
		for _, t := range entries {
			method := sanitizeIdentifier(t.OriginalName)
			toolJSON, err := json.Marshal(t.OriginalName)
			if err != nil {
				return "", fmt.Errorf("encode tool name %q: %w", t.OriginalName, err)
			}
			fmt.Fprintf(&src, "%s.%s = function(args) { return __hostCall(%s, %s, args || {}); };\n",
				ident, method, backendJSON, toolJSON)

			schema, err := json.Marshal(t.InputSchema)
			if err != nil {
				return "", fmt.Errorf("encode schema for %s.%s: %w", backend, t.OriginalName, err)
			}
			desc, err := json.Marshal(t.Description)
			if err != nil {
				return "", fmt.Errorf("encode description for %s.%s: %w", backend, t.OriginalName, err)
			}
			fqName, err := json.Marshal(backend + "." + t.OriginalName)
			if err != nil {
				return "", fmt.Errorf("encode qualified name for %s.%s: %w", backend, t.OriginalName, err)
			}
			fmt.Fprintf(&src, "__interfaces[%s] = { name: %s, description: %s, input_schema: %s };\n",
				fqName, fqName, desc, schema)
		}
	}

	src.WriteString("function __getToolInterface(name) { return __interfaces[name]; }\n")
	for _, ident := range dangerousIdentifiers {
		fmt.Fprintf(&src, "const %s = undefined;\n", ident)
	}
	return src.String(), nil
}
