// Command import-mcp-gateway-backends converts another MCP aggregator's
// backend list (a YAML `backends:` sequence of named entries, each with a
// command or a URL) into a metatools-mcp gateway config fragment, so an operator
// migrating off another aggregator doesn't have to retype every backend by
// hand.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/metatools-mcp/internal/config"
)

// sourceConfig is the foreign schema being imported: a flat list of backends
// keyed by name, each either a command to spawn or a URL to dial.
type sourceConfig struct {
	Backends []sourceBackend `yaml:"backends"`
}

type sourceBackend struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
}

// outputDoc wraps the imported backends under the same "gateway:" key
// metatools-mcp expects in its own config file.
type outputDoc struct {
	Gateway outputGateway `yaml:"gateway"`
}

type outputGateway struct {
	Backends []config.GatewayBackendConfig `yaml:"backends"`
}

func main() {
	in := flag.String("in", "", "path to the foreign MCP config to import (required)")
	out := flag.String("out", "", "output path for the gateway config fragment (default: stdout)")
	flag.Parse()

	if strings.TrimSpace(*in) == "" {
		fatalf("-in is required")
	}

	b, err := os.ReadFile(*in)
	if err != nil {
		fatalf("read input: %v", err)
	}

	rendered, err := importBackendsYAML(b)
	if err != nil {
		fatalf("import: %v", err)
	}

	if *out == "" {
		if _, err := os.Stdout.Write(rendered); err != nil {
			fatalf("write stdout: %v", err)
		}
		return
	}
	if err := os.WriteFile(*out, rendered, 0o644); err != nil {
		fatalf("write output: %v", err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func importBackendsYAML(input []byte) ([]byte, error) {
	var src sourceConfig
	if err := yaml.Unmarshal(input, &src); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	backends := make([]config.GatewayBackendConfig, 0, len(src.Backends))
	for _, b := range src.Backends {
		converted, ok := convertBackend(b)
		if !ok {
			continue
		}
		backends = append(backends, converted)
	}

	sort.Slice(backends, func(i, j int) bool { return backends[i].Name < backends[j].Name })

	node, err := stableYAML(outputDoc{Gateway: outputGateway{Backends: backends}})
	if err != nil {
		return nil, err
	}
	return renderYAML(node)
}

// convertBackend maps one foreign backend entry onto a GatewayBackendConfig,
// inferring stdio vs. streamable transport from its fields: a command wins
// over a URL when both are present.
func convertBackend(b sourceBackend) (config.GatewayBackendConfig, bool) {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return config.GatewayBackendConfig{}, false
	}

	if strings.TrimSpace(b.Command) != "" {
		return config.GatewayBackendConfig{
			Name:      name,
			Transport: "stdio",
			Command:   b.Command,
			Args:      append([]string(nil), b.Args...),
		}, true
	}

	if !isRemoteURL(b) {
		return config.GatewayBackendConfig{}, false
	}
	return config.GatewayBackendConfig{
		Name:      name,
		Transport: "streamable",
		URL:       b.URL,
		Headers:   cloneHeaders(b.Headers),
		Retry:     config.RetryConfig{MaxRetries: 5},
	}, true
}

func isRemoteURL(b sourceBackend) bool {
	if strings.TrimSpace(b.URL) == "" {
		return false
	}
	if strings.TrimSpace(b.Transport) == "streamable-http" {
		return true
	}
	parsed, err := url.Parse(b.URL)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "sse":
		return true
	default:
		return false
	}
}

func cloneHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stableYAML(doc outputDoc) (*yaml.Node, error) {
	// Encode via yaml.Node so map key order doesn't churn diffs between runs.
	var root yaml.Node
	if err := root.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if root.Kind == 0 {
		return nil, errors.New("unexpected yaml encoding")
	}
	sortMappingNodeKeys(&root)
	return &root, nil
}

func sortMappingNodeKeys(n *yaml.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		// Content is [k1, v1, k2, v2, ...]. Sort by key value.
		type kv struct{ k, v *yaml.Node }
		pairs := make([]kv, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			pairs = append(pairs, kv{k: n.Content[i], v: n.Content[i+1]})
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k.Value < pairs[j].k.Value })
		n.Content = n.Content[:0]
		for _, p := range pairs {
			n.Content = append(n.Content, p.k, p.v)
		}
		for _, p := range pairs {
			sortMappingNodeKeys(p.v)
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range n.Content {
			sortMappingNodeKeys(c)
		}
	default:
		// Scalars: nothing.
	}
}

func renderYAML(doc *yaml.Node) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("yaml doc is nil")
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}
