// Package metaproviders adapts gwhandlers.Handlers' seven meta-tools into
// provider.ToolProvider implementations, so they register on the MCP server
// through the same provider.Registry/adapter path as any other tool.
package metaproviders

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

func decodeArgs(args map[string]any, out any) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}
