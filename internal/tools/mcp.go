// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer builds an MCP server exposing every registered tool. Policy
// still applies per call, so a registry with the default policy will
// refuse mutating tools until they are allowed.
func (r *Registry) MCPServer(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	r.AddToolsToServer(server)
	return server
}

// AddToolsToServer registers the registry's tools on an MCP server.
func (r *Registry) AddToolsToServer(server *mcp.Server) {
	for _, tool := range r.GetTools() {
		server.AddTool(&mcp.Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Parameters(),
		}, r.mcpHandler(tool.Name()))
	}
}

func (r *Registry) mcpHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeMCPArguments(req.Params.Arguments)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil
		}

		result := r.Execute(ctx, name, args)
		if result.Error != nil {
			text := result.Result
			if text == "" {
				text = fmt.Sprintf("Error: %v", result.Error)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Result}},
		}, nil
	}
}

// decodeMCPArguments normalizes the argument payload: the SDK hands raw
// JSON to untyped handlers, while in-process callers pass maps directly.
func decodeMCPArguments(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case json.RawMessage:
		return unmarshalArgs([]byte(v))
	case []byte:
		return unmarshalArgs(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return unmarshalArgs(data)
	}
}

func unmarshalArgs(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	args := map[string]interface{}{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}
