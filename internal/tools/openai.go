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
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAITools returns the registered tools as OpenAI function definitions,
// ready to attach to a chat completion request.
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.GetTools()
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	return r.ExecuteOpenAIToolCallWithOptions(ctx, call, ExecuteOptions{})
}

// ExecuteOpenAIToolCallWithOptions executes a tool call with execution
// options. The raw call is validated before anything executes, so a
// malformed payload or missing argument is rejected up front.
func (r *Registry) ExecuteOpenAIToolCallWithOptions(ctx context.Context, call openai.ToolCall, opts ExecuteOptions) *ToolResult {
	name := call.Function.Name
	if name == "" {
		return &ToolResult{
			Function: "unknown_tool",
			Error:    fmt.Errorf("tool call missing function name"),
		}
	}
	if invalid := r.ValidateToolCall(name, call.Function.Arguments); invalid != nil {
		return invalid
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return invalidToolResult(name, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}
	return r.ExecuteWithOptions(ctx, name, args, opts)
}
