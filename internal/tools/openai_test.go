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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAIToolsExportsAllDefinitions(t *testing.T) {
	registry, _ := newTestRegistry(t)
	defs := registry.OpenAITools()
	if len(defs) != len(registry.GetToolNames()) {
		t.Fatalf("expected %d definitions, got %d", len(registry.GetToolNames()), len(defs))
	}
	for _, def := range defs {
		if def.Type != openai.ToolTypeFunction {
			t.Errorf("tool %q has wrong type %q", def.Function.Name, def.Type)
		}
		if def.Function.Description == "" && def.Function.Name != "list_allowed_directories" {
			t.Errorf("tool %q has no description", def.Function.Name)
		}
		if def.Function.Parameters == nil {
			t.Errorf("tool %q has no parameters schema", def.Function.Name)
		}
	}
}

func TestExecuteOpenAIToolCall(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "from_call.txt")
	mustWriteFile(t, path, "via tool call")

	call := openai.ToolCall{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "read_file",
			Arguments: fmt.Sprintf(`{"path":%q}`, path),
		},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error != nil {
		t.Fatalf("tool call failed: %v", result.Error)
	}
	if result.Result != "via tool call" {
		t.Fatalf("unexpected result: %q", result.Result)
	}
}

func TestExecuteOpenAIToolCallInvalidArguments(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		Function: openai.FunctionCall{Name: "read_file", Arguments: "{broken"},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error == nil {
		t.Fatal("expected malformed arguments to fail")
	}
}

func TestExecuteOpenAIToolCallValidatesBeforeExecution(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		Function: openai.FunctionCall{Name: "read_file", Arguments: `{}`},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error == nil {
		t.Fatal("expected missing path argument to be rejected")
	}
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", result.Error)
	}
	if !strings.Contains(result.Result, "Error") {
		t.Fatalf("result should carry the error text: %q", result.Result)
	}
}

func TestExecuteOpenAIToolCallMissingName(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.ExecuteOpenAIToolCall(context.Background(), openai.ToolCall{})
	if result.Error == nil {
		t.Fatal("expected missing function name to fail")
	}
}
