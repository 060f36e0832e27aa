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
	"strings"
)

type editFileArgs struct {
	Path   string      `json:"path" jsonschema:"description=Path to the file to edit,minLength=1"`
	Edits  []editEntry `json:"edits" jsonschema:"description=Ordered list of text replacements applied left to right"`
	DryRun bool        `json:"dryRun,omitempty" jsonschema:"description=Preview the change as a diff without writing the file"`
}

type editEntry struct {
	OldText string `json:"oldText" jsonschema:"description=Text to search for - must match exactly or line-by-line ignoring whitespace,minLength=1"`
	NewText string `json:"newText" jsonschema:"description=Text to replace the match with"`
}

type searchFilesArgs struct {
	Path            string   `json:"path" jsonschema:"description=Directory to search under,minLength=1"`
	Pattern         string   `json:"pattern" jsonschema:"description=Case-insensitive substring matched against entry names,minLength=1"`
	ExcludePatterns []string `json:"excludePatterns,omitempty" jsonschema:"description=Glob patterns for paths to skip"`
}

type readMultipleFilesArgs struct {
	Paths []string `json:"paths" jsonschema:"description=Paths of the files to read"`
}

// builtins holds the collaborators shared by all built-in tools.
type builtins struct {
	svc Services
}

// registerBuiltInTools registers all built-in filesystem tools.
func registerBuiltInTools(r *Registry, svc Services) {
	svc.Limits = svc.Limits.Normalize()
	b := &builtins{svc: svc}

	register := func(tool Tool) {
		if err := r.RegisterTool(tool); err != nil {
			panic(err)
		}
	}

	readFileParams := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read",
			},
			"head": map[string]interface{}{
				"type":        "number",
				"description": "Return only the first N lines",
			},
			"tail": map[string]interface{}{
				"type":        "number",
				"description": "Return only the last N lines",
			},
		},
		"required": []string{"path"},
	}

	register(&ToolDefinition{
		NameValue: "read_file",
		DescriptionValue: "Read the complete contents of a text file. Use head or tail " +
			"to read only the first or last N lines.",
		ParametersValue: readFileParams,
		ExecuteFunc:     b.readFile,
		ValidateFunc:    RequireNonEmptyArg("path", "missing or invalid 'path' parameter"),
	})

	// Alias kept for clients that use the newer name.
	register(&ToolDefinition{
		NameValue: "read_text_file",
		DescriptionValue: "Read the complete contents of a text file. Use head or tail " +
			"to read only the first or last N lines.",
		ParametersValue: readFileParams,
		ExecuteFunc:     b.readFile,
		ValidateFunc:    RequireNonEmptyArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue: "read_multiple_files",
		DescriptionValue: "Read several files in one call. Failures are reported per " +
			"file and do not abort the rest of the batch.",
		ParametersValue: mustSchemaParametersFor[readMultipleFilesArgs](),
		ExecuteFunc:     b.readMultipleFiles,
		ValidateFunc:    RequireNonEmptyArg("paths", "missing or invalid 'paths' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "write_file",
		DescriptionValue: "Create a new text file or overwrite an existing one",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to write",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			"required": []string{"path", "content"},
		},
		ExecuteFunc: b.writeFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("path", "missing or invalid 'path' parameter"),
			RequireNonEmptyArg("content", "missing or invalid 'content' parameter"),
		),
	})

	register(&ToolDefinition{
		NameValue: "edit_file",
		DescriptionValue: "Apply ordered text replacements to a file and return a unified " +
			"diff of the change. Matching falls back to line-by-line comparison that " +
			"ignores surrounding whitespace. Set dryRun to preview without writing.",
		ParametersValue: mustSchemaParametersFor[editFileArgs](),
		ExecuteFunc:     b.editFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("path", "missing or invalid 'path' parameter"),
			RequireNonEmptyArg("edits", "missing or invalid 'edits' parameter"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "create_directory",
		DescriptionValue: "Create a directory, including missing parent directories",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the directory to create",
				},
			},
			"required": []string{"path"},
		},
		ExecuteFunc:  b.createDirectory,
		ValidateFunc: RequireStringArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "list_directory",
		DescriptionValue: "List directory entries, marking each as [FILE] or [DIR]",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the directory to list",
				},
			},
			"required": []string{"path"},
		},
		ExecuteFunc:  b.listDirectory,
		ValidateFunc: RequireStringArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "list_directory_with_sizes",
		DescriptionValue: "List directory entries with file sizes and a summary line",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the directory to list",
				},
			},
			"required": []string{"path"},
		},
		ExecuteFunc:  b.listDirectoryWithSizes,
		ValidateFunc: RequireStringArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "directory_tree",
		DescriptionValue: "Return a recursive JSON tree of files and directories",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Root of the tree",
				},
			},
			"required": []string{"path"},
		},
		ExecuteFunc:  b.directoryTree,
		ValidateFunc: RequireStringArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "move_file",
		DescriptionValue: "Move or rename a file or directory. Fails if the destination already exists.",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Existing path to move",
				},
				"destination": map[string]interface{}{
					"type":        "string",
					"description": "New path",
				},
			},
			"required": []string{"source", "destination"},
		},
		ExecuteFunc: b.moveFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("source", "missing or invalid 'source' parameter"),
			RequireStringArg("destination", "missing or invalid 'destination' parameter"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "copy_file",
		DescriptionValue: "Copy a file, or a directory when recursive is set",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Existing path to copy",
				},
				"destination": map[string]interface{}{
					"type":        "string",
					"description": "Destination path",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Copy directories recursively",
				},
			},
			"required": []string{"source", "destination"},
		},
		ExecuteFunc: b.copyFile,
		ValidateFunc: ChainValidation(
			RequireStringArg("source", "missing or invalid 'source' parameter"),
			RequireStringArg("destination", "missing or invalid 'destination' parameter"),
		),
	})

	register(&ToolDefinition{
		NameValue: "search_files",
		DescriptionValue: "Recursively search for entries whose name contains a pattern. " +
			"Subtrees that cannot be validated or read are skipped.",
		ParametersValue: mustSchemaParametersFor[searchFilesArgs](),
		ExecuteFunc:     b.searchFiles,
		ValidateFunc: ChainValidation(
			RequireStringArg("path", "missing or invalid 'path' parameter"),
			RequireStringArg("pattern", "missing or invalid 'pattern' parameter"),
		),
	})

	register(&ToolDefinition{
		NameValue:        "get_file_info",
		DescriptionValue: "Get metadata for a file or directory: size, timestamps, type and permissions",
		ParametersValue: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to inspect",
				},
			},
			"required": []string{"path"},
		},
		ExecuteFunc:  b.getFileInfo,
		ValidateFunc: RequireStringArg("path", "missing or invalid 'path' parameter"),
	})

	register(&ToolDefinition{
		NameValue:        "list_allowed_directories",
		DescriptionValue: "List the root directories this server is allowed to access",
		ParametersValue: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		ExecuteFunc: b.listAllowedDirectories,
	})
}

// Argument extraction helpers

func ensureContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// extractPathArg accepts a variety of shapes for the path argument and normalizes to string.
func extractPathArg(args map[string]interface{}) (string, error) {
	if args == nil {
		return "", fmt.Errorf("missing or invalid 'path' parameter")
	}

	if path, ok := getStringLike(args["path"]); ok {
		return path, nil
	}

	// Common alternate keys the model sometimes emits.
	if path, ok := getStringLike(args["file"]); ok {
		return path, nil
	}
	if path, ok := getStringLike(args["filepath"]); ok {
		return path, nil
	}

	return "", fmt.Errorf("missing or invalid 'path' parameter")
}

func getStringLike(val interface{}) (string, bool) {
	switch v := val.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	default:
		return "", false
	}
}

func extractStringArg(args map[string]interface{}, key string) (string, error) {
	value, ok := getStringLike(args[key])
	if !ok {
		return "", fmt.Errorf("missing or invalid '%s' parameter", key)
	}
	return value, nil
}

func extractStringSliceArg(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing or invalid '%s' parameter", key)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("missing or invalid '%s' parameter", key)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("missing or invalid '%s' parameter", key)
	}
}

func getBoolArg(args map[string]interface{}, key string) bool {
	val, ok := args[key].(bool)
	return ok && val
}

func getIntArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
