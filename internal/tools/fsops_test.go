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
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "fsbox/internal/errors"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func execTool(t *testing.T, registry *Registry, name string, args map[string]interface{}) string {
	t.Helper()
	result := registry.Execute(context.Background(), name, args)
	if result.Error != nil {
		t.Fatalf("%s failed: %v", name, result.Error)
	}
	return result.Result
}

func TestReadFile(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "hello.txt")
	mustWriteFile(t, path, "one\ntwo\nthree\n")

	out := execTool(t, registry, "read_file", map[string]interface{}{"path": path})
	if out != "one\ntwo\nthree\n" {
		t.Fatalf("unexpected content: %q", out)
	}
}

func TestReadFileHeadAndTail(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "lines.txt")
	mustWriteFile(t, path, "a\nb\nc\nd\n")

	out := execTool(t, registry, "read_file", map[string]interface{}{"path": path, "head": float64(2)})
	if out != "a\nb\n" {
		t.Fatalf("head: unexpected content %q", out)
	}

	out = execTool(t, registry, "read_file", map[string]interface{}{"path": path, "tail": float64(2)})
	if out != "c\nd\n" {
		t.Fatalf("tail: unexpected content %q", out)
	}

	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{
		"path": path, "head": float64(1), "tail": float64(1),
	})
	if result.Error == nil {
		t.Fatal("expected head+tail to be rejected")
	}
}

func TestReadFileOutsideRoots(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{
		"path": "/etc/passwd",
	})
	if result.Error == nil {
		t.Fatal("expected access denied")
	}
	if apperrors.CodeOf(result.Error) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied, got %v", result.Error)
	}
}

func TestReadFileRejectsBinary(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "blob.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0xFF}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{"path": path})
	if result.Error == nil {
		t.Fatal("expected binary file to be rejected")
	}
}

func TestReadMultipleFilesIsolatesFailures(t *testing.T) {
	registry, root := newTestRegistry(t)
	good := filepath.Join(root, "good.txt")
	mustWriteFile(t, good, "fine")
	missing := filepath.Join(root, "missing.txt")

	out := execTool(t, registry, "read_multiple_files", map[string]interface{}{
		"paths": []interface{}{good, missing},
	})
	if !strings.Contains(out, "fine") {
		t.Errorf("missing good file content: %q", out)
	}
	if !strings.Contains(out, "Error") {
		t.Errorf("missing per-file error: %q", out)
	}
	if !strings.Contains(out, "\n---\n") {
		t.Errorf("missing section separator: %q", out)
	}
}

func TestWriteFileCreatesAndOverwrites(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "new.txt")

	execTool(t, registry, "write_file", map[string]interface{}{"path": path, "content": "first"})
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "first" {
		t.Fatalf("unexpected file state: %q, %v", data, err)
	}

	execTool(t, registry, "write_file", map[string]interface{}{"path": path, "content": "second"})
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("overwrite failed: %q", data)
	}
}

func TestEditFileReturnsFencedDiff(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "code.go")
	mustWriteFile(t, path, "package main\n\nfunc main() {}\n")

	out := execTool(t, registry, "edit_file", map[string]interface{}{
		"path": path,
		"edits": []interface{}{
			map[string]interface{}{"oldText": "func main() {}", "newText": "func main() { run() }"},
		},
	})
	if !strings.HasPrefix(out, "```diff\n") {
		t.Errorf("expected fenced diff, got %q", out)
	}
	if !strings.Contains(out, "+func main() { run() }") {
		t.Errorf("diff missing addition: %q", out)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "package main\n\nfunc main() { run() }\n" {
		t.Fatalf("file not updated: %q", data)
	}
}

func TestEditFileDryRun(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "note.txt")
	mustWriteFile(t, path, "draft\n")

	out := execTool(t, registry, "edit_file", map[string]interface{}{
		"path":   path,
		"dryRun": true,
		"edits": []interface{}{
			map[string]interface{}{"oldText": "draft", "newText": "final"},
		},
	})
	if !strings.Contains(out, "-draft") {
		t.Errorf("diff missing removal: %q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "draft\n" {
		t.Fatalf("dry run must not write: %q", data)
	}
}

func TestListDirectory(t *testing.T) {
	registry, root := newTestRegistry(t)
	mustWriteFile(t, filepath.Join(root, "b.txt"), "b")
	if err := os.Mkdir(filepath.Join(root, "adir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	out := execTool(t, registry, "list_directory", map[string]interface{}{"path": root})
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %v", lines)
	}
	if lines[0] != "[DIR] adir" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "[FILE] b.txt" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestListDirectoryWithSizes(t *testing.T) {
	registry, root := newTestRegistry(t)
	mustWriteFile(t, filepath.Join(root, "data.txt"), "12345")

	out := execTool(t, registry, "list_directory_with_sizes", map[string]interface{}{"path": root})
	if !strings.Contains(out, "data.txt") {
		t.Errorf("missing entry: %q", out)
	}
	if !strings.Contains(out, "Total: 1 files, 0 directories") {
		t.Errorf("missing summary: %q", out)
	}
	if !strings.Contains(out, "5 B") {
		t.Errorf("missing size: %q", out)
	}
}

func TestDirectoryTree(t *testing.T) {
	registry, root := newTestRegistry(t)
	if err := os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	mustWriteFile(t, filepath.Join(root, "pkg", "a.go"), "package pkg\n")

	out := execTool(t, registry, "directory_tree", map[string]interface{}{"path": root})

	var tree []treeEntry
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(tree) != 1 || tree[0].Name != "pkg" || tree[0].Type != "directory" {
		t.Fatalf("unexpected tree root: %+v", tree)
	}
	var names []string
	for _, child := range tree[0].Children {
		names = append(names, child.Name+":"+child.Type)
	}
	joined := strings.Join(names, ",")
	if joined != "a.go:file,sub:directory" {
		t.Fatalf("unexpected children: %s", joined)
	}
}

func TestSearchFiles(t *testing.T) {
	registry, root := newTestRegistry(t)
	if err := os.MkdirAll(filepath.Join(root, "src", "vendor"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	mustWriteFile(t, filepath.Join(root, "src", "Widget.go"), "x")
	mustWriteFile(t, filepath.Join(root, "src", "vendor", "widget_vendored.go"), "x")
	mustWriteFile(t, filepath.Join(root, "README.md"), "x")

	out := execTool(t, registry, "search_files", map[string]interface{}{
		"path":            root,
		"pattern":         "widget",
		"excludePatterns": []interface{}{"vendor"},
	})
	if !strings.Contains(out, "Widget.go") {
		t.Errorf("case-insensitive match missing: %q", out)
	}
	if strings.Contains(out, "vendored") {
		t.Errorf("excluded subtree leaked into results: %q", out)
	}

	out = execTool(t, registry, "search_files", map[string]interface{}{
		"path":    root,
		"pattern": "nothing-matches-this",
	})
	if out != "No matches found" {
		t.Errorf("unexpected empty-result output: %q", out)
	}
}

func TestGetFileInfo(t *testing.T) {
	registry, root := newTestRegistry(t)
	path := filepath.Join(root, "meta.txt")
	mustWriteFile(t, path, "12345678")

	out := execTool(t, registry, "get_file_info", map[string]interface{}{"path": path})
	if !strings.Contains(out, "size: 8") {
		t.Errorf("missing size: %q", out)
	}
	if !strings.Contains(out, "isFile: true") {
		t.Errorf("missing isFile: %q", out)
	}
	if !strings.Contains(out, "isDirectory: false") {
		t.Errorf("missing isDirectory: %q", out)
	}
}

func TestListAllowedDirectories(t *testing.T) {
	registry, root := newTestRegistry(t)
	out := execTool(t, registry, "list_allowed_directories", nil)
	if !strings.Contains(out, root) {
		t.Fatalf("expected root %q in output %q", root, out)
	}
}

func TestHeadAndTailBoundaries(t *testing.T) {
	withNewline := "a\nb\nc\n"
	bare := "a\nb\nc"

	// Truncating and non-truncating outputs must agree on the trailing
	// newline, for head and tail alike.
	if got := firstLines(withNewline, 2); got != "a\nb\n" {
		t.Errorf("firstLines truncating: %q", got)
	}
	if got := firstLines(withNewline, 3); got != withNewline {
		t.Errorf("firstLines exact: %q", got)
	}
	if got := lastLines(withNewline, 2); got != "b\nc\n" {
		t.Errorf("lastLines truncating: %q", got)
	}
	if got := lastLines(withNewline, 3); got != withNewline {
		t.Errorf("lastLines exact: %q", got)
	}

	if got := firstLines(bare, 2); got != "a\nb" {
		t.Errorf("firstLines without newline: %q", got)
	}
	if got := lastLines(bare, 2); got != "b\nc" {
		t.Errorf("lastLines without newline: %q", got)
	}
	if got := firstLines(bare, 0); got != "" {
		t.Errorf("firstLines zero: %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.in); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchesAnyGlob(t *testing.T) {
	if !matchesAnyGlob("src/vendor", []string{"vendor"}) {
		t.Error("directory name pattern should match the entry basename")
	}
	if !matchesAnyGlob("a/b/node_modules", []string{"**/node_modules"}) {
		t.Error("doublestar-prefixed pattern should match basename")
	}
	if matchesAnyGlob("src/main.go", []string{"*.md"}) {
		t.Error("unrelated pattern must not match")
	}
}
