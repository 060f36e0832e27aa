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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "fsbox/internal/errors"
	"fsbox/internal/patch"
	"fsbox/internal/paths"
)

func (b *builtins) readFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}

	head, hasHead := getIntArg(args, "head")
	tail, hasTail := getIntArg(args, "tail")
	if hasHead && hasTail {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "cannot specify both head and tail")
	}

	content, err := b.readTextFile(path)
	if err != nil {
		return "", err
	}

	if hasHead {
		content = firstLines(content, head)
	}
	if hasTail {
		content = lastLines(content, tail)
	}
	return content, nil
}

func (b *builtins) readMultipleFiles(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	list, err := extractStringSliceArg(args, "paths")
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "'paths' must contain at least one entry")
	}

	// One failed file must not abort the batch: report its error in place.
	sections := make([]string, 0, len(list))
	for _, path := range list {
		content, err := b.readTextFile(path)
		if err != nil {
			sections = append(sections, fmt.Sprintf("%s: Error - %v", path, err))
			continue
		}
		sections = append(sections, fmt.Sprintf("%s:\n%s", path, content))
	}
	return strings.Join(sections, "\n---\n"), nil
}

// readTextFile resolves, bounds-checks and reads a file as text.
func (b *builtins) readTextFile(path string) (string, error) {
	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	if !resolved.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("file %q does not exist", path))
	}
	info, err := os.Stat(resolved.Path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to stat %q", path), err)
	}
	if info.IsDir() {
		return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%q is a directory, not a file", path))
	}
	if info.Size() > b.svc.Limits.MaxFileSizeBytes {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("file %q is too large (%d bytes, limit %d)", path, info.Size(), b.svc.Limits.MaxFileSizeBytes))
	}
	data, err := os.ReadFile(resolved.Path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to read %q", path), err)
	}
	if !isTextContent(data) {
		return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("file %q appears to be binary", path))
	}
	return string(data), nil
}

func (b *builtins) writeFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "missing or invalid 'content' parameter")
	}
	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	if int64(len(content)) > b.svc.Limits.MaxFileSizeBytes {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("content exceeds the %d byte file size limit", b.svc.Limits.MaxFileSizeBytes))
	}

	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	mode := os.FileMode(0o644)
	if resolved.Exists {
		info, err := os.Stat(resolved.Path)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to stat %q", path), err)
		}
		if info.IsDir() {
			return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%q is a directory", path))
		}
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(resolved.Path, []byte(content), mode); err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to write %q", path), err)
	}
	return fmt.Sprintf("Successfully wrote to %s", path), nil
}

func (b *builtins) editFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}
	edits, err := parseEdits(args["edits"])
	if err != nil {
		return "", err
	}
	dryRun := getBoolArg(args, "dryRun")

	result, err := b.svc.Engine.Apply(path, edits, dryRun)
	if err != nil {
		return "", err
	}
	return result.FencedDiff(), nil
}

// parseEdits converts the raw edits argument into patch edits. It accepts
// both typed slices (direct callers) and []interface{} (decoded JSON).
func parseEdits(raw interface{}) ([]patch.Edit, error) {
	switch v := raw.(type) {
	case []patch.Edit:
		return v, nil
	case []interface{}:
		edits := make([]patch.Edit, 0, len(v))
		for i, item := range v {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("edit %d is not an object", i))
			}
			oldText, ok := entry["oldText"].(string)
			if !ok {
				return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("edit %d is missing 'oldText'", i))
			}
			newText, _ := entry["newText"].(string)
			edits = append(edits, patch.Edit{OldText: oldText, NewText: newText})
		}
		return edits, nil
	default:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "missing or invalid 'edits' parameter")
	}
}

func (b *builtins) listDirectory(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	entries, _, err := b.readDirectory(args)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, "[DIR] "+entry.Name())
		} else {
			lines = append(lines, "[FILE] "+entry.Name())
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (b *builtins) listDirectoryWithSizes(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	entries, _, err := b.readDirectory(args)
	if err != nil {
		return "", err
	}

	var lines []string
	var files, dirs int
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			dirs++
			lines = append(lines, fmt.Sprintf("[DIR] %-30s", entry.Name()))
			continue
		}
		files++
		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		total += size
		lines = append(lines, fmt.Sprintf("[FILE] %-30s %10s", entry.Name(), formatSize(size)))
	}

	lines = append(lines, "",
		fmt.Sprintf("Total: %d files, %d directories", files, dirs),
		fmt.Sprintf("Combined size: %s", formatSize(total)))
	return strings.Join(lines, "\n"), nil
}

// readDirectory resolves a directory argument and returns its sorted entries.
func (b *builtins) readDirectory(args map[string]interface{}) ([]os.DirEntry, string, error) {
	path, err := extractPathArg(args)
	if err != nil {
		return nil, "", err
	}
	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return nil, "", err
	}
	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return nil, "", err
	}
	if !resolved.Exists {
		return nil, "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("directory %q does not exist", path))
	}
	entries, err := os.ReadDir(resolved.Path)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to list %q", path), err)
	}
	if len(entries) > b.svc.Limits.MaxDirectoryEntries {
		entries = entries[:b.svc.Limits.MaxDirectoryEntries]
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, resolved.Path, nil
}

// treeEntry is one node of the directory_tree JSON output.
type treeEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Children []treeEntry `json:"children,omitempty"`
}

func (b *builtins) directoryTree(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}
	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	if !resolved.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("directory %q does not exist", path))
	}

	budget := b.svc.Limits.MaxDirectoryEntries
	tree, err := b.buildTree(ctx, resolved.Path, b.svc.Limits.MaxDirectoryDepth, &budget)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, "failed to encode tree", err)
	}
	return string(out), nil
}

func (b *builtins) buildTree(ctx context.Context, dir string, depth int, budget *int) ([]treeEntry, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	if depth <= 0 || *budget <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to list %q", dir), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	nodes := make([]treeEntry, 0, len(entries))
	for _, entry := range entries {
		if *budget <= 0 {
			break
		}
		*budget--
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			// Symlinked directories go through the resolver again so a
			// link out of the sandbox prunes the subtree.
			if _, err := b.svc.Resolver.Resolve(full); err != nil {
				continue
			}
			children, err := b.buildTree(ctx, full, depth-1, budget)
			if err != nil {
				continue
			}
			nodes = append(nodes, treeEntry{Name: entry.Name(), Type: "directory", Children: children})
			continue
		}
		nodes = append(nodes, treeEntry{Name: entry.Name(), Type: "file"})
	}
	return nodes, nil
}

func (b *builtins) searchFiles(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}
	pattern, err := extractStringArg(args, "pattern")
	if err != nil {
		return "", err
	}
	var excludes []string
	if _, ok := args["excludePatterns"]; ok {
		if excludes, err = extractStringSliceArg(args, "excludePatterns"); err != nil {
			return "", err
		}
	}

	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	if !resolved.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("directory %q does not exist", path))
	}

	needle := strings.ToLower(pattern)
	var matches []string
	walkErr := filepath.WalkDir(resolved.Path, func(full string, entry fs.DirEntry, err error) error {
		if cerr := ensureContext(ctx); cerr != nil {
			return cerr
		}
		if err != nil {
			// Unreadable subtree: skip it, keep searching elsewhere.
			return nil
		}
		if full == resolved.Path {
			return nil
		}
		rel, rerr := filepath.Rel(resolved.Path, full)
		if rerr != nil {
			rel = entry.Name()
		}
		if matchesAnyGlob(rel, excludes) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if _, verr := b.svc.Resolver.Resolve(full); verr != nil {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.Contains(strings.ToLower(entry.Name()), needle) {
			matches = append(matches, full)
			if len(matches) >= b.svc.Limits.MaxSearchResults {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("search under %q failed", path), walkErr)
	}

	if len(matches) == 0 {
		return "No matches found", nil
	}
	return strings.Join(matches, "\n"), nil
}

// matchesAnyGlob checks rel (slash-normalized) against exclusion globs.
// Patterns are tried as-is and with a "**/" prefix, matching the common
// convention of excluding a directory name anywhere in the tree.
func matchesAnyGlob(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	base := rel
	if idx := strings.LastIndex(rel, "/"); idx != -1 {
		base = rel[idx+1:]
	}
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		pattern = strings.TrimPrefix(pattern, "**/")
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (b *builtins) getFileInfo(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	path, err := extractPathArg(args)
	if err != nil {
		return "", err
	}
	if err := paths.ValidatePathString(path, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	resolved, err := b.svc.Resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	if !resolved.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("path %q does not exist", path))
	}
	info, err := os.Stat(resolved.Path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to stat %q", path), err)
	}

	lines := []string{
		fmt.Sprintf("path: %s", resolved.Path),
		fmt.Sprintf("size: %d", info.Size()),
		fmt.Sprintf("modified: %s", info.ModTime().Format("2006-01-02 15:04:05 MST")),
		fmt.Sprintf("isDirectory: %t", info.IsDir()),
		fmt.Sprintf("isFile: %t", info.Mode().IsRegular()),
		fmt.Sprintf("permissions: %04o", info.Mode().Perm()),
	}
	return strings.Join(lines, "\n"), nil
}

func (b *builtins) listAllowedDirectories(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	roots := b.svc.Resolver.Roots()
	return "Allowed directories:\n" + strings.Join(roots, "\n"), nil
}

// firstLines returns the first n lines of content. A trailing newline in
// the source is kept on the truncated output.
func firstLines(content string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[:n], "\n") + trailingNewline(content)
}

// lastLines returns the last n lines of content, keeping the source's
// trailing newline like firstLines does.
func lastLines(content string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[len(lines)-n:], "\n") + trailingNewline(content)
}

func trailingNewline(content string) string {
	if strings.HasSuffix(content, "\n") {
		return "\n"
	}
	return ""
}

// formatSize renders a byte count in human-readable units.
func formatSize(size int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", size, units[0])
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}

// isTextContent reports whether data looks like text: no NUL bytes and
// valid UTF-8 once a potential BOM is skipped.
func isTextContent(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if bytes.IndexByte(data, 0) != -1 {
		return false
	}
	return utf8.Valid(data)
}
