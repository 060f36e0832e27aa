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

// Package patch applies ordered text edits to a file with an
// exact-match-first, fuzzy-fallback strategy. Matching tolerates
// whitespace drift and line-ending differences; the original indentation
// of matched content is preserved in the replacement. The whole edit
// sequence is all-or-nothing: either every edit applies and the file is
// written once, or nothing touches the disk.
package patch

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	apperrors "fsbox/internal/errors"
	"fsbox/internal/paths"
)

// Edit is a single replace-this-with-that instruction. Edits apply in
// order, each against the output of the previous one.
type Edit struct {
	OldText string `json:"oldText" jsonschema:"description=Text to search for - must match exactly or line-by-line ignoring whitespace"`
	NewText string `json:"newText" jsonschema:"description=Text to replace the match with"`
}

// Result holds the outcome of a successful edit sequence.
type Result struct {
	// Path is the resolved file the edits apply to.
	Path string
	// Original is the file content after line-ending normalization,
	// before any edit.
	Original string
	// Content is the final content after all edits.
	Content string
	// Diff is the unified diff from Original to Content; empty when the
	// edits were a no-op.
	Diff string
}

// FencedDiff wraps the diff in a backtick fence for safe embedding in
// markup-sensitive transports. The fence is at least three backticks and
// grows until no run of backticks inside the diff could terminate it
// early.
func (r Result) FencedDiff() string {
	fence := "```"
	for strings.Contains(r.Diff, fence) {
		fence += "`"
	}
	return fmt.Sprintf("%sdiff\n%s%s\n\n", fence, r.Diff, fence)
}

// Engine applies edit sequences to files reached through a path resolver.
type Engine struct {
	resolver *paths.Resolver

	// maxFileSizeBytes bounds the files the engine will read or write;
	// non-positive disables the guard.
	maxFileSizeBytes int64
}

// NewEngine constructs a patch engine over the given resolver. The size
// limit is owned by the caller so the engine and the surrounding tools
// agree on a single value.
func NewEngine(resolver *paths.Resolver, maxFileSizeBytes int64) *Engine {
	return &Engine{
		resolver:         resolver,
		maxFileSizeBytes: maxFileSizeBytes,
	}
}

// Apply runs the edit sequence against the file at path. With dryRun set
// the final content is computed and diffed but never persisted. Failure
// of any single edit aborts the whole operation before any write.
func (e *Engine) Apply(path string, edits []Edit, dryRun bool) (Result, error) {
	if len(edits) == 0 {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "at least one edit is required")
	}
	for i, edit := range edits {
		if edit.OldText == "" {
			return Result{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("edit %d: oldText cannot be empty", i+1))
		}
	}

	resolved, err := e.resolver.Resolve(path)
	if err != nil {
		return Result{}, err
	}
	if !resolved.Exists {
		return Result{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("file %q does not exist", path))
	}

	info, err := os.Stat(resolved.Path)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeIO, "failed to stat file", err)
	}
	if info.IsDir() {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("path %q is a directory", resolved.Path))
	}
	if e.maxFileSizeBytes > 0 && info.Size() > e.maxFileSizeBytes {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("file exceeds maximum size of %d bytes", e.maxFileSizeBytes))
	}

	raw, err := os.ReadFile(resolved.Path)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeIO, "failed to read file", err)
	}
	if !isTextContent(raw) {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "file appears to be binary; only text files can be edited")
	}

	original := normalizeToLF(string(raw))
	content := original
	for i, edit := range edits {
		next, ok := applyEdit(content, edit)
		if !ok {
			return Result{}, apperrors.New(apperrors.CodeEditNotApplicable,
				fmt.Sprintf("edit %d could not be applied: no match found for oldText %q", i+1, edit.OldText))
		}
		content = next
	}

	diff, err := unifiedDiff(original, content, resolved.Path)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeToolExecution, "failed to compute diff", err)
	}

	if !dryRun && content != original {
		if err := os.WriteFile(resolved.Path, []byte(content), info.Mode().Perm()); err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeIO, "failed to write file", err)
		}
	}

	return Result{
		Path:     resolved.Path,
		Original: original,
		Content:  content,
		Diff:     diff,
	}, nil
}

// applyEdit applies one edit against the working content. Exact substring
// match wins; otherwise a line window tolerant of leading and trailing
// whitespace is tried, always taking the first match by ascending start
// index.
func applyEdit(content string, edit Edit) (string, bool) {
	oldText := normalizeToLF(edit.OldText)
	newText := normalizeToLF(edit.NewText)

	if strings.Contains(content, oldText) {
		return strings.Replace(content, oldText, newText, 1), true
	}

	contentLines := strings.Split(content, "\n")
	oldLines := strings.Split(oldText, "\n")
	window := len(oldLines)

	for start := 0; start+window <= len(contentLines); start++ {
		if !windowMatches(contentLines[start:start+window], oldLines) {
			continue
		}
		replacement := reindent(newText, oldLines, contentLines[start])
		spliced := make([]string, 0, len(contentLines)-window+len(replacement))
		spliced = append(spliced, contentLines[:start]...)
		spliced = append(spliced, replacement...)
		spliced = append(spliced, contentLines[start+window:]...)
		return strings.Join(spliced, "\n"), true
	}
	return "", false
}

func windowMatches(contentLines, oldLines []string) bool {
	for i := range oldLines {
		if strings.TrimSpace(contentLines[i]) != strings.TrimSpace(oldLines[i]) {
			return false
		}
	}
	return true
}

// reindent rewrites newText lines so the replacement inherits the
// indentation of the matched content. The first line takes the matched
// line's leading whitespace verbatim; later lines keep their indentation
// relative to the corresponding oldText line, adjusted onto the captured
// indent and clamped at column zero.
func reindent(newText string, oldLines []string, firstContentLine string) []string {
	captured := leadingWhitespace(firstContentLine)
	newLines := strings.Split(newText, "\n")
	out := make([]string, len(newLines))
	for j, line := range newLines {
		if j == 0 {
			out[j] = captured + strings.TrimLeft(line, " \t")
			continue
		}
		var oldIndent string
		if j < len(oldLines) {
			oldIndent = leadingWhitespace(oldLines[j])
		}
		newIndent := leadingWhitespace(line)
		if oldIndent != "" && newIndent != "" {
			out[j] = adjustIndent(captured, len(newIndent)-len(oldIndent)) + strings.TrimLeft(line, " \t")
			continue
		}
		out[j] = line
	}
	return out
}

// adjustIndent widens or narrows the captured indentation by delta
// characters, never going negative.
func adjustIndent(captured string, delta int) string {
	if delta >= 0 {
		return captured + strings.Repeat(" ", delta)
	}
	if len(captured)+delta <= 0 {
		return ""
	}
	return captured[:len(captured)+delta]
}

func leadingWhitespace(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}

func normalizeToLF(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func unifiedDiff(original, updated, path string) (string, error) {
	if original == updated {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(updated),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// isTextContent reports whether data looks like editable text: valid
// UTF-8 with no NUL bytes.
func isTextContent(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(data)
}
