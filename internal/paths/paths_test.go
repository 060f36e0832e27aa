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

package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "fsbox/internal/errors"
)

func newTestResolver(t *testing.T, dirs ...string) *Resolver {
	t.Helper()
	roots, err := NewRoots(dirs)
	if err != nil {
		t.Fatalf("failed to build roots: %v", err)
	}
	return NewResolver(roots)
}

func TestResolveFileInsideRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "note.txt")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	resolver := newTestResolver(t, root)
	resolved, err := resolver.Resolve(file)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if !resolved.Exists {
		t.Fatal("expected resolved path to exist")
	}
	if filepath.Base(resolved.Path) != "note.txt" {
		t.Fatalf("unexpected resolved path: %s", resolved.Path)
	}
}

func TestResolveRejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	resolver := newTestResolver(t, root)
	_, err := resolver.Resolve(filepath.Join(outside, "secret.txt"))
	if err == nil {
		t.Fatal("expected access denied error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied code, got: %v", apperrors.CodeOf(err))
	}
}

func TestResolveRejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	resolver := newTestResolver(t, root)

	_, err := resolver.Resolve(filepath.Join(root, "..", "elsewhere"))
	if err == nil {
		t.Fatal("expected access denied for .. escape")
	}
	if apperrors.CodeOf(err) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied code, got: %v", apperrors.CodeOf(err))
	}
}

func TestResolveRejectsRawPrefixSibling(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "allowed-dir")
	evil := filepath.Join(parent, "allowed-dirEVIL")
	for _, dir := range []string{root, evil} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}

	resolver := newTestResolver(t, root)
	_, err := resolver.Resolve(filepath.Join(evil, "x"))
	if err == nil {
		t.Fatal("expected access denied for raw prefix sibling")
	}
	if apperrors.CodeOf(err) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied code, got: %v", apperrors.CodeOf(err))
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	if err := os.WriteFile(target, []byte("outside"), 0o644); err != nil {
		t.Fatalf("failed to write target: %v", err)
	}
	link := filepath.Join(root, "inside.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	resolver := newTestResolver(t, root)
	_, err := resolver.Resolve(link)
	if err == nil {
		t.Fatal("expected access denied for symlink escape")
	}
	if apperrors.CodeOf(err) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied code, got: %v", apperrors.CodeOf(err))
	}
}

func TestResolveAllowsSymlinkWithinRoots(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target.txt")
	if err := os.WriteFile(target, []byte("inside"), 0o644); err != nil {
		t.Fatalf("failed to write target: %v", err)
	}
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	resolver := newTestResolver(t, root)
	resolved, err := resolver.Resolve(link)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if filepath.Base(resolved.Path) != "target.txt" {
		t.Fatalf("expected resolution to the link target, got: %s", resolved.Path)
	}
}

func TestResolveNewFileInExistingDir(t *testing.T) {
	root := t.TempDir()
	resolver := newTestResolver(t, root)

	resolved, err := resolver.Resolve(filepath.Join(root, "new.txt"))
	if err != nil {
		t.Fatalf("expected success for new file, got: %v", err)
	}
	if resolved.Exists {
		t.Fatal("expected Exists to be false for a new file")
	}
	if filepath.Base(resolved.Path) != "new.txt" {
		t.Fatalf("unexpected resolved path: %s", resolved.Path)
	}
}

func TestResolveNewFileInMissingDir(t *testing.T) {
	root := t.TempDir()
	resolver := newTestResolver(t, root)

	_, err := resolver.Resolve(filepath.Join(root, "missing", "new.txt"))
	if err == nil {
		t.Fatal("expected not found error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("expected not_found code, got: %v", apperrors.CodeOf(err))
	}
}

func TestResolveRelativePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "rel.txt")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	resolver := newTestResolver(t, root)
	resolved, err := resolver.Resolve("rel.txt")
	if err != nil {
		t.Fatalf("expected success for relative path, got: %v", err)
	}
	if filepath.Base(resolved.Path) != "rel.txt" {
		t.Fatalf("unexpected resolved path: %s", resolved.Path)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	expanded, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if expanded != home {
		t.Fatalf("expected %s, got %s", home, expanded)
	}

	expanded, err = ExpandHome("~/notes")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if expanded != filepath.Join(home, "notes") {
		t.Fatalf("unexpected expansion: %s", expanded)
	}

	// A tilde in the middle of a path is left alone.
	expanded, err = ExpandHome("/tmp/~file")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if expanded != "/tmp/~file" {
		t.Fatalf("unexpected expansion: %s", expanded)
	}
}

func TestHasPathPrefix(t *testing.T) {
	if !HasPathPrefix("/srv/data/file", "/srv/data") {
		t.Fatal("expected descendant to match")
	}
	if !HasPathPrefix("/srv/data", "/srv/data") {
		t.Fatal("expected base itself to match")
	}
	if HasPathPrefix("/srv/data-evil/file", "/srv/data") {
		t.Fatal("expected raw prefix sibling to be rejected")
	}
	if HasPathPrefix("/srv", "/srv/data") {
		t.Fatal("expected parent to be rejected")
	}
}

func TestNewRootsCanonicalizes(t *testing.T) {
	root := t.TempDir()
	messy := root + string(os.PathSeparator) + "." + string(os.PathSeparator)

	roots, err := NewRoots([]string{messy})
	if err != nil {
		t.Fatalf("failed to build roots: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected one root, got %d", len(roots))
	}
	if strings.HasSuffix(roots[0], string(os.PathSeparator)) {
		t.Fatalf("expected trailing separator to be normalized: %q", roots[0])
	}
}

func TestNewRootsRequiresEntries(t *testing.T) {
	if _, err := NewRoots(nil); err == nil {
		t.Fatal("expected error for empty root list")
	}
}

func TestValidatePathString(t *testing.T) {
	if err := ValidatePathString("", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := ValidatePathString("ok/path.txt", 0); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if err := ValidatePathString("bad\x00path", 0); err == nil {
		t.Fatal("expected error for null byte")
	}
	if err := ValidatePathString(strings.Repeat("a", 20), 10); err == nil {
		t.Fatal("expected error for overlong path")
	}
}
