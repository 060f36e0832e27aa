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

// Package paths confines filesystem access to an allow-list of root
// directories. Every caller-supplied path is expanded, normalized and
// checked twice: once as given and once after symlink resolution, so a
// link that points outside the allowed roots is rejected even when its
// nominal location is inside them.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "fsbox/internal/errors"
)

// Roots is the canonicalized allow-list of root directories. It is built
// once at startup and never mutated afterwards.
type Roots []string

// NewRoots canonicalizes the given directories into an allow-list.
// Entries are home-expanded, made absolute and symlink-resolved when they
// exist; directory-existence validation is left to the caller.
func NewRoots(dirs []string) (Roots, error) {
	if len(dirs) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "at least one allowed root is required")
	}
	roots := make(Roots, 0, len(dirs))
	for _, dir := range dirs {
		expanded, err := ExpandHome(dir)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid root %q", dir), err)
		}
		abs = filepath.Clean(abs)
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		} else if !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to resolve root %q", dir), err)
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

// Contains reports whether path is one of the roots or a descendant of one.
func (r Roots) Contains(path string) bool {
	for _, root := range r {
		if HasPathPrefix(path, root) {
			return true
		}
	}
	return false
}

// Resolved is the outcome of a successful path validation.
type Resolved struct {
	// Path is absolute and canonical, guaranteed to lie within the roots.
	Path string
	// Exists is false when the file does not exist yet but its parent
	// directory does, so the caller may create it.
	Exists bool
}

// Resolver validates caller-supplied paths against an allow-list.
// It holds no other state; every call re-validates from scratch because
// symlink targets can change between calls.
type Resolver struct {
	roots Roots
}

// NewResolver constructs a resolver over the given allow-list.
func NewResolver(roots Roots) *Resolver {
	return &Resolver{roots: append(Roots{}, roots...)}
}

// Roots returns a copy of the resolver's allow-list.
func (r *Resolver) Roots() Roots {
	return append(Roots{}, r.roots...)
}

// Resolve turns a caller-supplied path into a canonical absolute path
// guaranteed to lie within the allowed roots. The allow-list check runs
// before any filesystem access, so a denial leaks nothing about files
// outside the sandbox; after symlink resolution the check runs again
// against the real target. Paths that do not exist yet are accepted when
// their parent directory exists and passes both checks.
func (r *Resolver) Resolve(requested string) (Resolved, error) {
	expanded, err := ExpandHome(requested)
	if err != nil {
		return Resolved{}, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return Resolved{}, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid path %q", requested), err)
	}
	normalized := filepath.Clean(abs)

	if !r.roots.Contains(normalized) {
		return Resolved{}, accessDenied(requested)
	}

	real, err := filepath.EvalSymlinks(normalized)
	if err == nil {
		if !r.roots.Contains(filepath.Clean(real)) {
			// Symlink escape: nominal location passed, real target did not.
			return Resolved{}, accessDenied(requested)
		}
		return Resolved{Path: filepath.Clean(real), Exists: true}, nil
	}
	if !os.IsNotExist(err) {
		return Resolved{}, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to resolve path %q", requested), err)
	}

	// The path does not exist. Accept it for creation when the parent
	// directory exists and its real location stays within the roots.
	parent := filepath.Dir(normalized)
	parentReal, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		if os.IsNotExist(perr) {
			return Resolved{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("path %q does not exist", requested), err)
		}
		return Resolved{}, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to resolve parent of %q", requested), perr)
	}
	if !r.roots.Contains(filepath.Clean(parentReal)) {
		return Resolved{}, accessDenied(requested)
	}
	return Resolved{Path: filepath.Join(filepath.Clean(parentReal), filepath.Base(normalized)), Exists: false}, nil
}

func accessDenied(requested string) error {
	return apperrors.New(apperrors.CodeAccessDenied, fmt.Sprintf("access denied: %q is outside the allowed directories", requested))
}

// ExpandHome replaces a leading ~ with the caller's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(os.PathSeparator)) && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, "failed to determine home directory", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// HasPathPrefix returns true when path is base itself or lies below it.
// Comparison is segment-boundary aware, so "/srv/data-evil" is not inside
// "/srv/data".
func HasPathPrefix(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "path contains null byte")
	}
	if !utf8.ValidString(path) {
		return apperrors.New(apperrors.CodeInvalidArgument, "path is not valid UTF-8")
	}
	for _, r := range path {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Me, r) {
			return apperrors.New(apperrors.CodeInvalidArgument, "path contains unsupported unicode combining mark")
		}
	}
	if maxLen > 0 {
		if len(path) > maxLen {
			return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("path exceeds maximum length of %d characters", maxLen))
		}
		if len(filepath.Clean(path)) > maxLen {
			return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("path exceeds maximum length of %d characters", maxLen))
		}
	}
	return nil
}
