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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/u-root/u-root/pkg/core"
	corecp "github.com/u-root/u-root/pkg/core/cp"
	coremkdir "github.com/u-root/u-root/pkg/core/mkdir"
	coremv "github.com/u-root/u-root/pkg/core/mv"

	apperrors "fsbox/internal/errors"
	"fsbox/internal/paths"
)

// runCoreCommand executes a u-root core command with captured IO.
func runCoreCommand(ctx context.Context, cmd core.Command, args []string) (string, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)

	workdir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %v", err)
	}
	cmd.SetWorkingDir(workdir)

	if err := cmd.RunContext(ctx, args...); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%v: %s", err, errMsg)
		}
		return "", err
	}

	return stdout.String(), nil
}

func (b *builtins) createDirectory(ctx context.Context, args map[string]interface{}) (string, error) {
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

	target, err := b.resolveForCreate(path)
	if err != nil {
		return "", err
	}
	if info, serr := os.Stat(target); serr == nil {
		if info.IsDir() {
			// Idempotent like mkdir -p.
			return fmt.Sprintf("Successfully created directory %s", path), nil
		}
		return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%q exists and is not a directory", path))
	}

	if _, err := runCoreCommand(ctx, coremkdir.New(), []string{"-p", target}); err != nil {
		return "", NewToolExecutionError("create_directory", "mkdir", err)
	}
	return fmt.Sprintf("Successfully created directory %s", path), nil
}

func (b *builtins) moveFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	source, err := extractStringArg(args, "source")
	if err != nil {
		return "", err
	}
	destination, err := extractStringArg(args, "destination")
	if err != nil {
		return "", err
	}
	if err := paths.ValidatePathString(source, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	if err := paths.ValidatePathString(destination, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}

	src, err := b.svc.Resolver.Resolve(source)
	if err != nil {
		return "", err
	}
	if !src.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("source %q does not exist", source))
	}
	dst, err := b.svc.Resolver.Resolve(destination)
	if err != nil {
		return "", err
	}
	if dst.Exists {
		return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("destination %q already exists", destination))
	}

	if _, err := runCoreCommand(ctx, coremv.New(), []string{"-n", src.Path, dst.Path}); err != nil {
		return "", NewToolExecutionError("move_file", "mv", err)
	}
	return fmt.Sprintf("Successfully moved %s to %s", source, destination), nil
}

func (b *builtins) copyFile(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := ensureContext(ctx); err != nil {
		return "", err
	}
	source, err := extractStringArg(args, "source")
	if err != nil {
		return "", err
	}
	destination, err := extractStringArg(args, "destination")
	if err != nil {
		return "", err
	}
	recursive := getBoolArg(args, "recursive")
	if err := paths.ValidatePathString(source, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}
	if err := paths.ValidatePathString(destination, b.svc.Limits.MaxPathLength); err != nil {
		return "", err
	}

	src, err := b.svc.Resolver.Resolve(source)
	if err != nil {
		return "", err
	}
	if !src.Exists {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("source %q does not exist", source))
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to stat %q", source), err)
	}
	if info.IsDir() && !recursive {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("source %q is a directory (set recursive to true)", source))
	}
	if !info.IsDir() && info.Size() > b.svc.Limits.MaxFileSizeBytes {
		return "", apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("file exceeds maximum size of %d bytes", b.svc.Limits.MaxFileSizeBytes))
	}
	dst, err := b.svc.Resolver.Resolve(destination)
	if err != nil {
		return "", err
	}

	cmdArgs := []string{}
	if recursive {
		cmdArgs = append(cmdArgs, "-r")
	}
	cmdArgs = append(cmdArgs, src.Path, dst.Path)
	if _, err := runCoreCommand(ctx, corecp.New(), cmdArgs); err != nil {
		return "", NewToolExecutionError("copy_file", "cp", err)
	}
	return fmt.Sprintf("Successfully copied %s to %s", source, destination), nil
}

// resolveForCreate validates a path that may be several directory levels
// away from existing: it walks up to the deepest existing ancestor,
// validates that ancestor, and rebuilds the remaining segments on top of
// its canonical location.
func (b *builtins) resolveForCreate(path string) (string, error) {
	resolved, err := b.svc.Resolver.Resolve(path)
	if err == nil {
		return resolved.Path, nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return "", err
	}

	expanded, err := paths.ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid path %q", path), err)
	}
	abs = filepath.Clean(abs)

	var pending []string
	current := abs
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("no existing ancestor for %q", path))
		}
		pending = append(pending, filepath.Base(current))
		resolved, err := b.svc.Resolver.Resolve(parent)
		if err == nil {
			if !resolved.Exists {
				current = parent
				continue
			}
			target := resolved.Path
			for i := len(pending) - 1; i >= 0; i-- {
				target = filepath.Join(target, pending[i])
			}
			return target, nil
		}
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return "", err
		}
		current = parent
	}
}
