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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"fsbox/internal/config"
	"fsbox/internal/patch"
	"fsbox/internal/paths"
	"fsbox/internal/tools"
)

const serverName = "fsbox"
const serverVersion = "1.0.0"

func runServer(ctx context.Context, logger zerolog.Logger, cfg *config.Config, rootDirs []string, readOnly bool) error {
	registry, roots, err := buildRegistry(logger, cfg, rootDirs, readOnly)
	if err != nil {
		return err
	}

	for _, warning := range cfg.Validate(registry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}

	logger.Info().Strs("roots", roots).Strs("tools", registry.GetToolNames()).Msg("serving over stdio")
	server := registry.MCPServer(serverName, serverVersion)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// buildRegistry wires the resolver, patch engine and tool registry from
// configuration. Every allowed root must exist and be a directory.
func buildRegistry(logger zerolog.Logger, cfg *config.Config, rootDirs []string, readOnly bool) (*tools.Registry, paths.Roots, error) {
	roots, err := paths.NewRoots(rootDirs)
	if err != nil {
		return nil, nil, err
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("allowed root %q is not accessible: %w", root, err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("allowed root %q is not a directory", root)
		}
	}

	resolver := paths.NewResolver(roots)
	limits := cfg.ToolLimitsConfig()
	svc := tools.Services{
		Resolver: resolver,
		Engine:   patch.NewEngine(resolver, limits.MaxFileSizeBytes),
		Limits:   limits,
		Logger:   logger,
	}

	// Over stdio there is nobody to answer a confirmation prompt, so the
	// server exposes everything unless told to stay read-only. The MCP
	// client is expected to gate approvals on its side.
	policy := tools.AllowAllPolicy()
	if cfg.Tools.Allow != nil || cfg.Tools.RequireConfirmation != nil {
		policy = cfg.ToolPolicy()
	}
	if readOnly {
		policy = tools.DefaultPolicy()
	}
	return tools.NewRegistryWithPolicy(svc, policy), roots, nil
}
