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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fsbox/internal/tools"
)

// Config represents the application configuration.
type Config struct {
	AllowedRoots []string     `json:"allowed_roots,omitempty"`
	Tools        ToolSettings `json:"tools,omitempty"`
	ToolLimits   ToolLimits   `json:"tool_limits,omitempty"`
	Log          LogSettings  `json:"log,omitempty"`
}

// ToolSettings describes tool allow and confirmation lists.
type ToolSettings struct {
	Allow               []string `json:"allow"`
	RequireConfirmation []string `json:"require_confirmation,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryDepth   int   `json:"max_directory_depth,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
	MaxSearchResults    int   `json:"max_search_results,omitempty"`
	MaxPathLength       int   `json:"max_path_length,omitempty"`
}

// LogSettings configures structured logging output and rotation.
type LogSettings struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	limits := tools.DefaultLimits()
	return &Config{
		ToolLimits: ToolLimits{
			MaxFileSizeBytes:    limits.MaxFileSizeBytes,
			MaxDirectoryDepth:   limits.MaxDirectoryDepth,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
			MaxSearchResults:    limits.MaxSearchResults,
			MaxPathLength:       limits.MaxPathLength,
		},
		Log: LogSettings{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from a JSON file and applies env
// overrides. A missing file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, err
		}
	}

	// Env overrides apply regardless of whether a config file exists.
	if val := os.Getenv("FSBOX_ALLOWED_ROOTS"); val != "" {
		config.AllowedRoots = splitRoots(val)
	}
	if val := os.Getenv("FSBOX_LOG_FILE"); val != "" {
		config.Log.File = val
	}

	return config, nil
}

// splitRoots splits a list-separator delimited roots string.
func splitRoots(val string) []string {
	parts := strings.Split(val, string(filepath.ListSeparator))
	roots := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			roots = append(roots, part)
		}
	}
	return roots
}

// ToolPolicy converts config settings into a tool policy. Empty lists
// mean "keep the default policy".
func (c *Config) ToolPolicy() tools.Policy {
	policy := tools.Policy{}
	if c.Tools.Allow != nil {
		allow := make(map[string]bool, len(c.Tools.Allow))
		for _, name := range c.Tools.Allow {
			allow[name] = true
		}
		policy.Allowed = allow
	}
	if c.Tools.RequireConfirmation != nil {
		confirm := make(map[string]bool, len(c.Tools.RequireConfirmation))
		for _, name := range c.Tools.RequireConfirmation {
			confirm[name] = true
		}
		policy.RequireConfirmation = confirm
	}
	return policy
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryDepth:   c.ToolLimits.MaxDirectoryDepth,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
		MaxSearchResults:    c.ToolLimits.MaxSearchResults,
		MaxPathLength:       c.ToolLimits.MaxPathLength,
	}.Normalize()
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if registry != nil {
		registered := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registered[name] = true
		}
		for _, name := range c.Tools.Allow {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.allow",
					Message: fmt.Sprintf("tool %q in allow list is not registered", name),
				})
			}
		}
		for _, name := range c.Tools.RequireConfirmation {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.require_confirmation",
					Message: fmt.Sprintf("tool %q in require_confirmation list is not registered", name),
				})
			}
		}
	}

	if c.ToolLimits.MaxFileSizeBytes < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "tool_limits.max_file_size_bytes",
			Message: "negative file size limit, using default",
		})
	}

	return warnings
}
