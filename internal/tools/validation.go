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
	"encoding/json"
	"fmt"
	"strings"

	apperrors "fsbox/internal/errors"
)

// ValidationRule checks tool arguments and returns an error if invalid.
// Rules report coded invalid_argument errors so transports can map them
// without inspecting message text.
type ValidationRule func(args map[string]interface{}) error

// ValidateToolCall checks a raw tool call before execution: the tool
// must exist, the argument payload must be valid JSON, and the tool's
// validation rules must pass. Returns nil when the call may proceed.
func (r *Registry) ValidateToolCall(name, argsJSON string) *ToolResult {
	tool, ok := r.getTool(name)
	if !ok {
		return invalidToolResult(name, fmt.Errorf("%w: %s", ErrToolNotFound, name))
	}

	args, err := parseToolArgs(argsJSON)
	if err != nil {
		return invalidToolResult(name, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}

	if err := tool.Validate(args); err != nil {
		return invalidToolResult(name, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}

	return nil
}

func invalidToolResult(name string, err error) *ToolResult {
	return &ToolResult{
		Function: name,
		Result:   fmt.Sprintf("Error: %v", err),
		Error:    err,
	}
}

// parseToolArgs decodes a JSON argument payload; an empty payload is an
// empty argument map.
func parseToolArgs(argsJSON string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(argsJSON) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "malformed argument payload", err)
	}
	return args, nil
}

// ChainValidation runs rules in order until the first error.
func ChainValidation(rules ...ValidationRule) ValidationRule {
	return func(args map[string]interface{}) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireStringArg ensures a string argument is present and non-empty.
func RequireStringArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		str, ok := args[key].(string)
		if !ok || strings.TrimSpace(str) == "" {
			return apperrors.New(apperrors.CodeInvalidArgument, message)
		}
		return nil
	}
}

// RequireNonEmptyArg ensures an argument is present and, for strings,
// slices and objects, non-empty.
func RequireNonEmptyArg(key, message string) ValidationRule {
	return func(args map[string]interface{}) error {
		value, ok := args[key]
		if !ok || value == nil {
			return apperrors.New(apperrors.CodeInvalidArgument, message)
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return apperrors.New(apperrors.CodeInvalidArgument, message)
			}
		case []interface{}:
			if len(v) == 0 {
				return apperrors.New(apperrors.CodeInvalidArgument, message)
			}
		case map[string]interface{}:
			if len(v) == 0 {
				return apperrors.New(apperrors.CodeInvalidArgument, message)
			}
		}
		return nil
	}
}
