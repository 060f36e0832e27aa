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
)

// ExampleConfigJSON returns a minimal example config.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"allowed_roots": func(v interface{}) error {
			return validateStringArray(v, prefix+"allowed_roots")
		},
		"tools": func(v interface{}) error {
			return validateToolsConfig(v, prefix+"tools.")
		},
		"tool_limits": func(v interface{}) error {
			return validateToolLimits(v, prefix+"tool_limits.")
		},
		"log": func(v interface{}) error {
			return validateLogConfig(v, prefix+"log.")
		},
	}

	for key, value := range raw {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", key)
		}
		if err := validator(value); err != nil {
			return err
		}
	}

	return nil
}

func validateToolsConfig(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	allowed := map[string]func(interface{}) error{
		"allow": func(v interface{}) error {
			return validateStringArray(v, prefix+"allow")
		},
		"require_confirmation": func(v interface{}) error {
			return validateStringArray(v, prefix+"require_confirmation")
		},
	}
	for key, v := range section {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(v); err != nil {
			return err
		}
	}
	return nil
}

func validateToolLimits(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	fields := []string{
		"max_file_size_bytes", "max_directory_depth",
		"max_directory_entries", "max_search_results", "max_path_length",
	}
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	for key, v := range section {
		if !allowed[key] {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validateNumber(v, prefix+key); err != nil {
			return err
		}
	}
	return nil
}

func validateLogConfig(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	allowed := map[string]func(interface{}) error{
		"file": func(v interface{}) error { return validateString(v, prefix+"file") },
		"max_size_mb": func(v interface{}) error {
			return validateNumber(v, prefix+"max_size_mb")
		},
		"max_backups": func(v interface{}) error {
			return validateNumber(v, prefix+"max_backups")
		},
		"max_age_days": func(v interface{}) error {
			return validateNumber(v, prefix+"max_age_days")
		},
		"debug": func(v interface{}) error { return validateBool(v, prefix+"debug") },
	}
	for key, v := range section {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(v); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, field string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", field)
	}
	return nil
}

func validateNumber(value interface{}, field string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", field)
	}
	return nil
}

func validateBool(value interface{}, field string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", field)
	}
	return nil
}

func validateStringArray(value interface{}, field string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", field)
	}
	for i, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s[%d] must be a string", field, i)
		}
	}
	return nil
}

const exampleConfigJSON = `{
  "allowed_roots": ["~/projects", "/srv/shared"],
  "tools": {
    "allow": [
      "read_file", "read_text_file", "read_multiple_files", "list_directory",
      "list_directory_with_sizes", "directory_tree", "search_files",
      "get_file_info", "list_allowed_directories",
      "write_file", "edit_file", "create_directory", "move_file", "copy_file"
    ]
  },
  "tool_limits": {
    "max_file_size_bytes": 10485760,
    "max_directory_depth": 16
  },
  "log": {
    "file": "fsbox.log",
    "debug": false
  }
}
`
