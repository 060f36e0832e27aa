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

package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a class of error for programmatic handling.
type Code string

const (
	// CodeAccessDenied marks a path whose nominal or resolved form falls
	// outside every allowed root.
	CodeAccessDenied Code = "access_denied"

	// CodeNotFound marks a path where neither the file nor its parent
	// directory exists.
	CodeNotFound Code = "not_found"

	// CodeEditNotApplicable marks an edit whose oldText could not be
	// located by any matching strategy.
	CodeEditNotApplicable Code = "edit_not_applicable"

	// CodeInvalidArgument marks malformed caller input.
	CodeInvalidArgument Code = "invalid_argument"

	// CodeIO wraps operating system I/O failures surfaced unchanged.
	CodeIO Code = "io"

	// CodeToolExecution wraps failures inside tool executors.
	CodeToolExecution Code = "tool_execution"
)

// Error wraps an underlying error with a code and message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a new coded error that wraps an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, walking the unwrap chain.
// Returns an empty code when err carries none.
func CodeOf(err error) Code {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
