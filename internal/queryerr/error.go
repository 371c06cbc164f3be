// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queryerr defines the error taxonomy shared by the planner,
// query execution and cursor layers, and the handler commands built on
// top of them.
package queryerr

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/searchcore/searchcore/internal/util/debugbuild"
)

// Code represents a query error code.
type Code int

// Error codes.
const (
	_ Code = iota

	// CodeWrongArity is returned when a command was given the wrong number of arguments.
	CodeWrongArity

	// CodeNoIndex is returned when the referenced index does not exist.
	CodeNoIndex

	// CodeParseError is returned when the query string could not be parsed.
	CodeParseError

	// CodeCompileError is returned when a parsed query could not be compiled into a plan.
	CodeCompileError

	// CodeContextError is returned when applying a request's context fails, other than for a missing index.
	CodeContextError

	// CodeCursorCapExceeded is returned when an index already has as many open cursors as it is allowed.
	CodeCursorCapExceeded

	// CodeCursorNotFound is returned when a cursor id does not name a reserved cursor.
	CodeCursorNotFound

	// CodeBadCursorID is returned when a cursor id argument is not a valid integer.
	CodeBadCursorID

	// CodeBadCount is returned when a COUNT argument is malformed or missing its keyword.
	CodeBadCount

	// CodeUnknownSubcommand is returned when a CURSOR subcommand doesn't match READ, DEL or GC.
	CodeUnknownSubcommand

	// CodeRuntimeError is returned when a processor fails while pulling or producing rows.
	CodeRuntimeError
)

// ArgCursorGone marks a CodeCursorNotFound error raised by disposing an
// already-disposed or never-reserved cursor id, as opposed to one raised by
// leasing for a read; Message renders the two with different wording.
const ArgCursorGone = "cursor_gone"

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case CodeWrongArity:
		return "wrong number of arguments"
	case CodeNoIndex:
		return "no such index"
	case CodeParseError:
		return "parse error"
	case CodeCompileError:
		return "compile error"
	case CodeContextError:
		return "context error"
	case CodeCursorCapExceeded:
		return "cursor limit exceeded"
	case CodeCursorNotFound:
		return "cursor not found"
	case CodeBadCursorID:
		return "bad cursor id"
	case CodeBadCount:
		return "bad count"
	case CodeUnknownSubcommand:
		return "unknown subcommand"
	case CodeRuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error represents a query execution error returned by the planner, the
// processor chain, the cursor registry and the command handlers.
type Error struct {
	// err is kept only for debugging; callers can't retrieve it.
	err error

	arg any

	code Code
}

// New creates a new Error.
//
// Code must not be 0. Err may be nil.
func New(code Code, err error) *Error {
	if code == 0 {
		panic("queryerr.New: code must not be 0")
	}

	return &Error{code: code, err: err}
}

// NewWithArgument creates a new Error carrying an argument to be surfaced to the client.
//
// Code must not be 0. Err may be nil.
func NewWithArgument(code Code, err error, arg any) *Error {
	if code == 0 {
		panic("queryerr.NewWithArgument: code must not be 0")
	}

	return &Error{code: code, err: err, arg: arg}
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// There is intentionally no method to return the internal error.

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Argument returns the argument carried by err, if any.
func Argument(err error) any {
	e, ok := err.(*Error) //nolint:errorlint // do not inspect error chain
	if !ok {
		return nil
	}

	return e.arg
}

// Message renders err's client-facing reply text. A handful of codes carry
// exact wording that is part of the wire contract; everything else falls
// back to the code's general description.
func Message(err error) string {
	e, ok := err.(*Error) //nolint:errorlint // do not inspect error chain
	if !ok {
		return err.Error()
	}

	switch e.code {
	case CodeCursorNotFound:
		if e.arg == ArgCursorGone {
			return "Cursor does not exist"
		}

		return "Cursor not found"
	case CodeBadCursorID:
		return "Bad cursor ID"
	case CodeBadCount:
		return "Bad value for COUNT"
	case CodeUnknownSubcommand:
		return "Unknown subcommand"
	default:
		return e.code.String()
	}
}

// CodeIs returns true if err is *Error with one of the given codes.
//
// At least one code must be given.
func CodeIs(err error, code Code, codes ...Code) bool {
	e, ok := err.(*Error) //nolint:errorlint // do not inspect error chain
	if !ok {
		return false
	}

	return e.code == code || slices.Contains(codes, e.code)
}

// Check enforces the contract of functions that return *Error: values must
// not be wrapped, and when non-nil the code must be one of the given codes.
//
// It panics on violation in debug builds, and does nothing otherwise.
func Check(err error, codes ...Code) {
	if !debugbuild.Enabled {
		return
	}

	if err == nil {
		return
	}

	e, ok := err.(*Error) //nolint:errorlint // do not inspect error chain
	if !ok {
		if errors.As(err, &e) {
			panic(fmt.Sprintf("queryerr: error should not be wrapped: %v", err))
		}

		return
	}

	if e.code == 0 {
		panic(fmt.Sprintf("queryerr: error code is 0: %v", err))
	}

	if len(codes) == 0 {
		panic(fmt.Sprintf("queryerr: no allowed codes given: %v", err))
	}

	if !slices.Contains(codes, e.code) {
		panic(fmt.Sprintf("queryerr: error code is not in %v: %v", codes, err))
	}
}

// check interfaces
var (
	_ error = (*Error)(nil)
)
