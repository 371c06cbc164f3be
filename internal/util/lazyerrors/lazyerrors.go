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

// Package lazyerrors provides a way to wrap errors with the caller's
// file, line and function name, so that the full path through the pipeline
// a QueryError traveled is visible without adding a stack trace library.
package lazyerrors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// lazyErr wraps another error with the caller's location.
type lazyErr struct {
	err error
	pc  uintptr
	msg string
}

// caller returns the program counter of the function that called New, Errorf or Error.
func caller() uintptr {
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	return pcs[0]
}

// frame renders "file.go:line pkg.Func" for the given program counter.
func frame(pc uintptr) string {
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()

	file := f.File
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}

	fn := f.Function
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}

	return fmt.Sprintf("[%s:%d %s]", file, f.Line, fn)
}

// New is similar to [errors.New], but it also records the caller's location.
func New(text string) error {
	return lazyErr{
		err: errors.New(text),
		pc:  caller(),
		msg: text,
	}
}

// Errorf is similar to [fmt.Errorf], but it also records the caller's location.
//
// Use %w to wrap another error.
func Errorf(format string, a ...any) error {
	err := fmt.Errorf(format, a...)

	return lazyErr{
		err: err,
		pc:  caller(),
		msg: err.Error(),
	}
}

// Error wraps err with the caller's location, unless err is nil or already a lazyerrors error.
func Error(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(lazyErr); ok {
		return err
	}

	e := lazyErr{
		err: err,
		pc:  caller(),
		msg: err.Error(),
	}

	return e
}

// Error implements the standard error interface.
func (e lazyErr) Error() string {
	return fmt.Sprintf("%s %s", frame(e.pc), e.msg)
}

// Unwrap implements [errors.Unwrap].
func (e lazyErr) Unwrap() error {
	return e.err
}

// GoString implements [fmt.GoStringer].
func (e lazyErr) GoString() string {
	return fmt.Sprintf("lazyerror(%s)", e.Error())
}
