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

// Package processor implements the pull-based result processor chain:
// stateful stages driving document enumeration, sorting, pagination and
// grouping. Each stage holds an exclusive reference to its upstream; the
// chain is built once per request and never re-composed mid-execution.
package processor

import (
	"context"

	"github.com/searchcore/searchcore/internal/rlookup"
)

// Status is the outcome of a single Next call.
type Status int

// Next outcomes.
const (
	// OK means out was populated; the caller takes ownership of its
	// buffers and must clear them before reuse.
	OK Status = iota + 1

	// EOF signals end of stream; no further calls are expected.
	EOF

	// Paused means a cooperative yield happened downstream; the chain is
	// resumable via the enclosing search context.
	Paused

	// Error means a *queryerr.Error describing the failure is returned
	// alongside this status.
	Error
)

// String implements fmt.Stringer, mostly for test failure messages.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case EOF:
		return "EOF"
	case Paused:
		return "Paused"
	case Error:
		return "Error"
	default:
		return "Status(?)"
	}
}

// Processor is one stage of the result processor chain.
type Processor interface {
	// Next pulls (possibly via upstream) the next result into out.
	Next(ctx context.Context, out *rlookup.SearchResult) (Status, error)
}

// RootProcessor is the deepest stage of the chain, wrapping the index
// reader directly. It additionally exposes the running total of documents
// the reader has evaluated, independent of how many are emitted downstream.
type RootProcessor interface {
	Processor

	TotalResults() int64
}
