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

// Package query implements AREQ, the per-command execution object that
// owns a compiled plan, the pipeline built from it, and the request/state
// flags and cursor configuration controlling how results are produced and
// serialized.
package query

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/searchcore/searchcore/internal/index"
	"github.com/searchcore/searchcore/internal/planner"
	"github.com/searchcore/searchcore/internal/processor"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/rlookup"
)

// Flags is the bitset of request flags relevant to serialization.
type Flags uint32

// Request flags.
const (
	IsSearch Flags = 1 << iota
	IsCursor
	SendScores
	SendPayloads
	SendSortKeys
	SendNoFields
	NoRows
)

// Has reports whether f is set in flags.
func (flags Flags) Has(f Flags) bool {
	return flags&f != 0
}

// StateFlags is the bitset of state flags mutated during execution.
type StateFlags uint32

// State flags.
const (
	// IterDone is monotonic: once set, no further Next call occurs.
	IterDone StateFlags = 1 << iota

	// ErrorState marks a RuntimeError encountered while pulling from the pipeline.
	ErrorState
)

// Has reports whether f is set in state.
func (state StateFlags) Has(f StateFlags) bool {
	return state&f != 0
}

// Request (AREQ) owns the compiled plan, the pipeline, flags, cursor
// configuration, and search context for a single command invocation.
//
// Ownership is exclusive: at any instant, either a command handler owns a
// Request, or exactly one cursor owns it via its search context slot.
type Request struct {
	IndexName string
	Flags     Flags
	State     StateFlags

	// TraceID is a random identifier for the request, logged by the
	// handler when the request is built.
	TraceID string

	ChunkSize int
	MaxIdleMS int64

	Plan   *planner.Plan
	Lookup *rlookup.Lookup

	searchCtx index.SearchContext
	root      processor.RootProcessor
	tail      processor.Processor
}

// New allocates an empty Request. flags must carry IsSearch for a search
// command and omit it otherwise; Compile reads it.
func New(indexName string, flags Flags, chunkSize int, maxIdleMS int64) *Request {
	return &Request{
		IndexName: indexName,
		Flags:     flags,
		TraceID:   uuid.NewString(),
		ChunkSize: chunkSize,
		MaxIdleMS: maxIdleMS,
		Lookup:    rlookup.NewLookup(),
	}
}

// Compile parses args (the clause arguments after the index name, led by the
// free-text query for a search request) into req.Plan using compiler. On
// failure the caller must Dispose req and surface the error.
func (req *Request) Compile(ctx context.Context, compiler planner.Compiler, args []string) error {
	plan, err := compiler.Compile(ctx, req.Flags.Has(IsSearch), args)
	if err != nil {
		return queryerr.New(queryerr.CodeCompileError, err)
	}

	req.Plan = plan

	return nil
}

// ApplyContext opens the search context for req.IndexName against backend
// and, when the plan has an explicit RETURN/projection list, marks the keys
// already in req.Lookup that the list does not name as Hidden for
// serialization.
//
// It returns NoIndex if the index does not exist.
func (req *Request) ApplyContext(ctx context.Context, backend index.Backend, query string) error {
	sctx, err := backend.Open(ctx, req.IndexName, query)
	if err != nil {
		if errors.Is(err, index.ErrNoIndex) {
			return queryerr.New(queryerr.CodeNoIndex, err)
		}

		return queryerr.New(queryerr.CodeContextError, err)
	}

	req.searchCtx = sctx

	if len(req.Plan.Fields) > 0 {
		visible := make(map[string]bool, len(req.Plan.Fields))
		for _, f := range req.Plan.Fields {
			visible[f] = true
			req.Lookup.GetKey(f, 0)
		}

		for _, k := range req.Lookup.Keys() {
			if !visible[k.Name] {
				k.Flags |= rlookup.Hidden
			}
		}
	}

	return nil
}

// BuildPipeline instantiates processors in dependency order: an IndexScan
// root, zero or more Group stages, then an Arrange stage if the plan calls
// for sort or pagination. The tail processor becomes req's end processor.
func (req *Request) BuildPipeline() {
	root := processor.NewIndexScan(req.searchCtx.Reader(), req.Lookup)
	req.root = root

	var tail processor.Processor = root

	for _, g := range req.Plan.Groups {
		tail = processor.NewGroup(tail, g, req.Lookup)
	}

	if req.Plan.Arrange != nil {
		tail = processor.NewArrange(tail, req.Plan.Arrange)
	}

	req.tail = tail
}

// Next pulls the next result from the tail of the pipeline.
//
// IterDone is monotonic: once set by a prior Next call reaching a terminal
// status, callers must not call Next again.
func (req *Request) Next(ctx context.Context, out *rlookup.SearchResult) (processor.Status, error) {
	status, err := req.tail.Next(ctx, out)

	switch status {
	case processor.EOF:
		req.State |= IterDone
	case processor.Error:
		req.State |= IterDone | ErrorState
	}

	return status, err
}

// TotalResults returns the root processor's running total_results counter.
func (req *Request) TotalResults() int64 {
	return req.root.TotalResults()
}

// Arrange returns the plan's arrange step, or nil.
func (req *Request) Arrange() *planner.ArrangeStep {
	if req.Plan == nil {
		return nil
	}

	return req.Plan.Arrange
}

// ReopenKeys re-acquires host resources released at the previous
// suspension point; it must be called before resuming a paused pipeline
// (i.e. before every cursor read after the first).
func (req *Request) ReopenKeys(ctx context.Context) error {
	if req.searchCtx == nil {
		return nil
	}

	return req.searchCtx.ReopenKeys(ctx)
}

// Dispose frees the search context. It must be called exactly once per
// Request, whether the path is success, error, cursor-pause-then-dispose,
// or GC.
func (req *Request) Dispose() {
	if req.searchCtx != nil {
		req.searchCtx.Close()
		req.searchCtx = nil
	}
}
