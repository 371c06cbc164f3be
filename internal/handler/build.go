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

package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/searchcore/searchcore/internal/query"
)

// buildRequest runs the full build protocol for a SEARCH or AGGREGATE
// command: allocate, compile the clause arguments, open the search
// context, then build the pipeline. On any failure it disposes the
// partially built request itself, so callers must not call Dispose again.
func (h *Handler) buildRequest(
	ctx context.Context,
	indexName string,
	flags query.Flags,
	clauseArgs []string,
	queryText string,
	chunkSize int,
	maxIdleMS int64,
) (*query.Request, error) {
	req := query.New(indexName, flags, chunkSize, maxIdleMS)

	compiler := h.Compiler.NewCompiler(req.Lookup)

	// A search compile takes the free-text query as its first argument.
	compileArgs := clauseArgs
	if flags.Has(query.IsSearch) {
		compileArgs = append([]string{queryText}, clauseArgs...)
	}

	if err := req.Compile(ctx, compiler, compileArgs); err != nil {
		req.Dispose()
		return nil, err
	}

	if err := req.ApplyContext(ctx, h.Backend, queryText); err != nil {
		req.Dispose()
		return nil, err
	}

	req.BuildPipeline()

	h.L.Debug("Built request",
		zap.String("trace_id", req.TraceID),
		zap.String("index", indexName),
		zap.Bool("is_search", flags.Has(query.IsSearch)),
		zap.Bool("is_cursor", flags.Has(query.IsCursor)),
	)

	return req, nil
}
