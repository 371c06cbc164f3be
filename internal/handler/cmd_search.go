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
	"math"

	"github.com/searchcore/searchcore/internal/cursor"
	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/reply"
)

// minSearchArgs is FT.SEARCH <index> <query>: argv[1] and argv[2] at minimum.
const minSearchArgs = 2

// CmdSearch implements FT.SEARCH <index> <query> <args...>.
//
// On WITHCURSOR it reserves a paused cursor and replies with the first
// chunk and the cursor id; otherwise it executes to completion and
// disposes the request before returning.
func (h *Handler) CmdSearch(ctx context.Context, args []string) ([]byte, error) {
	if len(args) < minSearchArgs {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	indexName, queryText := args[0], args[1]

	clauseArgs, opts, err := scanOptions(args[2:], h.DefaultMaxIdle)
	if err != nil {
		return nil, err
	}

	flags := query.IsSearch | opts.flags
	if opts.withCursor {
		flags |= query.IsCursor
	}

	req, err := h.buildRequest(ctx, indexName, flags, clauseArgs, queryText, opts.count, opts.maxIdle.Milliseconds())
	if err != nil {
		return nil, err
	}

	if !opts.withCursor {
		return h.executeInline(ctx, req)
	}

	return h.executeCursor(ctx, indexName, req, opts)
}

// executeInline runs req to completion with an effectively unbounded limit
// and disposes it before returning, per the non-cursor execute path.
func (h *Handler) executeInline(ctx context.Context, req *query.Request) ([]byte, error) {
	defer req.Dispose()

	w := reply.NewWriter()

	_, err := reply.SendChunk(ctx, req, w, math.MaxInt)

	return w.Bytes(), err
}

// executeCursor reserves req in the registry and runs its first chunk.
func (h *Handler) executeCursor(ctx context.Context, indexName string, req *query.Request, opts requestOptions) ([]byte, error) {
	c, err := h.Cursors.Reserve(indexName, req, opts.maxIdle)
	if err != nil {
		req.Dispose()
		return nil, err
	}

	return cursor.Run(ctx, h.Cursors, c, opts.count)
}
