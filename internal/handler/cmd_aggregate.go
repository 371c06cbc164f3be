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

	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/queryerr"
)

// minAggregateArgs is FT.AGGREGATE <index> <query>: argv[1] and argv[2] at minimum.
const minAggregateArgs = 2

// CmdAggregate implements FT.AGGREGATE <index> <query> <args...>.
//
// It shares its build and execute machinery with CmdSearch, differing only
// in that IsSearch is never set: the reply carries no document-key element
// and the plan's GROUPBY/REDUCE clauses are meaningful.
func (h *Handler) CmdAggregate(ctx context.Context, args []string) ([]byte, error) {
	if len(args) < minAggregateArgs {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	indexName, queryText := args[0], args[1]

	clauseArgs, opts, err := scanOptions(args[2:], h.DefaultMaxIdle)
	if err != nil {
		return nil, err
	}

	flags := opts.flags
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
