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
	"github.com/searchcore/searchcore/internal/reply"
)

// minExplainArgs is FT.EXPLAIN <index> <query>: argv[1] and argv[2] at minimum.
const minExplainArgs = 2

// CmdExplain implements FT.EXPLAIN <index> <query> <args...>.
//
// It runs the same build protocol as CmdSearch (compile, open context) to
// validate the query against the index schema, but never builds a
// pipeline or executes it: the request is disposed immediately and the
// reply is the backend's human-readable rendering of the parsed query.
func (h *Handler) CmdExplain(ctx context.Context, args []string) ([]byte, error) {
	if len(args) < minExplainArgs {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	indexName, queryText := args[0], args[1]

	clauseArgs, _, err := scanOptions(args[2:], h.DefaultMaxIdle)
	if err != nil {
		return nil, err
	}

	req := query.New(indexName, query.IsSearch, 0, 0)

	compiler := h.Compiler.NewCompiler(req.Lookup)

	if err := req.Compile(ctx, compiler, append([]string{queryText}, clauseArgs...)); err != nil {
		req.Dispose()
		return nil, err
	}

	if err := req.ApplyContext(ctx, h.Backend, queryText); err != nil {
		req.Dispose()
		return nil, err
	}

	req.Dispose()

	explanation, err := h.Backend.Explain(ctx, indexName, queryText)
	if err != nil {
		return nil, err
	}

	w := reply.NewWriter()
	w.WriteBulkString(explanation)

	return w.Bytes(), nil
}
