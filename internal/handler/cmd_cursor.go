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
	"fmt"
	"strconv"
	"strings"

	"github.com/searchcore/searchcore/internal/cursor"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/reply"
)

// minCursorArgs is FT.CURSOR <subcommand> <index> <cid>: argv[1..3] at minimum.
const minCursorArgs = 3

// CmdCursor implements FT.CURSOR READ|DEL|GC.
//
// Subcommand dispatch is by the uppercased first letter of argv[1], per the
// wire contract: R for READ, D for DEL, G for GC.
func (h *Handler) CmdCursor(ctx context.Context, args []string) ([]byte, error) {
	if len(args) < 1 {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	sub := strings.ToUpper(args[0])
	if sub == "" {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	switch sub[0] {
	case 'G':
		return h.cmdCursorGC(args)
	case 'R', 'D':
		if len(args) < minCursorArgs {
			return nil, queryerr.New(queryerr.CodeWrongArity, nil)
		}

		cid, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, queryerr.New(queryerr.CodeBadCursorID, err)
		}

		if sub[0] == 'D' {
			return h.cmdCursorDel(cid)
		}

		return h.cmdCursorRead(ctx, args, cid)
	default:
		return nil, queryerr.New(queryerr.CodeUnknownSubcommand, fmt.Errorf("unknown CURSOR subcommand %q", args[0]))
	}
}

// cmdCursorRead implements FT.CURSOR READ <index> <cid> [COUNT <n>].
//
// argv[4], if present, must be the literal keyword COUNT; anything else at
// that position is a parsing error rather than silently ignored.
func (h *Handler) cmdCursorRead(ctx context.Context, args []string, cid int64) ([]byte, error) {
	count := 0

	if len(args) > 3 {
		if len(args) < 5 || strings.ToUpper(args[3]) != "COUNT" {
			return nil, queryerr.New(queryerr.CodeBadCount, nil)
		}

		n, err := strconv.Atoi(args[4])
		if err != nil {
			return nil, queryerr.New(queryerr.CodeBadCount, err)
		}

		count = n
	}

	c, err := h.Cursors.TakeForExecution(cid)
	if err != nil {
		return nil, err
	}

	return cursor.Run(ctx, h.Cursors, c, count)
}

// cmdCursorDel implements FT.CURSOR DEL <index> <cid>.
func (h *Handler) cmdCursorDel(cid int64) ([]byte, error) {
	if err := h.Cursors.Purge(cid); err != nil {
		return nil, err
	}

	w := reply.NewWriter()
	w.WriteSimpleString("OK")

	return w.Bytes(), nil
}

// cmdCursorGC implements FT.CURSOR GC <index>, returning the reclaimed count.
func (h *Handler) cmdCursorGC(args []string) ([]byte, error) {
	if len(args) < 2 {
		return nil, queryerr.New(queryerr.CodeWrongArity, nil)
	}

	n := h.Cursors.CollectIdle()

	w := reply.NewWriter()
	w.WriteInt(int64(n))

	return w.Bytes(), nil
}
