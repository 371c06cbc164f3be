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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/searchcore/searchcore/internal/index/memindex"
	"github.com/searchcore/searchcore/internal/planner"
)

// newTestHandler builds a Handler over a memindex backend holding a single
// "idx" index with two documents, and no background reaper.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	idx := memindex.NewIndex()
	idx.Insert(memindex.Document{Key: "d1", Body: "hello world", Fields: map[string]any{"score": 1.5}})
	idx.Insert(memindex.Document{Key: "d2", Body: "hello there", Fields: map[string]any{"score": 1.0}})

	backend := memindex.NewBackend()
	backend.CreateIndex("idx", idx)

	h := New(&NewOpts{
		Backend:        backend,
		Compiler:       planner.RefCompilerFactory{},
		L:              zaptest.NewLogger(t),
		DefaultMaxIdle: time.Minute,
	})
	t.Cleanup(h.Close)

	return h
}

// TestCmdSearchInline exercises the non-cursor FT.SEARCH path and asserts
// the exact reply bytes: a single top-level array of
// [total_results, doc_key, score, doc_key, score, ...], never double-nested.
func TestCmdSearchInline(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	out, err := h.CmdSearch(context.Background(), []string{"idx", "hello", "WITHSCORES", "NOCONTENT"})
	require.NoError(t, err)

	assert.True(t, len(out) > 0 && out[0] == '*', "reply must start with a top-level array header, got %q", out)
	assert.NotContains(t, string(out), "*0\r\n", "total_results element must not be swallowed by a miscounted header")

	// 1 (total_results) + 2 docs * 2 elements (key, score) = 5 elements.
	assert.Equal(t, byte('5'), out[1], "top-level array must directly hold [total_results, results...], not be wrapped in an extra array")
}

// TestCmdAggregateInline exercises the non-cursor FT.AGGREGATE path, which
// shares executeInline with CmdSearch and carries no document-key element.
func TestCmdAggregateInline(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	out, err := h.CmdAggregate(context.Background(), []string{"idx", "hello", "WITHSCORES", "NOCONTENT"})
	require.NoError(t, err)

	assert.Equal(t, byte('*'), out[0])
	// 1 (total_results) + 2 docs * 1 element (score only, no key) = 3 elements.
	assert.Equal(t, byte('3'), out[1])
}

// TestCmdSearchWithCursorThenCursorRead drives FT.SEARCH WITHCURSOR followed
// by FT.CURSOR READ, asserting the mandatory 2-element
// [chunk_reply, next_cid_or_0] outer array on both legs.
func TestCmdSearchWithCursorThenCursorRead(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	out, err := h.CmdSearch(context.Background(), []string{
		"idx", "hello", "NOCONTENT", "WITHCURSOR", "COUNT", "1",
	})
	require.NoError(t, err)

	assert.Equal(t, byte('*'), out[0])
	assert.Equal(t, byte('2'), out[1], "cursor reply must be the 2-element [chunk_reply, cid] array")
	assert.NotContains(t, string(out), "\r\n:0\r\n", "cursor must stay open: only one of two matching docs has been read")

	// The trailing cid is the last RESP integer in the reply; extract it
	// the same way a client would.
	cid := lastInteger(t, out)

	// COUNT here must exceed the one remaining matching document so the
	// chunk loop's trailing Next call observes EOF within this read,
	// rather than just exhausting its row budget without probing further.
	out2, err := h.CmdCursor(context.Background(), []string{"READ", "idx", cid, "COUNT", "10"})
	require.NoError(t, err)

	assert.Equal(t, byte('*'), out2[0])
	assert.Equal(t, byte('2'), out2[1])
	assert.Contains(t, string(out2), "\r\n:0\r\n", "cursor must be exhausted and disposed after the second document is read")

	_, err = h.CmdCursor(context.Background(), []string{"READ", "idx", cid})
	assert.Error(t, err, "a disposed cursor id must not be readable again")
}

// TestCmdCursorDel reserves a cursor via WITHCURSOR and deletes it
// directly, asserting the cursor is gone afterward.
func TestCmdCursorDel(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	out, err := h.CmdSearch(context.Background(), []string{
		"idx", "hello", "NOCONTENT", "WITHCURSOR", "COUNT", "1",
	})
	require.NoError(t, err)

	cid := lastInteger(t, out)

	del, err := h.CmdCursor(context.Background(), []string{"DEL", "idx", cid})
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(del))

	_, err = h.CmdCursor(context.Background(), []string{"READ", "idx", cid})
	assert.Error(t, err)
}

// TestCmdExplain asserts FT.EXPLAIN returns the backend's rendering as a
// bare bulk string reply, and disposes its request before returning.
func TestCmdExplain(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	out, err := h.CmdExplain(context.Background(), []string{"idx", "hello"})
	require.NoError(t, err)

	assert.Equal(t, byte('$'), out[0])
	assert.Contains(t, string(out), "SCAN idx")
}

// TestCmdExplainNoIndex asserts an unknown index surfaces as a queryerr,
// translated the same way any other command error would be.
func TestCmdExplainNoIndex(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	_, err := h.CmdExplain(context.Background(), []string{"missing", "hello"})
	assert.Error(t, err)
}

// lastInteger extracts the final RESP integer element's digits from a
// reply's bytes, the way a client parses the cursor id out of a
// [chunk_reply, cid] reply.
func lastInteger(t *testing.T, reply []byte) string {
	t.Helper()

	s := string(reply)

	idx := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			idx = i
			break
		}
	}

	require.GreaterOrEqual(t, idx, 0, "reply must contain a RESP integer element: %q", s)

	end := idx
	for end < len(s) && s[end] != '\r' {
		end++
	}

	return s[idx+1 : end]
}
