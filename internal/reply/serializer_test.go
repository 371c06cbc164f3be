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

package reply

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchcore/searchcore/internal/index/memindex"
	"github.com/searchcore/searchcore/internal/planner"
	"github.com/searchcore/searchcore/internal/processor"
	"github.com/searchcore/searchcore/internal/query"
)

func buildSearchRequest(t *testing.T, flags query.Flags) *query.Request {
	t.Helper()

	idx := memindex.NewIndex()
	idx.Insert(memindex.Document{Key: "d1", Body: "hello", Fields: map[string]any{"score": 1.5}})
	idx.Insert(memindex.Document{Key: "d2", Body: "hello", Fields: map[string]any{"score": 1.0}})

	backend := memindex.NewBackend()
	backend.CreateIndex("idx", idx)

	req := query.New("idx", flags|query.IsSearch, 0, 0)
	err := req.Compile(context.Background(), planner.NewRefCompiler(req.Lookup), []string{"hello"})
	require.NoError(t, err)

	err = req.ApplyContext(context.Background(), backend, "hello")
	require.NoError(t, err)

	req.BuildPipeline()

	return req
}

func TestSendChunkS1(t *testing.T) {
	t.Parallel()

	req := buildSearchRequest(t, query.SendScores|query.SendNoFields)

	w := NewWriter()
	status, err := SendChunk(context.Background(), req, w, 1000)
	require.NoError(t, err)
	assert.Equal(t, processor.EOF, status)

	n1, n2 := formatNumber(1.5), formatNumber(1.0)
	expected := "*5\r\n" +
		":2\r\n" +
		"$2\r\nd1\r\n" +
		fmt.Sprintf("$%d\r\n%s\r\n", len(n1), n1) +
		"$2\r\nd2\r\n" +
		fmt.Sprintf("$%d\r\n%s\r\n", len(n2), n2)

	assert.Equal(t, expected, string(w.Bytes()))
}

func TestSendChunkZeroLimit(t *testing.T) {
	t.Parallel()

	req := buildSearchRequest(t, query.SendNoFields)

	w := NewWriter()
	_, err := SendChunk(context.Background(), req, w, 0)
	require.NoError(t, err)

	assert.Equal(t, "*1\r\n:2\r\n", string(w.Bytes()))
}

func TestSortKeyEncoding(t *testing.T) {
	t.Parallel()

	idx := memindex.NewIndex()
	idx.Insert(memindex.Document{Key: "d1", Body: "x", Fields: map[string]any{"name": "alice", "__score": 2.5}})

	backend := memindex.NewBackend()
	backend.CreateIndex("idx", idx)

	req := query.New("idx", query.SendSortKeys, 0, 0)
	compiler := planner.NewRefCompiler(req.Lookup)

	err := req.Compile(context.Background(), compiler, []string{"SORTBY", "__score"})
	require.NoError(t, err)

	err = req.ApplyContext(context.Background(), backend, "")
	require.NoError(t, err)

	req.BuildPipeline()

	w := NewWriter()
	_, err = SendChunk(context.Background(), req, w, 1000)
	require.NoError(t, err)

	assert.Contains(t, string(w.Bytes()), "#2.50000000000000000e+00")
	assert.Contains(t, string(w.Bytes()), "alice")
}

func TestHiddenFieldExcluded(t *testing.T) {
	t.Parallel()

	idx := memindex.NewIndex()
	idx.Insert(memindex.Document{Key: "d1", Body: "x", Fields: map[string]any{"a": "visible", "b": "secret"}})

	backend := memindex.NewBackend()
	backend.CreateIndex("idx", idx)

	req := query.New("idx", 0, 0, 0)

	compiler := planner.NewRefCompiler(req.Lookup)
	err := req.Compile(context.Background(), compiler, []string{"RETURN", "1", "a"})
	require.NoError(t, err)

	err = req.ApplyContext(context.Background(), backend, "")
	require.NoError(t, err)

	req.BuildPipeline()

	w := NewWriter()
	_, err = SendChunk(context.Background(), req, w, 1000)
	require.NoError(t, err)

	out := string(w.Bytes())
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "secret")
}
