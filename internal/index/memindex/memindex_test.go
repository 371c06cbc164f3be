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

package memindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchcore/searchcore/internal/index"
)

func newTestBackend() *Backend {
	idx := NewIndex()
	idx.Insert(Document{Key: "d1", Body: "hello world", Fields: map[string]any{"name": "alice"}})
	idx.Insert(Document{Key: "d2", Body: "hello there hello", Fields: map[string]any{"name": "bob"}})
	idx.Insert(Document{Key: "d3", Body: "goodbye", Fields: map[string]any{"name": "carol"}})

	b := NewBackend()
	b.CreateIndex("idx", idx)

	return b
}

func TestBackendOpenNoIndex(t *testing.T) {
	t.Parallel()

	b := NewBackend()
	_, err := b.Open(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, index.ErrNoIndex)
}

func TestBackendOpenAndRead(t *testing.T) {
	t.Parallel()

	b := newTestBackend()

	sctx, err := b.Open(context.Background(), "idx", "hello")
	require.NoError(t, err)
	defer sctx.Close()

	r := sctx.Reader()

	var keys []string

	for {
		d, err := r.Next(context.Background())
		if errors.Is(err, index.ErrReaderDone) {
			break
		}

		require.NoError(t, err)
		keys = append(keys, d.Key)
	}

	assert.ElementsMatch(t, []string{"d1", "d2"}, keys)
	assert.EqualValues(t, 2, r.TotalSeen())
}

func TestBackendExplain(t *testing.T) {
	t.Parallel()

	b := newTestBackend()

	s, err := b.Explain(context.Background(), "idx", "hello")
	require.NoError(t, err)
	assert.Contains(t, s, "idx")
	assert.Contains(t, s, "hello")

	_, err = b.Explain(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, index.ErrNoIndex)
}
