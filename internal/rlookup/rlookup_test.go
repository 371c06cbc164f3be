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

package rlookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupInsertionOrder(t *testing.T) {
	t.Parallel()

	l := NewLookup()
	a := l.GetKey("a", 0)
	b := l.GetKey("b", Hidden)
	c := l.GetKey("c", 0)

	assert.Equal(t, []*Key{a, b, c}, l.Keys())
	assert.Equal(t, 3, l.Len())

	// fetching an existing name returns the same key, doesn't append again
	again := l.GetKey("b", 0)
	assert.Same(t, b, again)
	assert.Equal(t, 3, l.Len())

	assert.True(t, b.Flags.Has(Hidden))
	assert.False(t, a.Flags.Has(Hidden))

	assert.Nil(t, l.FindKey("nope"))
	assert.Same(t, c, l.FindKey("c"))
}

func TestRowDataGetSet(t *testing.T) {
	t.Parallel()

	l := NewLookup()
	name := l.GetKey("name", 0)
	sortKey := l.GetKey("__sort", SortVectorSource)
	sortKey.SVIdx = 0

	row := NewRowData()

	_, ok := row.Get(name)
	assert.False(t, ok)

	row.Set(name, StringValue("alice"))
	v, ok := row.Get(name)
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "alice", v.Str)

	row.SortVector = []Value{NumberValue(2.5)}
	v, ok = row.Get(sortKey)
	require.True(t, ok)
	assert.Equal(t, KindNumber, v.Kind)
	assert.Equal(t, 2.5, v.Number)

	row.Clear()
	_, ok = row.Get(name)
	assert.False(t, ok)
}

func TestSearchResultClear(t *testing.T) {
	t.Parallel()

	sr := NewSearchResult()
	sr.Meta = DocumentMeta{Key: "d1"}
	sr.Score = 1.5

	l := NewLookup()
	k := l.GetKey("f", 0)
	sr.Row.Set(k, NumberValue(1))

	sr.Clear()

	assert.Equal(t, DocumentMeta{}, sr.Meta)
	assert.Zero(t, sr.Score)

	_, ok := sr.Row.Get(k)
	assert.False(t, ok)
}
