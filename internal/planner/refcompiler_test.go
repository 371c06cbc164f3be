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

package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchcore/searchcore/internal/rlookup"
)

func TestRefCompilerSortByLimit(t *testing.T) {
	t.Parallel()

	lookup := rlookup.NewLookup()
	c := NewRefCompiler(lookup)

	p, err := c.Compile(context.Background(), true, []string{"hello", "SORTBY", "score", "DESC", "LIMIT", "0", "10"})
	require.NoError(t, err)

	require.NotNil(t, p.Arrange)
	require.Len(t, p.Arrange.SortKeysLK, 1)
	assert.Equal(t, "score", p.Arrange.SortKeysLK[0].Name)
	assert.False(t, p.Arrange.Ascending[0])
	assert.Equal(t, 0, p.Arrange.Offset)
	assert.Equal(t, 10, p.Arrange.Limit)
}

func TestRefCompilerReturn(t *testing.T) {
	t.Parallel()

	lookup := rlookup.NewLookup()
	c := NewRefCompiler(lookup)

	p, err := c.Compile(context.Background(), true, []string{"q", "RETURN", "2", "name", "age"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, p.Fields)
	assert.NotNil(t, lookup.FindKey("name"))
	assert.NotNil(t, lookup.FindKey("age"))
}

func TestRefCompilerGroupByReduce(t *testing.T) {
	t.Parallel()

	lookup := rlookup.NewLookup()
	c := NewRefCompiler(lookup)

	p, err := c.Compile(context.Background(), false, []string{
		"GROUPBY", "1", "brand",
		"REDUCE", "COUNT", "0", "AS", "total",
	})
	require.NoError(t, err)

	require.Len(t, p.Groups, 1)
	assert.Equal(t, []string{"brand"}, p.Groups[0].GroupBy)
	require.Len(t, p.Groups[0].Reducers, 1)
	assert.Equal(t, "total", p.Groups[0].Reducers[0].Name)
	assert.Equal(t, "COUNT", p.Groups[0].Reducers[0].Function)
}

func TestRefCompilerUnknownClause(t *testing.T) {
	t.Parallel()

	c := NewRefCompiler(rlookup.NewLookup())

	_, err := c.Compile(context.Background(), true, []string{"q", "BOGUS"})
	assert.Error(t, err)
}

func TestArrangeStepPrimaryKey(t *testing.T) {
	t.Parallel()

	var nilStep *ArrangeStep
	assert.Nil(t, nilStep.PrimaryKey())

	lookup := rlookup.NewLookup()
	k := lookup.GetKey("f", 0)
	step := &ArrangeStep{SortKeysLK: []*rlookup.Key{k}}
	assert.Same(t, k, step.PrimaryKey())
}
