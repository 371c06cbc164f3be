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
	"fmt"
	"strconv"
	"strings"

	"github.com/searchcore/searchcore/internal/rlookup"
)

// RefCompiler is a minimal reference Compiler recognizing a small subset of
// clauses: a free-text query token (ignored beyond presence, since scoring
// belongs to the index), SORTBY, LIMIT, RETURN and GROUPBY/REDUCE. It
// exists so the rest of this module is end-to-end testable without a real
// query language front end.
type RefCompiler struct {
	// Lookup resolves field names to stable *rlookup.Key instances shared
	// with the rest of the request's pipeline.
	Lookup *rlookup.Lookup
}

// RefCompilerFactory is the CompilerFactory producing RefCompiler values,
// one per request, each bound to that request's own Lookup scope.
type RefCompilerFactory struct{}

// NewCompiler implements planner.CompilerFactory.
func (RefCompilerFactory) NewCompiler(lookup *rlookup.Lookup) Compiler {
	return NewRefCompiler(lookup)
}

// NewRefCompiler returns a RefCompiler sharing the given lookup scope.
func NewRefCompiler(lookup *rlookup.Lookup) *RefCompiler {
	return &RefCompiler{Lookup: lookup}
}

// Compile implements Compiler.
func (c *RefCompiler) Compile(_ context.Context, isSearch bool, args []string) (*Plan, error) {
	p := &Plan{}

	i := 0
	if isSearch {
		if len(args) == 0 {
			return nil, fmt.Errorf("missing query string")
		}

		i = 1 // first token is the free-text query, consumed by the index collaborator
	}

	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "SORTBY":
			n, step, err := c.parseSortBy(args, i)
			if err != nil {
				return nil, err
			}

			p.Arrange = step
			i = n

		case "LIMIT":
			n, err := c.parseLimit(args, i, p)
			if err != nil {
				return nil, err
			}

			i = n

		case "RETURN":
			n, err := c.parseReturn(args, i, p)
			if err != nil {
				return nil, err
			}

			i = n

		case "GROUPBY":
			n, group, err := c.parseGroupBy(args, i)
			if err != nil {
				return nil, err
			}

			p.Groups = append(p.Groups, group)
			i = n

		default:
			return nil, fmt.Errorf("unrecognized clause %q", args[i])
		}
	}

	return p, nil
}

func (c *RefCompiler) parseSortBy(args []string, i int) (int, *ArrangeStep, error) {
	i++
	if i >= len(args) {
		return 0, nil, fmt.Errorf("SORTBY: missing field")
	}

	field := args[i]
	i++

	ascending := true

	if i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "ASC":
			ascending = true
			i++
		case "DESC":
			ascending = false
			i++
		}
	}

	key := c.Lookup.GetKey(field, 0)

	step := &ArrangeStep{
		SortKeysLK: []*rlookup.Key{key},
		Ascending:  []bool{ascending},
	}

	return i, step, nil
}

func (c *RefCompiler) parseLimit(args []string, i int, p *Plan) (int, error) {
	i++
	if i+1 >= len(args) {
		return 0, fmt.Errorf("LIMIT: missing offset/count")
	}

	offset, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("LIMIT: bad offset: %w", err)
	}

	limit, err := strconv.Atoi(args[i+1])
	if err != nil {
		return 0, fmt.Errorf("LIMIT: bad count: %w", err)
	}

	if p.Arrange == nil {
		p.Arrange = &ArrangeStep{}
	}

	p.Arrange.Offset = offset
	p.Arrange.Limit = limit

	return i + 2, nil
}

func (c *RefCompiler) parseReturn(args []string, i int, p *Plan) (int, error) {
	i++
	if i >= len(args) {
		return 0, fmt.Errorf("RETURN: missing count")
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("RETURN: bad count: %w", err)
	}

	i++

	if i+n > len(args) {
		return 0, fmt.Errorf("RETURN: not enough fields")
	}

	p.Fields = append(p.Fields, args[i:i+n]...)

	for _, f := range args[i : i+n] {
		c.Lookup.GetKey(f, 0)
	}

	return i + n, nil
}

func (c *RefCompiler) parseGroupBy(args []string, i int) (int, GroupStep, error) {
	i++
	if i >= len(args) {
		return 0, GroupStep{}, fmt.Errorf("GROUPBY: missing count")
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, GroupStep{}, fmt.Errorf("GROUPBY: bad count: %w", err)
	}

	i++

	if i+n > len(args) {
		return 0, GroupStep{}, fmt.Errorf("GROUPBY: not enough fields")
	}

	group := GroupStep{GroupBy: append([]string(nil), args[i:i+n]...)}
	i += n

	for _, f := range group.GroupBy {
		c.Lookup.GetKey(f, 0)
	}

	for i < len(args) && strings.ToUpper(args[i]) == "REDUCE" {
		i++
		if i+1 >= len(args) {
			return 0, GroupStep{}, fmt.Errorf("REDUCE: missing function/source")
		}

		fn := strings.ToUpper(args[i])
		i++

		source := args[i]
		i++

		name := fn + "_" + source
		if i+1 < len(args) && strings.ToUpper(args[i]) == "AS" {
			name = args[i+1]
			i += 2
		}

		group.Reducers = append(group.Reducers, Reducer{Name: name, Function: fn, Source: source})
		c.Lookup.GetKey(name, 0)
	}

	return i, group, nil
}
