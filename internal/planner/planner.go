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

// Package planner defines the plan node types produced by the query
// parser/planner and compiler, and the narrow collaborator interface the
// query layer uses to obtain them.
//
// The parser and planner themselves are out of scope for this layer: it
// only needs a compiled Plan to build a processor chain from. Compiler is
// implemented here only as a small reference so the rest of the module is
// end-to-end testable; production deployments supply their own.
package planner

import (
	"context"

	"github.com/searchcore/searchcore/internal/rlookup"
)

// ArrangeStep describes the sort and pagination parameters of a compiled
// plan. A nil *ArrangeStep means the pipeline is unordered and unpaged.
type ArrangeStep struct {
	// SortKeysLK are the lookup keys that define the sort, in priority
	// order. SortKeysLK[0] is the primary sort key used for serialization.
	SortKeysLK []*rlookup.Key

	// Ascending holds one entry per SortKeysLK, true for ascending order.
	Ascending []bool

	// Offset and Limit implement pagination; Limit <= 0 means unbounded.
	Offset int
	Limit  int
}

// PrimaryKey returns the primary sort key, or nil if the step carries none.
func (a *ArrangeStep) PrimaryKey() *rlookup.Key {
	if a == nil || len(a.SortKeysLK) == 0 {
		return nil
	}

	return a.SortKeysLK[0]
}

// GroupStep describes a single GROUPBY stage: the fields grouped on and the
// reducer expressions producing the output row.
type GroupStep struct {
	GroupBy  []string
	Reducers []Reducer
}

// Reducer describes one accumulator attached to a GroupStep, e.g. COUNT or
// SUM, producing a single named output field per group.
type Reducer struct {
	Name     string // output field name
	Function string // e.g. "COUNT", "SUM", "AVG"
	Source   string // input field name, empty for COUNT
}

// Plan is the compiled output of a query string: a description of the
// pipeline stages the query layer must instantiate, in dependency order.
type Plan struct {
	// Fields lists projected field names, in the order the client asked
	// for them. Empty means "no explicit projection" (send raw row).
	Fields []string

	// Groups holds zero or more GROUPBY stages, applied in order.
	Groups []GroupStep

	// Arrange carries sort/pagination, or nil if the plan is unordered.
	Arrange *ArrangeStep
}

// Compiler turns the argument vector following the index name into a Plan.
//
// Compile must not retain args after it returns.
type Compiler interface {
	Compile(ctx context.Context, isSearch bool, args []string) (*Plan, error)
}

// CompilerFactory builds a Compiler bound to a single request's Lookup
// scope. A Compiler resolves field names into *rlookup.Key instances as it
// compiles SORTBY/RETURN/GROUPBY clauses, so it cannot be shared across
// concurrent requests: each one needs its own Lookup to avoid racing on, or
// cross-contaminating, another request's key scope.
type CompilerFactory interface {
	NewCompiler(lookup *rlookup.Lookup) Compiler
}
