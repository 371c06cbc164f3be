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

package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/searchcore/searchcore/internal/planner"
	"github.com/searchcore/searchcore/internal/rlookup"
	"github.com/searchcore/searchcore/internal/util/iterator"
)

// Group implements one GROUPBY stage: it drains its upstream fully, buckets
// rows by the configured GroupBy fields, applies reducers, and replays one
// aggregated row per bucket.
type Group struct {
	upstream Processor
	step     planner.GroupStep
	lookup   *rlookup.Lookup

	buffered bool
	it       iterator.Interface[int, *rlookup.SearchResult]
}

// NewGroup returns a Group stage pulling from upstream according to step,
// resolving its output fields against lookup.
func NewGroup(upstream Processor, step planner.GroupStep, lookup *rlookup.Lookup) *Group {
	return &Group{upstream: upstream, step: step, lookup: lookup}
}

// Next implements Processor.
func (p *Group) Next(ctx context.Context, out *rlookup.SearchResult) (Status, error) {
	if !p.buffered {
		rows, err := p.drain(ctx)
		if err != nil {
			return Error, err
		}

		p.it = iterator.ForSlice(rows)
		p.buffered = true
	}

	_, r, err := p.it.Next()
	if err != nil {
		if errors.Is(err, iterator.ErrIteratorDone) {
			return EOF, nil
		}

		return Error, err
	}

	out.Meta = r.Meta
	out.Score = r.Score
	out.Row = r.Row

	return OK, nil
}

type bucket struct {
	keyVals []rlookup.Value
	count   int64
	sums    map[string]float64
	row     *rlookup.SearchResult
}

func (p *Group) drain(ctx context.Context) ([]*rlookup.SearchResult, error) {
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for {
		r := rlookup.NewSearchResult()

		status, err := p.upstream.Next(ctx, r)

		switch status {
		case OK:
			p.accumulate(r, buckets, &order)
		case EOF, Paused:
			return p.finalize(buckets, order), nil
		case Error:
			return nil, err
		}
	}
}

func (p *Group) accumulate(r *rlookup.SearchResult, buckets map[string]*bucket, order *[]string) {
	keyVals := make([]rlookup.Value, len(p.step.GroupBy))
	bucketKey := ""

	for i, name := range p.step.GroupBy {
		k := p.lookup.GetKey(name, 0)
		v, _ := r.Row.Get(k)
		keyVals[i] = v
		bucketKey += fmt.Sprintf("\x00%d:%v", v.Kind, v)
	}

	b, ok := buckets[bucketKey]
	if !ok {
		b = &bucket{keyVals: keyVals, sums: make(map[string]float64), row: rlookup.NewSearchResult()}

		for i, name := range p.step.GroupBy {
			k := p.lookup.GetKey(name, 0)
			b.row.Row.Set(k, keyVals[i])
		}

		buckets[bucketKey] = b
		*order = append(*order, bucketKey)
	}

	b.count++

	for _, red := range p.step.Reducers {
		if red.Function == "COUNT" {
			continue
		}

		k := p.lookup.GetKey(red.Source, 0)

		v, ok := r.Row.Get(k)
		if ok && v.Kind == rlookup.KindNumber {
			b.sums[red.Name] += v.Number
		}
	}
}

func (p *Group) finalize(buckets map[string]*bucket, order []string) []*rlookup.SearchResult {
	rows := make([]*rlookup.SearchResult, 0, len(order))

	for _, bucketKey := range order {
		b := buckets[bucketKey]

		for _, red := range p.step.Reducers {
			out := p.lookup.GetKey(red.Name, 0)

			switch red.Function {
			case "COUNT":
				b.row.Row.Set(out, rlookup.NumberValue(float64(b.count)))
			case "SUM":
				b.row.Row.Set(out, rlookup.NumberValue(b.sums[red.Name]))
			case "AVG":
				avg := float64(0)
				if b.count > 0 {
					avg = b.sums[red.Name] / float64(b.count)
				}

				b.row.Row.Set(out, rlookup.NumberValue(avg))
			default:
				b.row.Row.Set(out, rlookup.NumberValue(b.sums[red.Name]))
			}
		}

		rows = append(rows, b.row)
	}

	return rows
}
