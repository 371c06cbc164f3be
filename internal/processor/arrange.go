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
	"sort"

	"github.com/searchcore/searchcore/internal/planner"
	"github.com/searchcore/searchcore/internal/rlookup"
)

// Arrange implements sort and pagination. Because a result's sort key is
// only known once the whole row is loaded, Arrange drains its upstream
// fully on the first Next call, sorts, applies offset/limit, then replays
// the buffered window one row at a time.
type Arrange struct {
	upstream Processor
	step     *planner.ArrangeStep

	buffered bool
	rows     []*rlookup.SearchResult
	pos      int
}

// NewArrange returns an Arrange stage pulling from upstream according to step.
func NewArrange(upstream Processor, step *planner.ArrangeStep) *Arrange {
	return &Arrange{upstream: upstream, step: step}
}

// Next implements Processor.
func (p *Arrange) Next(ctx context.Context, out *rlookup.SearchResult) (Status, error) {
	if !p.buffered {
		if err := p.drain(ctx); err != nil {
			return Error, err
		}

		p.buffered = true
	}

	if p.pos >= len(p.rows) {
		return EOF, nil
	}

	r := p.rows[p.pos]
	p.pos++

	out.Meta = r.Meta
	out.Score = r.Score
	out.Row = r.Row

	return OK, nil
}

func (p *Arrange) drain(ctx context.Context) error {
	for {
		r := rlookup.NewSearchResult()

		status, err := p.upstream.Next(ctx, r)

		switch status {
		case OK:
			p.rows = append(p.rows, r)
		case EOF:
			p.sortAndPage()
			return nil
		case Paused:
			// a real host binding would suspend here; the in-process
			// pipeline never yields Paused, so treat it as EOF defensively.
			p.sortAndPage()
			return nil
		case Error:
			return err
		}
	}
}

func (p *Arrange) sortAndPage() {
	if p.step != nil && len(p.step.SortKeysLK) > 0 {
		sort.SliceStable(p.rows, func(i, j int) bool {
			return p.less(p.rows[i], p.rows[j])
		})
	}

	if p.step == nil {
		return
	}

	offset := p.step.Offset
	if offset < 0 {
		offset = 0
	}

	if offset > len(p.rows) {
		offset = len(p.rows)
	}

	rows := p.rows[offset:]

	if p.step.Limit > 0 && p.step.Limit < len(rows) {
		rows = rows[:p.step.Limit]
	}

	p.rows = rows
}

func (p *Arrange) less(a, b *rlookup.SearchResult) bool {
	for i, key := range p.step.SortKeysLK {
		va, _ := a.Row.Get(key)
		vb, _ := b.Row.Get(key)

		cmp := compareValues(va, vb)
		if cmp == 0 {
			continue
		}

		if i < len(p.step.Ascending) && !p.step.Ascending[i] {
			cmp = -cmp
		}

		return cmp < 0
	}

	return false
}

// compareValues orders Values for sorting: numbers by magnitude, strings
// lexically, nulls last.
func compareValues(a, b rlookup.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}

	if a.IsNull() {
		return 1
	}

	if b.IsNull() {
		return -1
	}

	switch {
	case a.Kind == rlookup.KindNumber && b.Kind == rlookup.KindNumber:
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		default:
			return 0
		}
	default:
		as, bs := a.Str, b.Str
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
}
