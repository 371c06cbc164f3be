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

	"github.com/searchcore/searchcore/internal/index"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/rlookup"
	"github.com/searchcore/searchcore/internal/util/lazyerrors"
)

// IndexScan is the root processor: it pulls matching documents from an
// index.Reader and loads their stored fields into the row under keys from
// the given lookup scope.
type IndexScan struct {
	reader index.Reader
	lookup *rlookup.Lookup
}

// NewIndexScan returns an IndexScan reading from reader and resolving field
// names against lookup, creating keys on demand as new field names appear.
func NewIndexScan(reader index.Reader, lookup *rlookup.Lookup) *IndexScan {
	return &IndexScan{reader: reader, lookup: lookup}
}

// Next implements Processor.
func (p *IndexScan) Next(ctx context.Context, out *rlookup.SearchResult) (Status, error) {
	d, err := p.reader.Next(ctx)
	if err != nil {
		if errors.Is(err, index.ErrReaderDone) {
			return EOF, nil
		}

		return Error, queryerr.New(queryerr.CodeRuntimeError, lazyerrors.Error(err))
	}

	out.Meta = rlookup.DocumentMeta{Key: d.Key, Payload: d.Payload, HasPayload: d.HasPayload}
	out.Score = d.Score

	for name, v := range d.Fields {
		key := p.lookup.GetKey(name, 0)

		switch val := v.(type) {
		case float64:
			out.Row.Set(key, rlookup.NumberValue(val))
		case string:
			out.Row.Set(key, rlookup.StringValue(val))
		default:
			out.Row.Set(key, rlookup.OtherValue(val))
		}
	}

	return OK, nil
}

// TotalResults implements RootProcessor.
func (p *IndexScan) TotalResults() int64 {
	return p.reader.TotalSeen()
}

var _ RootProcessor = (*IndexScan)(nil)
