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
	"slices"

	"github.com/searchcore/searchcore/internal/processor"
	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/rlookup"
)

// SendChunk produces a single batch reply into a freshly opened array on w:
// total_results, then up to limit serialized results pulled from req.
//
// On any non-Ok pull it sets IterDone in req's state (except Paused, which
// propagates without marking done). A mid-stream RuntimeError closes the
// array with whatever elements were already written; it does not send an
// additional error frame, since the deferred-length array has already
// committed its header by the time the error is observed.
func SendChunk(ctx context.Context, req *query.Request, dst ArrayOpener, limit int) (processor.Status, error) {
	arr := dst.OpenArray()
	defer arr.Close()

	result := rlookup.NewSearchResult()

	status, err := req.Next(ctx, result)

	arr.WriteInt(req.TotalResults())

	if status == processor.OK && limit > 0 && !req.Flags.Has(query.NoRows) {
		serializeResult(req, arr, result)
	}

	rowsEmitted := 1

	for status == processor.OK && rowsEmitted < limit {
		result.Clear()

		status, err = req.Next(ctx, result)
		if status != processor.OK {
			break
		}

		serializeResult(req, arr, result)
		rowsEmitted++
	}

	if status == processor.Paused {
		return status, err
	}

	return status, err
}

// serializeResult emits one result's sections into arr, in the fixed order
// documented for the command family: document key (search only), score,
// payload, sort key, then the field block — each gated by its request flag.
func serializeResult(req *query.Request, arr *Array, r *rlookup.SearchResult) {
	if req.Flags.Has(query.IsSearch) && r.Meta.Key != "" {
		arr.WriteBulkString(r.Meta.Key)
	}

	if req.Flags.Has(query.SendScores) {
		arr.WriteDouble(r.Score)
	}

	if req.Flags.Has(query.SendPayloads) {
		if r.Meta.HasPayload {
			arr.WriteBulkBytes(r.Meta.Payload)
		} else {
			arr.WriteNull()
		}
	}

	if req.Flags.Has(query.SendSortKeys) {
		writeSortKey(arr, req, r)
	}

	if !req.Flags.Has(query.SendNoFields) {
		writeFields(arr, req, r)
	}
}

// writeSortKey emits the primary sort key's wire encoding, or null if the
// plan carries no arrange step or the value is missing.
func writeSortKey(arr *Array, req *query.Request, r *rlookup.SearchResult) {
	step := req.Arrange()

	key := step.PrimaryKey()
	if key == nil {
		arr.WriteNull()
		return
	}

	v, ok := r.Row.Get(key)
	if !ok {
		arr.WriteNull()
		return
	}

	switch v.Kind {
	case rlookup.KindNumber:
		arr.WriteBulkString("#" + formatNumber(v.Number))
	case rlookup.KindString, rlookup.KindHostString:
		arr.WriteBulkString("$" + v.Str)
	default:
		arr.WriteNull()
	}
}

// writeFields emits the nested field name/value array: the last lookup
// scope's keys in insertion order, skipping Hidden ones and, when the plan
// has an explicit RETURN list, any key that list does not name.
func writeFields(arr *Array, req *query.Request, r *rlookup.SearchResult) {
	nested := arr.OpenArray()
	defer nested.Close()

	for _, k := range req.Lookup.Keys() {
		if k.Flags.Has(rlookup.Hidden) {
			continue
		}

		// Keys that IndexScan creates after ApplyContext carry no Hidden flag.
		if req.Plan != nil && len(req.Plan.Fields) > 0 && !slices.Contains(req.Plan.Fields, k.Name) {
			continue
		}

		nested.WriteSimpleString(k.Name)

		v, ok := r.Row.Get(k)
		if !ok {
			nested.WriteNull()
			continue
		}

		writeValue(nested, v)
	}
}

// writeValue emits a single field's value, discriminated by its rlookup kind.
func writeValue(arr *Array, v rlookup.Value) {
	switch v.Kind {
	case rlookup.KindNumber:
		arr.WriteDouble(v.Number)
	case rlookup.KindString, rlookup.KindHostString:
		arr.WriteBulkString(v.Str)
	case rlookup.KindNull:
		arr.WriteNull()
	default:
		arr.WriteNull()
	}
}
