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

// Package index defines the narrow collaborator interface the query layer
// uses to reach the inverted index, document metadata store and score
// computation — all out of scope for this module and provided by a real
// text-search engine in production. A small in-memory reference
// implementation lives in the memindex subpackage for end-to-end tests.
package index

import (
	"context"
	"errors"
)

// ErrNoIndex is returned by Backend.Open when the named index does not exist.
var ErrNoIndex = errors.New("no such index")

// ErrReaderDone is returned by Reader.Next once a reader is exhausted.
var ErrReaderDone = errors.New("reader is done")

// Doc is a single matching document as produced by the index reader,
// carrying everything the pipeline needs to populate a SearchResult: the
// document's identity, its relevance score, and its stored field values.
type Doc struct {
	Key        string
	Payload    []byte
	HasPayload bool
	Score      float64

	// Fields holds stored field values by name, as either a float64 or a
	// string; the pipeline's IndexScan stage narrows these into rlookup.Value.
	Fields map[string]any
}

// Reader is a pull-based stream of matching documents, in the index's
// natural (typically relevance) order.
//
// Reader is the deepest stage of a result processor chain; its TotalSeen
// method backs the chain's total_results counter.
type Reader interface {
	// Next returns the next matching document, or ErrReaderDone once the
	// reader is exhausted.
	Next(ctx context.Context) (*Doc, error)

	// TotalSeen returns the number of documents the reader has evaluated
	// so far, independent of how many were emitted downstream.
	TotalSeen() int64

	Close()
}

// SearchContext is a long-lived handle to an open query against a single
// index, obtained once per request and held across cursor suspensions.
type SearchContext interface {
	Reader() Reader

	// ReopenKeys re-acquires any host resources released when the owning
	// request was last suspended. It must be called before resuming a
	// paused pipeline.
	ReopenKeys(ctx context.Context) error

	Close()
}

// Backend opens search contexts against named indexes and renders
// human-readable query explanations.
type Backend interface {
	// Open compiles query against the named index's schema and returns a
	// context ready to read matches from. It returns ErrNoIndex if the
	// index does not exist.
	Open(ctx context.Context, indexName, query string) (SearchContext, error)

	// Explain returns a human-readable rendering of query against the
	// named index's schema, without executing it.
	Explain(ctx context.Context, indexName, query string) (string, error)
}
