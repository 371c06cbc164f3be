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

// Package memindex provides an in-memory reference implementation of
// index.Backend, useful for tests and for the standalone binary's demo
// mode. It has no durability and no real text scoring: matching is a case
// insensitive substring search over a synthetic "body" field, and score is
// the number of occurrences.
package memindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/searchcore/searchcore/internal/index"
)

// Document is a document inserted into a memindex Index.
type Document struct {
	Key     string
	Body    string
	Payload []byte
	Fields  map[string]any
}

// Index is a single named in-memory index.
type Index struct {
	mu   sync.RWMutex
	docs []Document
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Insert adds or replaces a document keyed by doc.Key.
func (idx *Index) Insert(doc Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, d := range idx.docs {
		if d.Key == doc.Key {
			idx.docs[i] = doc
			return
		}
	}

	idx.docs = append(idx.docs, doc)
}

// Backend is an index.Backend backed by a fixed set of named Index values.
type Backend struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{indexes: make(map[string]*Index)}
}

// CreateIndex registers idx under name, replacing any existing index with
// that name.
func (b *Backend) CreateIndex(name string, idx *Index) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.indexes[name] = idx
}

// Open implements index.Backend.
func (b *Backend) Open(_ context.Context, indexName, query string) (index.SearchContext, error) {
	b.mu.RLock()
	idx, ok := b.indexes[indexName]
	b.mu.RUnlock()

	if !ok {
		return nil, index.ErrNoIndex
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]*index.Doc, 0, len(idx.docs))
	needle := strings.ToLower(strings.TrimSpace(query))

	for _, d := range idx.docs {
		score := float64(strings.Count(strings.ToLower(d.Body), needle))
		if needle != "" && score == 0 {
			continue
		}

		if needle == "" {
			score = 1
		}

		matches = append(matches, &index.Doc{
			Key:        d.Key,
			Payload:    d.Payload,
			HasPayload: d.Payload != nil,
			Score:      score,
			Fields:     d.Fields,
		})
	}

	return &searchContext{reader: &reader{docs: matches}}, nil
}

// Explain implements index.Backend.
func (b *Backend) Explain(_ context.Context, indexName, query string) (string, error) {
	b.mu.RLock()
	_, ok := b.indexes[indexName]
	b.mu.RUnlock()

	if !ok {
		return "", index.ErrNoIndex
	}

	return fmt.Sprintf("SCAN %s MATCH %q (substring, case-insensitive)", indexName, query), nil
}

// searchContext is the only SearchContext kind memindex produces; reopening
// keys is a no-op since the whole index lives in process memory.
type searchContext struct {
	reader *reader
}

func (s *searchContext) Reader() index.Reader { return s.reader }

func (s *searchContext) ReopenKeys(context.Context) error { return nil }

func (s *searchContext) Close() {}

// reader iterates over a pre-computed match slice.
type reader struct {
	docs []*index.Doc
	pos  int
}

func (r *reader) Next(context.Context) (*index.Doc, error) {
	if r.pos >= len(r.docs) {
		return nil, index.ErrReaderDone
	}

	d := r.docs[r.pos]
	r.pos++

	return d, nil
}

// TotalSeen reports every match: Open evaluates the whole index up front.
func (r *reader) TotalSeen() int64 { return int64(len(r.docs)) }

func (r *reader) Close() {}
