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

// Package handler implements the FT.SEARCH, FT.AGGREGATE, FT.CURSOR and
// FT.EXPLAIN command surface atop the query and cursor packages: argument
// parsing, request build/execute orchestration, and translation of every
// failure into the host's RESP-like error reply.
package handler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/searchcore/searchcore/internal/cursor"
	"github.com/searchcore/searchcore/internal/index"
	"github.com/searchcore/searchcore/internal/planner"
)

// Handler dispatches the command family to the query/cursor layer.
//
// One Handler instance is shared between all client connections.
type Handler struct {
	Backend  index.Backend
	Compiler planner.CompilerFactory
	Cursors  *cursor.Registry

	L *zap.Logger

	// DefaultMaxIdle is used for WITHCURSOR requests that don't specify
	// MAXIDLE explicitly.
	DefaultMaxIdle time.Duration

	stopReaper func()
}

// NewOpts represent Handler configuration.
type NewOpts struct {
	Backend  index.Backend
	Compiler planner.CompilerFactory

	L *zap.Logger

	DefaultMaxIdle   time.Duration
	CursorGCInterval time.Duration
}

// New returns a new Handler, with its own cursor registry and idle-cursor reaper.
func New(opts *NewOpts) *Handler {
	h := &Handler{
		Backend:        opts.Backend,
		Compiler:       opts.Compiler,
		Cursors:        cursor.NewRegistry(opts.L.Named("cursors")),
		L:              opts.L.Named("query"),
		DefaultMaxIdle: opts.DefaultMaxIdle,
	}

	if opts.CursorGCInterval > 0 {
		reaper := cursor.NewReaper(h.Cursors, opts.CursorGCInterval, opts.L.Named("reaper"))
		h.stopReaper = reaper.Run(context.Background())
	}

	return h
}

// Close stops the background idle-cursor reaper, if one was started.
func (h *Handler) Close() {
	if h.stopReaper != nil {
		h.stopReaper()
	}
}

// Describe implements prometheus.Collector.
func (h *Handler) Describe(ch chan<- *prometheus.Desc) {
	h.Cursors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (h *Handler) Collect(ch chan<- prometheus.Metric) {
	h.Cursors.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Handler)(nil)
)
