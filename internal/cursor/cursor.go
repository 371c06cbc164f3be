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

// Package cursor implements the registry of paused query executions: per
// index accounting against a configured maximum, idle-timeout reclamation,
// exclusive lease for reads, and safe, exactly-once disposal when a client
// abandons a cursor or the server garbage-collects it.
//
// The implementation of the cursor and registry is deliberately entangled
// with the query package: a cursor's only job is to keep an *query.Request
// alive, paused, between client round-trips, and to guarantee that request
// is freed exactly once no matter which of reads, deletes or GC gets there
// first.
package cursor

import (
	"sync"
	"time"

	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/util/resource"
)

// State is a cursor's lease state.
type State int

// Lease states.
const (
	// Paused cursors are idle and available to be leased.
	Paused State = iota + 1

	// Leased cursors are held exclusively by a reader; no other caller
	// may access them until they are paused again or disposed.
	Leased

	// Disposed cursors have had their request freed and are gone from
	// the registry; any further reference to them is a bug.
	Disposed
)

// Cursor is a persistent handle to a paused query execution.
//
//nolint:vet // for readability
type Cursor struct {
	ID        int64
	IndexName string

	MaxIdle time.Duration

	mu       sync.Mutex
	state    State
	lastUsed time.Time
	req      *query.Request

	// pendingDelete is set by a Purge that arrives while c is Leased: the
	// lease holder owns the only safe path to dispose a Leased cursor, so
	// Purge defers to the lease holder's next Pause instead of disposing
	// out from under an in-flight read.
	pendingDelete bool

	token     *resource.Token
	created   time.Time
	registry  *Registry
	disposeMu sync.Once
}

func newCursor(id int64, indexName string, req *query.Request, maxIdle time.Duration, r *Registry) *Cursor {
	c := &Cursor{
		ID:        id,
		IndexName: indexName,
		MaxIdle:   maxIdle,
		state:     Leased,
		lastUsed:  time.Now(),
		req:       req,
		token:     resource.NewToken(),
		created:   time.Now(),
		registry:  r,
	}

	resource.Track(c, c.token)

	return c
}

// Request returns the cursor's owned request. Callers must hold the lease
// (i.e. have obtained c via Reserve or TakeForExecution) before calling this.
func (c *Cursor) Request() *query.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.req
}

// idleExpired reports whether c has been Paused longer than its MaxIdle,
// as of now. Callers must hold c.mu.
func (c *Cursor) idleExpired(now time.Time) bool {
	return c.state == Paused && now.Sub(c.lastUsed) >= c.MaxIdle
}

// dispose detaches and frees c's request. It is idempotent: only the first
// call has any effect, guaranteeing the request is freed exactly once.
func (c *Cursor) dispose() {
	c.disposeMu.Do(func() {
		c.mu.Lock()
		req := c.req
		c.req = nil
		c.state = Disposed
		c.mu.Unlock()

		if req != nil {
			req.Dispose()
		}

		resource.Untrack(c, c.token)
	})
}

// CursorNotFoundErr is the queryerr.Error returned when a cursor id does
// not name a reserved cursor, for operations that lease a cursor (READ).
func CursorNotFoundErr() error {
	return queryerr.New(queryerr.CodeCursorNotFound, nil)
}

// CursorGoneErr is the queryerr.Error returned when a cursor id does not
// name a reserved cursor, for operations that dispose a cursor (DEL): its
// wording distinguishes "already gone" from a plain lookup miss on READ.
func CursorGoneErr() error {
	return queryerr.NewWithArgument(queryerr.CodeCursorNotFound, nil, queryerr.ArgCursorGone)
}
