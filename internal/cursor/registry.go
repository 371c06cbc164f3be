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

package cursor

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/util/debugbuild"
)

// Parts of Prometheus metric names.
const (
	namespace = "searchcore"
	subsystem = "cursors"
)

// DefaultChunkSize is used by Run when neither the READ command's
// COUNT nor the request's own configured chunk size is available.
const DefaultChunkSize = 1000

var lastCursorID atomic.Uint32

func init() {
	if !debugbuild.Enabled {
		lastCursorID.Store(rand.Uint32())
	}
}

// Registry is a process-wide map from cursor id to cursor, plus per-index
// counters checked against configured caps.
//
//nolint:vet // for readability
type Registry struct {
	rw  sync.RWMutex
	m   map[int64]*Cursor
	cnt map[string]int

	// caps maps index name to its maximum concurrent open cursors; an
	// index absent from caps is treated as having DefaultCap.
	caps       map[string]int
	defaultCap int

	l *zap.Logger

	active      *prometheus.GaugeVec
	created     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	capRejected *prometheus.CounterVec
	gcReclaimed prometheus.Counter
}

// DefaultCap is the per-index cursor cap used when none is configured.
const DefaultCap = 128

// NewRegistry creates a new, empty Registry.
func NewRegistry(l *zap.Logger) *Registry {
	return &Registry{
		m:          map[int64]*Cursor{},
		cnt:        map[string]int{},
		caps:       map[string]int{},
		defaultCap: DefaultCap,
		l:          l,
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active",
				Help:      "Number of currently open cursors per index.",
			},
			[]string{"index"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "created_total",
				Help:      "Total number of cursors created.",
			},
			[]string{"index"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Cursor lifetime in seconds, from reservation to disposal.",
				Buckets: []float64{
					1 * time.Millisecond.Seconds(),
					5 * time.Millisecond.Seconds(),
					10 * time.Millisecond.Seconds(),
					25 * time.Millisecond.Seconds(),
					50 * time.Millisecond.Seconds(),
					100 * time.Millisecond.Seconds(),
					250 * time.Millisecond.Seconds(),
					500 * time.Millisecond.Seconds(),
					1000 * time.Millisecond.Seconds(),
					2500 * time.Millisecond.Seconds(),
					5000 * time.Millisecond.Seconds(),
					10000 * time.Millisecond.Seconds(),
				},
			},
			[]string{"index"},
		),
		capRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cap_rejected_total",
				Help:      "Total number of cursor reservations rejected by the per-index cap.",
			},
			[]string{"index"},
		),
		gcReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gc_total",
				Help:      "Total number of cursors reclaimed by idle collection.",
			},
		),
	}
}

// SetCap configures the maximum concurrent open cursors for indexName.
func (r *Registry) SetCap(indexName string, max int) {
	r.rw.Lock()
	defer r.rw.Unlock()

	r.caps[indexName] = max
}

func (r *Registry) capFor(indexName string) int {
	if c, ok := r.caps[indexName]; ok {
		return c
	}

	return r.defaultCap
}

// Reserve allocates a unique cursor id for req against indexName, unless
// the index's per-index cap has already been reached. The returned cursor
// is born Leased to the caller.
func (r *Registry) Reserve(indexName string, req *query.Request, maxIdle time.Duration) (*Cursor, error) {
	r.rw.Lock()
	defer r.rw.Unlock()

	if r.cnt[indexName] >= r.capFor(indexName) {
		r.capRejected.WithLabelValues(indexName).Inc()
		return nil, queryerr.New(queryerr.CodeCursorCapExceeded, nil)
	}

	var id int64
	for id == 0 || r.m[id] != nil {
		id = int64(lastCursorID.Add(1))
	}

	c := newCursor(id, indexName, req, maxIdle, r)
	r.m[id] = c
	r.cnt[indexName]++

	r.created.WithLabelValues(indexName).Inc()
	r.active.WithLabelValues(indexName).Inc()

	r.l.Debug("Reserved cursor", zap.Int64("id", id), zap.String("index", indexName))

	return c, nil
}

// TakeForExecution atomically transitions a cursor from Paused to Leased.
// It fails with CursorNotFound both when the id is unknown and when the
// cursor is already Leased by someone else: contention on a cursor from a
// second client is an error, not a wait.
func (r *Registry) TakeForExecution(id int64) (*Cursor, error) {
	r.rw.RLock()
	c, ok := r.m[id]
	r.rw.RUnlock()

	if !ok {
		return nil, CursorNotFoundErr()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Paused {
		return nil, CursorNotFoundErr()
	}

	c.state = Leased

	return c, nil
}

// Pause releases c's lease, updates its last-used time, and returns it to
// Paused — unless a Purge arrived while c was leased, in which case c is
// disposed now instead of being handed back out.
func (r *Registry) Pause(c *Cursor) {
	c.mu.Lock()
	pending := c.pendingDelete
	if !pending {
		c.lastUsed = time.Now()
		c.state = Paused
	}
	c.mu.Unlock()

	if !pending {
		return
	}

	r.rw.Lock()
	delete(r.m, c.ID)
	r.cnt[c.IndexName]--
	r.rw.Unlock()

	r.finishDispose(c)
}

// Purge disposes the cursor named by id. It returns CursorGoneErr (code
// CursorNotFound) if no such cursor exists.
//
// A cursor currently Leased to an in-flight READ is not disposed here: it
// is marked for deferred disposal, which its lease holder's next Pause call
// carries out. Disposing it immediately would free the request's search
// context out from under a goroutine still pulling rows from it.
func (r *Registry) Purge(id int64) error {
	r.rw.Lock()

	c, ok := r.m[id]
	if !ok {
		r.rw.Unlock()
		return CursorGoneErr()
	}

	c.mu.Lock()
	if c.state == Leased {
		c.pendingDelete = true
		c.mu.Unlock()
		r.rw.Unlock()

		return nil
	}
	c.mu.Unlock()

	delete(r.m, id)
	r.cnt[c.IndexName]--
	r.rw.Unlock()

	r.finishDispose(c)

	return nil
}

// DisposeLeased disposes c immediately. The caller must currently hold c's
// lease (from Reserve or TakeForExecution) and must not call Pause on it
// afterward: this is the path a cursor's own execution takes when it
// reaches end of iteration or a fatal error, as opposed to Purge, which is
// the external DEL/idle-collection path and must respect a concurrent
// lease.
func (r *Registry) DisposeLeased(c *Cursor) {
	r.rw.Lock()
	delete(r.m, c.ID)
	r.cnt[c.IndexName]--
	r.rw.Unlock()

	r.finishDispose(c)
}

// CollectIdle scans for Paused cursors whose idle window has expired and
// disposes them, returning the count reclaimed.
func (r *Registry) CollectIdle() int {
	now := time.Now()

	var expired []*Cursor

	r.rw.Lock()

	for _, c := range r.m {
		c.mu.Lock()
		idle := c.idleExpired(now)
		c.mu.Unlock()

		if idle {
			expired = append(expired, c)
		}
	}

	for _, c := range expired {
		delete(r.m, c.ID)
		r.cnt[c.IndexName]--
	}

	r.rw.Unlock()

	for _, c := range expired {
		r.finishDispose(c)
	}

	if len(expired) > 0 {
		r.gcReclaimed.Add(float64(len(expired)))
	}

	return len(expired)
}

// finishDispose runs c's dispose, records duration and active-gauge metrics.
// The caller must have already removed c from r.m and r.cnt.
func (r *Registry) finishDispose(c *Cursor) {
	c.dispose()

	r.duration.WithLabelValues(c.IndexName).Observe(time.Since(c.created).Seconds())
	r.active.WithLabelValues(c.IndexName).Dec()

	r.l.Debug("Disposed cursor", zap.Int64("id", c.ID), zap.String("index", c.IndexName))
}

// All returns a shallow copy of every cursor currently in the registry,
// used by the reaper to avoid holding the registry lock during a sweep.
func (r *Registry) All() []*Cursor {
	r.rw.RLock()
	defer r.rw.RUnlock()

	return maps.Values(r.m)
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.active.Describe(ch)
	r.created.Describe(ch)
	r.duration.Describe(ch)
	r.capRejected.Describe(ch)
	r.gcReclaimed.Describe(ch)
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.active.Collect(ch)
	r.created.Collect(ch)
	r.duration.Collect(ch)
	r.capRejected.Collect(ch)
	r.gcReclaimed.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Registry)(nil)
)
