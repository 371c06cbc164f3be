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
	"context"
	"time"

	"github.com/ygrebnov/workers"
	"go.uber.org/zap"
)

// Reaper periodically sweeps a Registry for cursors that have been Paused
// longer than their configured idle window, disposing each concurrently.
//
// A sweep's per-cursor work is two cheap map operations plus, for expired
// cursors, a call down into the owned query request's Dispose, which may
// block on whatever the backend's search context does to close out (close
// file handles, release memory-mapped segments, and so on). Running those
// disposals through a worker pool rather than one at a time keeps a sweep
// that finds many expired cursors from serializing on the slowest one.
type Reaper struct {
	r        *Registry
	interval time.Duration
	l        *zap.Logger

	cancel context.CancelFunc
}

// NewReaper creates a Reaper that will sweep r every interval once Run is called.
func NewReaper(r *Registry, interval time.Duration, l *zap.Logger) *Reaper {
	return &Reaper{r: r, interval: interval, l: l}
}

// Run starts the sweep loop in a background goroutine. It returns a stop
// function that cancels the loop; Run must not be called more than once per
// Reaper.
func (rp *Reaper) Run(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	rp.cancel = cancel

	go func() {
		ticker := time.NewTicker(rp.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rp.sweep(ctx); err != nil {
					rp.l.Warn("Idle cursor sweep failed", zap.Error(err))
				}
			}
		}
	}()

	return cancel
}

// sweep disposes every cursor in rp.r that is currently idle-expired,
// fanning the disposals out across a worker pool sized to the batch.
func (rp *Reaper) sweep(ctx context.Context) error {
	all := rp.r.All()
	if len(all) == 0 {
		return nil
	}

	now := time.Now()

	var expired []*Cursor

	for _, c := range all {
		c.mu.Lock()
		idle := c.idleExpired(now)
		c.mu.Unlock()

		if idle {
			expired = append(expired, c)
		}
	}

	if len(expired) == 0 {
		return nil
	}

	err := workers.ForEach(ctx, expired, func(_ context.Context, c *Cursor) error {
		// Re-check under the registry lock that the cursor is still present
		// and still idle-expired, so a concurrent TakeForExecution or Purge
		// racing this sweep makes the disposal a no-op rather than a double
		// free or the disposal of a cursor that was re-leased meanwhile.
		rp.r.rw.Lock()
		c.mu.Lock()
		still := rp.r.m[c.ID] == c && c.idleExpired(time.Now())
		c.mu.Unlock()

		if still {
			delete(rp.r.m, c.ID)
			rp.r.cnt[c.IndexName]--
		}
		rp.r.rw.Unlock()

		if still {
			rp.r.finishDispose(c)
		}

		return nil
	}, workers.WithDynamicPool())
	if err != nil {
		return err
	}

	rp.l.Debug("Idle cursor sweep reclaimed cursors", zap.Int("count", len(expired)))

	return nil
}
