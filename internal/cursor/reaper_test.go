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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/searchcore/searchcore/internal/query"
)

func TestReaperSweepReclaimsExpiredCursors(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zaptest.NewLogger(t))

	var ids []int64

	for i := 0; i < 5; i++ {
		req := newTestRequest(t, query.IsSearch|query.IsCursor)

		c, err := r.Reserve("idx", req, time.Millisecond)
		require.NoError(t, err)

		r.Pause(c)

		ids = append(ids, c.ID)
	}

	time.Sleep(10 * time.Millisecond)

	rp := NewReaper(r, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, rp.sweep(context.Background()))

	for _, id := range ids {
		_, err := r.TakeForExecution(id)
		assert.Error(t, err, "cursor %d should have been reclaimed", id)
	}
}

func TestReaperSweepLeavesFreshCursors(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zaptest.NewLogger(t))

	req := newTestRequest(t, query.IsSearch|query.IsCursor)

	c, err := r.Reserve("idx", req, time.Hour)
	require.NoError(t, err)

	r.Pause(c)

	rp := NewReaper(r, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, rp.sweep(context.Background()))

	taken, err := r.TakeForExecution(c.ID)
	require.NoError(t, err)
	assert.Same(t, c, taken)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zaptest.NewLogger(t))

	rp := NewReaper(r, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	stop := rp.Run(ctx)

	time.Sleep(5 * time.Millisecond)

	stop()
	cancel()
}
