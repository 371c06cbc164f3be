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

func TestRunDrainsFullyInOneChunk(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zaptest.NewLogger(t))
	req := newTestRequest(t, query.IsSearch|query.IsCursor)

	c, err := r.Reserve("idx", req, time.Minute)
	require.NoError(t, err)

	out, err := Run(context.Background(), r, c, 0)
	require.NoError(t, err)

	// Both matching documents fit under the DefaultChunkSize fallback, so
	// the cursor should be disposed and the trailing cid element is 0.
	assert.Contains(t, string(out), "\r\n:0\r\n")

	_, err = r.TakeForExecution(c.ID)
	assert.Error(t, err, "cursor should have been purged after full drain")
}

func TestRunPausesAcrossChunks(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zaptest.NewLogger(t))
	req := newTestRequest(t, query.IsSearch|query.IsCursor)

	c, err := r.Reserve("idx", req, time.Minute)
	require.NoError(t, err)

	out, err := Run(context.Background(), r, c, 1)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "\r\n:0\r\n")

	taken, err := r.TakeForExecution(c.ID)
	require.NoError(t, err)

	out, err = Run(context.Background(), r, taken, 0)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\r\n:0\r\n")

	_, err = r.TakeForExecution(c.ID)
	assert.Error(t, err)
}
