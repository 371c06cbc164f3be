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

	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/reply"
)

// Run executes one chunk of a leased cursor's pipeline into a fresh 2
// element outer reply array: [chunk_reply, next_cid_or_0].
//
// It calls ReopenKeys on the request's search context before resuming,
// since the host may have migrated, evicted or invalidated keys since the
// previous suspension. count, if nonzero, overrides the request's own
// configured chunk size; if both are zero, DefaultChunkSize is used.
//
// On error or end of iteration the cursor is disposed and the cid element
// is 0; otherwise the cursor is paused and its own id is emitted.
func Run(ctx context.Context, r *Registry, c *Cursor, count int) ([]byte, error) {
	req := c.Request()

	if err := req.ReopenKeys(ctx); err != nil {
		r.DisposeLeased(c)
		return nil, err
	}

	limit := count
	if limit == 0 {
		limit = req.ChunkSize
	}

	if limit == 0 {
		limit = DefaultChunkSize
	}

	w := reply.NewWriter()
	outer := w.OpenArray()

	_, err := reply.SendChunk(ctx, req, outer, limit)

	if err != nil || req.State.Has(query.ErrorState) || req.State.Has(query.IterDone) {
		outer.WriteInt(0)
		outer.Close()

		r.DisposeLeased(c)

		return w.Bytes(), err
	}

	outer.WriteInt(c.ID)
	outer.Close()

	r.Pause(c)

	return w.Bytes(), nil
}
