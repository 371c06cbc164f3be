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

// Package ctxutil provides context-related utilities: signal-driven
// cancellation (SigTerm, used by the searchcored binary for shutdown) and
// helpers for code that needs to wait or retry without busy looping.
package ctxutil

import (
	"context"
	"math/rand"
	"time"
)

// jitterDivisor sets the smallest possible sleep as a fraction of cap.
const jitterDivisor = 256

// DurationWithJitter returns a random duration below cap, growing the lower
// bound of that range with retry so that repeated retries back off towards
// cap instead of hammering the resource at a fixed rate.
//
// It panics if the jitter floor, cap/256, is below one millisecond.
func DurationWithJitter(cap time.Duration, retry int64) time.Duration {
	min := cap / jitterDivisor
	if min < time.Millisecond {
		panic("ctxutil.DurationWithJitter: cap is too low")
	}

	if retry < 0 {
		retry = 0
	}

	lower := min * time.Duration(retry+1)
	if lower > cap || lower < min {
		lower = cap / 2
	}

	span := cap - lower
	if span <= 0 {
		return lower
	}

	return lower + time.Duration(rand.Int63n(int64(span))) //nolint:gosec // no crypto need
}

// Sleep sleeps for d, or returns ctx.Err() early if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SigTerm returns a context that is canceled when the process receives
// SIGTERM (or SIGINT), together with a stop function that must be called
// to release the signal subscription.
func SigTerm(ctx context.Context) (context.Context, func()) {
	return sigTerm(ctx)
}
