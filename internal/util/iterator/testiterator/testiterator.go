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

// Package testiterator provides a shared conformance test for
// iterator.Interface implementations, so every new iterator (index scan,
// cursor replay, etc.) is checked against the same contract.
package testiterator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchcore/searchcore/internal/util/iterator"
)

// TestIterator checks that an iterator created by newIter yields 1, 2, 3 (in
// that order), then keeps returning iterator.ErrIteratorDone, and that Close
// may be called multiple times without panicking.
func TestIterator[K any](t *testing.T, newIter func() iterator.Interface[K, int]) {
	t.Helper()

	t.Run("Next", func(t *testing.T) {
		t.Parallel()

		iter := newIter()
		defer iter.Close()

		for _, expected := range []int{1, 2, 3} {
			_, v, err := iter.Next()
			require.NoError(t, err)
			assert.Equal(t, expected, v)
		}

		_, _, err := iter.Next()
		assert.True(t, errors.Is(err, iterator.ErrIteratorDone))

		_, _, err = iter.Next()
		assert.True(t, errors.Is(err, iterator.ErrIteratorDone))
	})

	t.Run("CloseTwice", func(t *testing.T) {
		t.Parallel()

		iter := newIter()
		iter.Close()
		iter.Close()
	})
}
