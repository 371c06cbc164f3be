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

// Package iterator provides a small generic pull-based iterator contract,
// used by the result processor chain (the Group stage replays its buffered
// rows through ForSlice).
package iterator

import (
	"errors"
)

// ErrIteratorDone is returned by Next when the iterator is exhausted.
var ErrIteratorDone = errors.New("iterator is done")

// Interface is a generic pull-based iterator over key/value pairs.
//
// Next returns ErrIteratorDone (possibly wrapped) once exhausted; all further
// calls must keep returning it. Close releases any resources the iterator
// holds and is safe to call multiple times and after exhaustion.
type Interface[K, V any] interface {
	Next() (K, V, error)
	Close()
}

// CloserFunc adapts a plain function to the io.Closer-like contract used here.
type CloserFunc func()

// Close implements a Closer.
func (f CloserFunc) Close() { f() }

// sliceIterator iterates over a slice, yielding (index, value) pairs.
type sliceIterator[V any] struct {
	s      []V
	i      int
	closed bool
}

// ForSlice returns an iterator over s.
func ForSlice[V any](s []V) Interface[int, V] {
	return &sliceIterator[V]{s: s}
}

func (iter *sliceIterator[V]) Next() (int, V, error) {
	var zero V

	if iter.closed || iter.i >= len(iter.s) {
		return 0, zero, ErrIteratorDone
	}

	i := iter.i
	iter.i++

	return i, iter.s[i], nil
}

func (iter *sliceIterator[V]) Close() {
	iter.closed = true
}

// funcIterator adapts a plain function to Interface.
type funcIterator[K, V any] struct {
	f      func() (K, V, error)
	closed bool
}

// ForFunc returns an iterator that calls f for every Next.
func ForFunc[K, V any](f func() (K, V, error)) Interface[K, V] {
	return &funcIterator[K, V]{f: f}
}

func (iter *funcIterator[K, V]) Next() (K, V, error) {
	var zeroK K

	var zeroV V

	if iter.closed {
		return zeroK, zeroV, ErrIteratorDone
	}

	return iter.f()
}

func (iter *funcIterator[K, V]) Close() {
	iter.closed = true
}

// withClose wraps an iterator, running an extra closer when it is closed.
type withClose[K, V any] struct {
	Interface[K, V]
	close func()
}

// WithClose returns iter wrapped so that close is additionally invoked on Close.
func WithClose[K, V any](iter Interface[K, V], close func()) Interface[K, V] {
	return &withClose[K, V]{Interface: iter, close: close}
}

func (iter *withClose[K, V]) Close() {
	iter.Interface.Close()
	iter.close()
}

// MultiCloser closes several closers together, each exactly once.
type MultiCloser struct {
	closers []interface{ Close() }
}

// NewMultiCloser returns a MultiCloser wrapping the given closers.
func NewMultiCloser(closers ...interface{ Close() }) *MultiCloser {
	return &MultiCloser{closers: closers}
}

// Close closes all wrapped closers, in order.
func (mc *MultiCloser) Close() {
	for _, c := range mc.closers {
		c.Close()
	}
}

// Values drains the key part and exposes a value-only iterator; mostly useful
// for call sites that don't care about the key (e.g. document position).
type valuesIterator[K, V any] struct {
	iter Interface[K, V]
}

// Values adapts iter to drop keys, matching ConsumeValues' signature.
func Values[K, V any](iter Interface[K, V]) Interface[struct{}, V] {
	return &valuesIterator[K, V]{iter: iter}
}

func (v *valuesIterator[K, V]) Next() (struct{}, V, error) {
	_, val, err := v.iter.Next()
	return struct{}{}, val, err
}

func (v *valuesIterator[K, V]) Close() {
	v.iter.Close()
}

// ConsumeValues drains iter fully and returns all produced values, closing it.
func ConsumeValues[K, V any](iter Interface[K, V]) ([]V, error) {
	defer iter.Close()

	var res []V

	for {
		_, v, err := iter.Next()
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				return res, nil
			}

			return nil, err
		}

		res = append(res, v)
	}
}

// ConsumeValuesN pulls up to n values from iter without closing it, so the
// caller can keep pulling more batches later.
func ConsumeValuesN[K, V any](iter Interface[K, V], n int) ([]V, error) {
	var res []V

	for len(res) < n {
		_, v, err := iter.Next()
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				return res, nil
			}

			return nil, err
		}

		res = append(res, v)
	}

	return res, nil
}
