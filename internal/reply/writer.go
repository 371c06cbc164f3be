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

// Package reply implements the wire-compatible, position-dependent RESP
// multi-bulk reply layout this layer writes to the host's reply stream,
// including the deferred-length array support the host binding doesn't
// provide natively: batch elements are buffered and the array header is
// committed once the element count is known, at Close.
package reply

import (
	"bytes"
	"fmt"
	"strconv"
)

// Writer accumulates a single top-level reply.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the serialized reply written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// OpenArray starts a deferred-length array whose elements are written
// through the returned Array; the array header is emitted into w only
// once the Array is closed.
func (w *Writer) OpenArray() *Array {
	return &Array{sink: &w.buf}
}

// WriteInt writes a bare top-level RESP integer reply, used by commands
// whose whole reply is a single count rather than an array.
func (w *Writer) WriteInt(n int64) {
	fmt.Fprintf(&w.buf, ":%d\r\n", n)
}

// WriteSimpleString writes a bare top-level RESP simple string reply.
func (w *Writer) WriteSimpleString(s string) {
	fmt.Fprintf(&w.buf, "+%s\r\n", s)
}

// WriteBulkString writes a bare top-level RESP bulk string reply, used by
// FT.EXPLAIN to return its rendering as the command's whole reply.
func (w *Writer) WriteBulkString(s string) {
	fmt.Fprintf(&w.buf, "$%d\r\n%s\r\n", len(s), s)
}

// WriteError renders msg as a top-level RESP error reply ("-msg\r\n").
//
// Callers must not include a leading "-" or embedded CR/LF in msg; this is
// the host's framing contract, not something this layer validates per call.
func WriteError(msg string) []byte {
	return []byte(fmt.Sprintf("-%s\r\n", msg))
}

// ArrayOpener is implemented by both Writer and Array, so a function that
// writes a nested deferred-length array doesn't need to know whether its
// destination is the top-level reply or another array.
type ArrayOpener interface {
	OpenArray() *Array
}

// Array is a deferred-length RESP array: its header ("*N\r\n") is written
// only when Close is called, once every element has been buffered and the
// true count is known.
type Array struct {
	sink     *bytes.Buffer
	elements bytes.Buffer
	count    int
	parent   *Array
}

// OpenArray starts a nested deferred-length array. The nested array counts
// as a single element of its parent once it is closed.
func (a *Array) OpenArray() *Array {
	return &Array{sink: &a.elements, parent: a}
}

// WriteInt appends a RESP integer element.
func (a *Array) WriteInt(n int64) {
	fmt.Fprintf(&a.elements, ":%d\r\n", n)
	a.count++
}

// WriteDouble appends a RESP double as a bulk string, using the sort-key
// wire encoding's rendering for numbers (17 digits after the decimal point).
func (a *Array) WriteDouble(f float64) {
	a.WriteBulkString(formatNumber(f))
}

// WriteBulkString appends a RESP bulk string element.
func (a *Array) WriteBulkString(s string) {
	a.WriteBulkBytes([]byte(s))
}

// WriteBulkBytes appends a RESP bulk string element from raw bytes.
func (a *Array) WriteBulkBytes(b []byte) {
	fmt.Fprintf(&a.elements, "$%d\r\n", len(b))
	a.elements.Write(b)
	a.elements.WriteString("\r\n")
	a.count++
}

// WriteSimpleString appends a RESP simple string element, used for field
// names which are never binary-unsafe in this layer.
func (a *Array) WriteSimpleString(s string) {
	fmt.Fprintf(&a.elements, "+%s\r\n", s)
	a.count++
}

// WriteNull appends a RESP null bulk string element.
func (a *Array) WriteNull() {
	a.elements.WriteString("$-1\r\n")
	a.count++
}

// Count returns the number of elements written into a so far.
func (a *Array) Count() int {
	return a.count
}

// Close commits a's header and buffered elements into its parent sink,
// using the true element count observed, then registers itself as one
// element of its own parent Array, if it was opened from one.
func (a *Array) Close() {
	fmt.Fprintf(a.sink, "*%d\r\n", a.count)
	a.sink.Write(a.elements.Bytes())

	if a.parent != nil {
		a.parent.count++
	}
}

// formatNumber renders f as "%.17e" would in C: 17 digits after the decimal
// point, matching the sort-key wire encoding's numeric format exactly so
// that clients can parse_back losslessly.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'e', 17, 64)
}
