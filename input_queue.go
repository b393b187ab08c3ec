// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

// InputQueue is the pending-input byte queue shared between the transport
// adapter and the state machine. The adapter appends freshly received bytes;
// the state machine consumes exactly what it reports as parsed during a
// ProcessSocketData call. The single-threaded execution model means no
// concurrent mutation occurs.
type InputQueue struct {
	buf []byte
}

// Append adds freshly received transport bytes to the tail of the queue.
func (q *InputQueue) Append(data []byte) {
	q.buf = append(q.buf, data...)
}

// Bytes exposes the buffered bytes without consuming them.
func (q *InputQueue) Bytes() []byte { return q.buf }

// Len returns the number of buffered bytes.
func (q *InputQueue) Len() int { return len(q.buf) }

// Consume discards the first n buffered bytes.
func (q *InputQueue) Consume(n int) {
	if n >= len(q.buf) {
		q.buf = q.buf[:0]
		return
	}
	q.buf = q.buf[n:]
}

// TakeAll removes and returns everything buffered, leaving the queue empty.
func (q *InputQueue) TakeAll() []byte {
	out := q.buf
	q.buf = nil
	return out
}

// Clear discards all buffered bytes.
func (q *InputQueue) Clear() { q.buf = nil }
