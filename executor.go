// SPDX-FileCopyrightText: 2026 The fizz Authors
// SPDX-License-Identifier: MIT

package fizz

import "sync"

// Executor is the scheduling context driving a connection. One connection is
// driven by exactly one executor at a time; every engine operation and every
// transport event for that connection must run on it.
type Executor interface {
	Post(fn func())
}

// SerialExecutor runs posted functions on a single goroutine in submission
// order. It satisfies the engine's single-scheduling-context model for
// transports that produce events from their own goroutines.
type SerialExecutor struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewSerialExecutor starts the executor goroutine.
func NewSerialExecutor() *SerialExecutor {
	ex := &SerialExecutor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go ex.loop()
	return ex
}

// Post schedules fn. Functions posted after Close are dropped.
func (ex *SerialExecutor) Post(fn func()) {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return
	}
	ex.queue = append(ex.queue, fn)
	ex.mu.Unlock()

	select {
	case ex.wake <- struct{}{}:
	default:
	}
}

// Close stops the executor after already-queued functions have run and waits
// for the goroutine to exit.
func (ex *SerialExecutor) Close() {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		<-ex.done
		return
	}
	ex.closed = true
	ex.mu.Unlock()

	select {
	case ex.wake <- struct{}{}:
	default:
	}
	<-ex.done
}

func (ex *SerialExecutor) loop() {
	defer close(ex.done)
	for {
		ex.mu.Lock()
		queue := ex.queue
		ex.queue = nil
		closed := ex.closed
		ex.mu.Unlock()

		for _, fn := range queue {
			fn()
		}
		if closed {
			return
		}
		<-ex.wake
	}
}
