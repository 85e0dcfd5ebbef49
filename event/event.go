// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package event contains the discrete-event core: timed events, the event queue and the
// Scheduler interface through which all protocol layers request callbacks.
package event

import (
	"container/heap"
	"fmt"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
)

// Event is a callback due at Timestamp (us). Events with an equal timestamp run in the order they were added.
type Event struct {
	Timestamp uint64
	NodeId    NodeId
	Name      string
	Fn        func()

	seq       uint64
	index     int
	queued    bool
	cancelled bool
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{ts=%d,node=%d,%s}", e.Timestamp, e.NodeId, e.Name)
}

// IsCancelled returns true if the event was cancelled before it ran.
func (e *Event) IsCancelled() bool {
	return e.cancelled
}

// IsPending returns true if the event is still queued.
func (e *Event) IsPending() bool {
	return e.queued
}

// Scheduler is implemented by the owner of simulated time.
type Scheduler interface {
	// Now returns the current simulated time in us.
	Now() uint64
	// Schedule runs fn after delay us.
	Schedule(delay uint64, name string, fn func()) *Event
	// ScheduleAt runs fn at the absolute time ts, which must not be in the past.
	ScheduleAt(ts uint64, name string, fn func()) *Event
	// Cancel removes a pending event. Cancelling a nil, fired or cancelled event is a no-op.
	Cancel(e *Event)
}

type eventHeap []*Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *eventHeap) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(*h)
	e.queued = true
	*h = append(*h, e)
}

func (h *eventHeap) Pop() (elem interface{}) {
	n := len(*h)
	e := (*h)[n-1]
	(*h)[n-1] = nil
	*h = (*h)[:n-1]
	e.index = -1
	e.queued = false
	return e
}

// Queue orders events by (timestamp, insertion sequence).
type Queue struct {
	h       eventHeap
	nextSeq uint64
}

func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Add queues the event. An event can only be queued once.
func (q *Queue) Add(e *Event) {
	logger.AssertNotNil(e.Fn)
	logger.AssertFalse(e.queued, "event already queued: %v", e)
	e.seq = q.nextSeq
	q.nextSeq++
	e.cancelled = false
	heap.Push(&q.h, e)
}

// Remove takes a pending event out of the queue and marks it cancelled.
func (q *Queue) Remove(e *Event) bool {
	if e == nil || !e.queued || e.index >= len(q.h) || q.h[e.index] != e {
		return false
	}
	heap.Remove(&q.h, e.index)
	e.cancelled = true
	return true
}

func (q *Queue) Len() int {
	return len(q.h)
}

// NextTimestamp returns the timestamp of the next event, or Ever if the queue is empty.
func (q *Queue) NextTimestamp() uint64 {
	if len(q.h) == 0 {
		return Ever
	}
	return q.h[0].Timestamp
}

// Peek returns the next event without removing it.
func (q *Queue) Peek() *Event {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// PopNext removes and returns the next event, or nil.
func (q *Queue) PopNext() *Event {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Event)
}

// Clear drops all queued events.
func (q *Queue) Clear() {
	for _, e := range q.h {
		e.index = -1
		e.queued = false
		e.cancelled = true
	}
	q.h = q.h[:0]
}
