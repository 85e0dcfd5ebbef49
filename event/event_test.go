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

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/openthread/lowpan-ns/types"
)

func newTestEvent(ts uint64, name string, log *[]string) *Event {
	return &Event{
		Timestamp: ts,
		Name:      name,
		Fn: func() {
			*log = append(*log, name)
		},
	}
}

func TestQueueOrder(t *testing.T) {
	var log []string
	q := NewQueue()
	assert.Equal(t, Ever, q.NextTimestamp())
	assert.Nil(t, q.PopNext())

	q.Add(newTestEvent(30, "c", &log))
	q.Add(newTestEvent(10, "a", &log))
	q.Add(newTestEvent(20, "b1", &log))
	q.Add(newTestEvent(20, "b2", &log))
	q.Add(newTestEvent(20, "b3", &log))

	assert.Equal(t, 5, q.Len())
	assert.Equal(t, uint64(10), q.NextTimestamp())
	for q.Len() > 0 {
		e := q.PopNext()
		assert.False(t, e.IsPending())
		e.Fn()
	}
	assert.Equal(t, []string{"a", "b1", "b2", "b3", "c"}, log)
}

func TestQueueRemove(t *testing.T) {
	var log []string
	q := NewQueue()
	a := newTestEvent(10, "a", &log)
	b := newTestEvent(10, "b", &log)
	c := newTestEvent(5, "c", &log)
	assert.False(t, a.IsPending())
	q.Add(a)
	q.Add(b)
	q.Add(c)
	assert.True(t, b.IsPending())

	assert.True(t, q.Remove(b))
	assert.True(t, b.IsCancelled())
	assert.False(t, b.IsPending())
	assert.False(t, q.Remove(b))
	assert.False(t, q.Remove(nil))

	assert.Equal(t, c, q.PopNext())
	assert.Equal(t, a, q.PopNext())
	assert.Equal(t, 0, q.Len())
}

func TestQueueReAdd(t *testing.T) {
	var log []string
	q := NewQueue()
	a := newTestEvent(10, "a", &log)
	q.Add(a)
	assert.Panics(t, func() { q.Add(a) })
	q.Remove(a)
	q.Add(a)
	assert.False(t, a.IsCancelled())
	assert.Equal(t, 1, q.Len())
	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.True(t, a.IsCancelled())
}
