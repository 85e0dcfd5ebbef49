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

package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	. "github.com/openthread/lowpan-ns/types"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(progctx.New(context.Background()), DefaultConfig())
}

func TestScheduleOrder(t *testing.T) {
	d := newTestDispatcher()
	var log []string
	d.Schedule(2000, "b", func() { log = append(log, "b") })
	d.Schedule(1000, "a", func() {
		log = append(log, "a")
		assert.Equal(t, uint64(1000), d.Now())
		d.Schedule(0, "a2", func() { log = append(log, "a2") })
	})
	d.ScheduleAt(2000, "c", func() { log = append(log, "c") })

	d.RunUntil(1500)
	assert.Equal(t, []string{"a", "a2"}, log)
	assert.Equal(t, uint64(1500), d.Now())

	d.RunUntil(5000)
	assert.Equal(t, []string{"a", "a2", "b", "c"}, log)
	assert.Equal(t, uint64(5000), d.Now())
	assert.Equal(t, uint64(4), d.Counters.EventsProcessed)
}

func TestCancel(t *testing.T) {
	d := newTestDispatcher()
	fired := false
	evt := d.Schedule(10, "x", func() { fired = true })
	d.Cancel(evt)
	d.Cancel(evt)
	d.Cancel(nil)
	d.RunUntil(100)
	assert.False(t, fired)
	assert.Equal(t, uint64(1), d.Counters.EventsCancelled)
}

func TestScheduleInPastPanics(t *testing.T) {
	d := newTestDispatcher()
	d.RunUntil(100)
	assert.Panics(t, func() {
		d.ScheduleAt(50, "past", func() {})
	})
}

func TestContextInherited(t *testing.T) {
	d := newTestDispatcher()
	var inner NodeId
	d.ScheduleWithContext(7, 10, "outer", func() {
		assert.Equal(t, NodeId(7), d.CurrentContext())
		d.Schedule(10, "inner", func() {
			inner = d.CurrentContext()
		})
	})
	d.RunUntil(100)
	assert.Equal(t, NodeId(7), inner)
	assert.Equal(t, InvalidNodeId, d.CurrentContext())
}

func TestStopTime(t *testing.T) {
	d := newTestDispatcher()
	var log []string
	d.ScheduleAt(60*UsPerSec, "before", func() { log = append(log, "before") })
	stopCalled := 0
	d.OnStop(func() { stopCalled++ })
	d.SetStopTime(60 * UsPerSec)
	d.ScheduleAt(59*UsPerSec, "resched", func() {
		d.Schedule(UsPerSec, "after", func() { log = append(log, "after") })
	})

	d.RunUntil(Ever)
	assert.True(t, d.IsStopped())
	assert.Equal(t, uint64(60*UsPerSec), d.Now())
	assert.Equal(t, []string{"before"}, log)
	assert.Equal(t, 1, stopCalled)
	assert.Equal(t, 1, d.PendingEvents())

	d.RunUntil(Ever)
	assert.Equal(t, 1, stopCalled)
}

func TestGoAndRun(t *testing.T) {
	ctx := progctx.New(context.Background())
	d := NewDispatcher(ctx, DefaultConfig())
	count := 0
	var tick func()
	tick = func() {
		count++
		d.Schedule(UsPerSec, "tick", tick)
	}
	d.Schedule(0, "tick", tick)
	go d.Run()

	<-d.Go(10 * time.Second)
	assert.Equal(t, uint64(10*UsPerSec), d.CurTime)
	assert.Equal(t, 11, count)

	done := make(chan struct{})
	d.PostAsync(false, func() {
		d.SetStopTime(d.CurTime + 2*UsPerSec)
		close(done)
	})
	<-done
	<-d.Go(time.Hour)
	assert.True(t, d.IsStopped())
	assert.Equal(t, uint64(12*UsPerSec), d.CurTime)

	ctx.Cancel(nil)
	ctx.Wait()
}

func TestSpeed(t *testing.T) {
	d := newTestDispatcher()
	assert.Equal(t, float64(MaxSimulateSpeed), d.GetSpeed())
	d.SetSpeed(2)
	assert.Equal(t, 2.0, d.GetSpeed())
	d.SetSpeed(-5)
	assert.Equal(t, 0.0, d.GetSpeed())
	d.SetSpeed(1e9)
	assert.Equal(t, float64(MaxSimulateSpeed), d.GetSpeed())
}

type failableNode struct {
	failed   bool
	failures int
}

func (n *failableNode) IsFailed() bool { return n.failed }
func (n *failableNode) Fail()          { n.failed = true; n.failures++ }
func (n *failableNode) Recover()       { n.failed = false }

func TestFailureCtrl(t *testing.T) {
	d := newTestDispatcher()
	prng.Init(1, 1)
	node := &failableNode{}
	fc := NewFailureCtrl(node, d, prng.NewStream("fail"))

	assert.Error(t, fc.SetFailTime(FailTime{FailDuration: 10, FailInterval: 5}))
	assert.NoError(t, fc.SetFailTime(FailTime{FailDuration: UsPerSec, FailInterval: 10 * UsPerSec}))

	d.RunUntil(100 * UsPerSec)
	// one failure per interval
	assert.True(t, node.failures >= 9 && node.failures <= 10, "failures=%d", node.failures)

	assert.NoError(t, fc.SetFailTime(NonFailTime))
	assert.False(t, node.IsFailed())
	n := node.failures
	d.RunUntil(200 * UsPerSec)
	assert.Equal(t, n, node.failures)
}
