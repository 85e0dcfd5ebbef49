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
	"time"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/progctx"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

const (
	MaxSimulateSpeed = 1000000

	// DefaultDispatcherSpeed is used in a speed parameter, to indicate default speed.
	DefaultDispatcherSpeed float64 = -1.0
)

type Config struct {
	Speed      float64
	DumpEvents bool
}

func DefaultConfig() *Config {
	return &Config{
		Speed:      MaxSimulateSpeed,
		DumpEvents: false,
	}
}

type goDuration struct {
	duration time.Duration
	done     chan struct{}
}

// Dispatcher owns simulated time and the event queue. Protocol layers schedule their callbacks on it
// through the event.Scheduler interface. All events execute on the goroutine that runs the dispatcher.
type Dispatcher struct {
	ctx                *progctx.ProgCtx
	cfg                Config
	CurTime            uint64
	pauseTime          uint64
	queue              *event.Queue
	vis                visualize.Visualizer
	taskChan           chan func()
	speed              float64
	speedStartRealTime time.Time
	speedStartTime     uint64
	goDurationChan     chan goDuration
	stopEvent          *event.Event
	stopTime           uint64
	stopped            bool
	stopHandlers       []func()
	curContext         NodeId
	shutdown           bool

	Counters struct {
		EventsScheduled uint64
		EventsProcessed uint64
		EventsCancelled uint64
	}
}

func NewDispatcher(ctx *progctx.ProgCtx, cfg *Config) *Dispatcher {
	d := &Dispatcher{
		ctx:                ctx,
		cfg:                *cfg,
		queue:              event.NewQueue(),
		vis:                visualize.NewNopVisualizer(),
		taskChan:           make(chan func(), 100),
		speed:              cfg.Speed,
		speedStartRealTime: time.Now(),
		goDurationChan:     make(chan goDuration, 10),
		stopTime:           Ever,
		curContext:         InvalidNodeId,
	}
	d.speed = d.normalizeSpeed(d.speed)
	d.vis.SetSpeed(d.speed)
	logger.Debugf("dispatcher started: cfg=%+v", *cfg)
	return d
}

// Stop shuts the dispatcher down. It does not advance simulated time.
func (d *Dispatcher) Stop() {
	if d.shutdown {
		return
	}
	d.shutdown = true
	d.vis.Stop()
}

func (d *Dispatcher) Now() uint64 {
	return d.CurTime
}

func (d *Dispatcher) Schedule(delay uint64, name string, fn func()) *event.Event {
	return d.ScheduleWithContext(d.curContext, delay, name, fn)
}

func (d *Dispatcher) ScheduleAt(ts uint64, name string, fn func()) *event.Event {
	logger.AssertTrue(ts >= d.CurTime, "cannot schedule %s in the past: %d < %d", name, ts, d.CurTime)
	return d.scheduleEvent(&event.Event{
		Timestamp: ts,
		NodeId:    d.curContext,
		Name:      name,
		Fn:        fn,
	})
}

// ScheduleWithContext schedules fn after delay us on behalf of node nodeid. Events scheduled while
// fn runs inherit the node context.
func (d *Dispatcher) ScheduleWithContext(nodeid NodeId, delay uint64, name string, fn func()) *event.Event {
	ts := d.CurTime + delay
	if ts < d.CurTime || ts > Ever {
		ts = Ever
	}
	return d.scheduleEvent(&event.Event{
		Timestamp: ts,
		NodeId:    nodeid,
		Name:      name,
		Fn:        fn,
	})
}

func (d *Dispatcher) scheduleEvent(evt *event.Event) *event.Event {
	d.queue.Add(evt)
	d.Counters.EventsScheduled++
	return evt
}

func (d *Dispatcher) Cancel(evt *event.Event) {
	if d.queue.Remove(evt) {
		d.Counters.EventsCancelled++
	}
}

// CurrentContext returns the node on whose behalf the current event runs.
func (d *Dispatcher) CurrentContext() NodeId {
	return d.curContext
}

// SetStopTime sets the time at which the simulation stops. Events scheduled before this call for the same
// time still run; events scheduled later for that time do not.
func (d *Dispatcher) SetStopTime(ts uint64) {
	logger.AssertTrue(ts >= d.CurTime)
	if d.stopEvent != nil {
		d.queue.Remove(d.stopEvent)
	}
	d.stopTime = ts
	d.stopEvent = &event.Event{
		Timestamp: ts,
		NodeId:    InvalidNodeId,
		Name:      "stop",
		Fn:        d.onStopEvent,
	}
	d.queue.Add(d.stopEvent)
}

func (d *Dispatcher) GetStopTime() uint64 {
	return d.stopTime
}

// OnStop registers a handler that runs once when the stop event is reached.
func (d *Dispatcher) OnStop(handler func()) {
	d.stopHandlers = append(d.stopHandlers, handler)
}

func (d *Dispatcher) onStopEvent() {
	logger.Infof("simulation stopped at %.6fs", UsToSeconds(d.CurTime))
	d.stopped = true
	for _, h := range d.stopHandlers {
		h()
	}
	d.stopHandlers = nil
}

// IsStopped returns true once the stop time was reached.
func (d *Dispatcher) IsStopped() bool {
	return d.stopped
}

// PendingEvents returns the number of queued events.
func (d *Dispatcher) PendingEvents() int {
	return d.queue.Len()
}

// RunUntil synchronously processes all events up to and including time ts, without real-time pacing.
func (d *Dispatcher) RunUntil(ts uint64) {
	for !d.stopped && d.queue.NextTimestamp() <= ts {
		d.executeNext()
	}
	if !d.stopped && ts != Ever && ts > d.CurTime {
		d.advanceTime(ts)
	}
}

func (d *Dispatcher) Go(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	d.goDurationChan <- goDuration{
		duration: duration,
		done:     done,
	}
	return done
}

func (d *Dispatcher) Run() {
	d.ctx.WaitAdd("dispatcher", 1)
	defer d.ctx.WaitDone("dispatcher")
	defer logger.Debugf("dispatcher exit.")

	defer d.Stop()

	done := d.ctx.Done()
loop:
	for {
		select {
		case f := <-d.taskChan:
			f()
			break
		case duration := <-d.goDurationChan:
			if d.stopped {
				close(duration.done)
				break
			}

			// sync the speed start time with the current time
			d.speedStartRealTime = time.Now()
			d.speedStartTime = d.CurTime

			logger.AssertTrue(d.CurTime == d.pauseTime)
			oldPauseTime := d.pauseTime
			d.pauseTime += uint64(duration.duration / time.Microsecond)
			if d.pauseTime > Ever || d.pauseTime < oldPauseTime {
				d.pauseTime = Ever
			}

			d.goUntilPauseTime()
			if d.stopped {
				d.pauseTime = d.CurTime
			}
			close(duration.done)

			if d.ctx.Err() != nil {
				break loop
			}
			break
		case <-done:
			break loop
		}
	}
}

func (d *Dispatcher) goUntilPauseTime() {
	for d.CurTime < d.pauseTime && !d.stopped {
		d.handleTasks()

		if d.ctx.Err() != nil {
			d.pauseTime = d.CurTime
			break
		}

		if !d.processNextEvent() {
			// no more events until pauseTime
			d.advanceTime(d.pauseTime)
		}
	}
}

// processNextEvent processes all events due at the next event time, pacing to real time when the
// speed is below MaxSimulateSpeed. It returns false if no event is due before pauseTime.
func (d *Dispatcher) processNextEvent() bool {
	logger.AssertTrue(d.CurTime <= d.pauseTime)
	nextEventTime := d.queue.NextTimestamp()

	// convert nextEventTime to real time
	if d.speed < MaxSimulateSpeed {
		var sleepUntilTime = nextEventTime
		if sleepUntilTime > d.pauseTime {
			sleepUntilTime = d.pauseTime
		}

		var needSleepDuration time.Duration

		if d.speed <= 0 {
			needSleepDuration = time.Hour
		} else {
			needSleepDuration = time.Duration(float64(sleepUntilTime-d.speedStartTime)/d.speed) * time.Microsecond
		}
		sleepUntilRealTime := d.speedStartRealTime.Add(needSleepDuration)
		sleepTime := time.Until(sleepUntilRealTime)

		if sleepTime > 0 {
			if sleepTime > time.Millisecond*10 {
				sleepTime = time.Millisecond * 10
			}
			time.Sleep(sleepTime)
			return true
		}
	}

	if nextEventTime > d.pauseTime {
		return false
	}

	for !d.stopped && d.queue.NextTimestamp() == nextEventTime {
		d.executeNext()
	}
	return true
}

func (d *Dispatcher) executeNext() {
	evt := d.queue.PopNext()
	logger.AssertNotNil(evt)
	d.advanceTime(evt.Timestamp)

	if d.cfg.DumpEvents {
		logger.Tracef("dispatch %v", evt)
	}

	prevContext := d.curContext
	d.curContext = evt.NodeId
	evt.Fn()
	d.curContext = prevContext
	d.Counters.EventsProcessed++
}

func (d *Dispatcher) advanceTime(ts uint64) {
	logger.AssertTrue(d.CurTime <= ts, "%v > %v", d.CurTime, ts)
	if d.CurTime < ts {
		oldTime := d.CurTime
		d.CurTime = ts
		elapsedTime := int64(d.CurTime - d.speedStartTime)
		elapsedRealTime := time.Since(d.speedStartRealTime) / time.Microsecond
		if elapsedRealTime > 0 && ts/1000000 != oldTime/1000000 {
			d.vis.AdvanceTime(ts, float64(elapsedTime)/float64(elapsedRealTime))
		}
	}
}

func (d *Dispatcher) PostAsync(trivial bool, task func()) {
	if trivial {
		select {
		case d.taskChan <- task:
			break
		default:
			break
		}
	} else {
		d.taskChan <- task
	}
}

func (d *Dispatcher) handleTasks() {
	defer func() {
		err := recover()
		if err != nil {
			logger.Errorf("dispatcher handle task failed: %+v", err)
		}
	}()

loop:
	for {
		select {
		case t := <-d.taskChan:
			t()
			// continue
		default:
			break loop
		}
	}
}

func (d *Dispatcher) SetVisualizer(vis visualize.Visualizer) {
	logger.AssertNotNil(vis)
	d.vis = vis
	d.vis.SetSpeed(d.speed)
}

func (d *Dispatcher) GetVisualizer() visualize.Visualizer {
	return d.vis
}

func (d *Dispatcher) SetSpeed(f float64) {
	ns := d.normalizeSpeed(f)
	if ns == d.speed {
		return
	}

	// sync the speed start time with the current time
	d.speedStartRealTime = time.Now()
	d.speedStartTime = d.CurTime
	d.speed = ns
	d.vis.SetSpeed(ns)
}

func (d *Dispatcher) normalizeSpeed(f float64) float64 {
	if f <= 0 {
		f = 0
	} else if f >= MaxSimulateSpeed {
		f = MaxSimulateSpeed
	}
	return f
}

func (d *Dispatcher) GetSpeed() float64 {
	return d.speed
}
