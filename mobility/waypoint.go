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

package mobility

import (
	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
)

// ArrivalAction is what a node does when it reaches its waypoint.
type ArrivalAction string

const (
	ArrivalStop    ArrivalAction = "stop"
	ArrivalReverse ArrivalAction = "reverse"
)

func ParseArrivalAction(s string) (ArrivalAction, error) {
	switch ArrivalAction(s) {
	case ArrivalStop, "":
		return ArrivalStop, nil
	case ArrivalReverse:
		return ArrivalReverse, nil
	default:
		return "", errors.Errorf("unknown arrival action: %s", s)
	}
}

// VelocitySetter is a model that accepts a velocity.
type VelocitySetter interface {
	Model
	SetVelocity(now uint64, v Vector)
}

// Waypoint is a running straight-line movement of a node.
type Waypoint struct {
	sched    event.Scheduler
	model    VelocitySetter
	name     string
	start    Vector
	end      Vector
	duration uint64
	action   ArrivalAction
	evt      *event.Event
	legs     int
	onArrive func(w *Waypoint)
}

// MoveTo starts moving model from start to end within duration us. The z component of the velocity is
// always zero. When the destination is reached, the node either stops or heads back to start.
func MoveTo(sched event.Scheduler, model VelocitySetter, start, end Vector, duration uint64, action ArrivalAction,
	name string) (*Waypoint, error) {
	if duration == 0 {
		return nil, errors.Errorf("node %s: waypoint duration must be positive", name)
	}
	if action != ArrivalStop && action != ArrivalReverse {
		return nil, errors.Errorf("node %s: unknown arrival action %q", name, action)
	}
	w := &Waypoint{
		sched:    sched,
		model:    model,
		name:     name,
		start:    start,
		end:      end,
		duration: duration,
		action:   action,
	}
	w.startLeg()
	return w, nil
}

func (w *Waypoint) startLeg() {
	sec := UsToSeconds(w.duration)
	v := Vector{
		X: (w.end.X - w.start.X) / sec,
		Y: (w.end.Y - w.start.Y) / sec,
		Z: 0,
	}
	w.model.SetVelocity(w.sched.Now(), v)
	w.evt = w.sched.Schedule(w.duration, "waypoint-"+w.name, w.arrive)
}

func (w *Waypoint) arrive() {
	w.evt = nil
	w.legs++
	now := w.sched.Now()
	switch w.action {
	case ArrivalReverse:
		logger.Infof("node %s reached destination and reversed", w.name)
		w.start, w.end = w.end, w.start
		w.startLeg()
	default:
		logger.Infof("node %s reached destination and stopped", w.name)
		w.model.SetVelocity(now, Vector{})
	}
	if w.onArrive != nil {
		w.onArrive(w)
	}
}

// OnArrive registers a callback invoked on each arrival.
func (w *Waypoint) OnArrive(f func(w *Waypoint)) {
	w.onArrive = f
}

// Cancel stops the movement at the current position.
func (w *Waypoint) Cancel() {
	if w.evt == nil {
		return
	}
	w.sched.Cancel(w.evt)
	w.evt = nil
	w.model.SetVelocity(w.sched.Now(), Vector{})
}

// IsActive returns true while the node is still moving toward a destination.
func (w *Waypoint) IsActive() bool {
	return w.evt != nil
}

// Legs returns the number of completed legs.
func (w *Waypoint) Legs() int {
	return w.legs
}

func (w *Waypoint) Destination() Vector {
	return w.end
}
