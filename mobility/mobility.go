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

// Package mobility provides node position models and the waypoint motion controller.
package mobility

import (
	. "github.com/openthread/lowpan-ns/types"
)

// Model gives the position of a node as a function of simulated time (us).
type Model interface {
	Position(now uint64) Vector
	Velocity(now uint64) Vector
	SetPosition(now uint64, pos Vector)
}

// Distance returns the distance in meters between two models at time now.
func Distance(a, b Model, now uint64) float64 {
	return a.Position(now).DistanceTo(b.Position(now))
}

// ConstantPosition is a model for nodes that never move on their own.
type ConstantPosition struct {
	pos Vector
}

func NewConstantPosition(pos Vector) *ConstantPosition {
	return &ConstantPosition{pos: pos}
}

func (m *ConstantPosition) Position(now uint64) Vector {
	return m.pos
}

func (m *ConstantPosition) Velocity(now uint64) Vector {
	return Vector{}
}

func (m *ConstantPosition) SetPosition(now uint64, pos Vector) {
	m.pos = pos
}

// ConstantVelocity moves a node in a straight line. The position is integrated from the base position
// since the last position or velocity change.
type ConstantVelocity struct {
	base     Vector
	baseTime uint64
	velocity Vector
}

func NewConstantVelocity(pos Vector) *ConstantVelocity {
	return &ConstantVelocity{base: pos}
}

func (m *ConstantVelocity) Position(now uint64) Vector {
	if now <= m.baseTime || m.velocity.IsZero() {
		return m.base
	}
	return m.base.Add(m.velocity.Scale(UsToSeconds(now - m.baseTime)))
}

func (m *ConstantVelocity) Velocity(now uint64) Vector {
	return m.velocity
}

func (m *ConstantVelocity) SetPosition(now uint64, pos Vector) {
	m.base = pos
	m.baseTime = now
}

// SetVelocity sets the velocity (m/s) from time now on.
func (m *ConstantVelocity) SetVelocity(now uint64, v Vector) {
	m.base = m.Position(now)
	m.baseTime = now
	m.velocity = v
}
