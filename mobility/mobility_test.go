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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/progctx"
	. "github.com/openthread/lowpan-ns/types"
)

func assertVectorInDelta(t *testing.T, expected, actual Vector) {
	assert.InDelta(t, expected.X, actual.X, 1e-9)
	assert.InDelta(t, expected.Y, actual.Y, 1e-9)
	assert.InDelta(t, expected.Z, actual.Z, 1e-9)
}

func TestConstantVelocity(t *testing.T) {
	m := NewConstantVelocity(Vector{X: 1})
	assert.Equal(t, Vector{X: 1}, m.Position(5*UsPerSec))

	m.SetVelocity(UsPerSec, Vector{X: 2, Y: -1})
	assertVectorInDelta(t, Vector{X: 1}, m.Position(UsPerSec))
	assertVectorInDelta(t, Vector{X: 5, Y: -2}, m.Position(3*UsPerSec))

	m.SetVelocity(3*UsPerSec, Vector{})
	assertVectorInDelta(t, Vector{X: 5, Y: -2}, m.Position(10*UsPerSec))

	m.SetPosition(10*UsPerSec, Vector{Z: 3})
	assert.Equal(t, Vector{Z: 3}, m.Position(20*UsPerSec))
}

func TestDistance(t *testing.T) {
	a := NewConstantPosition(Vector{})
	b := NewConstantPosition(Vector{X: 3, Y: 4})
	assert.Equal(t, 5.0, Distance(a, b, 0))
	assert.Equal(t, Vector{}, b.Velocity(0))
}

func TestMoveToStop(t *testing.T) {
	d := dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig())
	m := NewConstantVelocity(Vector{X: 5})
	w, err := MoveTo(d, m, Vector{X: 5}, Vector{X: 100, Z: 7}, SecondsToUs(58), ArrivalStop, "Jarbas")
	require.NoError(t, err)
	assert.True(t, w.IsActive())
	assertVectorInDelta(t, Vector{X: 95.0 / 58.0}, m.Velocity(0))

	d.RunUntil(29 * UsPerSec)
	assertVectorInDelta(t, Vector{X: 52.5}, m.Position(d.Now()))

	d.RunUntil(60 * UsPerSec)
	assert.False(t, w.IsActive())
	assert.Equal(t, 1, w.Legs())
	assertVectorInDelta(t, Vector{X: 100}, m.Position(d.Now()))
	assert.True(t, m.Velocity(d.Now()).IsZero())
}

func TestMoveToReverse(t *testing.T) {
	d := dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig())
	m := NewConstantVelocity(Vector{})
	arrivals := 0
	w, err := MoveTo(d, m, Vector{}, Vector{Y: 10}, 10*UsPerSec, ArrivalReverse, "n")
	require.NoError(t, err)
	w.OnArrive(func(*Waypoint) { arrivals++ })

	d.RunUntil(15 * UsPerSec)
	assert.Equal(t, 1, arrivals)
	assertVectorInDelta(t, Vector{Y: 5}, m.Position(d.Now()))
	assert.Equal(t, Vector{}, w.Destination())

	w.Cancel()
	assert.False(t, w.IsActive())
	d.RunUntil(100 * UsPerSec)
	assert.Equal(t, 1, arrivals)
	assertVectorInDelta(t, Vector{Y: 5}, m.Position(d.Now()))
}

func TestMoveToErrors(t *testing.T) {
	d := dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig())
	m := NewConstantVelocity(Vector{})
	_, err := MoveTo(d, m, Vector{}, Vector{X: 1}, 0, ArrivalStop, "n")
	assert.Error(t, err)
	_, err = MoveTo(d, m, Vector{}, Vector{X: 1}, 1, "jump", "n")
	assert.Error(t, err)

	a, err := ParseArrivalAction("")
	assert.NoError(t, err)
	assert.Equal(t, ArrivalStop, a)
	_, err = ParseArrivalAction("x")
	assert.Error(t, err)
}
