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

package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelString(t *testing.T) {
	lv, err := ParseLevelString("debug")
	assert.Nil(t, err)
	assert.Equal(t, DebugLevel, lv)

	lv, err = ParseLevelString("W")
	assert.Nil(t, err)
	assert.Equal(t, WarnLevel, lv)

	lv, err = ParseLevelString("none")
	assert.Nil(t, err)
	assert.Equal(t, OffLevel, lv)

	_, err = ParseLevelString("loud")
	assert.NotNil(t, err)

	for _, l := range []Level{TraceLevel, DebugLevel, InfoLevel, NoteLevel, WarnLevel, OffLevel} {
		parsed, err := ParseLevelString(GetLevelString(l))
		assert.Nil(t, err)
		assert.Equal(t, l, parsed)
	}
}

func TestComponentLevel(t *testing.T) {
	oldLevel := GetLevel()
	defer SetLevel(oldLevel)
	SetLevel(WarnLevel)

	c := GetComponent("TestMac")
	assert.Same(t, c, GetComponent("TestMac"))
	assert.False(t, c.IsEnabled(DebugLevel))
	assert.True(t, c.IsEnabled(WarnLevel))

	EnableComponent("TestMac", DebugLevel)
	assert.True(t, c.IsEnabled(DebugLevel))
	assert.False(t, c.IsEnabled(TraceLevel))
	assert.Contains(t, ComponentNames(), "TestMac")

	// a higher global level wins over a lower component level.
	SetLevel(TraceLevel)
	assert.True(t, c.IsEnabled(TraceLevel))
}

func TestSetTimeSource(t *testing.T) {
	SetTimeSource(func() uint64 { return 2500000 })
	assert.Equal(t, "[   2.500000] ", timePrefix())
	SetTimeSource(nil)
	assert.Equal(t, "", timePrefix())
}

func TestAssertPanics(t *testing.T) {
	assert.Panics(t, func() {
		AssertTrue(false)
	})
	assert.NotPanics(t, func() {
		AssertEqual(1, 1)
	})
}

func TestLogAfterRecoveredPanic(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		Panicf("boom")
	})
	assert.Panics(t, func() {
		AssertTrue(false, "must fail")
	})

	done := make(chan struct{})
	go func() {
		Infof("still logging")
		Println("still printing")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked after a recovered panic")
	}
}
