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
	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/prng"
)

type FailTime struct {
	FailDuration uint64 // unit: us
	FailInterval uint64 // unit: us
}

var (
	NonFailTime = FailTime{0, 0}
)

func (ft FailTime) CanFail() bool {
	return ft.FailDuration > 0
}

// Failable is a node whose radio can be taken down and brought back.
type Failable interface {
	IsFailed() bool
	Fail()
	Recover()
}

// FailureCtrl fails its owner for FailDuration once per FailInterval, at a random offset within the interval.
type FailureCtrl struct {
	owner    Failable
	sched    event.Scheduler
	rnd      *prng.Stream
	failTime FailTime
	evt      *event.Event
	remainTm uint64 // unit: us; time that remains in this fail cycle after failure has ended.
}

func NewFailureCtrl(owner Failable, sched event.Scheduler, rnd *prng.Stream) *FailureCtrl {
	return &FailureCtrl{
		owner:    owner,
		sched:    sched,
		rnd:      rnd,
		failTime: NonFailTime,
	}
}

func (fc *FailureCtrl) GetFailTime() FailTime {
	return fc.failTime
}

func (fc *FailureCtrl) SetFailTime(failTime FailTime) error {
	if failTime.CanFail() && failTime.FailInterval <= failTime.FailDuration {
		return errors.Errorf("fail interval (%d us) must exceed fail duration (%d us)",
			failTime.FailInterval, failTime.FailDuration)
	}
	fc.sched.Cancel(fc.evt)
	fc.evt = nil
	fc.failTime = failTime
	fc.remainTm = 0

	if !failTime.CanFail() {
		if fc.owner.IsFailed() {
			fc.owner.Recover()
		}
		return nil
	}
	if fc.owner.IsFailed() {
		fc.evt = fc.sched.Schedule(failTime.FailDuration, "recover", fc.onRecover)
	} else {
		fc.scheduleFail()
	}
	return nil
}

func (fc *FailureCtrl) scheduleFail() {
	failStartTimeMax := fc.failTime.FailInterval - fc.failTime.FailDuration
	failTsRel := uint64(0)
	if failStartTimeMax > 1 {
		failTsRel = uint64(fc.rnd.Intn(int(failStartTimeMax)))
	}
	fc.evt = fc.sched.Schedule(fc.remainTm+failTsRel, "fail", fc.onFail)
	fc.remainTm = failStartTimeMax - failTsRel
	logger.AssertTrue(fc.remainTm < fc.failTime.FailInterval)
}

func (fc *FailureCtrl) onFail() {
	if !fc.owner.IsFailed() {
		fc.owner.Fail()
	}
	fc.evt = fc.sched.Schedule(fc.failTime.FailDuration, "recover", fc.onRecover)
}

func (fc *FailureCtrl) onRecover() {
	if fc.owner.IsFailed() {
		fc.owner.Recover()
	}
	fc.scheduleFail()
}
