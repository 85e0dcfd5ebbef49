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

package lrwpan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

type testNet struct {
	disp    *dispatcher.Dispatcher
	ch      *Channel
	devs    []*Device
	ind     map[NodeId][]*DataIndication
	confirm map[NodeId][]*DataConfirm
}

func newTestNet(t *testing.T, n int, loss radiomodel.LossModel) *testNet {
	prng.Init(1, 0)
	tn := &testNet{
		disp:    dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig()),
		ind:     map[NodeId][]*DataIndication{},
		confirm: map[NodeId][]*DataConfirm{},
	}
	tn.ch = NewChannel(tn.disp, DefaultChannel, loss, prng.NewStream("channel"))
	for i := 0; i < n; i++ {
		id := NodeId(i + 1)
		mob := mobility.NewConstantPosition(Vector{X: float64(i) * 10})
		d := NewDevice(id, tn.ch, mob, DefaultConfig(), prng.NewStream("mac"))
		d.SetDataIndicationCallback(func(ind *DataIndication) {
			tn.ind[id] = append(tn.ind[id], ind)
		})
		d.SetDataConfirmCallback(func(conf *DataConfirm) {
			tn.confirm[id] = append(tn.confirm[id], conf)
		})
		tn.devs = append(tn.devs, d)
	}
	CreateAssociatedPan(tn.devs, 0)
	return tn
}

func (tn *testNet) send(from int, dst wpan.Address, payload []byte, handle uint8) {
	tn.devs[from].McpsDataRequest(&DataRequest{
		SrcAddrMode: wpan.AddrModeShort,
		Dst:         dst,
		Msdu:        payload,
		Handle:      handle,
		AckTx:       true,
	})
}

func TestCreateAssociatedPan(t *testing.T) {
	tn := newTestNet(t, 3, &radiomodel.FixedRss{RssDbm: -60})
	for i, d := range tn.devs {
		assert.Equal(t, uint16(0), d.PanId())
		assert.Equal(t, uint16(i+1), d.ShortAddr())
		assert.Equal(t, uint64(i+1), d.ExtAddr())
	}
	assert.Len(t, tn.ch.Devices(), 3)
}

func TestUnicastWithAck(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	payload := []byte("hello lowpan")
	tn.send(0, wpan.ShortAddress(0, 2), payload, 7)
	tn.disp.RunUntil(100 * UsPerMs)

	if assert.Len(t, tn.ind[2], 1) {
		ind := tn.ind[2][0]
		assert.Equal(t, payload, ind.Msdu)
		assert.Equal(t, uint16(1), ind.Src.Short)
		assert.Equal(t, uint16(2), ind.Dst.Short)
		assert.Equal(t, -60.0, ind.RxPowerDbm)
		assert.Equal(t, uint8(255), ind.Lqi)
	}
	if assert.Len(t, tn.confirm[1], 1) {
		assert.Equal(t, StatusSuccess, tn.confirm[1][0].Status)
		assert.Equal(t, uint8(7), tn.confirm[1][0].Handle)
		assert.Equal(t, 0, tn.confirm[1][0].Retries)
	}
	assert.Equal(t, uint64(1), tn.devs[0].Counters.MacAckRx)
	assert.Equal(t, uint64(1), tn.devs[1].Counters.MacAckTx)
	assert.Equal(t, uint64(2), tn.ch.Stats().Transmissions)
	assert.Equal(t, 0, tn.devs[0].QueueLen())
}

func TestBroadcastNoAck(t *testing.T) {
	tn := newTestNet(t, 3, &radiomodel.FixedRss{RssDbm: -60})
	tn.send(0, wpan.ShortAddress(0, BroadcastShortAddr), []byte{1, 2, 3}, 1)
	tn.disp.RunUntil(100 * UsPerMs)

	assert.Len(t, tn.ind[2], 1)
	assert.Len(t, tn.ind[3], 1)
	assert.Len(t, tn.ind[1], 0)
	assert.Equal(t, StatusSuccess, tn.confirm[1][0].Status)
	assert.Equal(t, uint64(1), tn.ch.Stats().Transmissions)
}

func TestAddressFilter(t *testing.T) {
	tn := newTestNet(t, 3, &radiomodel.FixedRss{RssDbm: -60})
	tn.send(0, wpan.ShortAddress(0, 3), []byte{1}, 1)
	tn.send(0, wpan.ShortAddress(5, 2), []byte{2}, 2)
	tn.disp.RunUntil(100 * UsPerMs)

	assert.Len(t, tn.ind[2], 0)
	assert.Len(t, tn.ind[3], 1)
	// the frame for PAN 5 is sent once and retried MacMaxFrameRetries times
	assert.Equal(t, uint64(1+MacMaxFrameRetries+1), tn.devs[1].Counters.MacRxFiltered)
	assert.Equal(t, uint64(MacMaxFrameRetries+1), tn.devs[2].Counters.MacRxFiltered)
	if assert.Len(t, tn.confirm[1], 2) {
		assert.Equal(t, StatusSuccess, tn.confirm[1][0].Status)
		assert.Equal(t, StatusNoAck, tn.confirm[1][1].Status)
	}
}

func TestNoAckWhenPeerFailed(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	tn.devs[1].Fail()
	assert.Equal(t, RadioDisabled, tn.devs[1].State())

	tn.send(0, wpan.ShortAddress(0, 2), []byte{1, 2}, 3)
	tn.disp.RunUntil(100 * UsPerMs)

	if assert.Len(t, tn.confirm[1], 1) {
		assert.Equal(t, StatusNoAck, tn.confirm[1][0].Status)
		assert.Equal(t, MacMaxFrameRetries, tn.confirm[1][0].Retries)
	}
	assert.Equal(t, uint64(MacMaxFrameRetries), tn.devs[0].Counters.MacTxRetries)
	assert.Equal(t, uint64(MacMaxFrameRetries+1), tn.devs[0].Counters.PhyTxFrames)
	assert.Equal(t, uint64(MacMaxFrameRetries+1), tn.devs[1].Counters.PhyRxDropRadioOff)
	assert.Len(t, tn.ind[2], 0)

	tn.devs[1].Recover()
	assert.Equal(t, RadioRx, tn.devs[1].State())
	tn.send(0, wpan.ShortAddress(0, 2), []byte{1, 2}, 4)
	tn.disp.RunUntil(200 * UsPerMs)
	assert.Len(t, tn.ind[2], 1)
	assert.Equal(t, StatusSuccess, tn.confirm[1][1].Status)
}

func TestSenderFailedConfirmsRadioOff(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	tn.send(0, wpan.ShortAddress(0, 2), []byte{1}, 1)
	tn.send(0, wpan.ShortAddress(0, 2), []byte{2}, 2)
	assert.Equal(t, 2, tn.devs[0].QueueLen())
	tn.devs[0].Fail()
	tn.send(0, wpan.ShortAddress(0, 2), []byte{3}, 3)
	tn.disp.RunUntil(100 * UsPerMs)

	if assert.Len(t, tn.confirm[1], 3) {
		for _, c := range tn.confirm[1] {
			assert.Equal(t, StatusRadioOff, c.Status)
		}
	}
	assert.Len(t, tn.ind[2], 0)
}

func TestBelowSensitivity(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -120})
	tn.send(0, wpan.ShortAddress(0, 2), []byte{1}, 1)
	tn.disp.RunUntil(100 * UsPerMs)

	assert.Len(t, tn.ind[2], 0)
	assert.Equal(t, StatusNoAck, tn.confirm[1][0].Status)
	assert.Equal(t, uint64(MacMaxFrameRetries+1), tn.devs[1].Counters.PhyRxDropSensitivity)
}

func TestChannelAccessFailure(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	// the idle channel reads as RangeCutoffDbm, which is above this threshold
	tn.devs[0].CcaThresholdDbm = 2 * radiomodel.RangeCutoffDbm
	tn.send(0, wpan.ShortAddress(0, 2), []byte{1}, 1)
	tn.disp.RunUntil(100 * UsPerMs)

	assert.Equal(t, StatusChannelAccessFailure, tn.confirm[1][0].Status)
	assert.Equal(t, uint64(MacMaxCsmaBackoffs+1), tn.devs[0].Counters.CcaBusy)
	assert.Equal(t, uint64(0), tn.devs[0].Counters.PhyTxFrames)
}

func TestRequestErrors(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	tn.send(0, wpan.ShortAddress(0, 2), make([]byte, 200), 1)
	tn.devs[0].McpsDataRequest(&DataRequest{Dst: wpan.ShortAddress(0, 2), Handle: 2})
	tn.disp.RunUntil(UsPerMs)

	if assert.Len(t, tn.confirm[1], 2) {
		assert.Equal(t, StatusFrameTooLong, tn.confirm[1][0].Status)
		assert.Equal(t, StatusInvalidParameter, tn.confirm[1][1].Status)
	}
}

func TestQueueOverflow(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	tn.devs[0].maxQueueLen = 1
	for h := uint8(1); h <= 3; h++ {
		tn.send(0, wpan.ShortAddress(0, 2), []byte{h}, h)
	}
	tn.disp.RunUntil(100 * UsPerMs)

	statuses := map[uint8]Status{}
	for _, c := range tn.confirm[1] {
		statuses[c.Handle] = c.Status
	}
	assert.Equal(t, StatusSuccess, statuses[1])
	assert.Equal(t, StatusSuccess, statuses[2])
	assert.Equal(t, StatusTransactionOverflow, statuses[3])
	assert.Len(t, tn.ind[2], 2)
}

func TestTraceAndStateListeners(t *testing.T) {
	tn := newTestNet(t, 2, &radiomodel.FixedRss{RssDbm: -60})
	var kinds []TraceKind
	tn.devs[0].AddTraceSink(TraceSinkFunc(func(dev *Device, ev *TraceEvent) {
		assert.Equal(t, NodeId(1), ev.Node)
		kinds = append(kinds, ev.Kind)
	}))
	var states []RadioStates
	tn.devs[0].AddStateListener(func(dev *Device, state RadioStates, ts uint64) {
		states = append(states, state)
	})

	tn.send(0, wpan.ShortAddress(0, 2), []byte{1}, 1)
	tn.disp.RunUntil(100 * UsPerMs)

	// enqueue, data tx, ack rx
	assert.Equal(t, []TraceKind{TraceEnqueue, TraceTxStart, TraceRx}, kinds)
	assert.Equal(t, []RadioStates{RadioTx, RadioRx}, states)
}
