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
	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
)

// transmission is a PPDU on the air.
type transmission struct {
	src        *Device
	psdu       []byte
	txPowerDbm DbValue
	start      uint64
	end        uint64
	rxPower    map[*Device]DbValue
}

// ChannelStats counts channel-wide activity.
type ChannelStats struct {
	Transmissions uint64
	TxBytes       uint64
	BusyTimeUs    uint64
	Collisions    uint64
}

// Channel is the shared medium of all attached devices. Receive power per link is sampled from the loss
// model once per frame.
type Channel struct {
	Id            ChannelId
	NoiseFloorDbm DbValue

	sched     event.Scheduler
	loss      radiomodel.LossModel
	rnd       *prng.Stream
	devices   []*Device
	active    map[*transmission]struct{}
	busySince uint64
	stats     ChannelStats
}

func NewChannel(sched event.Scheduler, id ChannelId, loss radiomodel.LossModel, rnd *prng.Stream) *Channel {
	return &Channel{
		Id:            id,
		NoiseFloorDbm: DefaultNoiseFloorDbm,
		sched:         sched,
		loss:          loss,
		rnd:           rnd,
		active:        map[*transmission]struct{}{},
	}
}

func (ch *Channel) attach(dev *Device) {
	for _, d := range ch.devices {
		logger.AssertFalse(d == dev || d.id == dev.id, "device %d already attached", dev.id)
	}
	ch.devices = append(ch.devices, dev)
}

// Devices returns the attached devices in attach order.
func (ch *Channel) Devices() []*Device {
	return ch.devices
}

func (ch *Channel) LossModel() radiomodel.LossModel {
	return ch.loss
}

func (ch *Channel) Stats() ChannelStats {
	s := ch.stats
	if len(ch.active) > 0 {
		s.BusyTimeUs += ch.sched.Now() - ch.busySince
	}
	return s
}

// Utilization returns the fraction of time [0,1] the channel carried at least one frame until now.
func (ch *Channel) Utilization() float64 {
	now := ch.sched.Now()
	if now == 0 {
		return 0
	}
	return float64(ch.Stats().BusyTimeUs) / float64(now)
}

// startTx puts psdu on the air for the duration of the PPDU.
func (ch *Channel) startTx(src *Device, psdu []byte) *transmission {
	now := ch.sched.Now()
	dur := FrameDurationUs(len(psdu))
	tx := &transmission{
		src:        src,
		psdu:       psdu,
		txPowerDbm: src.TxPowerDbm,
		start:      now,
		end:        now + dur,
		rxPower:    make(map[*Device]DbValue, len(ch.devices)),
	}

	if len(ch.active) == 0 {
		ch.busySince = now
	} else {
		ch.stats.Collisions++
	}
	ch.active[tx] = struct{}{}
	ch.stats.Transmissions++
	ch.stats.TxBytes += uint64(len(psdu))

	srcPos := src.Position()
	for _, dst := range ch.devices {
		if dst == src {
			continue
		}
		p := ch.loss.CalcRxPower(tx.txPowerDbm, srcPos, dst.Position())
		tx.rxPower[dst] = p
		dst.phySignalStart(tx, p)
	}

	ch.sched.Schedule(dur, "channel-tx-end", func() {
		ch.endTx(tx)
	})
	return tx
}

func (ch *Channel) endTx(tx *transmission) {
	delete(ch.active, tx)
	if len(ch.active) == 0 {
		ch.stats.BusyTimeUs += ch.sched.Now() - ch.busySince
	}
	for _, dst := range ch.devices {
		if dst == tx.src {
			continue
		}
		dst.phySignalEnd(tx)
	}
	tx.src.phyTxEnd(tx)
}

// RxPower samples the receive power from a to b using the channel's loss model.
func (ch *Channel) RxPower(a, b *Device) DbValue {
	return ch.loss.CalcRxPower(a.TxPowerDbm, a.Position(), b.Position())
}

func (ch *Channel) draw() float64 {
	return ch.rnd.Float64()
}
