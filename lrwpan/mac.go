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
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

type macStateId int

const (
	macIdle macStateId = iota
	macBackoff
	macCca
	macTxTurnaround
	macTx
	macAckWait
)

type txItem struct {
	req     *DataRequest
	psdu    []byte
	seq     uint8
	ackReq  bool
	nb      int
	be      int
	retries int
}

type macState struct {
	state         macStateId
	queue         []*txItem
	cur           *txItem
	evt           *event.Event
	ccaBusy       bool
	ackTurnaround bool
	dsn           uint8
	lastRxSeq     map[uint64]uint8
}

// QueueLen returns the number of requests waiting, including the one in progress.
func (d *Device) QueueLen() int {
	n := len(d.mac.queue)
	if d.mac.cur != nil {
		n++
	}
	return n
}

// McpsDataRequest queues an MSDU for transmission. The result is reported through the confirm callback.
func (d *Device) McpsDataRequest(req *DataRequest) {
	d.Counters.MacTxRequests++
	if d.failed {
		d.confirmLater(req.Handle, StatusRadioOff, 0)
		return
	}

	var src wpan.Address
	switch req.SrcAddrMode {
	case wpan.AddrModeShort:
		src = wpan.ShortAddress(d.panId, d.shortAddr)
	case wpan.AddrModeExtended:
		src = wpan.ExtendedAddress(d.panId, d.extAddr)
	default:
		d.confirmLater(req.Handle, StatusInvalidParameter, 0)
		return
	}

	broadcast := req.Dst.Mode == wpan.AddrModeShort && req.Dst.Short == BroadcastShortAddr
	item := &txItem{
		req:    req,
		seq:    d.mac.dsn,
		ackReq: req.AckTx && !broadcast,
	}
	psdu, err := wpan.NewDataFrame(&wpan.DataFrameParams{
		Seq:        item.seq,
		Src:        src,
		Dst:        req.Dst,
		AckRequest: item.ackReq,
		Payload:    req.Msdu,
	})
	if err != nil {
		macLog.Debugf("node %d data request rejected: %v", d.id, err)
		d.confirmLater(req.Handle, StatusFrameTooLong, 0)
		return
	}
	if len(d.mac.queue) >= d.maxQueueLen {
		d.confirmLater(req.Handle, StatusTransactionOverflow, 0)
		return
	}
	d.mac.dsn++
	item.psdu = psdu
	d.mac.queue = append(d.mac.queue, item)
	d.trace(&TraceEvent{Kind: TraceEnqueue, Psdu: psdu})
	macLog.Debugf("node %d enqueued frame seq=%d len=%d queue=%d", d.id, item.seq, len(psdu), len(d.mac.queue))

	if d.mac.state == macIdle {
		d.macStartNext()
	}
}

func (d *Device) confirmLater(handle uint8, status Status, retries int) {
	d.sched.Schedule(0, "mac-confirm", func() {
		d.confirm(handle, status, retries)
	})
}

func (d *Device) confirm(handle uint8, status Status, retries int) {
	if d.onConfirm != nil {
		d.onConfirm(&DataConfirm{Handle: handle, Status: status, Retries: retries})
	}
}

func (d *Device) macStartNext() {
	if d.mac.cur != nil || len(d.mac.queue) == 0 || d.failed {
		return
	}
	d.mac.cur = d.mac.queue[0]
	d.mac.queue[0] = nil
	d.mac.queue = d.mac.queue[1:]
	d.mac.cur.nb = 0
	d.mac.cur.be = MacMinBE
	d.macBackoff()
}

func (d *Device) macBackoff() {
	cur := d.mac.cur
	slots := d.rnd.Intn(1 << uint(cur.be))
	d.mac.state = macBackoff
	d.mac.evt = d.sched.Schedule(uint64(slots)*UnitBackoffUs, "csma-backoff", d.macStartCca)
	macLog.Tracef("node %d backoff %d slots (NB=%d BE=%d)", d.id, slots, cur.nb, cur.be)
}

func (d *Device) macStartCca() {
	d.mac.state = macCca
	d.mac.ccaBusy = d.energyDbm() >= d.CcaThresholdDbm
	d.mac.evt = d.sched.Schedule(CcaTimeUs, "csma-cca", d.macCcaDone)
}

func (d *Device) macCcaDone() {
	cur := d.mac.cur
	if d.mac.ccaBusy || d.phy.tx != nil || d.mac.ackTurnaround {
		d.Counters.CcaBusy++
		d.macChannelBusy()
		return
	}
	macLog.Tracef("node %d CCA idle, NB=%d", d.id, cur.nb)
	d.mac.state = macTxTurnaround
	d.mac.evt = d.sched.Schedule(TurnaroundTimeUs, "tx-turnaround", d.macTransmit)
}

func (d *Device) macChannelBusy() {
	cur := d.mac.cur
	cur.nb++
	if cur.be+1 <= MacMaxBE {
		cur.be++
	}
	if cur.nb > MacMaxCsmaBackoffs {
		d.macFinish(StatusChannelAccessFailure)
		return
	}
	d.macBackoff()
}

func (d *Device) macTransmit() {
	if d.phy.tx != nil {
		// an acknowledgment got on the air first
		d.macChannelBusy()
		return
	}
	d.mac.state = macTx
	d.mac.evt = nil
	d.phyTransmit(d.mac.cur.psdu, false)
}

func (d *Device) macTxDone() {
	cur := d.mac.cur
	if cur == nil || d.mac.state != macTx {
		return
	}
	if !cur.ackReq {
		d.macFinish(StatusSuccess)
		return
	}
	d.mac.state = macAckWait
	d.mac.evt = d.sched.Schedule(AckWaitDurationUs, "ack-timeout", d.macAckTimeout)
}

func (d *Device) macAckTimeout() {
	cur := d.mac.cur
	if cur.retries >= MacMaxFrameRetries {
		d.macFinish(StatusNoAck)
		return
	}
	cur.retries++
	d.Counters.MacTxRetries++
	macLog.Debugf("node %d no ack for seq=%d, retry %d", d.id, cur.seq, cur.retries)
	cur.nb = 0
	cur.be = MacMinBE
	d.macBackoff()
}

func (d *Device) macFinish(status Status) {
	cur := d.mac.cur
	d.mac.cur = nil
	d.mac.state = macIdle
	d.mac.evt = nil

	switch status {
	case StatusSuccess:
		d.Counters.MacTxSuccess++
	case StatusNoAck:
		d.Counters.MacTxNoAck++
	case StatusChannelAccessFailure:
		d.Counters.MacTxChannelFailure++
	default:
		d.Counters.MacTxDropOther++
	}
	if status != StatusSuccess {
		d.trace(&TraceEvent{Kind: TraceDrop, Psdu: cur.psdu, Reason: status.String()})
	}
	macLog.Debugf("node %d tx seq=%d done: %s (retries %d)", d.id, cur.seq, status, cur.retries)

	d.confirm(cur.req.Handle, status, cur.retries)
	d.macStartNext()
}

// macAbortAll drops the request in progress and all queued requests.
func (d *Device) macAbortAll(status Status) {
	d.sched.Cancel(d.mac.evt)
	d.mac.evt = nil
	items := d.mac.queue
	if d.mac.cur != nil {
		items = append([]*txItem{d.mac.cur}, items...)
	}
	d.mac.cur = nil
	d.mac.queue = nil
	d.mac.state = macIdle
	for _, it := range items {
		d.Counters.MacTxDropOther++
		d.trace(&TraceEvent{Kind: TraceDrop, Psdu: it.psdu, Reason: status.String()})
		d.confirmLater(it.req.Handle, status, it.retries)
	}
}

func (d *Device) macReceive(tx *transmission, rxPowerDbm DbValue, sinrDb DbValue) {
	if !wpan.CheckFcs(tx.psdu) {
		d.Counters.MacRxFiltered++
		return
	}
	f, err := wpan.Dissect(tx.psdu)
	if err != nil {
		d.Counters.MacRxFiltered++
		macLog.Debugf("node %d dropped undecodable frame: %v", d.id, err)
		return
	}

	if f.FrameControl.FrameType() == wpan.FrameTypeAck {
		cur := d.mac.cur
		if d.mac.state == macAckWait && cur != nil && cur.seq == f.Seq {
			d.Counters.MacAckRx++
			d.sched.Cancel(d.mac.evt)
			d.macFinish(StatusSuccess)
		}
		return
	}
	if f.FrameControl.FrameType() != wpan.FrameTypeData || !d.acceptsDst(f) {
		d.Counters.MacRxFiltered++
		return
	}

	if f.FrameControl.AckRequest() && !f.IsBroadcast() {
		d.macScheduleAck(f.Seq)
	}

	key := srcKey(f)
	if seq, ok := d.mac.lastRxSeq[key]; ok && seq == f.Seq {
		d.Counters.MacRxDuplicate++
		macLog.Debugf("node %d dropped duplicate seq=%d", d.id, f.Seq)
		return
	}
	d.mac.lastRxSeq[key] = f.Seq
	d.Counters.MacRxData++

	if d.onIndication == nil {
		return
	}
	ind := &DataIndication{
		Src: wpan.Address{
			Mode:     f.FrameControl.SourceAddrMode(),
			PanId:    f.SrcPanId,
			Short:    f.SrcAddrShort,
			Extended: f.SrcAddrExtended,
		},
		Dst: wpan.Address{
			Mode:     f.FrameControl.DestAddrMode(),
			PanId:    f.DstPanId,
			Short:    f.DstAddrShort,
			Extended: f.DstAddrExtended,
		},
		Msdu:       append([]byte(nil), f.Payload...),
		Seq:        f.Seq,
		Lqi:        radiomodel.LinkQuality(sinrDb),
		RxPowerDbm: rxPowerDbm,
		SinrDb:     sinrDb,
	}
	d.onIndication(ind)
}

func (d *Device) acceptsDst(f *wpan.MacFrame) bool {
	if f.DstPanId != d.panId && f.DstPanId != wpan.BroadcastPanId {
		return false
	}
	switch f.FrameControl.DestAddrMode() {
	case wpan.AddrModeShort:
		return f.DstAddrShort == d.shortAddr || f.DstAddrShort == BroadcastShortAddr
	case wpan.AddrModeExtended:
		return f.DstAddrExtended == d.extAddr
	default:
		return false
	}
}

func srcKey(f *wpan.MacFrame) uint64 {
	if f.FrameControl.SourceAddrMode() == wpan.AddrModeExtended {
		return f.SrcAddrExtended
	}
	return 1<<63 | uint64(f.SrcPanId)<<16 | uint64(f.SrcAddrShort)
}

func (d *Device) macScheduleAck(seq uint8) {
	d.mac.ackTurnaround = true
	d.sched.Schedule(TurnaroundTimeUs, "ack-tx", func() {
		d.mac.ackTurnaround = false
		if d.failed || d.phy.tx != nil {
			return
		}
		d.Counters.MacAckTx++
		d.phyTransmit(wpan.NewAckFrame(seq, false), true)
	})
}
