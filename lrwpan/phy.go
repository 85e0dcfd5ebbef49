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
	"math"

	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
)

type phyState struct {
	signals    map[*transmission]DbValue // all signals currently on the air at this device
	rxLock     *transmission             // frame being received
	rxPowerDbm DbValue
	rxInterfMw float64 // peak interference during rxLock
	tx         *transmission
	txIsAck    bool
}

func dbmToMw(p DbValue) float64 {
	return math.Pow(10, p/10.0)
}

func mwToDbm(mw float64) DbValue {
	if mw <= 0 {
		return radiomodel.RangeCutoffDbm
	}
	return 10.0 * math.Log10(mw)
}

// energyDbm returns the total received energy on the channel, without noise.
func (d *Device) energyDbm() DbValue {
	return mwToDbm(d.sumSignalsMw(nil))
}

func (d *Device) sumSignalsMw(except *transmission) float64 {
	sum := 0.0
	for tx, p := range d.phy.signals {
		if tx != except {
			sum += dbmToMw(p)
		}
	}
	return sum
}

// canLock returns true if the PHY is in a state in which it could start receiving a frame.
func (d *Device) canLock() bool {
	return d.state == RadioRx && d.phy.tx == nil && d.mac.state != macTxTurnaround && !d.mac.ackTurnaround
}

func (d *Device) phySignalStart(tx *transmission, p DbValue) {
	d.phy.signals[tx] = p
	if d.mac.state == macCca && d.energyDbm() >= d.CcaThresholdDbm {
		d.mac.ccaBusy = true
	}

	switch {
	case d.failed:
		d.Counters.PhyRxDropRadioOff++
	case d.phy.rxLock != nil:
		d.phy.rxInterfMw = math.Max(d.phy.rxInterfMw, d.sumSignalsMw(d.phy.rxLock))
		if p >= d.RxSensitivityDbm {
			d.Counters.PhyRxDropBusy++
		}
	case p < d.RxSensitivityDbm:
		d.Counters.PhyRxDropSensitivity++
	case !d.canLock():
		d.Counters.PhyRxDropBusy++
	default:
		d.phy.rxLock = tx
		d.phy.rxPowerDbm = p
		d.phy.rxInterfMw = d.sumSignalsMw(tx)
		phyLog.Tracef("node %d locked on frame from node %d, %.2f dBm", d.id, tx.src.id, p)
	}
}

func (d *Device) phySignalEnd(tx *transmission) {
	delete(d.phy.signals, tx)
	if d.phy.rxLock != tx {
		return
	}
	d.phy.rxLock = nil

	noiseMw := dbmToMw(d.ch.NoiseFloorDbm) + d.phy.rxInterfMw
	sinrDb := d.phy.rxPowerDbm - mwToDbm(noiseMw)
	psr, _ := radiomodel.PacketSuccessRate(sinrDb, len(tx.psdu))
	if psr < 1.0 && d.ch.draw() > psr {
		d.Counters.PhyRxDropErrors++
		phyLog.Debugf("node %d rx error from node %d, sinr %.2f dB, psr %.4f", d.id, tx.src.id, sinrDb, psr)
		d.trace(&TraceEvent{
			Kind:       TraceDrop,
			Peer:       tx.src.id,
			Psdu:       tx.psdu,
			TxStartUs:  tx.start,
			DurationUs: tx.end - tx.start,
			RxPowerDbm: d.phy.rxPowerDbm,
			SinrDb:     sinrDb,
			Reason:     "rx-error",
		})
		return
	}

	d.Counters.PhyRxFrames++
	d.trace(&TraceEvent{
		Kind:       TraceRx,
		Peer:       tx.src.id,
		Psdu:       tx.psdu,
		TxStartUs:  tx.start,
		DurationUs: tx.end - tx.start,
		RxPowerDbm: d.phy.rxPowerDbm,
		SinrDb:     sinrDb,
	})
	d.macReceive(tx, d.phy.rxPowerDbm, sinrDb)
}

// phyTransmit starts sending psdu. A frame being received is lost.
func (d *Device) phyTransmit(psdu []byte, isAck bool) {
	if lock := d.phy.rxLock; lock != nil {
		d.phy.rxLock = nil
		d.trace(&TraceEvent{
			Kind:      TraceDrop,
			Peer:      lock.src.id,
			Psdu:      lock.psdu,
			TxStartUs: lock.start,
			Reason:    "rx-abort",
		})
	}
	d.setState(RadioTx)
	d.phy.txIsAck = isAck
	d.Counters.PhyTxFrames++
	d.Counters.PhyTxBytes += uint64(len(psdu))

	tx := d.ch.startTx(d, psdu)
	d.phy.tx = tx
	d.trace(&TraceEvent{
		Kind:       TraceTxStart,
		Psdu:       psdu,
		TxStartUs:  tx.start,
		DurationUs: tx.end - tx.start,
	})
}

func (d *Device) phyTxEnd(tx *transmission) {
	d.phy.tx = nil
	isAck := d.phy.txIsAck
	d.phy.txIsAck = false
	if d.failed {
		d.setState(RadioDisabled)
		return
	}
	d.setState(RadioRx)
	if !isAck {
		d.macTxDone()
	}
}
