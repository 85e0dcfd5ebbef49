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
	"fmt"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/prng"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

type Config struct {
	TxPowerDbm       DbValue
	RxSensitivityDbm DbValue
	CcaThresholdDbm  DbValue
	MaxQueueLen      int
}

func DefaultConfig() *Config {
	return &Config{
		TxPowerDbm:       DefaultTxPowerDbm,
		RxSensitivityDbm: DefaultRxSensitivityDbm,
		CcaThresholdDbm:  DefaultRxSensitivityDbm + 10.0,
		MaxQueueLen:      64,
	}
}

// Device is a single 802.15.4 radio with its MAC. All methods must be called from the scheduler's goroutine.
type Device struct {
	TxPowerDbm       DbValue
	RxSensitivityDbm DbValue
	CcaThresholdDbm  DbValue
	Counters         Counters

	id          NodeId
	ch          *Channel
	sched       event.Scheduler
	rnd         *prng.Stream
	mob         mobility.Model
	maxQueueLen int
	extAddr     uint64
	panId       uint16
	shortAddr   uint16
	state       RadioStates
	failed      bool

	phy phyState
	mac macState

	onIndication   func(ind *DataIndication)
	onConfirm      func(conf *DataConfirm)
	traceSinks     []TraceSink
	stateListeners []StateListener
}

// NewDevice creates a device for node id, attached to ch. Its extended address is the node id.
func NewDevice(id NodeId, ch *Channel, mob mobility.Model, cfg *Config, rnd *prng.Stream) *Device {
	d := &Device{
		TxPowerDbm:       cfg.TxPowerDbm,
		RxSensitivityDbm: cfg.RxSensitivityDbm,
		CcaThresholdDbm:  cfg.CcaThresholdDbm,
		id:               id,
		ch:               ch,
		sched:            ch.sched,
		rnd:              rnd,
		mob:              mob,
		maxQueueLen:      cfg.MaxQueueLen,
		extAddr:          uint64(id),
		panId:            wpan.BroadcastPanId,
		shortAddr:        0xfffe,
		state:            RadioRx,
	}
	d.phy.signals = map[*transmission]DbValue{}
	d.mac.lastRxSeq = map[uint64]uint8{}
	ch.attach(d)
	return d
}

func (d *Device) String() string {
	return fmt.Sprintf("Device{node=%d,pan=0x%04x,short=0x%04x}", d.id, d.panId, d.shortAddr)
}

func (d *Device) NodeId() NodeId {
	return d.id
}

func (d *Device) Channel() *Channel {
	return d.ch
}

func (d *Device) ExtAddr() uint64 {
	return d.extAddr
}

func (d *Device) SetExtAddr(ext uint64) {
	d.extAddr = ext
}

func (d *Device) PanId() uint16 {
	return d.panId
}

func (d *Device) SetPanId(panId uint16) {
	d.panId = panId
}

func (d *Device) ShortAddr() uint16 {
	return d.shortAddr
}

func (d *Device) SetShortAddr(short uint16) {
	d.shortAddr = short
}

// Position returns the current position of the device's node.
func (d *Device) Position() Vector {
	if d.mob == nil {
		return Vector{}
	}
	return d.mob.Position(d.sched.Now())
}

func (d *Device) Mobility() mobility.Model {
	return d.mob
}

func (d *Device) State() RadioStates {
	return d.state
}

// SetDataIndicationCallback sets the upcall for received data frames.
func (d *Device) SetDataIndicationCallback(f func(ind *DataIndication)) {
	d.onIndication = f
}

// SetDataConfirmCallback sets the upcall for completed data requests.
func (d *Device) SetDataConfirmCallback(f func(conf *DataConfirm)) {
	d.onConfirm = f
}

func (d *Device) AddTraceSink(sink TraceSink) {
	d.traceSinks = append(d.traceSinks, sink)
}

func (d *Device) AddStateListener(l StateListener) {
	d.stateListeners = append(d.stateListeners, l)
}

func (d *Device) setState(state RadioStates) {
	if d.state == state {
		return
	}
	phyLog.Tracef("node %d radio %s -> %s", d.id, d.state, state)
	d.state = state
	for _, l := range d.stateListeners {
		l(d, state, d.sched.Now())
	}
}

func (d *Device) trace(ev *TraceEvent) {
	ev.Node = d.id
	ev.Timestamp = d.sched.Now()
	ev.Channel = d.ch.Id
	for _, s := range d.traceSinks {
		s.OnMacTrace(d, ev)
	}
}

func (d *Device) IsFailed() bool {
	return d.failed
}

// Fail switches the radio off. Pending and queued requests are confirmed with StatusRadioOff.
func (d *Device) Fail() {
	if d.failed {
		return
	}
	logger.Debugf("node %d radio failed", d.id)
	d.failed = true
	d.phy.rxLock = nil
	d.macAbortAll(StatusRadioOff)
	d.setState(RadioDisabled)
}

// Recover switches the radio back on.
func (d *Device) Recover() {
	if !d.failed {
		return
	}
	logger.Debugf("node %d radio recovered", d.id)
	d.failed = false
	if d.phy.tx == nil {
		d.setState(RadioRx)
	}
}

// CreateAssociatedPan performs a manual association: all devices get panId and short addresses
// 0x0001, 0x0002, ... in order.
func CreateAssociatedPan(devices []*Device, panId uint16) {
	for i, d := range devices {
		d.SetPanId(panId)
		d.SetShortAddr(uint16(i + 1))
	}
}
