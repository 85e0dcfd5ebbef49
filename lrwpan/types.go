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

// Package lrwpan simulates IEEE 802.15.4 O-QPSK 2.4 GHz devices (PHY and unslotted CSMA-CA MAC) on a shared
// radio channel.
package lrwpan

import (
	"fmt"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

var (
	macLog = logger.GetComponent("LrWpanMac")
	phyLog = logger.GetComponent("LrWpanPhy")
)

// Status is the result of a data request.
type Status int

const (
	StatusSuccess Status = iota
	StatusNoAck
	StatusChannelAccessFailure
	StatusFrameTooLong
	StatusTransactionOverflow
	StatusRadioOff
	StatusInvalidParameter
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNoAck:
		return "NO_ACK"
	case StatusChannelAccessFailure:
		return "CHANNEL_ACCESS_FAILURE"
	case StatusFrameTooLong:
		return "FRAME_TOO_LONG"
	case StatusTransactionOverflow:
		return "TRANSACTION_OVERFLOW"
	case StatusRadioOff:
		return "RADIO_OFF"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// DataRequest is an MCPS-DATA.request.
type DataRequest struct {
	SrcAddrMode uint16
	Dst         wpan.Address
	Msdu        []byte
	Handle      uint8
	AckTx       bool
}

// DataConfirm is an MCPS-DATA.confirm.
type DataConfirm struct {
	Handle  uint8
	Status  Status
	Retries int
}

// DataIndication is an MCPS-DATA.indication.
type DataIndication struct {
	Src        wpan.Address
	Dst        wpan.Address
	Msdu       []byte
	Seq        uint8
	Lqi        uint8
	RxPowerDbm DbValue
	SinrDb     DbValue
}

// TraceKind identifies a MAC/PHY trace point.
type TraceKind byte

const (
	TraceEnqueue TraceKind = '+'
	TraceTxStart TraceKind = '-'
	TraceRx      TraceKind = 'r'
	TraceDrop    TraceKind = 'd'
)

// TraceEvent is passed to trace sinks.
type TraceEvent struct {
	Kind       TraceKind
	Timestamp  uint64
	Node       NodeId
	Peer       NodeId
	Channel    ChannelId
	Psdu       []byte
	TxStartUs  uint64
	DurationUs uint64
	RxPowerDbm DbValue
	SinrDb     DbValue
	Reason     string
}

func (ev *TraceEvent) String() string {
	s := fmt.Sprintf("%c %.6f node=%d", ev.Kind, UsToSeconds(ev.Timestamp), ev.Node)
	if f, err := wpan.Dissect(ev.Psdu); err == nil {
		s += " " + f.String()
	} else {
		s += fmt.Sprintf(" len=%d", len(ev.Psdu))
	}
	if ev.Reason != "" {
		s += " " + ev.Reason
	}
	return s
}

// TraceSink receives the trace events of a device.
type TraceSink interface {
	OnMacTrace(dev *Device, ev *TraceEvent)
}

// TraceSinkFunc adapts a function to TraceSink.
type TraceSinkFunc func(dev *Device, ev *TraceEvent)

func (f TraceSinkFunc) OnMacTrace(dev *Device, ev *TraceEvent) {
	f(dev, ev)
}

// StateListener is notified of every radio state change.
type StateListener func(dev *Device, state RadioStates, ts uint64)

// Counters of a single device.
type Counters struct {
	MacTxRequests        uint64
	MacTxSuccess         uint64
	MacTxNoAck           uint64
	MacTxChannelFailure  uint64
	MacTxDropOther       uint64
	MacTxRetries         uint64
	MacRxData            uint64
	MacRxDuplicate       uint64
	MacRxFiltered        uint64
	MacAckTx             uint64
	MacAckRx             uint64
	CcaBusy              uint64
	PhyTxFrames          uint64
	PhyTxBytes           uint64
	PhyRxFrames          uint64
	PhyRxDropErrors      uint64
	PhyRxDropBusy        uint64
	PhyRxDropSensitivity uint64
	PhyRxDropRadioOff    uint64
}
