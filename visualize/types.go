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

package visualize

import (
	"github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

type Visualizer interface {
	Init()
	Run()
	Stop()

	AddNode(nodeid types.NodeId, cfg *types.NodeConfig)
	SetNodePos(nodeid types.NodeId, pos types.Vector)
	OnNodeFail(nodeid types.NodeId)
	OnNodeRecover(nodeid types.NodeId)
	Send(srcid types.NodeId, dstid types.NodeId, mvinfo *MsgVisualizeInfo)
	SetSpeed(speed float64)
	AdvanceTime(ts uint64, speed float64)
	SetController(ctrl SimulationController)
	SetTitle(titleInfo TitleInfo)

	OnSignalSample(sample *SignalSample)
	OnPingReply(reply *PingReply)
	UpdateNodesEnergy(nodes []*NodeEnergy, timestamp uint64, updateView bool)
}

// SimulationController lets a visualizer steer the simulation it observes.
type SimulationController interface {
	CtrlSetSpeed(speed float64) error
	CtrlMoveNodeTo(nodeid types.NodeId, pos types.Vector, durationSec float64) error
	CtrlSetNodeFailed(nodeid types.NodeId, failed bool) error
}

// MsgVisualizeInfo describes one frame delivered from srcid to dstid.
type MsgVisualizeInfo struct {
	Channel         uint8
	FrameControl    wpan.FrameControl
	Seq             uint8
	DstAddrShort    uint16
	DstAddrExtended uint64
	SendDurationUs  uint32
	PowerDbm        int8
	TxStartUs       uint64
	RxPowerDbm      types.DbValue
	LengthBytes     uint16
}

// SignalSample is one periodic measurement of the link between a node and the access point.
type SignalSample struct {
	Timestamp  uint64        `json:"timestamp"`
	NodeId     types.NodeId  `json:"node"`
	PeerId     types.NodeId  `json:"peer"`
	Distance   float64       `json:"distance"`
	RxPowerDbm types.DbValue `json:"rxPowerDbm"`
	SnrDb      types.DbValue `json:"snrDb"`
}

// PingReply is reported for every received echo reply and for every request counted as lost at stop.
type PingReply struct {
	Timestamp uint64       `json:"timestamp"`
	Src       types.NodeId `json:"src"`
	Dst       types.NodeId `json:"dst"`
	Seq       uint16       `json:"seq"`
	RttUs     uint64       `json:"rttUs"`
	Lost      bool         `json:"lost"`
}

// NodeEnergy is the energy (mJ) a node spent per radio state.
type NodeEnergy struct {
	NodeId   types.NodeId `json:"node"`
	Disabled float64      `json:"disabled"`
	Sleep    float64      `json:"sleep"`
	Tx       float64      `json:"tx"`
	Rx       float64      `json:"rx"`
}

type TitleInfo struct {
	Title    string
	X        int
	Y        int
	FontSize int
}

func DefaultTitleInfo() TitleInfo {
	return TitleInfo{
		Title:    "",
		X:        0,
		Y:        20,
		FontSize: 20,
	}
}
