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
)

type nopVisualizer struct{}

// NewNopVisualizer creates a new Visualizer that does nothing.
func NewNopVisualizer() Visualizer {
	return nopVisualizer{}
}

func (nv nopVisualizer) Init() {
}

func (nv nopVisualizer) Run() {
}

func (nv nopVisualizer) Stop() {
}

func (nv nopVisualizer) AddNode(nodeid types.NodeId, cfg *types.NodeConfig) {
}

func (nv nopVisualizer) SetNodePos(nodeid types.NodeId, pos types.Vector) {
}

func (nv nopVisualizer) OnNodeFail(nodeid types.NodeId) {
}

func (nv nopVisualizer) OnNodeRecover(nodeid types.NodeId) {
}

func (nv nopVisualizer) Send(srcid types.NodeId, dstid types.NodeId, mvinfo *MsgVisualizeInfo) {
}

func (nv nopVisualizer) SetSpeed(speed float64) {
}

func (nv nopVisualizer) AdvanceTime(ts uint64, speed float64) {
}

func (nv nopVisualizer) SetController(ctrl SimulationController) {
}

func (nv nopVisualizer) SetTitle(titleInfo TitleInfo) {
}

func (nv nopVisualizer) OnSignalSample(sample *SignalSample) {
}

func (nv nopVisualizer) OnPingReply(reply *PingReply) {
}

func (nv nopVisualizer) UpdateNodesEnergy(nodes []*NodeEnergy, timestamp uint64, updateView bool) {
}
