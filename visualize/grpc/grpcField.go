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

package visualize_grpc

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

type grpcNode struct {
	id     NodeId
	cfg    NodeConfig
	pos    Vector
	failed bool
}

type grpcField struct {
	nodes     map[NodeId]*grpcNode
	curTime   uint64
	curSpeed  float64
	speed     float64
	titleInfo visualize.TitleInfo
	signal    map[NodeId]visualize.SignalSample
}

func (f *grpcField) addNode(id NodeId, cfg *NodeConfig) *grpcNode {
	logger.AssertNil(f.nodes[id])
	gn := &grpcNode{
		id:  id,
		cfg: *cfg,
		pos: cfg.Position,
	}
	f.nodes[id] = gn
	return gn
}

func (f *grpcField) sortedNodes() []*grpcNode {
	ids := maps.Keys(f.nodes)
	slices.Sort(ids)
	nodes := make([]*grpcNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, f.nodes[id])
	}
	return nodes
}

func (f *grpcField) advanceTime(ts uint64, speed float64) bool {
	hasChanged := f.curTime != ts || f.curSpeed != speed
	f.curTime = ts
	f.curSpeed = speed
	return hasChanged
}

func (f *grpcField) onNodeFail(nodeid NodeId) {
	if node := f.nodes[nodeid]; node != nil {
		node.failed = true
	}
}

func (f *grpcField) onNodeRecover(id NodeId) {
	if node := f.nodes[id]; node != nil {
		node.failed = false
	}
}

func (f *grpcField) setNodePos(id NodeId, pos Vector) bool {
	node := f.nodes[id]
	if node == nil || node.pos == pos {
		return false
	}
	node.pos = pos
	return true
}

func (f *grpcField) setSpeed(speed float64) {
	f.speed = speed
}

func (f *grpcField) setTitleInfo(info visualize.TitleInfo) {
	f.titleInfo = info
}

func (f *grpcField) onSignalSample(s *visualize.SignalSample) {
	f.signal[s.NodeId] = *s
}

func newGrpcField() *grpcField {
	gf := &grpcField{
		nodes:    map[NodeId]*grpcNode{},
		curSpeed: 1,
		speed:    1,
		signal:   map[NodeId]visualize.SignalSample{},
	}
	return gf
}
