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

package web

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

// maxSamplesPerNode bounds the signal history kept per node.
const maxSamplesPerNode = 3600

type NodeState struct {
	Id       NodeId                  `json:"id"`
	Name     string                  `json:"name"`
	Type     string                  `json:"type"`
	Mobility string                  `json:"mobility"`
	Position Vector                  `json:"position"`
	Color    Color                   `json:"color"`
	Failed   bool                    `json:"failed"`
	Signal   *visualize.SignalSample `json:"signal,omitempty"`
	Energy   *visualize.NodeEnergy   `json:"energy,omitempty"`
}

type PingStats struct {
	Src      NodeId  `json:"src"`
	Dst      NodeId  `json:"dst"`
	Received int     `json:"received"`
	Lost     int     `json:"lost"`
	LastSeq  uint16  `json:"lastSeq"`
	RttMinMs float64 `json:"rttMinMs"`
	RttAvgMs float64 `json:"rttAvgMs"`
	RttMaxMs float64 `json:"rttMaxMs"`
	rttSumMs float64
}

type Status struct {
	TimeUs   uint64  `json:"timeUs"`
	TimeSec  float64 `json:"timeSec"`
	Speed    float64 `json:"speed"`
	Nodes    int     `json:"nodes"`
	Frames   uint64  `json:"frames"`
	Title    string  `json:"title"`
	Stopped  bool    `json:"stopped"`
	Controls bool    `json:"controls"`
}

type pingKey struct {
	src, dst NodeId
}

// webVisualizer keeps the latest simulation state for the HTTP API.
type webVisualizer struct {
	mu      sync.Mutex
	status  Status
	nodes   map[NodeId]*NodeState
	samples map[NodeId][]visualize.SignalSample
	pings   map[pingKey]*PingStats
	ctrl    visualize.SimulationController
}

func newWebVisualizer() *webVisualizer {
	return &webVisualizer{
		status:  Status{Speed: 1},
		nodes:   map[NodeId]*NodeState{},
		samples: map[NodeId][]visualize.SignalSample{},
		pings:   map[pingKey]*PingStats{},
	}
}

func (wv *webVisualizer) Init() {
}

func (wv *webVisualizer) Run() {
}

func (wv *webVisualizer) Stop() {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.status.Stopped = true
}

func (wv *webVisualizer) AddNode(nodeid NodeId, cfg *NodeConfig) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.nodes[nodeid] = &NodeState{
		Id:       nodeid,
		Name:     cfg.Name,
		Type:     cfg.Type,
		Mobility: cfg.Mobility,
		Position: cfg.Position,
		Color:    cfg.Color,
	}
}

func (wv *webVisualizer) SetNodePos(nodeid NodeId, pos Vector) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if n := wv.nodes[nodeid]; n != nil {
		n.Position = pos
	}
}

func (wv *webVisualizer) OnNodeFail(nodeid NodeId) {
	wv.setFailed(nodeid, true)
}

func (wv *webVisualizer) OnNodeRecover(nodeid NodeId) {
	wv.setFailed(nodeid, false)
}

func (wv *webVisualizer) setFailed(nodeid NodeId, failed bool) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if n := wv.nodes[nodeid]; n != nil {
		n.Failed = failed
	}
}

func (wv *webVisualizer) Send(srcid NodeId, dstid NodeId, mvinfo *visualize.MsgVisualizeInfo) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.status.Frames++
}

func (wv *webVisualizer) SetSpeed(speed float64) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.status.Speed = speed
}

func (wv *webVisualizer) AdvanceTime(ts uint64, speed float64) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.status.TimeUs = ts
	wv.status.TimeSec = UsToSeconds(ts)
	wv.status.Speed = speed
}

func (wv *webVisualizer) SetController(ctrl visualize.SimulationController) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.ctrl = ctrl
}

func (wv *webVisualizer) controller() visualize.SimulationController {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	return wv.ctrl
}

func (wv *webVisualizer) SetTitle(titleInfo visualize.TitleInfo) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	wv.status.Title = titleInfo.Title
}

func (wv *webVisualizer) OnSignalSample(sample *visualize.SignalSample) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	s := *sample
	if n := wv.nodes[s.NodeId]; n != nil {
		n.Signal = &s
	}
	samples := append(wv.samples[s.NodeId], s)
	if len(samples) > maxSamplesPerNode {
		samples = samples[len(samples)-maxSamplesPerNode:]
	}
	wv.samples[s.NodeId] = samples
}

func (wv *webVisualizer) OnPingReply(reply *visualize.PingReply) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	key := pingKey{reply.Src, reply.Dst}
	ps := wv.pings[key]
	if ps == nil {
		ps = &PingStats{Src: reply.Src, Dst: reply.Dst}
		wv.pings[key] = ps
	}
	ps.LastSeq = reply.Seq
	if reply.Lost {
		ps.Lost++
		return
	}
	rtt := float64(reply.RttUs) / float64(UsPerMs)
	if ps.Received == 0 || rtt < ps.RttMinMs {
		ps.RttMinMs = rtt
	}
	if rtt > ps.RttMaxMs {
		ps.RttMaxMs = rtt
	}
	ps.Received++
	ps.rttSumMs += rtt
	ps.RttAvgMs = ps.rttSumMs / float64(ps.Received)
}

func (wv *webVisualizer) UpdateNodesEnergy(nodes []*visualize.NodeEnergy, timestamp uint64, updateView bool) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	for _, ne := range nodes {
		if n := wv.nodes[ne.NodeId]; n != nil {
			e := *ne
			n.Energy = &e
		}
	}
}

func (wv *webVisualizer) getStatus() Status {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	st := wv.status
	st.Nodes = len(wv.nodes)
	st.Controls = wv.ctrl != nil
	return st
}

func (wv *webVisualizer) getNodes() []NodeState {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	ids := maps.Keys(wv.nodes)
	slices.Sort(ids)
	nodes := make([]NodeState, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, *wv.nodes[id])
	}
	return nodes
}

func (wv *webVisualizer) getNode(id NodeId) (NodeState, bool) {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	n, ok := wv.nodes[id]
	if !ok {
		return NodeState{}, false
	}
	return *n, true
}

// getSignal returns the stored samples of one node, or of all nodes ordered by node and time for
// id InvalidNodeId.
func (wv *webVisualizer) getSignal(id NodeId) []visualize.SignalSample {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if id != InvalidNodeId {
		return slices.Clone(wv.samples[id])
	}
	ids := maps.Keys(wv.samples)
	slices.Sort(ids)
	var all []visualize.SignalSample
	for _, nid := range ids {
		all = append(all, wv.samples[nid]...)
	}
	return all
}

func (wv *webVisualizer) getPings() []PingStats {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	list := make([]PingStats, 0, len(wv.pings))
	for _, ps := range wv.pings {
		list = append(list, *ps)
	}
	slices.SortFunc(list, func(a, b PingStats) int {
		if a.Src != b.Src {
			return a.Src - b.Src
		}
		return a.Dst - b.Dst
	})
	return list
}
