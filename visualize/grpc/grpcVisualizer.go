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
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
	"github.com/openthread/lowpan-ns/visualize/grpc/replay"
)

// Event types, sent in the "type" field of every event.
const (
	evtHeartbeat   = "heartbeat"
	evtAddNode     = "addNode"
	evtSetNodePos  = "setNodePos"
	evtNodeFail    = "nodeFail"
	evtNodeRecover = "nodeRecover"
	evtSend        = "send"
	evtSetSpeed    = "setSpeed"
	evtAdvanceTime = "advanceTime"
	evtSetTitle    = "setTitle"
	evtSignal      = "signal"
	evtPingReply   = "pingReply"
	evtEnergy      = "energy"
)

func newEvent(typ string, fields map[string]interface{}) *structpb.Struct {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["type"] = typ
	ev, err := structpb.NewStruct(fields)
	logger.PanicIfError(err)
	return ev
}

func posFields(id NodeId, pos Vector) map[string]interface{} {
	return map[string]interface{}{
		"node": id,
		"x":    pos.X,
		"y":    pos.Y,
		"z":    pos.Z,
	}
}

type grpcVisualizer struct {
	simctrl visualize.SimulationController
	server  *grpcServer
	f       *grpcField
	replay  *replay.Replay

	sync.Mutex
}

func (gv *grpcVisualizer) Init() {
}

func (gv *grpcVisualizer) Run() {
	err := gv.server.Run()
	if err != nil {
		logger.Warnf("gRPC server quit: %v", err)
	}
}

func (gv *grpcVisualizer) Stop() {
	gv.server.stop()
	if gv.replay != nil {
		gv.replay.Close()
	}
}

func (gv *grpcVisualizer) addNodeEvent(node *grpcNode) *structpb.Struct {
	fields := posFields(node.id, node.pos)
	fields["name"] = node.cfg.Name
	fields["kind"] = node.cfg.Type
	fields["r"] = int(node.cfg.Color.R)
	fields["g"] = int(node.cfg.Color.G)
	fields["b"] = int(node.cfg.Color.B)
	return newEvent(evtAddNode, fields)
}

func (gv *grpcVisualizer) AddNode(nodeid NodeId, cfg *NodeConfig) {
	gv.Lock()
	defer gv.Unlock()

	node := gv.f.addNode(nodeid, cfg)
	gv.AddVisualizationEvent(gv.addNodeEvent(node), false)
}

func (gv *grpcVisualizer) Send(srcid NodeId, dstid NodeId, mvinfo *visualize.MsgVisualizeInfo) {
	gv.Lock()
	defer gv.Unlock()

	gv.AddVisualizationEvent(newEvent(evtSend, map[string]interface{}{
		"src":             srcid,
		"dst":             dstid,
		"channel":         int(mvinfo.Channel),
		"frameControl":    int(mvinfo.FrameControl),
		"seq":             int(mvinfo.Seq),
		"dstAddrShort":    int(mvinfo.DstAddrShort),
		"sendDurationUs":  int(mvinfo.SendDurationUs),
		"lengthBytes":     int(mvinfo.LengthBytes),
		"rxPowerDbm":      mvinfo.RxPowerDbm,
		"visTrueDuration": gv.f.speed <= 0.01,
	}), false)
}

func (gv *grpcVisualizer) SetSpeed(speed float64) {
	gv.Lock()
	defer gv.Unlock()

	gv.f.setSpeed(speed)
	gv.AddVisualizationEvent(newEvent(evtSetSpeed, map[string]interface{}{"speed": speed}), false)
}

func (gv *grpcVisualizer) AdvanceTime(ts uint64, speed float64) {
	gv.Lock()
	defer gv.Unlock()

	if gv.f.advanceTime(ts, speed) {
		gv.AddVisualizationEvent(newEvent(evtAdvanceTime, map[string]interface{}{
			"ts":    ts,
			"speed": speed,
		}), true)
	}
}

func (gv *grpcVisualizer) OnNodeFail(nodeid NodeId) {
	gv.Lock()
	defer gv.Unlock()

	gv.f.onNodeFail(nodeid)
	gv.AddVisualizationEvent(newEvent(evtNodeFail, map[string]interface{}{"node": nodeid}), false)
}

func (gv *grpcVisualizer) OnNodeRecover(nodeid NodeId) {
	gv.Lock()
	defer gv.Unlock()

	gv.f.onNodeRecover(nodeid)
	gv.AddVisualizationEvent(newEvent(evtNodeRecover, map[string]interface{}{"node": nodeid}), false)
}

func (gv *grpcVisualizer) SetController(ctrl visualize.SimulationController) {
	gv.Lock()
	defer gv.Unlock()

	gv.simctrl = ctrl
}

func (gv *grpcVisualizer) controller() visualize.SimulationController {
	gv.Lock()
	defer gv.Unlock()

	return gv.simctrl
}

func (gv *grpcVisualizer) SetNodePos(nodeid NodeId, pos Vector) {
	gv.Lock()
	defer gv.Unlock()

	if gv.f.setNodePos(nodeid, pos) {
		gv.AddVisualizationEvent(newEvent(evtSetNodePos, posFields(nodeid, pos)), true)
	}
}

func (gv *grpcVisualizer) SetTitle(titleInfo visualize.TitleInfo) {
	gv.Lock()
	defer gv.Unlock()

	gv.f.setTitleInfo(titleInfo)
	gv.AddVisualizationEvent(titleEvent(titleInfo), false)
}

func titleEvent(titleInfo visualize.TitleInfo) *structpb.Struct {
	return newEvent(evtSetTitle, map[string]interface{}{
		"title":    titleInfo.Title,
		"x":        titleInfo.X,
		"y":        titleInfo.Y,
		"fontSize": titleInfo.FontSize,
	})
}

func signalEvent(s *visualize.SignalSample) *structpb.Struct {
	return newEvent(evtSignal, map[string]interface{}{
		"ts":         s.Timestamp,
		"node":       s.NodeId,
		"peer":       s.PeerId,
		"distance":   s.Distance,
		"rxPowerDbm": s.RxPowerDbm,
		"snrDb":      s.SnrDb,
	})
}

func (gv *grpcVisualizer) OnSignalSample(sample *visualize.SignalSample) {
	gv.Lock()
	defer gv.Unlock()

	gv.f.onSignalSample(sample)
	gv.AddVisualizationEvent(signalEvent(sample), false)
}

func (gv *grpcVisualizer) OnPingReply(reply *visualize.PingReply) {
	gv.Lock()
	defer gv.Unlock()

	gv.AddVisualizationEvent(newEvent(evtPingReply, map[string]interface{}{
		"ts":    reply.Timestamp,
		"src":   reply.Src,
		"dst":   reply.Dst,
		"seq":   int(reply.Seq),
		"rttUs": reply.RttUs,
		"lost":  reply.Lost,
	}), false)
}

func (gv *grpcVisualizer) UpdateNodesEnergy(nodes []*visualize.NodeEnergy, timestamp uint64, updateView bool) {
	gv.Lock()
	defer gv.Unlock()

	list := make([]interface{}, 0, len(nodes))
	for _, ne := range nodes {
		list = append(list, map[string]interface{}{
			"node":     ne.NodeId,
			"disabled": ne.Disabled,
			"sleep":    ne.Sleep,
			"tx":       ne.Tx,
			"rx":       ne.Rx,
		})
	}
	gv.AddVisualizationEvent(newEvent(evtEnergy, map[string]interface{}{
		"ts":         timestamp / UsPerSec,
		"nodes":      list,
		"updateView": updateView,
	}), false)
}

// prepareStream sends the current state to a new client.
func (gv *grpcVisualizer) prepareStream(stream *grpcStream) error {
	if err := stream.Send(newEvent(evtSetSpeed, map[string]interface{}{"speed": gv.f.speed})); err != nil {
		return err
	}
	if gv.f.titleInfo.Title != "" {
		if err := stream.Send(titleEvent(gv.f.titleInfo)); err != nil {
			return err
		}
	}
	if err := stream.Send(newEvent(evtAdvanceTime, map[string]interface{}{
		"ts":    gv.f.curTime,
		"speed": gv.f.curSpeed,
	})); err != nil {
		return err
	}

	for _, node := range gv.f.sortedNodes() {
		if err := stream.Send(gv.addNodeEvent(node)); err != nil {
			return err
		}
		if node.failed {
			if err := stream.Send(newEvent(evtNodeFail, map[string]interface{}{"node": node.id})); err != nil {
				return err
			}
		}
		if s, ok := gv.f.signal[node.id]; ok {
			if err := stream.Send(signalEvent(&s)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (gv *grpcVisualizer) AddVisualizationEvent(event *structpb.Struct, trivial bool) {
	if gv.replay != nil && !trivial {
		gv.replay.Append(event)
	}
	gv.server.SendEvent(event)
}

// NewGrpcVisualizer serves the event stream on address. With a non-empty replayFn all
// non-trivial events are also logged to that file.
func NewGrpcVisualizer(address string, replayFn string) visualize.Visualizer {
	return newGrpcVisualizer(address, replayFn)
}

func newGrpcVisualizer(address string, replayFn string) *grpcVisualizer {
	gsv := &grpcVisualizer{
		simctrl: nil,
		f:       newGrpcField(),
	}

	if replayFn != "" {
		gsv.replay = replay.NewReplay(replayFn)
	}

	gsv.server = newGrpcServer(gsv, address)
	return gsv
}
