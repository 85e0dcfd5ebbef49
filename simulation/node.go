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

package simulation

import (
	"fmt"
	"net/netip"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/inet"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/ping"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/sampler"
	"github.com/openthread/lowpan-ns/sixlowpan"
	. "github.com/openthread/lowpan-ns/types"
)

// Node is one simulated device with its full stack: mobility, LR-WPAN radio, 6LoWPAN and IPv6.
type Node struct {
	S  *Simulation
	Id NodeId

	cfg         NodeConfig
	mob         mobility.Model
	dev         *lrwpan.Device
	netdev      *sixlowpan.NetDevice
	stack       *inet.Stack
	iface       *inet.Interface
	failureCtrl *dispatcher.FailureCtrl
	waypoint    *mobility.Waypoint
	sampler     *sampler.Sampler
	pings       []*ping.Ping
	lastPos     Vector
}

func newNode(s *Simulation, cfg *NodeConfig) *Node {
	node := &Node{
		S:   s,
		Id:  cfg.ID,
		cfg: *cfg,
		mob: newMobility(cfg),
	}
	devCfg := lrwpan.DefaultConfig()
	devCfg.TxPowerDbm = cfg.TxPowerDbm
	node.dev = lrwpan.NewDevice(cfg.ID, s.channel, node.mob, devCfg, prng.NewStream(fmt.Sprintf("mac-%d", cfg.ID)))
	node.failureCtrl = dispatcher.NewFailureCtrl(node, s.d, prng.NewStream(fmt.Sprintf("failure-%d", cfg.ID)))
	node.lastPos = cfg.Position
	logger.Debugf("node %d (%s): type=%s mobility=%s position=%v", cfg.ID, cfg.Name, cfg.Type, cfg.Mobility,
		cfg.Position)
	return node
}

// setupStack installs 6LoWPAN and IPv6 on top of the associated device.
func (node *Node) setupStack(contexts *sixlowpan.ContextTable, useIphc bool) {
	node.netdev = sixlowpan.NewNetDevice(node.dev, node.S.d, contexts)
	node.netdev.SetUseIphc(useIphc)
	node.stack = inet.NewStack(node.Id, node.S.d)
	node.iface = node.stack.AddInterface(node.netdev)
}

func (node *Node) String() string {
	return fmt.Sprintf("Node<%d:%s>", node.Id, node.cfg.Name)
}

func (node *Node) Config() *NodeConfig {
	return &node.cfg
}

func (node *Node) Name() string {
	return node.cfg.Name
}

func (node *Node) Device() *lrwpan.Device {
	return node.dev
}

func (node *Node) NetDevice() *sixlowpan.NetDevice {
	return node.netdev
}

func (node *Node) Stack() *inet.Stack {
	return node.stack
}

func (node *Node) Interface() *inet.Interface {
	return node.iface
}

func (node *Node) Mobility() mobility.Model {
	return node.mob
}

func (node *Node) GlobalAddr() netip.Addr {
	return node.iface.GlobalAddr()
}

func (node *Node) Position() Vector {
	return node.mob.Position(node.S.d.Now())
}

func (node *Node) Velocity() Vector {
	return node.mob.Velocity(node.S.d.Now())
}

func (node *Node) Sampler() *sampler.Sampler {
	return node.sampler
}

func (node *Node) Pings() []*ping.Ping {
	return node.pings
}

func (node *Node) Waypoint() *mobility.Waypoint {
	return node.waypoint
}

func (node *Node) IsFailed() bool {
	return node.dev.IsFailed()
}

// Fail switches the node's radio off.
func (node *Node) Fail() {
	if node.dev.IsFailed() {
		return
	}
	node.dev.Fail()
	logger.Infof("node %d radio off", node.Id)
	node.S.vis.OnNodeFail(node.Id)
}

// Recover switches the node's radio back on.
func (node *Node) Recover() {
	if !node.dev.IsFailed() {
		return
	}
	node.dev.Recover()
	logger.Infof("node %d radio on", node.Id)
	node.S.vis.OnNodeRecover(node.Id)
}

func (node *Node) GetFailTime() dispatcher.FailTime {
	return node.failureCtrl.GetFailTime()
}

// SetFailTime lets the radio fail periodically. NonFailTime stops the failures.
func (node *Node) SetFailTime(ft dispatcher.FailTime) error {
	return node.failureCtrl.SetFailTime(ft)
}

// MoveTo moves the node to pos within duration us. With duration 0 the node jumps there at once.
func (node *Node) MoveTo(pos Vector, duration uint64, action mobility.ArrivalAction) error {
	now := node.S.d.Now()
	if node.waypoint != nil {
		node.waypoint.Cancel()
		node.waypoint = nil
	}
	if duration == 0 {
		node.mob.SetPosition(now, pos)
		node.S.updateNodePos(node)
		return nil
	}
	vs, ok := node.mob.(mobility.VelocitySetter)
	if !ok {
		return errors.Errorf("node %d has mobility %s and cannot move", node.Id, node.cfg.Mobility)
	}
	w, err := mobility.MoveTo(node.S.d, vs, node.mob.Position(now), pos, duration, action, node.cfg.Name)
	if err != nil {
		return err
	}
	node.waypoint = w
	return nil
}

// Counters returns the MAC, 6LoWPAN and IPv6 counters of the node.
func (node *Node) Counters() NodeCounters {
	mac, lowpan, ip := NodeCounters{}, NodeCounters{}, NodeCounters{}
	addStructCounters(mac, "mac.", &node.dev.Counters)
	if node.netdev != nil {
		addStructCounters(lowpan, "sixlowpan.", &node.netdev.Counters)
	}
	if node.stack != nil {
		addStructCounters(ip, "ip.", &node.stack.Counters)
	}
	return mergeNodeCounters(mac, lowpan, ip)
}
