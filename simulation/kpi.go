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
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/sampler"
	. "github.com/openthread/lowpan-ns/types"
)

type KpiManager struct {
	sim           *Simulation
	data          *Kpi
	startCounters NodeCountersStore
	curCounters   NodeCountersStore
	startChannel  lrwpan.ChannelStats
	isRunning     bool
}

type NodeCountersStore map[NodeId]NodeCounters

// NewKpiManager creates a new KPI manager/bookkeeper for a particular simulation.
func NewKpiManager() *KpiManager {
	km := &KpiManager{}
	return km
}

// Init inits the KPI manager for the given simulation.
func (km *KpiManager) Init(sim *Simulation) {
	logger.AssertNil(km.sim)
	logger.AssertFalse(km.isRunning)
	km.sim = sim
	km.data = &Kpi{Status: "ok"}
	km.startCounters = NodeCountersStore{}
	km.curCounters = NodeCountersStore{}
}

// Start begins a KPI period at the current time.
func (km *KpiManager) Start() {
	logger.AssertNotNil(km.sim)
	km.data = &Kpi{Status: "ok"}
	km.startCounters = km.retrieveNodeCounters()
	km.startChannel = km.sim.channel.Stats()
	km.data.TimeUs.StartTimeUs = km.sim.d.Now()
	km.isRunning = true
	km.SaveDefaultFile()
}

func (km *KpiManager) Stop() {
	if km.isRunning {
		km.curCounters = km.retrieveNodeCounters()
		km.isRunning = false
		km.calculateKpis()
		km.SaveDefaultFile()
	}
}

func (km *KpiManager) IsRunning() bool {
	return km.isRunning
}

// Data returns the KPIs, updated to the current time if a period is running.
func (km *KpiManager) Data() *Kpi {
	if km.isRunning {
		km.curCounters = km.retrieveNodeCounters()
		km.calculateKpis()
	}
	return km.data
}

func (km *KpiManager) SaveDefaultFile() {
	km.SaveFile(km.getDefaultSaveFileName())
}

func (km *KpiManager) SaveFile(fn string) {
	logger.AssertNotNil(km.sim)
	data := km.Data()
	data.FileTime = time.Now().Format(time.RFC3339)
	js, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		logger.Errorf("Could not marshal KPI JSON data: %v", err)
		return
	}

	err = os.WriteFile(fn, js, 0644)
	if err != nil {
		logger.Errorf("Could not write KPI JSON file %s: %v", fn, err)
		return
	}
}

func (km *KpiManager) retrieveNodeCounters() NodeCountersStore {
	nodesMap := make(NodeCountersStore, len(km.sim.nodes))
	for nid, node := range km.sim.nodes {
		nodesMap[nid] = node.Counters()
	}
	return nodesMap
}

func (km *KpiManager) calculateKpis() {
	sim := km.sim

	// time
	km.data.TimeUs.EndTimeUs = sim.d.Now()
	km.data.TimeUs.PeriodUs = km.data.TimeUs.EndTimeUs - km.data.TimeUs.StartTimeUs
	km.data.TimeSec.StartTimeSec = UsToSeconds(km.data.TimeUs.StartTimeUs)
	km.data.TimeSec.EndTimeSec = UsToSeconds(km.data.TimeUs.EndTimeUs)
	km.data.TimeSec.PeriodSec = UsToSeconds(km.data.TimeUs.PeriodUs)

	// channel
	km.data.Channels = map[ChannelId]KpiChannel{}
	stats := sim.channel.Stats()
	chanKpi := KpiChannel{
		TxTimeUs:   stats.BusyTimeUs - km.startChannel.BusyTimeUs,
		NumFrames:  stats.Transmissions - km.startChannel.Transmissions,
		Collisions: stats.Collisions - km.startChannel.Collisions,
	}
	if passed := km.data.TimeUs.PeriodUs; passed > 0 {
		chanKpi.TxPercentage = 100.0 * float64(chanKpi.TxTimeUs) / float64(passed)
		chanKpi.AvgFps = 1.0e6 * float64(chanKpi.NumFrames) / float64(passed)
	}
	km.data.Channels[sim.channel.Id] = chanKpi

	// counters
	km.data.Mac.NoAckPercentage = make(map[NodeId]float64)
	km.data.Counters = make(map[NodeId]NodeCounters)
	for nid, ctr := range km.curCounters {
		counters := getCountersDiff(ctr, km.startCounters[nid])
		noAckPercent := 100.0 * float64(counters["mac.MacTxNoAck"]) /
			float64(counters["mac.MacTxSuccess"]+counters["mac.MacTxNoAck"])
		if math.IsNaN(noAckPercent) {
			noAckPercent = 0.0
		}
		km.data.Mac.NoAckPercentage[nid] = noAckPercent
		km.data.Counters[nid] = counters
	}

	// applications
	km.data.Pings = nil
	km.data.Signal = map[NodeId]sampler.Summary{}
	for _, node := range sim.devices {
		for _, p := range node.pings {
			dst := InvalidNodeId
			for _, other := range sim.devices {
				if other.GlobalAddr() == p.Config().Destination {
					dst = other.Id
				}
			}
			km.data.Pings = append(km.data.Pings, KpiPing{Src: node.Id, Dst: dst, Report: p.Report()})
		}
		if node.sampler != nil {
			km.data.Signal[node.Id] = node.sampler.Summary()
		}
	}

	km.data.Links = sim.Links()
	km.data.Connectivity = km.calculateConnectivity()
}

func (km *KpiManager) calculateConnectivity() KpiConnectivity {
	sim := km.sim
	conn := KpiConnectivity{
		SnrThresholdDb: sim.cfg.LinkSnrDb,
		Root:           sim.devices[0].Id,
		Hops:           map[NodeId]int{},
	}
	for _, node := range sim.devices {
		if node.cfg.Type == NodeTypeAccessPoint {
			conn.Root = node.Id
			break
		}
	}

	g := simple.NewUndirectedGraph()
	for _, node := range sim.devices {
		g.AddNode(simple.Node(node.Id))
	}
	for _, ls := range sim.Links() {
		if ls.Frames == 0 || ls.AvgSinrDb < conn.SnrThresholdDb || ls.Src == ls.Dst {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(ls.Src), simple.Node(ls.Dst)))
	}

	shortest := path.DijkstraFrom(simple.Node(conn.Root), g)
	for _, node := range sim.devices {
		nodes, _ := shortest.To(int64(node.Id))
		conn.Hops[node.Id] = len(nodes) - 1
	}
	conn.Components = len(topo.ConnectedComponents(g))
	return conn
}

func (km *KpiManager) getDefaultSaveFileName() string {
	return outputPath(km.sim.cfg.OutputDir, fmt.Sprintf("%d_kpi.json", km.sim.cfg.Id))
}
