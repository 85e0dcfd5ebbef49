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

package energy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

type EnergyAnalyser struct {
	nodes                map[NodeId]*NodeEnergy
	consumption          Consumption
	networkHistory       []NetworkConsumption
	energyHistoryByNodes [][]*visualize.NodeEnergy
	title                string
}

// Attach accounts the radio state changes of dev from timestamp on.
func (e *EnergyAnalyser) Attach(dev *lrwpan.Device, timestamp uint64) {
	e.AddNode(dev.NodeId(), dev.State(), timestamp)
	dev.AddStateListener(func(dev *lrwpan.Device, state RadioStates, ts uint64) {
		if node := e.nodes[dev.NodeId()]; node != nil {
			node.SetRadioState(state, ts)
		}
	})
}

func (e *EnergyAnalyser) AddNode(nodeID NodeId, state RadioStates, timestamp uint64) {
	if _, ok := e.nodes[nodeID]; ok {
		return
	}
	e.nodes[nodeID] = newNode(nodeID, state, timestamp)
}

func (e *EnergyAnalyser) DeleteNode(nodeID NodeId) {
	delete(e.nodes, nodeID)

	if len(e.nodes) == 0 {
		e.ClearEnergyData()
	}
}

func (e *EnergyAnalyser) GetNode(nodeID NodeId) *NodeEnergy {
	return e.nodes[nodeID]
}

func (e *EnergyAnalyser) GetNetworkEnergyHistory() []NetworkConsumption {
	return e.networkHistory
}

func (e *EnergyAnalyser) GetEnergyHistoryByNodes() [][]*visualize.NodeEnergy {
	return e.energyHistoryByNodes
}

func (e *EnergyAnalyser) GetLatestEnergyOfNodes() []*visualize.NodeEnergy {
	if len(e.energyHistoryByNodes) == 0 {
		return nil
	}
	return e.energyHistoryByNodes[len(e.energyHistoryByNodes)-1]
}

func (e *EnergyAnalyser) sortedIds() []NodeId {
	ids := maps.Keys(e.nodes)
	slices.Sort(ids)
	return ids
}

func (e *EnergyAnalyser) energyOf(node *NodeEnergy) *visualize.NodeEnergy {
	return &visualize.NodeEnergy{
		NodeId:   node.nodeId,
		Disabled: float64(node.radio.SpentDisabled) * e.consumption.Disabled,
		Sleep:    float64(node.radio.SpentSleep) * e.consumption.Sleep,
		Tx:       float64(node.radio.SpentTx) * e.consumption.Tx,
		Rx:       float64(node.radio.SpentRx) * e.consumption.Rx,
	}
}

// StoreNetworkEnergy takes a snapshot of all nodes at timestamp.
func (e *EnergyAnalyser) StoreNetworkEnergy(timestamp uint64) {
	nodesEnergySnapshot := make([]*visualize.NodeEnergy, 0, len(e.nodes))
	networkSnapshot := NetworkConsumption{
		Timestamp: timestamp,
	}

	netSize := float64(len(e.nodes))
	for _, id := range e.sortedIds() {
		node := e.nodes[id]
		node.ComputeRadioState(timestamp)

		ne := e.energyOf(node)
		networkSnapshot.EnergyConsDisabled += ne.Disabled / netSize
		networkSnapshot.EnergyConsSleep += ne.Sleep / netSize
		networkSnapshot.EnergyConsTx += ne.Tx / netSize
		networkSnapshot.EnergyConsRx += ne.Rx / netSize
		nodesEnergySnapshot = append(nodesEnergySnapshot, ne)
	}

	e.networkHistory = append(e.networkHistory, networkSnapshot)
	e.energyHistoryByNodes = append(e.energyHistoryByNodes, nodesEnergySnapshot)
}

// SaveEnergyDataToFile writes <dir>/energy_results/<name>_nodes.txt and <name>.txt.
func (e *EnergyAnalyser) SaveEnergyDataToFile(dir string, name string, timestamp uint64) error {
	if name == "" {
		if e.title == "" {
			name = "energy"
		} else {
			name = e.title
		}
	}

	resultDir := filepath.Join(dir, "energy_results")
	if err := os.MkdirAll(resultDir, 0777); err != nil {
		return errors.Wrap(err, "create energy_results directory")
	}

	path := filepath.Join(resultDir, name)
	fileNodes, err := os.Create(path + "_nodes.txt")
	if err != nil {
		return errors.Wrap(err, "create node energy file")
	}
	defer fileNodes.Close()

	fileNetwork, err := os.Create(path + ".txt")
	if err != nil {
		return errors.Wrap(err, "create network energy file")
	}
	defer fileNetwork.Close()

	e.WriteEnergyByNodes(fileNodes, timestamp)
	e.WriteNetworkEnergy(fileNetwork, timestamp)
	logger.Debugf("energy results saved to %s", path)
	return nil
}

func (e *EnergyAnalyser) WriteEnergyByNodes(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/UsPerMs)
	fmt.Fprintf(w, "ID\tDisabled (mJ)\tIdle (mJ)\tTransmiting (mJ)\tReceiving (mJ)\n")

	for _, id := range e.sortedIds() {
		node := e.nodes[id]
		node.ComputeRadioState(timestamp)
		ne := e.energyOf(node)
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n", id, ne.Disabled, ne.Sleep, ne.Tx, ne.Rx)
	}
}

func (e *EnergyAnalyser) WriteNetworkEnergy(w io.Writer, timestamp uint64) {
	fmt.Fprintf(w, "Duration of the simulated network (in milliseconds): %d\n", timestamp/UsPerMs)
	fmt.Fprintf(w, "Time (ms)\tDisabled (mJ)\tIdle (mJ)\tTransmiting (mJ)\tReceiving (mJ)\n")
	for _, snapshot := range e.networkHistory {
		fmt.Fprintf(w, "%d\t%f\t%f\t%f\t%f\n",
			snapshot.Timestamp/UsPerMs,
			snapshot.EnergyConsDisabled,
			snapshot.EnergyConsSleep,
			snapshot.EnergyConsTx,
			snapshot.EnergyConsRx,
		)
	}
}

func (e *EnergyAnalyser) ClearEnergyData() {
	logger.Debugf("Node's energy data cleared")
	e.networkHistory = make([]NetworkConsumption, 0, 64)
	e.energyHistoryByNodes = make([][]*visualize.NodeEnergy, 0, 64)
}

func (e *EnergyAnalyser) SetTitle(title string) {
	e.title = title
}

func NewEnergyAnalyser(consumption Consumption) *EnergyAnalyser {
	return &EnergyAnalyser{
		nodes:                make(map[NodeId]*NodeEnergy),
		consumption:          consumption,
		networkHistory:       make([]NetworkConsumption, 0, 64),
		energyHistoryByNodes: make([][]*visualize.NodeEnergy, 0, 64),
	}
}
