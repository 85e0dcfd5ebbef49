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
	"io"
)

// PrintDevices lists every device with its pseudo MAC-48 and global IPv6 address, then the device count.
func (s *Simulation) PrintDevices(w io.Writer) error {
	for i, node := range s.devices {
		if _, err := fmt.Fprintf(w, "Device %d: pseudo-Mac-48 %s, IPv6 Address %s\n", i,
			node.netdev.LinkAddr().PseudoMac48(), node.GlobalAddr()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total devices: %d\n", len(s.devices))
	return err
}

// NodeInfo is a snapshot of a node for listings.
type NodeInfo struct {
	Id       int     `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Type     string  `yaml:"type" json:"type"`
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Z        float64 `yaml:"z" json:"z"`
	Speed    float64 `yaml:"speed" json:"speed"`
	Short    string  `yaml:"short" json:"short"`
	Address  string  `yaml:"ipv6" json:"address"`
	Radio    string  `yaml:"radio" json:"radio"`
	Failed   bool    `yaml:"failed,omitempty" json:"failed"`
	Moving   bool    `yaml:"moving,omitempty" json:"moving"`
	MacTx    uint64  `yaml:"mac-tx" json:"macTx"`
	MacRx    uint64  `yaml:"mac-rx" json:"macRx"`
	MacNoAck uint64  `yaml:"mac-noack" json:"macNoAck"`
}

// NodeInfos returns a snapshot of all nodes, sorted by id.
func (s *Simulation) NodeInfos() []NodeInfo {
	res := make([]NodeInfo, 0, len(s.nodes))
	for _, id := range s.GetNodes() {
		node := s.nodes[id]
		pos := node.Position()
		res = append(res, NodeInfo{
			Id:       id,
			Name:     node.Name(),
			Type:     node.cfg.Type,
			X:        pos.X,
			Y:        pos.Y,
			Z:        pos.Z,
			Speed:    node.Velocity().Length(),
			Short:    fmt.Sprintf("0x%04x", node.dev.ShortAddr()),
			Address:  node.GlobalAddr().String(),
			Radio:    node.dev.State().String(),
			Failed:   node.IsFailed(),
			Moving:   node.waypoint != nil && node.waypoint.IsActive(),
			MacTx:    node.dev.Counters.MacTxSuccess,
			MacRx:    node.dev.Counters.MacRxData,
			MacNoAck: node.dev.Counters.MacTxNoAck,
		})
	}
	return res
}
