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

package types

const (
	NodeTypeAccessPoint = "ap"
	NodeTypeClient      = "client"
)

const (
	MobilityConstantPosition = "constant-position"
	MobilityConstantVelocity = "constant-velocity"
)

// Color is an RGB node color, used for animation output.
type Color struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

// NodeConfig is a generic config for a new simulated node (used in simulation, visualize, lrwpan ...
// packages).
type NodeConfig struct {
	ID         NodeId  `yaml:"id"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Mobility   string  `yaml:"mobility"`
	Position   Vector  `yaml:"position"`
	Color      Color   `yaml:"color"`
	TxPowerDbm DbValue `yaml:"tx-power"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ID:         InvalidNodeId,
		Type:       NodeTypeClient,
		Mobility:   MobilityConstantPosition,
		TxPowerDbm: DefaultTxPowerDbm,
		Color:      Color{255, 255, 255},
	}
}

// IsMobile returns true if the node uses a mobility model that can move.
func (cfg *NodeConfig) IsMobile() bool {
	return cfg.Mobility == MobilityConstantVelocity
}
