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

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/mobility"
	. "github.com/openthread/lowpan-ns/types"
)

// finalize fills in defaults for the i-th node of the scenario and checks its settings.
func (n *NodeSpec) finalize(i int) error {
	if n.ID == InvalidNodeId {
		n.ID = i + 1
	}
	if n.ID < 0 || n.ID > MaxNodeId {
		return errors.Errorf("node id %d out of range", n.ID)
	}
	if n.Name == "" {
		n.Name = fmt.Sprintf("node%d", n.ID)
	}
	switch n.Type {
	case "":
		n.Type = NodeTypeClient
	case NodeTypeAccessPoint, NodeTypeClient:
	default:
		return errors.Errorf("node %s: unknown type %q", n.Name, n.Type)
	}
	switch n.Mobility {
	case "":
		n.Mobility = MobilityConstantPosition
		if n.Waypoint != nil {
			n.Mobility = MobilityConstantVelocity
		}
	case MobilityConstantPosition, MobilityConstantVelocity:
	default:
		return errors.Errorf("node %s: unknown mobility %q", n.Name, n.Mobility)
	}
	if n.Waypoint != nil {
		if !n.IsMobile() {
			return errors.Errorf("node %s: waypoint needs mobility %s", n.Name, MobilityConstantVelocity)
		}
		if n.Waypoint.Duration <= 0 {
			return errors.Errorf("node %s: waypoint duration must be positive", n.Name)
		}
		action, err := mobility.ParseArrivalAction(n.Waypoint.Action)
		if err != nil {
			return errors.Wrapf(err, "node %s", n.Name)
		}
		n.Waypoint.Action = string(action)
	}
	return nil
}

// newMobility creates the mobility model of a node at its configured start position.
func newMobility(cfg *NodeConfig) mobility.Model {
	if cfg.IsMobile() {
		return mobility.NewConstantVelocity(cfg.Position)
	}
	return mobility.NewConstantPosition(cfg.Position)
}
