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
	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

type simulationController struct {
	sim *Simulation
}

func (sc *simulationController) CtrlSetSpeed(speed float64) error {
	sim := sc.sim
	sim.PostAsync(true, func() {
		sim.SetSpeed(speed)
	})
	return nil
}

func (sc *simulationController) CtrlSetNodeFailed(nodeid NodeId, failed bool) error {
	sim := sc.sim
	sim.PostAsync(true, func() {
		if err := sim.SetNodeFailed(nodeid, failed); err != nil {
			logger.Warnf("CtrlSetNodeFailed: %v", err)
		}
	})
	return nil
}

func (sc *simulationController) CtrlMoveNodeTo(nodeid NodeId, pos Vector, durationSec float64) error {
	sim := sc.sim
	sim.PostAsync(true, func() {
		if err := sim.MoveNodeTo(nodeid, pos, durationSec); err != nil {
			logger.Warnf("CtrlMoveNodeTo: %v", err)
		}
	})
	return nil
}

func NewSimulationController(sim *Simulation) visualize.SimulationController {
	return &simulationController{sim}
}
