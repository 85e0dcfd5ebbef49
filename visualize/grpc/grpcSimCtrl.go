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
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

// grpcSimCtrl steers a remote simulation through the Control method.
type grpcSimCtrl struct {
	ctx  context.Context
	conn grpc.ClientConnInterface
}

func (gsc *grpcSimCtrl) control(fields map[string]interface{}) error {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	_, err = invokeControl(gsc.ctx, gsc.conn, req)
	return err
}

func (gsc *grpcSimCtrl) CtrlSetSpeed(speed float64) error {
	return gsc.control(map[string]interface{}{
		"op":    "speed",
		"speed": speed,
	})
}

func (gsc *grpcSimCtrl) CtrlSetNodeFailed(nodeid NodeId, failed bool) error {
	logger.AssertTrue(nodeid > 0)

	op := "recover"
	if failed {
		op = "fail"
	}
	return gsc.control(map[string]interface{}{
		"op":   op,
		"node": nodeid,
	})
}

func (gsc *grpcSimCtrl) CtrlMoveNodeTo(nodeid NodeId, pos Vector, durationSec float64) error {
	return gsc.control(map[string]interface{}{
		"op":       "move",
		"node":     nodeid,
		"x":        pos.X,
		"y":        pos.Y,
		"z":        pos.Z,
		"duration": durationSec,
	})
}

func NewGrpcSimulationController(ctx context.Context, conn grpc.ClientConnInterface) visualize.SimulationController {
	return &grpcSimCtrl{
		ctx:  ctx,
		conn: conn,
	}
}
