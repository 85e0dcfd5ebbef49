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
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
)

// FilterMetadataKey is the request metadata key selecting the event types a client wants.
const FilterMetadataKey = "event-filter"

const heartbeatInterval = time.Second

type grpcServer struct {
	vis                *grpcVisualizer
	server             *grpc.Server
	address            string
	visualizingStreams map[*grpcStream]struct{}
}

func (gs *grpcServer) Visualize(req *emptypb.Empty, stream grpc.ServerStream) error {
	var err error
	contextDone := stream.Context().Done()
	heartbeatEvent := newEvent(evtHeartbeat, nil)
	var heartbeatTicker *time.Ticker

	var filter []string
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		filter = md.Get(FilterMetadataKey)
	}
	gstream := newGrpcStream(stream, filter)
	logger.Debugf("New gRPC visualize request received (filter %v).", filter)

	gs.vis.Lock()
	err = gs.vis.prepareStream(gstream)
	if err != nil {
		gs.vis.Unlock()
		goto exit
	}
	gs.visualizingStreams[gstream] = struct{}{}
	gs.vis.Unlock()

	defer gs.disposeStream(gstream)

	heartbeatTicker = time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-heartbeatTicker.C:
			err = gstream.Send(heartbeatEvent)
			if err != nil {
				goto exit
			}
		case <-contextDone:
			err = stream.Context().Err()
			goto exit
		}
	}

exit:
	logger.Debugf("Visualize stream exit: %v", err)
	return err
}

// Control applies a request {"op": "speed"|"move"|"fail"|"recover", ...} to the simulation.
func (gs *grpcServer) Control(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctrl := gs.vis.controller()
	if ctrl == nil {
		return nil, status.Error(codes.Unavailable, "no simulation controller")
	}

	fields := req.GetFields()
	node := NodeId(fields["node"].GetNumberValue())
	var err error
	switch op := fields["op"].GetStringValue(); op {
	case "speed":
		err = ctrl.CtrlSetSpeed(fields["speed"].GetNumberValue())
	case "move":
		pos := Vector{X: fields["x"].GetNumberValue(), Y: fields["y"].GetNumberValue(), Z: fields["z"].GetNumberValue()}
		err = ctrl.CtrlMoveNodeTo(node, pos, fields["duration"].GetNumberValue())
	case "fail", "recover":
		err = ctrl.CtrlSetNodeFailed(node, op == "fail")
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown op %q", op)
	}
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return structpb.NewStruct(map[string]interface{}{"ok": true})
}

func (gs *grpcServer) Run() error {
	lis, err := net.Listen("tcp", gs.address)
	if err != nil {
		return err
	}
	logger.Infof("gRPC visualizer server serving on %s ...", lis.Addr())
	return gs.server.Serve(lis)
}

func (gs *grpcServer) SendEvent(event *structpb.Struct) {
	for stream := range gs.visualizingStreams {
		_ = stream.Send(event)
	}
}

func (gs *grpcServer) stop() {
	for stream := range gs.visualizingStreams {
		stream.close()
	}
	gs.server.Stop()
}

func (gs *grpcServer) disposeStream(stream *grpcStream) {
	gs.vis.Lock()
	delete(gs.visualizingStreams, stream)
	gs.vis.Unlock()
	stream.close()
}

func newGrpcServer(vis *grpcVisualizer, address string) *grpcServer {
	server := grpc.NewServer(grpc.ReadBufferSize(1024*8), grpc.WriteBufferSize(1024*1024*1))
	gs := &grpcServer{
		vis:                vis,
		server:             server,
		address:            address,
		visualizingStreams: map[*grpcStream]struct{}{},
	}
	server.RegisterService(&visualizeServiceDesc, gs)
	return gs
}
