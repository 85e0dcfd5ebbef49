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
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/visualize/grpc/replay"
)

// ReplayServer plays back the entries of a replay file to every client of the visualize service,
// keeping their original spacing in time.
type ReplayServer struct {
	entries []*structpb.Struct
	speed   float64
	server  *grpc.Server
}

// NewReplayServer loads filename. A speed above 1 plays back faster than recorded.
func NewReplayServer(filename string, speed float64) (*ReplayServer, error) {
	entries, err := replay.ReadReplay(filename)
	if err != nil {
		return nil, err
	}
	if speed <= 0 {
		speed = 1
	}
	rs := &ReplayServer{
		entries: entries,
		speed:   speed,
		server:  grpc.NewServer(grpc.ReadBufferSize(1024*8), grpc.WriteBufferSize(1024*1024*1)),
	}
	rs.server.RegisterService(&visualizeServiceDesc, rs)
	return rs, nil
}

// Len returns the number of recorded events.
func (rs *ReplayServer) Len() int {
	return len(rs.entries)
}

// Serve blocks until ctx is done or the listener fails.
func (rs *ReplayServer) Serve(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		rs.server.Stop()
	}()
	logger.Infof("replay server serving %d events on %s ...", len(rs.entries), lis.Addr())
	err = rs.server.Serve(lis)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (rs *ReplayServer) Visualize(req *emptypb.Empty, stream grpc.ServerStream) error {
	defer logger.Infof("Visualize finished.")

	heartbeatEvent := newEvent(evtHeartbeat, nil)
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	startTime := time.Now()
	for _, entry := range rs.entries {
		fields := entry.GetFields()
		ts := time.Duration(fields["timestamp"].GetNumberValue()/rs.speed) * time.Microsecond
		wait := time.NewTimer(time.Until(startTime.Add(ts)))

	waitloop:
		for {
			select {
			case <-heartbeatTicker.C:
				if err := stream.SendMsg(heartbeatEvent); err != nil {
					wait.Stop()
					return err
				}
			case <-wait.C:
				break waitloop
			case <-stream.Context().Done():
				wait.Stop()
				return stream.Context().Err()
			}
		}

		if err := stream.SendMsg(fields["event"].GetStructValue()); err != nil {
			return err
		}
	}
	return nil
}

func (rs *ReplayServer) Control(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "can not control a replay")
}
