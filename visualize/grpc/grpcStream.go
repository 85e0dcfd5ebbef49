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
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// grpcStream is one client's event stream. A non-empty filter restricts the event types sent.
type grpcStream struct {
	grpc.ServerStream
	filter map[string]struct{}
	mu     sync.Mutex
}

func eventType(event *structpb.Struct) string {
	return event.GetFields()["type"].GetStringValue()
}

// acceptsEvent determines if the stream will accept the given event, based on its filter.
// Heartbeats and time advances always pass.
func (gst *grpcStream) acceptsEvent(event *structpb.Struct) bool {
	if len(gst.filter) == 0 {
		return true
	}
	typ := eventType(event)
	if typ == evtHeartbeat || typ == evtAdvanceTime {
		return true
	}
	_, ok := gst.filter[typ]
	return ok
}

func (gst *grpcStream) Send(event *structpb.Struct) error {
	if !gst.acceptsEvent(event) {
		return nil
	}
	gst.mu.Lock()
	defer gst.mu.Unlock()
	return gst.SendMsg(event)
}

func (gst *grpcStream) close() {
}

func newGrpcStream(stream grpc.ServerStream, filter []string) *grpcStream {
	gst := &grpcStream{
		ServerStream: stream,
		filter:       map[string]struct{}{},
	}
	for _, typ := range filter {
		gst.filter[typ] = struct{}{}
	}
	return gst
}
