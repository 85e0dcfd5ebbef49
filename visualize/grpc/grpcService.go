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
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName         = "lowpanns.VisualizeService"
	visualizeMethodName = "/" + serviceName + "/Visualize"
	controlMethodName   = "/" + serviceName + "/Control"
)

// visualizeServiceServer is the server API of the visualize service. Events are sent as
// google.protobuf.Struct messages, each carrying a "type" field.
type visualizeServiceServer interface {
	Visualize(*emptypb.Empty, grpc.ServerStream) error
	Control(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func visualizeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(visualizeServiceServer).Visualize(m, stream)
}

func controlHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(visualizeServiceServer).Control(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: controlMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(visualizeServiceServer).Control(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var visualizeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*visualizeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Control",
			Handler:    controlHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Visualize",
			Handler:       visualizeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "visualize.proto",
}

// VisualizeClient receives the event stream of a remote simulation.
type VisualizeClient struct {
	stream grpc.ClientStream
}

// NewVisualizeClient opens the event stream on conn.
func NewVisualizeClient(ctx context.Context, conn grpc.ClientConnInterface) (*VisualizeClient, error) {
	stream, err := conn.NewStream(ctx, &visualizeServiceDesc.Streams[0], visualizeMethodName)
	if err != nil {
		return nil, err
	}
	if err = stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err = stream.CloseSend(); err != nil {
		return nil, err
	}
	return &VisualizeClient{stream: stream}, nil
}

// Recv blocks until the next event arrives.
func (vc *VisualizeClient) Recv() (*structpb.Struct, error) {
	ev := new(structpb.Struct)
	if err := vc.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func invokeControl(ctx context.Context, conn grpc.ClientConnInterface, req *structpb.Struct) (*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, controlMethodName, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
