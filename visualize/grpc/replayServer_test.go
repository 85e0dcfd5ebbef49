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
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize/grpc/replay"
)

func TestReplayServer(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "test.replay")
	rep := replay.NewReplay(fn)
	rep.Append(newEvent(evtAddNode, posFields(1, Vector{X: 1})))
	rep.Append(newEvent(evtSetNodePos, posFields(1, Vector{X: 2})))
	rep.Close()

	rs, err := NewReplayServer(fn, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = rs.server.Serve(lis)
	}()
	defer rs.server.Stop()
	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, s string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	vc, err := NewVisualizeClient(ctx, conn)
	require.NoError(t, err)

	ev := recvNonHeartbeat(t, vc)
	assert.Equal(t, evtAddNode, eventType(ev))
	ev = recvNonHeartbeat(t, vc)
	assert.Equal(t, evtSetNodePos, eventType(ev))
	assert.Equal(t, 2.0, ev.GetFields()["x"].GetNumberValue())

	for {
		ev, err = vc.Recv()
		if err != nil {
			break
		}
		assert.Equal(t, evtHeartbeat, eventType(ev))
	}
	assert.Equal(t, io.EOF, err)

	_, err = invokeControl(ctx, conn, newEvent("speed", nil))
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = NewReplayServer(filepath.Join(t.TempDir(), "missing.replay"), 1)
	assert.Error(t, err)
}
