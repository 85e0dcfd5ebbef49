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

package visualize_statslog

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

func readLines(t *testing.T, name string) []string {
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestStatslogVisualizer(t *testing.T) {
	dir := t.TempDir()
	sv := NewStatslogVisualizer(dir, 7)
	sv.Init()

	cfg := DefaultNodeConfig()
	sv.AddNode(1, &cfg)
	sv.AddNode(2, &cfg)
	sv.AdvanceTime(1000000, 1)
	sv.OnSignalSample(&visualize.SignalSample{Timestamp: 1000000, NodeId: 2, PeerId: 1, Distance: 6,
		RxPowerDbm: -81.6, SnrDb: 19.4})
	sv.Send(1, 2, &visualize.MsgVisualizeInfo{})
	sv.OnPingReply(&visualize.PingReply{Seq: 1})
	sv.OnPingReply(&visualize.PingReply{Seq: 2, Lost: true})
	sv.AdvanceTime(2000000, 1)
	// no change, no entry
	sv.AdvanceTime(3000000, 1)
	sv.OnNodeFail(2)
	sv.Stop()

	stats := readLines(t, getStatsLogFileName(dir, 7))
	require.Len(t, stats, 4)
	assert.Equal(t, "timeSec,nNodes,nFailed,nFrames,nPingReplies,nPingLost", stats[0])
	assert.Equal(t, "    0.000000,   2,  0,     0,    0,    0", stats[1])
	assert.Equal(t, "    1.000000,   2,  0,     1,    1,    1", stats[2])
	assert.Equal(t, "    3.000000,   2,  1,     1,    1,    1", stats[3])

	signal := readLines(t, getSignalLogFileName(dir, 7))
	require.Len(t, signal, 2)
	assert.Equal(t, "timeSec,node,peer,distanceM,rxPowerDbm,snrDb", signal[0])
	assert.Equal(t, "    1.000000,   2,  1,    6.0000,  -81.6000,   19.4000", signal[1])
}

func TestStatslogNoDir(t *testing.T) {
	sv := NewStatslogVisualizer("/nonexistent-dir/sub", 1)
	sv.Init()
	sv.OnSignalSample(&visualize.SignalSample{})
	sv.Stop()
}
