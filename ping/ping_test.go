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

package ping

import (
	"bytes"
	"context"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/inet"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	"github.com/openthread/lowpan-ns/sixlowpan"
	. "github.com/openthread/lowpan-ns/types"
)

func setupPair(t *testing.T) (*dispatcher.Dispatcher, []*inet.Stack, []netip.Addr, []*lrwpan.Device) {
	prng.Init(3, 0)
	disp := dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig())
	ch := lrwpan.NewChannel(disp, DefaultChannel, &radiomodel.FixedRss{RssDbm: -70}, prng.NewStream("channel"))
	var devs []*lrwpan.Device
	var stacks []*inet.Stack
	var ifaces []*inet.Interface
	for i := 1; i <= 2; i++ {
		d := lrwpan.NewDevice(NodeId(i), ch, mobility.NewConstantPosition(Vector{}), lrwpan.DefaultConfig(),
			prng.NewStream("mac"))
		devs = append(devs, d)
	}
	lrwpan.CreateAssociatedPan(devs, 0)
	for _, d := range devs {
		s := inet.NewStack(d.NodeId(), disp)
		stacks = append(stacks, s)
		ifaces = append(ifaces, s.AddInterface(sixlowpan.NewNetDevice(d, disp, nil)))
	}
	var h inet.AddressHelper
	require.NoError(t, h.SetBase("2001:2::/64"))
	addrs, err := h.Assign(ifaces)
	require.NoError(t, err)
	inet.PopulateNeighborCaches(ifaces)
	return disp, stacks, addrs, devs
}

func TestPing(t *testing.T) {
	disp, stacks, addrs, _ := setupPair(t)
	p, err := New(stacks[0], disp, Config{
		Destination: addrs[1],
		Count:       5,
		Interval:    100 * UsPerMs,
		Size:        32,
		Start:       UsPerSec,
		Stop:        3 * UsPerSec,
	})
	require.NoError(t, err)
	var out bytes.Buffer
	p.SetOutput(&out)
	var replies []*Reply
	p.OnReply(func(r *Reply) {
		replies = append(replies, r)
	})
	p.Install()
	disp.RunUntil(5 * UsPerSec)

	assert.True(t, p.IsFinished())
	r := p.Report()
	assert.Equal(t, uint32(5), r.Transmitted)
	assert.Equal(t, uint32(5), r.Received)
	assert.Equal(t, 0.0, r.LossPercent)
	assert.Greater(t, r.RttMinMs, 0.0)
	assert.LessOrEqual(t, r.RttMinMs, r.RttAvgMs)
	assert.LessOrEqual(t, r.RttAvgMs, r.RttMaxMs)
	assert.Equal(t, 2000.0, r.DurationMs)
	require.Len(t, replies, 5)
	for i, rep := range replies {
		assert.Equal(t, uint16(i), rep.Seq)
		assert.False(t, rep.Lost)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "PING 2001:2::ff:fe00:2 - 32 bytes of data; 80 bytes including ICMP and IPv6 headers.", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "40 bytes from (2001:2::ff:fe00:2): icmp_seq=0 ttl=64 time="))
	assert.Equal(t, "--- 2001:2::ff:fe00:2 ping statistics ---", lines[6])
	assert.Equal(t, "5 packets transmitted, 5 received, 0% packet loss, time 2000ms", lines[7])
	assert.True(t, strings.HasPrefix(lines[8], "rtt min/avg/max/mdev = "))
}

func TestPingLost(t *testing.T) {
	disp, stacks, addrs, devs := setupPair(t)
	devs[1].Fail()
	p, err := New(stacks[0], disp, Config{
		Destination: addrs[1],
		Count:       3,
		Interval:    500 * UsPerMs,
		Size:        8,
		Start:       0,
		Stop:        4 * UsPerSec,
		Verbose:     Quiet,
	})
	require.NoError(t, err)
	var out bytes.Buffer
	p.SetOutput(&out)
	lost := 0
	p.OnReply(func(r *Reply) {
		if r.Lost {
			lost++
		}
	})
	p.Install()
	disp.RunUntil(5 * UsPerSec)

	r := p.Report()
	assert.Equal(t, uint32(3), r.Transmitted)
	assert.Equal(t, uint32(0), r.Received)
	assert.Equal(t, 100.0, r.LossPercent)
	assert.Equal(t, 3, lost)
	assert.Equal(t, "--- 2001:2::ff:fe00:2 ping statistics ---\n"+
		"3 packets transmitted, 0 received, 100% packet loss, time 4000ms\n", out.String())
}

func TestPingStopBeforeCount(t *testing.T) {
	disp, stacks, addrs, _ := setupPair(t)
	p, err := New(stacks[0], disp, Config{
		Destination: addrs[1],
		Count:       100,
		Interval:    100 * UsPerMs,
		Size:        32,
		Start:       UsPerSec,
		Stop:        1500 * UsPerMs,
		Verbose:     Silent,
	})
	require.NoError(t, err)
	var out bytes.Buffer
	p.SetOutput(&out)
	p.Install()
	disp.RunUntil(3 * UsPerSec)

	// sent at 1.0 to 1.4 s; the stop event at 1.5 s was queued before the send at 1.5 s
	r := p.Report()
	assert.Equal(t, uint32(5), r.Transmitted)
	assert.Empty(t, out.String())
}

func TestConfigErrors(t *testing.T) {
	disp, stacks, addrs, _ := setupPair(t)
	_, err := New(stacks[0], disp, Config{Interval: UsPerSec})
	assert.Error(t, err)
	_, err = New(stacks[0], disp, Config{Destination: addrs[1]})
	assert.Error(t, err)
	_, err = New(stacks[0], disp, Config{Destination: addrs[1], Interval: 1, Size: -1})
	assert.Error(t, err)
	_, err = New(stacks[0], disp, Config{Destination: addrs[1], Interval: 1, Start: 10, Stop: 5})
	assert.Error(t, err)

	m, err := ParseVerboseMode("quiet")
	assert.NoError(t, err)
	assert.Equal(t, Quiet, m)
	_, err = ParseVerboseMode("loud")
	assert.Error(t, err)
}
