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

package inet

import (
	"bytes"
	"context"
	"net/netip"
	"strings"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	"github.com/openthread/lowpan-ns/sixlowpan"
	. "github.com/openthread/lowpan-ns/types"
)

type testNet struct {
	disp   *dispatcher.Dispatcher
	stacks []*Stack
	ifaces []*Interface
	addrs  []netip.Addr
}

func newTestNet(t *testing.T, n int) *testNet {
	prng.Init(1, 0)
	tn := &testNet{
		disp: dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig()),
	}
	ch := lrwpan.NewChannel(tn.disp, DefaultChannel, &radiomodel.FixedRss{RssDbm: -50}, prng.NewStream("channel"))
	var devs []*lrwpan.Device
	for i := 1; i <= n; i++ {
		devs = append(devs, lrwpan.NewDevice(NodeId(i), ch, mobility.NewConstantPosition(Vector{}),
			lrwpan.DefaultConfig(), prng.NewStream("mac")))
	}
	lrwpan.CreateAssociatedPan(devs, 0)
	for _, d := range devs {
		s := NewStack(d.NodeId(), tn.disp)
		tn.stacks = append(tn.stacks, s)
		tn.ifaces = append(tn.ifaces, s.AddInterface(sixlowpan.NewNetDevice(d, tn.disp, nil)))
	}

	var h AddressHelper
	require.NoError(t, h.SetBase("2001:2::/64"))
	addrs, err := h.Assign(tn.ifaces)
	require.NoError(t, err)
	tn.addrs = addrs
	PopulateNeighborCaches(tn.ifaces)
	return tn
}

func TestAddressAssignment(t *testing.T) {
	tn := newTestNet(t, 3)
	assert.Equal(t, "2001:2::ff:fe00:1", tn.addrs[0].String())
	assert.Equal(t, "2001:2::ff:fe00:3", tn.addrs[2].String())
	iface := tn.ifaces[1]
	assert.Equal(t, "fe80::ff:fe00:2", iface.Address(0).String())
	assert.Equal(t, "2001:2::ff:fe00:2", iface.Address(1).String())
	assert.Equal(t, iface.Address(1), iface.GlobalAddr())
	assert.False(t, iface.Address(2).IsValid())
	assert.Equal(t, 1, iface.Index)
	assert.Same(t, iface, tn.stacks[1].Interface(1))
	assert.Error(t, iface.AddAddress(netip.MustParsePrefix("2001:2::ff:fe00:2/64")))

	var h AddressHelper
	assert.Error(t, h.SetBase("2001:2::/48"))
	assert.Error(t, h.SetBase("10.0.0.0/64"))
	_, err := h.Assign(tn.ifaces)
	assert.Error(t, err)
}

func TestNeighborCache(t *testing.T) {
	tn := newTestNet(t, 3)
	entries := tn.ifaces[0].Neighbors()
	// link-local and global of the two other nodes
	require.Len(t, entries, 4)
	assert.Equal(t, "2001:2::ff:fe00:2", entries[0].Addr.String())
	assert.Equal(t, "fe80::ff:fe00:3", entries[3].Addr.String())

	link, ok := tn.ifaces[0].LookupNeighbor(tn.addrs[2])
	assert.True(t, ok)
	assert.Equal(t, sixlowpan.LinkAddr{PanId: 0, Short: 3}, link)
	link, ok = tn.ifaces[0].LookupNeighbor(netip.MustParseAddr("ff02::1"))
	assert.True(t, ok)
	assert.True(t, link.IsBroadcast())
	_, ok = tn.ifaces[0].LookupNeighbor(netip.MustParseAddr("2001:2::99"))
	assert.False(t, ok)

	tn.disp.RunUntil(9 * UsPerSec)
	var buf bytes.Buffer
	require.NoError(t, WriteNeighborCacheAll(&buf, tn.stacks[:1]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "NDISC Cache of node 1 at time +9s", lines[0])
	assert.Equal(t, "2001:2::ff:fe00:2 dev 1 lladdr 02:00:00:00:00:02 STATIC_AUTOGENERATED", lines[1])
}

func TestEcho(t *testing.T) {
	tn := newTestNet(t, 3)
	var replies []*EchoReply
	id := tn.stacks[0].RegisterEchoHandler(func(r *EchoReply) {
		replies = append(replies, r)
	})

	data := []byte("0123456789abcdef0123456789abcdef")
	require.NoError(t, tn.stacks[0].SendEchoRequest(tn.addrs[1], id, 1, data))
	require.NoError(t, tn.stacks[0].SendEchoRequest(tn.addrs[2], id, 2, data))
	tn.disp.RunUntil(UsPerSec)

	require.Len(t, replies, 2)
	bySeq := map[uint16]*EchoReply{}
	for _, r := range replies {
		bySeq[r.Seq] = r
	}
	require.Contains(t, bySeq, uint16(1))
	require.Contains(t, bySeq, uint16(2))
	assert.Equal(t, tn.addrs[1], bySeq[1].Src)
	assert.Equal(t, data, bySeq[1].Data)
	assert.Equal(t, DefaultHopLimit, bySeq[1].HopLimit)
	assert.Equal(t, tn.addrs[2], bySeq[2].Src)
	assert.Equal(t, uint64(1), tn.stacks[1].Counters.EchoRequestsRx)
	assert.Equal(t, uint64(1), tn.stacks[1].Counters.EchoRepliesTx)
	assert.Equal(t, uint64(2), tn.stacks[0].Counters.EchoRepliesRx)

	// replies with an unknown identifier are counted but not dispatched
	tn.stacks[0].UnregisterEchoHandler(id)
	require.NoError(t, tn.stacks[0].SendEchoRequest(tn.addrs[1], id, 3, data))
	tn.disp.RunUntil(2 * UsPerSec)
	assert.Len(t, replies, 2)
	assert.Equal(t, uint64(1), tn.stacks[0].Counters.EchoUnmatchedRx)
}

func TestEchoLinkLocalAndLoopback(t *testing.T) {
	tn := newTestNet(t, 2)
	var replies []*EchoReply
	id := tn.stacks[0].RegisterEchoHandler(func(r *EchoReply) {
		replies = append(replies, r)
	})
	ll := tn.ifaces[1].LinkLocalAddr()
	src, err := tn.stacks[0].SourceAddressFor(ll)
	require.NoError(t, err)
	assert.Equal(t, tn.ifaces[0].LinkLocalAddr(), src)

	require.NoError(t, tn.stacks[0].SendEchoRequest(ll, id, 1, []byte{1}))
	require.NoError(t, tn.stacks[0].SendEchoRequest(tn.addrs[0], id, 2, []byte{2}))
	tn.disp.RunUntil(UsPerSec)

	require.Len(t, replies, 2)
	// the loopback reply arrives first
	assert.Equal(t, tn.addrs[0], replies[0].Src)
	assert.Equal(t, ll, replies[1].Src)
}

func TestMulticastEchoNotAnswered(t *testing.T) {
	tn := newTestNet(t, 3)
	id := tn.stacks[0].RegisterEchoHandler(func(r *EchoReply) {})
	require.NoError(t, tn.stacks[0].SendEchoRequest(netip.MustParseAddr("ff02::1"), id, 1, nil))
	tn.disp.RunUntil(UsPerSec)
	assert.Equal(t, uint64(1), tn.stacks[1].Counters.EchoRequestsRx)
	assert.Equal(t, uint64(1), tn.stacks[2].Counters.EchoRequestsRx)
	assert.Equal(t, uint64(0), tn.stacks[1].Counters.EchoRepliesTx)
}

func TestSendErrors(t *testing.T) {
	tn := newTestNet(t, 2)
	err := tn.stacks[0].SendEchoRequest(netip.MustParseAddr("2001:5::1"), 1, 1, nil)
	assert.Error(t, err)
	err = tn.stacks[0].SendEchoRequest(netip.MustParseAddr("2001:2::99"), 1, 1, nil)
	assert.Error(t, err)
	assert.Equal(t, uint64(2), tn.stacks[0].Counters.TxNoRoute)
}

func TestProtocolHandler(t *testing.T) {
	tn := newTestNet(t, 2)
	var got []byte
	tn.stacks[1].RegisterProtocol(layers.IPProtocolUDP, func(ip *layers.IPv6, payload []byte) {
		got = append([]byte(nil), payload...)
	})
	require.NoError(t, tn.stacks[0].Send(tn.addrs[1], layers.IPProtocolUDP, []byte("datagram")))
	require.NoError(t, tn.stacks[0].Send(tn.addrs[1], layers.IPProtocolTCP, []byte("segment")))
	tn.disp.RunUntil(UsPerSec)
	assert.Equal(t, []byte("datagram"), got)
	assert.Equal(t, uint64(1), tn.stacks[1].Counters.RxDropped)
}
