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

package sixlowpan

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
)

func buildPacket(t *testing.T, src, dst string, tc uint8, fl uint32, hlim uint8, payload []byte) []byte {
	ip := &layers.IPv6{
		Version:      6,
		TrafficClass: tc,
		FlowLabel:    fl,
		NextHeader:   layers.IPProtocolUDP,
		HopLimit:     hlim,
		SrcIP:        net.ParseIP(src),
		DstIP:        net.ParseIP(dst),
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ip,
		gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestLinkAddr(t *testing.T) {
	a := LinkAddr{PanId: 0, Short: 1}
	assert.Equal(t, "02:00:00:00:00:01", a.PseudoMac48().String())
	assert.Equal(t, [8]byte{0, 0, 0, 0xff, 0xfe, 0, 0, 1}, a.IID())
	assert.Equal(t, a.IID(), Eui64(a.PseudoMac48()))
	assert.Equal(t, "fe80::ff:fe00:1", a.LinkLocalAddr().String())

	b := LinkAddr{PanId: 0x1234, Short: 0xabcd}
	assert.Equal(t, "02:12:34:00:ab:cd", b.PseudoMac48().String())
	assert.Equal(t, "2001:2::12:34ff:fe00:abcd", MakeAddr(netip.MustParseAddr("2001:2::"), Eui64(b.PseudoMac48())).String())
	assert.True(t, LinkAddr{Short: 0xffff}.IsBroadcast())
}

func TestIphcRoundTrip(t *testing.T) {
	l1 := LinkAddr{PanId: 0, Short: 1}
	l2 := LinkAddr{PanId: 0, Short: 2}
	ctx := NewContextTable()
	require.NoError(t, ctx.Add(0, netip.MustParsePrefix("2001:2::/64")))
	require.NoError(t, ctx.Add(3, netip.MustParsePrefix("2001:db8:1::/48")))
	payload := []byte("0123456789abcdef")

	cases := []struct {
		name    string
		src     string
		dst     string
		tc      uint8
		fl      uint32
		hlim    uint8
		ctx     *ContextTable
		hdrLen  int
		srcLink LinkAddr
	}{
		{"link-local elided", "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0, 0, 64, nil, 3, l1},
		{"link-local 16 bit", "fe80::ff:fe00:7", "fe80::ff:fe00:2", 0, 0, 64, nil, 5, l1},
		{"link-local 64 bit", "fe80::1:2:3:4", "fe80::ff:fe00:2", 0, 0, 64, nil, 11, l1},
		{"global inline", "2001:2::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, nil, 35, l1},
		{"global context 0", "2001:2::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, ctx, 3, l1},
		{"global context 3", "2001:db8:1::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, ctx, 4, l1},
		{"multicast 8 bit", "fe80::ff:fe00:1", "ff02::1", 0, 0, 255, nil, 4, l1},
		{"multicast 32 bit", "fe80::ff:fe00:1", "ff05::1:3", 0, 0, 1, nil, 7, l1},
		{"multicast 48 bit", "fe80::ff:fe00:1", "ff05::12:3456:789a", 0, 0, 1, nil, 9, l1},
		{"multicast inline", "fe80::ff:fe00:1", "ff05:1::1", 0, 0, 1, nil, 19, l1},
		{"hop limit inline", "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0, 0, 17, nil, 4, l1},
		{"traffic class", "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0xb9, 0, 64, nil, 4, l1},
		{"flow label", "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0x01, 0xabcde, 64, nil, 6, l1},
		{"traffic class and flow label", "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0xb9, 0x12345, 64, nil, 7, l1},
		{"unspecified source", "::", "ff02::1:ff00:2", 0, 0, 255, nil, 9, l1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pkt := buildPacket(t, c.src, c.dst, c.tc, c.fl, c.hlim, payload)
			comp, err := Compress(pkt, c.srcLink, l2, c.ctx)
			require.NoError(t, err)
			assert.Equal(t, c.hdrLen, len(comp)-len(payload))

			dec, err := Decompress(comp, c.srcLink, l2, c.ctx)
			require.NoError(t, err)
			assert.Equal(t, pkt, dec)
		})
	}
}

func TestIphcErrors(t *testing.T) {
	l := LinkAddr{Short: 1}
	_, err := Compress([]byte{0x60, 0}, l, l, nil)
	assert.Error(t, err)
	_, err = Decompress([]byte{0x41, 0}, l, l, nil)
	assert.Error(t, err)
	// truncated inline source address
	_, err = Decompress([]byte{0x7a, 0x00, 0x11, 0x20, 0x01}, l, l, nil)
	assert.Error(t, err)
	// context 1 is unknown
	_, err = Decompress([]byte{0x7a, 0xf3, 0x10, 0x11}, l, l, NewContextTable())
	assert.Error(t, err)

	ctx := NewContextTable()
	assert.Error(t, ctx.Add(16, netip.MustParsePrefix("2001::/64")))
	assert.Error(t, ctx.Add(1, netip.MustParsePrefix("10.0.0.0/8")))
	require.NoError(t, ctx.Add(1, netip.MustParsePrefix("2001:2::/64")))
	_, ok := ctx.Get(1)
	assert.True(t, ok)
	ctx.Remove(1)
	_, ok = ctx.Get(1)
	assert.False(t, ok)
}

func newTestDispatcher() *dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(progctx.New(context.Background()), dispatcher.DefaultConfig())
}

func TestFragmentReassembly(t *testing.T) {
	src := LinkAddr{Short: 1}
	dst := LinkAddr{Short: 2}
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	pkt := buildPacket(t, "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0, 0, 64, payload)
	hdr, err := compressHeader(pkt, src, dst, nil)
	require.NoError(t, err)

	frags, err := fragment(hdr, pkt[ipv6HeaderLen:], 0x1234, 100)
	require.NoError(t, err)
	require.Len(t, frags, 4)
	for _, f := range frags {
		assert.LessOrEqual(t, len(f), 100)
	}
	assert.Equal(t, byte(dispatchFrag1), frags[0][0]&dispatchFragMask)
	assert.Equal(t, byte(dispatchFragN), frags[1][0]&dispatchFragMask)
	assert.Equal(t, 340, int(frags[0][0]&0x07)<<8|int(frags[0][1]))

	var cnt Counters
	disp := newTestDispatcher()
	r := newReassembler(disp, &cnt)

	// out of order with a duplicate
	order := []int{2, 0, 3, 2, 1}
	var out []byte
	for i, idx := range order {
		res, err := r.add(frags[idx], src, dst, nil)
		require.NoError(t, err)
		if i < len(order)-1 {
			assert.Nil(t, res)
		} else {
			out = res
		}
	}
	assert.Equal(t, pkt, out)
	assert.Equal(t, 0, r.count())
	assert.Equal(t, uint64(0), cnt.ReassemblyOverlaps)
}

func TestReassemblyTimeout(t *testing.T) {
	src := LinkAddr{Short: 1}
	dst := LinkAddr{Short: 2}
	pkt := buildPacket(t, "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0, 0, 64, make([]byte, 200))
	hdr, err := compressHeader(pkt, src, dst, nil)
	require.NoError(t, err)
	frags, err := fragment(hdr, pkt[ipv6HeaderLen:], 7, 100)
	require.NoError(t, err)

	var cnt Counters
	disp := newTestDispatcher()
	r := newReassembler(disp, &cnt)
	res, err := r.add(frags[0], src, dst, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, r.count())

	disp.RunUntil(DefaultReassemblyTimeoutUs - 1)
	assert.Equal(t, 1, r.count())
	disp.RunUntil(DefaultReassemblyTimeoutUs)
	assert.Equal(t, 0, r.count())
	assert.Equal(t, uint64(1), cnt.ReassemblyTimeouts)

	// the late fragment starts a new datagram that never completes
	res, err = r.add(frags[1], src, dst, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFragmentTooLarge(t *testing.T) {
	_, err := fragment(make([]byte, 3), make([]byte, 2100), 1, 100)
	assert.Error(t, err)
	_, err = fragment(make([]byte, 90), make([]byte, 200), 1, 100)
	assert.Error(t, err)
}

func newTestPair(t *testing.T) (*dispatcher.Dispatcher, *NetDevice, *NetDevice) {
	prng.Init(1, 0)
	disp := newTestDispatcher()
	ch := lrwpan.NewChannel(disp, DefaultChannel, &radiomodel.FixedRss{RssDbm: -50}, prng.NewStream("channel"))
	var devs []*lrwpan.Device
	for i := 1; i <= 2; i++ {
		devs = append(devs, lrwpan.NewDevice(NodeId(i), ch, mobility.NewConstantPosition(Vector{}),
			lrwpan.DefaultConfig(), prng.NewStream("mac")))
	}
	lrwpan.CreateAssociatedPan(devs, 0)
	return disp, NewNetDevice(devs[0], disp, nil), NewNetDevice(devs[1], disp, nil)
}

func TestNetDeviceSendReceive(t *testing.T) {
	for _, iphc := range []bool{true, false} {
		disp, a, b := newTestPair(t)
		a.SetUseIphc(iphc)
		var got [][]byte
		var gotSrc LinkAddr
		b.SetReceiveCallback(func(pkt []byte, src, dst LinkAddr) {
			got = append(got, pkt)
			gotSrc = src
			assert.Equal(t, b.LinkAddr(), dst)
		})

		small := buildPacket(t, "2001:2::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, make([]byte, 40))
		large := buildPacket(t, "2001:2::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, make([]byte, 500))
		require.NoError(t, a.Send(small, b.LinkAddr()))
		require.NoError(t, a.Send(large, b.LinkAddr()))
		disp.RunUntil(UsPerSec)

		require.Len(t, got, 2)
		assert.Equal(t, small, got[0])
		assert.Equal(t, large, got[1])
		assert.Equal(t, LinkAddr{PanId: 0, Short: 1}, gotSrc)
		assert.Equal(t, uint64(2), a.Counters.TxPackets)
		assert.Greater(t, a.Counters.TxFragments, uint64(4))
		assert.Equal(t, uint64(0), a.Counters.TxFailures)
		assert.Equal(t, uint64(2), b.Counters.RxPackets)
		assert.Equal(t, a.Counters.TxFragments, b.Counters.RxFragments)
		assert.Equal(t, 0, b.PendingReassemblies())
	}
}

func TestNetDeviceContext(t *testing.T) {
	disp, a, b := newTestPair(t)
	require.NoError(t, a.AddContext(0, "2001:2::/64"))
	require.NoError(t, b.AddContext(0, "2001:2::/64"))
	assert.Error(t, a.AddContext(0, "bogus"))

	var got []byte
	b.SetReceiveCallback(func(pkt []byte, src, dst LinkAddr) {
		got = pkt
	})
	pkt := buildPacket(t, "2001:2::ff:fe00:1", "2001:2::ff:fe00:2", 0, 0, 64, []byte("ping"))
	require.NoError(t, a.Send(pkt, b.LinkAddr()))
	disp.RunUntil(UsPerSec)
	assert.Equal(t, pkt, got)
}

func TestNetDeviceTxFailure(t *testing.T) {
	disp, a, b := newTestPair(t)
	b.Device().Fail()
	pkt := buildPacket(t, "fe80::ff:fe00:1", "fe80::ff:fe00:2", 0, 0, 64, []byte("x"))
	require.NoError(t, a.Send(pkt, b.LinkAddr()))
	assert.Error(t, a.Send([]byte{1, 2, 3}, b.LinkAddr()))
	disp.RunUntil(UsPerSec)
	assert.Equal(t, uint64(1), a.Counters.TxFailures)
	assert.Equal(t, uint64(1), a.Counters.TxDropped)
}
