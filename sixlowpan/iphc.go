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
	"bytes"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

const (
	ipv6HeaderLen = 40

	dispatchIpv6     = 0x41
	dispatchIphc     = 0x60 // 011xxxxx
	dispatchIphcMask = 0xe0

	iphcTfShift   = 3
	iphcNh        = 0x04
	iphcHlimMask  = 0x03
	iphcCid       = 0x80
	iphcSac       = 0x40
	iphcSamShift  = 4
	iphcM         = 0x08
	iphcDac       = 0x04
	iphcAddrMask  = 0x03
	maxContextIds = 16
)

// ContextTable holds the compression contexts shared by all nodes of a 6LoWPAN.
type ContextTable struct {
	prefixes [maxContextIds]netip.Prefix
}

func NewContextTable() *ContextTable {
	return &ContextTable{}
}

// Add sets the prefix of context id.
func (t *ContextTable) Add(id uint8, prefix netip.Prefix) error {
	if id >= maxContextIds {
		return errors.Errorf("invalid context id %d", id)
	}
	if !prefix.IsValid() || !prefix.Addr().Is6() {
		return errors.Errorf("invalid context prefix %v", prefix)
	}
	t.prefixes[id] = prefix.Masked()
	return nil
}

func (t *ContextTable) Remove(id uint8) {
	if id < maxContextIds {
		t.prefixes[id] = netip.Prefix{}
	}
}

func (t *ContextTable) Get(id uint8) (netip.Prefix, bool) {
	if t == nil || id >= maxContextIds || !t.prefixes[id].IsValid() {
		return netip.Prefix{}, false
	}
	return t.prefixes[id], true
}

// lookup finds a context of at most 64 bits whose prefix, padded with zeros, equals the upper 64 bits
// of addr.
func (t *ContextTable) lookup(addr [16]byte) (uint8, bool) {
	if t == nil {
		return 0, false
	}
	for id, p := range t.prefixes {
		if !p.IsValid() || p.Bits() > 64 {
			continue
		}
		pb := p.Addr().As16()
		if bytes.Equal(pb[:8], addr[:8]) {
			return uint8(id), true
		}
	}
	return 0, false
}

// Compress replaces the IPv6 header of pkt with an IPHC header. src and dst are the link-layer addresses
// the frame is sent with.
func Compress(pkt []byte, src, dst LinkAddr, ctx *ContextTable) ([]byte, error) {
	hdr, err := compressHeader(pkt, src, dst, ctx)
	if err != nil {
		return nil, err
	}
	return append(hdr, pkt[ipv6HeaderLen:]...), nil
}

func compressHeader(pkt []byte, src, dst LinkAddr, ctx *ContextTable) ([]byte, error) {
	if len(pkt) < ipv6HeaderLen || pkt[0]>>4 != 6 {
		return nil, errors.Errorf("not an IPv6 packet (%d bytes)", len(pkt))
	}
	ip := &layers.IPv6{}
	if err := ip.DecodeFromBytes(pkt[:ipv6HeaderLen], gopacket.NilDecodeFeedback); err != nil {
		return nil, errors.Wrap(err, "decode IPv6 header")
	}

	var b0, b1 byte = dispatchIphc, 0
	var inline []byte

	// RFC 6282 reorders the traffic class to ECN then DSCP.
	ecn := ip.TrafficClass & 0x03
	dscp := ip.TrafficClass >> 2
	switch {
	case ip.TrafficClass == 0 && ip.FlowLabel == 0:
		b0 |= 3 << iphcTfShift
	case ip.FlowLabel == 0:
		b0 |= 2 << iphcTfShift
		inline = append(inline, ecn<<6|dscp)
	case dscp == 0:
		b0 |= 1 << iphcTfShift
		inline = append(inline, ecn<<6|byte(ip.FlowLabel>>16)&0x0f, byte(ip.FlowLabel>>8), byte(ip.FlowLabel))
	default:
		inline = append(inline, ecn<<6|dscp, byte(ip.FlowLabel>>16)&0x0f, byte(ip.FlowLabel>>8), byte(ip.FlowLabel))
	}

	inline = append(inline, byte(ip.NextHeader))

	switch ip.HopLimit {
	case 1:
		b0 |= 1
	case 64:
		b0 |= 2
	case 255:
		b0 |= 3
	default:
		inline = append(inline, ip.HopLimit)
	}

	var srcAddr, dstAddr [16]byte
	copy(srcAddr[:], ip.SrcIP.To16())
	copy(dstAddr[:], ip.DstIP.To16())

	var cid byte
	srcMode, srcInline, srcCtx := compressUnicast(srcAddr, src, ctx, true)
	if srcCtx >= 0 {
		b1 |= iphcSac
		cid |= byte(srcCtx) << 4
	}
	b1 |= srcMode << iphcSamShift
	inline = append(inline, srcInline...)

	if dstAddr[0] == 0xff {
		b1 |= iphcM
		dstMode, dstInline := compressMulticast(dstAddr)
		b1 |= dstMode
		inline = append(inline, dstInline...)
	} else {
		dstMode, dstInline, dstCtx := compressUnicast(dstAddr, dst, ctx, false)
		if dstCtx >= 0 {
			b1 |= iphcDac
			cid |= byte(dstCtx)
		}
		b1 |= dstMode
		inline = append(inline, dstInline...)
	}

	out := make([]byte, 0, 3+len(inline))
	if cid != 0 {
		out = append(out, b0, b1|iphcCid, cid)
	} else {
		out = append(out, b0, b1)
	}
	return append(out, inline...), nil
}

// compressUnicast returns the address mode, the inline bytes and the context used (-1 for none).
func compressUnicast(addr [16]byte, link LinkAddr, ctx *ContextTable, isSrc bool) (byte, []byte, int) {
	a := netip.AddrFrom16(addr)
	if a.IsUnspecified() {
		if isSrc {
			// SAC=1 SAM=00
			return 0, nil, 0
		}
		return 0, addr[:], -1
	}
	if isLinkLocal(addr) {
		mode, inline := compressIID(addr, link)
		return mode, inline, -1
	}
	if id, ok := ctx.lookup(addr); ok {
		mode, inline := compressIID(addr, link)
		return mode, inline, int(id)
	}
	return 0, addr[:], -1
}

func compressIID(addr [16]byte, link LinkAddr) (byte, []byte) {
	iid := link.IID()
	if bytes.Equal(addr[8:], iid[:]) {
		return 3, nil
	}
	if bytes.Equal(addr[8:14], []byte{0, 0, 0, 0xff, 0xfe, 0}) {
		return 2, addr[14:16]
	}
	return 1, addr[8:16]
}

func compressMulticast(addr [16]byte) (byte, []byte) {
	switch {
	case addr[1] == 0x02 && allZero(addr[2:15]):
		return 3, addr[15:16]
	case allZero(addr[2:13]):
		return 2, []byte{addr[1], addr[13], addr[14], addr[15]}
	case allZero(addr[2:11]):
		return 1, []byte{addr[1], addr[11], addr[12], addr[13], addr[14], addr[15]}
	default:
		return 0, addr[:]
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Decompress restores the IPv6 packet from an IPHC compressed datagram.
func Decompress(data []byte, src, dst LinkAddr, ctx *ContextTable) ([]byte, error) {
	ip, n, err := decompressHeader(data, src, dst, ctx)
	if err != nil {
		return nil, err
	}
	ip.Length = uint16(len(data) - n)
	hdr, err := serializeHeader(ip)
	if err != nil {
		return nil, err
	}
	return append(hdr, data[n:]...), nil
}

func serializeHeader(ip *layers.IPv6) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := ip.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, errors.Wrap(err, "serialize IPv6 header")
	}
	return buf.Bytes(), nil
}

type iphcReader struct {
	data []byte
	pos  int
	err  error
}

func (r *iphcReader) next(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.pos+n > len(r.data) {
		r.err = errors.Errorf("IPHC header truncated at %d (+%d), %d bytes", r.pos, n, len(r.data))
		return make([]byte, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// decompressHeader parses the IPHC header at data and returns the IPv6 header (without payload length)
// and the number of bytes consumed.
func decompressHeader(data []byte, src, dst LinkAddr, ctx *ContextTable) (*layers.IPv6, int, error) {
	if len(data) < 2 || data[0]&dispatchIphcMask != dispatchIphc {
		return nil, 0, errors.Errorf("not an IPHC header")
	}
	r := &iphcReader{data: data}
	base := r.next(2)
	b0, b1 := base[0], base[1]

	var sci, dci uint8
	if b1&iphcCid != 0 {
		c := r.next(1)[0]
		sci, dci = c>>4, c&0x0f
	}

	ip := &layers.IPv6{Version: 6}
	switch (b0 >> iphcTfShift) & 0x03 {
	case 0:
		f := r.next(4)
		ip.TrafficClass = f[0]&0x3f<<2 | f[0]>>6
		ip.FlowLabel = uint32(f[1]&0x0f)<<16 | uint32(f[2])<<8 | uint32(f[3])
	case 1:
		f := r.next(3)
		ip.TrafficClass = f[0] >> 6
		ip.FlowLabel = uint32(f[0]&0x0f)<<16 | uint32(f[1])<<8 | uint32(f[2])
	case 2:
		f := r.next(1)
		ip.TrafficClass = f[0]&0x3f<<2 | f[0]>>6
	}

	if b0&iphcNh != 0 {
		return nil, 0, errors.Errorf("IPHC next header compression is not supported")
	}
	ip.NextHeader = layers.IPProtocol(r.next(1)[0])

	switch b0 & iphcHlimMask {
	case 0:
		ip.HopLimit = r.next(1)[0]
	case 1:
		ip.HopLimit = 1
	case 2:
		ip.HopLimit = 64
	case 3:
		ip.HopLimit = 255
	}

	srcAddr, err := decompressUnicast(r, b1&iphcSac != 0, (b1>>iphcSamShift)&iphcAddrMask, sci, src, ctx, true)
	if err != nil {
		return nil, 0, err
	}

	var dstAddr [16]byte
	if b1&iphcM != 0 {
		if b1&iphcDac != 0 {
			return nil, 0, errors.Errorf("IPHC stateful multicast compression is not supported")
		}
		dstAddr = decompressMulticast(r, b1&iphcAddrMask)
	} else {
		dstAddr, err = decompressUnicast(r, b1&iphcDac != 0, b1&iphcAddrMask, dci, dst, ctx, false)
		if err != nil {
			return nil, 0, err
		}
	}
	if r.err != nil {
		return nil, 0, r.err
	}

	ip.SrcIP = append([]byte(nil), srcAddr[:]...)
	ip.DstIP = append([]byte(nil), dstAddr[:]...)
	return ip, r.pos, nil
}

func decompressUnicast(r *iphcReader, stateful bool, mode byte, ctxId uint8, link LinkAddr, ctx *ContextTable, isSrc bool) ([16]byte, error) {
	var addr [16]byte
	if stateful && mode == 0 {
		if isSrc {
			return addr, nil
		}
		return addr, errors.Errorf("reserved IPHC destination mode DAC=1 DAM=00")
	}

	switch mode {
	case 0:
		copy(addr[:], r.next(16))
		return addr, nil
	case 1:
		copy(addr[8:], r.next(8))
	case 2:
		copy(addr[8:14], []byte{0, 0, 0, 0xff, 0xfe, 0})
		copy(addr[14:], r.next(2))
	case 3:
		iid := link.IID()
		copy(addr[8:], iid[:])
	}

	if !stateful {
		addr[0], addr[1] = 0xfe, 0x80
		return addr, nil
	}
	prefix, ok := ctx.Get(ctxId)
	if !ok {
		return addr, errors.Errorf("unknown IPHC context %d", ctxId)
	}
	overlayPrefix(&addr, prefix)
	return addr, nil
}

// overlayPrefix copies the prefix bits of p over addr.
func overlayPrefix(addr *[16]byte, p netip.Prefix) {
	pb := p.Addr().As16()
	bits := p.Bits()
	for i := 0; i < 16 && bits > 0; i++ {
		if bits >= 8 {
			addr[i] = pb[i]
			bits -= 8
			continue
		}
		mask := byte(0xff) << uint(8-bits)
		addr[i] = pb[i]&mask | addr[i]&^mask
		bits = 0
	}
}

func decompressMulticast(r *iphcReader, mode byte) [16]byte {
	var addr [16]byte
	addr[0] = 0xff
	switch mode {
	case 0:
		copy(addr[:], r.next(16))
	case 1:
		f := r.next(6)
		addr[1] = f[0]
		copy(addr[11:], f[1:])
	case 2:
		f := r.next(4)
		addr[1] = f[0]
		copy(addr[13:], f[1:])
	case 3:
		addr[1] = 0x02
		addr[15] = r.next(1)[0]
	}
	return addr
}

// CompressedHeaderLen returns the IPHC header length for pkt.
func CompressedHeaderLen(pkt []byte, src, dst LinkAddr, ctx *ContextTable) (int, error) {
	hdr, err := compressHeader(pkt, src, dst, ctx)
	return len(hdr), err
}
