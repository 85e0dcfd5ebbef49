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

// Package sixlowpan implements the IPv6 over IEEE 802.15.4 adaptation layer: IPHC header compression
// (RFC 6282), mesh-less fragmentation (RFC 4944) and a net device on top of an lrwpan.Device.
package sixlowpan

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/pkg/errors"

	. "github.com/openthread/lowpan-ns/types"
)

// LinkAddr is a 16-bit short 802.15.4 address within a PAN.
type LinkAddr struct {
	PanId uint16
	Short uint16
}

func (a LinkAddr) String() string {
	return fmt.Sprintf("%04x:%04x", a.PanId, a.Short)
}

func (a LinkAddr) IsBroadcast() bool {
	return a.Short == BroadcastShortAddr
}

// IID returns the interface identifier derived from the short address, 0000:00ff:fe00:XXXX.
func (a LinkAddr) IID() [8]byte {
	return [8]byte{0, 0, 0, 0xff, 0xfe, 0, byte(a.Short >> 8), byte(a.Short)}
}

// PseudoMac48 returns the MAC-48 address standing in for the short address: 02:PP:PP:00:XX:XX.
func (a LinkAddr) PseudoMac48() net.HardwareAddr {
	return net.HardwareAddr{0x02, byte(a.PanId >> 8), byte(a.PanId), 0, byte(a.Short >> 8), byte(a.Short)}
}

// Eui64 builds a modified EUI-64 interface identifier from a MAC-48 address (RFC 4291 appendix A).
func Eui64(mac net.HardwareAddr) [8]byte {
	var iid [8]byte
	copy(iid[0:3], mac[0:3])
	iid[3] = 0xff
	iid[4] = 0xfe
	copy(iid[5:8], mac[3:6])
	iid[0] ^= 0x02
	return iid
}

// MakeAddr combines the upper 64 bits of prefix with iid.
func MakeAddr(prefix netip.Addr, iid [8]byte) netip.Addr {
	b := prefix.As16()
	copy(b[8:], iid[:])
	return netip.AddrFrom16(b)
}

// LinkLocalAddr returns the fe80::/64 address of the link address.
func (a LinkAddr) LinkLocalAddr() netip.Addr {
	return MakeAddr(linkLocalPrefix, Eui64(a.PseudoMac48()))
}

var linkLocalPrefix = netip.MustParseAddr("fe80::")

func isLinkLocal(b [16]byte) bool {
	return b[0] == 0xfe && b[1] == 0x80 && b[2] == 0 && b[3] == 0 && b[4] == 0 && b[5] == 0 && b[6] == 0 && b[7] == 0
}

func parsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(err, "invalid prefix %q", s)
	}
	return p, nil
}
