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
	"io"
	"net/netip"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/sixlowpan"
)

// AddressHelper assigns global addresses from a prefix.
type AddressHelper struct {
	prefix netip.Prefix
}

// SetBase sets the prefix, e.g. "2001:2::/64". Only /64 prefixes can carry EUI-64 identifiers.
func (h *AddressHelper) SetBase(prefix string) error {
	p, err := netip.ParsePrefix(prefix)
	if err != nil {
		return errors.Wrapf(err, "invalid prefix %q", prefix)
	}
	if !p.Addr().Is6() || p.Bits() != 64 {
		return errors.Errorf("prefix %v is not an IPv6 /64", p)
	}
	h.prefix = p.Masked()
	return nil
}

func (h *AddressHelper) Base() netip.Prefix {
	return h.prefix
}

// Assign gives every interface the address prefix + EUI-64(pseudo MAC-48 of its device) and returns them
// in order.
func (h *AddressHelper) Assign(ifaces []*Interface) ([]netip.Addr, error) {
	if !h.prefix.IsValid() {
		return nil, errors.Errorf("address helper has no base prefix")
	}
	addrs := make([]netip.Addr, 0, len(ifaces))
	for _, iface := range ifaces {
		a := sixlowpan.MakeAddr(h.prefix.Addr(), sixlowpan.Eui64(iface.dev.LinkAddr().PseudoMac48()))
		if err := iface.AddAddress(netip.PrefixFrom(a, h.prefix.Bits())); err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// PopulateNeighborCaches adds static entries for all addresses of every other interface.
func PopulateNeighborCaches(ifaces []*Interface) {
	for _, iface := range ifaces {
		for _, other := range ifaces {
			if other == iface {
				continue
			}
			link := other.dev.LinkAddr()
			for _, p := range other.addrs {
				iface.AddNeighbor(p.Addr(), link, NeighborStatic)
			}
		}
	}
}

// WriteNeighborCacheAll writes the neighbor caches of all stacks.
func WriteNeighborCacheAll(w io.Writer, stacks []*Stack) error {
	for _, s := range stacks {
		if err := s.WriteNeighborCache(w); err != nil {
			return err
		}
	}
	return nil
}
