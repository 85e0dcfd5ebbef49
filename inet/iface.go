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

// Package inet is a minimal single-link IPv6 stack with static neighbor resolution and an ICMPv6 echo
// responder. Packets are encoded and decoded with gopacket.
package inet

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/openthread/lowpan-ns/sixlowpan"
)

// NeighborState is the state of a neighbor cache entry.
type NeighborState int

const (
	NeighborIncomplete NeighborState = iota
	NeighborReachable
	NeighborStatic
)

func (s NeighborState) String() string {
	switch s {
	case NeighborIncomplete:
		return "INCOMPLETE"
	case NeighborReachable:
		return "REACHABLE"
	case NeighborStatic:
		return "STATIC_AUTOGENERATED"
	default:
		return fmt.Sprintf("NeighborState(%d)", int(s))
	}
}

// NeighborEntry maps an IPv6 address to a link address.
type NeighborEntry struct {
	Addr  netip.Addr
	Link  sixlowpan.LinkAddr
	State NeighborState
}

// Interface is an IPv6 interface on a 6LoWPAN net device.
type Interface struct {
	Index int

	stack     *Stack
	dev       *sixlowpan.NetDevice
	addrs     []netip.Prefix
	neighbors map[netip.Addr]*NeighborEntry
}

func newInterface(s *Stack, index int, dev *sixlowpan.NetDevice) *Interface {
	iface := &Interface{
		Index:     index,
		stack:     s,
		dev:       dev,
		neighbors: map[netip.Addr]*NeighborEntry{},
	}
	ll := dev.LinkAddr().LinkLocalAddr()
	iface.addrs = append(iface.addrs, netip.PrefixFrom(ll, 64))
	return iface
}

func (iface *Interface) Stack() *Stack {
	return iface.stack
}

func (iface *Interface) NetDevice() *sixlowpan.NetDevice {
	return iface.dev
}

// AddAddress adds an address with its on-link prefix length.
func (iface *Interface) AddAddress(p netip.Prefix) error {
	if !p.Addr().Is6() || p.Addr().Is4In6() {
		return errors.Errorf("not an IPv6 address: %v", p)
	}
	for _, a := range iface.addrs {
		if a.Addr() == p.Addr() {
			return errors.Errorf("address %v already assigned", p.Addr())
		}
	}
	iface.addrs = append(iface.addrs, p)
	return nil
}

// Addresses returns the assigned addresses. Index 0 is the link-local address.
func (iface *Interface) Addresses() []netip.Prefix {
	return iface.addrs
}

// Address returns the address at index i, as in the interface container of the scenario: 0 is link-local,
// 1 is the first global address.
func (iface *Interface) Address(i int) netip.Addr {
	if i < 0 || i >= len(iface.addrs) {
		return netip.Addr{}
	}
	return iface.addrs[i].Addr()
}

func (iface *Interface) LinkLocalAddr() netip.Addr {
	return iface.addrs[0].Addr()
}

// GlobalAddr returns the first global address, or the zero Addr if none is assigned.
func (iface *Interface) GlobalAddr() netip.Addr {
	for _, a := range iface.addrs {
		if a.Addr().IsGlobalUnicast() {
			return a.Addr()
		}
	}
	return netip.Addr{}
}

func (iface *Interface) hasAddr(a netip.Addr) bool {
	for _, p := range iface.addrs {
		if p.Addr() == a {
			return true
		}
	}
	return false
}

// onLink returns true if a is reachable directly on this interface.
func (iface *Interface) onLink(a netip.Addr) bool {
	if a.IsLinkLocalUnicast() || a.IsMulticast() {
		return true
	}
	for _, p := range iface.addrs {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// sourceFor selects the source address for a packet to dst.
func (iface *Interface) sourceFor(dst netip.Addr) netip.Addr {
	if dst.IsLinkLocalUnicast() || dst.IsLinkLocalMulticast() || dst.IsInterfaceLocalMulticast() {
		return iface.LinkLocalAddr()
	}
	if g := iface.GlobalAddr(); g.IsValid() {
		return g
	}
	return iface.LinkLocalAddr()
}

// accepts returns true if a packet for dst is delivered locally.
func (iface *Interface) accepts(dst netip.Addr) bool {
	if iface.hasAddr(dst) {
		return true
	}
	if !dst.IsMulticast() {
		return false
	}
	if dst == allNodesMulticast {
		return true
	}
	for _, p := range iface.addrs {
		if solicitedNode(p.Addr()) == dst {
			return true
		}
	}
	return false
}

var allNodesMulticast = netip.MustParseAddr("ff02::1")

func solicitedNode(a netip.Addr) netip.Addr {
	b := netip.MustParseAddr("ff02::1:ff00:0").As16()
	ab := a.As16()
	copy(b[13:], ab[13:])
	return netip.AddrFrom16(b)
}

// AddNeighbor adds or replaces a neighbor cache entry.
func (iface *Interface) AddNeighbor(addr netip.Addr, link sixlowpan.LinkAddr, state NeighborState) {
	iface.neighbors[addr] = &NeighborEntry{Addr: addr, Link: link, State: state}
}

func (iface *Interface) RemoveNeighbor(addr netip.Addr) {
	delete(iface.neighbors, addr)
}

// LookupNeighbor resolves addr to a link address. Multicast addresses map to the broadcast address.
func (iface *Interface) LookupNeighbor(addr netip.Addr) (sixlowpan.LinkAddr, bool) {
	if addr.IsMulticast() {
		return iface.dev.BroadcastAddr(), true
	}
	e, ok := iface.neighbors[addr]
	if !ok || e.State == NeighborIncomplete {
		return sixlowpan.LinkAddr{}, false
	}
	return e.Link, true
}

// Neighbors returns the neighbor cache sorted by address.
func (iface *Interface) Neighbors() []*NeighborEntry {
	entries := make([]*NeighborEntry, 0, len(iface.neighbors))
	for _, e := range iface.neighbors {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *NeighborEntry) int {
		return a.Addr.Compare(b.Addr)
	})
	return entries
}

// WriteNeighborCache writes the neighbor cache in the form `<addr> dev <if> lladdr <mac48> <state>`.
func (iface *Interface) WriteNeighborCache(w io.Writer) error {
	for _, e := range iface.Neighbors() {
		if _, err := fmt.Fprintf(w, "%s dev %d lladdr %s %s\n", e.Addr, iface.Index, e.Link.PseudoMac48(), e.State); err != nil {
			return err
		}
	}
	return nil
}
