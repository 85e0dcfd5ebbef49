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
	"fmt"
	"io"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/sixlowpan"
	. "github.com/openthread/lowpan-ns/types"
)

var log = logger.GetComponent("Ipv6L3Protocol")

const DefaultHopLimit uint8 = 64

// Counters of an IPv6 stack.
type Counters struct {
	TxPackets       uint64
	TxNoRoute       uint64
	TxDeviceErrors  uint64
	RxPackets       uint64
	RxDropped       uint64
	RxNotForUs      uint64
	EchoRequestsRx  uint64
	EchoRepliesTx   uint64
	EchoRepliesRx   uint64
	EchoUnmatchedRx uint64
}

// EchoReply is a received ICMPv6 echo reply.
type EchoReply struct {
	Src      netip.Addr
	Id       uint16
	Seq      uint16
	Data     []byte
	HopLimit uint8
}

// EchoReplyHandler is called for every echo reply carrying the identifier it was registered for.
type EchoReplyHandler func(reply *EchoReply)

// ProtocolHandler receives packets of a next header value that the stack does not handle itself.
type ProtocolHandler func(ip *layers.IPv6, payload []byte)

// Stack is the IPv6 stack of a node.
type Stack struct {
	Counters Counters
	HopLimit uint8

	node       NodeId
	sched      event.Scheduler
	ifaces     []*Interface
	echo       map[uint16]EchoReplyHandler
	protocols  map[layers.IPProtocol]ProtocolHandler
	nextEchoId uint16
}

func NewStack(node NodeId, sched event.Scheduler) *Stack {
	return &Stack{
		HopLimit:   DefaultHopLimit,
		node:       node,
		sched:      sched,
		echo:       map[uint16]EchoReplyHandler{},
		protocols:  map[layers.IPProtocol]ProtocolHandler{},
		nextEchoId: uint16(node) << 8,
	}
}

func (s *Stack) NodeId() NodeId {
	return s.node
}

// AddInterface creates an interface on dev with its link-local address. Interface indices start at 1.
func (s *Stack) AddInterface(dev *sixlowpan.NetDevice) *Interface {
	iface := newInterface(s, len(s.ifaces)+1, dev)
	s.ifaces = append(s.ifaces, iface)
	dev.SetReceiveCallback(func(pkt []byte, src, dst sixlowpan.LinkAddr) {
		s.receive(iface, pkt, src)
	})
	return iface
}

func (s *Stack) Interfaces() []*Interface {
	return s.ifaces
}

func (s *Stack) Interface(index int) *Interface {
	if index < 1 || index > len(s.ifaces) {
		return nil
	}
	return s.ifaces[index-1]
}

// RegisterEchoHandler registers h for echo replies and returns the identifier to send requests with.
func (s *Stack) RegisterEchoHandler(h EchoReplyHandler) uint16 {
	for {
		s.nextEchoId++
		if _, ok := s.echo[s.nextEchoId]; !ok {
			break
		}
	}
	s.echo[s.nextEchoId] = h
	return s.nextEchoId
}

func (s *Stack) UnregisterEchoHandler(id uint16) {
	delete(s.echo, id)
}

func (s *Stack) RegisterProtocol(nh layers.IPProtocol, h ProtocolHandler) {
	s.protocols[nh] = h
}

// route selects the outgoing interface for dst.
func (s *Stack) route(dst netip.Addr) (*Interface, error) {
	for _, iface := range s.ifaces {
		if iface.onLink(dst) {
			return iface, nil
		}
	}
	return nil, errors.Errorf("no route to %s", dst)
}

func (s *Stack) isLocal(a netip.Addr) bool {
	for _, iface := range s.ifaces {
		if iface.hasAddr(a) {
			return true
		}
	}
	return false
}

// SourceAddressFor returns the address the stack would send packets to dst from.
func (s *Stack) SourceAddressFor(dst netip.Addr) (netip.Addr, error) {
	iface, err := s.route(dst)
	if err != nil {
		return netip.Addr{}, err
	}
	return iface.sourceFor(dst), nil
}

// Send sends payload, which starts with the header of protocol nh, to dst.
func (s *Stack) Send(dst netip.Addr, nh layers.IPProtocol, payload []byte) error {
	return s.send(dst, func(src netip.Addr) ([]byte, error) {
		ip := s.ipHeader(src, dst, nh)
		return serialize(ip, gopacket.Payload(payload))
	})
}

// SendEchoRequest sends an ICMPv6 echo request with the given identifier, sequence number and data.
func (s *Stack) SendEchoRequest(dst netip.Addr, id, seq uint16, data []byte) error {
	return s.sendEcho(dst, layers.ICMPv6TypeEchoRequest, id, seq, data)
}

func (s *Stack) sendEcho(dst netip.Addr, typ uint8, id, seq uint16, data []byte) error {
	return s.send(dst, func(src netip.Addr) ([]byte, error) {
		ip := s.ipHeader(src, dst, layers.IPProtocolICMPv6)
		icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(typ, 0)}
		if err := icmp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		echo := &layers.ICMPv6Echo{Identifier: id, SeqNumber: seq}
		return serialize(ip, icmp, echo, gopacket.Payload(data))
	})
}

func (s *Stack) ipHeader(src, dst netip.Addr, nh layers.IPProtocol) *layers.IPv6 {
	return &layers.IPv6{
		Version:    6,
		NextHeader: nh,
		HopLimit:   s.HopLimit,
		SrcIP:      src.AsSlice(),
		DstIP:      dst.AsSlice(),
	}
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, errors.Wrap(err, "serialize packet")
	}
	return buf.Bytes(), nil
}

func (s *Stack) send(dst netip.Addr, build func(src netip.Addr) ([]byte, error)) error {
	iface, err := s.route(dst)
	if err != nil {
		s.Counters.TxNoRoute++
		return err
	}
	src := iface.sourceFor(dst)
	pkt, err := build(src)
	if err != nil {
		return err
	}
	s.Counters.TxPackets++

	if s.isLocal(dst) {
		s.sched.Schedule(0, "ipv6-loopback", func() {
			s.receive(iface, pkt, iface.dev.LinkAddr())
		})
		return nil
	}

	link, ok := iface.LookupNeighbor(dst)
	if !ok {
		s.Counters.TxNoRoute++
		return errors.Errorf("node %d: no neighbor cache entry for %s", s.node, dst)
	}
	log.Tracef("node %d send %d bytes %s -> %s via %s", s.node, len(pkt), src, dst, link)
	if err := iface.dev.Send(pkt, link); err != nil {
		s.Counters.TxDeviceErrors++
		return errors.Wrapf(err, "node %d: send to %s", s.node, dst)
	}
	return nil
}

func (s *Stack) receive(iface *Interface, pkt []byte, from sixlowpan.LinkAddr) {
	packet := gopacket.NewPacket(pkt, layers.LayerTypeIPv6, gopacket.NoCopy)
	ip, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		s.Counters.RxDropped++
		log.Debugf("node %d dropped undecodable packet from %s: %v", s.node, from, packet.ErrorLayer())
		return
	}
	dst, _ := netip.AddrFromSlice(ip.DstIP)
	src, _ := netip.AddrFromSlice(ip.SrcIP)
	if !iface.accepts(dst) {
		s.Counters.RxNotForUs++
		return
	}
	s.Counters.RxPackets++

	if ip.NextHeader == layers.IPProtocolICMPv6 {
		s.receiveIcmp(packet, ip, src, dst)
		return
	}
	if h := s.protocols[ip.NextHeader]; h != nil {
		h(ip, ip.Payload)
		return
	}
	s.Counters.RxDropped++
	log.Debugf("node %d no handler for next header %s", s.node, ip.NextHeader)
}

func (s *Stack) receiveIcmp(packet gopacket.Packet, ip *layers.IPv6, src, dst netip.Addr) {
	icmp, ok := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
	if !ok {
		s.Counters.RxDropped++
		return
	}
	typ := icmp.TypeCode.Type()
	if typ != layers.ICMPv6TypeEchoRequest && typ != layers.ICMPv6TypeEchoReply {
		if h := s.protocols[layers.IPProtocolICMPv6]; h != nil {
			h(ip, ip.Payload)
		}
		return
	}
	echo, ok := packet.Layer(layers.LayerTypeICMPv6Echo).(*layers.ICMPv6Echo)
	if !ok || len(icmp.LayerPayload()) < 4 {
		s.Counters.RxDropped++
		return
	}
	// ICMPv6Echo does not keep its payload; the echo data follows identifier and sequence number.
	data := append([]byte(nil), icmp.LayerPayload()[4:]...)

	if typ == layers.ICMPv6TypeEchoRequest {
		s.Counters.EchoRequestsRx++
		log.Debugf("node %d echo request id=%d seq=%d from %s", s.node, echo.Identifier, echo.SeqNumber, src)
		if dst.IsMulticast() {
			return
		}
		if err := s.sendEcho(src, layers.ICMPv6TypeEchoReply, echo.Identifier, echo.SeqNumber, data); err != nil {
			log.Debugf("node %d echo reply to %s failed: %v", s.node, src, err)
			return
		}
		s.Counters.EchoRepliesTx++
		return
	}

	s.Counters.EchoRepliesRx++
	h := s.echo[echo.Identifier]
	if h == nil {
		s.Counters.EchoUnmatchedRx++
		return
	}
	h(&EchoReply{
		Src:      src,
		Id:       echo.Identifier,
		Seq:      echo.SeqNumber,
		Data:     data,
		HopLimit: ip.HopLimit,
	})
}

// WriteNeighborCache writes the neighbor caches of all interfaces, headed by the node id and time.
func (s *Stack) WriteNeighborCache(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "NDISC Cache of node %d at time +%gs\n", s.node, UsToSeconds(s.sched.Now())); err != nil {
		return err
	}
	for _, iface := range s.ifaces {
		if err := iface.WriteNeighborCache(w); err != nil {
			return err
		}
	}
	return nil
}
