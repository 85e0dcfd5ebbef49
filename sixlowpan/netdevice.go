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
	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/wpan"
)

var log = logger.GetComponent("SixLowPanNetDevice")

// Counters of a 6LoWPAN net device.
type Counters struct {
	TxPackets          uint64
	TxFragments        uint64
	TxFailures         uint64
	TxDropped          uint64
	RxPackets          uint64
	RxFragments        uint64
	RxDropped          uint64
	ReassemblyTimeouts uint64
	ReassemblyOverlaps uint64
}

// ReceiveCallback is called with every IPv6 packet received by the net device.
type ReceiveCallback func(pkt []byte, src, dst LinkAddr)

// NetDevice adapts IPv6 packets to an LR-WPAN device.
type NetDevice struct {
	Counters Counters

	dev      *lrwpan.Device
	contexts *ContextTable
	useIphc  bool
	tag      uint16
	handle   uint8
	reasm    *reassembler
	onRecv   ReceiveCallback
}

// NewNetDevice installs the adaptation layer on dev. It takes over dev's data indication and confirm callbacks.
func NewNetDevice(dev *lrwpan.Device, sched event.Scheduler, contexts *ContextTable) *NetDevice {
	if contexts == nil {
		contexts = NewContextTable()
	}
	nd := &NetDevice{
		dev:      dev,
		contexts: contexts,
		useIphc:  true,
	}
	nd.reasm = newReassembler(sched, &nd.Counters)
	dev.SetDataIndicationCallback(nd.receive)
	dev.SetDataConfirmCallback(nd.confirm)
	return nd
}

func (nd *NetDevice) Device() *lrwpan.Device {
	return nd.dev
}

// LinkAddr returns the short address of the underlying device.
func (nd *NetDevice) LinkAddr() LinkAddr {
	return LinkAddr{PanId: nd.dev.PanId(), Short: nd.dev.ShortAddr()}
}

func (nd *NetDevice) BroadcastAddr() LinkAddr {
	return LinkAddr{PanId: nd.dev.PanId(), Short: 0xffff}
}

func (nd *NetDevice) Contexts() *ContextTable {
	return nd.contexts
}

// AddContext adds a compression context. All nodes of the PAN must share the same contexts.
func (nd *NetDevice) AddContext(id uint8, prefix string) error {
	p, err := parsePrefix(prefix)
	if err != nil {
		return err
	}
	return nd.contexts.Add(id, p)
}

// SetUseIphc selects IPHC compression (default) or uncompressed IPv6 dispatch for sent packets.
func (nd *NetDevice) SetUseIphc(use bool) {
	nd.useIphc = use
}

func (nd *NetDevice) SetReceiveCallback(cb ReceiveCallback) {
	nd.onRecv = cb
}

// SetReassemblyTimeout sets how long fragments of an incomplete datagram are kept (us).
func (nd *NetDevice) SetReassemblyTimeout(us uint64) {
	nd.reasm.timeout = us
}

// PendingReassemblies returns the number of partially received datagrams.
func (nd *NetDevice) PendingReassemblies() int {
	return nd.reasm.count()
}

// Send transmits the IPv6 packet pkt to the link-layer address dst, fragmenting if needed.
func (nd *NetDevice) Send(pkt []byte, dst LinkAddr) error {
	src := nd.LinkAddr()
	var hdr []byte
	if nd.useIphc {
		var err error
		if hdr, err = compressHeader(pkt, src, dst, nd.contexts); err != nil {
			nd.Counters.TxDropped++
			return err
		}
	} else {
		if len(pkt) < ipv6HeaderLen {
			nd.Counters.TxDropped++
			return errors.Errorf("not an IPv6 packet (%d bytes)", len(pkt))
		}
		hdr = append([]byte{dispatchIpv6}, pkt[:ipv6HeaderLen]...)
	}
	payload := pkt[ipv6HeaderLen:]

	srcAddr := wpan.ShortAddress(src.PanId, src.Short)
	dstAddr := wpan.ShortAddress(dst.PanId, dst.Short)
	maxLen := wpan.MaxPayloadLen(srcAddr, dstAddr)

	nd.Counters.TxPackets++
	if len(hdr)+len(payload) <= maxLen {
		frame := make([]byte, 0, len(hdr)+len(payload))
		frame = append(append(frame, hdr...), payload...)
		log.Debugf("node %d send %d bytes to %s (header %d -> %d)", nd.dev.NodeId(), len(pkt), dst,
			ipv6HeaderLen, len(hdr))
		nd.request(frame, dstAddr, dst.IsBroadcast())
		return nil
	}

	nd.tag++
	frags, err := fragment(hdr, payload, nd.tag, maxLen)
	if err != nil {
		nd.Counters.TxDropped++
		return err
	}
	log.Debugf("node %d send %d bytes to %s in %d fragments, tag %d", nd.dev.NodeId(), len(pkt), dst,
		len(frags), nd.tag)
	for _, f := range frags {
		nd.Counters.TxFragments++
		nd.request(f, dstAddr, dst.IsBroadcast())
	}
	return nil
}

func (nd *NetDevice) request(frame []byte, dst wpan.Address, broadcast bool) {
	nd.handle++
	nd.dev.McpsDataRequest(&lrwpan.DataRequest{
		SrcAddrMode: wpan.AddrModeShort,
		Dst:         dst,
		Msdu:        frame,
		Handle:      nd.handle,
		AckTx:       !broadcast,
	})
}

func (nd *NetDevice) confirm(conf *lrwpan.DataConfirm) {
	if conf.Status != lrwpan.StatusSuccess {
		nd.Counters.TxFailures++
		log.Debugf("node %d frame handle %d failed: %s", nd.dev.NodeId(), conf.Handle, conf.Status)
	}
}

func (nd *NetDevice) receive(ind *lrwpan.DataIndication) {
	if ind.Src.Mode != wpan.AddrModeShort || len(ind.Msdu) == 0 {
		nd.Counters.RxDropped++
		return
	}
	src := LinkAddr{PanId: ind.Src.PanId, Short: ind.Src.Short}
	dst := LinkAddr{PanId: ind.Dst.PanId, Short: ind.Dst.Short}
	if ind.Dst.Mode != wpan.AddrModeShort {
		dst = nd.LinkAddr()
	}

	var pkt []byte
	var err error
	d := ind.Msdu[0]
	switch {
	case d == dispatchIpv6:
		if len(ind.Msdu) < 1+ipv6HeaderLen {
			err = errors.Errorf("uncompressed IPv6 packet truncated")
		}
		pkt = ind.Msdu[1:]
	case d&dispatchIphcMask == dispatchIphc:
		pkt, err = Decompress(ind.Msdu, src, dst, nd.contexts)
	case isFragment(d):
		nd.Counters.RxFragments++
		pkt, err = nd.reasm.add(ind.Msdu, src, dst, nd.contexts)
	default:
		err = errors.Errorf("unsupported dispatch 0x%02x", d)
	}
	if err != nil {
		nd.Counters.RxDropped++
		log.Debugf("node %d dropped frame from %s: %v", nd.dev.NodeId(), src, err)
		return
	}
	if pkt == nil {
		return
	}

	nd.Counters.RxPackets++
	log.Debugf("node %d received %d bytes from %s", nd.dev.NodeId(), len(pkt), src)
	if nd.onRecv != nil {
		nd.onRecv(pkt, src, dst)
	}
}
