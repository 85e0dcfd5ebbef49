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
	. "github.com/openthread/lowpan-ns/types"
)

const (
	frag1HeaderLen   = 4
	fragNHeaderLen   = 5
	dispatchFrag1    = 0xc0 // 11000xxx
	dispatchFragN    = 0xe0 // 11100xxx
	dispatchFragMask = 0xf8
	maxDatagramSize  = 0x07ff

	// DefaultReassemblyTimeoutUs is the time a partially received datagram is kept.
	DefaultReassemblyTimeoutUs = 60 * UsPerSec
)

// fragment splits a datagram whose IPv6 header is encoded as hdr into FRAG1/FRAGN frames of at most
// maxLen bytes. Offsets count in units of 8 octets of the uncompressed datagram.
func fragment(hdr, payload []byte, tag uint16, maxLen int) ([][]byte, error) {
	size := ipv6HeaderLen + len(payload)
	if size > maxDatagramSize {
		return nil, errors.Errorf("datagram too large: %d bytes", size)
	}
	first := (maxLen-frag1HeaderLen-len(hdr)+ipv6HeaderLen)/8*8 - ipv6HeaderLen
	if first <= 0 {
		return nil, errors.Errorf("header of %d bytes does not fit in a first fragment", len(hdr))
	}
	if first > len(payload) {
		first = len(payload)
	}

	f := make([]byte, 0, frag1HeaderLen+len(hdr)+first)
	f = append(f, dispatchFrag1|byte(size>>8)&0x07, byte(size), byte(tag>>8), byte(tag))
	f = append(f, hdr...)
	f = append(f, payload[:first]...)
	frags := [][]byte{f}

	chunk := (maxLen - fragNHeaderLen) / 8 * 8
	for offset := first; offset < len(payload); offset += chunk {
		n := chunk
		if offset+n > len(payload) {
			n = len(payload) - offset
		}
		f := make([]byte, 0, fragNHeaderLen+n)
		f = append(f, dispatchFragN|byte(size>>8)&0x07, byte(size), byte(tag>>8), byte(tag),
			byte((ipv6HeaderLen+offset)/8))
		f = append(f, payload[offset:offset+n]...)
		frags = append(frags, f)
	}
	return frags, nil
}

type reassemblyKey struct {
	src  LinkAddr
	size uint16
	tag  uint16
}

type reassembly struct {
	buf      []byte
	have     []bool
	received int
	gotFirst bool
	timer    *event.Event
}

// write copies data at offset. It returns false if data overlaps received bytes with different content.
func (ra *reassembly) write(offset int, data []byte) (bool, error) {
	if offset+len(data) > len(ra.buf) {
		return false, errors.Errorf("fragment [%d,%d) exceeds datagram size %d", offset, offset+len(data), len(ra.buf))
	}
	for i := range data {
		if ra.have[offset+i] && ra.buf[offset+i] != data[i] {
			return false, nil
		}
	}
	for i := range data {
		if !ra.have[offset+i] {
			ra.have[offset+i] = true
			ra.received++
		}
	}
	copy(ra.buf[offset:], data)
	return true, nil
}

func (ra *reassembly) complete() bool {
	return ra.gotFirst && ra.received == len(ra.buf)
}

type reassembler struct {
	sched    event.Scheduler
	timeout  uint64
	pending  map[reassemblyKey]*reassembly
	counters *Counters
}

func newReassembler(sched event.Scheduler, counters *Counters) *reassembler {
	return &reassembler{
		sched:    sched,
		timeout:  DefaultReassemblyTimeoutUs,
		pending:  map[reassemblyKey]*reassembly{},
		counters: counters,
	}
}

func (r *reassembler) get(key reassemblyKey) *reassembly {
	ra := r.pending[key]
	if ra == nil {
		ra = &reassembly{
			buf:  make([]byte, key.size),
			have: make([]bool, key.size),
		}
		r.pending[key] = ra
		ra.timer = r.sched.Schedule(r.timeout, "6lowpan-reassembly-timeout", func() {
			if r.pending[key] == ra {
				delete(r.pending, key)
				r.counters.ReassemblyTimeouts++
				log.Debugf("reassembly of datagram tag=%d size=%d from %s timed out", key.tag, key.size, key.src)
			}
		})
	}
	return ra
}

func (r *reassembler) discard(key reassemblyKey) {
	if ra := r.pending[key]; ra != nil {
		r.sched.Cancel(ra.timer)
		delete(r.pending, key)
	}
}

// add processes a FRAG1 or FRAGN frame. It returns the reassembled IPv6 packet once complete.
func (r *reassembler) add(frame []byte, src, dst LinkAddr, ctx *ContextTable) ([]byte, error) {
	isFirst := frame[0]&dispatchFragMask == dispatchFrag1
	hlen := fragNHeaderLen
	if isFirst {
		hlen = frag1HeaderLen
	}
	if len(frame) < hlen {
		return nil, errors.Errorf("fragment header truncated")
	}
	key := reassemblyKey{
		src:  src,
		size: uint16(frame[0]&0x07)<<8 | uint16(frame[1]),
		tag:  uint16(frame[2])<<8 | uint16(frame[3]),
	}
	if key.size < ipv6HeaderLen {
		return nil, errors.Errorf("invalid datagram size %d", key.size)
	}

	var offset int
	var data []byte
	if isFirst {
		hdr, n, err := decodeFirstHeader(frame[hlen:], src, dst, ctx, int(key.size))
		if err != nil {
			return nil, err
		}
		data = append(hdr, frame[hlen+n:]...)
	} else {
		offset = int(frame[4]) * 8
		data = frame[hlen:]
	}

	ra := r.get(key)
	ok, err := ra.write(offset, data)
	if err != nil {
		r.discard(key)
		return nil, err
	}
	if !ok {
		r.counters.ReassemblyOverlaps++
		log.Debugf("overlapping fragment of datagram tag=%d from %s, restarting reassembly", key.tag, src)
		r.discard(key)
		ra = r.get(key)
		if _, err := ra.write(offset, data); err != nil {
			r.discard(key)
			return nil, err
		}
	}
	if isFirst {
		ra.gotFirst = true
	}
	if !ra.complete() {
		return nil, nil
	}
	r.discard(key)
	return ra.buf, nil
}

// decodeFirstHeader restores the IPv6 header of the first fragment. It returns the header and the number
// of bytes it occupied in the frame.
func decodeFirstHeader(data []byte, src, dst LinkAddr, ctx *ContextTable, size int) ([]byte, int, error) {
	if len(data) > 0 && data[0] == dispatchIpv6 {
		if len(data) < 1+ipv6HeaderLen {
			return nil, 0, errors.Errorf("uncompressed header truncated")
		}
		return append([]byte(nil), data[1:1+ipv6HeaderLen]...), 1 + ipv6HeaderLen, nil
	}
	ip, n, err := decompressHeader(data, src, dst, ctx)
	if err != nil {
		return nil, 0, err
	}
	ip.Length = uint16(size - ipv6HeaderLen)
	hdr, err := serializeHeader(ip)
	return hdr, n, err
}

func (r *reassembler) count() int {
	return len(r.pending)
}

func isFragment(b byte) bool {
	m := b & dispatchFragMask
	return m == dispatchFrag1 || m == dispatchFragN
}
