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

package wpan

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/types"
)

// Address is a MAC address in short or extended mode.
type Address struct {
	Mode     uint16
	PanId    uint16
	Short    uint16
	Extended uint64
}

func ShortAddress(panId uint16, short uint16) Address {
	return Address{Mode: AddrModeShort, PanId: panId, Short: short}
}

func ExtendedAddress(panId uint16, ext uint64) Address {
	return Address{Mode: AddrModeExtended, PanId: panId, Extended: ext}
}

func (a Address) len() int {
	switch a.Mode {
	case AddrModeShort:
		return 2
	case AddrModeExtended:
		return 8
	default:
		return 0
	}
}

func (a Address) put(b []byte) int {
	switch a.Mode {
	case AddrModeShort:
		binary.LittleEndian.PutUint16(b, a.Short)
		return 2
	case AddrModeExtended:
		binary.LittleEndian.PutUint64(b, a.Extended)
		return 8
	default:
		return 0
	}
}

// DataFrameParams describes a data frame to build.
type DataFrameParams struct {
	Seq        uint8
	Src        Address
	Dst        Address
	AckRequest bool
	Payload    []byte
}

// HeaderLen returns the MAC header length for the given addressing, without FCS.
func HeaderLen(src, dst Address) int {
	n := 3 + dst.len() + src.len()
	if dst.Mode != AddrModeNone {
		n += 2
	}
	if src.Mode != AddrModeNone && !(dst.Mode != AddrModeNone && src.PanId == dst.PanId) {
		n += 2
	}
	return n
}

// MaxPayloadLen returns the largest MSDU that fits a PSDU for the given addressing.
func MaxPayloadLen(src, dst Address) int {
	return types.MaxPhyPacketSize - HeaderLen(src, dst) - types.MacFcsLen
}

// NewDataFrame builds a 2006 data frame PSDU including FCS. The PAN id of the source is elided
// when it equals the destination PAN id.
func NewDataFrame(p *DataFrameParams) ([]byte, error) {
	if p.Dst.Mode == AddrModeReserved || p.Src.Mode == AddrModeReserved {
		return nil, errors.Errorf("reserved addressing mode")
	}
	if len(p.Payload) > MaxPayloadLen(p.Src, p.Dst) {
		return nil, errors.Errorf("payload too long: %d > %d", len(p.Payload), MaxPayloadLen(p.Src, p.Dst))
	}

	panidCompression := p.Src.Mode != AddrModeNone && p.Dst.Mode != AddrModeNone && p.Src.PanId == p.Dst.PanId
	fc := NewFrameControl(FrameTypeData, FrameVersion2006, p.Dst.Mode, p.Src.Mode, p.AckRequest, panidCompression)

	hdrLen := HeaderLen(p.Src, p.Dst)
	psdu := make([]byte, hdrLen+len(p.Payload)+types.MacFcsLen)
	binary.LittleEndian.PutUint16(psdu[0:2], uint16(fc))
	psdu[2] = p.Seq
	n := 3
	if p.Dst.Mode != AddrModeNone {
		binary.LittleEndian.PutUint16(psdu[n:], p.Dst.PanId)
		n += 2
		n += p.Dst.put(psdu[n:])
	}
	if p.Src.Mode != AddrModeNone {
		if !panidCompression {
			binary.LittleEndian.PutUint16(psdu[n:], p.Src.PanId)
			n += 2
		}
		n += p.Src.put(psdu[n:])
	}
	copy(psdu[n:], p.Payload)
	PutFcs(psdu)
	return psdu, nil
}

// NewAckFrame builds an immediate acknowledgment PSDU (5 bytes).
func NewAckFrame(seq uint8, framePending bool) []byte {
	fc := NewFrameControl(FrameTypeAck, FrameVersion2003, AddrModeNone, AddrModeNone, false, false)
	if framePending {
		fc |= fcFramePending
	}
	psdu := make([]byte, 3+types.MacFcsLen)
	binary.LittleEndian.PutUint16(psdu[0:2], uint16(fc))
	psdu[2] = seq
	PutFcs(psdu)
	return psdu
}

// AckFrameLen is the PSDU length of an immediate acknowledgment.
const AckFrameLen = 3 + types.MacFcsLen
