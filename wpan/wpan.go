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

// Package wpan builds and dissects IEEE 802.15.4 MAC frames.
package wpan

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/types"
)

type FrameType = uint16

const (
	FrameTypeBeacon  FrameType = 0
	FrameTypeData    FrameType = 1
	FrameTypeAck     FrameType = 2
	FrameTypeCommand FrameType = 3
)

// Values for both Src and Dst addressing modes, Table 7-3, 802.15.4-2015.
const (
	AddrModeNone     = 0
	AddrModeReserved = 1
	AddrModeShort    = 2
	AddrModeExtended = 3
)

const (
	FrameVersion2003 = 0
	FrameVersion2006 = 1
	FrameVersion2015 = 2
)

const (
	fcSecurityEnabled   FrameControl = 0x0008
	fcFramePending      FrameControl = 0x0010
	fcAckRequest        FrameControl = 0x0020
	fcPanidCompression  FrameControl = 0x0040
	fcSeqNumSuppression FrameControl = 0x0100
	fcIEPresent         FrameControl = 0x0200
)

// BroadcastPanId and types.BroadcastShortAddr address every device on the channel.
const BroadcastPanId uint16 = 0xffff

type FrameControl uint16

func (fc FrameControl) String() string {
	return fmt.Sprintf("0x%04x", uint16(fc))
}

func (fc FrameControl) FrameType() FrameType {
	return FrameType(fc & 0x0007)
}

func (fc FrameControl) SecurityEnabled() bool {
	return fc&fcSecurityEnabled != 0
}

func (fc FrameControl) FramePending() bool {
	return fc&fcFramePending != 0
}

func (fc FrameControl) AckRequest() bool {
	return fc&fcAckRequest != 0
}

func (fc FrameControl) PanidCompression() bool {
	return fc&fcPanidCompression != 0
}

func (fc FrameControl) SequenceNumberSuppression() bool {
	return fc&fcSeqNumSuppression != 0
}

func (fc FrameControl) IEPresent() bool {
	return fc&fcIEPresent != 0
}

func (fc FrameControl) DestAddrMode() uint16 {
	return uint16((fc & 0x0c00) >> 10)
}

func (fc FrameControl) SourceAddrMode() uint16 {
	return uint16((fc & 0xc000) >> 14)
}

func (fc FrameControl) FrameVersion() uint16 {
	return uint16((fc & 0x3000) >> 12)
}

func (fc *FrameControl) Dissect(bytes []byte) {
	*fc = FrameControl(binary.LittleEndian.Uint16(bytes))
}

func (fc *FrameControl) HasDestPanIdField() bool {
	dam := fc.DestAddrMode()
	if fc.FrameVersion() <= 1 {
		return dam != AddrModeNone
	}
	sam := fc.SourceAddrMode()
	if dam != AddrModeNone && sam != AddrModeNone {
		return true
	}
	pc := fc.PanidCompression()
	if dam == AddrModeExtended && sam == AddrModeExtended {
		return !pc
	}
	if sam == AddrModeNone && dam != AddrModeNone && !pc {
		return true
	}
	if sam == AddrModeNone && dam == AddrModeNone && pc {
		return true
	}
	return false
}

func (fc *FrameControl) HasSourcePanIdField() bool {
	dam := fc.DestAddrMode()
	sam := fc.SourceAddrMode()
	pc := fc.PanidCompression()
	if fc.FrameVersion() <= 1 {
		if sam != AddrModeNone && !pc {
			return true
		}
		return false
	}
	if dam == AddrModeExtended && sam == AddrModeExtended && !pc {
		return false
	}
	if sam == AddrModeNone {
		return false
	}
	return !pc
}

// NewFrameControl composes a frame control field.
func NewFrameControl(frameType FrameType, version uint16, dstMode, srcMode uint16, ackRequest, panidCompression bool) FrameControl {
	fc := FrameControl(frameType&0x7) | FrameControl(dstMode&0x3)<<10 | FrameControl(version&0x3)<<12 |
		FrameControl(srcMode&0x3)<<14
	if ackRequest {
		fc |= fcAckRequest
	}
	if panidCompression {
		fc |= fcPanidCompression
	}
	return fc
}

// MacFrame is a dissected MAC frame. Payload aliases the PSDU it was dissected from.
type MacFrame struct {
	FrameControl    FrameControl
	Seq             uint8
	DstPanId        uint16
	SrcPanId        uint16
	DstAddrShort    uint16
	SrcAddrShort    uint16
	DstAddrExtended uint64
	SrcAddrExtended uint64
	Payload         []byte
	Fcs             uint16
	LengthBytes     uint16
	PhyHdrLength    uint16
}

func (f *MacFrame) String() string {
	if f.FrameControl.FrameType() == FrameTypeAck {
		return fmt.Sprintf("ACK,FC:%s,Seq:%d", f.FrameControl, f.Seq)
	}

	return fmt.Sprintf("MAC,FC:%s,Seq:%d,Dst:%s,Src:%s,Len:%d", f.FrameControl, f.Seq,
		addrString(f.FrameControl.DestAddrMode(), f.DstPanId, f.DstAddrShort, f.DstAddrExtended),
		addrString(f.FrameControl.SourceAddrMode(), f.SrcPanId, f.SrcAddrShort, f.SrcAddrExtended),
		f.LengthBytes)
}

func addrString(mode uint16, pan uint16, short uint16, ext uint64) string {
	switch mode {
	case AddrModeShort:
		return fmt.Sprintf("%04x/%04x", pan, short)
	case AddrModeExtended:
		return fmt.Sprintf("%04x/%016x", pan, ext)
	default:
		return "-"
	}
}

// IsBroadcast returns true if the destination is the broadcast short address.
func (f *MacFrame) IsBroadcast() bool {
	return f.FrameControl.DestAddrMode() == AddrModeShort && f.DstAddrShort == types.BroadcastShortAddr
}

// Dissect parses a PSDU including its 2 byte FCS. The FCS is not verified, see CheckFcs.
func Dissect(psdu []byte) (*MacFrame, error) {
	if len(psdu) < 3+types.MacFcsLen {
		return nil, errors.Errorf("frame too short: %d bytes", len(psdu))
	}
	if len(psdu) > types.MaxPhyPacketSize {
		return nil, errors.Errorf("frame too long: %d bytes", len(psdu))
	}

	frame := &MacFrame{}
	frame.LengthBytes = uint16(len(psdu))
	frame.PhyHdrLength = types.PhyHeaderLenBytes
	frame.FrameControl.Dissect(psdu[0:2])
	end := len(psdu) - types.MacFcsLen
	frame.Fcs = binary.LittleEndian.Uint16(psdu[end:])
	if frame.FrameControl.FrameType() > FrameTypeCommand {
		return frame, errors.Errorf("unsupported frame type %d", frame.FrameControl.FrameType())
	}
	if frame.FrameControl.SecurityEnabled() {
		return frame, errors.Errorf("secured frames not supported")
	}

	n := 2
	need := func(k int) error {
		if n+k > end {
			return errors.Errorf("frame truncated at offset %d", n)
		}
		return nil
	}

	if !frame.FrameControl.SequenceNumberSuppression() {
		if err := need(1); err != nil {
			return frame, err
		}
		frame.Seq = psdu[n]
		n += 1
	}
	if frame.FrameControl.HasDestPanIdField() {
		if err := need(2); err != nil {
			return frame, err
		}
		frame.DstPanId = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	}

	switch frame.FrameControl.DestAddrMode() {
	case AddrModeExtended:
		if err := need(8); err != nil {
			return frame, err
		}
		frame.DstAddrExtended = binary.LittleEndian.Uint64(psdu[n : n+8])
		n += 8
	case AddrModeShort:
		if err := need(2); err != nil {
			return frame, err
		}
		frame.DstAddrShort = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	default:
		break
	}

	if frame.FrameControl.HasSourcePanIdField() {
		if err := need(2); err != nil {
			return frame, err
		}
		frame.SrcPanId = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	} else if frame.FrameControl.PanidCompression() {
		frame.SrcPanId = frame.DstPanId
	}

	switch frame.FrameControl.SourceAddrMode() {
	case AddrModeExtended:
		if err := need(8); err != nil {
			return frame, err
		}
		frame.SrcAddrExtended = binary.LittleEndian.Uint64(psdu[n : n+8])
		n += 8
	case AddrModeShort:
		if err := need(2); err != nil {
			return frame, err
		}
		frame.SrcAddrShort = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	default:
		break
	}

	frame.Payload = psdu[n:end]
	return frame, nil
}
