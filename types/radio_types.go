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

package types

// IEEE 802.15.4 O-QPSK PHY at 2.4 GHz.
const (
	MinChannelNumber ChannelId = 11
	MaxChannelNumber ChannelId = 26
	DefaultChannel   ChannelId = 11

	SymbolTimeUs      uint64 = 16
	TimeUsPerBit      uint64 = 4
	TimeUsPerByte     uint64 = 32
	PhyHeaderLenBytes        = 6
	MaxPhyPacketSize         = 127
	MacFcsLen                = 2

	TurnaroundTimeUs   uint64 = 12 * SymbolTimeUs // aTurnaroundTime
	UnitBackoffUs      uint64 = 20 * SymbolTimeUs // aUnitBackoffPeriod
	CcaTimeUs          uint64 = 8 * SymbolTimeUs
	AckWaitDurationUs  uint64 = 54 * SymbolTimeUs // macAckWaitDuration
	MacMinBE                  = 3
	MacMaxBE                  = 5
	MacMaxCsmaBackoffs        = 4
	MacMaxFrameRetries        = 3
)

// RSSI limits as reported by the simulated radios.
const (
	RssiInvalid       DbValue = 127
	RssiMax           DbValue = 126
	RssiMin           DbValue = -126
	RssiMinusInfinity DbValue = -127
)

const (
	DefaultTxPowerDbm       DbValue = 0.0
	DefaultRxSensitivityDbm DbValue = -106.58
	DefaultNoiseFloorDbm    DbValue = -101.0
)

// FrameDurationUs returns the on-air time of a PSDU of the given length, including the PHY header.
func FrameDurationUs(psduLen int) uint64 {
	return uint64(psduLen+PhyHeaderLenBytes) * TimeUsPerByte
}
