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

package radiomodel

import (
	"math"

	. "github.com/openthread/lowpan-ns/types"
)

// reference: IEEE 802.15.4-2006, E.4.1.8 Bit Error Rate (BER) calculations
var (
	binomialCoeff = []float64{120, -560, 1820, -4368, 8008, -11440, 12870, -11440, 8008, -4368, 1820, -560, 120, -16, 1}
)

// BitErrorRate gives the O-QPSK 2.4 GHz BER at the given SINR.
func BitErrorRate(sinrDb DbValue) float64 {
	sinr := math.Pow(10, sinrDb/10.0)
	ber := 0.0
	for idx, coeff := range binomialCoeff {
		k := float64(idx + 2)
		ber += coeff * math.Exp(20.0*sinr*(1.0/k-1.0))
	}
	ber = ber * 8.0 / 15.0 / 16.0
	return math.Max(0, math.Min(ber, 1.0))
}

// PacketSuccessRate gives the probability that a PPDU carrying psduBytes is received without bit errors,
// and the number of bits it spans.
func PacketSuccessRate(sinrDb DbValue, psduBytes int) (float64, int) {
	nbits := (psduBytes + PhyHeaderLenBytes) * 8
	// well above the waterfall every regular frame gets through
	if sinrDb >= 10.0 {
		return 1.0, nbits
	}
	ber := BitErrorRate(sinrDb)
	return math.Pow(1.0-ber, float64(nbits)), nbits
}
