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

// LogDistance is the log-distance path loss model: below ReferenceDistance the loss is ReferenceLoss,
// above it grows by 10*Exponent dB per decade of distance.
type LogDistance struct {
	Exponent          float64
	ReferenceDistance float64 // m
	ReferenceLoss     DbValue // dB at ReferenceDistance
}

func NewLogDistance() *LogDistance {
	return &LogDistance{
		Exponent:          3.0,
		ReferenceDistance: 1.0,
		ReferenceLoss:     46.6777,
	}
}

func (m *LogDistance) Name() string {
	return "logdistance"
}

func (m *LogDistance) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	dist := a.DistanceTo(b)
	if dist <= m.ReferenceDistance {
		return txPowerDbm - m.ReferenceLoss
	}
	pathLossDb := 10 * m.Exponent * math.Log10(dist/m.ReferenceDistance)
	return txPowerDbm - m.ReferenceLoss - pathLossDb
}

// ItuIndoor is the ITU model for indoor attenuation at 2.4 GHz.
// See https://en.wikipedia.org/wiki/ITU_model_for_indoor_attenuation
type ItuIndoor struct {
	ExponentDb  DbValue
	FixedLossDb DbValue
}

func NewItuIndoor() *ItuIndoor {
	return &ItuIndoor{
		ExponentDb:  30.0,
		FixedLossDb: paround(20.0*math.Log10(2400) - 28.0),
	}
}

func (m *ItuIndoor) Name() string {
	return "itu-indoor"
}

func (m *ItuIndoor) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	pathloss := 0.0
	distMeters := a.DistanceTo(b)
	if distMeters >= 0.01 {
		pathloss = m.ExponentDb*math.Log10(distMeters) + m.FixedLossDb
		if pathloss < 0.0 {
			pathloss = 0.0
		}
	}
	return txPowerDbm - pathloss
}

// ThreeGppIndoor is the Indoor/Office model of 3GPP TR 38.901 V17.0.0, Table 7.4.1-1. With Nlos set,
// the loss is the maximum of the LOS and NLOS losses.
type ThreeGppIndoor struct {
	ExponentDb      DbValue
	FixedLossDb     DbValue
	NlosExponentDb  DbValue
	NlosFixedLossDb DbValue
	Nlos            bool
}

func NewThreeGppIndoor() *ThreeGppIndoor {
	return &ThreeGppIndoor{
		ExponentDb:      17.3,
		FixedLossDb:     paround(32.4 + 20*math.Log10(2.4)),
		NlosExponentDb:  38.3,
		NlosFixedLossDb: paround(17.3 + 24.9*math.Log10(2.4)),
		Nlos:            true,
	}
}

func (m *ThreeGppIndoor) Name() string {
	return "3gpp-indoor"
}

func (m *ThreeGppIndoor) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	pathloss := 0.0
	distMeters := a.DistanceTo(b)
	if distMeters >= 0.01 {
		pathloss = m.ExponentDb*math.Log10(distMeters) + m.FixedLossDb
		if pathloss < 0.0 {
			pathloss = 0.0
		}
		if m.Nlos {
			pathlossNLOS := m.NlosExponentDb*math.Log10(distMeters) + m.NlosFixedLossDb
			pathloss = math.Max(pathloss, pathlossNLOS)
		}
	}
	return txPowerDbm - pathloss
}

// FixedRss returns the same receive power for every link.
type FixedRss struct {
	RssDbm DbValue
}

func (m *FixedRss) Name() string {
	return "fixed"
}

func (m *FixedRss) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	return m.RssDbm
}

// Range passes the power unchanged up to MaxRange meters and cuts the link off beyond it.
type Range struct {
	MaxRange float64
}

func (m *Range) Name() string {
	return "range"
}

func (m *Range) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	if a.DistanceTo(b) <= m.MaxRange {
		return txPowerDbm
	}
	return RangeCutoffDbm
}
