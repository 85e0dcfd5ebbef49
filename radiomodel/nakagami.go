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

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/openthread/lowpan-ns/prng"
	. "github.com/openthread/lowpan-ns/types"
)

// Nakagami is the Nakagami-m fast fading model. The shape parameter m depends on the distance band:
// M0 below Distance1, M1 below Distance2 and M2 beyond. The received power in W is drawn from a Gamma
// distribution with shape m and mean equal to the input power.
type Nakagami struct {
	M0        float64
	M1        float64
	M2        float64
	Distance1 float64
	Distance2 float64

	rnd *prng.Stream
}

func NewNakagami(rnd *prng.Stream) *Nakagami {
	return &Nakagami{
		M0:        1.5,
		M1:        0.75,
		M2:        0.75,
		Distance1: 80,
		Distance2: 200,
		rnd:       rnd,
	}
}

func (m *Nakagami) Name() string {
	return "nakagami"
}

func (m *Nakagami) shape(dist float64) float64 {
	if dist < m.Distance1 {
		return m.M0
	} else if dist < m.Distance2 {
		return m.M1
	}
	return m.M2
}

func (m *Nakagami) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	shape := m.shape(a.DistanceTo(b))
	powerW := math.Pow(10, (txPowerDbm-30)/10)
	g := distuv.Gamma{
		Alpha: shape,
		Beta:  shape / powerW,
		Src:   m.rnd,
	}
	resultPowerW := g.Rand()
	if resultPowerW <= 0 {
		return RangeCutoffDbm
	}
	return 10*math.Log10(resultPowerW) + 30
}
