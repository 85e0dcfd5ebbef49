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

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/prng"
	. "github.com/openthread/lowpan-ns/types"
)

const (
	initialCacheSize = 1000
	maxCacheSize     = 5000000
)

// ShadowFading adds shadow fading (SF) and, if a time source is set, time-variant fading (TVF) to a link.
//
// SF: models a fixed, position-dependent radio signal power attenuation (SF>0) or increase (SF<0) due to multipath
// effects and static obstacles. In the dB domain it is normally distributed (mu=0, sigma). Links are symmetric and
// node positions are quantized to a 5 m grid, so the value is fixed while both nodes stay within their grid cells.
// See 3GPP TR 38.901 V17.0.0, section 7.4.1 and 7.4.4.
//
// TVF: a per-link sigma is drawn once; a new fade value is drawn after exponentially distributed intervals.
type ShadowFading struct {
	SigmaDb              DbValue
	TimeFadingSigmaMaxDb DbValue
	MeanTimeFadingChange float64 // s

	now              func() uint64
	rnd              *prng.Stream
	shFadeMap        map[uint64]DbValue
	tvFadeMap        map[uint64]DbValue
	tvFadeSigmaMap   map[uint64]DbValue
	changeTvfTimeMap map[uint64]uint64
}

func NewShadowFading(rnd *prng.Stream) *ShadowFading {
	sf := &ShadowFading{
		SigmaDb:              8.03,
		TimeFadingSigmaMaxDb: 0,
		MeanTimeFadingChange: 150,
		rnd:                  rnd,
	}
	sf.clearCaches()
	return sf
}

func (sf *ShadowFading) Name() string {
	return "shadow-fading"
}

// SetTimeSource enables time-variant fading.
func (sf *ShadowFading) SetTimeSource(now func() uint64) {
	sf.now = now
}

func (sf *ShadowFading) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	return txPowerDbm - sf.computeFading(a, b)
}

func (sf *ShadowFading) computeFading(a, b Vector) DbValue {
	if len(sf.shFadeMap) > maxCacheSize {
		sf.clearCaches()
	}

	link := calcLinkUID(a, b)

	vSF, ok := sf.shFadeMap[link]
	if !ok {
		// drawn once per link and grid cell pair, from the model's own stream
		vSF = distuv.Normal{Mu: 0, Sigma: sf.SigmaDb, Src: sf.rnd}.Rand()
		sf.shFadeMap[link] = vSF
		sf.tvFadeSigmaMap[link] = distuv.Uniform{Min: 0, Max: sf.TimeFadingSigmaMaxDb, Src: sf.rnd}.Rand()
	}
	if sf.now == nil || sf.TimeFadingSigmaMaxDb <= 0 {
		return vSF
	}

	ts := sf.now()
	vTVF, ok := sf.tvFadeMap[link]
	if !ok || ts > sf.changeTvfTimeMap[link] {
		vTVF = sf.rnd.NormFloat64() * sf.tvFadeSigmaMap[link]
		sf.tvFadeMap[link] = vTVF
		nextChangeDeltaSec := sf.rnd.ExpFloat64() * sf.MeanTimeFadingChange
		sf.changeTvfTimeMap[link] = ts + SecondsToUs(nextChangeDeltaSec)
	}
	return vSF + vTVF
}

func (sf *ShadowFading) clearCaches() {
	if len(sf.shFadeMap) > 0 {
		logger.Debugf("Radio fading model: purging fadeMap caches")
	}
	sf.shFadeMap = make(map[uint64]DbValue, initialCacheSize)
	sf.tvFadeSigmaMap = make(map[uint64]DbValue, initialCacheSize)
	sf.tvFadeMap = make(map[uint64]DbValue, initialCacheSize)
	sf.changeTvfTimeMap = make(map[uint64]uint64, initialCacheSize)
}

func calcLinkUID(a, b Vector) uint64 {
	// node positions in grid units of 5 m, using only positive values (uint16 range)
	x1 := uint16(math.Round(a.X*0.2) + 32768)
	y1 := uint16(math.Round(a.Y*0.2) + 32768)
	x2 := uint16(math.Round(b.X*0.2) + 32768)
	y2 := uint16(math.Round(b.Y*0.2) + 32768)
	xL, yL, xR, yR := x2, y2, x1, y1

	// use left-most node (and in case of doubt, top-most)
	if x1 < x2 || (x1 == x2 && y1 < y2) {
		xL, yL, xR, yR = x1, y1, x2, y2
	}
	return uint64(xL) | uint64(yL)<<16 | uint64(xR)<<32 | uint64(yR)<<48
}
