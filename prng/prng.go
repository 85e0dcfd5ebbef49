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

// Package prng hands out named, reproducible random streams. Every stochastic
// component of a simulation owns its own stream so that adding or removing
// one component does not shift the draws of another.
package prng

import (
	"hash/fnv"
	"math"
	"strconv"
	"sync"

	"github.com/iti/rngstream"
)

// RandomSeed is the root seed of a simulation run.
type RandomSeed int64

const (
	// moduli of the two MRG32k3a components; seeds must be below them and not all zero.
	mrgM1 = 4294967087
	mrgM2 = 4294944443
)

var (
	mutex    sync.Mutex
	rootSeed RandomSeed = 1
	runNum   uint64     = 1
	streams             = map[string]int{}
)

// Init sets the root seed and the run number used by all subsequently created streams.
// A seed <= 0 is replaced by 1, so runs stay reproducible by default.
func Init(seed RandomSeed, run uint64) {
	mutex.Lock()
	defer mutex.Unlock()

	if seed <= 0 {
		seed = 1
	}
	rootSeed = seed
	runNum = run
	streams = map[string]int{}
}

// Stream is a single independent random number stream. It implements the
// math/rand/v2 Source interface, so it can drive gonum distributions.
type Stream struct {
	name string
	rs   *rngstream.RngStream
}

// NewStream creates the next stream. Stream names are made unique by appending
// a counter when the same name is requested more than once. The draws of a stream
// depend only on its unique name, the root seed and the run number: the seed selects
// the stream and the run selects one of its substreams.
func NewStream(name string) *Stream {
	mutex.Lock()
	n := streams[name]
	streams[name] = n + 1
	seed, run := rootSeed, runNum
	mutex.Unlock()

	uniq := name
	if n > 0 {
		uniq = name + "#" + strconv.Itoa(n)
	}
	s := &Stream{
		name: uniq,
		rs:   rngstream.New(uniq),
	}
	if !s.rs.SetSeed(streamSeed(uniq, seed)) {
		panic("prng: invalid stream seed for " + uniq)
	}
	for i := uint64(0); i < run; i++ {
		s.rs.ResetNextSubstream()
	}
	return s
}

// streamSeed derives the six MRG32k3a seed words of a named stream.
func streamSeed(name string, seed RandomSeed) []uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	x := h.Sum64() ^ (uint64(seed) * 0x9e3779b97f4a7c15)

	words := make([]uint64, 6)
	for i := range words {
		// splitmix64
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		m := uint64(mrgM1)
		if i >= 3 {
			m = mrgM2
		}
		words[i] = 1 + z%(m-1)
	}
	return words
}

// Name returns the unique stream name.
func (s *Stream) Name() string {
	return s.name
}

// Float64 returns a uniform value in (0, 1).
func (s *Stream) Float64() float64 {
	return s.rs.RandU01()
}

// Uniform returns a uniform value in (min, max).
func (s *Stream) Uniform(min, max float64) float64 {
	return min + (max-min)*s.rs.RandU01()
}

// Intn returns a uniform integer in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("prng: invalid argument to Intn")
	}
	return s.rs.RandInt(0, n-1)
}

// IntRange returns a uniform integer in [a, b].
func (s *Stream) IntRange(a, b int) int {
	return s.rs.RandInt(a, b)
}

// Uint64 returns 64 random bits built from two 32-bit draws.
func (s *Stream) Uint64() uint64 {
	hi := uint64(s.rs.RandU01() * (1 << 32))
	lo := uint64(s.rs.RandU01() * (1 << 32))
	return hi<<32 | lo
}

// ExpFloat64 returns an exponentially distributed value with rate 1.
func (s *Stream) ExpFloat64() float64 {
	return -math.Log(s.rs.RandU01())
}

// NormFloat64 returns a standard normal value (Box-Muller).
func (s *Stream) NormFloat64() float64 {
	u1 := s.rs.RandU01()
	u2 := s.rs.RandU01()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
