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

// Package sampler periodically estimates the signal between a node and a peer from a loss model.
package sampler

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
)

// Config of a sampler. Times are in us.
type Config struct {
	Start         uint64
	Interval      uint64
	Until         uint64
	TxPowerDbm    DbValue
	NoisePowerDbm DbValue
}

func DefaultConfig() Config {
	return Config{
		Start:         UsPerSec,
		Interval:      UsPerSec,
		Until:         60 * UsPerSec,
		TxPowerDbm:    0.0,
		NoisePowerDbm: DefaultNoiseFloorDbm,
	}
}

// Endpoint is one side of the sampled link.
type Endpoint struct {
	Id       NodeId
	Name     string
	Mobility mobility.Model
}

// Sample is a single signal estimate.
type Sample struct {
	Timestamp  uint64
	NodeId     NodeId
	PeerId     NodeId
	Distance   float64
	RxPowerDbm DbValue
	SnrDb      DbValue
}

func (s *Sample) String() string {
	return fmt.Sprintf("[Signal] Time: %.6gs | Distance: %.6gm | Rx Power: %.6g dBm | SNR: %.6g dB",
		UsToSeconds(s.Timestamp), s.Distance, s.RxPowerDbm, s.SnrDb)
}

// Summary of the samples taken so far.
type Summary struct {
	Count       int     `json:"count"`
	SnrMinDb    float64 `json:"snr_min_db"`
	SnrMeanDb   float64 `json:"snr_mean_db"`
	SnrMaxDb    float64 `json:"snr_max_db"`
	DistanceMax float64 `json:"distance_max"`
}

// Sampler takes a sample every interval while the simulation time is below Until.
type Sampler struct {
	cfg       Config
	sched     event.Scheduler
	node      Endpoint
	peer      Endpoint
	loss      radiomodel.LossModel
	out       io.Writer
	samples   []Sample
	listeners []func(s *Sample)
	evt       *event.Event
}

func New(sched event.Scheduler, node, peer Endpoint, loss radiomodel.LossModel, cfg Config) (*Sampler, error) {
	if node.Mobility == nil || peer.Mobility == nil {
		return nil, errors.Errorf("sampler endpoints need mobility models")
	}
	if loss == nil {
		return nil, errors.Errorf("sampler needs a loss model")
	}
	if cfg.Interval == 0 {
		return nil, errors.Errorf("sampler interval must be positive")
	}
	return &Sampler{
		cfg:   cfg,
		sched: sched,
		node:  node,
		peer:  peer,
		loss:  loss,
		out:   os.Stdout,
	}, nil
}

func (s *Sampler) Node() Endpoint {
	return s.node
}

func (s *Sampler) Peer() Endpoint {
	return s.peer
}

// SetOutput sets where sample lines are printed. nil disables printing.
func (s *Sampler) SetOutput(w io.Writer) {
	s.out = w
}

func (s *Sampler) OnSample(f func(s *Sample)) {
	s.listeners = append(s.listeners, f)
}

// Start schedules the first sample at the configured start time.
func (s *Sampler) Start() {
	s.Stop()
	at := s.cfg.Start
	if now := s.sched.Now(); at < now {
		at = now
	}
	s.evt = s.sched.ScheduleAt(at, "signal-sample", s.collect)
}

func (s *Sampler) Stop() {
	if s.evt != nil {
		s.sched.Cancel(s.evt)
		s.evt = nil
	}
}

// SampleNow computes a sample at the current time without storing it.
func (s *Sampler) SampleNow() Sample {
	now := s.sched.Now()
	a := s.node.Mobility.Position(now)
	b := s.peer.Mobility.Position(now)
	rx := s.loss.CalcRxPower(s.cfg.TxPowerDbm, a, b)
	return Sample{
		Timestamp:  now,
		NodeId:     s.node.Id,
		PeerId:     s.peer.Id,
		Distance:   a.DistanceTo(b),
		RxPowerDbm: rx,
		SnrDb:      radiomodel.SnrDb(rx, s.cfg.NoisePowerDbm),
	}
}

func (s *Sampler) collect() {
	s.evt = nil
	smp := s.SampleNow()
	s.samples = append(s.samples, smp)
	if s.out != nil {
		if _, err := fmt.Fprintln(s.out, smp.String()); err != nil {
			logger.Warnf("sampler output: %v", err)
		}
	}
	for _, f := range s.listeners {
		f(&smp)
	}
	if smp.Timestamp < s.cfg.Until {
		s.evt = s.sched.Schedule(s.cfg.Interval, "signal-sample", s.collect)
	}
}

func (s *Sampler) Samples() []Sample {
	return s.samples
}

// Last returns the most recent sample.
func (s *Sampler) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

func (s *Sampler) Summary() Summary {
	sum := Summary{Count: len(s.samples)}
	if sum.Count == 0 {
		return sum
	}
	snr := make([]float64, len(s.samples))
	dist := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		snr[i] = smp.SnrDb
		dist[i] = smp.Distance
	}
	sum.SnrMinDb = floats.Min(snr)
	sum.SnrMaxDb = floats.Max(snr)
	sum.SnrMeanDb = stat.Mean(snr, nil)
	sum.DistanceMax = floats.Max(dist)
	return sum
}
