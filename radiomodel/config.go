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
	"sort"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/prng"
)

// LossModelConfig selects a loss model by type and overrides its parameters.
type LossModelConfig struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// LossModelTypes lists the model types accepted by NewLossModel.
var LossModelTypes = []string{"logdistance", "nakagami", "itu-indoor", "3gpp-indoor", "shadow-fading", "fixed", "range"}

type paramSetter map[string]*float64

func (ps paramSetter) apply(typ string, params map[string]float64) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p, ok := ps[k]
		if !ok {
			return errors.Errorf("unknown parameter %q for loss model %s", k, typ)
		}
		*p = params[k]
	}
	return nil
}

// NewLossModel creates a model from cfg. Stochastic models draw from a stream named streamName.
func NewLossModel(cfg *LossModelConfig, streamName string) (LossModel, error) {
	switch cfg.Type {
	case "logdistance":
		m := NewLogDistance()
		err := paramSetter{
			"exponent":          &m.Exponent,
			"referenceDistance": &m.ReferenceDistance,
			"referenceLoss":     &m.ReferenceLoss,
		}.apply(cfg.Type, cfg.Params)
		if err == nil && m.ReferenceDistance <= 0 {
			err = errors.Errorf("logdistance: referenceDistance must be positive")
		}
		return m, err
	case "nakagami":
		m := NewNakagami(prng.NewStream(streamName))
		err := paramSetter{
			"m0":        &m.M0,
			"m1":        &m.M1,
			"m2":        &m.M2,
			"distance1": &m.Distance1,
			"distance2": &m.Distance2,
		}.apply(cfg.Type, cfg.Params)
		if err == nil && (m.M0 <= 0 || m.M1 <= 0 || m.M2 <= 0) {
			err = errors.Errorf("nakagami: m parameters must be positive")
		}
		return m, err
	case "itu-indoor":
		m := NewItuIndoor()
		err := paramSetter{
			"exponent":  &m.ExponentDb,
			"fixedLoss": &m.FixedLossDb,
		}.apply(cfg.Type, cfg.Params)
		return m, err
	case "3gpp-indoor":
		m := NewThreeGppIndoor()
		nlos := 1.0
		err := paramSetter{
			"exponent":      &m.ExponentDb,
			"fixedLoss":     &m.FixedLossDb,
			"nlosExponent":  &m.NlosExponentDb,
			"nlosFixedLoss": &m.NlosFixedLossDb,
			"nlos":          &nlos,
		}.apply(cfg.Type, cfg.Params)
		m.Nlos = nlos != 0
		return m, err
	case "shadow-fading":
		m := NewShadowFading(prng.NewStream(streamName))
		err := paramSetter{
			"sigma":          &m.SigmaDb,
			"tvfSigmaMax":    &m.TimeFadingSigmaMaxDb,
			"meanTimeChange": &m.MeanTimeFadingChange,
		}.apply(cfg.Type, cfg.Params)
		return m, err
	case "fixed":
		m := &FixedRss{RssDbm: -50}
		err := paramSetter{
			"rss": &m.RssDbm,
		}.apply(cfg.Type, cfg.Params)
		return m, err
	case "range":
		m := &Range{MaxRange: 250}
		err := paramSetter{
			"maxRange": &m.MaxRange,
		}.apply(cfg.Type, cfg.Params)
		return m, err
	default:
		return nil, errors.Errorf("unknown loss model type %q (known: %v)", cfg.Type, LossModelTypes)
	}
}

// NewLossChain creates a chain of models from cfgs. The stream of model i is named "<streamPrefix>-<i>".
func NewLossChain(cfgs []LossModelConfig, streamPrefix string) (*Chain, error) {
	c := NewChain()
	for i := range cfgs {
		m, err := NewLossModel(&cfgs[i], streamPrefix+"-"+cfgs[i].Type)
		if err != nil {
			return nil, errors.Wrapf(err, "loss model %d", i)
		}
		c.Append(m)
	}
	return c, nil
}

// TimeAware models vary over time and need the simulated clock.
type TimeAware interface {
	SetTimeSource(now func() uint64)
}

// SetTimeSource passes the simulated clock to every time-aware model of the chain.
func (c *Chain) SetTimeSource(now func() uint64) {
	for _, m := range c.models {
		if ta, ok := m.(TimeAware); ok {
			ta.SetTimeSource(now)
		}
	}
}

var _ TimeAware = (*ShadowFading)(nil)
var _ LossModel = (*Chain)(nil)

// DefaultScenarioChain returns the parameters of the scenario's LogDistance + Nakagami chain.
func DefaultScenarioChain() []LossModelConfig {
	return []LossModelConfig{
		{
			Type: "logdistance",
			Params: map[string]float64{
				"exponent":          4.5,
				"referenceDistance": 1.0,
				"referenceLoss":     46.6777,
			},
		},
		{
			Type: "nakagami",
			Params: map[string]float64{
				"m0":        0.8,
				"m1":        0.5,
				"m2":        0.2,
				"distance1": 80,
				"distance2": 200,
			},
		},
	}
}
