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

// Package radiomodel contains the propagation loss models and link-level helpers used by the radio channel.
package radiomodel

import (
	"strings"

	. "github.com/openthread/lowpan-ns/types"
)

// LossModel computes the power received at b for a signal sent at a with txPowerDbm.
type LossModel interface {
	CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue
	Name() string
}

// Chain applies models in order; the output power of one model is the input of the next.
type Chain struct {
	models []LossModel
}

func NewChain(models ...LossModel) *Chain {
	return &Chain{models: models}
}

func (c *Chain) Append(m LossModel) {
	c.models = append(c.models, m)
}

func (c *Chain) Len() int {
	return len(c.models)
}

func (c *Chain) Models() []LossModel {
	return c.models
}

func (c *Chain) CalcRxPower(txPowerDbm DbValue, a, b Vector) DbValue {
	p := txPowerDbm
	for _, m := range c.models {
		p = m.CalcRxPower(p, a, b)
	}
	return p
}

func (c *Chain) Name() string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name()
	}
	return strings.Join(names, "+")
}
