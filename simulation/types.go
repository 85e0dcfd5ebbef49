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

package simulation

import (
	"reflect"

	"github.com/pkg/errors"

	. "github.com/openthread/lowpan-ns/types"
)

var (
	exitError         = errors.Errorf("operation aborted due to simulation exit")
	nodeNotFoundError = errors.Errorf("node not found")
)

// NodeCounters maps counter names, e.g. "mac.TxSuccess", to values.
type NodeCounters map[string]uint64

// Add adds all counters of other to nc.
func (nc NodeCounters) Add(other NodeCounters) {
	for k, v := range other {
		nc[k] += v
	}
}

// addStructCounters adds every uint64 field of the struct pointed to by v under "<prefix><FieldName>".
func addStructCounters(nc NodeCounters, prefix string, v interface{}) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.Uint64 {
			nc[prefix+rt.Field(i).Name] = f.Uint()
		}
	}
}

// LinkStats aggregates the frames one node received from another.
type LinkStats struct {
	Src        NodeId  `json:"src" yaml:"src"`
	Dst        NodeId  `json:"dst" yaml:"dst"`
	Frames     uint64  `json:"frames" yaml:"frames"`
	Drops      uint64  `json:"drops" yaml:"drops"`
	LastRssDbm DbValue `json:"last_rss_dbm" yaml:"last-rss"`
	AvgSinrDb  DbValue `json:"avg_sinr_db" yaml:"avg-sinr"`
	sinrSum    float64
}

type linkKey struct {
	src, dst NodeId
}
