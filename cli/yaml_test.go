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

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/openthread/lowpan-ns/simulation"
	. "github.com/openthread/lowpan-ns/types"
)

var testYamlConfig = `
title: "console test"
stop-time: 20
nodes:
    - id: 1
      type: ap
      position: {x: 0, y: 0, z: 0}
    - id: 2
      type: client
      mobility: constant-velocity
      position: {x: 5, y: 0, z: 0}
      waypoint:
          end: {x: 50, y: 0, z: 0}
          duration: 15
pings:
    - {src: 1, dst: 2, count: 10}
`

func TestYamlConfigUnmarshall(t *testing.T) {
	cfg := simulation.DefaultConfig()
	err := yaml.Unmarshal([]byte(testYamlConfig), cfg)
	assert.Nil(t, err)
	assert.Equal(t, "console test", cfg.Title)
	assert.Equal(t, 2, len(cfg.Nodes))
	assert.Equal(t, Vector{X: 5}, cfg.Nodes[1].Position)
	assert.Equal(t, 15.0, cfg.Nodes[1].Waypoint.Duration)
	assert.Equal(t, 1, len(cfg.Pings))
}

func TestOutputItemsAsYaml(t *testing.T) {
	var out bytes.Buffer
	cc := &CommandContext{output: &out}
	cc.outputItemsAsYaml(simulation.LinkStats{Src: 1, Dst: 2, Frames: 10, Drops: 1, LastRssDbm: -70.5, AvgSinrDb: 30})
	assert.Equal(t, "{src: 1, dst: 2, frames: 10, drops: 1, last-rss: -70.5, avg-sinr: 30}\n", out.String())

	out.Reset()
	cc.outputItemsAsYaml([]int{4, 5, 6})
	assert.Equal(t, "[4, 5, 6]\n", out.String())

	out.Reset()
	cc.outputItemsAsYaml([]simulation.LinkStats{{Src: 1, Dst: 2, Frames: 3}, {Src: 2, Dst: 1, Frames: 4}})
	assert.Equal(t, "- {src: 1, dst: 2, frames: 3, drops: 0, last-rss: 0, avg-sinr: 0}\n"+
		"- {src: 2, dst: 1, frames: 4, drops: 0, last-rss: 0, avg-sinr: 0}\n", out.String())

	// one node per line, each line parses back on its own
	out.Reset()
	cc.outputItemsAsYaml(simulation.NodeInfo{Id: 2, Name: "Jarbas", Type: "client", X: 5, Radio: "rx"})
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.Len(t, lines, 1)
	var info simulation.NodeInfo
	assert.NoError(t, yaml.Unmarshal([]byte(lines[0]), &info))
	assert.Equal(t, "Jarbas", info.Name)
	assert.Equal(t, 5.0, info.X)
}
