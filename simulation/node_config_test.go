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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/openthread/lowpan-ns/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60.0, cfg.StopTime)
	assert.Equal(t, 11, cfg.Channel)
	assert.Equal(t, "2001:2::/64", cfg.Prefix)
	assert.Len(t, cfg.Nodes, 3)
	assert.Equal(t, "AP", cfg.Nodes[0].Name)
	assert.Equal(t, Color{R: 255, G: 0, B: 0}, cfg.Nodes[0].Color)
	assert.Nil(t, cfg.Nodes[0].Waypoint)
	assert.Equal(t, Vector{X: 100, Y: 0, Z: 0}, cfg.Nodes[1].Waypoint.End)
	assert.Equal(t, Vector{X: 0, Y: 5, Z: 0}, cfg.Nodes[2].Position)
	assert.Len(t, cfg.Pings, 2)
	assert.Equal(t, uint32(100), cfg.Pings[0].Count)
	assert.Equal(t, []NodeId{2, 3}, cfg.Sampler.Nodes)
	assert.Equal(t, -101.0, cfg.Sampler.NoiseDbm)
	assert.Len(t, cfg.ChannelLoss, 2)
}

func TestLoadConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "scenario.yaml")
	yml := `
stop-time: 20
channel: 15
nodes:
  - id: 1
    name: AP
    type: ap
  - id: 7
    name: walker
    position: {x: 1, y: 2, z: 0}
    waypoint:
      end: {x: 30, y: 2, z: 0}
      duration: 10
      action: reverse
pings:
  - {src: 1, dst: 7, count: 5, interval: 1, size: 16, start: 1, stop: 20}
sampler:
  nodes: [7]
  peer: 1
`
	require.NoError(t, os.WriteFile(fn, []byte(yml), 0644))

	cfg, err := LoadConfigFile(fn)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.StopTime)
	assert.Equal(t, 15, cfg.Channel)
	assert.Equal(t, "2001:2::/64", cfg.Prefix) // untouched defaults remain
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, MobilityConstantPosition, cfg.Nodes[0].Mobility)
	assert.Equal(t, MobilityConstantVelocity, cfg.Nodes[1].Mobility)
	assert.Equal(t, NodeTypeClient, cfg.Nodes[1].Type)
	assert.Equal(t, "reverse", cfg.Nodes[1].Waypoint.Action)
	assert.Equal(t, Vector{X: 1, Y: 2, Z: 0}, cfg.Nodes[1].Position)
	assert.Len(t, cfg.Pings, 1)
	assert.Equal(t, 1.0, cfg.Sampler.Interval)
}

func TestConfigErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pings = append(cfg.Pings, PingSpec{Src: 1, Dst: 9, Interval: 1})
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Nodes[2].ID = 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Nodes[1].Waypoint.Duration = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Nodes[1].Mobility = MobilityConstantPosition
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Channel = 5
	assert.Error(t, cfg.Validate())

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExportConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DefaultConfig().ExportConfig(&buf))
	assert.Contains(t, buf.String(), "name: Jarbas")
	assert.Contains(t, buf.String(), "stop-time: 60")

	fn := filepath.Join(t.TempDir(), "exported.yaml")
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0644))
	cfg, err := LoadConfigFile(fn)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Nodes, cfg.Nodes)
}
