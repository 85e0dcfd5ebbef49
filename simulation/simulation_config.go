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
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/lowpan-ns/energy"
	"github.com/openthread/lowpan-ns/radiomodel"
	. "github.com/openthread/lowpan-ns/types"
)

const (
	DefaultPrefix          = "2001:2::/64"
	DefaultPanId           = 0
	DefaultStopTimeSec     = 60.0
	DefaultMobilityPollSec = 0.1
	DefaultNeighborDumpSec = 9.0
	DefaultTraceFile       = "Ping-6LoW-lr-wpan.tr"
	DefaultPcapPrefix      = "Ping-6LoW-lr-wpan"
	DefaultAnimFile        = "sixlowpan-animation.xml"
	DefaultLinkSnrDb       = 6.0
)

// Config describes a whole scenario. Times are in seconds.
type Config struct {
	Id        int     `yaml:"id"`
	Title     string  `yaml:"title"`
	Seed      int64   `yaml:"seed"`
	Run       uint64  `yaml:"run"`
	OutputDir string  `yaml:"output-dir"`
	Speed     float64 `yaml:"speed"`
	StopTime  float64 `yaml:"stop-time"`

	Channel     ChannelId                    `yaml:"channel"`
	PanId       uint16                       `yaml:"pan-id"`
	Prefix      string                       `yaml:"prefix"`
	UseIphc     bool                         `yaml:"iphc"`
	Context0    bool                         `yaml:"context0"`
	ChannelLoss []radiomodel.LossModelConfig `yaml:"channel-loss"`
	SamplerLoss []radiomodel.LossModelConfig `yaml:"sampler-loss"`

	Nodes   []NodeSpec    `yaml:"nodes"`
	Pings   []PingSpec    `yaml:"pings"`
	Sampler SamplerSpec   `yaml:"sampler"`
	Fail    []FailureSpec `yaml:"failures,omitempty"`

	MobilityPoll     float64            `yaml:"mobility-poll"`
	NeighborDump     float64            `yaml:"neighbor-dump"`
	SixLowPanLogInfo bool               `yaml:"sixlowpan-loginfo"`
	AsciiTrace       string             `yaml:"ascii-trace"`
	PcapPrefix       string             `yaml:"pcap-prefix"`
	PcapType         string             `yaml:"pcap-type"`
	AnimFile         string             `yaml:"anim-file"`
	AnimMeta         bool               `yaml:"anim-meta"`
	EnergyPeriod     float64            `yaml:"energy-period"`
	Energy           energy.Consumption `yaml:"energy"`
	LinkSnrDb        DbValue            `yaml:"link-snr"`
}

// NodeSpec is a node of the scenario plus its optional motion.
type NodeSpec struct {
	NodeConfig `yaml:",inline"`
	Waypoint   *WaypointSpec `yaml:"waypoint,omitempty"`
}

type WaypointSpec struct {
	End      Vector  `yaml:"end"`
	Duration float64 `yaml:"duration"`
	Action   string  `yaml:"action"`
}

// PingSpec is a ping application running on node Src toward the global address of node Dst.
type PingSpec struct {
	Src      NodeId  `yaml:"src"`
	Dst      NodeId  `yaml:"dst"`
	Count    uint32  `yaml:"count"`
	Interval float64 `yaml:"interval"`
	Size     int     `yaml:"size"`
	Start    float64 `yaml:"start"`
	Stop     float64 `yaml:"stop"`
	Timeout  float64 `yaml:"timeout,omitempty"`
	Verbose  string  `yaml:"verbose,omitempty"`
}

// SamplerSpec installs one signal sampler per listed node, measuring the link toward Peer.
type SamplerSpec struct {
	Nodes      []NodeId `yaml:"nodes"`
	Peer       NodeId   `yaml:"peer"`
	Start      float64  `yaml:"start"`
	Interval   float64  `yaml:"interval"`
	Until      float64  `yaml:"until"`
	TxPowerDbm DbValue  `yaml:"tx-power"`
	NoiseDbm   DbValue  `yaml:"noise"`
}

// FailureSpec lets the radio of a node fail for Duration seconds once per Interval seconds.
type FailureSpec struct {
	Node     NodeId  `yaml:"node"`
	Duration float64 `yaml:"duration"`
	Interval float64 `yaml:"interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Id:          0,
		Title:       "6LoWPAN ping with mobile clients",
		Seed:        1,
		Run:         1,
		OutputDir:   ".",
		Speed:       1,
		StopTime:    DefaultStopTimeSec,
		Channel:     DefaultChannel,
		PanId:       DefaultPanId,
		Prefix:      DefaultPrefix,
		UseIphc:     true,
		ChannelLoss: radiomodel.DefaultScenarioChain(),
		SamplerLoss: radiomodel.DefaultScenarioChain(),
		Nodes: []NodeSpec{
			{NodeConfig: NodeConfig{ID: 1, Name: "AP", Type: NodeTypeAccessPoint, Mobility: MobilityConstantPosition,
				Position: Vector{X: 0, Y: 0, Z: 0}, Color: Color{R: 255, G: 0, B: 0}, TxPowerDbm: DefaultTxPowerDbm}},
			{NodeConfig: NodeConfig{ID: 2, Name: "Jarbas", Type: NodeTypeClient, Mobility: MobilityConstantVelocity,
				Position: Vector{X: 5, Y: 0, Z: 0}, Color: Color{R: 0, G: 255, B: 0}, TxPowerDbm: DefaultTxPowerDbm},
				Waypoint: &WaypointSpec{End: Vector{X: 100, Y: 0, Z: 0}, Duration: 58, Action: "stop"}},
			{NodeConfig: NodeConfig{ID: 3, Name: "Grazy", Type: NodeTypeClient, Mobility: MobilityConstantVelocity,
				Position: Vector{X: 0, Y: 5, Z: 0}, Color: Color{R: 0, G: 0, B: 255}, TxPowerDbm: DefaultTxPowerDbm},
				Waypoint: &WaypointSpec{End: Vector{X: 0, Y: 100, Z: 0}, Duration: 58, Action: "stop"}},
		},
		Pings: []PingSpec{
			{Src: 1, Dst: 2, Count: 100, Interval: 0.1, Size: 32, Start: 2, Stop: 60},
			{Src: 1, Dst: 3, Count: 100, Interval: 0.1, Size: 32, Start: 2, Stop: 60},
		},
		Sampler: SamplerSpec{
			Nodes:      []NodeId{2, 3},
			Peer:       1,
			Start:      1,
			Interval:   1,
			Until:      60,
			TxPowerDbm: 0,
			NoiseDbm:   DefaultNoiseFloorDbm,
		},
		MobilityPoll: DefaultMobilityPollSec,
		NeighborDump: DefaultNeighborDumpSec,
		AsciiTrace:   DefaultTraceFile,
		PcapPrefix:   DefaultPcapPrefix,
		PcapType:     "wpan",
		AnimFile:     DefaultAnimFile,
		EnergyPeriod: UsToSeconds(energy.ComputePeriod),
		Energy:       energy.DefaultConsumption(),
		LinkSnrDb:    DefaultLinkSnrDb,
	}
}

// LoadConfigFile overlays the YAML file on the default configuration. Lists given in the file replace
// the default lists as a whole.
func LoadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", filename)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", filename)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", filename)
	}
	return cfg, nil
}

// ExportConfig writes cfg as YAML.
func (cfg *Config) ExportConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "export config")
	}
	return enc.Close()
}

// Validate checks cross references and value ranges.
func (cfg *Config) Validate() error {
	if cfg.StopTime <= 0 {
		return errors.Errorf("stop-time must be positive")
	}
	if cfg.Channel < MinChannelNumber || cfg.Channel > MaxChannelNumber {
		return errors.Errorf("channel %d out of range %d-%d", cfg.Channel, MinChannelNumber, MaxChannelNumber)
	}
	if len(cfg.Nodes) == 0 {
		return errors.Errorf("no nodes configured")
	}
	ids := map[NodeId]bool{}
	for i := range cfg.Nodes {
		n := &cfg.Nodes[i]
		if err := n.finalize(i); err != nil {
			return err
		}
		if ids[n.ID] {
			return errors.Errorf("duplicate node id %d", n.ID)
		}
		ids[n.ID] = true
	}
	for _, p := range cfg.Pings {
		if !ids[p.Src] || !ids[p.Dst] {
			return errors.Errorf("ping %d -> %d: unknown node", p.Src, p.Dst)
		}
		if p.Src == p.Dst {
			return errors.Errorf("ping %d -> %d: source equals destination", p.Src, p.Dst)
		}
	}
	if len(cfg.Sampler.Nodes) > 0 {
		if !ids[cfg.Sampler.Peer] {
			return errors.Errorf("sampler peer %d unknown", cfg.Sampler.Peer)
		}
		for _, id := range cfg.Sampler.Nodes {
			if !ids[id] {
				return errors.Errorf("sampler node %d unknown", id)
			}
		}
	}
	for _, f := range cfg.Fail {
		if !ids[f.Node] {
			return errors.Errorf("failure node %d unknown", f.Node)
		}
	}
	return nil
}
