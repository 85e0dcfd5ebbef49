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
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/energy"
	"github.com/openthread/lowpan-ns/inet"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/mobility"
	"github.com/openthread/lowpan-ns/pcap"
	"github.com/openthread/lowpan-ns/ping"
	"github.com/openthread/lowpan-ns/prng"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	"github.com/openthread/lowpan-ns/sampler"
	"github.com/openthread/lowpan-ns/sixlowpan"
	"github.com/openthread/lowpan-ns/trace"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
	"github.com/openthread/lowpan-ns/wpan"
)

type Simulation struct {
	Started chan struct{}

	ctx            *progctx.ProgCtx
	cfg            *Config
	d              *dispatcher.Dispatcher
	vis            visualize.Visualizer
	nodes          map[NodeId]*Node
	devices        []*Node // in device index order
	channel        *lrwpan.Channel
	samplerLoss    radiomodel.LossModel
	energyAnalyser *energy.EnergyAnalyser
	kpiManager     *KpiManager
	ascii          *trace.AsciiWriter
	pcaps          []*pcap.Writer
	links          map[linkKey]*LinkStats
	stdout         io.Writer
	finished       bool
	stopped        bool
}

// NewSimulation builds the whole scenario of cfg. Nothing runs until the dispatcher is started with Run and
// advanced with Go.
func NewSimulation(ctx *progctx.ProgCtx, cfg *Config, vis visualize.Visualizer) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prng.Init(prng.RandomSeed(cfg.Seed), cfg.Run)

	dispatcherCfg := dispatcher.DefaultConfig()
	dispatcherCfg.Speed = cfg.Speed
	s := &Simulation{
		Started: make(chan struct{}),
		ctx:     ctx,
		cfg:     cfg,
		d:       dispatcher.NewDispatcher(ctx, dispatcherCfg),
		nodes:   map[NodeId]*Node{},
		links:   map[linkKey]*LinkStats{},
		stdout:  os.Stdout,
	}
	s.vis = s.d.GetVisualizer()
	logger.SetTimeSource(s.d.Now)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", cfg.OutputDir)
	}
	if err := s.cleanOutputDir(); err != nil {
		return nil, err
	}
	if cfg.SixLowPanLogInfo {
		logger.EnableComponent("SixLowPanNetDevice", logger.DebugLevel)
	}

	channelLoss, err := radiomodel.NewLossChain(cfg.ChannelLoss, "channel-loss")
	if err != nil {
		return nil, errors.Wrap(err, "channel loss")
	}
	channelLoss.SetTimeSource(s.d.Now)
	samplerLoss, err := radiomodel.NewLossChain(cfg.SamplerLoss, "sampler-loss")
	if err != nil {
		return nil, errors.Wrap(err, "sampler loss")
	}
	samplerLoss.SetTimeSource(s.d.Now)
	s.samplerLoss = samplerLoss
	s.channel = lrwpan.NewChannel(s.d, cfg.Channel, channelLoss, prng.NewStream("channel"))

	s.energyAnalyser = energy.NewEnergyAnalyser(cfg.Energy)
	s.energyAnalyser.SetTitle(cfg.Title)
	s.kpiManager = NewKpiManager()

	if err = s.createNodes(); err != nil {
		return nil, err
	}
	if err = s.createTraces(); err != nil {
		s.closeTraces()
		return nil, err
	}
	if vis != nil {
		vis.Init()
		s.SetVisualizer(vis)
	}
	if err = s.installApplications(); err != nil {
		s.closeTraces()
		return nil, err
	}
	s.scheduleHousekeeping()
	s.kpiManager.Init(s)
	s.kpiManager.Start()
	return s, nil
}

func (s *Simulation) cleanOutputDir() error {
	for _, suffix := range []string{"kpi.json", "signal.csv", "stats.csv"} {
		if err := removeAllFiles(outputPath(s.cfg.OutputDir, fmt.Sprintf("%d_%s", s.cfg.Id, suffix))); err != nil {
			return errors.Wrapf(err, "clean output directory %s", s.cfg.OutputDir)
		}
	}
	return nil
}

// createNodes sets up the devices, the PAN, and the IPv6 stacks of all nodes.
func (s *Simulation) createNodes() error {
	devs := make([]*lrwpan.Device, 0, len(s.cfg.Nodes))
	for i := range s.cfg.Nodes {
		node := newNode(s, &s.cfg.Nodes[i].NodeConfig)
		s.nodes[node.Id] = node
		s.devices = append(s.devices, node)
		devs = append(devs, node.dev)
		node.dev.AddTraceSink(lrwpan.TraceSinkFunc(s.onMacTrace))
		s.energyAnalyser.Attach(node.dev, s.d.Now())
	}
	lrwpan.CreateAssociatedPan(devs, s.cfg.PanId)

	var addrHelper inet.AddressHelper
	if err := addrHelper.SetBase(s.cfg.Prefix); err != nil {
		return err
	}
	contexts := sixlowpan.NewContextTable()
	if s.cfg.Context0 {
		if err := contexts.Add(0, addrHelper.Base()); err != nil {
			return err
		}
	}

	ifaces := make([]*inet.Interface, 0, len(s.devices))
	for _, node := range s.devices {
		node.setupStack(contexts, s.cfg.UseIphc)
		ifaces = append(ifaces, node.iface)
	}
	if _, err := addrHelper.Assign(ifaces); err != nil {
		return err
	}
	inet.PopulateNeighborCaches(ifaces)
	return nil
}

func (s *Simulation) createTraces() error {
	if s.cfg.AsciiTrace != "" {
		aw, err := trace.CreateAsciiFile(outputPath(s.cfg.OutputDir, s.cfg.AsciiTrace))
		if err != nil {
			return err
		}
		s.ascii = aw
		for _, node := range s.devices {
			aw.Attach(node.dev, 0)
		}
	}
	if s.cfg.PcapPrefix != "" {
		lt, err := pcap.ParseLinkType(s.cfg.PcapType)
		if err != nil {
			return err
		}
		for _, node := range s.devices {
			fn := outputPath(s.cfg.OutputDir, fmt.Sprintf("%s-%d-%d.pcap", s.cfg.PcapPrefix, node.Id, 0))
			pw, err := pcap.Create(fn, lt)
			if err != nil {
				return err
			}
			s.pcaps = append(s.pcaps, pw)
			pcap.Attach(node.dev, pw)
		}
	}
	return nil
}

func (s *Simulation) closeTraces() {
	if s.ascii != nil {
		if err := s.ascii.Close(); err != nil {
			logger.Errorf("close ascii trace: %v", err)
		}
		s.ascii = nil
	}
	for _, pw := range s.pcaps {
		if err := pw.Close(); err != nil {
			logger.Errorf("close pcap: %v", err)
		}
	}
	s.pcaps = nil
}

// installApplications creates the waypoint motions, signal samplers, ping applications and radio failures.
func (s *Simulation) installApplications() error {
	for i := range s.cfg.Nodes {
		spec := &s.cfg.Nodes[i]
		if spec.Waypoint == nil {
			continue
		}
		node := s.nodes[spec.ID]
		if err := node.MoveTo(spec.Waypoint.End, SecondsToUs(spec.Waypoint.Duration),
			mobility.ArrivalAction(spec.Waypoint.Action)); err != nil {
			return err
		}
	}

	if len(s.cfg.Sampler.Nodes) > 0 {
		peer := s.nodes[s.cfg.Sampler.Peer]
		scfg := sampler.Config{
			Start:         SecondsToUs(s.cfg.Sampler.Start),
			Interval:      SecondsToUs(s.cfg.Sampler.Interval),
			Until:         SecondsToUs(s.cfg.Sampler.Until),
			TxPowerDbm:    s.cfg.Sampler.TxPowerDbm,
			NoisePowerDbm: s.cfg.Sampler.NoiseDbm,
		}
		for _, id := range s.cfg.Sampler.Nodes {
			node := s.nodes[id]
			smp, err := sampler.New(s.d,
				sampler.Endpoint{Id: node.Id, Name: node.Name(), Mobility: node.mob},
				sampler.Endpoint{Id: peer.Id, Name: peer.Name(), Mobility: peer.mob},
				s.samplerLoss, scfg)
			if err != nil {
				return errors.Wrapf(err, "sampler of node %d", id)
			}
			smp.SetOutput(s.stdout)
			smp.OnSample(s.onSignalSample)
			node.sampler = smp
			smp.Start()
		}
	}

	for _, ps := range s.cfg.Pings {
		src, dst := s.nodes[ps.Src], s.nodes[ps.Dst]
		verbose, err := ping.ParseVerboseMode(ps.Verbose)
		if err != nil {
			return err
		}
		p, err := ping.New(src.stack, s.d, ping.Config{
			Destination: dst.GlobalAddr(),
			Count:       ps.Count,
			Interval:    SecondsToUs(ps.Interval),
			Size:        ps.Size,
			Start:       SecondsToUs(ps.Start),
			Stop:        SecondsToUs(ps.Stop),
			Timeout:     SecondsToUs(ps.Timeout),
			Verbose:     verbose,
		})
		if err != nil {
			return errors.Wrapf(err, "ping %d -> %d", ps.Src, ps.Dst)
		}
		p.SetOutput(s.stdout)
		srcId, dstId := src.Id, dst.Id
		p.OnReply(func(r *ping.Reply) {
			s.vis.OnPingReply(&visualize.PingReply{
				Timestamp: r.Timestamp,
				Src:       srcId,
				Dst:       dstId,
				Seq:       r.Seq,
				RttUs:     r.RttUs,
				Lost:      r.Lost,
			})
		})
		p.Install()
		src.pings = append(src.pings, p)
	}

	for _, f := range s.cfg.Fail {
		ft := dispatcher.FailTime{FailDuration: SecondsToUs(f.Duration), FailInterval: SecondsToUs(f.Interval)}
		if err := s.nodes[f.Node].SetFailTime(ft); err != nil {
			return errors.Wrapf(err, "failures of node %d", f.Node)
		}
	}
	return nil
}

// scheduleHousekeeping schedules the mobility poll, energy snapshots, the neighbor cache dump and the stop.
func (s *Simulation) scheduleHousekeeping() {
	if s.cfg.MobilityPoll > 0 {
		s.schedulePeriodic(SecondsToUs(s.cfg.MobilityPoll), "mobility-poll", s.pollMobility)
	}
	if s.cfg.EnergyPeriod > 0 {
		s.schedulePeriodic(SecondsToUs(s.cfg.EnergyPeriod), "energy", s.storeEnergy)
	}
	if s.cfg.SixLowPanLogInfo && s.cfg.NeighborDump >= 0 {
		s.d.ScheduleAt(SecondsToUs(s.cfg.NeighborDump), "neighbor-dump", func() {
			if err := s.WriteNeighborCaches(s.stdout); err != nil {
				logger.Warnf("neighbor cache dump: %v", err)
			}
		})
	}
	s.d.SetStopTime(SecondsToUs(s.cfg.StopTime))
	s.d.OnStop(s.finish)
}

func (s *Simulation) schedulePeriodic(interval uint64, name string, fn func()) {
	var tick func()
	tick = func() {
		fn()
		s.d.Schedule(interval, name, tick)
	}
	s.d.Schedule(interval, name, tick)
}

func (s *Simulation) pollMobility() {
	for _, node := range s.devices {
		s.updateNodePos(node)
	}
}

func (s *Simulation) updateNodePos(node *Node) {
	pos := node.Position()
	if pos != node.lastPos {
		node.lastPos = pos
		s.vis.SetNodePos(node.Id, pos)
	}
}

func (s *Simulation) storeEnergy() {
	now := s.d.Now()
	s.energyAnalyser.StoreNetworkEnergy(now)
	s.vis.UpdateNodesEnergy(s.energyAnalyser.GetLatestEnergyOfNodes(), now, true)
}

func (s *Simulation) onSignalSample(smp *sampler.Sample) {
	s.vis.OnSignalSample(&visualize.SignalSample{
		Timestamp:  smp.Timestamp,
		NodeId:     smp.NodeId,
		PeerId:     smp.PeerId,
		Distance:   smp.Distance,
		RxPowerDbm: smp.RxPowerDbm,
		SnrDb:      smp.SnrDb,
	})
}

// onMacTrace keeps link statistics and forwards delivered frames to the visualizer.
func (s *Simulation) onMacTrace(dev *lrwpan.Device, ev *lrwpan.TraceEvent) {
	if ev.Peer == InvalidNodeId || (ev.Kind != lrwpan.TraceRx && ev.Kind != lrwpan.TraceDrop) {
		return
	}
	key := linkKey{src: ev.Peer, dst: dev.NodeId()}
	ls := s.links[key]
	if ls == nil {
		ls = &LinkStats{Src: ev.Peer, Dst: dev.NodeId()}
		s.links[key] = ls
	}
	if ev.Kind == lrwpan.TraceDrop {
		ls.Drops++
		return
	}
	ls.Frames++
	ls.LastRssDbm = ev.RxPowerDbm
	ls.sinrSum += ev.SinrDb
	ls.AvgSinrDb = ls.sinrSum / float64(ls.Frames)

	frame, err := wpan.Dissect(ev.Psdu)
	if err != nil {
		return
	}
	var txPower DbValue
	if src := s.nodes[ev.Peer]; src != nil {
		txPower = src.dev.TxPowerDbm
	}
	s.vis.Send(ev.Peer, dev.NodeId(), &visualize.MsgVisualizeInfo{
		Channel:         uint8(ev.Channel),
		FrameControl:    frame.FrameControl,
		Seq:             frame.Seq,
		DstAddrShort:    frame.DstAddrShort,
		DstAddrExtended: frame.DstAddrExtended,
		SendDurationUs:  uint32(ev.DurationUs),
		PowerDbm:        int8(math.Round(txPower)),
		TxStartUs:       ev.TxStartUs,
		RxPowerDbm:      ev.RxPowerDbm,
		LengthBytes:     uint16(len(ev.Psdu)),
	})
}

// finish runs once at the stop time: it ends the applications and writes the result files.
func (s *Simulation) finish() {
	if s.finished {
		return
	}
	s.finished = true
	for _, node := range s.devices {
		for _, p := range node.pings {
			p.Finish()
		}
		if node.sampler != nil {
			node.sampler.Stop()
		}
	}
	s.storeEnergy()
	if err := s.energyAnalyser.SaveEnergyDataToFile(s.cfg.OutputDir, fmt.Sprintf("%d_energy", s.cfg.Id),
		s.d.Now()); err != nil {
		logger.Errorf("save energy data: %v", err)
	}
	s.kpiManager.Stop()
	if s.ascii != nil {
		if err := s.ascii.Flush(); err != nil {
			logger.Errorf("flush ascii trace: %v", err)
		}
	}
	for _, pw := range s.pcaps {
		if err := pw.Flush(); err != nil {
			logger.Errorf("flush pcap: %v", err)
		}
	}
}

// Run runs the dispatcher in the current goroutine until the program context is done.
func (s *Simulation) Run() {
	s.ctx.WaitAdd("simulation", 1)
	defer s.ctx.WaitDone("simulation")
	defer logger.Debugf("simulation exit.")
	defer s.Stop()

	close(s.Started)
	s.d.Run()
}

// Stop ends the simulation: results are written and all trace files closed. It must not run concurrently
// with the dispatcher.
func (s *Simulation) Stop() {
	if s.stopped {
		return
	}
	logger.Infof("stopping simulation ...")
	s.stopped = true
	s.finish()
	s.closeTraces()
	s.d.Stop()
}

// Go advances the simulation by duration. The returned channel is closed when done.
func (s *Simulation) Go(duration time.Duration) <-chan struct{} {
	return s.d.Go(duration)
}

// GoUntilStop advances the simulation up to its stop time.
func (s *Simulation) GoUntilStop() <-chan struct{} {
	now := s.d.Now()
	stop := s.d.GetStopTime()
	if stop <= now {
		return s.d.Go(0)
	}
	return s.d.Go(time.Duration(stop-now) * time.Microsecond)
}

func (s *Simulation) GoAtSpeed(duration time.Duration, speed float64) <-chan struct{} {
	s.PostAsync(false, func() {
		s.d.SetSpeed(speed)
	})
	return s.d.Go(duration)
}

func (s *Simulation) PostAsync(trivial bool, f func()) {
	s.d.PostAsync(trivial, f)
}

func (s *Simulation) GetSpeed() float64 {
	return s.d.GetSpeed()
}

func (s *Simulation) SetSpeed(speed float64) {
	s.d.SetSpeed(speed)
}

func (s *Simulation) Dispatcher() *dispatcher.Dispatcher {
	return s.d
}

func (s *Simulation) Config() *Config {
	return s.cfg
}

func (s *Simulation) Channel() *lrwpan.Channel {
	return s.channel
}

func (s *Simulation) Now() uint64 {
	return s.d.Now()
}

func (s *Simulation) IsStopped() bool {
	return s.d.IsStopped()
}

func (s *Simulation) SetStdout(w io.Writer) {
	s.stdout = w
	for _, node := range s.devices {
		for _, p := range node.pings {
			p.SetOutput(w)
		}
		if node.sampler != nil {
			node.sampler.SetOutput(w)
		}
	}
}

func (s *Simulation) EnergyAnalyser() *energy.EnergyAnalyser {
	return s.energyAnalyser
}

func (s *Simulation) KpiManager() *KpiManager {
	return s.kpiManager
}

func (s *Simulation) Nodes() map[NodeId]*Node {
	return s.nodes
}

// GetNodes returns the sorted node ids.
func (s *Simulation) GetNodes() []NodeId {
	ids := maps.Keys(s.nodes)
	slices.Sort(ids)
	return ids
}

// DeviceNodes returns the nodes in device index order.
func (s *Simulation) DeviceNodes() []*Node {
	return s.devices
}

func (s *Simulation) Node(id NodeId) (*Node, error) {
	node := s.nodes[id]
	if node == nil {
		return nil, errors.Wrapf(nodeNotFoundError, "node %d", id)
	}
	return node, nil
}

// Links returns the statistics of all links that carried frames, sorted by source and destination.
func (s *Simulation) Links() []LinkStats {
	res := make([]LinkStats, 0, len(s.links))
	for _, ls := range s.links {
		res = append(res, *ls)
	}
	slices.SortFunc(res, func(a, b LinkStats) int {
		if a.Src != b.Src {
			return a.Src - b.Src
		}
		return a.Dst - b.Dst
	})
	return res
}

func (s *Simulation) SetVisualizer(vis visualize.Visualizer) {
	logger.AssertNotNil(vis)
	s.vis = vis
	s.d.SetVisualizer(vis)
	vis.SetController(NewSimulationController(s))
	title := visualize.DefaultTitleInfo()
	title.Title = s.cfg.Title
	vis.SetTitle(title)
	for _, node := range s.devices {
		cfg := node.cfg
		cfg.Position = node.Position()
		vis.AddNode(node.Id, &cfg)
		if node.IsFailed() {
			vis.OnNodeFail(node.Id)
		}
	}
}

// MoveNodeTo moves a node to pos within durationSec seconds, or at once if durationSec is 0.
func (s *Simulation) MoveNodeTo(nodeid NodeId, pos Vector, durationSec float64) error {
	node, err := s.Node(nodeid)
	if err != nil {
		return err
	}
	if durationSec < 0 {
		return errors.Errorf("negative move duration %g", durationSec)
	}
	return node.MoveTo(pos, SecondsToUs(durationSec), mobility.ArrivalStop)
}

func (s *Simulation) SetNodeFailed(nodeid NodeId, failed bool) error {
	node, err := s.Node(nodeid)
	if err != nil {
		return err
	}
	if err = node.SetFailTime(dispatcher.NonFailTime); err != nil {
		return err
	}
	if failed {
		node.Fail()
	} else {
		node.Recover()
	}
	return nil
}

// WriteNeighborCaches writes the neighbor caches of all nodes.
func (s *Simulation) WriteNeighborCaches(w io.Writer) error {
	stacks := make([]*inet.Stack, 0, len(s.devices))
	for _, node := range s.devices {
		stacks = append(stacks, node.stack)
	}
	return inet.WriteNeighborCacheAll(w, stacks)
}
