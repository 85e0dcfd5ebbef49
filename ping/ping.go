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

// Package ping implements an ICMPv6 echo application with iputils-style output and statistics.
package ping

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openthread/lowpan-ns/event"
	"github.com/openthread/lowpan-ns/inet"
	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
)

var log = logger.GetComponent("Ping")

// VerboseMode selects what the application prints.
type VerboseMode int

const (
	// Verbose prints every reply and the statistics.
	Verbose VerboseMode = iota
	// Quiet prints the statistics only.
	Quiet
	// Silent prints nothing.
	Silent
)

// ParseVerboseMode parses "verbose", "quiet" or "silent".
func ParseVerboseMode(s string) (VerboseMode, error) {
	switch s {
	case "", "verbose":
		return Verbose, nil
	case "quiet":
		return Quiet, nil
	case "silent":
		return Silent, nil
	default:
		return Verbose, errors.Errorf("invalid verbose mode %q", s)
	}
}

const (
	icmpEchoHeaderLen = 8
	ipv6HeaderLen     = 40

	DefaultTimeoutUs = UsPerSec
)

// Config of a ping application. Times are in us.
type Config struct {
	Destination netip.Addr
	Count       uint32 // 0 means unlimited
	Interval    uint64
	Size        int
	Start       uint64
	Stop        uint64
	Timeout     uint64
	Verbose     VerboseMode
}

// Reply is emitted for every answered or timed out echo request.
type Reply struct {
	Timestamp uint64
	Seq       uint16
	RttUs     uint64
	Lost      bool
}

// Report summarizes a ping run. RTTs are in ms.
type Report struct {
	Destination string  `json:"destination"`
	Transmitted uint32  `json:"transmitted"`
	Received    uint32  `json:"received"`
	Duplicates  uint32  `json:"duplicates"`
	LossPercent float64 `json:"loss_percent"`
	RttMinMs    float64 `json:"rtt_min_ms"`
	RttAvgMs    float64 `json:"rtt_avg_ms"`
	RttMaxMs    float64 `json:"rtt_max_ms"`
	RttMdevMs   float64 `json:"rtt_mdev_ms"`
	DurationMs  float64 `json:"duration_ms"`
}

// Ping sends echo requests from a node's stack.
type Ping struct {
	cfg   Config
	stack *inet.Stack
	sched event.Scheduler
	out   io.Writer

	id          uint16
	seq         uint16
	sent        map[uint16]uint64
	timeouts    map[uint16]*event.Event
	rttsMs      []float64
	transmitted uint32
	received    uint32
	duplicates  uint32
	startedAt   uint64
	started     bool
	sendEvt     *event.Event
	running     bool
	finished    bool
	onReply     []func(r *Reply)
}

// New creates a ping application on stack. Install schedules it.
func New(stack *inet.Stack, sched event.Scheduler, cfg Config) (*Ping, error) {
	if !cfg.Destination.IsValid() {
		return nil, errors.Errorf("ping destination not set")
	}
	if cfg.Interval == 0 {
		return nil, errors.Errorf("ping interval must be positive")
	}
	if cfg.Size < 0 || cfg.Size > 1200 {
		return nil, errors.Errorf("invalid ping size %d", cfg.Size)
	}
	if cfg.Stop != 0 && cfg.Stop < cfg.Start {
		return nil, errors.Errorf("ping stop %d before start %d", cfg.Stop, cfg.Start)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeoutUs
	}
	p := &Ping{
		cfg:      cfg,
		stack:    stack,
		sched:    sched,
		out:      os.Stdout,
		sent:     map[uint16]uint64{},
		timeouts: map[uint16]*event.Event{},
	}
	p.id = stack.RegisterEchoHandler(p.handleReply)
	return p, nil
}

func (p *Ping) Config() Config {
	return p.cfg
}

func (p *Ping) NodeId() NodeId {
	return p.stack.NodeId()
}

func (p *Ping) SetOutput(w io.Writer) {
	p.out = w
}

// OnReply registers a listener for replies and timeouts.
func (p *Ping) OnReply(f func(r *Reply)) {
	p.onReply = append(p.onReply, f)
}

// Install schedules start and stop of the application.
func (p *Ping) Install() {
	start := p.cfg.Start
	if now := p.sched.Now(); start < now {
		start = now
	}
	p.sched.ScheduleAt(start, "ping-start", p.start)
	if p.cfg.Stop != 0 {
		p.sched.ScheduleAt(p.cfg.Stop, "ping-stop", p.Finish)
	}
}

func (p *Ping) start() {
	if p.finished {
		return
	}
	p.running = true
	p.started = true
	p.startedAt = p.sched.Now()
	p.printf(Verbose, "PING %s - %d bytes of data; %d bytes including ICMP and IPv6 headers.\n",
		p.cfg.Destination, p.cfg.Size, p.cfg.Size+icmpEchoHeaderLen+ipv6HeaderLen)
	p.send()
}

func (p *Ping) send() {
	p.sendEvt = nil
	if !p.running {
		return
	}
	if p.cfg.Count != 0 && p.transmitted >= p.cfg.Count {
		return
	}

	now := p.sched.Now()
	seq := p.seq
	p.seq++
	data := make([]byte, p.cfg.Size)
	if len(data) >= 8 {
		binary.BigEndian.PutUint64(data, now)
	}
	for i := 8; i < len(data); i++ {
		data[i] = byte(i)
	}

	p.transmitted++
	if err := p.stack.SendEchoRequest(p.cfg.Destination, p.id, seq, data); err != nil {
		log.Debugf("node %d echo request seq=%d to %s failed: %v", p.NodeId(), seq, p.cfg.Destination, err)
	} else {
		log.Tracef("node %d echo request seq=%d to %s", p.NodeId(), seq, p.cfg.Destination)
	}
	p.sent[seq] = now
	p.timeouts[seq] = p.sched.Schedule(p.cfg.Timeout, "ping-timeout", func() {
		p.timeout(seq)
	})
	p.sendEvt = p.sched.Schedule(p.cfg.Interval, "ping-send", p.send)
}

func (p *Ping) timeout(seq uint16) {
	delete(p.timeouts, seq)
	if _, ok := p.sent[seq]; !ok {
		return
	}
	log.Debugf("node %d echo request seq=%d timed out", p.NodeId(), seq)
	p.notify(&Reply{Timestamp: p.sched.Now(), Seq: seq, Lost: true})
}

func (p *Ping) handleReply(r *inet.EchoReply) {
	if p.finished || r.Src != p.cfg.Destination {
		return
	}
	sentAt, ok := p.sent[r.Seq]
	if !ok {
		if r.Seq < p.seq {
			p.duplicates++
		}
		return
	}
	if len(r.Data) != p.cfg.Size {
		log.Debugf("node %d echo reply seq=%d with %d bytes, expected %d", p.NodeId(), r.Seq, len(r.Data), p.cfg.Size)
		return
	}

	now := p.sched.Now()
	rtt := now - sentAt
	delete(p.sent, r.Seq)
	if evt := p.timeouts[r.Seq]; evt != nil {
		// a late reply still counts, as for iputils
		p.sched.Cancel(evt)
		delete(p.timeouts, r.Seq)
	}
	p.received++
	p.rttsMs = append(p.rttsMs, float64(rtt)/float64(UsPerMs))
	p.printf(Verbose, "%d bytes from (%s): icmp_seq=%d ttl=%d time=%.3f ms\n",
		len(r.Data)+icmpEchoHeaderLen, r.Src, r.Seq, r.HopLimit, float64(rtt)/float64(UsPerMs))
	p.notify(&Reply{Timestamp: now, Seq: r.Seq, RttUs: rtt})
}

func (p *Ping) notify(r *Reply) {
	for _, f := range p.onReply {
		f(r)
	}
}

// Finish stops sending and prints the statistics. Later calls do nothing.
func (p *Ping) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	p.running = false
	p.sched.Cancel(p.sendEvt)
	p.sendEvt = nil
	for seq, evt := range p.timeouts {
		p.sched.Cancel(evt)
		delete(p.timeouts, seq)
	}
	p.stack.UnregisterEchoHandler(p.id)

	r := p.Report()
	p.printf(Quiet, "--- %s ping statistics ---\n", r.Destination)
	p.printf(Quiet, "%d packets transmitted, %d received, %g%% packet loss, time %.0fms\n",
		r.Transmitted, r.Received, r.LossPercent, r.DurationMs)
	if r.Received > 0 {
		p.printf(Quiet, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n", r.RttMinMs, r.RttAvgMs, r.RttMaxMs,
			r.RttMdevMs)
	}
}

func (p *Ping) IsFinished() bool {
	return p.finished
}

// Report returns the statistics collected so far.
func (p *Ping) Report() Report {
	r := Report{
		Destination: p.cfg.Destination.String(),
		Transmitted: p.transmitted,
		Received:    p.received,
		Duplicates:  p.duplicates,
	}
	if p.transmitted > 0 {
		r.LossPercent = 100.0 * float64(p.transmitted-p.received) / float64(p.transmitted)
	}
	if p.started {
		r.DurationMs = float64(p.sched.Now()-p.startedAt) / float64(UsPerMs)
	}
	if len(p.rttsMs) > 0 {
		r.RttMinMs = floats.Min(p.rttsMs)
		r.RttMaxMs = floats.Max(p.rttsMs)
		r.RttAvgMs, r.RttMdevMs = stat.PopMeanStdDev(p.rttsMs, nil)
	}
	return r
}

func (p *Ping) printf(level VerboseMode, format string, args ...interface{}) {
	if p.cfg.Verbose > level {
		return
	}
	if _, err := fmt.Fprintf(p.out, format, args...); err != nil {
		log.Warnf("ping output: %v", err)
	}
}
