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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/simulation"
	. "github.com/openthread/lowpan-ns/types"
)

const (
	Prompt = "> "
)

var (
	commandInterruptedError = errors.Errorf("command interrupted due to simulation exit")
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	// one line per item: a mapping or a scalar list is one flow node, other lists get one flow node per element
	if itemsYaml.Kind == yaml.SequenceNode && !allScalars(itemsYaml.Content) {
		for _, content := range itemsYaml.Content {
			content.Style = yaml.FlowStyle
		}
	} else {
		itemsYaml.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

func allScalars(nodes []*yaml.Node) bool {
	for _, n := range nodes {
		if n.Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}

// CmdRunner executes console commands against a running simulation. Anything that touches simulation
// state runs on the dispatcher goroutine.
type CmdRunner struct {
	sim  *simulation.Simulation
	ctx  *progctx.ProgCtx
	help Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	return &CmdRunner{
		ctx:  ctx,
		sim:  sim,
		help: newHelp(),
	}
}

// HandleCommand parses and runs one command line, writing results to output. The returned error is
// non-nil once the program is exiting.
func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() == nil {
		cmd := Command{}

		if err := parseBytes([]byte(cmdline), &cmd); err != nil {
			if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
				return err
			}
		} else {
			rt.execute(&cmd, output)
		}
	}
	return rt.ctx.Err()
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Move != nil {
		rt.executeMoveNode(cc, cmd.Move)
	} else if cmd.Radio != nil {
		rt.executeRadio(cc, cmd.Radio)
	} else if cmd.Nodes != nil {
		rt.executeLsNodes(cc, cmd.Nodes)
	} else if cmd.Pos != nil {
		rt.executePos(cc, cmd.Pos)
	} else if cmd.Signal != nil {
		rt.executeSignal(cc, cmd.Signal)
	} else if cmd.Pings != nil {
		rt.executeCollectPings(cc, cmd.Pings)
	} else if cmd.Neighbors != nil {
		rt.executeNeighbors(cc, cmd.Neighbors)
	} else if cmd.Links != nil {
		rt.executeLinks(cc, cmd.Links)
	} else if cmd.Counters != nil {
		rt.executeCounters(cc, cmd.Counters)
	} else if cmd.Speed != nil {
		rt.executeSpeed(cc, cmd.Speed)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Kpi != nil {
		rt.executeKpi(cc, cmd.Kpi)
	} else if cmd.Energy != nil {
		rt.executeEnergy(cc, cmd.Energy)
	} else if cmd.Time != nil {
		rt.executeTime(cc, cmd.Time)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else if cmd.Exit != nil {
		rt.executeExit(cc, cmd.Exit)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	// determine duration and desired speed of the Go simulation period.
	timeDurToGo, err := time.ParseDuration(cmd.Time)
	if cmd.Ever == nil && err != nil {
		timeDurToGo, err = time.ParseDuration(cmd.Time + "s") // try parsing as seconds
		if err != nil {
			cc.errorf("could not parse time duration: %s", cmd.Time)
			return
		}
	}
	speed := rt.sim.GetSpeed()
	if cmd.Speed != nil {
		speed = *cmd.Speed
	}
	if speed <= 0 { // when paused, 'go' is used to quickly jump time.
		speed = dispatcher.MaxSimulateSpeed
	}

	var done <-chan struct{}
	if cmd.Ever == nil {
		rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
			done = sim.GoAtSpeed(timeDurToGo, speed)
		})
		rt.waitDone(cc, done)
		return
	}

	for { // run until the stop time, or until the program exits.
		stopped := false
		rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
			stopped = sim.IsStopped()
			if !stopped {
				sim.SetSpeed(speed)
				done = sim.Go(time.Hour)
			}
		})
		if stopped || cc.err != nil {
			return
		}
		rt.waitDone(cc, done)
		if rt.ctx.Err() != nil || cc.err != nil {
			return
		}
	}
}

func (rt *CmdRunner) waitDone(cc *CommandContext, done <-chan struct{}) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-rt.ctx.Done():
		cc.error(commandInterruptedError)
	}
}

func (rt *CmdRunner) executeSpeed(cc *CommandContext, cmd *SpeedCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		if cmd.Speed == nil && cmd.Max == nil {
			cc.outputf("%v\n", sim.GetSpeed())
		} else if cmd.Max != nil {
			sim.SetSpeed(dispatcher.MaxSimulateSpeed)
		} else if *cmd.Speed < 0 {
			cc.errorf("speed must not be negative")
		} else {
			sim.SetSpeed(*cmd.Speed)
		}
	})
}

// postAsyncWait runs f on the dispatcher goroutine and waits until it has completed.
func (rt *CmdRunner) postAsyncWait(cc *CommandContext, f func(sim *simulation.Simulation)) {
	if rt.ctx.Err() != nil {
		cc.error(commandInterruptedError)
		return
	}
	done := make(chan struct{})
	rt.sim.PostAsync(false, func() {
		defer close(done) // even if f() fails execution, 'done' should be closed.
		f(rt.sim)         // executing task (later) may set cc.err status if error occurs.
	})
	select {
	case <-done:
	case <-rt.ctx.Done():
		cc.error(commandInterruptedError)
	}
}

func (rt *CmdRunner) executeExit(cc *CommandContext, cmd *ExitCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		sim.Stop()
	})
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeRadio(cc *CommandContext, radio *RadioCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		for _, sel := range getUniqueAndSorted(radio.Nodes) {
			node, err := sim.Node(sel.Id)
			if err != nil {
				cc.error(err)
				continue
			}

			if radio.On != nil {
				cc.error(sim.SetNodeFailed(node.Id, false))
			} else if radio.Off != nil {
				cc.error(sim.SetNodeFailed(node.Id, true))
			} else if radio.FailTime != nil {
				if radio.FailTime.FailDuration > 0 && radio.FailTime.FailInterval > radio.FailTime.FailDuration {
					cc.error(node.SetFailTime(dispatcher.FailTime{
						FailDuration: SecondsToUs(radio.FailTime.FailDuration),
						FailInterval: SecondsToUs(radio.FailTime.FailInterval),
					}))
				} else if radio.FailTime.FailInterval <= radio.FailTime.FailDuration {
					cc.errorf("ft parameter: fail-duration must be < fail-interval")
				} else {
					cc.error(node.SetFailTime(dispatcher.NonFailTime))
				}
			}
		}
	})
}

func (rt *CmdRunner) executeMoveNode(cc *CommandContext, cmd *MoveCmd) {
	x, err := cmd.X.Float()
	if err != nil {
		cc.error(err)
		return
	}
	y, err := cmd.Y.Float()
	if err != nil {
		cc.error(err)
		return
	}
	duration := 0.0
	if cmd.Duration != nil {
		duration = *cmd.Duration
	}
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		node, err := sim.Node(cmd.Target.Id)
		if err != nil {
			cc.error(err)
			return
		}
		pos := node.Position()
		pos.X, pos.Y = x, y
		cc.error(sim.MoveNodeTo(node.Id, pos, duration))
	})
}

func (rt *CmdRunner) executeLsNodes(cc *CommandContext, cmd *NodesCmd) {
	var infos []simulation.NodeInfo
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		infos = sim.NodeInfos()
	})
	for _, info := range infos {
		cc.outputItemsAsYaml(info)
	}
}

func (rt *CmdRunner) executePos(cc *CommandContext, cmd *PosCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		var nodes []*simulation.Node
		if cmd.Target != nil {
			node, err := sim.Node(cmd.Target.Id)
			if err != nil {
				cc.error(err)
				return
			}
			nodes = append(nodes, node)
		} else {
			nodes = sim.DeviceNodes()
		}
		for _, node := range nodes {
			p, v := node.Position(), node.Velocity()
			cc.outputf("node=%-4d x=%-10.4f y=%-10.4f z=%-8.4f vx=%-8.4f vy=%-8.4f vz=%.4f\n",
				node.Id, p.X, p.Y, p.Z, v.X, v.Y, v.Z)
		}
	})
}

func (rt *CmdRunner) executeSignal(cc *CommandContext, cmd *SignalCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		count := 0
		for _, node := range sim.DeviceNodes() {
			if cmd.Target != nil && node.Id != cmd.Target.Id {
				continue
			}
			smp := node.Sampler()
			if smp == nil {
				continue
			}
			count++
			last, ok := smp.Last()
			if !ok {
				cc.outputf("node=%-4d no samples yet\n", node.Id)
				continue
			}
			sum := smp.Summary()
			cc.outputf("node=%-4d %s | samples=%d snr_min=%.3g snr_mean=%.3g snr_max=%.3g\n", node.Id, last.String(),
				sum.Count, sum.SnrMinDb, sum.SnrMeanDb, sum.SnrMaxDb)
		}
		if count == 0 {
			if cmd.Target != nil {
				cc.errorf("node %d has no signal sampler", cmd.Target.Id)
			} else {
				cc.errorf("no signal samplers configured")
			}
		}
	})
}

func (rt *CmdRunner) executeCollectPings(cc *CommandContext, cmd *PingsCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		for _, node := range sim.DeviceNodes() {
			for _, p := range node.Pings() {
				r := p.Report()
				cc.outputf("node=%-4d dst=%-28s tx=%-4d rx=%-4d loss=%5.1f%% rtt min/avg/max=%.3f/%.3f/%.3f ms\n",
					node.Id, r.Destination, r.Transmitted, r.Received, r.LossPercent, r.RttMinMs, r.RttAvgMs, r.RttMaxMs)
			}
		}
	})
}

func (rt *CmdRunner) executeNeighbors(cc *CommandContext, cmd *NeighborsCmd) {
	var buf bytes.Buffer
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		cc.error(sim.WriteNeighborCaches(&buf))
	})
	cc.outputStr(buf.String())
}

func (rt *CmdRunner) executeLinks(cc *CommandContext, cmd *LinksCmd) {
	var links []simulation.LinkStats
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		links = sim.Links()
	})
	for _, l := range links {
		cc.outputItemsAsYaml(l)
	}
}

func (rt *CmdRunner) executeCounters(cc *CommandContext, cmd *CountersCmd) {
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		stats := sim.Channel().Stats()
		countersVal := reflect.ValueOf(stats)
		countersTyp := reflect.TypeOf(stats)
		for i := 0; i < countersVal.NumField(); i++ {
			fname := countersTyp.Field(i).Name
			fval := countersVal.Field(i)
			cc.outputf("%-40s %v\n", fname, fval.Uint())
		}
	})
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(level)
}

func (rt *CmdRunner) executeKpi(cc *CommandContext, cmd *KpiCmd) {
	if cmd.Save != nil {
		rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
			if len(cmd.File) > 0 {
				sim.KpiManager().SaveFile(cmd.File)
			} else {
				sim.KpiManager().SaveDefaultFile()
			}
		})
		return
	}

	var data []byte
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		var err error
		data, err = json.MarshalIndent(sim.KpiManager().Data(), "", "    ")
		cc.error(err)
	})
	if len(data) > 0 {
		cc.outputf("%s\n", data)
	}
}

func (rt *CmdRunner) executeEnergy(cc *CommandContext, cmd *EnergyCmd) {
	if cmd.Save != nil {
		rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
			name := cmd.Name
			if len(name) == 0 {
				name = fmt.Sprintf("%d_energy", sim.Config().Id)
			}
			cc.error(sim.EnergyAnalyser().SaveEnergyDataToFile(sim.Config().OutputDir, name, sim.Now()))
		})
		return
	}

	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		for _, e := range sim.EnergyAnalyser().GetLatestEnergyOfNodes() {
			cc.outputItemsAsYaml(e)
		}
	})
}

func (rt *CmdRunner) executeTime(cc *CommandContext, cmd *TimeCmd) {
	var dispTime uint64
	rt.postAsyncWait(cc, func(sim *simulation.Simulation) {
		dispTime = sim.Now()
	})
	cc.outputf("%d\n", dispTime)
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}
