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
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/radiomodel"
	"github.com/openthread/lowpan-ns/simulation"
)

func TestParseBytes(t *testing.T) {
	var cmd Command
	err := parseBytes([]byte("wrongcmd"), &cmd)
	assert.NotNil(t, err)

	assert.True(t, parseBytes([]byte("counters"), &cmd) == nil && cmd.Counters != nil)

	assert.True(t, parseBytes([]byte("energy"), &cmd) == nil && cmd.Energy != nil && cmd.Energy.Save == nil)
	assert.True(t, parseBytes([]byte("energy save"), &cmd) == nil && cmd.Energy.Save != nil)
	assert.True(t, parseBytes([]byte("energy save \"run1\""), &cmd) == nil && cmd.Energy.Name == "run1")

	assert.True(t, parseBytes([]byte("exit"), &cmd) == nil && cmd.Exit != nil)

	assert.Nil(t, parseBytes([]byte("go 1"), &cmd))
	assert.NotNil(t, cmd.Go)
	assert.Nil(t, parseBytes([]byte("go 1.1"), &cmd))
	assert.NotNil(t, cmd.Go)
	assert.Nil(t, parseBytes([]byte("go 64us"), &cmd))
	assert.Equal(t, "64us", cmd.Go.Time)
	assert.Nil(t, parseBytes([]byte("go 500ms"), &cmd))
	assert.Equal(t, "500ms", cmd.Go.Time)
	assert.Nil(t, parseBytes([]byte("go ever"), &cmd))
	assert.NotNil(t, cmd.Go.Ever)
	assert.Nil(t, parseBytes([]byte("go 100 speed 0.5"), &cmd))
	assert.Equal(t, 0.5, *cmd.Go.Speed)
	assert.NotNil(t, parseBytes([]byte("go"), &cmd))

	assert.True(t, parseBytes([]byte("help"), &cmd) == nil && cmd.Help != nil)
	assert.True(t, parseBytes([]byte("help move"), &cmd) == nil && cmd.Help.HelpTopic == "move")

	assert.True(t, parseBytes([]byte("kpi"), &cmd) == nil && cmd.Kpi != nil && cmd.Kpi.Save == nil)
	assert.True(t, parseBytes([]byte("kpi save"), &cmd) == nil && cmd.Kpi.Save != nil)
	assert.True(t, parseBytes([]byte("kpi save \"kpi.json\""), &cmd) == nil && cmd.Kpi.File == "kpi.json")

	assert.True(t, parseBytes([]byte("links"), &cmd) == nil && cmd.Links != nil)

	assert.True(t, parseBytes([]byte("log"), &cmd) == nil && cmd.LogLevel != nil)
	assert.True(t, parseBytes([]byte("log debug"), &cmd) == nil && cmd.LogLevel.Level == "debug")
	assert.True(t, parseBytes([]byte("log off"), &cmd) == nil && cmd.LogLevel.Level == "off")
	assert.NotNil(t, parseBytes([]byte("log verbose"), &cmd))

	assert.Nil(t, parseBytes([]byte("move 2 20 30"), &cmd))
	assert.Equal(t, 2, cmd.Move.Target.Id)
	assert.Nil(t, cmd.Move.Duration)
	assert.Nil(t, parseBytes([]byte("move 3 -12.5 7 4"), &cmd))
	x, err := cmd.Move.X.Float()
	assert.Nil(t, err)
	assert.Equal(t, -12.5, x)
	assert.Equal(t, 4.0, *cmd.Move.Duration)
	assert.NotNil(t, parseBytes([]byte("move 3 7"), &cmd))

	assert.True(t, parseBytes([]byte("neighbors"), &cmd) == nil && cmd.Neighbors != nil)
	assert.True(t, parseBytes([]byte("ndisc"), &cmd) == nil && cmd.Neighbors != nil)
	assert.True(t, parseBytes([]byte("nodes"), &cmd) == nil && cmd.Nodes != nil)
	assert.True(t, parseBytes([]byte("pings"), &cmd) == nil && cmd.Pings != nil)

	assert.True(t, parseBytes([]byte("pos"), &cmd) == nil && cmd.Pos != nil && cmd.Pos.Target == nil)
	assert.True(t, parseBytes([]byte("pos 2"), &cmd) == nil && cmd.Pos.Target.Id == 2)

	assert.True(t, parseBytes([]byte("radio 1 off"), &cmd) == nil && cmd.Radio.Off != nil)
	assert.True(t, parseBytes([]byte("radio 1 2 3 on"), &cmd) == nil && len(cmd.Radio.Nodes) == 3)
	assert.True(t, parseBytes([]byte("radio 2 ft 10 60"), &cmd) == nil && cmd.Radio.FailTime.FailInterval == 60)
	assert.NotNil(t, parseBytes([]byte("radio on"), &cmd))

	assert.True(t, parseBytes([]byte("signal"), &cmd) == nil && cmd.Signal != nil && cmd.Signal.Target == nil)
	assert.True(t, parseBytes([]byte("signal 3"), &cmd) == nil && cmd.Signal.Target.Id == 3)

	assert.True(t, parseBytes([]byte("speed"), &cmd) == nil && cmd.Speed != nil)
	assert.True(t, parseBytes([]byte("speed max"), &cmd) == nil && cmd.Speed.Max != nil)
	assert.True(t, parseBytes([]byte("speed 2.5"), &cmd) == nil && *cmd.Speed.Speed == 2.5)

	assert.True(t, parseBytes([]byte("time"), &cmd) == nil && cmd.Time != nil)
}

func TestNodeSelectorUniqueSorted(t *testing.T) {
	var inp, outp, exp []NodeSelector

	inp = []NodeSelector{{Id: 3}, {Id: 3}, {Id: 1}, {Id: 2}, {Id: 1234}}
	exp = []NodeSelector{{Id: 1}, {Id: 2}, {Id: 3}, {Id: 1234}}
	outp = getUniqueAndSorted(inp)
	assert.Equal(t, exp, outp)

	outp = getUniqueAndSorted(nil)
	assert.Empty(t, outp)
}

func TestHelp(t *testing.T) {
	help := newHelp()
	for _, cmd := range []string{"go", "move", "signal", "pings", "neighbors", "kpi", "radio", "exit"} {
		assert.Contains(t, help.sections, cmd)
		assert.NotEmpty(t, help.summary(cmd), cmd)
	}
	assert.Equal(t, "Move a node to a new X/Y position.", help.summary("move"))
	assert.Equal(t, "Stop the simulation, write all result files and exit.", help.summary("exit"))
	assert.True(t, sort.StringsAreSorted(help.names))

	general := help.outputGeneralHelp()
	assert.Contains(t, general, "signal")
	assert.Contains(t, general, "help <command>")

	goHelp := help.outputCommandHelp("go")
	assert.True(t, strings.HasPrefix(goHelp, "go\n  Simulate for a given time"), goHelp)
	assert.Contains(t, goHelp, "  Definition:\n    go <duration> [speed <speed>]\n")
	assert.Contains(t, goHelp, "  Example:\n    > go 1.5\n")
	assert.NotContains(t, goHelp, "`")
	assert.Equal(t, "nosuchcmd\n  (Non-existent command.)\n", help.outputCommandHelp("nosuchcmd"))
}

type mockCliHandler struct {
	expectedCmd string
	handleError error
	handleCount int
	t           *testing.T
}

func (hnd *mockCliHandler) HandleCommand(cmd string, output io.Writer) error {
	assert.Equal(hnd.t, hnd.expectedCmd, cmd)
	hnd.handleCount += 1
	return hnd.handleError
}

func (hnd *mockCliHandler) GetPrompt() string {
	return "> "
}

func TestCliStartStop(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "help",
		handleError: nil,
		t:           t,
	}

	opt := DefaultCliOptions()
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "# comment lines are skipped\n")
	fmt.Fprint(w, "help\n")
	time.Sleep(time.Millisecond * 500)
	_ = w.Close()
	Cli.Stop()

	assert.Nil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)
}

func TestCliCommandNotDefined(t *testing.T) {
	Cli = newCliInstance()
	handler := mockCliHandler{
		expectedCmd: "xyz",
		handleError: fmt.Errorf("undefined command"),
		t:           t,
	}

	opt := DefaultCliOptions()
	r, w, _ := os.Pipe()
	opt.Stdin = r
	err := make(chan error, 1)
	go func() {
		err <- Cli.Run(&handler, opt)
	}()
	<-Cli.Started
	fmt.Fprint(w, "xyz\n") // unknown command triggers handle-error, which causes CLI exit.

	assert.NotNil(t, <-err)
	assert.Equal(t, 1, handler.handleCount)

	Cli.Stop() // calling Stop() after CLI has already exited.
}

func startTestSimulation(t *testing.T) (*progctx.ProgCtx, *simulation.Simulation, *CmdRunner) {
	cfg := simulation.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Speed = dispatcher.MaxSimulateSpeed
	cfg.ChannelLoss = []radiomodel.LossModelConfig{{Type: "fixed", Params: map[string]float64{"rss": -60}}}

	ctx := progctx.New(context.Background())
	sim, err := simulation.NewSimulation(ctx, cfg, nil)
	require.NoError(t, err)
	sim.SetStdout(io.Discard)
	go sim.Run()
	<-sim.Started
	return ctx, sim, NewCmdRunner(ctx, sim)
}

func runCommand(t *testing.T, rt *CmdRunner, cmd string) string {
	var out bytes.Buffer
	assert.NoError(t, rt.HandleCommand(cmd, &out))
	return out.String()
}

func TestCmdRunner(t *testing.T) {
	ctx, _, rt := startTestSimulation(t)
	defer func() {
		ctx.Cancel("test done")
		ctx.Wait()
	}()

	assert.Equal(t, "0\nDone\n", runCommand(t, rt, "time"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "go 1500ms"))
	assert.Equal(t, "1500000\nDone\n", runCommand(t, rt, "time"))

	out := runCommand(t, rt, "signal 2")
	assert.Contains(t, out, "[Signal] Time: 1s")
	assert.Contains(t, out, "samples=1")
	assert.Contains(t, runCommand(t, rt, "signal 1"), "Error: node 1 has no signal sampler")

	assert.Equal(t, "Done\n", runCommand(t, rt, "move 3 10 -10"))
	out = runCommand(t, rt, "pos 3")
	assert.Contains(t, out, "node=3    x=10.0000")
	assert.Contains(t, out, "y=-10.0000")
	assert.Contains(t, runCommand(t, rt, "move 1 10 10 5"), "Error: ")
	assert.Contains(t, runCommand(t, rt, "move 9 1 1"), "Error: ")

	assert.Equal(t, "Done\n", runCommand(t, rt, "radio 2 off"))
	out = runCommand(t, rt, "nodes")
	assert.Equal(t, 4, strings.Count(out, "\n"))
	assert.Contains(t, out, "{id: 2, name: Jarbas")
	assert.Contains(t, out, "failed: true")
	assert.Equal(t, "Done\n", runCommand(t, rt, "radio 2 on"))
	assert.NotContains(t, runCommand(t, rt, "nodes"), "failed: true")
	assert.Contains(t, runCommand(t, rt, "radio 2 ft 5 2"), "fail-duration must be < fail-interval")

	assert.Equal(t, "Done\n", runCommand(t, rt, "speed max"))
	assert.Equal(t, fmt.Sprintf("%v\nDone\n", float64(dispatcher.MaxSimulateSpeed)), runCommand(t, rt, "speed"))

	assert.Equal(t, "Done\n", runCommand(t, rt, "go 2"))
	out = runCommand(t, rt, "pings")
	assert.Equal(t, 2, strings.Count(out, "node=1"))
	assert.Contains(t, runCommand(t, rt, "neighbors"), "NDISC Cache of node 1 at time +3.5s")
	assert.Contains(t, runCommand(t, rt, "links"), "{src: 1, dst: 2")
	assert.Contains(t, runCommand(t, rt, "counters"), "Transmissions")
	assert.Contains(t, runCommand(t, rt, "kpi"), "\"connectivity\"")
	assert.Contains(t, runCommand(t, rt, "energy"), "nodeid: 1")

	assert.Equal(t, "Done\n", runCommand(t, rt, "log warn"))
	assert.Equal(t, "warn\nDone\n", runCommand(t, rt, "log"))
	assert.Equal(t, "Done\n", runCommand(t, rt, "log info"))

	assert.Contains(t, runCommand(t, rt, "help"), "For detailed help per command")
	assert.Contains(t, runCommand(t, rt, "bogus"), "Error: ")
}

func TestCmdRunnerExit(t *testing.T) {
	ctx, sim, rt := startTestSimulation(t)

	var out bytes.Buffer
	err := rt.HandleCommand("exit", &out)
	assert.NotNil(t, err)
	assert.Equal(t, "Done\n", out.String())
	ctx.Wait()

	_, err = os.Stat(sim.Config().OutputDir + "/energy_results/0_energy.txt")
	assert.NoError(t, err)

	out.Reset()
	assert.NotNil(t, rt.HandleCommand("time", &out))
	assert.Empty(t, out.String())
}
