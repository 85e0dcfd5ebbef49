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

// Package lowpantester drives a complete lowpan-ns process from tests: console commands go in through a
// pipe, console output and the gRPC visualization stream come back out.
package lowpantester

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/openthread/lowpan-ns/cli"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lowpanns_main"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/simulation"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
	visualizeGrpc "github.com/openthread/lowpan-ns/visualize/grpc"
)

const (
	GrpcAddr    = "localhost:18999"
	JoinTimeout = time.Second * 10
)

type LowpanTest struct {
	*testing.T

	stdin                  *os.File
	stdout                 *os.File
	done                   chan struct{}
	pendingOutput          chan string
	pendingVisualizeEvents chan *structpb.Struct
	ctx                    *progctx.ProgCtx
	conn                   *grpc.ClientConn
	visualizeClient        *visualizeGrpc.VisualizeClient
	outputDir              string
}

func (lt *LowpanTest) OutputDir() string {
	return lt.outputDir
}

func (lt *LowpanTest) Go(duration time.Duration) {
	lt.Commandf("go %dus", duration/time.Microsecond)
}

// Join waits for lowpan-ns to exit, for at most JoinTimeout.
func (lt *LowpanTest) Join() bool {
	select {
	case <-lt.done:
		return true
	case <-time.After(JoinTimeout):
		lt.Errorf("lowpan-ns did not exit within %v", JoinTimeout)
		return false
	}
}

func (lt *LowpanTest) sendCommand(cmd string) {
	logger.Infof("> %s", cmd)
	_, err := lt.stdin.WriteString(cmd + "\n")
	logger.PanicIfError(err)
}

func (lt *LowpanTest) stdoutReadRoutine() {
	scanner := bufio.NewScanner(lt.stdout)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		line := scanner.Text()
		for strings.HasPrefix(line, cli.Prompt) {
			line = line[len(cli.Prompt):]
		}
		logger.Debugf("read stdout: %#v", line)
		lt.pendingOutput <- line
	}
}

func (lt *LowpanTest) expectCommandResultLines() (output []string) {
	deadline := time.After(time.Second * 30)
	for {
		select {
		case line := <-lt.pendingOutput:
			if line == "Done" {
				return
			} else if strings.HasPrefix(line, "Error") {
				lt.ExpectTrue(false, line)
			} else {
				output = append(output, line)
			}
		case <-deadline:
			lt.ExpectTrue(false, "command result timeout")
		}
	}
}

func (lt *LowpanTest) Command(cmd string) []string {
	lt.sendCommand(cmd)
	return lt.expectCommandResultLines()
}

func (lt *LowpanTest) Commandf(format string, args ...interface{}) []string {
	return lt.Command(fmt.Sprintf(format, args...))
}

func (lt *LowpanTest) SetSpeed(speed float64) {
	lt.Commandf("speed %v", speed)
}

// Time returns the simulation time in us.
func (lt *LowpanTest) Time() uint64 {
	lines := lt.Command("time")
	lt.ExpectEqual(1, len(lines))
	v, err := strconv.ParseUint(lines[0], 10, 64)
	lt.ExpectNoError(err)
	return v
}

// ListNodes parses the output of the 'nodes' command.
func (lt *LowpanTest) ListNodes() map[NodeId]*simulation.NodeInfo {
	nodes := map[NodeId]*simulation.NodeInfo{}
	for _, line := range lt.Command("nodes") {
		info := &simulation.NodeInfo{}
		lt.ExpectNoError(yaml.Unmarshal([]byte(line), info))
		nodes[info.Id] = info
	}
	return nodes
}

func (lt *LowpanTest) Shutdown() {
	lt.ctx.Cancel(nil)
	_ = lt.stdin.Close()
	lt.Join()
	if lt.conn != nil {
		_ = lt.conn.Close()
	}
}

func (lt *LowpanTest) ExpectNoError(err error) {
	if err != nil {
		lt.Shutdown()
	}
	assert.Nil(lt, err, "unexpected error")
	if err != nil {
		lt.FailNow()
	}
}

func (lt *LowpanTest) ExpectTrue(value bool, msgAndArgs ...interface{}) {
	if !value {
		lt.Shutdown()
	}
	assert.True(lt, value, msgAndArgs...)

	if !value {
		lt.FailNow()
	}
}

func (lt *LowpanTest) ExpectEqual(expected interface{}, actual interface{}) {
	lt.ExpectTrue(assert.ObjectsAreEqual(expected, actual), "expected %#v, got %#v", expected, actual)
}

func (lt *LowpanTest) visualizeStreamReadRoutine() {
	for lt.ctx.Err() == nil {
		evt, err := lt.visualizeClient.Recv()
		if err != nil {
			return
		}
		logger.Debugf("Visualize: %v", evt)
		lt.pendingVisualizeEvents <- evt
	}
}

func EventType(evt *structpb.Struct) string {
	return evt.GetFields()["type"].GetStringValue()
}

func (lt *LowpanTest) ExpectVisualizeEvent(match func(evt *structpb.Struct) bool) {
	deadline := time.After(time.Second * 10)
	for {
		select {
		case evt := <-lt.pendingVisualizeEvents:
			if match(evt) {
				return
			}
		case <-deadline:
			lt.ExpectTrue(false, "ExpectVisualizeEvent timeout")
		}
	}
}

func (lt *LowpanTest) ExpectVisualizeNodePos(nodeid NodeId, x float64, y float64) {
	lt.ExpectVisualizeEvent(func(evt *structpb.Struct) bool {
		f := evt.GetFields()
		return EventType(evt) == "setNodePos" && NodeId(f["node"].GetNumberValue()) == nodeid &&
			f["x"].GetNumberValue() == x && f["y"].GetNumberValue() == y
	})
}

func (lt *LowpanTest) ExpectVisualizeNodeFail(nodeid NodeId) {
	lt.ExpectVisualizeEvent(func(evt *structpb.Struct) bool {
		return EventType(evt) == "nodeFail" && NodeId(evt.GetFields()["node"].GetNumberValue()) == nodeid
	})
}

// NewLowpanTest starts lowpan-ns in interactive mode with the default scenario. extraArgs are appended
// to its command line.
func NewLowpanTest(t *testing.T, extraArgs ...string) *LowpanTest {
	lt := &LowpanTest{
		T:                      t,
		done:                   make(chan struct{}),
		pendingOutput:          make(chan string, 1000),
		pendingVisualizeEvents: make(chan *structpb.Struct, 10000),
		outputDir:              t.TempDir(),
		ctx:                    progctx.New(context.Background()),
	}

	os.Args = append([]string{os.Args[0], "-interactive", "-speed", "max", "-grpc", GrpcAddr,
		"-output-dir", lt.outputDir}, extraArgs...)

	cliStdin, stdin, err := os.Pipe()
	logger.PanicIfError(err)
	stdout, cliStdout, err := os.Pipe()
	logger.PanicIfError(err)
	lt.stdin, lt.stdout = stdin, stdout

	go func() {
		defer func() {
			logger.Infof("lowpan-ns exited.")
			_ = cliStdout.Close()
			close(lt.done)
		}()

		lowpanns_main.Main(lt.ctx, func(ctx *progctx.ProgCtx, args *lowpanns_main.MainArgs) visualize.Visualizer {
			return nil
		}, &cli.CliOptions{
			EchoInput: false,
			Stdin:     cliStdin,
			Stdout:    cliStdout,
		})
	}()

	lt.conn, err = grpc.Dial(GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	lt.ExpectNoError(err)

	deadline := time.Now().Add(time.Second * 10)
	for time.Now().Before(deadline) {
		vc, err := visualizeGrpc.NewVisualizeClient(lt.ctx, lt.conn)
		if err == nil {
			if _, err = vc.Recv(); err == nil {
				lt.visualizeClient = vc
				break
			}
		}
		time.Sleep(time.Millisecond * 100)
	}
	lt.ExpectTrue(lt.visualizeClient != nil, "no visualize stream")

	go lt.stdoutReadRoutine()
	go lt.visualizeStreamReadRoutine()
	return lt
}
