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

// Package lowpanns_main parses the command line, builds the simulation and its visualizers, and runs it
// either in batch mode up to the stop time or under the interactive console.
package lowpanns_main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/cli"
	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/progctx"
	"github.com/openthread/lowpan-ns/simulation"
	"github.com/openthread/lowpan-ns/visualize"
	visualizeAnim "github.com/openthread/lowpan-ns/visualize/anim"
	visualizeGrpc "github.com/openthread/lowpan-ns/visualize/grpc"
	visualizeMulti "github.com/openthread/lowpan-ns/visualize/multi"
	visualizeStatslog "github.com/openthread/lowpan-ns/visualize/statslog"
	"github.com/openthread/lowpan-ns/web"
)

const (
	DefaultGrpcAddr = "localhost:8999"
)

// verboseComponents are the log components switched to trace level by -verbose.
var verboseComponents = []string{"Ping", "LrWpanMac", "LrWpanPhy", "SixLowPanNetDevice", "Ipv6L3Protocol"}

type MainArgs struct {
	Verbose                bool
	DisablePcap            bool
	DisableAsciiTrace      bool
	EnableSixLowPanLogInfo bool
	ConfigFile             string
	DumpConfig             bool
	OutputDir              string
	Seed                   uint64
	LogLevel               string
	Speed                  string
	Interactive            bool
	GrpcAddr               string
	WebAddr                string
	PcapType               string
	AnimFile               string
	ReplayFile             string
}

var (
	args MainArgs
)

func parseArgs(argv []string) error {
	fs := flag.NewFlagSet("lowpan-ns", flag.ContinueOnError)
	fs.BoolVar(&args.Verbose, "verbose", false, "turn on log components")
	fs.BoolVar(&args.DisablePcap, "disable-pcap", false, "disable PCAP generation")
	fs.BoolVar(&args.DisableAsciiTrace, "disable-asciitrace", false, "disable ascii trace generation")
	fs.BoolVar(&args.EnableSixLowPanLogInfo, "enable-sixlowpan-loginfo", false, "enable sixlowpan info logging and the neighbor cache dump")
	fs.StringVar(&args.ConfigFile, "config", "", "YAML scenario file, overlaid on the default scenario")
	fs.BoolVar(&args.DumpConfig, "dump-config", false, "print the effective scenario as YAML and exit")
	fs.StringVar(&args.OutputDir, "output-dir", "", "directory for traces, pcaps and result files")
	fs.Uint64Var(&args.Seed, "seed", 0, "run number selecting independent random streams (0: keep configured run)")
	fs.StringVar(&args.LogLevel, "log", "", "set logging level: trace, debug, info, warn, error, off")
	fs.StringVar(&args.Speed, "speed", "", "simulation speed, or 'max' (default: max in batch mode, configured speed otherwise)")
	fs.BoolVar(&args.Interactive, "interactive", false, "start the interactive console instead of running to the stop time")
	fs.StringVar(&args.GrpcAddr, "grpc", "", "serve the live visualization event stream over gRPC on this address")
	fs.StringVar(&args.WebAddr, "web", "", "serve the HTTP status API on this address")
	fs.StringVar(&args.PcapType, "pcap-type", "", "pcap link type: wpan or wpan-tap")
	fs.StringVar(&args.AnimFile, "anim", "", "animation XML file name ('none' disables it)")
	fs.StringVar(&args.ReplayFile, "replay", "", "record the visualization events to this replay file")

	return fs.Parse(argv)
}

func setupLogging() error {
	if args.Verbose {
		logger.SetLevel(logger.DebugLevel)
		for _, name := range verboseComponents {
			logger.EnableComponent(name, logger.TraceLevel)
		}
	}
	if args.LogLevel != "" {
		level, err := logger.ParseLevelString(args.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	return nil
}

func parseSpeed(s string) (float64, error) {
	s = strings.ToLower(s)
	if s == "max" {
		return dispatcher.MaxSimulateSpeed, nil
	}
	speed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid speed %q", s)
	}
	if speed < 0 {
		return 0, errors.Errorf("invalid speed %q", s)
	}
	return speed, nil
}

func createConfig() (*simulation.Config, error) {
	var cfg *simulation.Config
	var err error
	if args.ConfigFile != "" {
		if cfg, err = simulation.LoadConfigFile(args.ConfigFile); err != nil {
			return nil, err
		}
	} else {
		cfg = simulation.DefaultConfig()
	}

	if args.DisablePcap {
		cfg.PcapPrefix = ""
	}
	if args.DisableAsciiTrace {
		cfg.AsciiTrace = ""
	}
	if args.EnableSixLowPanLogInfo {
		cfg.SixLowPanLogInfo = true
	}
	if args.OutputDir != "" {
		cfg.OutputDir = args.OutputDir
	}
	if args.Seed > 0 {
		cfg.Run = args.Seed
	}
	if args.PcapType != "" {
		cfg.PcapType = args.PcapType
	}
	if args.AnimFile == "none" {
		cfg.AnimFile = ""
	} else if args.AnimFile != "" {
		cfg.AnimFile = args.AnimFile
	}

	if args.Speed != "" {
		if cfg.Speed, err = parseSpeed(args.Speed); err != nil {
			return nil, err
		}
	} else if !args.Interactive {
		cfg.Speed = dispatcher.MaxSimulateSpeed
	}
	return cfg, cfg.Validate()
}

func createVisualizer(ctx *progctx.ProgCtx, cfg *simulation.Config, api *web.API,
	visualizerCreator func(ctx *progctx.ProgCtx, args *MainArgs) visualize.Visualizer) visualize.Visualizer {
	var vs []visualize.Visualizer

	grpcAddr := args.GrpcAddr
	if grpcAddr == "" && args.ReplayFile != "" {
		grpcAddr = DefaultGrpcAddr
		logger.Warnf("-replay needs the gRPC visualizer, serving it on %s", grpcAddr)
	}
	if grpcAddr != "" {
		// first, so that its blocking Run occupies the main goroutine
		vs = append(vs, visualizeGrpc.NewGrpcVisualizer(grpcAddr, args.ReplayFile))
	}
	if visualizerCreator != nil {
		if vis := visualizerCreator(ctx, &args); vis != nil {
			vs = append(vs, vis)
		}
	}
	if api != nil {
		vs = append(vs, api.Visualizer())
	}
	vs = append(vs, visualizeStatslog.NewStatslogVisualizer(cfg.OutputDir, cfg.Id))
	if cfg.AnimFile != "" {
		fn := cfg.AnimFile
		if !filepath.IsAbs(fn) {
			fn = filepath.Join(cfg.OutputDir, fn)
		}
		vs = append(vs, visualizeAnim.NewAnimVisualizer(fn, cfg.AnimMeta))
	}
	return visualizeMulti.NewMultiVisualizer(vs...)
}

// Main runs lowpan-ns with the command line of the process. visualizerCreator may add a visualizer and
// cliOptions configures the console of interactive mode; both may be nil.
func Main(ctx *progctx.ProgCtx, visualizerCreator func(ctx *progctx.ProgCtx, args *MainArgs) visualize.Visualizer, cliOptions *cli.CliOptions) {
	if err := parseArgs(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return
		}
		logger.Fatalf("%v", err)
	}
	logger.FatalIfError(setupLogging())

	cfg, err := createConfig()
	logger.FatalIfError(err)
	if args.DumpConfig {
		logger.FatalIfError(cfg.ExportConfig(os.Stdout))
		return
	}

	ctx.HandleSignals()

	var api *web.API
	if args.WebAddr != "" {
		api = web.Setup()
	}
	vis := createVisualizer(ctx, cfg, api, visualizerCreator)

	sim, err := simulation.NewSimulation(ctx, cfg, vis)
	logger.FatalIfError(err)
	logger.FatalIfError(sim.PrintDevices(os.Stdout))

	go sim.Run()
	<-sim.Started

	if api != nil {
		ctx.WaitAdd("web", 1)
		go func() {
			defer ctx.WaitDone("web")
			if err := api.Run(ctx, args.WebAddr); err != nil && ctx.Err() == nil {
				logger.Errorf("web api stopped unexpectedly: %+v", err)
			}
		}()
	}

	if args.Interactive {
		rt := cli.NewCmdRunner(ctx, sim)
		logger.SetStdoutCallback(cli.Cli)
		go func() {
			err := cli.Cli.Run(rt, cliOptions)
			ctx.Cancel(errors.Wrapf(err, "console exit"))
		}()
	} else {
		go func() {
			<-sim.GoUntilStop()
			ctx.Cancel(fmt.Sprintf("simulation reached stop time %gs", cfg.StopTime))
		}()
	}

	vis.Run() // visualize must run in the main thread
	<-ctx.Done()

	if args.Interactive {
		cli.Cli.Stop()
	}
	logger.Debugf("waiting for lowpan-ns to stop gracefully ...")
	ctx.Wait()
}
