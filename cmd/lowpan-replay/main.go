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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/progctx"
	visualizeGrpc "github.com/openthread/lowpan-ns/visualize/grpc"
)

var args struct {
	ReplayFile string
	Listen     string
	Speed      float64
}

func parseArgs() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-listen addr] [-speed n] <replay_file>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  Replays the visualization events of a prior simulation over gRPC.\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&args.Listen, "listen", "localhost:8999", "gRPC listen address")
	flag.Float64Var(&args.Speed, "speed", 1, "playback speed")
	flag.Parse()

	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}

	args.ReplayFile = flag.Arg(0)
}

func main() {
	parseArgs()
	logger.SetLevel(logger.InfoLevel)

	ctx := progctx.New(context.Background())
	ctx.HandleSignals()

	rs, err := visualizeGrpc.NewReplayServer(args.ReplayFile, args.Speed)
	logger.FatalIfError(err)

	err = rs.Serve(ctx, args.Listen)
	ctx.Cancel(nil)
	ctx.Wait()
	logger.FatalIfError(err)
}
