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

package lowpanns_main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/lowpan-ns/dispatcher"
	"github.com/openthread/lowpan-ns/logger"
)

func resetArgs() {
	args = MainArgs{}
}

func TestCreateConfigDefaults(t *testing.T) {
	resetArgs()
	require.NoError(t, parseArgs(nil))
	cfg, err := createConfig()
	require.NoError(t, err)
	assert.Equal(t, float64(dispatcher.MaxSimulateSpeed), cfg.Speed)
	assert.Equal(t, "Ping-6LoW-lr-wpan", cfg.PcapPrefix)
	assert.Equal(t, "Ping-6LoW-lr-wpan.tr", cfg.AsciiTrace)
	assert.False(t, cfg.SixLowPanLogInfo)
	assert.Equal(t, 3, len(cfg.Nodes))

	resetArgs()
	require.NoError(t, parseArgs([]string{"-interactive"}))
	cfg, err = createConfig()
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Speed)
}

func TestCreateConfigFlags(t *testing.T) {
	resetArgs()
	dir := t.TempDir()
	require.NoError(t, parseArgs([]string{"-disable-pcap", "-disable-asciitrace", "-enable-sixlowpan-loginfo",
		"-seed", "3", "-speed", "2.5", "-anim", "none", "-output-dir", dir, "-pcap-type", "wpan-tap"}))
	cfg, err := createConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.PcapPrefix)
	assert.Equal(t, "", cfg.AsciiTrace)
	assert.Equal(t, "", cfg.AnimFile)
	assert.True(t, cfg.SixLowPanLogInfo)
	assert.Equal(t, uint64(3), cfg.Run)
	assert.Equal(t, 2.5, cfg.Speed)
	assert.Equal(t, dir, cfg.OutputDir)
	assert.Equal(t, "wpan-tap", cfg.PcapType)

	resetArgs()
	require.NoError(t, parseArgs([]string{"-speed", "fast"}))
	_, err = createConfig()
	assert.Error(t, err)

	resetArgs()
	assert.Error(t, parseArgs([]string{"-nosuchflag"}))
}

func TestCreateConfigFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("title: \"from file\"\nstop-time: 12\n"), 0644))

	resetArgs()
	require.NoError(t, parseArgs([]string{"-config", fn, "-speed", "max"}))
	cfg, err := createConfig()
	require.NoError(t, err)
	assert.Equal(t, "from file", cfg.Title)
	assert.Equal(t, 12.0, cfg.StopTime)

	resetArgs()
	require.NoError(t, parseArgs([]string{"-config", fn + ".missing"}))
	_, err = createConfig()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer logger.SetLevel(logger.DefaultLevel)

	resetArgs()
	require.NoError(t, parseArgs([]string{"-verbose"}))
	require.NoError(t, setupLogging())
	assert.Equal(t, logger.DebugLevel, logger.GetLevel())

	resetArgs()
	require.NoError(t, parseArgs([]string{"-verbose", "-log", "warn"}))
	require.NoError(t, setupLogging())
	assert.Equal(t, logger.WarnLevel, logger.GetLevel())

	resetArgs()
	require.NoError(t, parseArgs([]string{"-log", "loud"}))
	assert.Error(t, setupLogging())
}
