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

package tests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openthread/lowpan-ns/lowpantester"
	"github.com/openthread/lowpan-ns/simulation"
	. "github.com/openthread/lowpan-ns/types"
)

func TestScenario(t *testing.T) {
	test := lowpantester.NewLowpanTest(t)

	nodes := test.ListNodes()
	test.ExpectEqual(3, len(nodes))
	test.ExpectEqual("AP", nodes[apNodeId].Name)
	test.ExpectEqual("client", nodes[jarbasNodeId].Type)
	test.ExpectEqual(5.0, nodes[jarbasNodeId].X)

	test.Go(3 * time.Second)
	test.ExpectEqual(3*UsPerSec, test.Time())

	pings := test.Command("pings")
	test.ExpectEqual(2, len(pings))
	for _, line := range pings {
		test.ExpectTrue(strings.HasPrefix(line, "node=1"), line)
		test.ExpectTrue(!strings.Contains(line, "rx=0 "), line)
	}

	test.Commandf("move %d 12 0", grazyNodeId)
	test.ExpectVisualizeNodePos(grazyNodeId, 12, 0)
	test.ExpectEqual(12.0, test.ListNodes()[grazyNodeId].X)

	test.Commandf("radio %d off", jarbasNodeId)
	test.ExpectVisualizeNodeFail(jarbasNodeId)
	test.ExpectTrue(test.ListNodes()[jarbasNodeId].Failed)
	test.Commandf("radio %d on", jarbasNodeId)

	test.Go(2 * time.Second)
	signal := test.Commandf("signal %d", jarbasNodeId)
	test.ExpectEqual(1, len(signal))
	test.ExpectTrue(strings.Contains(signal[0], "[Signal] Time:"), signal[0])

	test.Command("exit")
	test.Join()

	data, err := os.ReadFile(filepath.Join(test.OutputDir(), "0_kpi.json"))
	test.ExpectNoError(err)
	var kpi simulation.Kpi
	test.ExpectNoError(json.Unmarshal(data, &kpi))
	test.ExpectEqual(2, len(kpi.Pings))
	test.ExpectEqual(5*UsPerSec, kpi.TimeUs.EndTimeUs)

	for _, fn := range []string{"Ping-6LoW-lr-wpan-1-0.pcap", "Ping-6LoW-lr-wpan.tr", "sixlowpan-animation.xml",
		"0_signal.csv", "energy_results/0_energy.txt"} {
		_, err = os.Stat(filepath.Join(test.OutputDir(), fn))
		test.ExpectNoError(err)
	}
}
