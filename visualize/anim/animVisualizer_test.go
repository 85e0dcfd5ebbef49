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

package visualize_anim

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

type parsedAnim struct {
	XMLName  xml.Name            `xml:"anim"`
	Ver      string              `xml:"ver,attr"`
	FileType string              `xml:"filetype,attr"`
	Nodes    []xmlNode           `xml:"node"`
	Updates  []xmlNodeUpdate     `xml:"nu"`
	Packets  []xmlWirelessPacket `xml:"wpr"`
}

func TestAnimVisualizer(t *testing.T) {
	var buf bytes.Buffer
	av := NewAnimWriterVisualizer(&buf, true)
	av.Init()

	ap := DefaultNodeConfig()
	ap.Name = "AP"
	ap.Color = Color{R: 255}
	av.AddNode(1, &ap)
	cl := DefaultNodeConfig()
	cl.Name = "Jarbas"
	cl.Position = Vector{X: 5}
	cl.Color = Color{G: 255}
	av.AddNode(2, &cl)

	av.AdvanceTime(100000, 1)
	av.SetNodePos(2, Vector{X: 5.1638})
	av.SetNodePos(1, Vector{})
	av.Send(1, 2, &visualize.MsgVisualizeInfo{TxStartUs: 2000000, SendDurationUs: 1000, Seq: 4, LengthBytes: 30})
	av.OnNodeFail(2)
	av.OnNodeRecover(2)
	av.Stop()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</anim>"))

	var anim parsedAnim
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &anim))
	assert.Equal(t, animVersion, anim.Ver)
	assert.Equal(t, "animation", anim.FileType)
	require.Len(t, anim.Nodes, 2)
	assert.Equal(t, 5.0, anim.Nodes[1].LocX)

	// color and description per node, one position update (node 1 did not move), fail and recover colors
	require.Len(t, anim.Updates, 7)
	assert.Equal(t, "c", anim.Updates[0].P)
	assert.Equal(t, uint8(255), *anim.Updates[0].R)
	assert.Equal(t, "d", anim.Updates[1].P)
	assert.Equal(t, "AP", anim.Updates[1].Descr)
	assert.Equal(t, "Jarbas", anim.Updates[3].Descr)
	pos := anim.Updates[4]
	assert.Equal(t, "p", pos.P)
	assert.Equal(t, "0.100000", pos.T)
	assert.Equal(t, 5.1638, *pos.LocX)
	assert.Equal(t, uint8(128), *anim.Updates[5].G)
	assert.Equal(t, uint8(255), *anim.Updates[6].G)

	require.Len(t, anim.Packets, 1)
	p := anim.Packets[0]
	assert.Equal(t, uint64(1), p.UId)
	assert.Equal(t, NodeId(1), p.FId)
	assert.Equal(t, NodeId(2), p.TId)
	assert.Equal(t, "2.000000", p.FbTx)
	assert.Equal(t, "2.001000", p.LbRx)
	assert.Contains(t, p.Meta, "Seq:4 Len:30")
}

func TestAnimFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "anim.xml")
	av := NewAnimVisualizer(name, false)
	av.Init()
	cfg := DefaultNodeConfig()
	av.AddNode(1, &cfg)
	av.Send(1, 2, &visualize.MsgVisualizeInfo{})
	av.Stop()

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	var anim parsedAnim
	require.NoError(t, xml.Unmarshal(data, &anim))
	assert.Len(t, anim.Nodes, 1)
	require.Len(t, anim.Packets, 1)
	assert.Equal(t, "", anim.Packets[0].Meta)
}
