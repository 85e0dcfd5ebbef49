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

// Package visualize_anim writes a NetAnim compatible XML animation trace.
package visualize_anim

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	. "github.com/openthread/lowpan-ns/visualize"
)

const animVersion = "netanim-3.108"

// xmlNodeUpdate is a <nu> element: position (p), color (c) or description (d) of a node.
type xmlNodeUpdate struct {
	XMLName xml.Name `xml:"nu"`
	P       string   `xml:"p,attr"`
	T       string   `xml:"t,attr"`
	Id      NodeId   `xml:"id,attr"`
	SysId   *int     `xml:"sysId,attr,omitempty"`
	LocX    *float64 `xml:"locX,attr,omitempty"`
	LocY    *float64 `xml:"locY,attr,omitempty"`
	R       *uint8   `xml:"r,attr,omitempty"`
	G       *uint8   `xml:"g,attr,omitempty"`
	B       *uint8   `xml:"b,attr,omitempty"`
	Descr   string   `xml:"descr,attr,omitempty"`
}

type xmlNode struct {
	XMLName xml.Name `xml:"node"`
	Id      NodeId   `xml:"id,attr"`
	SysId   int      `xml:"sysId,attr"`
	LocX    float64  `xml:"locX,attr"`
	LocY    float64  `xml:"locY,attr"`
}

// xmlWirelessPacket is a <wpr> element, one per delivered frame.
type xmlWirelessPacket struct {
	XMLName xml.Name `xml:"wpr"`
	UId     uint64   `xml:"uId,attr"`
	FId     NodeId   `xml:"fId,attr"`
	FbTx    string   `xml:"fbTx,attr"`
	LbTx    string   `xml:"lbTx,attr"`
	Meta    string   `xml:"meta-info,attr"`
	TId     NodeId   `xml:"tId,attr"`
	FbRx    string   `xml:"fbRx,attr"`
	LbRx    string   `xml:"lbRx,attr"`
}

type animVisualizer struct {
	fileName    string
	w           io.Writer
	bw          *bufio.Writer
	f           *os.File
	enc         *xml.Encoder
	timestampUs uint64
	packetUid   uint64
	positions   map[NodeId]Vector
	colors      map[NodeId]Color
	meta        bool
	failed      bool
}

// NewAnimVisualizer creates a Visualizer writing the animation to fileName. With meta set,
// each packet carries a frame description.
func NewAnimVisualizer(fileName string, meta bool) Visualizer {
	return &animVisualizer{
		fileName:  fileName,
		positions: map[NodeId]Vector{},
		colors:    map[NodeId]Color{},
		meta:      meta,
	}
}

// NewAnimWriterVisualizer writes the animation to w.
func NewAnimWriterVisualizer(w io.Writer, meta bool) Visualizer {
	return &animVisualizer{
		w:         w,
		positions: map[NodeId]Vector{},
		colors:    map[NodeId]Color{},
		meta:      meta,
	}
}

func timeStr(us uint64) string {
	return fmt.Sprintf("%.6f", UsToSeconds(us))
}

func (av *animVisualizer) Init() {
	if av.w == nil {
		f, err := os.OpenFile(av.fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("creating animation file %s failed: %+v", av.fileName, err)
			av.failed = true
			return
		}
		av.f = f
		av.w = f
	}
	av.bw = bufio.NewWriter(av.w)
	av.enc = xml.NewEncoder(av.bw)
	_, _ = av.bw.WriteString(xml.Header)
	start := xml.StartElement{
		Name: xml.Name{Local: "anim"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "ver"}, Value: animVersion},
			{Name: xml.Name{Local: "filetype"}, Value: "animation"},
		},
	}
	av.check(av.enc.EncodeToken(start))
	av.check(av.enc.EncodeElement(struct {
		XMLName xml.Name `xml:"topology"`
		MinX    float64  `xml:"minX,attr"`
		MinY    float64  `xml:"minY,attr"`
		MaxX    float64  `xml:"maxX,attr"`
		MaxY    float64  `xml:"maxY,attr"`
	}{MaxX: 100, MaxY: 100}, xml.StartElement{Name: xml.Name{Local: "topology"}}))
	_, _ = av.bw.WriteString("\n")
}

func (av *animVisualizer) check(err error) {
	if err != nil && !av.failed {
		logger.Errorf("writing animation failed: %+v", err)
		av.failed = true
	}
}

func (av *animVisualizer) encode(v interface{}) {
	if av.failed || av.enc == nil {
		return
	}
	av.check(av.enc.Encode(v))
	_, _ = av.bw.WriteString("\n")
}

func (av *animVisualizer) Run() {
}

func (av *animVisualizer) Stop() {
	if av.enc == nil {
		return
	}
	if !av.failed {
		av.check(av.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "anim"}}))
		av.check(av.enc.Flush())
		_, _ = av.bw.WriteString("\n")
		av.check(av.bw.Flush())
	}
	if av.f != nil {
		_ = av.f.Close()
		av.f = nil
	}
	av.enc = nil
	logger.Debugf("animation written (%d packets)", av.packetUid)
}

func (av *animVisualizer) AddNode(nodeid NodeId, cfg *NodeConfig) {
	t := timeStr(av.timestampUs)
	av.positions[nodeid] = cfg.Position
	av.colors[nodeid] = cfg.Color
	av.encode(xmlNode{Id: nodeid, LocX: cfg.Position.X, LocY: cfg.Position.Y})
	av.setColor(nodeid, cfg.Color)
	if cfg.Name != "" {
		av.encode(xmlNodeUpdate{P: "d", T: t, Id: nodeid, Descr: cfg.Name})
	}
}

func (av *animVisualizer) SetNodePos(nodeid NodeId, pos Vector) {
	if old, ok := av.positions[nodeid]; ok && old == pos {
		return
	}
	av.positions[nodeid] = pos
	sysId := 0
	x, y := pos.X, pos.Y
	av.encode(xmlNodeUpdate{P: "p", T: timeStr(av.timestampUs), Id: nodeid, SysId: &sysId, LocX: &x, LocY: &y})
}

func (av *animVisualizer) setColor(nodeid NodeId, c Color) {
	r, g, b := c.R, c.G, c.B
	av.encode(xmlNodeUpdate{P: "c", T: timeStr(av.timestampUs), Id: nodeid, R: &r, G: &g, B: &b})
}

// OnNodeFail greys out the node until it recovers.
func (av *animVisualizer) OnNodeFail(nodeid NodeId) {
	av.setColor(nodeid, Color{R: 128, G: 128, B: 128})
}

func (av *animVisualizer) OnNodeRecover(nodeid NodeId) {
	av.setColor(nodeid, av.colors[nodeid])
}

func (av *animVisualizer) Send(srcid NodeId, dstid NodeId, mvinfo *MsgVisualizeInfo) {
	av.packetUid++
	end := mvinfo.TxStartUs + uint64(mvinfo.SendDurationUs)
	pkt := xmlWirelessPacket{
		UId:  av.packetUid,
		FId:  srcid,
		FbTx: timeStr(mvinfo.TxStartUs),
		LbTx: timeStr(end),
		TId:  dstid,
		FbRx: timeStr(mvinfo.TxStartUs),
		LbRx: timeStr(end),
	}
	if av.meta {
		pkt.Meta = fmt.Sprintf("LrWpanMac FC:%s Seq:%d Len:%d Rx:%.2fdBm", mvinfo.FrameControl, mvinfo.Seq,
			mvinfo.LengthBytes, mvinfo.RxPowerDbm)
	}
	av.encode(pkt)
}

func (av *animVisualizer) SetSpeed(speed float64) {
}

func (av *animVisualizer) AdvanceTime(ts uint64, speed float64) {
	av.timestampUs = ts
}

func (av *animVisualizer) SetController(ctrl SimulationController) {
}

func (av *animVisualizer) SetTitle(titleInfo TitleInfo) {
}

func (av *animVisualizer) OnSignalSample(sample *SignalSample) {
}

func (av *animVisualizer) OnPingReply(reply *PingReply) {
}

func (av *animVisualizer) UpdateNodesEnergy(nodes []*NodeEnergy, timestamp uint64, updateView bool) {
}
