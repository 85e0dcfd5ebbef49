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

package pcap

import (
	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	"github.com/openthread/lowpan-ns/radiomodel"
)

// Capture writes every frame a device transmits or successfully receives (promiscuous mode).
type Capture struct {
	pw     *Writer
	failed bool
}

// Attach starts capturing the frames of dev into pw.
func Attach(dev *lrwpan.Device, pw *Writer) *Capture {
	c := &Capture{pw: pw}
	dev.AddTraceSink(c)
	return c
}

func (c *Capture) Writer() *Writer {
	return c.pw
}

func (c *Capture) OnMacTrace(dev *lrwpan.Device, ev *lrwpan.TraceEvent) {
	var frame *Frame
	switch ev.Kind {
	case lrwpan.TraceTxStart:
		frame = &Frame{
			Timestamp: ev.Timestamp,
			Data:      ev.Psdu,
			Channel:   ev.Channel,
			RssiDbm:   float32(dev.TxPowerDbm),
			Lqi:       255,
		}
	case lrwpan.TraceRx:
		frame = &Frame{
			Timestamp: ev.TxStartUs,
			Data:      ev.Psdu,
			Channel:   ev.Channel,
			RssiDbm:   float32(radiomodel.ClipRssi(ev.RxPowerDbm)),
			Lqi:       radiomodel.LinkQuality(ev.SinrDb),
		}
	default:
		return
	}
	if c.failed {
		return
	}
	if err := c.pw.WriteFrame(frame); err != nil {
		c.failed = true
		logger.Warnf("pcap of node %d: %v", dev.NodeId(), err)
	}
}
