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

// Package trace writes an ASCII line per MAC/PHY event of the traced devices.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/lrwpan"
	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/wpan"
)

// AsciiWriter formats trace events as
// `<kind> <time> /NodeList/<node>/DeviceList/<dev>/LrWpanNetDevice/<source> <frame> [<details>]`.
type AsciiWriter struct {
	mu      sync.Mutex
	w       *bufio.Writer
	c       io.Closer
	lines   uint64
	devices map[*lrwpan.Device]int
	err     error
}

func NewAsciiWriter(w io.Writer) *AsciiWriter {
	aw := &AsciiWriter{
		w:       bufio.NewWriter(w),
		devices: map[*lrwpan.Device]int{},
	}
	if c, ok := w.(io.Closer); ok {
		aw.c = c
	}
	return aw
}

// CreateAsciiFile creates (or truncates) filename.
func CreateAsciiFile(filename string) (*AsciiWriter, error) {
	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", filename)
	}
	return NewAsciiWriter(fd), nil
}

// Attach traces dev as device index devIndex of its node.
func (aw *AsciiWriter) Attach(dev *lrwpan.Device, devIndex int) {
	aw.mu.Lock()
	aw.devices[dev] = devIndex
	aw.mu.Unlock()
	dev.AddTraceSink(aw)
}

// Lines returns the number of lines written.
func (aw *AsciiWriter) Lines() uint64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.lines
}

func source(kind lrwpan.TraceKind) string {
	switch kind {
	case lrwpan.TraceEnqueue:
		return "Mac/MacTx"
	case lrwpan.TraceTxStart:
		return "Phy/PhyTxBegin"
	case lrwpan.TraceRx:
		return "Mac/MacRx"
	case lrwpan.TraceDrop:
		return "Mac/MacTxDrop"
	default:
		return "Mac"
	}
}

func FormatEvent(ev *lrwpan.TraceEvent, devIndex int) string {
	frame := fmt.Sprintf("len=%d", len(ev.Psdu))
	if f, err := wpan.Dissect(ev.Psdu); err == nil {
		frame = f.String()
	}
	line := fmt.Sprintf("%c %.6f /NodeList/%d/DeviceList/%d/LrWpanNetDevice/%s %s",
		ev.Kind, UsToSeconds(ev.Timestamp), ev.Node, devIndex, source(ev.Kind), frame)
	switch ev.Kind {
	case lrwpan.TraceTxStart:
		line += fmt.Sprintf(" duration=%dus", ev.DurationUs)
	case lrwpan.TraceRx:
		line += fmt.Sprintf(" from=%d rss=%.2fdBm sinr=%.2fdB", ev.Peer, ev.RxPowerDbm, ev.SinrDb)
	case lrwpan.TraceDrop:
		if ev.Peer != InvalidNodeId {
			line += fmt.Sprintf(" from=%d", ev.Peer)
		}
		line += " reason=" + ev.Reason
	}
	return line
}

func (aw *AsciiWriter) OnMacTrace(dev *lrwpan.Device, ev *lrwpan.TraceEvent) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.err != nil {
		return
	}
	if _, err := fmt.Fprintln(aw.w, FormatEvent(ev, aw.devices[dev])); err != nil {
		aw.err = err
		logger.Warnf("ascii trace: %v", err)
		return
	}
	aw.lines++
}

func (aw *AsciiWriter) Flush() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.w.Flush()
}

func (aw *AsciiWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	err := aw.w.Flush()
	if aw.c != nil {
		if cerr := aw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
