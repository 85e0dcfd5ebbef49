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

// Package pcap writes IEEE 802.15.4 frames to PCAP files, either as plain frames with FCS (DLT 195) or
// with a wpan-tap header carrying RSS, channel and LQI (DLT 283).
package pcap

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	. "github.com/openthread/lowpan-ns/types"
)

type LinkType int

const (
	LinkTypeWpan LinkType = iota
	LinkTypeWpanTap
)

const (
	LinkTypeWpanStr    = "wpan"
	LinkTypeWpanTapStr = "wpan-tap"
)

func ParseLinkType(s string) (LinkType, error) {
	switch s {
	case LinkTypeWpanStr, "":
		return LinkTypeWpan, nil
	case LinkTypeWpanTapStr:
		return LinkTypeWpanTap, nil
	default:
		return LinkTypeWpan, errors.Errorf("invalid PCAP link type %q", s)
	}
}

func (lt LinkType) String() string {
	if lt == LinkTypeWpanTap {
		return LinkTypeWpanTapStr
	}
	return LinkTypeWpanStr
}

func (lt LinkType) dlt() uint32 {
	if lt == LinkTypeWpanTap {
		return dltIeee802154Tap
	}
	return dltIeee802154
}

const (
	dltIeee802154       = 195
	pcapMagicNumber     = 0xA1B2C3D4
	pcapVersionMajor    = 2
	pcapVersionMinor    = 4
	pcapSnapLen         = 256
	pcapFileHeaderSize  = 24
	pcapFrameHeaderSize = 16
)

// Frame is a single radio frame (PSDU including FCS).
type Frame struct {
	Timestamp uint64
	Data      []byte
	Channel   ChannelId
	RssiDbm   float32
	Lqi       uint8
}

// Writer appends frames to a PCAP stream.
type Writer struct {
	w        *bufio.Writer
	c        io.Closer
	linkType LinkType
	frames   uint64
}

// NewWriter writes the PCAP file header to w.
func NewWriter(w io.Writer, lt LinkType) (*Writer, error) {
	pw := &Writer{
		w:        bufio.NewWriter(w),
		linkType: lt,
	}
	if c, ok := w.(io.Closer); ok {
		pw.c = c
	}

	var header [pcapFileHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], pcapMagicNumber)
	binary.LittleEndian.PutUint16(header[4:6], pcapVersionMajor)
	binary.LittleEndian.PutUint16(header[6:8], pcapVersionMinor)
	binary.LittleEndian.PutUint32(header[8:12], 0)
	binary.LittleEndian.PutUint32(header[12:16], 0)
	binary.LittleEndian.PutUint32(header[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(header[20:24], lt.dlt())
	if _, err := pw.w.Write(header[:]); err != nil {
		return nil, errors.Wrap(err, "write PCAP header")
	}
	return pw, nil
}

// Create creates (or truncates) filename and writes the PCAP header.
func Create(filename string, lt LinkType) (*Writer, error) {
	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", filename)
	}
	pw, err := NewWriter(fd, lt)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	return pw, nil
}

func (pw *Writer) LinkType() LinkType {
	return pw.linkType
}

// Frames returns the number of frames written.
func (pw *Writer) Frames() uint64 {
	return pw.frames
}

func (pw *Writer) WriteFrame(frame *Frame) error {
	var tap []byte
	if pw.linkType == LinkTypeWpanTap {
		tap = tapHeader(frame)
	}

	var header [pcapFrameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(frame.Timestamp/UsPerSec))
	binary.LittleEndian.PutUint32(header[4:8], uint32(frame.Timestamp%UsPerSec))
	plen := uint32(len(tap) + len(frame.Data))
	binary.LittleEndian.PutUint32(header[8:12], plen)
	binary.LittleEndian.PutUint32(header[12:16], plen)

	if _, err := pw.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := pw.w.Write(tap); err != nil {
		return err
	}
	if _, err := pw.w.Write(frame.Data); err != nil {
		return err
	}
	pw.frames++
	return nil
}

func (pw *Writer) Flush() error {
	return pw.w.Flush()
}

// Close flushes the writer and closes the underlying file, if any.
func (pw *Writer) Close() error {
	err := pw.w.Flush()
	if pw.c != nil {
		if cerr := pw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
