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

package visualize_statslog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openthread/lowpan-ns/logger"
	. "github.com/openthread/lowpan-ns/types"
	. "github.com/openthread/lowpan-ns/visualize"
)

type statslogVisualizer struct {
	logFile        *os.File
	logFileName    string
	signalFile     *os.File
	signalFileName string
	isFileEnabled  bool
	changed        bool   // flag to track if some node stats changed
	timestampUs    uint64 // simulation current timestamp
	logTimestampUs uint64 // last log entry timestamp
	stats          nodeStats
	oldStats       nodeStats

	nodes       map[NodeId]struct{}
	nodesFailed map[NodeId]struct{}
	frames      int
	pingRx      int
	pingLost    int
}

type nodeStats struct {
	numNodes    int
	numFailed   int
	numFrames   int
	numPingRx   int
	numPingLost int
}

// NewStatslogVisualizer creates a new Visualizer that writes a log of network stats and a log of
// the signal samples to CSV files.
func NewStatslogVisualizer(outputDir string, simulationId int) Visualizer {
	return &statslogVisualizer{
		logFileName:    getStatsLogFileName(outputDir, simulationId),
		signalFileName: getSignalLogFileName(outputDir, simulationId),
		isFileEnabled:  true,
		changed:        true,
		nodes:          make(map[NodeId]struct{}, 16),
		nodesFailed:    make(map[NodeId]struct{}),
	}
}

func (sv *statslogVisualizer) SetSpeed(float64) {
}

func (sv *statslogVisualizer) SetNodePos(NodeId, Vector) {
}

func (sv *statslogVisualizer) SetController(SimulationController) {
}

func (sv *statslogVisualizer) Init() {
	sv.createLogFiles()
}

func (sv *statslogVisualizer) Run() {
	// no goroutine
}

func (sv *statslogVisualizer) Stop() {
	// add a final entry with final status
	sv.writeLogEntry(sv.timestampUs, sv.calcStats())
	sv.close()
	logger.Debugf("statslogVisualizer stopped and CSV log files closed.")
}

func (sv *statslogVisualizer) AddNode(nodeid NodeId, cfg *NodeConfig) {
	sv.changed = true
	sv.nodes[nodeid] = struct{}{}
}

func (sv *statslogVisualizer) Send(srcid NodeId, dstid NodeId, mvinfo *MsgVisualizeInfo) {
	sv.changed = true
	sv.frames++
}

func (sv *statslogVisualizer) AdvanceTime(ts uint64, speed float64) {
	if sv.changed && sv.checkLogEntryChange() {
		sv.writeLogEntry(sv.timestampUs, sv.stats)
		sv.logTimestampUs = sv.timestampUs
		sv.oldStats = sv.stats
	}
	sv.changed = false // this is kept to avoid sv.calcStats() call every time.
	sv.timestampUs = ts
}

func (sv *statslogVisualizer) OnNodeFail(nodeid NodeId) {
	sv.changed = true
	sv.nodesFailed[nodeid] = struct{}{}
}

func (sv *statslogVisualizer) OnNodeRecover(nodeid NodeId) {
	sv.changed = true
	delete(sv.nodesFailed, nodeid)
}

func (sv *statslogVisualizer) SetTitle(TitleInfo) {
}

func (sv *statslogVisualizer) OnSignalSample(s *SignalSample) {
	entry := fmt.Sprintf("%12.6f, %3d,%3d,%10.4f,%10.4f,%10.4f", UsToSeconds(s.Timestamp), s.NodeId, s.PeerId,
		s.Distance, s.RxPowerDbm, s.SnrDb)
	_ = sv.writeToFile(sv.signalFile, entry)
}

func (sv *statslogVisualizer) OnPingReply(reply *PingReply) {
	sv.changed = true
	if reply.Lost {
		sv.pingLost++
	} else {
		sv.pingRx++
	}
}

func (sv *statslogVisualizer) UpdateNodesEnergy([]*NodeEnergy, uint64, bool) {
}

func (sv *statslogVisualizer) createLogFiles() {
	logger.AssertNil(sv.logFile)

	var err error
	if sv.logFile, err = createCsv(sv.logFileName); err != nil {
		logger.Errorf("creating new stats log file %s failed: %+v", sv.logFileName, err)
		sv.isFileEnabled = false
		return
	}
	if sv.signalFile, err = createCsv(sv.signalFileName); err != nil {
		logger.Errorf("creating new signal log file %s failed: %+v", sv.signalFileName, err)
		sv.close()
		return
	}
	sv.writeLogFileHeaders()
	logger.Debugf("Stats log files '%s' and '%s' created.", sv.logFileName, sv.signalFileName)
}

func createCsv(name string) (*os.File, error) {
	_ = os.Remove(name)
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY, 0664)
}

func (sv *statslogVisualizer) writeLogFileHeaders() {
	// RFC 4180 CSV file: no leading or trailing spaces in header field names
	_ = sv.writeToFile(sv.logFile, "timeSec,nNodes,nFailed,nFrames,nPingReplies,nPingLost")
	_ = sv.writeToFile(sv.signalFile, "timeSec,node,peer,distanceM,rxPowerDbm,snrDb")
}

func (sv *statslogVisualizer) calcStats() nodeStats {
	return nodeStats{
		numNodes:    len(sv.nodes),
		numFailed:   len(sv.nodesFailed),
		numFrames:   sv.frames,
		numPingRx:   sv.pingRx,
		numPingLost: sv.pingLost,
	}
}

func (sv *statslogVisualizer) checkLogEntryChange() bool {
	sv.stats = sv.calcStats()
	return sv.stats != sv.oldStats
}

func (sv *statslogVisualizer) writeLogEntry(ts uint64, stats nodeStats) {
	timeSec := UsToSeconds(ts)
	entry := fmt.Sprintf("%12.6f, %3d,%3d,%6d,%5d,%5d", timeSec, stats.numNodes, stats.numFailed,
		stats.numFrames, stats.numPingRx, stats.numPingLost)
	_ = sv.writeToFile(sv.logFile, entry)
	logger.Tracef("statslog entry added: %s", entry)
}

func (sv *statslogVisualizer) writeToFile(f *os.File, line string) error {
	if !sv.isFileEnabled || f == nil {
		return nil
	}
	_, err := f.WriteString(line + "\n")
	if err != nil {
		sv.close()
		logger.Errorf("couldn't write to stats log file (%s), closing it", f.Name())
	}
	return err
}

func (sv *statslogVisualizer) close() {
	for _, f := range []**os.File{&sv.logFile, &sv.signalFile} {
		if *f != nil {
			_ = (*f).Close()
			*f = nil
		}
	}
	sv.isFileEnabled = false
}

func getStatsLogFileName(outputDir string, simId int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%d_stats.csv", simId))
}

func getSignalLogFileName(outputDir string, simId int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%d_signal.csv", simId))
}
