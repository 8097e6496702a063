// Package phy provides a behavioral model of a DFI PHY and the memory
// behind it. The model advances one cycle per driven frame, so a controller
// that drives exactly one frame per tick keeps the two clocks aligned.
package phy

import (
	"github.com/sarchlab/dfisim/dfi"
)

type rowAddr struct {
	csN       uint8
	bankGroup uint8
	bank      uint8
	row       uint32
}

type pendingBeat struct {
	dueCycle int64
	word     uint64
}

// A Model is a software stand-in for a DFI PHY plus its DRAM devices. It
// honors the initialization handshake, remembers the open row per bank,
// stores written beats, and returns them on later reads after a configurable
// latency.
type Model struct {
	initDelay   int64
	readLatency int64
	burstBeats  int

	cycle        int64
	initDueCycle int64
	initComplete bool

	openRow    map[rowAddr]bool
	store      map[rowAddr][]uint64
	currentRow rowAddr

	wrBeatsSeen int
	rdDataEn    bool
	pending     []pendingBeat

	lastFrame dfi.Frame
	outPins   dfi.Pins
}

// NewModel creates a PHY model with reasonable defaults. The setters below
// adjust it before it is handed to a controller.
func NewModel() *Model {
	return &Model{
		initDelay:    16,
		readLatency:  11,
		burstBeats:   4,
		initDueCycle: -1,
		openRow:      make(map[rowAddr]bool),
		store:        make(map[rowAddr][]uint64),
	}
}

// WithInitDelay sets how many cycles after an init request the PHY takes to
// report init complete.
func (m *Model) WithInitDelay(cycles int64) *Model {
	m.initDelay = cycles
	return m
}

// WithReadLatency sets the cycles between a read request strobe and the
// first returned beat.
func (m *Model) WithReadLatency(cycles int64) *Model {
	m.readLatency = cycles
	return m
}

// WithBurstBeats sets how many beats the devices return per read request.
func (m *Model) WithBurstBeats(beats int) *Model {
	m.burstBeats = beats
	return m
}

// PreInitialized marks the PHY as already initialized, skipping the init
// handshake. Mission-mode tests use this to avoid running training first.
func (m *Model) PreInitialized() *Model {
	m.initComplete = true
	return m
}

// Sample returns the PHY output pins for the current cycle.
func (m *Model) Sample() dfi.Pins {
	return m.outPins
}

// Drive presents one frame of controller outputs and advances the model by
// one cycle.
func (m *Model) Drive(frame dfi.Frame) {
	m.lastFrame = frame

	m.stepInit(frame)
	m.stepCommand(frame)
	m.stepWriteData(frame)
	m.stepReadData(frame)

	m.cycle++
	m.outPins = dfi.Pins{
		InitComplete: m.initComplete,
	}
	m.deliverDueBeat()
}

func (m *Model) stepInit(frame dfi.Frame) {
	if frame.InitStart {
		m.initComplete = false
		m.initDueCycle = m.cycle + m.initDelay
	}

	if m.initDueCycle >= 0 && m.cycle >= m.initDueCycle {
		m.initComplete = true
		m.initDueCycle = -1
	}
}

// stepCommand decodes the command strobes. Only the commands the controller
// actually issues are modeled.
func (m *Model) stepCommand(frame dfi.Frame) {
	if frame.CsN == dfi.AllRanksDeselected {
		return
	}

	switch {
	case !frame.ActN:
		row := rowAddr{
			csN:       frame.CsN,
			bankGroup: frame.BankGroup,
			bank:      frame.Bank,
			row:       frame.Address,
		}
		m.openRow[row] = true
		m.currentRow = row

	case !frame.RasN && !frame.WeN && frame.CasN:
		// Precharge closes the addressed bank's open row.
		delete(m.openRow, m.currentRow)
		m.wrBeatsSeen = 0
	}
}

func (m *Model) stepWriteData(frame dfi.Frame) {
	if !frame.WrDataEn {
		return
	}

	beats := m.store[m.currentRow]
	if m.wrBeatsSeen < len(beats) {
		beats[m.wrBeatsSeen] = frame.WrData
	} else {
		beats = append(beats, frame.WrData)
	}
	m.store[m.currentRow] = beats
	m.wrBeatsSeen++
}

func (m *Model) stepReadData(frame dfi.Frame) {
	rising := frame.RdDataEn && !m.rdDataEn
	m.rdDataEn = frame.RdDataEn

	if !rising {
		return
	}

	first := m.cycle + m.readLatency
	for beat := 0; beat < m.burstBeats; beat++ {
		m.pending = append(m.pending, pendingBeat{
			dueCycle: first + int64(beat),
			word:     m.beatWord(beat),
		})
	}
}

// beatWord returns the stored data for a beat, or a deterministic pattern
// derived from the open row address when nothing was written there.
func (m *Model) beatWord(beat int) uint64 {
	if beats, ok := m.store[m.currentRow]; ok && beat < len(beats) {
		return beats[beat]
	}

	return uint64(m.currentRow.row)<<8 | uint64(beat)
}

func (m *Model) deliverDueBeat() {
	if len(m.pending) == 0 || m.pending[0].dueCycle > m.cycle {
		return
	}

	m.outPins.RdData = m.pending[0].word
	m.outPins.RdDataValid = true
	m.pending = m.pending[1:]
}

// InitComplete reports whether the devices finished initialization.
func (m *Model) InitComplete() bool {
	return m.initComplete
}

// LastFrame returns the most recently driven frame.
func (m *Model) LastFrame() dfi.Frame {
	return m.lastFrame
}

// Cycle returns the number of frames driven so far.
func (m *Model) Cycle() int64 {
	return m.cycle
}
