// Package mission implements the mission-mode command sequencer. It walks
// one accepted command through the ACTIVATE, READ or WRITE, and PRECHARGE
// phases while enforcing the JEDEC minimum cycle counts between them.
package mission

import (
	"log"

	"github.com/sarchlab/dfisim/ctrl/internal/capture"
	"github.com/sarchlab/dfisim/ddr"
	"github.com/sarchlab/dfisim/dfi"
)

// State enumerates the phases of the mission sequencer.
type State int

// The mission sequencer phases. There is exactly one in-flight command at a
// time: the sequencer has no concept of pipelining or queueing further
// commands while it is not idle.
const (
	StateIdle State = iota
	StateActivate
	StateRead
	StateWrite
	StatePrecharge
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActivate:
		return "ACTIVATE"
	case StateRead:
		return "READ"
	case StateWrite:
		return "WRITE"
	case StatePrecharge:
		return "PRECHARGE"
	default:
		return "INVALID"
	}
}

// Input is everything the sequencer observes in one cycle.
type Input struct {
	// Cmd is the command waiting at the inlet, nil when there is none. The
	// sequencer only considers it in the idle state.
	Cmd *dfi.Command

	// Pins is this cycle's sample of the PHY inputs.
	Pins dfi.Pins
}

// Output is the result of one cycle.
type Output struct {
	Frame dfi.Frame

	// Accepted is set on the one cycle the pending command is taken in
	// flight.
	Accepted bool
}

// Sequencer is the mission-mode state machine. It exclusively owns all of
// its state and counters; they change only inside Tick and Reset.
type Sequencer struct {
	timing  ddr.Timing
	capture *capture.Queue

	state State
	cmd   dfi.Command

	activateCycles  int
	readCycles      int
	writeCycles     int
	prechargeCycles int
	rdBeats         int
	wrBeats         int

	// timeout is the number of cycles a phase may run without progress
	// before the sequencer force-recovers to idle. Zero disables the
	// watchdog, matching a PHY that is trusted to always respond.
	timeout     int
	stallCycles int
}

// NewSequencer creates a mission sequencer. Captured read beats are appended
// to captureQueue. A timeout of zero disables the starvation watchdog.
func NewSequencer(
	timing ddr.Timing,
	captureQueue *capture.Queue,
	timeout int,
) *Sequencer {
	return &Sequencer{
		timing:  timing,
		capture: captureQueue,
		timeout: timeout,
	}
}

// State returns the current phase.
func (s *Sequencer) State() State {
	return s.state
}

// Busy reports whether a command is in flight.
func (s *Sequencer) Busy() bool {
	return s.state != StateIdle
}

// Reset forces the sequencer to idle and zeroes every counter.
func (s *Sequencer) Reset() {
	s.state = StateIdle
	s.cmd = dfi.Command{}
	s.zeroCounters()
}

func (s *Sequencer) zeroCounters() {
	s.activateCycles = 0
	s.readCycles = 0
	s.writeCycles = 0
	s.prechargeCycles = 0
	s.rdBeats = 0
	s.wrBeats = 0
	s.stallCycles = 0
}

// Tick advances the sequencer by one cycle. The next state is evaluated from
// the pre-tick state and counters, committed, and the cycle's output frame
// produced.
func (s *Sequencer) Tick(in Input) Output {
	if s.watchdogExpired() {
		log.Printf("mission: %s phase made no progress for %d cycles, "+
			"recovering to idle", s.state, s.stallCycles)
		s.Reset()
	}

	switch s.state {
	case StateIdle:
		return s.stepIdle(in)
	case StateActivate:
		return s.stepActivate(in)
	case StateRead:
		return s.stepRead(in)
	case StateWrite:
		return s.stepWrite(in)
	case StatePrecharge:
		return s.stepPrecharge(in)
	default:
		log.Printf("mission: invalid state %d, recovering to idle",
			int(s.state))
		s.Reset()

		return Output{Frame: dfi.IdleFrame()}
	}
}

// watchdogExpired counts one more cycle in the current phase and reports
// whether the phase has starved past the configured timeout.
func (s *Sequencer) watchdogExpired() bool {
	if s.timeout <= 0 || s.state == StateIdle {
		return false
	}

	s.stallCycles++

	return s.stallCycles > s.timeout
}

// enter commits a phase transition and zeroes the counter the new phase
// owns.
func (s *Sequencer) enter(state State) {
	s.state = state
	s.stallCycles = 0

	switch state {
	case StateActivate:
		s.activateCycles = 0
	case StateRead:
		s.readCycles = 0
	case StateWrite:
		s.writeCycles = 0
	case StatePrecharge:
		s.prechargeCycles = 0
	case StateIdle:
		s.zeroCounters()
	}
}

func (s *Sequencer) stepIdle(in Input) Output {
	s.zeroCounters()

	if in.Cmd == nil || !in.Pins.InitComplete || !in.Cmd.NeedsColumnAccess() {
		// Premature or malformed commands are not accepted. This is silent
		// back-pressure: the issuer sees the command stay pending and no
		// state changes.
		return Output{Frame: dfi.IdleFrame()}
	}

	// In flight from here on. The sequencer keeps its own copy, so the
	// issuer can no longer change the command's fields mid-flight.
	s.cmd = *in.Cmd
	s.enter(StateActivate)

	out := s.stepActivate(in)
	out.Accepted = true

	return out
}

func (s *Sequencer) stepActivate(in Input) Output {
	if s.activateCycles >= s.timing.TRCD {
		switch s.cmd.Kind {
		case dfi.CmdKindRead:
			s.enter(StateRead)
			return s.stepRead(in)
		case dfi.CmdKindWrite:
			s.enter(StateWrite)
			return s.stepWrite(in)
		}
	}

	frame := s.commandFrame()
	frame.ActN = s.activateCycles != 0 // strobe pulses on the entry cycle only
	frame.RasN = false                 // row strobe held for the whole phase

	s.activateCycles++

	return Output{Frame: frame}
}

func (s *Sequencer) stepWrite(in Input) Output {
	beats := s.timing.BeatsPerBurst()
	if s.wrBeats >= beats && s.writeCycles >= s.timing.TWRTP {
		s.enter(StatePrecharge)
		return s.stepPrecharge(in)
	}

	frame := s.commandFrame()
	frame.CasN = false
	frame.WeN = false
	frame.Odt = true // termination is on exactly while writing

	if s.writeCycles >= s.timing.TCWL && s.wrBeats < beats {
		frame.WrDataEn = true
		frame.WrData = s.cmd.Data
		frame.WrDataMask = s.cmd.Mask
		frame.WrDataCsN = dfi.RankCsN(s.cmd.Rank)
		s.wrBeats++
		s.stallCycles = 0
	}

	s.writeCycles++

	return Output{Frame: frame}
}

func (s *Sequencer) stepRead(in Input) Output {
	beats := s.timing.BeatsPerBurst()
	if s.rdBeats >= beats && s.readCycles >= s.timing.TRTP {
		s.enter(StatePrecharge)
		return s.stepPrecharge(in)
	}

	frame := s.commandFrame()
	frame.CasN = false
	frame.RdDataEn = true // request strobe held for the whole phase
	frame.RdDataCsN = dfi.RankCsN(s.cmd.Rank)

	if s.readCycles >= s.timing.TCL && in.Pins.RdDataValid &&
		s.rdBeats < beats {
		// A full capture queue rejects the beat; the phase then stalls
		// until the consumer drains.
		if s.capture.Push(in.Pins.RdData) {
			s.rdBeats++
			s.stallCycles = 0
		}
	}

	s.readCycles++

	return Output{Frame: frame}
}

func (s *Sequencer) stepPrecharge(in Input) Output {
	if s.prechargeCycles >= s.timing.TRP {
		s.enter(StateIdle)
		return Output{Frame: dfi.IdleFrame()}
	}

	s.wrBeats = 0
	s.rdBeats = 0

	frame := s.commandFrame()
	frame.RasN = false
	frame.WeN = false

	s.prechargeCycles++

	return Output{Frame: frame}
}

// commandFrame is the base frame for any phase that addresses the in-flight
// command's bank.
func (s *Sequencer) commandFrame() dfi.Frame {
	frame := dfi.IdleFrame()
	frame.Address = s.cmd.Address
	frame.Bank = s.cmd.Bank
	frame.BankGroup = s.cmd.BankGroup
	frame.CsN = dfi.RankCsN(s.cmd.Rank)
	frame.Cke = true

	return frame
}
