// Package training implements the one-shot PHY calibration sequencer: an
// initialization delay, write leveling, then read leveling.
package training

import (
	"fmt"
	"log"

	"github.com/sarchlab/dfisim/dfi"
)

// State enumerates the calibration phases.
type State int

// The calibration phases. The sequence runs exactly once per reset; after
// DONE it idles until deliberately restarted.
const (
	StateIdle State = iota
	StateInitDelay
	StateWriteLevel
	StateReadLevel
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInitDelay:
		return "INIT_DELAY"
	case StateWriteLevel:
		return "WRITE_LEVEL"
	case StateReadLevel:
		return "READ_LEVEL"
	case StateDone:
		return "DONE"
	default:
		return "INVALID"
	}
}

// WriteLevelPattern is the base data pattern driven during write leveling.
// The driven value inverts on every strobe so the PHY sees a toggling bus.
const WriteLevelPattern uint64 = 0xAAAAAAAAAAAAAAAA

// Calibration always targets rank 0.
const calibrationRank uint8 = 0x01

// Params fixes the calibration windows. All values are in controller cycles.
type Params struct {
	// InitDelayTarget is how long to wait after requesting PHY
	// initialization before write leveling starts.
	InitDelayTarget int

	// WriteLevelWindow is the length of the write-leveling phase.
	WriteLevelWindow int

	// ReadLevelWindow is the timeout for read leveling. If the eye center is
	// not found within this window, leveling completes with a failure flag.
	ReadLevelWindow int

	// EyeCenter is the cycle inside the read-level window at which the mock
	// eye center is detected. A value at or past ReadLevelWindow models a
	// part that fails leveling.
	EyeCenter int

	// StrobePeriod is the cycle spacing of the leveling strobes.
	StrobePeriod int
}

// DefaultParams returns the calibration windows used when the builder is not
// told otherwise.
func DefaultParams() Params {
	return Params{
		InitDelayTarget:  32,
		WriteLevelWindow: 64,
		ReadLevelWindow:  128,
		EyeCenter:        77,
		StrobePeriod:     4,
	}
}

// Validate checks that every window is positive.
func (p Params) Validate() error {
	params := []struct {
		name  string
		value int
	}{
		{"init delay target", p.InitDelayTarget},
		{"write-level window", p.WriteLevelWindow},
		{"read-level window", p.ReadLevelWindow},
		{"eye center", p.EyeCenter},
		{"strobe period", p.StrobePeriod},
	}

	for _, param := range params {
		if param.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d",
				param.name, param.value)
		}
	}

	return nil
}

// Sequencer is the calibration state machine.
type Sequencer struct {
	params Params

	state  State
	cycles int

	writeLevelDone bool
	readLevelDone  bool
	eyeCenterFound bool
	completed      bool
}

// NewSequencer creates a calibration sequencer.
func NewSequencer(params Params) *Sequencer {
	return &Sequencer{params: params}
}

// State returns the current phase.
func (s *Sequencer) State() State {
	return s.state
}

// Completed reports whether calibration has run to DONE since the last
// reset or restart.
func (s *Sequencer) Completed() bool {
	return s.completed
}

// WriteLevelDone reports whether the write-leveling phase finished.
func (s *Sequencer) WriteLevelDone() bool {
	return s.writeLevelDone
}

// ReadLevelDone reports whether the read-leveling phase finished, whether or
// not it found the eye center.
func (s *Sequencer) ReadLevelDone() bool {
	return s.readLevelDone
}

// EyeCenterFound reports whether read leveling found the eye center before
// its timeout window elapsed.
func (s *Sequencer) EyeCenterFound() bool {
	return s.eyeCenterFound
}

// Reset re-arms the sequencer so that calibration runs again from the next
// tick on.
func (s *Sequencer) Reset() {
	*s = Sequencer{params: s.params}
}

// Restart deliberately re-arms a completed sequencer. It is idempotent.
func (s *Sequencer) Restart() {
	s.Reset()
}

// Tick advances the sequencer by one cycle and returns the frame it drives.
func (s *Sequencer) Tick(_ dfi.Pins) dfi.Frame {
	switch s.state {
	case StateIdle:
		return s.stepIdle()
	case StateInitDelay:
		return s.stepInitDelay()
	case StateWriteLevel:
		return s.stepWriteLevel()
	case StateReadLevel:
		return s.stepReadLevel()
	case StateDone:
		return s.stepDone()
	default:
		log.Printf("training: invalid state %d, recovering to idle",
			int(s.state))
		s.Reset()
		s.completed = true

		return dfi.IdleFrame()
	}
}

func (s *Sequencer) stepIdle() dfi.Frame {
	if s.completed {
		// Calibration already ran; idle until deliberately restarted.
		return dfi.IdleFrame()
	}

	s.state = StateInitDelay
	s.cycles = 0

	// The idle-to-init transition carries the one-shot init request.
	frame := dfi.IdleFrame()
	frame.InitStart = true

	s.cycles++

	return frame
}

func (s *Sequencer) stepInitDelay() dfi.Frame {
	if s.cycles >= s.params.InitDelayTarget {
		s.state = StateWriteLevel
		s.cycles = 0

		return s.stepWriteLevel()
	}

	s.cycles++

	return dfi.IdleFrame()
}

func (s *Sequencer) stepWriteLevel() dfi.Frame {
	if s.cycles >= s.params.WriteLevelWindow {
		s.writeLevelDone = true
		s.state = StateReadLevel
		s.cycles = 0

		return s.stepReadLevel()
	}

	frame := dfi.IdleFrame()
	if s.cycles%s.params.StrobePeriod == 0 {
		pattern := WriteLevelPattern
		if (s.cycles/s.params.StrobePeriod)%2 == 1 {
			pattern = ^pattern
		}

		frame.WrDataEn = true
		frame.WrData = pattern
		frame.WrDataMask = 0
		frame.WrDataCsN = dfi.RankCsN(calibrationRank)
	}

	s.cycles++

	return frame
}

func (s *Sequencer) stepReadLevel() dfi.Frame {
	if s.cycles == s.params.EyeCenter {
		s.readLevelDone = true
		s.eyeCenterFound = true
		s.state = StateDone

		return s.stepDone()
	}

	if s.cycles >= s.params.ReadLevelWindow {
		// Timeout. The failure is recorded but calibration still completes;
		// nothing above this sequencer treats it as fatal.
		s.readLevelDone = true
		s.eyeCenterFound = false
		s.state = StateDone

		return s.stepDone()
	}

	frame := dfi.IdleFrame()
	if s.cycles%s.params.StrobePeriod == 0 {
		frame.RdDataEn = true
		frame.RdDataCsN = dfi.RankCsN(calibrationRank)
	}

	s.cycles++

	return frame
}

func (s *Sequencer) stepDone() dfi.Frame {
	s.completed = true
	s.cycles = 0
	s.state = StateIdle

	return dfi.IdleFrame()
}
