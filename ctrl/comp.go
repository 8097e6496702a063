// Package ctrl implements a cycle-stepped behavioral model of a DDR memory
// controller driving a DFI-style command/address and data interface.
package ctrl

import (
	"log"

	"github.com/sarchlab/dfisim/ctrl/internal/capture"
	"github.com/sarchlab/dfisim/ctrl/internal/mission"
	"github.com/sarchlab/dfisim/ctrl/internal/training"
	"github.com/sarchlab/dfisim/ddr"
	"github.com/sarchlab/dfisim/dfi"
	"github.com/sarchlab/dfisim/sim"
)

// Mode selects which sequencer owns the signal drivers. Both sequencers are
// evaluated structurally, but only the active one's outputs reach the PHY.
type Mode int

// The two operating modes.
const (
	ModeTraining Mode = iota
	ModeMission
)

func (m Mode) String() string {
	switch m {
	case ModeTraining:
		return "TRAINING"
	case ModeMission:
		return "MISSION"
	default:
		return "UNKNOWN"
	}
}

// HookPosFrame triggers once per cycle with the dfi.Frame the controller
// committed.
var HookPosFrame = &sim.HookPos{Name: "DFI Frame"}

// HookPosMissionStateChange triggers when the mission sequencer changes
// phase.
var HookPosMissionStateChange = &sim.HookPos{Name: "Mission State Change"}

// HookPosTrainingStateChange triggers when the training sequencer changes
// phase.
var HookPosTrainingStateChange = &sim.HookPos{Name: "Training State Change"}

// StateTransition is the hook item attached to state-change positions.
type StateTransition struct {
	From string
	To   string
}

// Comp is the DDR controller model. It exclusively owns both sequencers and
// every counter; the PHY is a boundary written once and read once per cycle.
type Comp struct {
	*sim.TickingComponent

	timing ddr.Timing
	phy    dfi.Phy

	mode      Mode
	resetting bool

	cmdBuf   sim.Buffer
	capture  *capture.Queue
	mission  *mission.Sequencer
	training *training.Sequencer

	lastFrame dfi.Frame
}

// Tick advances the controller by one cycle: sample the PHY inputs, evaluate
// the active sequencer from the pre-tick state, commit, and drive exactly
// one frame. The non-active sequencer is suppressed so the two state
// machines can never drive contradictory values in the same cycle.
func (c *Comp) Tick() bool {
	if c.resetting {
		return c.tickReset()
	}

	pins := c.phy.Sample()

	var frame dfi.Frame
	var progress bool

	switch c.mode {
	case ModeTraining:
		frame, progress = c.tickTraining(pins)
	case ModeMission:
		frame, progress = c.tickMission(pins)
	default:
		log.Printf("%s: unknown mode %d, driving idle", c.Name(), int(c.mode))
		frame = dfi.IdleFrame()
	}

	c.commitFrame(frame)

	return progress
}

// tickReset applies the global reset: both sequencers go idle, every counter
// and driver returns to its inactive level, and pending work is discarded,
// all within this one tick. Holding reset longer is idempotent.
func (c *Comp) tickReset() bool {
	c.mission.Reset()
	c.training.Reset()
	c.capture.Clear()
	c.cmdBuf.Clear()
	c.commitFrame(dfi.IdleFrame())

	return false
}

func (c *Comp) tickTraining(pins dfi.Pins) (dfi.Frame, bool) {
	before := c.training.State()
	frame := c.training.Tick(pins)
	c.hookStateChange(
		HookPosTrainingStateChange,
		before.String(), c.training.State().String())

	return frame, !c.training.Completed()
}

func (c *Comp) tickMission(pins dfi.Pins) (dfi.Frame, bool) {
	var pending *dfi.Command
	if e := c.cmdBuf.Peek(); e != nil {
		cmd := e.(dfi.Command)
		pending = &cmd
	}

	before := c.mission.State()
	out := c.mission.Tick(mission.Input{Cmd: pending, Pins: pins})
	if out.Accepted {
		c.cmdBuf.Pop()
	}
	c.hookStateChange(
		HookPosMissionStateChange,
		before.String(), c.mission.State().String())

	progress := out.Accepted || c.mission.Busy() || c.cmdBuf.Size() > 0

	return out.Frame, progress
}

func (c *Comp) commitFrame(frame dfi.Frame) {
	c.lastFrame = frame
	c.phy.Drive(frame)

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosFrame,
			Item:   frame,
		})
	}
}

func (c *Comp) hookStateChange(pos *sim.HookPos, from, to string) {
	if from == to || c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   StateTransition{From: from, To: to},
	})
}

// IssueCommand presents a command at the inlet. It reports false when the
// inlet buffer is full; the issuer should retry on a later cycle.
func (c *Comp) IssueCommand(cmd dfi.Command) bool {
	if !c.cmdBuf.CanPush() {
		return false
	}

	c.cmdBuf.Push(cmd)
	c.TickLater()

	return true
}

// DrainCaptured removes and returns all read beats captured so far, in the
// order the PHY returned them. The consumer is expected to drain between
// read transactions; the controller applies no backpressure of its own.
func (c *Comp) DrainCaptured() []uint64 {
	return c.capture.Drain()
}

// CapturedCount returns the number of read beats waiting to be drained.
func (c *Comp) CapturedCount() int {
	return c.capture.Len()
}

// Mode returns the controller's operating mode.
func (c *Comp) Mode() Mode {
	return c.mode
}

// SetMode switches the active sequencer.
func (c *Comp) SetMode(m Mode) {
	c.mode = m
	c.TickLater()
}

// AssertReset holds the global reset line. While the line is held, every
// tick forces both sequencers to idle and drives the idle frame.
func (c *Comp) AssertReset() {
	c.resetting = true
	c.TickLater()
}

// DeassertReset releases the global reset line.
func (c *Comp) DeassertReset() {
	c.resetting = false
	c.TickLater()
}

// RestartTraining deliberately re-arms the calibration sequencer so it runs
// again.
func (c *Comp) RestartTraining() {
	c.training.Restart()
	c.TickLater()
}

// MissionIdle reports whether the mission sequencer has no command in
// flight.
func (c *Comp) MissionIdle() bool {
	return !c.mission.Busy()
}

// MissionState returns the mission sequencer's phase name.
func (c *Comp) MissionState() string {
	return c.mission.State().String()
}

// TrainingState returns the training sequencer's phase name.
func (c *Comp) TrainingState() string {
	return c.training.State().String()
}

// TrainingCompleted reports whether calibration has run to completion.
func (c *Comp) TrainingCompleted() bool {
	return c.training.Completed()
}

// TrainingEyeCenterFound reports whether read leveling found the eye center
// before its timeout.
func (c *Comp) TrainingEyeCenterFound() bool {
	return c.training.EyeCenterFound()
}

// LastFrame returns the frame committed on the most recent cycle.
func (c *Comp) LastFrame() dfi.Frame {
	return c.lastFrame
}

// Timing returns the timing parameters the controller enforces.
func (c *Comp) Timing() ddr.Timing {
	return c.timing
}
