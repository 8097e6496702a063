// Package trace records the controller's cycle-by-cycle signal activity and
// state transitions into a data recorder, so that a run can be inspected
// after the fact like a waveform dump.
package trace

import (
	"fmt"

	"github.com/sarchlab/dfisim/ctrl"
	"github.com/sarchlab/dfisim/datarecording"
	"github.com/sarchlab/dfisim/dfi"
	"github.com/sarchlab/dfisim/sim"
)

// FrameEntry is one recorded DFI frame. Cycle counts controller ticks.
// WrData is stored as a hex string so the full 64-bit word survives the
// database's signed integers.
type FrameEntry struct {
	Cycle     int64
	ActN      bool
	RasN      bool
	CasN      bool
	WeN       bool
	CsN       int64
	Cke       bool
	Odt       bool
	Address   int64
	Bank      int64
	BankGroup int64
	WrDataEn  bool
	WrData    string
	RdDataEn  bool
	InitStart bool
}

// TransitionEntry is one recorded sequencer state change.
type TransitionEntry struct {
	Cycle   int64
	Machine string
	From    string
	To      string
}

const (
	frameTable      = "frames"
	transitionTable = "transitions"
)

// A SignalTracer is a hook that records controller activity. Attach it to a
// controller with AcceptHook or the builder's WithAdditionalHook.
type SignalTracer struct {
	timeTeller sim.TimeTeller
	freq       sim.Freq
	recorder   datarecording.DataRecorder

	onlyActive bool
}

// NewSignalTracer creates a tracer that timestamps entries with the cycle
// count derived from timeTeller and freq.
func NewSignalTracer(
	timeTeller sim.TimeTeller,
	freq sim.Freq,
	recorder datarecording.DataRecorder,
) *SignalTracer {
	t := &SignalTracer{
		timeTeller: timeTeller,
		freq:       freq,
		recorder:   recorder,
	}

	recorder.CreateTable(frameTable, FrameEntry{})
	recorder.CreateTable(transitionTable, TransitionEntry{})

	return t
}

// OnlyActiveFrames makes the tracer skip idle frames, which keeps the frame
// table proportional to activity rather than to simulated time.
func (t *SignalTracer) OnlyActiveFrames() *SignalTracer {
	t.onlyActive = true
	return t
}

// Func records the hooked item.
func (t *SignalTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case ctrl.HookPosFrame:
		t.recordFrame(ctx.Item.(dfi.Frame))
	case ctrl.HookPosMissionStateChange:
		t.recordTransition("mission", ctx.Item.(ctrl.StateTransition))
	case ctrl.HookPosTrainingStateChange:
		t.recordTransition("training", ctx.Item.(ctrl.StateTransition))
	}
}

func (t *SignalTracer) recordFrame(frame dfi.Frame) {
	if t.onlyActive && isIdle(frame) {
		return
	}

	t.recorder.InsertData(frameTable, FrameEntry{
		Cycle:     t.currentCycle(),
		ActN:      frame.ActN,
		RasN:      frame.RasN,
		CasN:      frame.CasN,
		WeN:       frame.WeN,
		CsN:       int64(frame.CsN),
		Cke:       frame.Cke,
		Odt:       frame.Odt,
		Address:   int64(frame.Address),
		Bank:      int64(frame.Bank),
		BankGroup: int64(frame.BankGroup),
		WrDataEn:  frame.WrDataEn,
		WrData:    fmt.Sprintf("%016x", frame.WrData),
		RdDataEn:  frame.RdDataEn,
		InitStart: frame.InitStart,
	})
}

func (t *SignalTracer) recordTransition(
	machine string,
	transition ctrl.StateTransition,
) {
	t.recorder.InsertData(transitionTable, TransitionEntry{
		Cycle:   t.currentCycle(),
		Machine: machine,
		From:    transition.From,
		To:      transition.To,
	})
}

func (t *SignalTracer) currentCycle() int64 {
	return int64(t.freq.Cycle(t.timeTeller.CurrentTime()))
}

func isIdle(frame dfi.Frame) bool {
	return frame.CsN == dfi.AllRanksDeselected &&
		!frame.WrDataEn && !frame.RdDataEn && !frame.InitStart
}
