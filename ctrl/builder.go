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

// A Builder can build DDR controller components.
type Builder struct {
	engine         sim.Engine
	freq           sim.Freq
	phy            dfi.Phy
	timing         ddr.Timing
	trainingParams training.Params
	mode           Mode
	cmdBufCap      int
	captureCap     int
	commandTimeout int
	hooks          []sim.Hook
}

// MakeBuilder creates a builder with default parameters. The default timing
// set is a common DDR4-1600 speed grade at a 1:2 DFI frequency ratio.
func MakeBuilder() Builder {
	return Builder{
		freq: 800 * sim.MHz,
		timing: ddr.Timing{
			TRCD:        11,
			TRP:         11,
			TRC:         39,
			TRRD:        5,
			TWRTP:       19,
			TRTP:        6,
			TRFC:        208,
			TCL:         11,
			TCWL:        9,
			BurstLength: 8,
			DFIRatio:    2,
		},
		trainingParams: training.DefaultParams(),
		mode:           ModeTraining,
		cmdBufCap:      4,
		captureCap:     64,
	}
}

// WithEngine sets the event-driven simulation engine that the controller
// uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the controller clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithPhy sets the PHY the controller drives.
func (b Builder) WithPhy(phy dfi.Phy) Builder {
	b.phy = phy
	return b
}

// WithTiming replaces the whole timing parameter set.
func (b Builder) WithTiming(timing ddr.Timing) Builder {
	b.timing = timing
	return b
}

// WithTRCD sets the activate-to-column-command delay, in cycles.
func (b Builder) WithTRCD(cycles int) Builder {
	b.timing.TRCD = cycles
	return b
}

// WithTRP sets the precharge period, in cycles.
func (b Builder) WithTRP(cycles int) Builder {
	b.timing.TRP = cycles
	return b
}

// WithTWRTP sets the write-to-precharge delay, in cycles.
func (b Builder) WithTWRTP(cycles int) Builder {
	b.timing.TWRTP = cycles
	return b
}

// WithTRTP sets the read-to-precharge delay, in cycles.
func (b Builder) WithTRTP(cycles int) Builder {
	b.timing.TRTP = cycles
	return b
}

// WithTCL sets the CAS read latency, in cycles.
func (b Builder) WithTCL(cycles int) Builder {
	b.timing.TCL = cycles
	return b
}

// WithTCWL sets the CAS write latency, in cycles.
func (b Builder) WithTCWL(cycles int) Builder {
	b.timing.TCWL = cycles
	return b
}

// WithBurstLength sets the DRAM burst length.
func (b Builder) WithBurstLength(length int) Builder {
	b.timing.BurstLength = length
	return b
}

// WithDFIRatio sets the DRAM-to-DFI clock ratio.
func (b Builder) WithDFIRatio(ratio int) Builder {
	b.timing.DFIRatio = ratio
	return b
}

// WithTrainingParams sets the calibration windows.
func (b Builder) WithTrainingParams(params training.Params) Builder {
	b.trainingParams = params
	return b
}

// WithMode sets the mode the controller starts in.
func (b Builder) WithMode(mode Mode) Builder {
	b.mode = mode
	return b
}

// WithCommandBufferCapacity sets the depth of the command inlet buffer.
func (b Builder) WithCommandBufferCapacity(capacity int) Builder {
	b.cmdBufCap = capacity
	return b
}

// WithCaptureCapacity sets how many read beats the capture queue holds
// before read phases stall.
func (b Builder) WithCaptureCapacity(capacity int) Builder {
	b.captureCap = capacity
	return b
}

// WithCommandTimeout enables the mission watchdog: a phase that makes no
// progress for the given number of cycles force-recovers to idle. Zero
// disables the watchdog.
func (b Builder) WithCommandTimeout(cycles int) Builder {
	b.commandTimeout = cycles
	return b
}

// WithAdditionalHook adds a hook to attach to the controller at build time.
func (b Builder) WithAdditionalHook(hook sim.Hook) Builder {
	b.hooks = append(b.hooks, hook)
	return b
}

// Build creates a controller component with the given name.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid()

	c := &Comp{
		timing: b.timing,
		phy:    b.phy,
		mode:   b.mode,
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.cmdBuf = sim.NewBuffer(name+".CmdBuf", b.cmdBufCap)
	c.capture = capture.NewQueue(b.captureCap)
	c.mission = mission.NewSequencer(b.timing, c.capture, b.commandTimeout)
	c.training = training.NewSequencer(b.trainingParams)
	c.lastFrame = dfi.IdleFrame()

	for _, hook := range b.hooks {
		c.AcceptHook(hook)
	}

	c.TickLater()

	return c
}

func (b Builder) mustBeValid() {
	if b.engine == nil {
		log.Panic("controller requires an engine")
	}

	if b.phy == nil {
		log.Panic("controller requires a PHY")
	}

	if err := b.timing.Validate(); err != nil {
		log.Panicf("invalid timing: %v", err)
	}

	if err := b.trainingParams.Validate(); err != nil {
		log.Panicf("invalid training parameters: %v", err)
	}

	if b.cmdBufCap <= 0 {
		log.Panic("command buffer capacity must be positive")
	}

	if b.captureCap <= 0 {
		log.Panic("capture capacity must be positive")
	}

	if b.commandTimeout < 0 {
		log.Panic("command timeout must not be negative")
	}
}
