package ctrl

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/dfisim/ctrl/internal/training"
	"github.com/sarchlab/dfisim/ddr"
	"github.com/sarchlab/dfisim/dfi"
	"github.com/sarchlab/dfisim/sim"
)

func testTiming() ddr.Timing {
	return ddr.Timing{
		TRCD:        3,
		TRP:         2,
		TRC:         10,
		TRRD:        1,
		TWRTP:       4,
		TRTP:        2,
		TRFC:        5,
		TCL:         2,
		TCWL:        2,
		BurstLength: 4,
		DFIRatio:    2,
	}
}

func testTrainingParams() training.Params {
	return training.Params{
		InitDelayTarget:  8,
		WriteLevelWindow: 16,
		ReadLevelWindow:  32,
		EyeCenter:        10,
		StrobePeriod:     4,
	}
}

type frameCollector struct {
	frames      []dfi.Frame
	transitions []StateTransition
}

func (c *frameCollector) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case dfi.Frame:
		c.frames = append(c.frames, item)
	case StateTransition:
		c.transitions = append(c.transitions, item)
	}
}

var _ = Describe("Comp", func() {
	var (
		mockCtrl   *gomock.Controller
		engine     *sim.SerialEngine
		phy        *MockPhy
		controller *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		phy = NewMockPhy(mockCtrl)
		phy.EXPECT().Drive(gomock.Any()).AnyTimes()

		controller = MakeBuilder().
			WithEngine(engine).
			WithPhy(phy).
			WithTiming(testTiming()).
			WithTrainingParams(testTrainingParams()).
			Build("Ctrl")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	readyPins := func() {
		phy.EXPECT().Sample().
			Return(dfi.Pins{InitComplete: true}).AnyTimes()
	}

	Context("in training mode", func() {
		It("should pulse InitStart on the first tick", func() {
			readyPins()

			progress := controller.Tick()

			Expect(progress).To(BeTrue())
			Expect(controller.LastFrame().InitStart).To(BeTrue())
			Expect(controller.TrainingState()).To(Equal("INIT_DELAY"))
		})

		It("should stop making progress once training completes", func() {
			readyPins()

			for !controller.TrainingCompleted() {
				controller.Tick()
			}

			Expect(controller.TrainingEyeCenterFound()).To(BeTrue())
			Expect(controller.Tick()).To(BeFalse())
		})

		It("should suppress the mission sequencer", func() {
			readyPins()

			controller.IssueCommand(dfi.Command{Kind: dfi.CmdKindWrite})
			for i := 0; i < 20; i++ {
				controller.Tick()
			}

			Expect(controller.MissionState()).To(Equal("IDLE"))
		})
	})

	Context("in mission mode", func() {
		BeforeEach(func() {
			controller.SetMode(ModeMission)
		})

		It("should accept a buffered command", func() {
			readyPins()

			ok := controller.IssueCommand(dfi.Command{
				Kind: dfi.CmdKindWrite,
				Rank: 0x01,
			})
			Expect(ok).To(BeTrue())

			controller.Tick()

			Expect(controller.MissionState()).To(Equal("ACTIVATE"))
			Expect(controller.LastFrame().ActN).To(BeFalse())
		})

		It("should reject commands when the inlet buffer is full", func() {
			cmd := dfi.Command{Kind: dfi.CmdKindWrite, Rank: 0x01}

			for i := 0; i < 4; i++ {
				Expect(controller.IssueCommand(cmd)).To(BeTrue())
			}

			Expect(controller.IssueCommand(cmd)).To(BeFalse())
		})

		It("should not accept commands before init completes", func() {
			phy.EXPECT().Sample().Return(dfi.Pins{}).AnyTimes()

			controller.IssueCommand(dfi.Command{
				Kind: dfi.CmdKindWrite,
				Rank: 0x01,
			})

			for i := 0; i < 10; i++ {
				controller.Tick()
			}

			Expect(controller.MissionState()).To(Equal("IDLE"))
		})

		It("should drive the idle frame when idle", func() {
			readyPins()

			controller.Tick()

			Expect(controller.LastFrame()).To(Equal(dfi.IdleFrame()))
			Expect(controller.MissionIdle()).To(BeTrue())
		})
	})

	Context("under reset", func() {
		It("should drive the idle frame and discard pending work", func() {
			readyPins()

			controller.SetMode(ModeMission)
			controller.IssueCommand(dfi.Command{
				Kind: dfi.CmdKindWrite,
				Rank: 0x01,
			})
			controller.Tick()
			Expect(controller.MissionIdle()).To(BeFalse())

			controller.AssertReset()

			progress := controller.Tick()
			Expect(progress).To(BeFalse())
			Expect(controller.LastFrame()).To(Equal(dfi.IdleFrame()))
			Expect(controller.MissionIdle()).To(BeTrue())

			controller.DeassertReset()
			controller.Tick()
			Expect(controller.MissionIdle()).To(BeTrue())
		})

		It("should re-arm training", func() {
			readyPins()

			for !controller.TrainingCompleted() {
				controller.Tick()
			}

			controller.AssertReset()
			controller.Tick()
			controller.DeassertReset()

			Expect(controller.TrainingCompleted()).To(BeFalse())

			controller.Tick()
			Expect(controller.LastFrame().InitStart).To(BeTrue())
		})
	})

	Context("hooks", func() {
		It("should report frames and state transitions", func() {
			readyPins()

			collector := &frameCollector{}
			controller.AcceptHook(collector)

			for !controller.TrainingCompleted() {
				controller.Tick()
			}

			Expect(collector.frames).NotTo(BeEmpty())
			Expect(collector.transitions[0]).To(Equal(StateTransition{
				From: "IDLE", To: "INIT_DELAY"}))

			last := collector.transitions[len(collector.transitions)-1]
			Expect(last.To).To(Equal("IDLE"))
		})
	})

	It("should run training again after a deliberate restart", func() {
		readyPins()

		for !controller.TrainingCompleted() {
			controller.Tick()
		}

		controller.RestartTraining()
		Expect(controller.TrainingCompleted()).To(BeFalse())

		controller.Tick()
		Expect(controller.LastFrame().InitStart).To(BeTrue())
	})

	Describe("Builder", func() {
		It("should panic without an engine", func() {
			Expect(func() {
				MakeBuilder().WithPhy(phy).Build("Ctrl")
			}).To(Panic())
		})

		It("should panic without a PHY", func() {
			Expect(func() {
				MakeBuilder().WithEngine(engine).Build("Ctrl")
			}).To(Panic())
		})

		It("should panic on invalid timing", func() {
			Expect(func() {
				MakeBuilder().
					WithEngine(engine).
					WithPhy(phy).
					WithBurstLength(7).
					Build("Ctrl")
			}).To(Panic())
		})
	})
})
