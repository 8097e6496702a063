package main

import (
	"fmt"
	"log"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/dfisim/ctrl"
	"github.com/sarchlab/dfisim/dfi"
	"github.com/sarchlab/dfisim/monitoring"
	"github.com/sarchlab/dfisim/phy"
	"github.com/sarchlab/dfisim/sim"
	"github.com/sarchlab/dfisim/simulation"
	"github.com/sarchlab/dfisim/trace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train the PHY and play a write/read workload.",
	Run: func(cmd *cobra.Command, _ []string) {
		runSimulation(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("output", "",
		"Name of the trace database, without the .sqlite3 suffix")
	runCmd.Flags().Bool("no-monitor", false,
		"Disable the monitoring web server")
	runCmd.Flags().Int("monitor-port", 0,
		"Port for the monitoring web server, 0 picks a random port")
	runCmd.Flags().Bool("open", false,
		"Open the monitoring page in a browser")
	runCmd.Flags().Bool("trace-active-only", false,
		"Only record frames that carry activity")

	runCmd.Flags().Int("transactions", 16,
		"Number of write/read transaction pairs to play")
	runCmd.Flags().Int("command-timeout", 0,
		"Cycles a phase may stall before force recovery, 0 disables")
	runCmd.Flags().Float64("freq-mhz", 800, "Controller clock in MHz")

	runCmd.Flags().Int("trcd", 11, "Activate-to-column delay in cycles")
	runCmd.Flags().Int("trp", 11, "Precharge period in cycles")
	runCmd.Flags().Int("tcl", 11, "CAS read latency in cycles")
	runCmd.Flags().Int("tcwl", 9, "CAS write latency in cycles")
	runCmd.Flags().Int("twrtp", 19, "Write-to-precharge delay in cycles")
	runCmd.Flags().Int("trtp", 6, "Read-to-precharge delay in cycles")
	runCmd.Flags().Int("burst-length", 8, "DRAM burst length")
	runCmd.Flags().Int("dfi-ratio", 2, "DRAM-to-DFI clock ratio")
}

func runSimulation(cmd *cobra.Command) {
	s := buildSimulation(cmd)
	defer s.Terminate()

	engine := s.GetEngine()
	freq := sim.Freq(mustFloat64(cmd, "freq-mhz")) * sim.MHz

	ctrlBuilder := ctrl.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithTRCD(mustInt(cmd, "trcd")).
		WithTRP(mustInt(cmd, "trp")).
		WithTCL(mustInt(cmd, "tcl")).
		WithTCWL(mustInt(cmd, "tcwl")).
		WithTWRTP(mustInt(cmd, "twrtp")).
		WithTRTP(mustInt(cmd, "trtp")).
		WithBurstLength(mustInt(cmd, "burst-length")).
		WithDFIRatio(mustInt(cmd, "dfi-ratio")).
		WithCommandTimeout(mustInt(cmd, "command-timeout"))

	phyModel := phy.NewModel().
		WithReadLatency(int64(mustInt(cmd, "tcl"))).
		WithBurstBeats(
			mustInt(cmd, "burst-length") / mustInt(cmd, "dfi-ratio"))

	tracer := trace.NewSignalTracer(engine, freq, s.GetDataRecorder())
	if mustBool(cmd, "trace-active-only") {
		tracer.OnlyActiveFrames()
	}

	controller := ctrlBuilder.
		WithPhy(phyModel).
		WithAdditionalHook(tracer).
		Build("Ctrl")
	s.RegisterComponent(controller)

	if mustBool(cmd, "open") && s.GetMonitor() != nil {
		if err := browser.OpenURL(s.GetMonitor().URL()); err != nil {
			log.Printf("failed to open browser: %v", err)
		}
	}

	runTraining(engine, controller)
	runWorkload(cmd, s, engine, controller)
}

func buildSimulation(cmd *cobra.Command) *simulation.Simulation {
	builder := simulation.MakeBuilder()

	if output := mustString(cmd, "output"); output != "" {
		builder = builder.WithOutputFileName(output)
	}

	if mustBool(cmd, "no-monitor") {
		builder = builder.WithoutMonitoring()
	} else if port := mustInt(cmd, "monitor-port"); port > 0 {
		builder = builder.WithMonitorPort(port)
	}

	return builder.Build()
}

// runTraining runs the engine until the calibration sequence completes and
// reports the leveling outcome.
func runTraining(engine sim.Engine, controller *ctrl.Comp) {
	err := engine.Run()
	if err != nil {
		log.Fatalf("training run failed: %v", err)
	}

	if !controller.TrainingCompleted() {
		log.Fatal("training did not complete")
	}

	if controller.TrainingEyeCenterFound() {
		fmt.Println("Training complete, read eye center found.")
	} else {
		fmt.Println("Training complete, read leveling timed out.")
	}
}

// runWorkload writes a data word to each row, reads every row back, and
// checks the returned bursts.
func runWorkload(
	cmd *cobra.Command,
	s *simulation.Simulation,
	engine sim.Engine,
	controller *ctrl.Comp,
) {
	n := mustInt(cmd, "transactions")

	var bar *monitoring.ProgressBar
	if s.GetMonitor() != nil {
		bar = s.GetMonitor().CreateProgressBar("transactions", uint64(2*n))
	}

	controller.SetMode(ctrl.ModeMission)

	issueAll(engine, controller, bar, writeCommands(n))

	beats := controller.Timing().BeatsPerBurst()
	mismatches := 0
	for i, readCmd := range readCommands(n) {
		issueAll(engine, controller, bar, []dfi.Command{readCmd})

		got := controller.DrainCaptured()
		want := workloadData(i)
		for _, word := range got {
			if word != want {
				mismatches++
			}
		}

		if len(got) != beats {
			log.Printf("transaction %d returned %d beats, expected %d",
				i, len(got), beats)
		}
	}

	if bar != nil {
		s.GetMonitor().CompleteProgressBar(bar)
	}

	fmt.Printf("Played %d write/read pairs, %d beat mismatches.\n",
		n, mismatches)
}

// issueAll feeds commands through the controller's bounded inlet, running
// the engine whenever the inlet fills up.
func issueAll(
	engine sim.Engine,
	controller *ctrl.Comp,
	bar *monitoring.ProgressBar,
	commands []dfi.Command,
) {
	for _, command := range commands {
		for !controller.IssueCommand(command) {
			mustRun(engine)
		}

		if bar != nil {
			bar.IncrementInProgress(1)
		}
	}

	mustRun(engine)

	if bar != nil {
		bar.MoveInProgressToFinished(uint64(len(commands)))
	}
}

func mustRun(engine sim.Engine) {
	if err := engine.Run(); err != nil {
		log.Fatalf("simulation run failed: %v", err)
	}
}

func writeCommands(n int) []dfi.Command {
	commands := make([]dfi.Command, 0, n)
	for i := 0; i < n; i++ {
		commands = append(commands, dfi.Command{
			Kind:      dfi.CmdKindWrite,
			Rank:      0x01,
			Bank:      uint8(i % 4),
			BankGroup: uint8(i % 2),
			Address:   workloadRow(i),
			Data:      workloadData(i),
		})
	}

	return commands
}

func readCommands(n int) []dfi.Command {
	commands := make([]dfi.Command, 0, n)
	for i := 0; i < n; i++ {
		commands = append(commands, dfi.Command{
			Kind:      dfi.CmdKindRead,
			Rank:      0x01,
			Bank:      uint8(i % 4),
			BankGroup: uint8(i % 2),
			Address:   workloadRow(i),
		})
	}

	return commands
}

func workloadRow(i int) uint32 {
	return uint32(0x100 + i)
}

func workloadData(i int) uint64 {
	return 0xDA7A000000000000 | uint64(i)
}

func mustInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	dieOnErr(err)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	dieOnErr(err)
	return v
}

func mustString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	dieOnErr(err)
	return v
}

func mustFloat64(cmd *cobra.Command, name string) float64 {
	v, err := cmd.Flags().GetFloat64(name)
	dieOnErr(err)
	return v
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
