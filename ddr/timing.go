// Package ddr defines the JEDEC-derived timing parameters shared by the
// controller and its collaborators.
package ddr

import "fmt"

// Timing is the set of JEDEC-derived minimum cycle counts the controller
// enforces between command pairs, plus the burst geometry constants. A Timing
// value is immutable once handed to a controller.
type Timing struct {
	// TRCD is the activate to column command delay.
	TRCD int

	// TRP is the precharge to activate delay.
	TRP int

	// TRC is the activate to activate delay on the same bank.
	TRC int

	// TRRD is the activate to activate delay across banks.
	TRRD int

	// TWRTP is the write to precharge delay.
	TWRTP int

	// TRTP is the read to precharge delay.
	TRTP int

	// TRFC is the refresh to activate delay.
	TRFC int

	// TCL is the read column access strobe latency.
	TCL int

	// TCWL is the write column access strobe latency.
	TCWL int

	// BurstLength is the number of data transfers one burst performs on the
	// DRAM bus.
	BurstLength int

	// DFIRatio is the DFI-to-DRAM clock ratio.
	DFIRatio int
}

// BeatsPerBurst returns the number of data-channel cycles one burst occupies
// on the controller side of the interface.
func (t Timing) BeatsPerBurst() int {
	return t.BurstLength / t.DFIRatio
}

// Validate checks the Timing invariants: every parameter must be positive
// and the burst length must divide evenly into DFI beats.
func (t Timing) Validate() error {
	params := []struct {
		name  string
		value int
	}{
		{"tRCD", t.TRCD},
		{"tRP", t.TRP},
		{"tRC", t.TRC},
		{"tRRD", t.TRRD},
		{"tWRTP", t.TWRTP},
		{"tRTP", t.TRTP},
		{"tRFC", t.TRFC},
		{"tCL", t.TCL},
		{"tCWL", t.TCWL},
		{"burst length", t.BurstLength},
		{"DFI ratio", t.DFIRatio},
	}

	for _, p := range params {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if t.BurstLength%t.DFIRatio != 0 {
		return fmt.Errorf(
			"burst length %d is not divisible by DFI ratio %d",
			t.BurstLength, t.DFIRatio)
	}

	if t.BeatsPerBurst() < 1 {
		return fmt.Errorf(
			"burst length %d and DFI ratio %d yield no beats",
			t.BurstLength, t.DFIRatio)
	}

	return nil
}
