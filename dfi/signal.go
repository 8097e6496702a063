package dfi

// AllRanksDeselected is the chip-select bus value when no rank is addressed.
// Chip selects are active low, one bit per rank.
const AllRanksDeselected uint8 = 0xFF

// RankCsN converts a one-hot rank selector into the active-low chip-select
// bus value that addresses that rank.
func RankCsN(rank uint8) uint8 {
	return ^rank
}

// A Frame is the full set of output signals the controller drives toward the
// PHY in one cycle. Command strobes follow DRAM conventions and are active
// low: a field value of true means the strobe is deasserted.
type Frame struct {
	// Command/address channel.
	Address   uint32
	Bank      uint8
	BankGroup uint8
	CsN       uint8
	ActN      bool
	RasN      bool
	CasN      bool
	WeN       bool
	Cke       bool
	Odt       bool

	// ResetN is held deasserted; the DRAM is assumed powered up before the
	// model starts.
	ResetN bool

	// Write-data channel.
	WrData     uint64
	WrDataMask uint8
	WrDataCsN  uint8
	WrDataEn   bool

	// Read-data request channel.
	RdDataEn  bool
	RdDataCsN uint8

	// InitStart is a one-shot pulse that asks the PHY to run its
	// initialization sequence.
	InitStart bool
}

// IdleFrame returns the frame driven when no sequencer owns the bus: all
// active-low strobes deasserted, all buses zeroed, reset held deasserted.
func IdleFrame() Frame {
	return Frame{
		CsN:       AllRanksDeselected,
		ActN:      true,
		RasN:      true,
		CasN:      true,
		WeN:       true,
		ResetN:    true,
		WrDataCsN: AllRanksDeselected,
		RdDataCsN: AllRanksDeselected,
	}
}

// Pins is the set of input signals the controller samples from the PHY once
// per cycle.
type Pins struct {
	RdData       uint64
	RdDataValid  bool
	InitComplete bool
}

// Phy is the boundary the controller talks to. The controller calls Sample
// exactly once at the beginning of a cycle and Drive exactly once at the end
// of the same cycle; implementations may advance their own state on Drive.
type Phy interface {
	Sample() Pins
	Drive(frame Frame)
}
