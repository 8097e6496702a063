package dfi

// CommandKind is the category of a command request.
type CommandKind int

// A list of all command kinds the controller understands on its inlet.
const (
	CmdKindActivate CommandKind = iota
	CmdKindRead
	CmdKindWrite
	CmdKindPrecharge
)

func (k CommandKind) String() string {
	switch k {
	case CmdKindActivate:
		return "ACTIVATE"
	case CmdKindRead:
		return "READ"
	case CmdKindWrite:
		return "WRITE"
	case CmdKindPrecharge:
		return "PRECHARGE"
	default:
		return "UNKNOWN"
	}
}

// A Command is one request from the command-issuing collaborator. Once the
// mission sequencer accepts a command it is in flight: the sequencer works on
// its own copy and the issuer's value no longer matters.
type Command struct {
	Kind      CommandKind
	Rank      uint8 // one-hot rank selector
	Bank      uint8
	BankGroup uint8
	Address   uint32

	// Data and Mask are only meaningful for write commands.
	Data uint64
	Mask uint8
}

// NeedsColumnAccess reports whether the command carries a column phase the
// sequencer can resolve after activation. Only such commands can be accepted;
// the activate and precharge phases are generated by the sequencer itself.
func (c Command) NeedsColumnAccess() bool {
	return c.Kind == CmdKindRead || c.Kind == CmdKindWrite
}
