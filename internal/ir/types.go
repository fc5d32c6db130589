package ir

// MachineSpec represents a compiled state machine description.
type MachineSpec struct {
	Name string `json:"name"`

	// Reset names the reset state. Empty means "first declared state".
	Reset string `json:"reset,omitempty"`

	// Inputs are externally driven signals the machine may branch on.
	// Outputs are signals the machine drives from its states.
	Inputs  []SignalSpec `json:"inputs,omitempty"`
	Outputs []SignalSpec `json:"outputs,omitempty"`

	// States in declaration order; order fixes the state encoding.
	States []StateSpec `json:"states"`

	// Delays are delayed-entry requests expanded during elaboration.
	Delays []DelaySpec `json:"delays,omitempty"`

	// Observers requests edge/occupancy observer signals.
	Observers []ObserverSpec `json:"observers,omitempty"`
}

// SignalSpec declares a named signal with a bit width.
type SignalSpec struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// StateSpec represents one state and its action statements.
type StateSpec struct {
	Name       string     `json:"name"`
	Statements []StmtSpec `json:"statements,omitempty"`
}

// StmtSpec is one declarative statement. Exactly one of the fields is set.
type StmtSpec struct {
	// Set drives an output signal with a constant value.
	Set *SetSpec `json:"set,omitempty"`

	// If branches on an input signal.
	If *IfSpec `json:"if,omitempty"`

	// Goto requests a transition to the named state.
	Goto string `json:"goto,omitempty"`
}

// SetSpec assigns a constant to an output signal.
type SetSpec struct {
	Signal string `json:"signal"`
	Value  uint64 `json:"value"`
}

// IfSpec branches on an input signal being nonzero.
type IfSpec struct {
	Signal string     `json:"signal"`
	Then   []StmtSpec `json:"then"`
	Else   []StmtSpec `json:"else,omitempty"`
}

// DelaySpec requests a delayed entry: entering Name reaches Target after
// Delay cycles. Delay zero makes Name an alias for Target.
type DelaySpec struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Delay  int    `json:"delay"`
}

// ObserverKind names one observer family.
type ObserverKind string

const (
	ObserverOngoing        ObserverKind = "ongoing"
	ObserverBeforeEntering ObserverKind = "before_entering"
	ObserverBeforeLeaving  ObserverKind = "before_leaving"
	ObserverAfterEntering  ObserverKind = "after_entering"
	ObserverAfterLeaving   ObserverKind = "after_leaving"
)

// ValidObserverKinds defines the allowed observer kinds.
var ValidObserverKinds = map[ObserverKind]bool{
	ObserverOngoing:        true,
	ObserverBeforeEntering: true,
	ObserverBeforeLeaving:  true,
	ObserverAfterEntering:  true,
	ObserverAfterLeaving:   true,
}

// ObserverSpec requests one observer signal on one state.
type ObserverSpec struct {
	Kind  ObserverKind `json:"kind"`
	State string       `json:"state"`
}

// Version constants for the IR schema and toolkit.
const (
	// IRVersion is the machine-description schema version.
	IRVersion = "1"

	// ToolVersion is the fsmc toolkit version.
	ToolVersion = "0.1.0"
)
