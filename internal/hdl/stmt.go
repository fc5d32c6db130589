package hdl

// Statement is one node of the side-effect tree attached to a state or to a
// logic domain. Like Expr, the variant set is closed; Marker is the single
// extension point for passes that need to smuggle foreign leaves through the
// tree until a lowering pass replaces them.
type Statement interface {
	stmt()
}

// Assign drives Dst with the value of Src. In the combinational domain the
// assignment takes effect within the cycle; in the sequential domain it takes
// effect on the next clock edge.
type Assign struct {
	Dst *Signal
	Src Expr
}

// If executes Then when Cond is nonzero, otherwise Else. Else may be nil.
type If struct {
	Cond Expr
	Then []Statement
	Else []Statement
}

// Switch selects one body by the current value of Sel. If no case matches,
// Default executes. Keys are interpreted against Sel's width.
type Switch struct {
	Sel     *Signal
	Cases   map[uint64][]Statement
	Default []Statement
}

// Marker is an opaque leaf. The statement tree itself attaches no meaning to
// Tag; passes that planted a Marker are expected to rewrite it into a real
// statement before the tree reaches an evaluator or emitter.
type Marker struct {
	Tag any
}

func (Assign) stmt() {}
func (If) stmt()     {}
func (Switch) stmt() {}
func (Marker) stmt() {}
