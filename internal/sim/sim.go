// Package sim evaluates synthesized logic cycle by cycle.
//
// The model is the synchronous-circuit contract: all combinational
// statements settle within a cycle, in emission order, and every register
// commits atomically on the clock edge. Execution is deterministic and
// single-threaded; there is no event queue and no wall clock.
package sim

import (
	"github.com/hdlforge/fsmc/internal/hdl"
)

// Simulator drives one combinational/sequential statement pair, typically
// the Comb and Sync lists of a finalized design.
type Simulator struct {
	comb []hdl.Statement
	sync []hdl.Statement

	// regs holds committed register values; vals holds the settled view of
	// the current cycle (registers, inputs, then combinational results).
	regs   map[*hdl.Signal]uint64
	vals   map[*hdl.Signal]uint64
	inputs map[*hdl.Signal]uint64

	// combDst marks combinationally driven signals; they fall back to
	// their reset value at the start of every settle, so a branch that
	// does not assign them leaves them deasserted.
	combDst map[*hdl.Signal]bool

	cycle   int
	settled bool
}

// New builds a simulator over a combinational and a sequential statement
// list. Registers are discovered as assignment targets in the sequential
// list and initialized to their reset values.
func New(comb, sync []hdl.Statement) *Simulator {
	s := &Simulator{
		comb:    comb,
		sync:    sync,
		regs:    make(map[*hdl.Signal]uint64),
		vals:    make(map[*hdl.Signal]uint64),
		inputs:  make(map[*hdl.Signal]uint64),
		combDst: make(map[*hdl.Signal]bool),
	}
	collectDsts(sync, func(sig *hdl.Signal) {
		s.regs[sig] = sig.Reset & sig.Mask()
	})
	collectDsts(comb, func(sig *hdl.Signal) {
		s.combDst[sig] = true
	})
	return s
}

// Reset returns every register to its reset value and clears the cycle
// counter. Externally driven inputs keep their values.
func (s *Simulator) Reset() {
	for sig := range s.regs {
		s.regs[sig] = sig.Reset & sig.Mask()
	}
	s.cycle = 0
	s.settled = false
}

// Set drives an external input signal. The value persists until changed.
func (s *Simulator) Set(sig *hdl.Signal, v uint64) {
	s.inputs[sig] = v & sig.Mask()
	s.settled = false
}

// Cycle returns the number of clock edges stepped so far.
func (s *Simulator) Cycle() int { return s.cycle }

// Settle evaluates the combinational statements against the current
// register and input values. Idempotent until the next Set or Step.
func (s *Simulator) Settle() {
	if s.settled {
		return
	}
	s.vals = make(map[*hdl.Signal]uint64, len(s.regs)+len(s.inputs)+len(s.combDst))
	for sig, v := range s.regs {
		s.vals[sig] = v
	}
	for sig, v := range s.inputs {
		s.vals[sig] = v
	}
	for sig := range s.combDst {
		s.vals[sig] = sig.Reset & sig.Mask()
	}
	s.exec(s.comb, func(sig *hdl.Signal, v uint64) {
		s.vals[sig] = v
	})
	s.settled = true
}

// Step settles the current cycle and then commits every register: all
// sequential right-hand sides are evaluated against the settled values
// before any register changes, so the edge is atomic.
func (s *Simulator) Step() {
	s.Settle()
	pending := make(map[*hdl.Signal]uint64)
	s.exec(s.sync, func(sig *hdl.Signal, v uint64) {
		pending[sig] = v
	})
	for sig, v := range pending {
		s.regs[sig] = v
	}
	s.cycle++
	s.settled = false
}

// Value returns the settled value of a signal for the current cycle,
// settling first if needed. Signals never driven nor set read as their
// reset value.
func (s *Simulator) Value(sig *hdl.Signal) uint64 {
	s.Settle()
	if v, ok := s.vals[sig]; ok {
		return v
	}
	return sig.Reset & sig.Mask()
}

// Bit reports whether a signal's settled value is nonzero.
func (s *Simulator) Bit(sig *hdl.Signal) bool {
	return s.Value(sig) != 0
}

func (s *Simulator) exec(stmts []hdl.Statement, write func(*hdl.Signal, uint64)) {
	for _, st := range stmts {
		switch n := st.(type) {
		case hdl.Assign:
			write(n.Dst, s.eval(n.Src)&n.Dst.Mask())
		case hdl.If:
			if s.eval(n.Cond) != 0 {
				s.exec(n.Then, write)
			} else {
				s.exec(n.Else, write)
			}
		case hdl.Switch:
			v := s.read(n.Sel)
			if body, ok := n.Cases[v]; ok {
				s.exec(body, write)
			} else {
				s.exec(n.Default, write)
			}
		case hdl.Marker:
			// Markers should have been lowered before simulation;
			// an unlowered one has no effect.
		}
	}
}

func (s *Simulator) read(sig *hdl.Signal) uint64 {
	if v, ok := s.vals[sig]; ok {
		return v
	}
	return sig.Reset & sig.Mask()
}

func (s *Simulator) eval(e hdl.Expr) uint64 {
	switch n := e.(type) {
	case hdl.Ref:
		return s.read(n.Sig)
	case hdl.Const:
		return n.Value
	case hdl.Not:
		if s.eval(n.X) == 0 {
			return 1
		}
		return 0
	case hdl.Binary:
		x, y := s.eval(n.X), s.eval(n.Y)
		switch n.Op {
		case hdl.OpEq:
			return b2u(x == y)
		case hdl.OpNe:
			return b2u(x != y)
		case hdl.OpAnd:
			return b2u(x != 0 && y != 0)
		case hdl.OpOr:
			return b2u(x != 0 || y != 0)
		}
	}
	return 0
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// collectDsts visits every assignment target in a statement tree.
func collectDsts(stmts []hdl.Statement, visit func(*hdl.Signal)) {
	for _, st := range stmts {
		switch n := st.(type) {
		case hdl.Assign:
			visit(n.Dst)
		case hdl.If:
			collectDsts(n.Then, visit)
			collectDsts(n.Else, visit)
		case hdl.Switch:
			for _, body := range n.Cases {
				collectDsts(body, visit)
			}
			collectDsts(n.Default, visit)
		}
	}
}
