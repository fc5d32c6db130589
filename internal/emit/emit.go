// Package emit renders a finalized design as Verilog-flavoured module text.
//
// The output is deterministic: statement order follows the design's Comb and
// Sync lists, case keys are sorted, and state codes render through named
// localparams. The text is meant for inspection, diffing, and golden tests;
// it is not a toolchain contract.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hdlforge/fsmc/internal/fsm"
	"github.com/hdlforge/fsmc/internal/hdl"
)

// Module renders a design as a module named name. inputs are externally
// driven ports; outputs are design-driven signals exposed as ports. Every
// other driven signal becomes an internal reg.
func Module(name string, inputs, outputs []*hdl.Signal, d *fsm.Design) string {
	e := &emitter{
		design: d,
		params: make(map[uint64]string),
	}
	e.nameStates()

	isInput := make(map[*hdl.Signal]bool, len(inputs))
	for _, s := range inputs {
		isInput[s] = true
	}
	isOutput := make(map[*hdl.Signal]bool, len(outputs))
	for _, s := range outputs {
		isOutput[s] = true
	}

	// Internal regs: every driven signal that is not a port, in
	// first-drive order (comb first, then sync).
	var internal []*hdl.Signal
	seen := make(map[*hdl.Signal]bool)
	collect := func(sig *hdl.Signal) {
		if seen[sig] || isInput[sig] || isOutput[sig] {
			return
		}
		seen[sig] = true
		internal = append(internal, sig)
	}
	walkDsts(d.Comb, collect)
	walkDsts(d.Sync, collect)

	// Registers reset in the sequential block, in drive order.
	var regs []*hdl.Signal
	seenReg := make(map[*hdl.Signal]bool)
	walkDsts(d.Sync, func(sig *hdl.Signal) {
		if !seenReg[sig] {
			seenReg[sig] = true
			regs = append(regs, sig)
		}
	})

	var b strings.Builder
	fmt.Fprintf(&b, "module %s (\n", name)
	b.WriteString("    input wire clk,\n")
	b.WriteString("    input wire rst")
	for _, s := range inputs {
		fmt.Fprintf(&b, ",\n    input wire %s%s", rangeOf(s), s.Name)
	}
	for _, s := range outputs {
		fmt.Fprintf(&b, ",\n    output reg %s%s", rangeOf(s), s.Name)
	}
	b.WriteString("\n);\n\n")

	for _, state := range d.States() {
		code, _ := d.Code(state)
		fmt.Fprintf(&b, "  localparam %s%s = %d;\n", rangeOf(d.StateSig), e.params[uint64(code)], code)
	}
	b.WriteString("\n")

	for _, s := range internal {
		fmt.Fprintf(&b, "  reg %s%s;\n", rangeOf(s), s.Name)
	}
	b.WriteString("\n")

	b.WriteString("  always @* begin\n")
	e.stmts(&b, d.Comb, "    ", " = ")
	b.WriteString("  end\n\n")

	b.WriteString("  always @(posedge clk) begin\n")
	b.WriteString("    if (rst) begin\n")
	for _, r := range regs {
		fmt.Fprintf(&b, "      %s <= %s;\n", r.Name, e.constFor(r, r.Reset))
	}
	b.WriteString("    end else begin\n")
	e.stmts(&b, d.Sync, "      ", " <= ")
	b.WriteString("    end\n")
	b.WriteString("  end\n\n")

	b.WriteString("endmodule\n")
	return b.String()
}

type emitter struct {
	design *fsm.Design
	params map[uint64]string // state code -> localparam name
}

// nameStates assigns localparam names from state display names, upper-cased
// and mangled; clashes get the code appended.
func (e *emitter) nameStates() {
	used := make(map[string]bool)
	for _, state := range e.design.States() {
		code, _ := e.design.Code(state)
		name := mangle(strings.ToUpper(fsm.StateName(state)))
		if used[name] {
			name = fmt.Sprintf("%s_%d", name, code)
		}
		used[name] = true
		e.params[uint64(code)] = name
	}
}

// constFor renders a constant, substituting the state localparam when the
// constant drives or compares against the state registers.
func (e *emitter) constFor(sig *hdl.Signal, v uint64) string {
	if sig == e.design.StateSig || sig == e.design.NextSig {
		if name, ok := e.params[v]; ok {
			return name
		}
	}
	return fmt.Sprintf("%d'd%d", sig.Width, v)
}

func (e *emitter) stmts(b *strings.Builder, stmts []hdl.Statement, indent, assignOp string) {
	for _, st := range stmts {
		switch n := st.(type) {
		case hdl.Assign:
			fmt.Fprintf(b, "%s%s%s%s;\n", indent, n.Dst.Name, assignOp, e.exprNear(n.Src, n.Dst))
		case hdl.If:
			fmt.Fprintf(b, "%sif (%s) begin\n", indent, e.expr(n.Cond))
			e.stmts(b, n.Then, indent+"  ", assignOp)
			if len(n.Else) > 0 {
				fmt.Fprintf(b, "%send else begin\n", indent)
				e.stmts(b, n.Else, indent+"  ", assignOp)
			}
			fmt.Fprintf(b, "%send\n", indent)
		case hdl.Switch:
			fmt.Fprintf(b, "%scase (%s)\n", indent, n.Sel.Name)
			keys := make([]uint64, 0, len(n.Cases))
			for k := range n.Cases {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				fmt.Fprintf(b, "%s  %s: begin\n", indent, e.constFor(n.Sel, k))
				e.stmts(b, n.Cases[k], indent+"    ", assignOp)
				fmt.Fprintf(b, "%s  end\n", indent)
			}
			fmt.Fprintf(b, "%s  default: begin\n", indent)
			e.stmts(b, n.Default, indent+"    ", assignOp)
			fmt.Fprintf(b, "%s  end\n", indent)
			fmt.Fprintf(b, "%sendcase\n", indent)
		case hdl.Marker:
			fmt.Fprintf(b, "%s// unlowered marker\n", indent)
		}
	}
}

// exprNear renders an expression in the context of the signal it drives, so
// bare state constants pick up localparam names.
func (e *emitter) exprNear(x hdl.Expr, dst *hdl.Signal) string {
	if c, ok := x.(hdl.Const); ok {
		return e.constFor(dst, c.Value)
	}
	return e.expr(x)
}

func (e *emitter) expr(x hdl.Expr) string {
	switch n := x.(type) {
	case hdl.Ref:
		return n.Sig.Name
	case hdl.Const:
		return fmt.Sprintf("%d", n.Value)
	case hdl.Not:
		return fmt.Sprintf("(!%s)", e.expr(n.X))
	case hdl.Binary:
		return fmt.Sprintf("(%s %s %s)", e.side(n.X, n.Y), n.Op, e.side(n.Y, n.X))
	}
	return "0"
}

// side renders one operand of a binary expression; a constant compared with
// a state register renders as its localparam.
func (e *emitter) side(x, other hdl.Expr) string {
	if c, ok := x.(hdl.Const); ok {
		if ref, ok := other.(hdl.Ref); ok {
			return e.constFor(ref.Sig, c.Value)
		}
	}
	return e.expr(x)
}

func rangeOf(s *hdl.Signal) string {
	if s.Width <= 1 {
		return ""
	}
	return fmt.Sprintf("[%d:0] ", s.Width-1)
}

func mangle(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func walkDsts(stmts []hdl.Statement, visit func(*hdl.Signal)) {
	for _, st := range stmts {
		switch n := st.(type) {
		case hdl.Assign:
			visit(n.Dst)
		case hdl.If:
			walkDsts(n.Then, visit)
			walkDsts(n.Else, visit)
		case hdl.Switch:
			keys := make([]uint64, 0, len(n.Cases))
			for k := range n.Cases {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				walkDsts(n.Cases[k], visit)
			}
			walkDsts(n.Default, visit)
		}
	}
}
