package compiler

import (
	"fmt"

	"github.com/hdlforge/fsmc/internal/fsm"
	"github.com/hdlforge/fsmc/internal/hdl"
	"github.com/hdlforge/fsmc/internal/ir"
)

// Elaborated bundles everything synthesis produced for one machine: the
// finalized design plus the realized port signals.
type Elaborated struct {
	Spec   *ir.MachineSpec
	Design *fsm.Design

	// Inputs holds the declared input signals in declaration order.
	// Outputs holds declared outputs followed by observer signals in
	// request order.
	Inputs  []*hdl.Signal
	Outputs []*hdl.Signal

	// Observers maps "kind:state" to the realized observer signal.
	Observers map[string]*hdl.Signal
}

// Input returns a declared input signal by name.
func (e *Elaborated) Input(name string) (*hdl.Signal, bool) {
	return findSignal(e.Inputs, ir.NormalizeName(name))
}

// Output returns a port signal by name, searching declared outputs and
// observer signals alike.
func (e *Elaborated) Output(name string) (*hdl.Signal, bool) {
	return findSignal(e.Outputs, ir.NormalizeName(name))
}

// Observer returns the realized signal for an observer request.
func (e *Elaborated) Observer(kind ir.ObserverKind, state string) (*hdl.Signal, bool) {
	sig, ok := e.Observers[observerKey(kind, ir.NormalizeName(state))]
	return sig, ok
}

func observerKey(kind ir.ObserverKind, state string) string {
	return string(kind) + ":" + state
}

func findSignal(sigs []*hdl.Signal, name string) (*hdl.Signal, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Elaborate validates a machine description and synthesizes it. States are
// registered in declaration order, so the encoding matches the order in the
// source file; delayed entries and observers follow, then the machine is
// finalized.
func Elaborate(spec *ir.MachineSpec) (*Elaborated, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, errs
	}
	m := spec.Canonicalize()

	e := &Elaborated{
		Spec:      m,
		Observers: make(map[string]*hdl.Signal),
	}
	inputs := make(map[string]*hdl.Signal, len(m.Inputs))
	for _, s := range m.Inputs {
		sig := &hdl.Signal{Name: s.Name, Width: s.Width}
		inputs[s.Name] = sig
		e.Inputs = append(e.Inputs, sig)
	}
	outputs := make(map[string]*hdl.Signal, len(m.Outputs))
	for _, s := range m.Outputs {
		sig := &hdl.Signal{Name: s.Name, Width: s.Width}
		outputs[s.Name] = sig
		e.Outputs = append(e.Outputs, sig)
	}

	var machine *fsm.FSM
	if m.Reset != "" {
		machine = fsm.NewWithReset(m.Reset)
	} else {
		machine = fsm.New()
	}

	for _, st := range m.States {
		stmts, err := lowerStmts(st.Statements, inputs, outputs)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", st.Name, err)
		}
		if err := machine.Act(st.Name, stmts...); err != nil {
			return nil, err
		}
	}
	for _, d := range m.Delays {
		if err := machine.DelayedEnter(d.Name, d.Target, d.Delay); err != nil {
			return nil, err
		}
	}
	for _, o := range m.Observers {
		var (
			sig *hdl.Signal
			err error
		)
		switch o.Kind {
		case ir.ObserverOngoing:
			sig, err = machine.Ongoing(o.State)
		case ir.ObserverBeforeEntering:
			sig, err = machine.BeforeEntering(o.State)
		case ir.ObserverBeforeLeaving:
			sig, err = machine.BeforeLeaving(o.State)
		case ir.ObserverAfterEntering:
			sig, err = machine.AfterEntering(o.State)
		case ir.ObserverAfterLeaving:
			sig, err = machine.AfterLeaving(o.State)
		default:
			err = fmt.Errorf("unknown observer kind %q", o.Kind)
		}
		if err != nil {
			return nil, err
		}
		key := observerKey(o.Kind, o.State)
		if _, dup := e.Observers[key]; !dup {
			e.Observers[key] = sig
			e.Outputs = append(e.Outputs, sig)
		}
	}

	design, err := machine.Finalize()
	if err != nil {
		return nil, err
	}
	e.Design = design
	return e, nil
}

// lowerStmts converts declarative statements into the statement tree the
// builder consumes.
func lowerStmts(stmts []ir.StmtSpec, inputs, outputs map[string]*hdl.Signal) ([]hdl.Statement, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	out := make([]hdl.Statement, 0, len(stmts))
	for _, s := range stmts {
		switch {
		case s.Set != nil:
			sig, ok := outputs[s.Set.Signal]
			if !ok {
				return nil, fmt.Errorf("undeclared output %q", s.Set.Signal)
			}
			out = append(out, hdl.Assign{Dst: sig, Src: hdl.C(s.Set.Value)})
		case s.If != nil:
			sig, ok := inputs[s.If.Signal]
			if !ok {
				return nil, fmt.Errorf("undeclared input %q", s.If.Signal)
			}
			then, err := lowerStmts(s.If.Then, inputs, outputs)
			if err != nil {
				return nil, err
			}
			els, err := lowerStmts(s.If.Else, inputs, outputs)
			if err != nil {
				return nil, err
			}
			out = append(out, hdl.If{Cond: hdl.Sig(sig), Then: then, Else: els})
		case s.Goto != "":
			out = append(out, fsm.Next(s.Goto))
		}
	}
	return out, nil
}
