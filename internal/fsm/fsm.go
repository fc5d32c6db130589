package fsm

import (
	"fmt"
	"strings"

	"github.com/hdlforge/fsmc/internal/hdl"
)

// State identifies one state of a machine. Any comparable value works as a
// State; the machine never interprets it beyond equality and display. The
// first state ever passed to Act becomes the reset state unless the machine
// was created with NewWithReset.
type State = any

// anonState is a machine-generated placeholder state. Identity comes from a
// per-machine monotonic counter, so two anonymous states never collide and
// an anonymous state never collides with a caller-supplied value.
type anonState struct {
	seq int
}

// nextState is the transition-marker payload carried through statement trees
// inside an opaque hdl.Marker leaf until finalize lowers it.
type nextState struct {
	target State
}

// Next returns a transition-marker statement: "go to target on the next
// clock edge". The marker is lowered into a concrete next-state assignment
// at finalize time, once the state encoding and alias table exist.
func Next(target State) hdl.Statement {
	return hdl.Marker{Tag: nextState{target: target}}
}

// StateName returns the display name of a state: its String() form if it has
// one, the string itself for string states, and a generated name for
// anonymous states.
func StateName(s State) string {
	switch v := s.(type) {
	case anonState:
		return fmt.Sprintf("anon_%d", v.seq)
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// sigName mangles a state's display name into an identifier fragment.
func sigName(prefix string, s State) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, StateName(s))
	return prefix + "_" + strings.ToLower(name)
}

// observerSet is an ordered map from state to its derived observer signal.
// Order is first-request order, which fixes emission order.
type observerSet struct {
	name  string
	order []State
	sigs  map[State]*hdl.Signal
}

func newObserverSet(name string) *observerSet {
	return &observerSet{name: name, sigs: make(map[State]*hdl.Signal)}
}

func (o *observerSet) get(state State) (*hdl.Signal, bool) {
	sig, ok := o.sigs[state]
	return sig, ok
}

func (o *observerSet) getOrCreate(state State) *hdl.Signal {
	if sig, ok := o.sigs[state]; ok {
		return sig
	}
	sig := hdl.NewSignal(sigName(o.name, state))
	o.sigs[state] = sig
	o.order = append(o.order, state)
	return sig
}

// FSM accumulates states, statements, and observer requests until Finalize
// compiles them into a Design.
type FSM struct {
	resetState State
	haveReset  bool

	// actions is the source of truth for which states exist. order holds
	// first-registration order and determines the encoding.
	order   []State
	actions map[State][]hdl.Statement

	// aliases holds zero-delay entry aliases. Aliases resolve one level;
	// they never chain and are never encoded themselves.
	aliases map[State]State

	beforeEntering *observerSet
	beforeLeaving  *observerSet
	afterEntering  *observerSet
	afterLeaving   *observerSet

	// sync holds sequential statements registered during construction
	// (the after-* observer registers). Finalize merges them into the
	// design's sequential list.
	sync []hdl.Statement

	anonSeq   int
	finalized bool
}

// New creates a machine whose reset state will be the first state passed to
// Act.
func New() *FSM {
	return &FSM{
		actions:        make(map[State][]hdl.Statement),
		aliases:        make(map[State]State),
		beforeEntering: newObserverSet("before_entering"),
		beforeLeaving:  newObserverSet("before_leaving"),
		afterEntering:  newObserverSet("after_entering"),
		afterLeaving:   newObserverSet("after_leaving"),
	}
}

// NewWithReset creates a machine with an explicit reset state. The state
// does not need to be registered yet; it is guaranteed an entry at finalize.
func NewWithReset(reset State) *FSM {
	m := New()
	m.resetState = reset
	m.haveReset = true
	return m
}

// anon returns a fresh anonymous state unique within this machine.
func (m *FSM) anon() State {
	m.anonSeq++
	return anonState{seq: m.anonSeq}
}

// ensure guarantees an entry exists for state, without contributing
// statements and without touching the reset state.
func (m *FSM) ensure(state State) {
	if _, ok := m.actions[state]; !ok {
		m.actions[state] = nil
		m.order = append(m.order, state)
	}
}

// EnsureExists registers a state with an empty action list, so it can be
// used purely as a transition target with a stable code. Registering the
// same state again is a no-op.
func (m *FSM) EnsureExists(state State) error {
	if m.finalized {
		return newFinalizedError("EnsureExists", state)
	}
	m.ensure(state)
	return nil
}

// Act appends statements to a state's action list, creating the state if it
// is new. The first Act call on a machine without an explicit reset state
// makes its state the reset state.
func (m *FSM) Act(state State, stmts ...hdl.Statement) error {
	if m.finalized {
		return newFinalizedError("Act", state)
	}
	if !m.haveReset {
		m.resetState = state
		m.haveReset = true
	}
	m.ensure(state)
	m.actions[state] = append(m.actions[state], stmts...)
	return nil
}

// DelayedEnter arranges for entry into name to reach target after delay
// cycles.
//
// With delay zero, name becomes an alias for target: no state or logic is
// created and transition markers referencing name lower to target's code.
// With a positive delay, a chain of delay single-cycle states is built,
// starting at name and passing through freshly generated anonymous states,
// whose only action is to advance the chain until the last link transitions
// to target.
func (m *FSM) DelayedEnter(name, target State, delay int) error {
	if m.finalized {
		return newFinalizedError("DelayedEnter", name)
	}
	if delay == 0 {
		m.aliases[name] = target
		return nil
	}
	state := name
	for i := 0; i < delay; i++ {
		var next State
		if i == delay-1 {
			next = target
		} else {
			next = m.anon()
		}
		if err := m.Act(state, Next(next)); err != nil {
			return err
		}
		state = next
	}
	return nil
}

// Ongoing returns a combinational signal asserted whenever the machine is in
// state. It is implemented as a self-assignment injected into the state's
// action list, so it participates in the state's case body like any other
// statement.
func (m *FSM) Ongoing(state State) (*hdl.Signal, error) {
	if m.finalized {
		return nil, newFinalizedError("Ongoing", state)
	}
	sig := hdl.NewSignal(sigName("ongoing", state))
	if err := m.Act(state, hdl.Assign{Dst: sig, Src: hdl.C(1)}); err != nil {
		return nil, err
	}
	return sig, nil
}

// observer returns the lazily created observer signal for (set, state).
// Before finalize this also guarantees the state exists. After finalize,
// already-created signals remain queryable; requesting a new one fails.
func (m *FSM) observer(op string, set *observerSet, state State) (*hdl.Signal, error) {
	if m.finalized {
		if sig, ok := set.get(state); ok {
			return sig, nil
		}
		return nil, newFinalizedError(op, state)
	}
	m.ensure(state)
	return set.getOrCreate(state), nil
}

// BeforeEntering returns a combinational signal asserted on the cycle just
// before the machine enters state: the machine is elsewhere and the
// committed next state is state. Idempotent per state.
func (m *FSM) BeforeEntering(state State) (*hdl.Signal, error) {
	return m.observer("BeforeEntering", m.beforeEntering, state)
}

// BeforeLeaving returns a combinational signal asserted on the cycle just
// before the machine leaves state: the machine is in state and the committed
// next state is a different one. Idempotent per state.
func (m *FSM) BeforeLeaving(state State) (*hdl.Signal, error) {
	return m.observer("BeforeLeaving", m.beforeLeaving, state)
}

// AfterEntering returns a registered signal asserted during the first cycle
// the machine spends in state: the BeforeEntering signal delayed by one
// clock. The register's update is wired immediately; only the underlying
// before-signal's equation waits for finalize.
func (m *FSM) AfterEntering(state State) (*hdl.Signal, error) {
	if m.finalized {
		if sig, ok := m.afterEntering.get(state); ok {
			return sig, nil
		}
		return nil, newFinalizedError("AfterEntering", state)
	}
	created := false
	if _, ok := m.afterEntering.get(state); !ok {
		created = true
	}
	sig, err := m.observer("AfterEntering", m.afterEntering, state)
	if err != nil {
		return nil, err
	}
	if created {
		before, err := m.BeforeEntering(state)
		if err != nil {
			return nil, err
		}
		m.sync = append(m.sync, hdl.Assign{Dst: sig, Src: hdl.Sig(before)})
	}
	return sig, nil
}

// AfterLeaving returns a registered signal asserted during the first cycle
// after the machine leaves state: the BeforeLeaving signal delayed by one
// clock.
func (m *FSM) AfterLeaving(state State) (*hdl.Signal, error) {
	if m.finalized {
		if sig, ok := m.afterLeaving.get(state); ok {
			return sig, nil
		}
		return nil, newFinalizedError("AfterLeaving", state)
	}
	created := false
	if _, ok := m.afterLeaving.get(state); !ok {
		created = true
	}
	sig, err := m.observer("AfterLeaving", m.afterLeaving, state)
	if err != nil {
		return nil, err
	}
	if created {
		before, err := m.BeforeLeaving(state)
		if err != nil {
			return nil, err
		}
		m.sync = append(m.sync, hdl.Assign{Dst: sig, Src: hdl.Sig(before)})
	}
	return sig, nil
}

// resolveAlias resolves a transition target through the alias table, one
// level only.
func (m *FSM) resolveAlias(s State) State {
	if target, ok := m.aliases[s]; ok {
		return target
	}
	return s
}
