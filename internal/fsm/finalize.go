package fsm

import (
	"sort"

	"github.com/hdlforge/fsmc/internal/hdl"
)

// ObserverKind names one of the four edge-observer families.
type ObserverKind string

const (
	ObserverBeforeEntering ObserverKind = "before_entering"
	ObserverBeforeLeaving  ObserverKind = "before_leaving"
	ObserverAfterEntering  ObserverKind = "after_entering"
	ObserverAfterLeaving   ObserverKind = "after_leaving"
)

// Observer pairs a requested edge observer with its realized signal.
type Observer struct {
	Kind  ObserverKind
	State State
	Sig   *hdl.Signal
}

// Design is the immutable result of Finalize: the synthesized state
// register, its combinational drive, and the derived observer signals,
// expressed as two statement lists for the caller to merge into its
// combinational and sequential logic domains.
type Design struct {
	// StateSig is the state register; its Reset holds the reset state's
	// code. NextSig is its combinational drive.
	StateSig *hdl.Signal
	NextSig  *hdl.Signal

	// Comb settles every cycle; Sync commits on each clock edge.
	Comb []hdl.Statement
	Sync []hdl.Statement

	// Observers lists every requested edge observer in request order,
	// grouped by kind.
	Observers []Observer

	reset    State
	order    []State
	encoding map[State]int
}

// NumStates returns the number of encoded states.
func (d *Design) NumStates() int { return len(d.order) }

// Reset returns the reset state.
func (d *Design) Reset() State { return d.reset }

// States returns the encoded states in code order. The returned slice is a
// copy.
func (d *Design) States() []State {
	out := make([]State, len(d.order))
	copy(out, d.order)
	return out
}

// Code returns the code assigned to a state.
func (d *Design) Code(s State) (int, bool) {
	c, ok := d.encoding[s]
	return c, ok
}

// Finalize compiles the machine. It assigns dense codes in registration
// order, lowers transition markers, and builds the combinational and
// sequential statement lists. The machine is sealed afterwards; calling
// Finalize twice fails the same way as any other post-finalize mutation.
func (m *FSM) Finalize() (*Design, error) {
	if m.finalized {
		return nil, newFinalizedError("Finalize", nil)
	}
	m.finalized = true

	// Transition targets referenced but never registered still need a
	// code; give them one after all explicit registrations, in discovery
	// order. The explicit reset state gets its entry first so an
	// otherwise-unregistered reset is still encodable.
	if m.haveReset {
		m.ensure(m.resetState)
	}
	for i := 0; i < len(m.order); i++ { // m.order grows during the scan
		state := m.order[i]
		m.scanTargets(m.actions[state])
	}

	if len(m.order) == 0 {
		return nil, &BuildError{
			Code:    ErrCodeEmptyMachine,
			Message: "cannot finalize a machine with no states",
			Op:      "Finalize",
		}
	}
	if !m.haveReset {
		m.resetState = m.order[0]
		m.haveReset = true
	}

	nstates := len(m.order)
	encoding := make(map[State]int, nstates)
	for n, s := range m.order {
		encoding[s] = n
	}
	resetCode := uint64(encoding[m.resetState])

	stateSig := hdl.NewSignalMax("state", nstates)
	stateSig.Reset = resetCode
	nextSig := hdl.NewSignalMax("next_state", nstates)

	d := &Design{
		StateSig: stateSig,
		NextSig:  nextSig,
		reset:    m.resetState,
		order:    m.order,
		encoding: encoding,
	}

	// Lower transition markers into next-state assignments and collect
	// the per-state case bodies. Empty action lists contribute no branch.
	cases := make(map[uint64][]hdl.Statement, nstates)
	for _, state := range m.order {
		body := m.actions[state]
		if len(body) == 0 {
			continue
		}
		cases[uint64(encoding[state])] = hdl.Rewrite(body, func(s hdl.Statement) hdl.Statement {
			marker, ok := s.(hdl.Marker)
			if !ok {
				return s
			}
			ns, ok := marker.Tag.(nextState)
			if !ok {
				return s
			}
			target := m.resolveAlias(ns.target)
			return hdl.Assign{Dst: nextSig, Src: hdl.C(uint64(encoding[target]))}
		})
	}

	// Self-hold by default; the switch's default branch forces the reset
	// state should the register ever hold a code outside the defined set.
	d.Comb = append(d.Comb,
		hdl.Assign{Dst: nextSig, Src: hdl.Sig(stateSig)},
		hdl.Switch{
			Sel:     stateSig,
			Cases:   cases,
			Default: []hdl.Statement{hdl.Assign{Dst: nextSig, Src: hdl.C(resetCode)}},
		},
	)
	d.Sync = append(d.Sync, hdl.Assign{Dst: stateSig, Src: hdl.Sig(nextSig)})

	// Edge observers. before_leaving: in the state now, committed to
	// leave. before_entering: elsewhere now, committed to enter.
	for _, state := range m.beforeLeaving.order {
		sig := m.beforeLeaving.sigs[state]
		code := hdl.C(uint64(encoding[state]))
		d.Comb = append(d.Comb, hdl.Assign{
			Dst: sig,
			Src: hdl.And(
				hdl.Eq(hdl.Sig(stateSig), code),
				hdl.Neg(hdl.Eq(hdl.Sig(nextSig), code)),
			),
		})
		d.Observers = append(d.Observers, Observer{Kind: ObserverBeforeLeaving, State: state, Sig: sig})
	}
	// The machine powers up in the reset state without having transitioned
	// into it; an after-entering observer on it must read true at reset.
	if sig, ok := m.afterEntering.get(m.resetState); ok {
		sig.Reset = 1
	}
	for _, state := range m.beforeEntering.order {
		sig := m.beforeEntering.sigs[state]
		code := hdl.C(uint64(encoding[state]))
		d.Comb = append(d.Comb, hdl.Assign{
			Dst: sig,
			Src: hdl.And(
				hdl.Neg(hdl.Eq(hdl.Sig(stateSig), code)),
				hdl.Eq(hdl.Sig(nextSig), code),
			),
		})
		d.Observers = append(d.Observers, Observer{Kind: ObserverBeforeEntering, State: state, Sig: sig})
	}

	// The after-* registers were wired at request time; their updates ride
	// along in the sequential domain.
	d.Sync = append(d.Sync, m.sync...)
	for _, state := range m.afterEntering.order {
		d.Observers = append(d.Observers, Observer{Kind: ObserverAfterEntering, State: state, Sig: m.afterEntering.sigs[state]})
	}
	for _, state := range m.afterLeaving.order {
		d.Observers = append(d.Observers, Observer{Kind: ObserverAfterLeaving, State: state, Sig: m.afterLeaving.sigs[state]})
	}

	return d, nil
}

// scanTargets registers every state reachable as a transition target from
// the given statements, resolving aliases first.
func (m *FSM) scanTargets(stmts []hdl.Statement) {
	for _, s := range stmts {
		switch n := s.(type) {
		case hdl.Marker:
			if ns, ok := n.Tag.(nextState); ok {
				m.ensure(m.resolveAlias(ns.target))
			}
		case hdl.If:
			m.scanTargets(n.Then)
			m.scanTargets(n.Else)
		case hdl.Switch:
			// Sorted key order keeps auto-registered target codes stable.
			keys := make([]uint64, 0, len(n.Cases))
			for k := range n.Cases {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				m.scanTargets(n.Cases[k])
			}
			m.scanTargets(n.Default)
		}
	}
}
