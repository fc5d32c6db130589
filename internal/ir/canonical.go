package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the NFC form of an identifier. Two spellings of the
// same composed character must name the same state or signal, so every
// identifier is normalized before comparison, elaboration, or hashing.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Canonicalize returns a copy of the spec with every identifier
// NFC-normalized. The input is not mutated.
func (m *MachineSpec) Canonicalize() *MachineSpec {
	out := *m
	out.Name = NormalizeName(m.Name)
	out.Reset = NormalizeName(m.Reset)

	out.Inputs = normalizeSignals(m.Inputs)
	out.Outputs = normalizeSignals(m.Outputs)

	out.States = make([]StateSpec, len(m.States))
	for i, st := range m.States {
		out.States[i] = StateSpec{
			Name:       NormalizeName(st.Name),
			Statements: normalizeStmts(st.Statements),
		}
	}

	out.Delays = make([]DelaySpec, len(m.Delays))
	for i, d := range m.Delays {
		out.Delays[i] = DelaySpec{
			Name:   NormalizeName(d.Name),
			Target: NormalizeName(d.Target),
			Delay:  d.Delay,
		}
	}

	out.Observers = make([]ObserverSpec, len(m.Observers))
	for i, o := range m.Observers {
		out.Observers[i] = ObserverSpec{
			Kind:  o.Kind,
			State: NormalizeName(o.State),
		}
	}
	return &out
}

func normalizeSignals(sigs []SignalSpec) []SignalSpec {
	if sigs == nil {
		return nil
	}
	out := make([]SignalSpec, len(sigs))
	for i, s := range sigs {
		out[i] = SignalSpec{Name: NormalizeName(s.Name), Width: s.Width}
	}
	return out
}

func normalizeStmts(stmts []StmtSpec) []StmtSpec {
	if stmts == nil {
		return nil
	}
	out := make([]StmtSpec, len(stmts))
	for i, s := range stmts {
		ns := StmtSpec{Goto: NormalizeName(s.Goto)}
		if s.Set != nil {
			ns.Set = &SetSpec{Signal: NormalizeName(s.Set.Signal), Value: s.Set.Value}
		}
		if s.If != nil {
			ns.If = &IfSpec{
				Signal: NormalizeName(s.If.Signal),
				Then:   normalizeStmts(s.If.Then),
				Else:   normalizeStmts(s.If.Else),
			}
		}
		out[i] = ns
	}
	return out
}

// MarshalCanonical produces the deterministic JSON form used for content
// hashing and golden comparisons: identifiers NFC-normalized, struct field
// order fixed by the schema, no HTML escaping.
func (m *MachineSpec) MarshalCanonical() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.Canonicalize()); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	// Encoder appends a newline; the canonical form excludes it.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
