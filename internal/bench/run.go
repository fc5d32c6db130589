package bench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hdlforge/fsmc/internal/compiler"
	"github.com/hdlforge/fsmc/internal/fsm"
	"github.com/hdlforge/fsmc/internal/sim"
)

// ScenarioError represents a failure while running a scenario.
type ScenarioError struct {
	// Code identifies the error category.
	Code ScenarioErrorCode

	// Message is a human-readable description.
	Message string

	// Scenario names the failing scenario; Cycle is the failing cycle.
	Scenario string
	Cycle    int
}

// ScenarioErrorCode categorizes scenario failures.
type ScenarioErrorCode string

const (
	// ErrCodeUnknownSignal indicates the script names a signal the
	// machine does not declare.
	ErrCodeUnknownSignal ScenarioErrorCode = "UNKNOWN_SIGNAL"

	// ErrCodeUnknownState indicates an expectation names a state the
	// machine does not have.
	ErrCodeUnknownState ScenarioErrorCode = "UNKNOWN_STATE"

	// ErrCodeExpectFailed indicates a settled value differed from the
	// scripted expectation.
	ErrCodeExpectFailed ScenarioErrorCode = "EXPECT_FAILED"

	// ErrCodeWrongMachine indicates the scenario targets a different
	// machine than the one it was run against.
	ErrCodeWrongMachine ScenarioErrorCode = "WRONG_MACHINE"
)

// Error implements the error interface.
func (e *ScenarioError) Error() string {
	return fmt.Sprintf("%s: %s (scenario=%s, cycle=%d)", e.Code, e.Message, e.Scenario, e.Cycle)
}

// IsExpectFailure reports whether err is a failed expectation.
// Uses errors.As to handle wrapped errors.
func IsExpectFailure(err error) bool {
	var se *ScenarioError
	if errors.As(err, &se) {
		return se.Code == ErrCodeExpectFailed
	}
	return false
}

// TraceEvent captures the settled view of one cycle.
type TraceEvent struct {
	Cycle   int
	State   string
	Signals []SignalValue
}

// SignalValue is one named settled value, in port order.
type SignalValue struct {
	Name  string
	Value uint64
}

// Result holds a completed scenario run.
type Result struct {
	Scenario *Scenario
	Trace    []TraceEvent
}

// Run executes a scenario against an elaborated machine. Every cycle:
// apply stimulus, settle, check expectations, record the trace, step the
// clock. The first failed expectation aborts the run.
func Run(scn *Scenario, e *compiler.Elaborated) (*Result, error) {
	if scn.Machine != e.Spec.Name {
		return nil, &ScenarioError{
			Code:     ErrCodeWrongMachine,
			Message:  fmt.Sprintf("scenario targets machine %q, got %q", scn.Machine, e.Spec.Name),
			Scenario: scn.Name,
		}
	}

	// Reverse map from settled code to state display name.
	stateByCode := make(map[uint64]string, e.Design.NumStates())
	stateCodes := make(map[string]uint64, e.Design.NumStates())
	for _, state := range e.Design.States() {
		code, _ := e.Design.Code(state)
		name := fsm.StateName(state)
		stateByCode[uint64(code)] = name
		stateCodes[name] = uint64(code)
	}

	s := sim.New(e.Design.Comb, e.Design.Sync)
	result := &Result{Scenario: scn}

	for cycle, step := range scn.Cycles {
		for name, v := range step.Set {
			sig, ok := e.Input(name)
			if !ok {
				return nil, &ScenarioError{
					Code:     ErrCodeUnknownSignal,
					Message:  fmt.Sprintf("set names undeclared input %q", name),
					Scenario: scn.Name,
					Cycle:    cycle,
				}
			}
			s.Set(sig, v)
		}

		event := TraceEvent{
			Cycle: cycle,
			State: stateByCode[s.Value(e.Design.StateSig)],
		}
		for _, sig := range e.Outputs {
			event.Signals = append(event.Signals, SignalValue{Name: sig.Name, Value: s.Value(sig)})
		}
		result.Trace = append(result.Trace, event)

		if exp := step.Expect; exp != nil {
			if exp.State != "" {
				want, ok := stateCodes[exp.State]
				if !ok {
					return nil, &ScenarioError{
						Code:     ErrCodeUnknownState,
						Message:  fmt.Sprintf("expectation names unknown state %q", exp.State),
						Scenario: scn.Name,
						Cycle:    cycle,
					}
				}
				if got := s.Value(e.Design.StateSig); got != want {
					return result, &ScenarioError{
						Code:     ErrCodeExpectFailed,
						Message:  fmt.Sprintf("state is %s, expected %s", stateByCode[got], exp.State),
						Scenario: scn.Name,
						Cycle:    cycle,
					}
				}
			}
			for name, want := range exp.Signals {
				sig, ok := e.Output(name)
				if !ok {
					return nil, &ScenarioError{
						Code:     ErrCodeUnknownSignal,
						Message:  fmt.Sprintf("expectation names undeclared signal %q", name),
						Scenario: scn.Name,
						Cycle:    cycle,
					}
				}
				if got := s.Value(sig); got != want {
					return result, &ScenarioError{
						Code:     ErrCodeExpectFailed,
						Message:  fmt.Sprintf("%s is %d, expected %d", name, got, want),
						Scenario: scn.Name,
						Cycle:    cycle,
					}
				}
			}
		}

		s.Step()
	}

	return result, nil
}

// RenderTrace formats a result as the canonical trace text used for golden
// comparison: one line per cycle, signals in port order.
func RenderTrace(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario.Name)
	fmt.Fprintf(&b, "machine: %s\n", r.Scenario.Machine)
	for _, ev := range r.Trace {
		fmt.Fprintf(&b, "cycle %d: state=%s", ev.Cycle, ev.State)
		for _, sv := range ev.Signals {
			fmt.Fprintf(&b, " %s=%d", sv.Name, sv.Value)
		}
		b.WriteString("\n")
	}
	return b.String()
}
