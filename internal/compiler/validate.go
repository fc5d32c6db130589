package compiler

import (
	"fmt"
	"strings"

	"github.com/hdlforge/fsmc/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrMachineNameEmpty  = "E200" // machine must have a name
	ErrNoStates          = "E201" // at least one state required
	ErrDuplicateState    = "E202" // duplicate state name
	ErrUnknownInput      = "E203" // branch references an undeclared input
	ErrUnknownOutput     = "E204" // set references an undeclared output
	ErrNegativeDelay     = "E205" // delayed entry with negative delay
	ErrInvalidObserver   = "E206" // unknown observer kind
	ErrInvalidWidth      = "E207" // signal width out of range
	ErrDuplicateSignal   = "E208" // duplicate signal name
	ErrMalformedStmt     = "E209" // statement must set exactly one field
	ErrUnknownResetState = "E210" // reset names a state never declared or targeted
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors aggregates every error found in one machine.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a machine description against the schema rules. All
// errors are collected; an empty result means the spec is elaborable.
// Validation works on the canonicalized form so lookup comparisons agree
// with elaboration.
func Validate(spec *ir.MachineSpec) ValidationErrors {
	m := spec.Canonicalize()
	var errs ValidationErrors

	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, ValidationError{
			Field: "name", Code: ErrMachineNameEmpty,
			Message: "machine name is required",
		})
	}
	if len(m.States) == 0 {
		errs = append(errs, ValidationError{
			Field: "states", Code: ErrNoStates,
			Message: "at least one state is required",
		})
	}

	inputs := make(map[string]bool, len(m.Inputs))
	outputs := make(map[string]bool, len(m.Outputs))
	signals := make(map[string]bool)
	checkSignal := func(field string, s ir.SignalSpec, set map[string]bool) {
		if s.Width < 1 || s.Width > 64 {
			errs = append(errs, ValidationError{
				Field: field, Code: ErrInvalidWidth,
				Message: fmt.Sprintf("signal %q width %d outside 1..64", s.Name, s.Width),
			})
		}
		if signals[s.Name] {
			errs = append(errs, ValidationError{
				Field: field, Code: ErrDuplicateSignal,
				Message: fmt.Sprintf("signal %q declared more than once", s.Name),
			})
		}
		signals[s.Name] = true
		set[s.Name] = true
	}
	for i, s := range m.Inputs {
		checkSignal(fmt.Sprintf("inputs[%d]", i), s, inputs)
	}
	for i, s := range m.Outputs {
		checkSignal(fmt.Sprintf("outputs[%d]", i), s, outputs)
	}

	states := make(map[string]bool, len(m.States))
	for i, st := range m.States {
		field := fmt.Sprintf("states[%d]", i)
		if states[st.Name] {
			errs = append(errs, ValidationError{
				Field: field, Code: ErrDuplicateState,
				Message: fmt.Sprintf("state %q declared more than once", st.Name),
			})
		}
		states[st.Name] = true
		errs = append(errs, validateStmts(field+".statements", st.Statements, inputs, outputs)...)
	}

	for i, d := range m.Delays {
		if d.Delay < 0 {
			errs = append(errs, ValidationError{
				Field: fmt.Sprintf("delays[%d]", i), Code: ErrNegativeDelay,
				Message: fmt.Sprintf("delay %d for %q is negative", d.Delay, d.Name),
			})
		}
	}

	for i, o := range m.Observers {
		if !ir.ValidObserverKinds[o.Kind] {
			errs = append(errs, ValidationError{
				Field: fmt.Sprintf("observers[%d]", i), Code: ErrInvalidObserver,
				Message: fmt.Sprintf("unknown observer kind %q", o.Kind),
			})
		}
	}

	// The reset state is allowed to be a transition-only target, but a
	// name that appears nowhere is a typo, not a design.
	if m.Reset != "" && !states[m.Reset] && !nameIsTargeted(m, m.Reset) {
		errs = append(errs, ValidationError{
			Field: "reset", Code: ErrUnknownResetState,
			Message: fmt.Sprintf("reset state %q is never declared or targeted", m.Reset),
		})
	}

	return errs
}

func validateStmts(field string, stmts []ir.StmtSpec, inputs, outputs map[string]bool) ValidationErrors {
	var errs ValidationErrors
	for i, s := range stmts {
		f := fmt.Sprintf("%s[%d]", field, i)
		set := 0
		if s.Set != nil {
			set++
			if !outputs[s.Set.Signal] {
				errs = append(errs, ValidationError{
					Field: f, Code: ErrUnknownOutput,
					Message: fmt.Sprintf("set targets undeclared output %q", s.Set.Signal),
				})
			}
		}
		if s.If != nil {
			set++
			if !inputs[s.If.Signal] {
				errs = append(errs, ValidationError{
					Field: f, Code: ErrUnknownInput,
					Message: fmt.Sprintf("if branches on undeclared input %q", s.If.Signal),
				})
			}
			errs = append(errs, validateStmts(f+".then", s.If.Then, inputs, outputs)...)
			errs = append(errs, validateStmts(f+".else", s.If.Else, inputs, outputs)...)
		}
		if s.Goto != "" {
			set++
		}
		if set != 1 {
			errs = append(errs, ValidationError{
				Field: f, Code: ErrMalformedStmt,
				Message: "statement must have exactly one of set, if, goto",
			})
		}
	}
	return errs
}

// nameIsTargeted reports whether name appears as a goto or delay target.
func nameIsTargeted(m *ir.MachineSpec, name string) bool {
	var inStmts func([]ir.StmtSpec) bool
	inStmts = func(stmts []ir.StmtSpec) bool {
		for _, s := range stmts {
			if s.Goto == name {
				return true
			}
			if s.If != nil && (inStmts(s.If.Then) || inStmts(s.If.Else)) {
				return true
			}
		}
		return false
	}
	for _, st := range m.States {
		if inStmts(st.Statements) {
			return true
		}
	}
	for _, d := range m.Delays {
		if d.Name == name || d.Target == name {
			return true
		}
	}
	return false
}
