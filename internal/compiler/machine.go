// Package compiler turns declarative CUE machine descriptions into
// synthesized designs: parse to the IR, validate, then elaborate through the
// fsm builder.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/hdlforge/fsmc/internal/ir"
)

// CompileError represents a parse failure with CUE position information.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseMachines extracts every machine declaration from a CUE value. The
// value is expected to contain a top-level struct of the form
//
//	machine: <name>: { states: [...], ... }
//
// Machine names come from the struct labels; declaration order is the CUE
// field order, which fixes the state encoding downstream.
func ParseMachines(v cue.Value) ([]ir.MachineSpec, error) {
	if err := v.Err(); err != nil {
		return nil, &CompileError{Field: "machine", Message: err.Error(), Pos: v.Pos()}
	}

	root := v.LookupPath(cue.ParsePath("machine"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "machine",
			Message: "no machine declarations found (expected a top-level \"machine\" struct)",
			Pos:     v.Pos(),
		}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, &CompileError{Field: "machine", Message: err.Error(), Pos: root.Pos()}
	}

	var specs []ir.MachineSpec
	for iter.Next() {
		name := strings.Trim(iter.Selector().String(), `"`)
		var spec ir.MachineSpec
		if err := iter.Value().Decode(&spec); err != nil {
			return nil, &CompileError{
				Field:   "machine." + name,
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
		spec.Name = ir.NormalizeName(name)
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, &CompileError{
			Field:   "machine",
			Message: "machine struct declares no machines",
			Pos:     root.Pos(),
		}
	}
	return specs, nil
}

// ParseSource compiles a CUE source string and extracts its machines.
// Intended for tests and small tools; LoadDir is the file-based entry point.
func ParseSource(src string) ([]ir.MachineSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return ParseMachines(v)
}

// LoadDir loads every .cue file in a directory as one CUE instance and
// extracts its machines.
func LoadDir(dir string) ([]ir.MachineSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("machine directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return ParseMachines(v)
}

// findCUEFiles returns the .cue files directly under dir, sorted by name.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cue") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
