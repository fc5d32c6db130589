package bench

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one testbench: a machine name plus a cycle-by-cycle script.
type Scenario struct {
	// Name identifies the scenario; golden files are stored under it.
	Name string `yaml:"name"`

	// Description is optional documentation.
	Description string `yaml:"description,omitempty"`

	// Machine names the machine this scenario drives.
	Machine string `yaml:"machine"`

	// Cycles is the script. Each entry covers one clock cycle: inputs are
	// applied, expectations are checked against the settled values, then
	// the clock steps.
	Cycles []CycleStep `yaml:"cycles"`
}

// CycleStep describes one cycle of stimulus and expectation.
type CycleStep struct {
	// Set drives input signals for this and following cycles.
	Set map[string]uint64 `yaml:"set,omitempty"`

	// Expect checks settled values this cycle. Nil means "just clock".
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation pins settled values for one cycle.
type Expectation struct {
	// State is the expected state name, empty to skip the check.
	State string `yaml:"state,omitempty"`

	// Signals maps output signal names to their expected values.
	Signals map[string]uint64 `yaml:"signals,omitempty"`
}

// ParseScenario decodes a scenario from YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("parse scenario: name is required")
	}
	if s.Machine == "" {
		return nil, fmt.Errorf("parse scenario %s: machine is required", s.Name)
	}
	if len(s.Cycles) == 0 {
		return nil, fmt.Errorf("parse scenario %s: cycles must be non-empty", s.Name)
	}
	return &s, nil
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	return ParseScenario(data)
}
