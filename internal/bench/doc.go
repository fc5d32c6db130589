// Package bench runs YAML testbench scenarios against elaborated machines.
//
// A scenario lists, cycle by cycle, which inputs to drive and which state
// and signal values to expect. The runner simulates the design, checks every
// expectation, and produces a deterministic trace suitable for golden-file
// comparison. Scenarios are the behavioral contract of a machine: they fail
// when a spec change alters observable timing.
package bench
