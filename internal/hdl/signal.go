package hdl

import "fmt"

// Signal is a named wire or register in the synthesized circuit.
//
// A Signal carries no value of its own; it is a handle that statements and
// expressions refer to. Whether it behaves as a combinational wire or a
// clocked register is decided by the statement domain that drives it
// (combinational vs sequential), not by the Signal itself.
type Signal struct {
	// Name is the identifier used when emitting the design as text.
	// Names are not required to be unique; emitters disambiguate.
	Name string

	// Width is the bit width. Valid values are 1..64.
	Width int

	// Reset is the power-up value when the signal is driven from the
	// sequential domain. Ignored for purely combinational signals.
	Reset uint64
}

// NewSignal returns a 1-bit signal with reset value 0.
func NewSignal(name string) *Signal {
	return &Signal{Name: name, Width: 1}
}

// NewSignalMax returns a signal wide enough to hold values 0..max-1.
// max must be at least 1; a single-valued range still occupies one bit.
func NewSignalMax(name string, max int) *Signal {
	return &Signal{Name: name, Width: BitsFor(max)}
}

// BitsFor returns the number of bits needed to represent n distinct values
// (0..n-1). BitsFor(0) and BitsFor(1) are both 1: even a degenerate range
// occupies a bit of storage.
func BitsFor(n int) int {
	if n <= 2 {
		return 1
	}
	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}

// Mask returns the bit mask covering the signal's width.
func (s *Signal) Mask() uint64 {
	if s.Width >= 64 {
		return ^uint64(0)
	}
	return (1 << uint(s.Width)) - 1
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s[%d]", s.Name, s.Width)
}
