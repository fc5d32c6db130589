package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix allows
// future schema migration without colliding with old hashes.
const (
	DomainMachine = "fsmc/machine/v1"
	DomainDesign  = "fsmc/design/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null separator prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MachineHash computes the content-addressed identity of a machine
// description. Equivalent descriptions (up to identifier normalization)
// hash identically, regardless of which file or session produced them.
func (m *MachineSpec) MachineHash() (string, error) {
	canonical, err := m.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("MachineHash: %w", err)
	}
	return hashWithDomain(DomainMachine, canonical), nil
}

// DesignHash computes the identity of a synthesized design from its emitted
// text. Two runs that emit byte-identical logic share a design hash.
func DesignHash(emitted string) string {
	return hashWithDomain(DomainDesign, []byte(emitted))
}
