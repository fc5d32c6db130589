// Package ir defines the machine description exchanged between the CUE
// front-end, the elaborator, and the run store.
//
// A MachineSpec is a purely declarative record: states with statement lists,
// delayed-entry requests, and observer requests. It carries no synthesized
// logic. Canonical serialization (NFC-normalized identifiers, deterministic
// JSON) gives every machine a stable content hash, so equivalent
// descriptions are recognized as the same design across runs.
package ir
