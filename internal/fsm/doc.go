// Package fsm synthesizes finite state machines into synchronous logic.
//
// Construction is two-phase. A builder phase registers states and their
// statements (Act), delayed entries (DelayedEnter), and observer signals
// (Ongoing, BeforeEntering, BeforeLeaving, AfterEntering, AfterLeaving).
// Finalize then assigns dense state codes, lowers transition markers into
// next-state assignments, and returns an immutable Design holding the
// combinational and sequential statement lists for the caller to merge into
// its logic domains.
//
// After Finalize the builder is sealed: every mutating call fails with a
// BuildError carrying ErrCodeFinalized. That is always a caller ordering
// bug, never a recoverable runtime condition.
package fsm
