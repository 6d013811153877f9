// Package charter parses a project's PROJECT.md charter file into the
// structured GOALS / SCOPE / CONSTRAINTS record the alignment validator
// checks requests against (C1 in the coordinator design).
package charter

import "errors"

// Record is the in-memory charter extract. It is never written back to
// disk — it lives only for the duration of a validation or coordination
// call, per spec.md §3.
type Record struct {
	Goals       []string
	ScopeIn     []string
	ScopeOut    []string
	Constraints []string
}

// Sentinel errors from spec.md §7.
var (
	ErrCharterMissing     = errors.New("charter: PROJECT.md not found")
	ErrCharterUnparseable = errors.New("charter: no GOALS/SCOPE/CONSTRAINTS section found")
)
