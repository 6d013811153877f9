// Package artifact implements the durable, typed JSON handoff between
// pipeline agents: the artifact store (create/read/list), the schema
// contracts each artifact type must satisfy, and workflow ID generation.
package artifact

import "fmt"

// Type identifies one of the fixed artifact kinds a workflow directory can hold.
type Type string

// The complete set of artifact types the coordinator pipeline produces.
const (
	TypeManifest       Type = "manifest"
	TypeResearch       Type = "research"
	TypeArchitecture   Type = "architecture"
	TypeTestPlan       Type = "test-plan"
	TypeImplementation Type = "implementation"
	TypeReview         Type = "review"
	TypeSecurity       Type = "security"
	TypeDocs           Type = "docs"
	TypeFinalReport    Type = "final-report"

	// TypeAlignmentCheck is produced by the alignment validator agent.
	// It is never written to a workflow directory: the alignment decision
	// happens before a workflow directory exists, per spec §4.5.
	TypeAlignmentCheck Type = "alignment-check"
)

// Status is the lifecycle state carried by every artifact.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ErrorFileName returns the error-artifact filename for a failed stage,
// e.g. "implementation.error.json".
func ErrorFileName(typ Type) string {
	return fmt.Sprintf("%s.error.json", typ)
}

// FileName returns the on-disk filename for an artifact type.
func FileName(typ Type) string {
	return fmt.Sprintf("%s.json", typ)
}
