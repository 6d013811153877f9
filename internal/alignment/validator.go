// Package alignment implements the alignment validator contract (C5): a
// semantic check of a request against the parsed project charter, with the
// decision delegated to a validator agent through the Runtime interface. The
// CLI's Runtime runs the agent executable directly; it does not go through
// agentruntime.Invoker.
package alignment

import (
	"context"
	"fmt"

	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/charter"
)

// Decision is the outcome of validate(), per spec.md §4.5.
type Decision struct {
	IsAligned             bool     `json:"is_aligned"`
	Confidence            float64  `json:"confidence"`
	MatchingGoals         []string `json:"matching_goals"`
	ScopeAssessment       string   `json:"scope_assessment"`
	ConstraintViolations  []string `json:"constraint_violations"`
	Reasoning             string   `json:"reasoning"`
}

// minConfidenceForUnclear is the threshold from spec.md §4.5's outcome
// policy: an "unclear" scope assessment with confidence at or above this
// and zero constraint violations is treated as aligned.
const minConfidenceForUnclear = 0.8

// Runtime is what the validator delegates the actual judgment to: a single
// call that hands the request and charter record to a validator agent and
// returns its structured response. It deliberately has no cache — spec.md
// §4.5 requires the validator be invoked fresh for every request unless the
// pipeline registry disables it.
type Runtime interface {
	InvokeValidator(ctx context.Context, request string, rec *charter.Record, workflowID string) (Decision, error)
}

// Validator is the alignment validator (C5).
type Validator struct {
	runtime Runtime
}

// NewValidator builds a Validator delegating decisions to runtime.
func NewValidator(runtime Runtime) *Validator {
	return &Validator{runtime: runtime}
}

// Validate implements spec.md §4.5's validate(request, charter_record,
// workflow_id) operation, applying the outcome policy on top of the raw
// agent decision.
func (v *Validator) Validate(ctx context.Context, request string, rec *charter.Record, workflowID string) (Decision, error) {
	decision, err := v.runtime.InvokeValidator(ctx, request, rec, workflowID)
	if err != nil {
		return Decision{}, fmt.Errorf("alignment: validator agent invocation failed: %w", err)
	}

	decision.IsAligned = applyOutcomePolicy(decision)
	return decision, nil
}

// applyOutcomePolicy implements: unclear scope with confidence >= 0.8 and no
// constraint violations is aligned; below 0.8 or any violation is not
// aligned. In/out scope assessments pass through the agent's own verdict.
func applyOutcomePolicy(d Decision) bool {
	switch d.ScopeAssessment {
	case "unclear":
		return d.Confidence >= minConfidenceForUnclear && len(d.ConstraintViolations) == 0
	default:
		return d.IsAligned && len(d.ConstraintViolations) == 0
	}
}

// ToArtifact renders a Decision as an alignment-check document. The
// coordinator embeds it as the manifest's "alignment" field; it is never
// written as a separate artifact file.
func ToArtifact(d Decision, workflowID, timestamp string) map[string]interface{} {
	matchingGoals := d.MatchingGoals
	if matchingGoals == nil {
		matchingGoals = []string{}
	}
	violations := d.ConstraintViolations
	if violations == nil {
		violations = []string{}
	}
	return map[string]interface{}{
		"version":                "1.0",
		"agent":                  "alignment-validator",
		"workflow_id":            workflowID,
		"status":                 string(artifact.StatusCompleted),
		"timestamp":              timestamp,
		"is_aligned":             d.IsAligned,
		"confidence":             d.Confidence,
		"matching_goals":         matchingGoals,
		"scope_assessment":       d.ScopeAssessment,
		"constraint_violations":  violations,
		"reasoning":              d.Reasoning,
	}
}
