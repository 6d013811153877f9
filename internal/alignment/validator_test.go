package alignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowhq/devflow/internal/charter"
)

type stubRuntime struct {
	decision Decision
	err      error
}

func (s *stubRuntime) InvokeValidator(ctx context.Context, request string, rec *charter.Record, workflowID string) (Decision, error) {
	return s.decision, s.err
}

func TestValidate_InScopeAligned(t *testing.T) {
	v := NewValidator(&stubRuntime{decision: Decision{
		IsAligned:       true,
		Confidence:      0.95,
		ScopeAssessment: "in",
		Reasoning:       "matches GOALS item 1",
	}})
	d, err := v.Validate(context.Background(), "implement JWT auth", &charter.Record{}, "wf1")
	require.NoError(t, err)
	assert.True(t, d.IsAligned)
}

func TestValidate_OutOfScopeIsNeverAligned(t *testing.T) {
	v := NewValidator(&stubRuntime{decision: Decision{
		IsAligned:       false,
		Confidence:      0.9,
		ScopeAssessment: "out",
		Reasoning:       "chatroom not in scope",
	}})
	d, err := v.Validate(context.Background(), "add a chatroom", &charter.Record{}, "wf1")
	require.NoError(t, err)
	assert.False(t, d.IsAligned)
}

func TestValidate_UnclearHighConfidenceNoViolationsIsAligned(t *testing.T) {
	v := NewValidator(&stubRuntime{decision: Decision{
		Confidence:      0.85,
		ScopeAssessment: "unclear",
	}})
	d, err := v.Validate(context.Background(), "improve onboarding", &charter.Record{}, "wf1")
	require.NoError(t, err)
	assert.True(t, d.IsAligned)
}

func TestValidate_UnclearLowConfidenceIsNotAligned(t *testing.T) {
	v := NewValidator(&stubRuntime{decision: Decision{
		Confidence:      0.5,
		ScopeAssessment: "unclear",
	}})
	d, err := v.Validate(context.Background(), "improve onboarding", &charter.Record{}, "wf1")
	require.NoError(t, err)
	assert.False(t, d.IsAligned)
}

func TestValidate_UnclearWithViolationIsNotAligned(t *testing.T) {
	v := NewValidator(&stubRuntime{decision: Decision{
		Confidence:           0.99,
		ScopeAssessment:      "unclear",
		ConstraintViolations: []string{"requires new infra"},
	}})
	d, err := v.Validate(context.Background(), "improve onboarding", &charter.Record{}, "wf1")
	require.NoError(t, err)
	assert.False(t, d.IsAligned)
}

func TestToArtifact_NeverLeavesNilSlices(t *testing.T) {
	doc := ToArtifact(Decision{IsAligned: true, ScopeAssessment: "in"}, "wf1", "2026-01-01T00:00:00Z")
	assert.NotNil(t, doc["matching_goals"])
	assert.NotNil(t, doc["constraint_violations"])
}
