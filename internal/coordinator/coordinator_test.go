package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowhq/devflow/internal/agentruntime"
	"github.com/devflowhq/devflow/internal/alignment"
	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/charter"
)

const testCharter = `## GOALS

- Improve security

## SCOPE

- ✅ Authentication

## CONSTRAINTS

- Must not add new infra
`

// stubAlignmentRuntime returns a fixed decision regardless of input, letting
// tests drive StartWorkflow's aligned/refused branches directly.
type stubAlignmentRuntime struct {
	decision alignment.Decision
}

func (s *stubAlignmentRuntime) InvokeValidator(ctx context.Context, request string, rec *charter.Record, workflowID string) (alignment.Decision, error) {
	return s.decision, nil
}

// fakeAgentRuntime writes a minimal valid artifact for whatever stage it is
// asked to invoke, simulating a successful subagent run without any LLM.
type fakeAgentRuntime struct {
	store     *artifact.Store
	fail      map[string]bool
	omitField map[string]string
}

func (f *fakeAgentRuntime) InvokeSubagent(ctx context.Context, subagentType, description, prompt string) error {
	if f.fail[subagentType] {
		return nil // simulate a runtime that "completes" without writing a valid artifact
	}
	doc := minimalArtifact(subagentType)
	if f.omitField != nil && f.omitField[subagentType] != "" {
		delete(doc, f.omitField[subagentType])
	}
	typ := stageType(subagentType)
	return f.store.WriteArtifact(currentWorkflowID, typ, doc)
}

// currentWorkflowID is set by each test before invoking Run; the fake
// runtime has no other way to learn which workflow it's writing into since
// the Runtime interface only carries subagent type/description/prompt.
var currentWorkflowID string

func stageType(agent string) artifact.Type {
	switch agent {
	case "researcher":
		return artifact.TypeResearch
	case "planner":
		return artifact.TypeArchitecture
	case "test-master":
		return artifact.TypeTestPlan
	case "implementer":
		return artifact.TypeImplementation
	case "reviewer":
		return artifact.TypeReview
	case "security-auditor":
		return artifact.TypeSecurity
	case "doc-master":
		return artifact.TypeDocs
	}
	return ""
}

func minimalArtifact(agent string) map[string]interface{} {
	base := map[string]interface{}{
		"version": "1.0", "agent": agent, "workflow_id": currentWorkflowID,
		"status": "completed", "timestamp": "2026-01-01T00:00:00Z",
	}
	switch agent {
	case "researcher":
		base["codebase_patterns"] = []interface{}{}
		base["best_practices"] = []interface{}{}
		base["security_considerations"] = []interface{}{}
		base["recommended_libraries"] = []interface{}{}
		base["alternatives_considered"] = []interface{}{}
	case "planner":
		base["components"] = []interface{}{}
		base["data_model"] = map[string]interface{}{}
		base["api_contracts"] = []interface{}{}
		base["threats"] = []interface{}{}
	case "test-master":
		base["test_cases"] = []interface{}{}
		base["coverage_strategy"] = "unit + integration"
	case "implementer":
		base["files_changed"] = []interface{}{"main.go"}
		base["diff_summary"] = "added auth"
		base["tests_added"] = 3
	case "reviewer":
		base["decision"] = "approve"
		base["score"] = 95
		base["issues"] = []interface{}{}
	case "security-auditor":
		base["threats_validated"] = []interface{}{}
		base["overall_coverage"] = 100
		base["recommendation"] = "pass"
	case "doc-master":
		base["docs_updated"] = []interface{}{"README.md"}
		base["summary"] = "documented auth flow"
	}
	return base
}

func setup(t *testing.T, decision alignment.Decision) (*Coordinator, *artifact.Store, *fakeAgentRuntime) {
	t.Helper()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }

	dir := t.TempDir()
	charterPath := filepath.Join(dir, "PROJECT.md")
	require.NoError(t, os.WriteFile(charterPath, []byte(testCharter), 0o644))

	store, err := artifact.NewStore(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)

	runtime := &fakeAgentRuntime{store: store, fail: map[string]bool{}}

	c := &Coordinator{
		CharterPath: charterPath,
		Store:       store,
		LogRoot:     filepath.Join(dir, "logs"),
		Registry:    agentruntime.NewDefaultRegistry(),
		Validator:   alignment.NewValidator(&stubAlignmentRuntime{decision: decision}),
		Runtime:     runtime,
	}
	return c, store, runtime
}

func TestStartWorkflow_AlignedCreatesWorkflow(t *testing.T) {
	c, store, _ := setup(t, alignment.Decision{IsAligned: true, ScopeAssessment: "in", Reasoning: "matches goals"})

	res, err := c.StartWorkflow(context.Background(), "implement user authentication with JWT tokens")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.True(t, store.HasArtifact(res.WorkflowID, artifact.TypeManifest))

	types, err := store.ListArtifacts(res.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, []artifact.Type{artifact.TypeManifest}, types)
}

func TestStartWorkflow_RefusedCreatesNoWorkflow(t *testing.T) {
	c, store, _ := setup(t, alignment.Decision{IsAligned: false, ScopeAssessment: "out", Reasoning: "out of scope: chatroom"})

	before, err := store.ListWorkflows()
	require.NoError(t, err)

	res, err := c.StartWorkflow(context.Background(), "add a chatroom to the homepage")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "out of scope")

	after, err := store.ListWorkflows()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_HappyPathProducesAllArtifactsAndFinalReport(t *testing.T) {
	c, store, _ := setup(t, alignment.Decision{IsAligned: true, ScopeAssessment: "in", Reasoning: "matches goals"})

	res, err := c.StartWorkflow(context.Background(), "implement user authentication with JWT tokens")
	require.NoError(t, err)
	require.True(t, res.OK)
	currentWorkflowID = res.WorkflowID

	run := c.Run(context.Background(), res.WorkflowID)
	require.NoError(t, run.Error)
	require.True(t, run.OK)

	assert.True(t, store.HasArtifact(res.WorkflowID, artifact.TypeFinalReport))
	report, err := store.ReadArtifact(res.WorkflowID, artifact.TypeFinalReport)
	require.NoError(t, err)
	assert.Equal(t, "success", report["outcome"])
}

func TestRun_IsIdempotentOnAlreadyCompletedWorkflow(t *testing.T) {
	c, store, _ := setup(t, alignment.Decision{IsAligned: true, ScopeAssessment: "in", Reasoning: "matches goals"})

	res, err := c.StartWorkflow(context.Background(), "implement user authentication with JWT tokens")
	require.NoError(t, err)
	currentWorkflowID = res.WorkflowID

	require.True(t, c.Run(context.Background(), res.WorkflowID).OK)

	before, err := store.ListArtifacts(res.WorkflowID)
	require.NoError(t, err)

	again := c.Resume(context.Background(), res.WorkflowID)
	require.True(t, again.OK)

	after, err := store.ListArtifacts(res.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestRun_SchemaViolationHaltsPipeline covers scenario E: the implementer
// writes an implementation artifact missing a required field, the run halts
// with a schema violation, and no review artifact is produced.
func TestRun_SchemaViolationHaltsPipeline(t *testing.T) {
	c, store, runtime := setup(t, alignment.Decision{IsAligned: true, ScopeAssessment: "in", Reasoning: "matches goals"})
	runtime.omitField = map[string]string{"implementer": "files_changed"}

	res, err := c.StartWorkflow(context.Background(), "implement user authentication with JWT tokens")
	require.NoError(t, err)
	currentWorkflowID = res.WorkflowID

	run := c.Run(context.Background(), res.WorkflowID)
	require.Error(t, run.Error)
	assert.False(t, run.OK)

	assert.False(t, store.HasArtifact(res.WorkflowID, artifact.TypeReview))
	var schemaErr *artifact.SchemaError
	assert.ErrorAs(t, run.Error, &schemaErr)
}
