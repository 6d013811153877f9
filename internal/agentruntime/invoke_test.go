package agentruntime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowhq/devflow/internal/artifact"
)

type scriptedRuntime struct {
	write func(store *artifact.Store, workflowID string) error
	err   error
}

func (s *scriptedRuntime) InvokeSubagent(ctx context.Context, subagentType, description, prompt string) error {
	return s.err
}

func newStoreWithManifest(t *testing.T, workflowID, request string) *artifact.Store {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateWorkflow(workflowID))
	require.NoError(t, store.WriteArtifact(workflowID, artifact.TypeManifest, map[string]interface{}{
		"version": "1.0", "agent": "coordinator", "workflow_id": workflowID,
		"status": "completed", "timestamp": "2026-01-01T00:00:00Z",
		"request": request, "alignment": map[string]interface{}{"is_aligned": true}, "pipeline": []interface{}{"researcher"},
	}))
	return store
}

func TestInvoke_MissingUpstreamArtifactFails(t *testing.T) {
	store := newStoreWithManifest(t, "wf1", "do the thing")
	inv := &Invoker{
		Registry: NewDefaultRegistry(),
		Store:    store,
		Runtime:  &scriptedRuntime{},
		LogRoot:  t.TempDir(),
	}

	_, err := inv.Invoke(context.Background(), "planner", "wf1", "do the thing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingUpstreamArtifact))
}

func TestInvoke_AgentRuntimeFailurePropagates(t *testing.T) {
	store := newStoreWithManifest(t, "wf1", "do the thing")
	inv := &Invoker{
		Registry: NewDefaultRegistry(),
		Store:    store,
		Runtime:  &scriptedRuntime{err: errors.New("LLM timed out")},
		LogRoot:  t.TempDir(),
	}

	_, err := inv.Invoke(context.Background(), "researcher", "wf1", "do the thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent runtime failure")

	errorPath := filepath.Join(store.WorkflowDir("wf1"), artifact.ErrorFileName(artifact.TypeResearch))
	_, statErr := os.Stat(errorPath)
	require.NoError(t, statErr, "expected %s.error.json to be written on runtime failure", artifact.TypeResearch)
}

func TestInvoke_SuccessWritesNoErrorArtifactAndReturnsPath(t *testing.T) {
	store := newStoreWithManifest(t, "wf1", "do the thing")
	runtime := &scriptedRuntime{}
	runtime.err = nil

	inv := &Invoker{
		Registry: NewDefaultRegistry(),
		Store:    store,
		LogRoot:  t.TempDir(),
	}
	inv.Runtime = runtimeThatWrites{store: store, workflowID: "wf1"}

	res, err := inv.Invoke(context.Background(), "researcher", "wf1", "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, "wf1/research.json", res.OutputArtifactPath)
	assert.True(t, store.HasArtifact("wf1", artifact.TypeResearch))
	assert.NoFileExists(t, filepath.Join(store.WorkflowDir("wf1"), artifact.ErrorFileName(artifact.TypeResearch)))
}

type runtimeThatWrites struct {
	store      *artifact.Store
	workflowID string
}

func (r runtimeThatWrites) InvokeSubagent(ctx context.Context, subagentType, description, prompt string) error {
	return r.store.WriteArtifact(r.workflowID, artifact.TypeResearch, map[string]interface{}{
		"version": "1.0", "agent": "researcher", "workflow_id": r.workflowID,
		"status": "completed", "timestamp": "2026-01-01T00:00:00Z",
		"codebase_patterns": []interface{}{}, "best_practices": []interface{}{},
		"security_considerations": []interface{}{}, "recommended_libraries": []interface{}{},
		"alternatives_considered": []interface{}{},
	})
}
