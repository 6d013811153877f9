package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devflowhq/devflow/internal/artifact"
)

// ListResumable implements list_resumable_workflows: every workflow in the
// store that has not reached a terminal state (final-report present, or a
// stage error artifact recorded), along with its resume plan.
func ListResumable(store *artifact.Store, pipeline []string) ([]Resumable, error) {
	ids, err := store.ListWorkflows()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: failed to list workflows: %w", err)
	}

	out := make([]Resumable, 0, len(ids))
	for _, id := range ids {
		if store.HasArtifact(id, artifact.TypeFinalReport) {
			continue
		}
		if hasAnyErrorArtifact(store, id, pipeline) {
			continue
		}

		cp, err := Load(store, store.WorkflowDir(id), id, pipeline)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: failed to load checkpoint for %s: %w", id, err)
		}
		out = append(out, Resumable{
			WorkflowID: id,
			Progress:   cp.ProgressPercentage,
			Completed:  cp.CompletedAgents,
			Next:       cp.CurrentAgent,
		})
	}
	return out, nil
}

func hasAnyErrorArtifact(store *artifact.Store, workflowID string, pipeline []string) bool {
	for _, agent := range pipeline {
		typ := stageArtifactType(agent)
		if typ == "" {
			continue
		}
		errPath := filepath.Join(store.WorkflowDir(workflowID), artifact.ErrorFileName(typ))
		if _, err := os.Stat(errPath); err == nil {
			return true
		}
	}
	return false
}
