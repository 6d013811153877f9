// Package checkpoint implements the checkpoint engine (C4): durable
// per-workflow progress state and resume-plan derivation.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devflowhq/devflow/internal/artifact"
)

const fileName = "checkpoint.json"

// Checkpoint is the single mutable-looking progress record for a workflow,
// rewritten create-or-replace after each stage completes.
type Checkpoint struct {
	WorkflowID        string   `json:"workflow_id"`
	CompletedAgents   []string `json:"completed_agents"`
	CurrentAgent      string   `json:"current_agent,omitempty"`
	ArtifactsCreated  []string `json:"artifacts_created"`
	ProgressPercentage int     `json:"progress_percentage"`
	UpdatedAt         string   `json:"updated_at"`
}

// ResumePlan is the answer to get_resume_plan: what to run next and how
// much of the pipeline remains.
type ResumePlan struct {
	NextAgent          string   `json:"next_agent,omitempty"`
	ProgressPercentage int      `json:"progress_percentage"`
	RemainingAgents    []string `json:"remaining_agents"`
}

// Resumable summarizes one workflow for list_resumable_workflows.
type Resumable struct {
	WorkflowID string `json:"workflow_id"`
	Progress   int    `json:"progress"`
	Completed  []string `json:"completed"`
	Next       string `json:"next,omitempty"`
}

var nowFunc = time.Now

// path returns the checkpoint file location for a workflow directory.
func path(workflowDir string) string { return filepath.Join(workflowDir, fileName) }

// Create writes the initial checkpoint for a freshly started workflow:
// nothing completed, current_agent is the first pipeline stage.
func Create(workflowDir, workflowID string, pipeline []string) (*Checkpoint, error) {
	cp := &Checkpoint{
		WorkflowID:         workflowID,
		CompletedAgents:    []string{},
		ArtifactsCreated:   []string{},
		ProgressPercentage: 0,
	}
	if len(pipeline) > 0 {
		cp.CurrentAgent = pipeline[0]
	}
	if err := write(workflowDir, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Save computes completed_agents/current_agent/progress from the pipeline
// order and the given completion state, then rewrites the checkpoint.
func Save(workflowDir, workflowID string, pipeline []string, completedAgents, artifactsCreated []string) (*Checkpoint, error) {
	cp := build(workflowID, pipeline, completedAgents, artifactsCreated)
	if err := write(workflowDir, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Load reads the checkpoint for a workflow, reconciling it against the
// artifact store if it disagrees with the artifact-backed completion state.
// Per spec.md §4.4/§7 (CheckpointCorrupt), reconciliation rebuilds
// completed_agents from the artifact set in pipeline order and rewrites the
// checkpoint before returning.
func Load(store *artifact.Store, workflowDir, workflowID string, pipeline []string) (*Checkpoint, error) {
	artifactBacked, artifactsCreated, err := completedFromArtifacts(store, workflowID, pipeline)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path(workflowDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Save(workflowDir, workflowID, pipeline, artifactBacked, artifactsCreated)
		}
		return nil, fmt.Errorf("checkpoint: failed to read checkpoint: %w", err)
	}

	var onDisk Checkpoint
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return Save(workflowDir, workflowID, pipeline, artifactBacked, artifactsCreated)
	}

	if !sameProgress(onDisk.CompletedAgents, artifactBacked) {
		return Save(workflowDir, workflowID, pipeline, artifactBacked, artifactsCreated)
	}
	return &onDisk, nil
}

// completedFromArtifacts derives the artifact-backed completed-agents
// prefix: the longest pipeline-ordered run of agents whose stage artifact
// exists and is completed, stopping at the first gap.
func completedFromArtifacts(store *artifact.Store, workflowID string, pipeline []string) ([]string, []string, error) {
	var completed, created []string
	for _, agent := range pipeline {
		typ := stageArtifactType(agent)
		if typ == "" {
			break
		}
		if !store.IsCompleted(workflowID, typ) {
			break
		}
		completed = append(completed, agent)
		created = append(created, string(typ))
	}
	if completed == nil {
		completed = []string{}
	}
	if created == nil {
		created = []string{}
	}
	return completed, created, nil
}

func build(workflowID string, pipeline, completedAgents, artifactsCreated []string) *Checkpoint {
	cp := &Checkpoint{
		WorkflowID:       workflowID,
		CompletedAgents:  append([]string{}, completedAgents...),
		ArtifactsCreated: append([]string{}, artifactsCreated...),
	}
	cp.CurrentAgent = nextAgent(pipeline, completedAgents)
	cp.ProgressPercentage = progressPercentage(len(completedAgents), len(pipeline))
	return cp
}

// nextAgent returns the first pipeline member not present in completed, or
// "" if all are completed.
func nextAgent(pipeline, completed []string) string {
	done := make(map[string]bool, len(completed))
	for _, a := range completed {
		done[a] = true
	}
	for _, a := range pipeline {
		if !done[a] {
			return a
		}
	}
	return ""
}

// progressPercentage implements spec.md §4.4's rounding rule:
// round(100 * |completed| / |pipeline|).
func progressPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(completed)*100.0/float64(total) + 0.5)
}

func sameProgress(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func write(workflowDir string, cp *Checkpoint) error {
	cp.UpdatedAt = nowFunc().UTC().Format(time.RFC3339)
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(workflowDir, ".tmp-checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path(workflowDir)); err != nil {
		return fmt.Errorf("checkpoint: failed to rename into place: %w", err)
	}
	return nil
}

// ToResumePlan derives get_resume_plan's output from a loaded checkpoint.
func ToResumePlan(cp *Checkpoint, pipeline []string) *ResumePlan {
	return &ResumePlan{
		NextAgent:          cp.CurrentAgent,
		ProgressPercentage: cp.ProgressPercentage,
		RemainingAgents:    remaining(pipeline, cp.CompletedAgents),
	}
}

func remaining(pipeline, completed []string) []string {
	done := make(map[string]bool, len(completed))
	for _, a := range completed {
		done[a] = true
	}
	out := []string{}
	for _, a := range pipeline {
		if !done[a] {
			out = append(out, a)
		}
	}
	return out
}

// stageArtifactType maps a pipeline agent name to the artifact type it
// produces. Kept local to checkpoint rather than read from agentruntime's
// registry, so this package depends only on artifact; it covers the seven
// default pipeline agents and returns "" for any other name.
func stageArtifactType(agent string) artifact.Type {
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
	default:
		return ""
	}
}
