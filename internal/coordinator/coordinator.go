// Package coordinator implements the workflow coordinator (C7): the
// top-level state machine that validates a request, assembles the
// pipeline, drives agent invocations in order, and checkpoints progress.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devflowhq/devflow/internal/agentruntime"
	"github.com/devflowhq/devflow/internal/alignment"
	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/charter"
	"github.com/devflowhq/devflow/internal/checkpoint"
	"github.com/devflowhq/devflow/internal/eventlog"
)

// nowFunc is overridable in tests.
var nowFunc = time.Now

// maxWorkflowIDCollisions bounds the retry-with-new-ID loop in StartWorkflow
// for spec.md §7's WorkflowExists recovery ("Retry with new ID
// (coordinator)"). A same-second collision is already rare given
// artifact.GenerateWorkflowID's counter suffix; this just keeps a pathological
// run from looping forever.
const maxWorkflowIDCollisions = 5

// StartResult is the outcome of StartWorkflow.
type StartResult struct {
	OK         bool
	Message    string
	WorkflowID string
}

// RunResult is the outcome of Run/Resume.
type RunResult struct {
	OK    bool
	Error error
}

// Coordinator wires together the charter parser, alignment validator,
// artifact store, checkpoint engine, and agent invocation factory into the
// single state machine described in spec.md §4.7.
type Coordinator struct {
	CharterPath string
	Store       *artifact.Store
	LogRoot     string
	Registry    *agentruntime.Registry
	Validator   *alignment.Validator
	Runtime     agentruntime.Runtime
	Pipeline    []string // explicit override, or nil to use agentruntime.DefaultPipeline
	// Index, if set, keeps a SQLite-backed summary of every workflow's event
	// log current as stages complete. Nil disables the index; Run and
	// StartWorkflow fall back to the JSONL files alone.
	Index *eventlog.Index
	// ParallelClusterSize bounds the worker pool runCluster spawns for the
	// validator cluster (spec.md §5). <= 0 falls back to one worker per
	// pending cluster agent, the teacher's config.Defaults.ParallelClusterSize
	// default already matching the spec's "typically 3".
	ParallelClusterSize int
}

func (c *Coordinator) pipeline() []string {
	if len(c.Pipeline) > 0 {
		return c.Pipeline
	}
	return agentruntime.DefaultPipeline
}

// StartWorkflow implements spec.md §4.7's start_workflow(request).
func (c *Coordinator) StartWorkflow(ctx context.Context, request string) (*StartResult, error) {
	rec, err := charter.Parse(c.CharterPath)
	if err != nil {
		return &StartResult{OK: false, Message: err.Error()}, nil
	}

	pipeline := c.pipeline()
	if err := c.Registry.ValidateAcyclic(pipeline); err != nil {
		return nil, fmt.Errorf("coordinator: invalid pipeline: %w", err)
	}

	workflowID := artifact.GenerateWorkflowID()
	decision, err := c.Validator.Validate(ctx, request, rec, workflowID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: alignment validation failed: %w", err)
	}
	if !decision.IsAligned {
		return &StartResult{OK: false, Message: decision.Reasoning}, nil
	}

	for attempt := 0; ; attempt++ {
		err := c.Store.CreateWorkflow(workflowID)
		if err == nil {
			break
		}
		if !errors.Is(err, artifact.ErrWorkflowExists) || attempt >= maxWorkflowIDCollisions {
			return nil, fmt.Errorf("coordinator: failed to create workflow: %w", err)
		}
		workflowID = artifact.GenerateWorkflowID()
	}

	stagePlan := make(map[string]interface{}, len(pipeline))
	for _, agent := range pipeline {
		stagePlan[agent] = map[string]interface{}{"planned": true}
	}
	manifest := map[string]interface{}{
		"version":     "1.0",
		"agent":       "coordinator",
		"workflow_id": workflowID,
		"status":      string(artifact.StatusCompleted),
		"timestamp":   nowFunc().UTC().Format(time.RFC3339),
		"request":     request,
		"alignment":   alignment.ToArtifact(decision, workflowID, nowFunc().UTC().Format(time.RFC3339)),
		"pipeline":    toInterfaceSlice(pipeline),
		"stage_plan":  stagePlan,
	}
	if err := c.Store.WriteArtifact(workflowID, artifact.TypeManifest, manifest); err != nil {
		return nil, fmt.Errorf("coordinator: failed to write manifest: %w", err)
	}

	if _, err := checkpoint.Create(c.Store.WorkflowDir(workflowID), workflowID, pipeline); err != nil {
		return nil, fmt.Errorf("coordinator: failed to write initial checkpoint: %w", err)
	}

	logger, err := eventlog.NewLogger(c.LogRoot, workflowID, "coordinator")
	if err == nil {
		logger.Index = c.Index
		_ = logger.LogEvent("workflow_started", map[string]interface{}{"request": request})
	}

	return &StartResult{OK: true, WorkflowID: workflowID}, nil
}

// Run implements spec.md §4.7's run(workflow_id): drive the pipeline
// forward, stage by stage, dispatching the validator cluster in parallel
// when it is reached.
func (c *Coordinator) Run(ctx context.Context, workflowID string) *RunResult {
	pipeline := c.pipeline()
	manifest, err := c.Store.ReadArtifact(workflowID, artifact.TypeManifest)
	if err != nil {
		return &RunResult{Error: fmt.Errorf("coordinator: failed to load manifest: %w", err)}
	}
	request, _ := manifest["request"].(string)

	inv := &agentruntime.Invoker{
		Registry: c.Registry,
		Store:    c.Store,
		Runtime:  c.Runtime,
		LogRoot:  c.LogRoot,
		Index:    c.Index,
	}

	stages, _ := groupStages(c.Registry, pipeline)

	for _, stage := range stages {
		if len(stage) == 1 {
			agent := stage[0]
			if c.Store.IsCompleted(workflowID, producedType(c.Registry, agent)) {
				continue
			}
			if err := c.runStage(ctx, inv, workflowID, request, agent); err != nil {
				c.saveCheckpoint(workflowID, pipeline)
				return &RunResult{Error: err}
			}
		} else {
			if err := c.runCluster(ctx, inv, workflowID, request, stage); err != nil {
				c.saveCheckpoint(workflowID, pipeline)
				return &RunResult{Error: err}
			}
		}
		c.saveCheckpoint(workflowID, pipeline)
	}

	if err := c.writeFinalReport(workflowID, pipeline); err != nil {
		return &RunResult{Error: err}
	}
	return &RunResult{OK: true}
}

// Resume implements spec.md §4.7's resume(workflow_id): it loads the
// checkpoint (which reconciles it against the artifact set and rewrites it
// if they disagree) and then re-invokes Run. Run skips every stage whose
// artifact is already completed, so the pipeline continues from the
// checkpoint's next agent.
func (c *Coordinator) Resume(ctx context.Context, workflowID string) *RunResult {
	if _, err := checkpoint.Load(c.Store, c.Store.WorkflowDir(workflowID), workflowID, c.pipeline()); err != nil {
		return &RunResult{Error: fmt.Errorf("coordinator: failed to load checkpoint: %w", err)}
	}
	return c.Run(ctx, workflowID)
}

// ListResumable implements spec.md §4.7's list_resumable().
func (c *Coordinator) ListResumable() ([]checkpoint.Resumable, error) {
	return checkpoint.ListResumable(c.Store, c.pipeline())
}

func (c *Coordinator) runStage(ctx context.Context, inv *agentruntime.Invoker, workflowID, request, agent string) error {
	if _, err := inv.Invoke(ctx, agent, workflowID, request); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) saveCheckpoint(workflowID string, pipeline []string) {
	completed, created, err := completedAgents(c.Store, c.Registry, workflowID, pipeline)
	if err != nil {
		return
	}
	_, _ = checkpoint.Save(c.Store.WorkflowDir(workflowID), workflowID, pipeline, completed, created)
}

func (c *Coordinator) writeFinalReport(workflowID string, pipeline []string) error {
	if c.Store.HasArtifact(workflowID, artifact.TypeFinalReport) {
		return nil
	}
	types, err := c.Store.ListArtifacts(workflowID)
	if err != nil {
		return fmt.Errorf("coordinator: failed to list artifacts for final report: %w", err)
	}
	created := make([]interface{}, 0, len(types))
	for _, t := range types {
		created = append(created, string(t))
	}
	report := map[string]interface{}{
		"version":           "1.0",
		"agent":             "coordinator",
		"workflow_id":       workflowID,
		"status":            string(artifact.StatusCompleted),
		"timestamp":         nowFunc().UTC().Format(time.RFC3339),
		"outcome":           "success",
		"artifacts_created": created,
		"summary":           fmt.Sprintf("pipeline completed for %s", workflowID),
	}
	return c.Store.WriteArtifact(workflowID, artifact.TypeFinalReport, report)
}

func toInterfaceSlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
