package agentruntime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/eventlog"
)

// Runtime is the external agent runtime interface from spec.md §6: a
// single call that hands a prompt to an LLM subagent and returns once it
// signals completion. The coordinator never parses completion content for
// control flow — it depends entirely on the produced artifact existing and
// validating.
type Runtime interface {
	InvokeSubagent(ctx context.Context, subagentType, description, prompt string) error
}

// ErrMissingUpstreamArtifact is raised when a required upstream artifact is
// absent or not completed.
var ErrMissingUpstreamArtifact = errors.New("agentruntime: missing upstream artifact")

// Result is what invoke returns: the stage status and, on success, the path
// to the artifact the agent produced.
type Result struct {
	Status           string
	OutputArtifactPath string
}

// ProgressTracker receives status updates as a stage moves from "in
// progress" to "completed". It is optional: a nil Progress on the Invoker
// skips these updates, and the coordinator's Invoker leaves it nil.
type ProgressTracker interface {
	SetStatus(agent, status string)
}

// Invoker is the uniform dispatch point (C6's `invoke` operation).
type Invoker struct {
	Registry *Registry
	Store    *artifact.Store
	Runtime  Runtime
	LogRoot  string
	Progress ProgressTracker
	// Index, if set, is attached to every logger this Invoker opens so
	// per-workflow event counts stay queryable without rescanning JSONL
	// files. Nil disables the index entirely.
	Index *eventlog.Index
}

// Invoke implements spec.md §4.6's behavior contract for a single agent.
func (inv *Invoker) Invoke(ctx context.Context, agentName, workflowID string, requestText string) (*Result, error) {
	cfg, ok := inv.Registry.Get(agentName)
	if !ok {
		return nil, fmt.Errorf("agentruntime: unknown agent %q", agentName)
	}

	manifest, err := inv.Store.ReadArtifact(workflowID, artifact.TypeManifest)
	if err != nil {
		return nil, fmt.Errorf("agentruntime: failed to load manifest: %w", err)
	}

	upstreamPaths := make([]string, 0, len(cfg.RequiredUpstream))
	for _, upstream := range cfg.RequiredUpstream {
		if !inv.Store.IsCompleted(workflowID, upstream) {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingUpstreamArtifact, agentName, upstream)
		}
		upstreamPaths = append(upstreamPaths, fmt.Sprintf("%s/%s.json", workflowID, upstream))
	}

	if inv.Progress != nil {
		inv.Progress.SetStatus(agentName, "in_progress")
	}

	logger, err := eventlog.NewLogger(inv.LogRoot, workflowID, agentName)
	if err != nil {
		return nil, fmt.Errorf("agentruntime: failed to open logger: %w", err)
	}
	logger.Index = inv.Index

	description := renderTemplate(cfg.DescriptionTemplate, requestText)
	outputPath := fmt.Sprintf("%s/%s.json", workflowID, cfg.ProducedArtifactType)
	prompt := buildPrompt(cfg, upstreamPaths, outputPath, manifest)

	invokeCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := inv.Runtime.InvokeSubagent(invokeCtx, agentName, description, prompt); err != nil {
		_ = logger.LogError(fmt.Sprintf("%s invocation failed", agentName), err.Error())
		_ = inv.Store.WriteErrorArtifact(workflowID, cfg.ProducedArtifactType, nil, err)
		return nil, fmt.Errorf("agentruntime: agent runtime failure for %s: %w", agentName, err)
	}

	if !inv.Store.HasArtifact(workflowID, cfg.ProducedArtifactType) {
		return nil, fmt.Errorf("agentruntime: %s completed but produced no %s artifact", agentName, cfg.ProducedArtifactType)
	}
	doc, err := inv.Store.ReadArtifact(workflowID, cfg.ProducedArtifactType)
	if err != nil {
		return nil, fmt.Errorf("agentruntime: failed to read %s output: %w", agentName, err)
	}
	if err := artifact.Validate(cfg.ProducedArtifactType, doc); err != nil {
		_ = inv.Store.WriteErrorArtifact(workflowID, cfg.ProducedArtifactType, doc, err)
		return nil, err
	}

	_ = logger.LogEvent(agentName+"_completed", map[string]interface{}{
		"produced_artifact": string(cfg.ProducedArtifactType),
	})
	if inv.Progress != nil {
		inv.Progress.SetStatus(agentName, "completed")
	}

	return &Result{Status: "completed", OutputArtifactPath: outputPath}, nil
}

func renderTemplate(template, request string) string {
	return strings.ReplaceAll(template, "{{request}}", request)
}

func buildPrompt(cfg AgentConfig, upstreamPaths []string, outputPath string, manifest map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n\n", cfg.RoleSummary)
	if req, ok := manifest["request"].(string); ok {
		fmt.Fprintf(&b, "Request: %s\n\n", req)
	}
	if len(upstreamPaths) > 0 {
		fmt.Fprintf(&b, "Read these upstream artifacts first:\n")
		for _, p := range upstreamPaths {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Write your output to: %s\n", outputPath)
	fmt.Fprintf(&b, "It must validate against the %s schema.\n", cfg.ProducedArtifactType)
	return b.String()
}
