package cliapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/devflowhq/devflow/internal/agentruntime"
	"github.com/devflowhq/devflow/internal/alignment"
	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/charter"
)

// subagentAlignmentRuntime implements alignment.Runtime by invoking the
// same external agent executable as the pipeline stages, but it cannot go
// through agentruntime.Invoker: the validator runs before a workflow
// directory (and therefore a manifest) exists, and its decision is
// ephemeral — spec.md §4.5 explicitly excludes it from persisting as a
// workflow artifact. Instead this captures the subagent's stdout directly
// and decodes it as a Decision, the way the teacher's command layer decodes
// JSON straight off an external tool's output rather than round-tripping
// through a file.
type subagentAlignmentRuntime struct {
	registry *agentruntime.Registry
	store    *artifact.Store
	runtime  *agentruntime.ProcessRuntime
	logRoot  string
}

// InvokeValidator implements alignment.Runtime.
func (s *subagentAlignmentRuntime) InvokeValidator(ctx context.Context, request string, rec *charter.Record, workflowID string) (alignment.Decision, error) {
	if s.runtime == nil || s.runtime.Command == "" {
		return alignment.Decision{}, fmt.Errorf("cliapp: no agent runtime command configured for alignment validation")
	}

	prompt := buildAlignmentPrompt(request, rec)

	args := append([]string{}, s.runtime.ExtraArgs...)
	args = append(args, "--subagent-type", "alignment-validator", "--description", "Assess whether this request falls within the project charter")

	cmd := exec.CommandContext(ctx, s.runtime.Command, args...)
	cmd.Stdin = bytes.NewBufferString(prompt)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return alignment.Decision{}, fmt.Errorf("cliapp: alignment-validator invocation failed: %w: %s", err, stderr.String())
	}

	var decision alignment.Decision
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &decision); err != nil {
		return alignment.Decision{}, fmt.Errorf("cliapp: alignment-validator returned unparseable decision: %w", err)
	}
	return decision, nil
}

func buildAlignmentPrompt(request string, rec *charter.Record) string {
	var b strings.Builder
	b.WriteString("Role: assess whether a development request falls within this project's charter.\n\n")
	fmt.Fprintf(&b, "Request: %s\n\n", request)
	b.WriteString("Charter goals:\n")
	for _, g := range rec.Goals {
		fmt.Fprintf(&b, "  - %s\n", g)
	}
	b.WriteString("Charter scope (in):\n")
	for _, s := range rec.ScopeIn {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	b.WriteString("Charter scope (out):\n")
	for _, s := range rec.ScopeOut {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	b.WriteString("Charter constraints:\n")
	for _, c := range rec.Constraints {
		fmt.Fprintf(&b, "  - %s\n", c)
	}
	b.WriteString("\nRespond on stdout with a single JSON object matching:\n")
	b.WriteString(`{"is_aligned":bool,"confidence":number,"matching_goals":[string],"scope_assessment":"in"|"out"|"unclear","constraint_violations":[string],"reasoning":string}`)
	b.WriteString("\n")
	return b.String()
}
