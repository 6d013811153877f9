package agentruntime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ProcessRuntime implements Runtime by shelling out to an external agent
// executable, one process per invocation. The agent runtime is specified as
// an opaque black box from the coordinator's point of view: it receives the
// subagent type, a human-readable description, and a prompt, and is
// expected to write its output artifact to disk itself before exiting.
// Command is looked up on PATH unless it is already an absolute/relative
// path. Every invocation gets subagent_type/description on argv, the prompt
// on stdin, and the workflow's artifact/log roots via environment variables, mirroring
// the teacher's pattern of shelling out to an external tool and wiring
// config through both argv and env (see its MCP gateway launcher).
type ProcessRuntime struct {
	Command     string
	ExtraArgs   []string
	Env         []string
	ArtifactDir string
	LogDir      string
}

// InvokeSubagent implements agentruntime.Runtime.
func (p *ProcessRuntime) InvokeSubagent(ctx context.Context, subagentType, description, prompt string) error {
	if p.Command == "" {
		return fmt.Errorf("agentruntime: no agent runtime command configured")
	}

	args := append([]string{}, p.ExtraArgs...)
	args = append(args, "--subagent-type", subagentType, "--description", description)

	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stdin = bytes.NewBufferString(prompt)

	cmd.Env = os.Environ()
	if p.ArtifactDir != "" {
		cmd.Env = append(cmd.Env, "DEVFLOW_ARTIFACT_DIR="+p.ArtifactDir)
	}
	if p.LogDir != "" {
		cmd.Env = append(cmd.Env, "DEVFLOW_LOG_DIR="+p.LogDir)
	}
	cmd.Env = append(cmd.Env, p.Env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("agentruntime: %s exited with error: %w: %s", subagentType, err, stderr.String())
		}
		return fmt.Errorf("agentruntime: %s exited with error: %w", subagentType, err)
	}
	return nil
}
