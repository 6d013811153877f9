package agentruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRuntime_InvokesConfiguredCommandWithArgs(t *testing.T) {
	p := &ProcessRuntime{Command: "true"}
	err := p.InvokeSubagent(context.Background(), "researcher", "investigate auth", "prompt text")
	require.NoError(t, err)
}

func TestProcessRuntime_PropagatesNonZeroExitAndStderr(t *testing.T) {
	p := &ProcessRuntime{Command: "sh", ExtraArgs: []string{"-c", "echo boom 1>&2; exit 1", "--"}}
	err := p.InvokeSubagent(context.Background(), "researcher", "investigate auth", "prompt text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "researcher")
	assert.Contains(t, err.Error(), "boom")
}

func TestProcessRuntime_MissingCommandIsAnError(t *testing.T) {
	p := &ProcessRuntime{}
	err := p.InvokeSubagent(context.Background(), "researcher", "d", "p")
	require.Error(t, err)
}
