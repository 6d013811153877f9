package agentruntime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry_HasEveryPipelineAgentAndTheValidator(t *testing.T) {
	r := NewDefaultRegistry()
	for _, name := range append(append([]string{}, DefaultPipeline...), "alignment-validator") {
		_, ok := r.Get(name)
		assert.True(t, ok, "missing registry entry for %s", name)
	}
}

func TestValidateAcyclic_DefaultPipelineIsAcyclic(t *testing.T) {
	r := NewDefaultRegistry()
	require.NoError(t, r.ValidateAcyclic(DefaultPipeline))
}

func TestValidateAcyclic_DetectsCycle(t *testing.T) {
	r := NewDefaultRegistry()
	researcher, _ := r.Get("researcher")
	researcher.RequiredUpstream = append(researcher.RequiredUpstream, researcher.ProducedArtifactType)
	r.configs["researcher"] = researcher

	// researcher -> research (its own output): a self-loop once the
	// producer lookup resolves "research" back to "researcher" itself.
	err := r.ValidateAcyclic([]string{"researcher"})
	require.Error(t, err)
}

func TestValidateAcyclic_RejectsUnknownAgent(t *testing.T) {
	r := NewDefaultRegistry()
	err := r.ValidateAcyclic([]string{"researcher", "nonexistent"})
	require.Error(t, err)
}

func TestSetDefaultTimeout_AppliesToEveryRegisteredAgent(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetDefaultTimeout(5 * time.Minute)

	for _, name := range r.Names() {
		cfg, ok := r.Get(name)
		require.True(t, ok)
		assert.Equal(t, 5*time.Minute, cfg.Timeout, "agent %s", name)
	}
}
