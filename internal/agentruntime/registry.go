// Package agentruntime implements the agent invocation factory (C6): a
// declarative registry mapping a logical agent name to its configuration,
// and the uniform dispatch path that loads upstream artifacts, invokes the
// external agent runtime, and validates/records the output artifact.
package agentruntime

import (
	"fmt"
	"sort"
	"time"

	"github.com/devflowhq/devflow/internal/artifact"
)

// AgentConfig is one entry of the declarative registry (spec.md §4.6).
type AgentConfig struct {
	Name                   string
	ProgressPct            int
	RequiredUpstream       []artifact.Type
	ProducedArtifactType   artifact.Type
	DescriptionTemplate    string
	RoleSummary            string
	OptionalModelHint      string
	Parallelizable         bool
	Timeout                time.Duration
}

// DefaultTimeout is the per-invocation budget adopted by analogy with the
// parallel validator cluster's 30-minute worker timeout (spec.md §9 open
// question).
const DefaultTimeout = 30 * time.Minute

// Registry holds every known agent's configuration, keyed by name.
type Registry struct {
	configs map[string]AgentConfig
	order   []string
}

// NewDefaultRegistry builds the registry spec.md §4.6/§4.7 describes: the
// seven-stage pipeline plus the ephemeral alignment-check validator.
func NewDefaultRegistry() *Registry {
	r := &Registry{configs: make(map[string]AgentConfig)}

	r.add(AgentConfig{
		Name:                 "researcher",
		ProgressPct:          10,
		RequiredUpstream:     []artifact.Type{artifact.TypeManifest},
		ProducedArtifactType: artifact.TypeResearch,
		DescriptionTemplate:  "Research prior art and constraints for: {{request}}",
		RoleSummary:          "Surveys the codebase and ecosystem for relevant patterns, practices, and risks.",
		Timeout:              DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "planner",
		ProgressPct:          25,
		RequiredUpstream:     []artifact.Type{artifact.TypeResearch},
		ProducedArtifactType: artifact.TypeArchitecture,
		DescriptionTemplate:  "Design the architecture for: {{request}}",
		RoleSummary:          "Turns research findings into a concrete component and data-model design.",
		Timeout:              DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "test-master",
		ProgressPct:          40,
		RequiredUpstream:     []artifact.Type{artifact.TypeResearch, artifact.TypeArchitecture},
		ProducedArtifactType: artifact.TypeTestPlan,
		DescriptionTemplate: "Design the test plan for: {{request}}",
		RoleSummary:         "Derives test cases and a coverage strategy from the architecture.",
		Timeout:             DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "implementer",
		ProgressPct:          65,
		RequiredUpstream:     []artifact.Type{artifact.TypeArchitecture, artifact.TypeTestPlan},
		ProducedArtifactType: artifact.TypeImplementation,
		DescriptionTemplate: "Implement: {{request}}",
		RoleSummary:         "Writes the code and tests called for by the architecture and test plan.",
		Timeout:             DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "reviewer",
		ProgressPct:          80,
		RequiredUpstream:     []artifact.Type{artifact.TypeImplementation},
		ProducedArtifactType: artifact.TypeReview,
		DescriptionTemplate: "Review the implementation for: {{request}}",
		RoleSummary:         "Checks the implementation for correctness, clarity, and scope creep.",
		Parallelizable:      true,
		Timeout:             DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "security-auditor",
		ProgressPct:          80,
		RequiredUpstream:     []artifact.Type{artifact.TypeImplementation},
		ProducedArtifactType: artifact.TypeSecurity,
		DescriptionTemplate: "Audit the security posture of: {{request}}",
		RoleSummary:         "Validates the architecture's threat mitigations against the implementation.",
		Parallelizable:      true,
		Timeout:             DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "doc-master",
		ProgressPct:          80,
		RequiredUpstream:     []artifact.Type{artifact.TypeImplementation},
		ProducedArtifactType: artifact.TypeDocs,
		DescriptionTemplate: "Document: {{request}}",
		RoleSummary:         "Updates user-facing and developer documentation for the change.",
		Parallelizable:      true,
		Timeout:             DefaultTimeout,
	})
	r.add(AgentConfig{
		Name:                 "alignment-validator",
		ProgressPct:          0,
		RequiredUpstream:     nil,
		ProducedArtifactType: artifact.TypeAlignmentCheck,
		DescriptionTemplate:  "Assess whether the request is aligned with the project charter: {{request}}",
		RoleSummary:          "Decides whether a request falls within the charter's goals and scope.",
		Timeout:              DefaultTimeout,
	})

	return r
}

func (r *Registry) add(cfg AgentConfig) {
	r.configs[cfg.Name] = cfg
	r.order = append(r.order, cfg.Name)
}

// SetDefaultTimeout overrides every registered agent's invocation timeout,
// e.g. from the coordinator's configured stage_timeout. Call this before
// applying any YAML registry override file so an explicit per-agent
// timeout in that file still wins.
func (r *Registry) SetDefaultTimeout(d time.Duration) {
	for name, cfg := range r.configs {
		cfg.Timeout = d
		r.configs[name] = cfg
	}
}

// Get returns the configuration for agent, or false if unknown.
func (r *Registry) Get(agent string) (AgentConfig, bool) {
	cfg, ok := r.configs[agent]
	return cfg, ok
}

// Names returns every registered agent name, in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultPipeline is the default stage order from spec.md §4.7, excluding
// the ephemeral alignment-validator entry.
var DefaultPipeline = []string{
	"researcher", "planner", "test-master", "implementer",
	"reviewer", "security-auditor", "doc-master",
}

// ValidateAcyclic checks that the required-upstream-artifact graph implied
// by pipeline's agent configs is acyclic, per spec.md §9 ("the artifact DAG
// is strictly acyclic"). Uses the same DFS-cycle-detection shape as the
// teacher's dependency package, generalized from task dependencies to
// agent-produces/agent-requires edges.
func (r *Registry) ValidateAcyclic(pipeline []string) error {
	producedBy := make(map[artifact.Type]string, len(pipeline))
	for _, agent := range pipeline {
		cfg, ok := r.configs[agent]
		if !ok {
			return fmt.Errorf("agentruntime: unknown agent %q in pipeline", agent)
		}
		producedBy[cfg.ProducedArtifactType] = agent
	}

	graph := make(map[string][]string, len(pipeline))
	for _, agent := range pipeline {
		cfg := r.configs[agent]
		for _, upstream := range cfg.RequiredUpstream {
			if producer, ok := producedBy[upstream]; ok {
				graph[agent] = append(graph[agent], producer)
			}
		}
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string
	for _, agent := range pipeline {
		if cycle := detectCycle(agent, graph, visiting, visited, &path); cycle != nil {
			return fmt.Errorf("agentruntime: circular artifact dependency: %v", cycle)
		}
	}
	return nil
}

func detectCycle(node string, graph map[string][]string, visiting, visited map[string]bool, path *[]string) []string {
	if visited[node] {
		return nil
	}
	if visiting[node] {
		start := 0
		for i, n := range *path {
			if n == node {
				start = i
				break
			}
		}
		cycle := append(append([]string{}, (*path)[start:]...), node)
		return cycle
	}

	visiting[node] = true
	*path = append(*path, node)

	for _, dep := range graph[node] {
		if cycle := detectCycle(dep, graph, visiting, visited, path); cycle != nil {
			return cycle
		}
	}

	*path = (*path)[:len(*path)-1]
	visiting[node] = false
	visited[node] = true
	return nil
}

// SortedNames returns every registered agent name sorted alphabetically, for
// diagnostics (e.g. CLI listing).
func (r *Registry) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}

// ApplyOverride merges a partial AgentConfig into the entry already
// registered for name, replacing only the fields the caller set — used by
// the pipeline-registry YAML override file (see registry_yaml.go) to tune
// an existing agent's timeout, prompt template, or parallelism without
// redeclaring its upstream/produced-artifact wiring.
func (r *Registry) ApplyOverride(name string, override AgentConfigOverride) error {
	cfg, ok := r.configs[name]
	if !ok {
		return fmt.Errorf("agentruntime: cannot override unknown agent %q", name)
	}
	if override.DescriptionTemplate != nil {
		cfg.DescriptionTemplate = *override.DescriptionTemplate
	}
	if override.RoleSummary != nil {
		cfg.RoleSummary = *override.RoleSummary
	}
	if override.OptionalModelHint != nil {
		cfg.OptionalModelHint = *override.OptionalModelHint
	}
	if override.Parallelizable != nil {
		cfg.Parallelizable = *override.Parallelizable
	}
	if override.Timeout != nil {
		cfg.Timeout = *override.Timeout
	}
	r.configs[name] = cfg
	return nil
}

// AgentConfigOverride is the partial form of AgentConfig the YAML override
// file may specify: unset (nil) fields leave the registry default in place.
type AgentConfigOverride struct {
	DescriptionTemplate *string
	RoleSummary         *string
	OptionalModelHint   *string
	Parallelizable      *bool
	Timeout             *time.Duration
}
