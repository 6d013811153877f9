package agentruntime

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlOverrideFile is the on-disk shape of a pipeline-registry override
// file: a map of agent name to the subset of its configuration an operator
// wants to tune, without touching Go source. Mirrors the teacher's use of
// YAML for operator-editable config layered on top of compiled-in defaults.
type yamlOverrideFile struct {
	Agents map[string]yamlAgentOverride `yaml:"agents"`
}

type yamlAgentOverride struct {
	DescriptionTemplate *string `yaml:"description_template"`
	RoleSummary         *string `yaml:"role_summary"`
	OptionalModelHint   *string `yaml:"optional_model_hint"`
	Parallelizable      *bool   `yaml:"parallelizable"`
	Timeout             *string `yaml:"timeout"`
}

// LoadRegistryOverrides reads a pipeline-registry YAML override file at
// path and applies every entry to reg. A missing file is not an error:
// callers typically pass an optional, operator-provided path.
func LoadRegistryOverrides(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("agentruntime: failed to read registry override file %s: %w", path, err)
	}

	var file yamlOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("agentruntime: failed to parse registry override file %s: %w", path, err)
	}

	for name, o := range file.Agents {
		override := AgentConfigOverride{
			DescriptionTemplate: o.DescriptionTemplate,
			RoleSummary:         o.RoleSummary,
			OptionalModelHint:   o.OptionalModelHint,
			Parallelizable:      o.Parallelizable,
		}
		if o.Timeout != nil {
			d, err := time.ParseDuration(*o.Timeout)
			if err != nil {
				return fmt.Errorf("agentruntime: invalid timeout for agent %q in %s: %w", name, path, err)
			}
			override.Timeout = &d
		}
		if err := reg.ApplyOverride(name, override); err != nil {
			return fmt.Errorf("agentruntime: %w (from %s)", err, path)
		}
	}
	return nil
}
