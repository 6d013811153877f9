// Package config loads the coordinator's configuration via viper, mirroring
// the teacher's .sharkconfig.json + flag-binding pattern but for a single
// .devflow.yaml file plus environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// CoordinatorConfig holds every option the workflow coordinator exposes,
// enumerated up front per spec.md §9 ("configuration as sum type").
type CoordinatorConfig struct {
	CharterPath           string        `mapstructure:"charter_path"`
	ArtifactStoreRoot     string        `mapstructure:"artifact_store_root"`
	LogRoot               string        `mapstructure:"log_root"`
	StageTimeout          time.Duration `mapstructure:"stage_timeout"`
	ParallelClusterSize   int           `mapstructure:"parallel_cluster_size"`
	PipelineOverride      []string      `mapstructure:"pipeline_override"`
	AgentRuntimeCommand   string        `mapstructure:"agent_runtime_command"`
	AgentRuntimeArgs      []string      `mapstructure:"agent_runtime_args"`
	RegistryOverridesPath string        `mapstructure:"registry_overrides_path"`
}

// Defaults mirrors the teacher's workflow_default.go: named constants
// applied when a .devflow.yaml is absent or a field is unset.
var Defaults = CoordinatorConfig{
	CharterPath:         "PROJECT.md",
	ArtifactStoreRoot:   ".devflow/artifacts",
	LogRoot:             ".devflow/artifacts/logs/workflows",
	StageTimeout:        30 * time.Minute,
	ParallelClusterSize: 3,
	AgentRuntimeCommand: "devflow-agent",
}

// Load reads .devflow.yaml from searchPaths (in order), falling back to
// Defaults for anything unset. A missing config file is not an error: the
// coordinator can run entirely on defaults.
func Load(searchPaths ...string) (*CoordinatorConfig, error) {
	v := viper.New()
	v.SetConfigName(".devflow")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("DEVFLOW")
	v.AutomaticEnv()

	v.SetDefault("charter_path", Defaults.CharterPath)
	v.SetDefault("artifact_store_root", Defaults.ArtifactStoreRoot)
	v.SetDefault("log_root", Defaults.LogRoot)
	v.SetDefault("stage_timeout", Defaults.StageTimeout)
	v.SetDefault("parallel_cluster_size", Defaults.ParallelClusterSize)
	v.SetDefault("agent_runtime_command", Defaults.AgentRuntimeCommand)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: failed to read .devflow.yaml: %w", err)
		}
	}

	cfg := &CoordinatorConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode configuration: %w", err)
	}
	if cfg.ParallelClusterSize <= 0 {
		cfg.ParallelClusterSize = Defaults.ParallelClusterSize
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = Defaults.StageTimeout
	}
	return cfg, nil
}

// EffectivePipeline returns the explicit override if set, else nil so the
// caller falls back to the agentruntime package's DefaultPipeline — per
// spec.md §4.7's tie-break: "If two pipelines are possible ... the explicit
// override wins."
func (c *CoordinatorConfig) EffectivePipeline() []string {
	if len(c.PipelineOverride) > 0 {
		return c.PipelineOverride
	}
	return nil
}
