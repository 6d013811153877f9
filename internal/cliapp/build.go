package cliapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devflowhq/devflow/internal/agentruntime"
	"github.com/devflowhq/devflow/internal/alignment"
	"github.com/devflowhq/devflow/internal/artifact"
	"github.com/devflowhq/devflow/internal/config"
	"github.com/devflowhq/devflow/internal/coordinator"
	"github.com/devflowhq/devflow/internal/eventlog"
)

// buildCoordinator wires a coordinator.Coordinator from the resolved config,
// the way the teacher's commands wire a repository.DB + service from
// cli.GetDBPath() + db.InitDB. The artifact store (plain JSON files) is the
// durable state and the agent runtime is an external process; the only SQL
// database in the system is the derived event-log summary index opened
// below, which can always be deleted and rebuilt from the JSONL logs.
func buildCoordinator(cfg *config.CoordinatorConfig) (*coordinator.Coordinator, *artifact.Store, error) {
	store, err := artifact.NewStore(cfg.ArtifactStoreRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("cliapp: failed to open artifact store: %w", err)
	}

	if err := os.MkdirAll(cfg.LogRoot, 0o755); err != nil {
		return nil, nil, fmt.Errorf("cliapp: failed to create log root %s: %w", cfg.LogRoot, err)
	}
	index, err := eventlog.OpenIndex(context.Background(), filepath.Join(cfg.LogRoot, "index.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("cliapp: failed to open event log index: %w", err)
	}

	registry := agentruntime.NewDefaultRegistry()
	registry.SetDefaultTimeout(cfg.StageTimeout)
	if cfg.RegistryOverridesPath != "" {
		if err := agentruntime.LoadRegistryOverrides(registry, cfg.RegistryOverridesPath); err != nil {
			return nil, nil, fmt.Errorf("cliapp: failed to apply registry overrides: %w", err)
		}
	}
	runtime := &agentruntime.ProcessRuntime{
		Command:     cfg.AgentRuntimeCommand,
		ExtraArgs:   cfg.AgentRuntimeArgs,
		ArtifactDir: cfg.ArtifactStoreRoot,
		LogDir:      cfg.LogRoot,
	}
	validatorRuntime := &subagentAlignmentRuntime{
		registry: registry,
		store:    store,
		runtime:  runtime,
		logRoot:  cfg.LogRoot,
	}

	c := &coordinator.Coordinator{
		CharterPath:         cfg.CharterPath,
		Store:               store,
		LogRoot:             cfg.LogRoot,
		Registry:            registry,
		Validator:           alignment.NewValidator(validatorRuntime),
		Runtime:             runtime,
		Pipeline:            cfg.EffectivePipeline(),
		Index:               index,
		ParallelClusterSize: cfg.ParallelClusterSize,
	}
	return c, store, nil
}
