// Package cliapp wires the devflow CLI: a thin Cobra command tree over the
// coordinator, config, and artifact store packages. It deliberately mirrors
// the teacher's internal/cli bootstrap (global flags, PersistentPreRunE
// config init, viper-backed overrides), but every command resolves an
// artifact.Store and a coordinator.Coordinator; the only database it opens
// is the derived SQLite event-log summary index (see buildCoordinator).
package cliapp

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devflowhq/devflow/internal/config"
)

// Globals holds CLI-wide flags, bound to viper the way the teacher's
// Config/GlobalConfig pair does.
type Globals struct {
	JSON       bool
	NoColor    bool
	Verbose    bool
	ConfigFile string
	ProjectDir string
}

// GlobalFlags is the shared configuration instance for the running process.
var GlobalFlags = &Globals{}

// ResolvedConfig is populated by initConfig during PersistentPreRunE and
// read by every subcommand.
var ResolvedConfig *config.CoordinatorConfig

// RootCmd is the base command when devflow is called without subcommands.
var RootCmd = &cobra.Command{
	Use:   "devflow",
	Short: "devflow - multi-agent development workflow coordinator",
	Long: `devflow drives a pipeline of specialized agents (by default researcher,
planner, test-master, implementer, reviewer, security-auditor, doc-master)
against a project charter, producing a versioned trail of JSON artifacts
and an append-only event log for every workflow it runs.`,
	Version: "dev",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if GlobalFlags.NoColor {
			pterm.DisableColor()
		}
		if GlobalFlags.Verbose {
			pterm.EnableDebugMessages()
		}
		return nil
	},
}

// SetVersion sets the version string from build-time injection.
func SetVersion(version string) {
	RootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&GlobalFlags.JSON, "json", false, "Output in JSON format (machine-readable)")
	RootCmd.PersistentFlags().BoolVar(&GlobalFlags.NoColor, "no-color", false, "Disable colored output")
	RootCmd.PersistentFlags().BoolVarP(&GlobalFlags.Verbose, "verbose", "v", false, "Enable verbose/debug output")
	RootCmd.PersistentFlags().StringVar(&GlobalFlags.ConfigFile, "config", "", "Config file path (default: .devflow.yaml)")
	RootCmd.PersistentFlags().StringVar(&GlobalFlags.ProjectDir, "dir", ".", "Project directory (where PROJECT.md and .devflow.yaml live)")

	if err := viper.BindPFlag("json", RootCmd.PersistentFlags().Lookup("json")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("no-color", RootCmd.PersistentFlags().Lookup("no-color")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("verbose", RootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(err)
	}
}

// initConfig loads the project's .devflow.yaml (or the explicit --config
// file) via internal/config and stashes the result in ResolvedConfig.
func initConfig() error {
	projectDir := GlobalFlags.ProjectDir
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}
	projectDir = abs

	if GlobalFlags.Verbose {
		pterm.Debug.Printf("Project directory: %s\n", projectDir)
	}

	var searchPaths []string
	if GlobalFlags.ConfigFile != "" {
		searchPaths = []string{filepath.Dir(GlobalFlags.ConfigFile)}
	} else {
		searchPaths = []string{projectDir}
	}

	cfg, err := config.Load(searchPaths...)
	if err != nil {
		return err
	}

	if !filepath.IsAbs(cfg.CharterPath) {
		cfg.CharterPath = filepath.Join(projectDir, cfg.CharterPath)
	}
	if !filepath.IsAbs(cfg.ArtifactStoreRoot) {
		cfg.ArtifactStoreRoot = filepath.Join(projectDir, cfg.ArtifactStoreRoot)
	}
	if !filepath.IsAbs(cfg.LogRoot) {
		cfg.LogRoot = filepath.Join(projectDir, cfg.LogRoot)
	}
	if cfg.RegistryOverridesPath != "" && !filepath.IsAbs(cfg.RegistryOverridesPath) {
		cfg.RegistryOverridesPath = filepath.Join(projectDir, cfg.RegistryOverridesPath)
	}

	ResolvedConfig = cfg
	return nil
}
