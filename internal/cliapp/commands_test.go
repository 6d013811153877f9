package cliapp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowhq/devflow/internal/config"
)

func TestRunInit_ScaffoldsCharterAndConfig(t *testing.T) {
	dir := t.TempDir()
	prev := GlobalFlags.ProjectDir
	GlobalFlags.ProjectDir = dir
	defer func() { GlobalFlags.ProjectDir = prev }()

	prevCfg := ResolvedConfig
	ResolvedConfig = &config.CoordinatorConfig{CharterPath: filepath.Join(dir, "PROJECT.md")}
	defer func() { ResolvedConfig = prevCfg }()

	err := runInit(initCmd, nil)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "PROJECT.md"))
	assert.FileExists(t, filepath.Join(dir, ".devflow.yaml"))
}

func TestRunInit_DoesNotOverwriteExistingCharter(t *testing.T) {
	dir := t.TempDir()
	prev := GlobalFlags.ProjectDir
	GlobalFlags.ProjectDir = dir
	defer func() { GlobalFlags.ProjectDir = prev }()

	charterPath := filepath.Join(dir, "PROJECT.md")
	require.NoError(t, os.WriteFile(charterPath, []byte("custom content"), 0o644))

	prevCfg := ResolvedConfig
	ResolvedConfig = &config.CoordinatorConfig{CharterPath: charterPath}
	defer func() { ResolvedConfig = prevCfg }()

	require.NoError(t, runInit(initCmd, nil))

	content, err := os.ReadFile(charterPath)
	require.NoError(t, err)
	assert.Equal(t, "custom content", string(content))
}

func TestJoinArgs_ConcatenatesWithSpaces(t *testing.T) {
	assert.Equal(t, "add auth support", joinArgs([]string{"add", "auth", "support"}))
}
