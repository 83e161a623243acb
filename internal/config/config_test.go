package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "release-plz.toml", "")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Workspace.Changelog)
	assert.Equal(t, "CHANGELOG.md", cfg.Workspace.ChangelogPath)
	assert.Equal(t, "release-plz-", cfg.Workspace.PRBranchPrefix)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Workspace.Publish)
}

func TestForPackage_OverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "release-plz.toml", `
[workspace]
changelog = true
publish = true

[[package]]
name = "foo"
publish = false
`)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	foo := cfg.ForPackage("foo")
	assert.False(t, foo.Publish)
	assert.True(t, foo.Changelog) // untouched by the override

	bar := cfg.ForPackage("bar")
	assert.True(t, bar.Publish) // no override at all
}

func TestLoadWorkspaceYAMLAlias(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	writeFile(t, dir, "workspace.yml", "pr_branch_prefix: custom-\nallow_dirty: true\n")
	require.NoError(t, LoadWorkspaceYAMLAlias(cfg, dir))

	assert.Equal(t, "custom-", cfg.Workspace.PRBranchPrefix)
	assert.True(t, cfg.Workspace.AllowDirty)
}
