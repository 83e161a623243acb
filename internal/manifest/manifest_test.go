package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `[package]
name = "foo"
version = "1.2.3" # keep this comment
edition = "2021"

[dependencies]
serde = "1.0"
pkg = { path = "../pkg", version = "1.2.3" }

[dev-dependencies]
assert_cmd = "2"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_PackageVersion(t *testing.T) {
	path := writeTemp(t, sampleManifest)
	m, err := Load(path)
	require.NoError(t, err)

	v, inherited := m.PackageVersion()
	assert.Equal(t, "1.2.3", v)
	assert.False(t, inherited)
}

func TestSetPackageVersion_PreservesComment(t *testing.T) {
	path := writeTemp(t, sampleManifest)
	m, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, m.SetPackageVersion("1.2.4"))
	out := string(m.Raw())

	assert.Contains(t, out, `version = "1.2.4" # keep this comment`)
	assert.Contains(t, out, `name = "foo"`)
	assert.Contains(t, out, `serde = "1.0"`)
}

func TestSetDependencyVersion_InlineTable(t *testing.T) {
	path := writeTemp(t, sampleManifest)
	m, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, m.SetDependencyVersion("dependencies", "pkg", "1.2.4"))
	out := string(m.Raw())
	assert.Contains(t, out, `pkg = { path = "../pkg", version = "1.2.4" }`)
}

func TestSetDependencyVersion_BareString(t *testing.T) {
	path := writeTemp(t, sampleManifest)
	m, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, m.SetDependencyVersion("dependencies", "serde", "1.1"))
	out := string(m.Raw())
	assert.Contains(t, out, `serde = "1.1"`)
}

func TestWrite_RoundTrip(t *testing.T) {
	path := writeTemp(t, sampleManifest)
	m, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, m.SetPackageVersion("1.2.4"))
	require.NoError(t, m.Write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `version = "1.2.4"`)
}

func TestWorkspaceInheritedVersion(t *testing.T) {
	content := `[package]
name = "foo"
version.workspace = true
`
	path := writeTemp(t, content)
	m, err := Load(path)
	require.NoError(t, err)
	v, inherited := m.PackageVersion()
	assert.Equal(t, "", v)
	assert.True(t, inherited)
}

// S5 — requirement rewriting.
func TestUpgradeRequirement_CaretKeepsShape(t *testing.T) {
	next, _ := semver.NewVersion("1.2.4")
	req, err := UpgradeRequirement("^1", next)
	require.NoError(t, err)
	assert.Equal(t, "^1", req)

	req2, err := UpgradeRequirement("1.2.3", next)
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", req2)
}

func TestUpgradeRequirement_Wildcard(t *testing.T) {
	next, _ := semver.NewVersion("1.3.0")
	req, err := UpgradeRequirement("1.*.*", next)
	require.NoError(t, err)
	assert.Equal(t, "1.*.*", req)
}

func TestUpgradeRequirement_UnsupportedOperator(t *testing.T) {
	next, _ := semver.NewVersion("1.3.0")
	_, err := UpgradeRequirement(">=1.0, <2.0", next)
	assert.Error(t, err)
}
