package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/release-plz-go/internal/config"
	"github.com/grovetools/release-plz-go/internal/model"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
}

func newTestWorkspace(t *testing.T) (*model.Workspace, string) {
	t.Helper()
	root := t.TempDir()

	aDir := filepath.Join(root, "crate-a")
	bDir := filepath.Join(root, "crate-b")
	require.NoError(t, os.MkdirAll(aDir, 0o755))
	require.NoError(t, os.MkdirAll(bDir, 0o755))

	aManifest := writeManifest(t, aDir, "[package]\nname = \"crate-a\"\nversion = \"1.0.0\"\n")
	bManifest := writeManifest(t, bDir, "[package]\nname = \"crate-b\"\nversion = \"1.0.0\"\n\n"+
		"[dependencies]\ncrate-a = { path = \"../crate-a\", version = \"1.0.0\" }\n")

	pkgA := &model.Package{
		Name:         "crate-a",
		Version:      mustVersion(t, "1.0.0"),
		ManifestPath: aManifest,
		Dir:          aDir,
	}
	pkgB := &model.Package{
		Name:         "crate-b",
		Version:      mustVersion(t, "1.0.0"),
		ManifestPath: bManifest,
		Dir:          bDir,
		Deps: []model.Dependency{
			{Name: "crate-a", Kind: model.DepNormal, Path: "../crate-a", Req: "1.0.0"},
		},
	}

	ws := &model.Workspace{
		RootDir:      root,
		RootManifest: filepath.Join(root, "Cargo.toml"),
		Packages:     []*model.Package{pkgA, pkgB},
	}
	return ws, root
}

func TestPlan_BumpsOnlyChangedPackage(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	cfg := &config.Config{Workspace: config.WorkspaceConfig{PackageDefaults: config.PackageDefaults{Publish: true}}}

	pl := New(ws, cfg, nil, nil)
	pl.Now = fixedNow

	diffs := map[string]model.Diff{
		"crate-a": {
			RegistryPackageExists: true,
			Commits:               []model.Commit{{ID: "c1", Message: "feat: add thing"}},
		},
	}

	update, err := pl.Plan(context.Background(), diffs, nil)
	require.NoError(t, err)

	byName := map[string]model.UpdateResult{}
	for _, r := range update.Results {
		byName[r.Package.Name] = r
	}

	require.Contains(t, byName, "crate-a")
	assert.Equal(t, "1.1.0", byName["crate-a"].NextVersion)
	assert.NotEmpty(t, byName["crate-a"].ChangelogText)
}

func TestPlan_PropagatesToDependent(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	cfg := &config.Config{Workspace: config.WorkspaceConfig{PackageDefaults: config.PackageDefaults{Publish: true}}}

	pl := New(ws, cfg, nil, nil)
	pl.Now = fixedNow

	diffs := map[string]model.Diff{
		"crate-a": {
			RegistryPackageExists: true,
			Commits:               []model.Commit{{ID: "c1", Message: "fix: bug"}},
		},
	}

	update, err := pl.Plan(context.Background(), diffs, nil)
	require.NoError(t, err)

	byName := map[string]model.UpdateResult{}
	for _, r := range update.Results {
		byName[r.Package.Name] = r
	}

	require.Contains(t, byName, "crate-b")
	assert.Equal(t, "1.0.1", byName["crate-b"].NextVersion, "dependent gets a patch bump because its manifest requirement changes")

	bManifest, err := os.ReadFile(byName["crate-b"].Package.ManifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(bManifest), "version = \"1.0.1\"")
}

func TestPlan_NoChangesMeansNoUpdates(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	cfg := &config.Config{Workspace: config.WorkspaceConfig{PackageDefaults: config.PackageDefaults{Publish: true}}}

	pl := New(ws, cfg, nil, nil)
	pl.Now = fixedNow

	update, err := pl.Plan(context.Background(), map[string]model.Diff{}, nil)
	require.NoError(t, err)

	for _, r := range update.Results {
		assert.True(t, r.NoUnpublishedChanges)
		assert.Empty(t, r.NextVersion)
	}
}
