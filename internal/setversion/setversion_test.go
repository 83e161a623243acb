package setversion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/release-plz-go/internal/model"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

func newTestWorkspace(t *testing.T) (*model.Workspace, string) {
	t.Helper()
	root := t.TempDir()

	aDir := filepath.Join(root, "crate-a")
	bDir := filepath.Join(root, "crate-b")
	require.NoError(t, os.MkdirAll(aDir, 0o755))
	require.NoError(t, os.MkdirAll(bDir, 0o755))

	aManifest := filepath.Join(aDir, "Cargo.toml")
	require.NoError(t, os.WriteFile(aManifest, []byte("[package]\nname = \"crate-a\"\nversion = \"1.0.0\"\n"), 0o644))

	bManifest := filepath.Join(bDir, "Cargo.toml")
	require.NoError(t, os.WriteFile(bManifest, []byte(
		"[package]\nname = \"crate-b\"\nversion = \"1.0.0\"\n\n"+
			"[dependencies]\ncrate-a = { path = \"../crate-a\", version = \"1.0.0\" }\n"), 0o644))

	ws := &model.Workspace{
		RootDir:      root,
		RootManifest: filepath.Join(root, "Cargo.toml"),
		Packages: []*model.Package{
			{Name: "crate-a", Version: mustVersion(t, "1.0.0"), ManifestPath: aManifest, Dir: aDir},
			{
				Name: "crate-b", Version: mustVersion(t, "1.0.0"), ManifestPath: bManifest, Dir: bDir,
				Deps: []model.Dependency{{Name: "crate-a", Kind: model.DepNormal, Path: "../crate-a", Req: "1.0.0"}},
			},
		},
	}
	return ws, root
}

func TestApply_SetsExplicitVersionAndPropagatesToDependent(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	err := Apply(ws, []Change{{Package: "crate-a", Version: "3.5.0"}})
	require.NoError(t, err)

	a, _ := ws.PackageByName("crate-a")
	assert.Equal(t, "3.5.0", a.Version.String())

	aManifest, err := os.ReadFile(a.ManifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(aManifest), "version = \"3.5.0\"")

	b, _ := ws.PackageByName("crate-b")
	bManifest, err := os.ReadFile(b.ManifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(bManifest), "version = \"3.5.0\"")
}

func TestApply_UnknownPackageErrors(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	err := Apply(ws, []Change{{Package: "does-not-exist", Version: "1.0.0"}})
	require.Error(t, err)
}

func TestApply_InvalidVersionErrors(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	err := Apply(ws, []Change{{Package: "crate-a", Version: "not-a-version"}})
	require.Error(t, err)
}

func TestApply_DoesNotTouchUnrelatedPackage(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	err := Apply(ws, []Change{{Package: "crate-b", Version: "9.9.9"}})
	require.NoError(t, err)

	a, _ := ws.PackageByName("crate-a")
	assert.Equal(t, "1.0.0", a.Version.String())

	b, _ := ws.PackageByName("crate-b")
	assert.Equal(t, "9.9.9", b.Version.String())
}
