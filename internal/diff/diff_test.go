package diff

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/release-plz-go/internal/gitgw"
	"github.com/grovetools/release-plz-go/internal/model"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=tester", "GIT_AUTHOR_EMAIL=tester@example.com",
		"GIT_COMMITTER_NAME=tester", "GIT_COMMITTER_EMAIL=tester@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func initRepoWithPackage(t *testing.T) (repoDir string, pkgDir string) {
	t.Helper()
	repoDir = t.TempDir()
	runGit(t, repoDir, "init", "-q")
	pkgDir = filepath.Join(repoDir, "crates", "foo")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "lib.rs"), []byte("pub fn one() -> u32 { 1 }\n"), 0o644))
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "feat: initial")
	return repoDir, pkgDir
}

func newPkg(dir string) *model.Package {
	v := semver.MustParse("0.1.0")
	return &model.Package{Name: "foo", Version: v, Dir: dir}
}

func TestResolve_NoPublishedTwin_AccumulatesAllCommits(t *testing.T) {
	repoDir, pkgDir := initRepoWithPackage(t)

	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "lib.rs"), []byte("pub fn one() -> u32 { 2 }\n"), 0o644))
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "fix: bump return value")

	r := New(gitgw.New(repoDir), nil)
	d, err := r.Resolve(context.Background(), newPkg(pkgDir), PublishedContext{Exists: false})
	require.NoError(t, err)

	require.Len(t, d.Commits, 2)
	require.False(t, d.RegistryPackageExists)
	require.False(t, d.ShouldUpdateVersion())
}

func TestResolve_PublishedTreeMatchesStopsWalk(t *testing.T) {
	repoDir, pkgDir := initRepoWithPackage(t)

	publishedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(publishedDir, "lib.rs"), []byte("pub fn one() -> u32 { 1 }\n"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "lib.rs"), []byte("pub fn one() -> u32 { 2 }\n"), 0o644))
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "fix: bump return value")

	r := New(gitgw.New(repoDir), nil)
	pkg := newPkg(pkgDir)
	d, err := r.Resolve(context.Background(), pkg, PublishedContext{
		Exists:  true,
		Version: "0.1.0",
		TreeDir: publishedDir,
	})
	require.NoError(t, err)

	require.Len(t, d.Commits, 1)
	require.True(t, d.ShouldUpdateVersion())
}

func TestResolve_CommitSHAKnown_OnlyLaterCommits(t *testing.T) {
	repoDir, pkgDir := initRepoWithPackage(t)
	repo := gitgw.New(repoDir)
	firstSHA, err := repo.CurrentCommitHash(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "lib.rs"), []byte("pub fn two() -> u32 { 2 }\n"), 0o644))
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "feat: add two")

	r := New(repo, nil)
	d, err := r.Resolve(context.Background(), newPkg(pkgDir), PublishedContext{
		Exists:    true,
		Version:   "0.1.0",
		CommitSHA: firstSHA,
	})
	require.NoError(t, err)
	require.Len(t, d.Commits, 1)
	require.Equal(t, "feat: add two\n", d.Commits[0].Message)
}

func TestTreesEqual_IgnoresVCSInfoAndGitDir(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(a, "lib.rs"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "lib.rs"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a, ".cargo_vcs_info.json"), []byte(`{"git":{"sha1":"x"}}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(b, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))

	equal, err := treesEqual(a, b)
	require.NoError(t, err)
	require.True(t, equal)
}
