package registry

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initGitIndexRepo(t *testing.T, crateFile, content string) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com", "GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	full := filepath.Join(dir, crateFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "index update")
	// A self-referencing origin lets IsPublished's cache-miss fetch
	// succeed without a real network remote.
	run("remote", "add", "origin", dir)
	return dir
}

func TestGitIndex_LatestPublished_SortsBySemverNotFileOrder(t *testing.T) {
	// Lines intentionally out of ascending order to prove sorting, not
	// file-order trust, decides the winner.
	content := `{"name":"widget","vers":"1.2.0","cksum":"a","yanked":false}
{"name":"widget","vers":"1.10.0","cksum":"b","yanked":false}
{"name":"widget","vers":"2.0.0","cksum":"c","yanked":true}
{"name":"widget","vers":"1.9.0","cksum":"d","yanked":false}
`
	dir := initGitIndexRepo(t, "wi/dg/widget", content)
	idx := NewGitIndex(dir)

	version, ok, err := idx.LatestPublished(context.Background(), "widget")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1.10.0", version)
}

func TestGitIndex_LatestPublished_UnknownCrate(t *testing.T) {
	dir := initGitIndexRepo(t, "wi/dg/widget", `{"name":"widget","vers":"1.0.0","cksum":"a","yanked":false}`+"\n")
	idx := NewGitIndex(dir)

	_, ok, err := idx.LatestPublished(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGitIndex_IsPublished_FindsExactVersion(t *testing.T) {
	content := `{"name":"widget","vers":"1.0.0","cksum":"a","yanked":false}
{"name":"widget","vers":"1.1.0","cksum":"b","yanked":false}
`
	dir := initGitIndexRepo(t, "wi/dg/widget", content)
	idx := NewGitIndex(dir)

	found, err := idx.IsPublished(context.Background(), "widget", "1.1.0")
	require.NoError(t, err)
	require.True(t, found)

	found, err = idx.IsPublished(context.Background(), "widget", "9.9.9")
	require.NoError(t, err)
	require.False(t, found)
}
