package cargoexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grovetools/release-plz-go/internal/apperrors"
)

// fakeCargo drops a `cargo` shell shim on PATH that records its argv to
// argsFile and writes stderr/exits with the given code, standing in for
// the real cargo binary so these tests don't shell out to it.
func fakeCargo(t *testing.T, stderr string, exitCode int) (argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake cargo shim is a POSIX shell script")
	}

	binDir := t.TempDir()
	argsFile = filepath.Join(binDir, "args.txt")
	stderrFile := filepath.Join(binDir, "stderr.txt")
	require.NoError(t, os.WriteFile(stderrFile, []byte(stderr), 0o644))

	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' \"$@\" > %q\ncat %q >&2\nexit %d\n", argsFile, stderrFile, exitCode)
	path := filepath.Join(binDir, "cargo")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsFile
}

func TestUpdateLockfile_DefaultScopesToWorkspace(t *testing.T) {
	argsFile := fakeCargo(t, "", 0)

	r := New(t.TempDir())
	require.NoError(t, r.UpdateLockfile(context.Background(), false))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "update\n--workspace\n", string(data))
}

func TestUpdateLockfile_UpdateAllOmitsWorkspaceFlag(t *testing.T) {
	argsFile := fakeCargo(t, "", 0)

	r := New(t.TempDir())
	require.NoError(t, r.UpdateLockfile(context.Background(), true))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "update\n", string(data))
}

func TestUpdateLockfile_NonZeroExitWrapsSentinel(t *testing.T) {
	fakeCargo(t, "error: could not resolve", 1)

	r := New(t.TempDir())
	err := r.UpdateLockfile(context.Background(), false)
	require.ErrorIs(t, err, apperrors.ErrGitCommandFailed)
	require.ErrorContains(t, err, "could not resolve")
}

func TestPublish_SucceedsOnUploadingStderr(t *testing.T) {
	argsFile := fakeCargo(t, "   Uploading foo v0.1.0\n", 0)

	r := New(t.TempDir())
	err := r.Publish(context.Background(), PublishOptions{
		Package:  "foo",
		Registry: "crates-io",
		Token:    "tok",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "publish\n--package\nfoo\n--registry\ncrates-io\n--token\ntok\n", string(data))
}

func TestPublish_FailsWhenStderrContainsErrorTextDespiteZeroExit(t *testing.T) {
	fakeCargo(t, "   Uploading foo v0.1.0\nerror: failed to verify package tarball\n", 0)

	r := New(t.TempDir())
	err := r.Publish(context.Background(), PublishOptions{Package: "foo"})
	require.ErrorIs(t, err, apperrors.ErrPublishFailed)
}

func TestPublish_FailsWhenUploadingNeverAppears(t *testing.T) {
	fakeCargo(t, "   Compiling foo v0.1.0\n", 0)

	r := New(t.TempDir())
	err := r.Publish(context.Background(), PublishOptions{Package: "foo"})
	require.ErrorIs(t, err, apperrors.ErrPublishFailed)
}

func TestPublish_OptionsRenderAllFlags(t *testing.T) {
	argsFile := fakeCargo(t, "Uploading\n", 0)

	r := New(t.TempDir())
	require.NoError(t, r.Publish(context.Background(), PublishOptions{
		ManifestPath: "crates/foo/Cargo.toml",
		Package:      "foo",
		DryRun:       true,
		AllowDirty:   true,
		NoVerify:     true,
		AllFeatures:  true,
		Features:     []string{"ignored-because-all-features-wins"},
	}))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "publish\n--manifest-path\ncrates/foo/Cargo.toml\n--package\nfoo\n--dry-run\n--allow-dirty\n--no-verify\n--all-features\n", string(data))
}
