// Package cargoexec shells out to the `cargo` binary for the two
// operations the release engine needs: refreshing the lockfile
// (spec.md §4.7) and publishing a package (spec.md §4.9 step: "If
// publish enabled: run `cargo publish` with computed flags").
//
// Grounded on the teacher's exec.Command-based shelling style in
// internal/gitgw (itself grounded on pkg/gh/client.go): CommandContext,
// cmd.Dir pinned, stderr captured into the returned error.
package cargoexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/grovetools/release-plz-go/internal/apperrors"
)

// Runner shells to cargo rooted at a workspace directory.
type Runner struct {
	Dir string
}

// New returns a Runner rooted at dir (a Cargo workspace root).
func New(dir string) *Runner {
	return &Runner{Dir: dir}
}

func (r *Runner) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = r.Dir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	return outBuf.String(), errBuf.String(), runErr
}

// UpdateLockfile runs `cargo update --workspace`, or plain
// `cargo update` when updateAll is set (spec.md §4.7).
func (r *Runner) UpdateLockfile(ctx context.Context, updateAll bool) error {
	args := []string{"update"}
	if !updateAll {
		args = append(args, "--workspace")
	}
	_, stderr, err := r.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("cargoexec: %w: cargo %s: %s", apperrors.ErrGitCommandFailed, strings.Join(args, " "), strings.TrimSpace(stderr))
	}
	return nil
}

// PublishOptions mirrors the flag set spec.md §4.9 names for `cargo publish`.
type PublishOptions struct {
	ManifestPath string
	Package      string
	Registry     string
	Token        string
	DryRun       bool
	AllowDirty   bool
	NoVerify     bool
	Features     []string
	AllFeatures  bool
}

func (o PublishOptions) args() []string {
	args := []string{"publish"}
	if o.ManifestPath != "" {
		args = append(args, "--manifest-path", o.ManifestPath)
	}
	if o.Package != "" {
		args = append(args, "--package", o.Package)
	}
	if o.Registry != "" {
		args = append(args, "--registry", o.Registry)
	}
	if o.Token != "" {
		args = append(args, "--token", o.Token)
	}
	if o.DryRun {
		args = append(args, "--dry-run")
	}
	if o.AllowDirty {
		args = append(args, "--allow-dirty")
	}
	if o.NoVerify {
		args = append(args, "--no-verify")
	}
	if o.AllFeatures {
		args = append(args, "--all-features")
	} else if len(o.Features) > 0 {
		args = append(args, "--features", strings.Join(o.Features, ","))
	}
	return args
}

// Publish runs `cargo publish` with opts' flags. Success is judged the
// way spec.md §4.9 names it: stderr containing "Uploading" and not
// containing "error:" (cargo's own textual convention, since it has no
// machine-readable publish output).
func (r *Runner) Publish(ctx context.Context, opts PublishOptions) error {
	_, stderr, runErr := r.run(ctx, opts.args()...)

	uploaded := strings.Contains(stderr, "Uploading")
	failed := strings.Contains(stderr, "error:")

	if runErr != nil || failed || !uploaded {
		return fmt.Errorf("cargoexec: %w: %s", apperrors.ErrPublishFailed, strings.TrimSpace(stderr))
	}
	return nil
}
