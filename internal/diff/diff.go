// Package diff implements the package-diff resolver: for a single
// workspace package it decides which commits are unreleased with respect
// to the last thing published, and therefore whether a version bump is
// warranted at all (spec.md §4.6).
//
// Grounded on the teacher's git shell-out style in internal/gitgw (itself
// grounded on pkg/gh/client.go) for log/archive plumbing, and on
// crates/release_plz_core/src/diff.rs in original_source/ for the
// tree-equality stopping rule.
package diff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/release-plz-go/internal/gitgw"
	"github.com/grovetools/release-plz-go/internal/model"
)

// PublishedContext describes what the registry (or a matching git tag)
// knows about a package's last publish, as gathered by the caller before
// invoking Resolve.
type PublishedContext struct {
	Exists bool
	// Version is the last published version string, used only for the
	// "local branch has already moved on" check in step 2.
	Version string
	// CommitSHA is the commit the publish corresponds to, when known
	// directly (from .cargo_vcs_info.json or a matching tag). When set,
	// Resolve skips tree comparison entirely (§4.6 step 1).
	CommitSHA string
	// TreeDir is a local directory holding the published package's
	// extracted tree (e.g. from internal/cratesdl.Download), used for
	// content comparison when CommitSHA is empty.
	TreeDir string
}

// SemverChecker compares a local package tree against a published twin
// and reports public-API compatibility. Implementations are external to
// this package (spec.md §4.6 step 4 names this an optional, pluggable
// check); a nil SemverChecker makes Resolve skip the check entirely.
type SemverChecker interface {
	Check(ctx context.Context, localDir, publishedDir string) (model.SemverCheck, error)
}

// Resolver resolves package diffs against a single git repository.
type Resolver struct {
	Repo *gitgw.Repo
	Log  *logrus.Logger

	// SemverCheck, if set, is invoked in Resolve's step 4. Left nil by
	// default: no third-party Rust-ABI-style semver checker exists in
	// the example pack, so this is a seam for an external process the
	// caller may wire in, not something this package implements itself.
	SemverCheck SemverChecker
}

// New returns a Resolver rooted at repo.
func New(repo *gitgw.Repo, log *logrus.Logger) *Resolver {
	return &Resolver{Repo: repo, Log: log}
}

// Resolve computes pkg's Diff against pub.
func (r *Resolver) Resolve(ctx context.Context, pkg *model.Package, pub PublishedContext) (model.Diff, error) {
	relPath, err := filepath.Rel(r.Repo.Dir, pkg.Dir)
	if err != nil {
		relPath = pkg.Dir
	}
	paths := []string{relPath}

	var commits []model.Commit
	if pub.CommitSHA != "" {
		commits, err = r.commitsSince(ctx, pub.CommitSHA, paths)
		if err != nil {
			return model.Diff{}, err
		}
	} else {
		commits, err = r.walkUntilPublishedTree(ctx, pkg, relPath, paths, pub)
		if err != nil {
			return model.Diff{}, err
		}
	}

	commits = dedupeByID(commits)

	d := model.Diff{
		Package:               pkg,
		RegistryPackageExists: pub.Exists,
		Commits:               commits,
		IsVersionPublished:    pub.Exists && pkg.Version != nil && pkg.Version.String() == pub.Version,
	}

	if r.SemverCheck != nil && pub.Exists && pub.TreeDir != "" {
		check, err := r.SemverCheck.Check(ctx, pkg.Dir, pub.TreeDir)
		if err != nil {
			if r.Log != nil {
				r.Log.WithError(err).Warnf("semver-check failed for %s, skipping", pkg.Name)
			}
		} else {
			d.SemverCheck = check
		}
	}

	return d, nil
}

// commitsSince implements §4.6 step 1: every commit strictly after a
// known SHA on the package path is unreleased.
func (r *Resolver) commitsSince(ctx context.Context, sha string, paths []string) ([]model.Commit, error) {
	ids, err := r.Repo.LogAtPaths(ctx, []string{sha}, paths)
	if err != nil {
		return nil, fmt.Errorf("diff: log since %s: %w", sha, err)
	}
	return r.detailAll(ctx, ids)
}

// walkUntilPublishedTree implements §4.6 step 2: walk the full log for
// the package path, newest first, stopping either at the commit whose
// tree matches the published twin exactly, or as soon as the local
// version has already diverged from what's published.
func (r *Resolver) walkUntilPublishedTree(ctx context.Context, pkg *model.Package, relPath string, paths []string, pub PublishedContext) ([]model.Commit, error) {
	ids, err := r.Repo.LogAtPaths(ctx, nil, paths)
	if err != nil {
		return nil, fmt.Errorf("diff: log at %s: %w", relPath, err)
	}

	var accumulated []string
	for _, id := range ids {
		if !pub.Exists {
			accumulated = append(accumulated, id)
			continue
		}

		equal, err := r.treeEqualsPublished(ctx, id, relPath, pub.TreeDir)
		if err != nil {
			return nil, err
		}
		if equal {
			break
		}

		accumulated = append(accumulated, id)

		if pkg.Version != nil && pkg.Version.String() != pub.Version {
			// The local branch's declared version has already moved past
			// what's published; anything older is presumed covered by
			// that prior release even though we can't find an exact tree
			// match (e.g. the published tree was produced by a squash or
			// a since-rewritten history).
			break
		}
	}

	return r.detailAll(ctx, accumulated)
}

// treeEqualsPublished checks out relPath at commit id into a scratch
// directory and compares it byte-for-byte against publishedDir, ignoring
// .git and .cargo_vcs_info.json.
func (r *Resolver) treeEqualsPublished(ctx context.Context, id, relPath, publishedDir string) (bool, error) {
	if publishedDir == "" {
		return false, nil
	}

	scratch, err := os.MkdirTemp("", "release-plz-diff-*")
	if err != nil {
		return false, fmt.Errorf("diff: scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	root, err := r.Repo.ArchiveExtract(ctx, id, relPath, scratch)
	if err != nil {
		return false, fmt.Errorf("diff: archive %s at %s: %w", relPath, id, err)
	}

	return treesEqual(root, publishedDir)
}

func (r *Resolver) detailAll(ctx context.Context, ids []string) ([]model.Commit, error) {
	commits := make([]model.Commit, 0, len(ids))
	for _, id := range ids {
		detail, err := r.Repo.ShowCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("diff: show %s: %w", id, err)
		}
		commits = append(commits, model.Commit{
			ID:             detail.ID,
			Message:        detail.Message,
			AuthorName:     detail.AuthorName,
			AuthorEmail:    detail.AuthorEmail,
			CommitterName:  detail.CommitterName,
			CommitterEmail: detail.CommitterEmail,
			When:           detail.When,
		})
	}
	return commits, nil
}

func dedupeByID(commits []model.Commit) []model.Commit {
	seen := make(map[string]bool, len(commits))
	out := make([]model.Commit, 0, len(commits))
	for _, c := range commits {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

var ignoredEntries = map[string]bool{
	".git":                 true,
	".cargo_vcs_info.json": true,
}

// treesEqual reports whether two directory trees have identical relative
// paths and identical file contents, ignoring .git and
// .cargo_vcs_info.json at any depth.
func treesEqual(a, b string) (bool, error) {
	digestsA, err := digestTree(a)
	if err != nil {
		return false, err
	}
	digestsB, err := digestTree(b)
	if err != nil {
		return false, err
	}
	if len(digestsA) != len(digestsB) {
		return false, nil
	}
	for path, sum := range digestsA {
		other, ok := digestsB[path]
		if !ok || other != sum {
			return false, nil
		}
	}
	return true, nil
}

func digestTree(root string) (map[string]string, error) {
	sums := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignoredEntries[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if ignoredEntries[d.Name()] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, ".git/") || strings.Contains(rel, "/.git/") {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		sums[rel] = hex.EncodeToString(h.Sum(nil))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diff: walk %s: %w", root, err)
	}
	return sums, nil
}
