// Package executor performs the actual release (spec.md §4.9): walk
// workspace packages in dependency order, publish each one not already
// on the registry, tag it, and create its forge release — idempotent,
// so re-running on a clean HEAD with nothing new to release produces an
// empty summary and touches nothing.
//
// Grounded on the teacher's cmd/release.go for the overall
// "walk-publish-tag-release" shape, generalized from its single-module
// Go-proxy release to Cargo's dependency-ordered multi-package release.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/release-plz-go/internal/cargoexec"
	"github.com/grovetools/release-plz-go/internal/config"
	"github.com/grovetools/release-plz-go/internal/depsgraph"
	"github.com/grovetools/release-plz-go/internal/forge"
	"github.com/grovetools/release-plz-go/internal/gitgw"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/registry"
)

// Record is one package actually released during this run.
type Record struct {
	Package    string `json:"package"`
	Version    string `json:"version"`
	Tag        string `json:"tag,omitempty"`
	ReleaseURL string `json:"release_url,omitempty"`
}

// Summary is the executor's JSON-serializable output (spec.md §4.9:
// `{"releases": [...]}`).
type Summary struct {
	Releases []Record `json:"releases"`
}

// Executor publishes and tags every releasable package of Workspace in
// dependency order.
type Executor struct {
	Workspace *model.Workspace
	Config    *config.Config
	Cargo     *cargoexec.Runner
	Repo      *gitgw.Repo
	Forge     forge.Client
	Registry  registry.Index
	Log       *logrus.Logger

	// BaseBranch is the branch a release PR targets; used to decide
	// whether a release PR's last commit is still reachable from the
	// mainline when HEAD has since moved past it. Defaults to "main".
	BaseBranch string

	// ChangelogExcerpt, when set, returns the rendered release-notes
	// body for a package's forge release (typically the section
	// internal/planner just produced). Left nil, releases get an empty
	// body.
	ChangelogExcerpt func(pkgName, version string) string

	// WaitForVisibility, when true, blocks after each publish until the
	// registry reports the version visible (registry.WaitUntilPublished)
	// before tagging. Off by default since the default timeout is long
	// and not every caller needs the guarantee before tagging.
	WaitForVisibility bool

	// Token is passed to `cargo publish --token`.
	Token string
}

// Run decides whether this commit should be released at all, then, if
// so, walks the workspace in dependency order and releases every
// package that isn't already published at its current version.
//
// A run only proceeds unconditionally when release-always is set (the
// default). Otherwise it only proceeds when HEAD is the merge commit of
// an open release PR — found by asking the forge which PRs are
// associated with HEAD and picking the one whose branch carries the
// release-PR prefix — or when that PR's last commit is still reachable
// from the base branch, in which case that commit (not HEAD) is checked
// out for the duration of the run and HEAD is restored afterward.
func (e *Executor) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Releases: []Record{}}

	proceed, restore, err := e.prepareReleaseCheckout(ctx)
	if err != nil {
		return summary, err
	}
	if restore != nil {
		defer restore()
	}
	if !proceed {
		if e.Log != nil {
			e.Log.Info("HEAD is not a release PR merge commit and release-always is false; nothing to do")
		}
		return summary, nil
	}

	waves, err := depsgraph.New(e.Workspace).ReleaseOrder(nil)
	if err != nil {
		return summary, fmt.Errorf("executor: order packages: %w", err)
	}

	for _, wave := range waves {
		names := append([]string(nil), wave...)
		sort.Strings(names)
		for _, name := range names {
			rec, released, err := e.releaseOne(ctx, name)
			if err != nil {
				return summary, err
			}
			if released {
				summary.Releases = append(summary.Releases, rec)
			}
		}
	}

	return summary, nil
}

// prepareReleaseCheckout implements the release-decision gate. It
// returns proceed=false only when release-always is off and HEAD isn't
// traceable to an open release PR. When it checks out a commit other
// than HEAD, the returned restore func must be deferred by the caller
// to leave the repository back on HEAD once the run completes.
func (e *Executor) prepareReleaseCheckout(ctx context.Context) (proceed bool, restore func(), err error) {
	if e.Forge == nil || e.Repo == nil {
		// Nothing to check a PR association against; behave as if
		// release-always were set rather than refuse to run at all.
		return true, nil, nil
	}

	head, err := e.Repo.CurrentCommitHash(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("executor: resolve HEAD: %w", err)
	}

	associated, err := e.Forge.AssociatedPRs(ctx, head)
	if err != nil {
		return false, nil, fmt.Errorf("executor: find PRs associated with HEAD: %w", err)
	}

	prefix := e.Config.Workspace.PRBranchPrefix
	var releasePR *forge.PullRequest
	for i := range associated {
		if prefix != "" && strings.HasPrefix(associated[i].HeadBranch, prefix) {
			releasePR = &associated[i]
			break
		}
	}
	if releasePR == nil {
		return e.Config.Workspace.ReleaseAlways, nil, nil
	}

	// AssociatedPRs can return a stale or partial view on some backends
	// (Gitea's falls back to scanning open PRs); re-fetch the PR by
	// number for an authoritative branch/state before trusting it.
	full, err := e.Forge.GetPR(ctx, releasePR.Number)
	if err != nil {
		return false, nil, fmt.Errorf("executor: get PR #%d: %w", releasePR.Number, err)
	}
	releasePR = &full

	commits, err := e.Forge.ListPRCommits(ctx, releasePR.Number)
	if err != nil {
		return false, nil, fmt.Errorf("executor: list commits for PR #%d: %w", releasePR.Number, err)
	}
	if len(commits) == 0 {
		return e.Config.Workspace.ReleaseAlways, nil, nil
	}

	lastSHA := commits[len(commits)-1].SHA
	if lastSHA == head {
		return true, nil, nil
	}

	base := e.BaseBranch
	if base == "" {
		base = "main"
	}
	reachable, err := e.Repo.IsAncestor(ctx, lastSHA, base)
	if err != nil {
		return false, nil, fmt.Errorf("executor: check %s reachable from %s: %w", lastSHA, base, err)
	}
	if !reachable {
		return e.Config.Workspace.ReleaseAlways, nil, nil
	}

	if e.Log != nil {
		e.Log.Infof("checking out release PR #%d's last commit %s in place of HEAD %s", releasePR.Number, lastSHA, head)
	}
	if err := e.Repo.Checkout(ctx, lastSHA); err != nil {
		return false, nil, fmt.Errorf("executor: checkout %s: %w", lastSHA, err)
	}
	restore = func() {
		if restoreErr := e.Repo.Checkout(ctx, head); restoreErr != nil && e.Log != nil {
			e.Log.Warnf("executor: restore HEAD %s after release: %v", head, restoreErr)
		}
	}
	return true, restore, nil
}

func (e *Executor) releaseOne(ctx context.Context, name string) (Record, bool, error) {
	pkg, ok := e.Workspace.PackageByName(name)
	if !ok || !pkg.Publishable() {
		return Record{}, false, nil
	}
	defaults := e.Config.ForPackage(name)
	if !defaults.Publish {
		return Record{}, false, nil
	}

	version := pkg.Version.String()

	// cargo publish targets one registry per invocation; a package
	// configured for several (or none, meaning the crates.io default) is
	// published once per target not yet on the registry. Every target is
	// checked against the single configured Registry index, so all targets
	// get the same answer: a version found there counts as published on
	// every target.
	targets := defaults.Registries
	if len(targets) == 0 {
		targets = []string{"crates-io"}
	}
	var pending []string
	if e.Registry != nil {
		for _, target := range targets {
			published, err := e.Registry.IsPublished(ctx, pkg.Name, version)
			if err != nil {
				return Record{}, false, fmt.Errorf("executor: check %s on %s: %w", name, target, err)
			}
			if !published {
				pending = append(pending, target)
			}
		}
		if len(pending) == 0 {
			return Record{}, false, nil
		}
	} else {
		pending = targets
	}

	tag := renderTemplate(defaults.TagNameTemplate, name, version)

	if e.Repo != nil {
		exists, err := e.Repo.TagExists(ctx, tag)
		if err != nil {
			return Record{}, false, fmt.Errorf("executor: check tag %s: %w", tag, err)
		}
		if exists {
			// Already tagged locally (e.g. a prior run died after
			// tagging but before pushing): treat as released, idempotent.
			return Record{}, false, nil
		}
	}

	for _, target := range pending {
		opts := cargoexec.PublishOptions{
			ManifestPath: pkg.ManifestPath,
			Package:      pkg.Name,
			Registry:     target,
			Token:        e.Token,
			DryRun:       e.Config.Workspace.DryRun,
			AllowDirty:   defaults.AllowDirty,
			NoVerify:     defaults.NoVerify,
			Features:     defaults.Features,
			AllFeatures:  defaults.AllFeatures,
		}
		if err := e.Cargo.Publish(ctx, opts); err != nil {
			return Record{}, false, fmt.Errorf("executor: publish %s to %s: %w", name, target, err)
		}

		if e.WaitForVisibility && e.Registry != nil {
			if err := registry.WaitUntilPublished(ctx, e.Registry, pkg.Name, version, registry.DefaultWaitConfig(), e.Log); err != nil {
				return Record{}, false, fmt.Errorf("executor: wait for %s visibility on %s: %w", name, target, err)
			}
		}
	}

	rec := Record{Package: name, Version: version}

	if defaults.GitTag && e.Repo != nil {
		msg := fmt.Sprintf("chore: Release package %s version %s", name, version)
		if err := e.Repo.Tag(ctx, tag, msg); err != nil {
			return Record{}, false, fmt.Errorf("executor: tag %s: %w", name, err)
		}
		if err := e.Repo.Push(ctx, tag); err != nil {
			return Record{}, false, fmt.Errorf("executor: push tag %s: %w", tag, err)
		}
		rec.Tag = tag
	}

	if defaults.GitRelease && e.Forge != nil {
		releaseName := renderTemplate(defaults.ReleaseNameTemplate, name, version)
		body := ""
		if e.ChangelogExcerpt != nil {
			body = e.ChangelogExcerpt(name, version)
		}
		var makeLatest *bool
		if defaults.GitReleaseDraft {
			f := false
			makeLatest = &f
		}
		if err := e.Forge.CreateRelease(ctx, forge.ReleaseInput{
			TagName:    tag,
			Name:       releaseName,
			Body:       body,
			Draft:      defaults.GitReleaseDraft,
			Prerelease: pkg.Version.Prerelease() != "",
			MakeLatest: makeLatest,
		}); err != nil {
			return Record{}, false, fmt.Errorf("executor: create release for %s: %w", name, err)
		}
	}

	return rec, true, nil
}

var templateTokenRE = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// renderTemplate expands "{{ package }}"/"{{ version }}" tokens —
// release-plz.toml's tag/release name templates use this bare,
// dot-free variable syntax (mirroring the original Tera templates)
// rather than Go's text/template "{{.Field}}" syntax, so a small
// regexp substitution stands in for a templating engine here.
func renderTemplate(tmpl, pkgName, version string) string {
	return templateTokenRE.ReplaceAllStringFunc(tmpl, func(tok string) string {
		m := templateTokenRE.FindStringSubmatch(tok)
		switch m[1] {
		case "package":
			return pkgName
		case "version":
			return version
		default:
			return tok
		}
	})
}
