// Package planner composes the per-package diff resolver, the semver
// engine, and the changelog renderer into one workspace-wide update
// plan (spec.md §4.7): for every package with unreleased commits, or
// whose path-dependency just grew a new required version, decide the
// next version, update its manifest and any dependent manifests, render
// its changelog section, and finally refresh the lockfile once.
//
// Grounded on the teacher's own multi-step command composition in
// cmd/release.go (diff -> decide -> mutate -> shell out), adapted here
// from Go-module/grove-ecosystem release steps to Cargo-workspace ones.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/release-plz-go/internal/cargoexec"
	"github.com/grovetools/release-plz-go/internal/changelog"
	"github.com/grovetools/release-plz-go/internal/config"
	"github.com/grovetools/release-plz-go/internal/depsgraph"
	"github.com/grovetools/release-plz-go/internal/manifest"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/semverengine"
)

// Planner holds everything needed to turn a set of per-package diffs
// into a fully-applied set of manifest/changelog edits.
type Planner struct {
	Workspace *model.Workspace
	Config    *config.Config
	Cargo     *cargoexec.Runner
	Log       *logrus.Logger

	// Rules configures semverengine.NextIncrement workspace-wide;
	// per-package overrides aren't named in spec.md §4.2, so one rule
	// set applies uniformly.
	Rules semverengine.Rules

	// RemoteURL is passed to the changelog renderer's LinkParsers (e.g.
	// "https://github.com/acme/widget").
	RemoteURL string

	// Now is injectable for deterministic changelog dates in tests;
	// defaults to time.Now.
	Now func() time.Time
}

// New returns a Planner with Now defaulting to time.Now.
func New(ws *model.Workspace, cfg *config.Config, cargo *cargoexec.Runner, log *logrus.Logger) *Planner {
	return &Planner{Workspace: ws, Config: cfg, Cargo: cargo, Log: log, Now: time.Now}
}

// Plan computes and applies the update for every package named in diffs,
// propagating version bumps to path-dependents whose manifests must
// therefore change too, then runs a single lockfile refresh.
func (p *Planner) Plan(ctx context.Context, diffs map[string]model.Diff, existingChangelogs map[string]string) (model.PackagesUpdate, error) {
	graph := depsgraph.New(p.Workspace)
	waves, err := graph.ReleaseOrder(nil)
	if err != nil {
		return model.PackagesUpdate{}, fmt.Errorf("planner: order packages: %w", err)
	}

	increments := make(map[string]semverengine.Increment)
	results := make(map[string]model.UpdateResult)
	touchedAny := false

	for _, wave := range waves {
		for _, name := range wave {
			pkg, ok := p.Workspace.PackageByName(name)
			if !ok || !pkg.Publishable() {
				continue
			}
			if p.Config != nil && !p.Config.ForPackage(name).Publish {
				continue
			}

			inc := p.ownIncrement(pkg, diffs[name])
			inc = maxIncrement(inc, p.propagatedIncrement(pkg, increments))
			increments[name] = inc

			if inc == semverengine.None {
				results[name] = model.UpdateResult{Package: pkg, NoUnpublishedChanges: true}
				continue
			}
			touchedAny = true

			next, err := semverengine.Bump(pkg.Version, inc)
			if err != nil {
				return model.PackagesUpdate{}, fmt.Errorf("planner: bump %s: %w", name, err)
			}

			changelogText, err := p.renderChangelog(pkg, diffs[name], next.String(), existingChangelogs[name])
			if err != nil {
				return model.PackagesUpdate{}, fmt.Errorf("planner: changelog for %s: %w", name, err)
			}

			if err := p.applyManifestUpdates(pkg, next); err != nil {
				return model.PackagesUpdate{}, fmt.Errorf("planner: apply manifest for %s: %w", name, err)
			}

			results[name] = model.UpdateResult{
				Package:       pkg,
				NextVersion:   next.String(),
				ChangelogText: changelogText,
				SemverCheck:   diffs[name].SemverCheck,
			}
		}
	}

	workspaceVersion := ""
	if p.Workspace.WorkspaceVersion != nil {
		workspaceVersion, err = p.applyWorkspaceVersion(increments, results)
		if err != nil {
			return model.PackagesUpdate{}, err
		}
	}

	if touchedAny && p.Cargo != nil {
		if err := p.Cargo.UpdateLockfile(ctx, p.Config.Workspace.CargoUpdateAll); err != nil {
			return model.PackagesUpdate{}, fmt.Errorf("planner: refresh lockfile: %w", err)
		}
	}

	return model.PackagesUpdate{Results: sortedResults(results), WorkspaceVersion: workspaceVersion}, nil
}

// ownIncrement decides the bump a package's own unreleased commits
// warrant, honoring the invariant that a version never moves unless a
// prior publish exists and has unreleased commits (model.Diff's
// ShouldUpdateVersion).
func (p *Planner) ownIncrement(pkg *model.Package, d model.Diff) semverengine.Increment {
	if !d.ShouldUpdateVersion() {
		return semverengine.None
	}
	if d.SemverCheck.Verdict == model.SemverCheckIncompatible {
		return semverengine.Breaking(pkg.Version)
	}

	messages := make([]string, 0, len(d.Commits))
	for _, c := range d.Commits {
		messages = append(messages, c.Message)
	}
	return semverengine.NextIncrement(pkg.Version, messages, p.Rules)
}

// propagatedIncrement reports the minimum bump warranted purely because
// one of pkg's path-dependencies is itself being bumped: its manifest
// requirement must change, and that change is itself a releasable edit
// (spec.md §4.7's sibling-manifest propagation), even when pkg has no
// unreleased commits of its own.
func (p *Planner) propagatedIncrement(pkg *model.Package, increments map[string]semverengine.Increment) semverengine.Increment {
	for _, dep := range pkg.PathDeps(model.DepNormal, model.DepBuild) {
		if dep.Req == "" {
			continue // pure path dependency, no version requirement to bump
		}
		// Any non-None increment on the dependency means its manifest
		// requirement in pkg changes, which is itself a patch-worthy
		// edit to pkg's own manifest.
		if increments[dep.Name] != semverengine.None {
			return semverengine.Patch
		}
	}
	return semverengine.None
}

// severityRank orders increments by actual bump magnitude rather than
// semverengine.Increment's declaration order (None, Major, Minor, Patch,
// Prerelease), which does not itself sort by severity.
func severityRank(i semverengine.Increment) int {
	switch i {
	case semverengine.Major:
		return 3
	case semverengine.Minor:
		return 2
	case semverengine.Patch, semverengine.Prerelease:
		return 1
	default:
		return 0
	}
}

func maxIncrement(a, b semverengine.Increment) semverengine.Increment {
	if severityRank(b) > severityRank(a) {
		return b
	}
	return a
}

func (p *Planner) renderChangelog(pkg *model.Package, d model.Diff, nextVersion string, existing string) (string, error) {
	cfg := changelog.DefaultConfig()
	input := changelog.ReleaseInput{
		Version:   nextVersion,
		Date:      p.Now(),
		Commits:   d.Commits,
		RemoteURL: p.RemoteURL,
	}

	if existing == "" {
		existing = changelog.NewDocument(cfg)
	}

	newText, changed, err := changelog.Update(cfg, existing, input)
	if err != nil {
		return "", err
	}
	if !changed {
		return "", nil
	}
	return newText, nil
}

// applyManifestUpdates writes pkg's own version and, for every other
// workspace package that path-depends on pkg with a version
// requirement, rewrites that requirement to match next (spec.md §4.7's
// sibling-manifest propagation via manifest.UpgradeRequirement).
func (p *Planner) applyManifestUpdates(pkg *model.Package, next *semver.Version) error {
	if !pkg.VersionInherited {
		m, err := manifest.Load(pkg.ManifestPath)
		if err != nil {
			return err
		}
		if err := m.SetPackageVersion(next.String()); err != nil {
			return err
		}
		if err := m.Write(); err != nil {
			return err
		}
	}

	for _, dependent := range p.Workspace.Packages {
		if dependent.Name == pkg.Name {
			continue
		}
		for _, dep := range dependent.PathDeps(model.DepNormal, model.DepBuild) {
			if dep.Name != pkg.Name || dep.Req == "" {
				continue
			}
			newReq, err := manifest.UpgradeRequirement(dep.Req, next)
			if err != nil {
				if p.Log != nil {
					p.Log.WithError(err).Warnf("skipping requirement upgrade for %s -> %s", dependent.Name, pkg.Name)
				}
				continue
			}

			dm, err := manifest.Load(dependent.ManifestPath)
			if err != nil {
				return err
			}
			for _, table := range dm.DepTables() {
				if err := dm.SetDependencyVersion(table.Path, dep.Name, newReq); err != nil {
					continue // dependency not declared in this particular table
				}
			}
			if err := dm.Write(); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyWorkspaceVersion bumps [workspace.package].version by the
// largest increment among packages that inherit it, implementing
// spec.md §4.7's "max bump wins" tie-break.
func (p *Planner) applyWorkspaceVersion(increments map[string]semverengine.Increment, results map[string]model.UpdateResult) (string, error) {
	var maxInc semverengine.Increment
	var anyInherited *model.Package
	for _, pkg := range p.Workspace.Packages {
		if !pkg.VersionInherited {
			continue
		}
		if anyInherited == nil {
			anyInherited = pkg
		}
		if inc := increments[pkg.Name]; severityRank(inc) > severityRank(maxInc) {
			maxInc = inc
		}
	}
	if anyInherited == nil || maxInc == semverengine.None {
		return "", nil
	}

	next, err := semverengine.Bump(anyInherited.Version, maxInc)
	if err != nil {
		return "", fmt.Errorf("planner: bump workspace version: %w", err)
	}

	m, err := manifest.Load(p.Workspace.RootManifest)
	if err != nil {
		return "", err
	}
	if err := m.SetWorkspacePackageVersion(next.String()); err != nil {
		return "", err
	}
	if err := m.Write(); err != nil {
		return "", err
	}

	for _, pkg := range p.Workspace.Packages {
		if pkg.VersionInherited {
			if r, ok := results[pkg.Name]; ok {
				r.NextVersion = next.String()
				results[pkg.Name] = r
			}
		}
	}

	return next.String(), nil
}

func sortedResults(results map[string]model.UpdateResult) []model.UpdateResult {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]model.UpdateResult, 0, len(names))
	for _, name := range names {
		out = append(out, results[name])
	}
	return out
}
