// Package setversion implements the `set-version` escape hatch (spec.md
// §4.10, supplementing the distilled spec from
// release_plz_core::command::set_version): force one or more packages to
// an explicit version, independent of the update engine's own bump
// decision, cascading the new version into every sibling manifest that
// path-depends on the changed package.
//
// Grounded on the original's set_version.rs, reusing the same manifest
// rewrite this module's planner already performs for propagated bumps
// (internal/manifest.UpgradeRequirement + SetDependencyVersion across
// every dependency table), generalized here to an explicit
// caller-supplied version instead of a computed one.
package setversion

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/grovetools/release-plz-go/internal/manifest"
	"github.com/grovetools/release-plz-go/internal/model"
)

// Change is one package's requested new version.
type Change struct {
	Package string
	Version string
}

// Apply sets each Change's package to its requested version in the
// workspace, and rewrites every other package's manifest that
// path-depends on it with a version requirement so the requirement
// tracks the new version. Changes are applied in the order given;
// later changes see earlier changes' requirement rewrites.
func Apply(ws *model.Workspace, changes []Change) error {
	for _, change := range changes {
		pkg, ok := ws.PackageByName(change.Package)
		if !ok {
			return fmt.Errorf("setversion: package %q not found in workspace", change.Package)
		}
		next, err := semver.NewVersion(change.Version)
		if err != nil {
			return fmt.Errorf("setversion: parse version %q for %s: %w", change.Version, change.Package, err)
		}
		if err := applyOne(ws, pkg, next); err != nil {
			return fmt.Errorf("setversion: %s: %w", change.Package, err)
		}
		pkg.Version = next
	}
	return nil
}

func applyOne(ws *model.Workspace, pkg *model.Package, next *semver.Version) error {
	if pkg.VersionInherited {
		m, err := manifest.Load(ws.RootManifest)
		if err != nil {
			return err
		}
		if err := m.SetWorkspacePackageVersion(next.String()); err != nil {
			return err
		}
		if err := m.Write(); err != nil {
			return err
		}
	} else {
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

	for _, dependent := range ws.Packages {
		if dependent.Name == pkg.Name {
			continue
		}
		for _, dep := range dependent.PathDeps(model.DepNormal, model.DepBuild, model.DepDev) {
			if dep.Name != pkg.Name || dep.Req == "" {
				continue
			}
			newReq, err := manifest.UpgradeRequirement(dep.Req, next)
			if err != nil {
				continue // requirement shape we don't know how to rewrite; leave as-is
			}

			dm, err := manifest.Load(dependent.ManifestPath)
			if err != nil {
				return err
			}
			for _, table := range dm.DepTables() {
				if err := dm.SetDependencyVersion(table.Path, dep.Name, newReq); err != nil {
					continue
				}
			}
			if err := dm.Write(); err != nil {
				return err
			}
		}
	}

	return nil
}
