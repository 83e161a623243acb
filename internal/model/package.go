// Package model holds the core data types shared across the update engine
// and release state machine: packages, workspaces, diffs, and plans.
package model

import (
	"github.com/Masterminds/semver/v3"
)

// DepKind classifies a Cargo dependency table entry.
type DepKind int

const (
	DepNormal DepKind = iota
	DepBuild
	DepDev
)

func (k DepKind) String() string {
	switch k {
	case DepNormal:
		return "normal"
	case DepBuild:
		return "build"
	case DepDev:
		return "dev"
	default:
		return "unknown"
	}
}

// Dependency is one entry of a dependency table.
type Dependency struct {
	Name       string
	Kind       DepKind
	Path       string // non-empty for path dependencies
	Req        string // version requirement string, e.g. "^1.2", "=1.2.3", "1.*"
	TargetSpec string // non-empty for target-conditional tables, e.g. "cfg(unix)"
}

// IsPathDep reports whether this dependency points at a sibling in the workspace.
func (d Dependency) IsPathDep() bool {
	return d.Path != ""
}

// ReleaseMetadata holds the pre-rendered templates used for tagging and
// naming a package's forge release.
type ReleaseMetadata struct {
	TagNameTemplate     string
	ReleaseNameTemplate string
}

// Package is a single logical unit of the workspace: a name, a version, a
// manifest path, a directory, publish eligibility, and its dependencies.
type Package struct {
	Name         string
	Version      *semver.Version
	ManifestPath string // absolute path to this package's Cargo.toml
	Dir          string // absolute path to the package directory
	Publish      Publish
	Deps         []Dependency
	Release      ReleaseMetadata

	// VersionInherited is true when this package's manifest declares
	// `package.version.workspace = true`.
	VersionInherited bool
}

// Publishable reports whether this package is eligible to be published,
// honoring Cargo's `publish` field semantics: absent => true, false or an
// empty list => false, a non-empty list => true (the list itself names
// allowed registries and is not re-validated here).
func (p Package) Publishable() bool {
	switch p.Publish.Kind {
	case PublishAbsent, PublishRegistryList:
		if p.Publish.Kind == PublishRegistryList {
			return len(p.Publish.Registries) > 0
		}
		return true
	case PublishBool:
		return p.Publish.Bool
	default:
		return true
	}
}

// Registries returns the explicit registry list this package targets, or
// nil if it uses the default (crates.io).
func (p Package) Registries() []string {
	if p.Publish.Kind == PublishRegistryList {
		return p.Publish.Registries
	}
	return nil
}

// PublishKind distinguishes the three shapes the `publish` manifest field
// can take.
type PublishKind int

const (
	PublishAbsent PublishKind = iota
	PublishBool
	PublishRegistryList
)

// Publish models the manifest's `publish` field.
type Publish struct {
	Kind       PublishKind
	Bool       bool
	Registries []string
}

// PathDeps returns this package's path-dependency entries of the given
// kind set (used by the planner to propagate version bumps and by the
// executor to compute release order).
func (p Package) PathDeps(kinds ...DepKind) []Dependency {
	kindSet := make(map[DepKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	var out []Dependency
	for _, d := range p.Deps {
		if !d.IsPathDep() {
			continue
		}
		if len(kindSet) == 0 || kindSet[d.Kind] {
			out = append(out, d)
		}
	}
	return out
}
