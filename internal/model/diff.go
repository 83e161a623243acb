package model

import "time"

// Commit is a single git commit that touched a package's path.
type Commit struct {
	ID                string
	Message           string
	AuthorName        string
	AuthorEmail       string
	CommitterName     string
	CommitterEmail    string
	When              time.Time
	RemoteContributor string // forge handle of the committer, when resolvable
}

// SemverCheckVerdict is the outcome of an external public-API compatibility
// check between the local tree and the last published tree.
type SemverCheckVerdict int

const (
	SemverCheckSkipped SemverCheckVerdict = iota
	SemverCheckCompatible
	SemverCheckIncompatible
)

// SemverCheck pairs a verdict with an optional human-readable report, set
// only when the verdict is SemverCheckIncompatible.
type SemverCheck struct {
	Verdict SemverCheckVerdict
	Report  string
}

// Diff is the per-package result of the package-diff resolver (§4.6).
type Diff struct {
	Package               *Package
	RegistryPackageExists bool
	Commits               []Commit
	IsVersionPublished    bool
	SemverCheck           SemverCheck
}

// ShouldUpdateVersion implements the invariant of spec.md §3: a package's
// version must not change unless a prior publish exists and it has
// unreleased commits.
func (d Diff) ShouldUpdateVersion() bool {
	return d.RegistryPackageExists && len(d.Commits) > 0
}

// UpdateResult is the per-package output of the update planner.
type UpdateResult struct {
	Package         *Package
	NextVersion     string // empty if no version bump is warranted
	ChangelogText   string // empty if no changelog section changed
	SemverCheck     SemverCheck
	NoUnpublishedChanges bool // true when the diff produced no edits at all
}

// PackagesUpdate is the full output of the update planner: one result per
// package plus an optional workspace-level version.
type PackagesUpdate struct {
	Results          []UpdateResult
	WorkspaceVersion string // empty if the workspace version doesn't change
}

// PublishedArtifact is a (name, version) pair known to exist either via a
// registry index entry or a matching git tag.
type PublishedArtifact struct {
	Name       string
	Version    string
	CommitSHA  string // empty if unknown
	FromTag    bool
}
