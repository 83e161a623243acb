// Package forge abstracts the minimum PR/release surface the release
// engine needs across GitHub, Gitea, and GitLab (spec.md §6): list/open/
// edit/close PRs, list PR commits, find PRs associated with a commit,
// add labels, and create a release. Each backend is a thin net/http
// client with its own auth header and JSON shape, composed behind one
// Client interface so internal/releasepr and internal/executor never
// branch on backend identity except where a capability genuinely isn't
// supported (Gitea has no make_latest, per spec.md §9).
//
// Grounded on the teacher's pkg/gh package for the shape of a
// purpose-built forge client (one struct per concern, context-threaded
// methods, JSON request/response structs); the HTTP transport itself
// uses net/http directly rather than the teacher's `gh` CLI shell-out,
// per spec.md §6's explicit REST-client contract.
package forge

import (
	"context"
	"time"
)

// PullRequest is the common shape returned by every backend, trimmed to
// the fields the release PR orchestrator and executor actually read.
type PullRequest struct {
	Number    int
	HeadBranch string
	BaseBranch string
	Title     string
	Body      string
	State     string // "open", "closed", "merged"
	CreatorLogin string
	Draft     bool
	HTMLURL   string
}

// Commit is one commit as reported by a PR's commit list.
type Commit struct {
	SHA         string
	AuthorLogin string
	Message     string
	When        time.Time
}

// IsBot reports whether this commit's author is a bot account, per
// spec.md §4.8's "accounts whose login ends in [bot]" rule.
func (c Commit) IsBot() bool {
	return len(c.AuthorLogin) >= 5 && c.AuthorLogin[len(c.AuthorLogin)-5:] == "[bot]"
}

// NewPR is the input to OpenPR.
type NewPR struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// EditPR is the input to EditPR; zero-value fields are left unchanged.
type EditPR struct {
	Title string
	Body  string
	State string // set to "closed" to close
}

// ReleaseInput is the input to CreateRelease.
type ReleaseInput struct {
	TagName    string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
	MakeLatest *bool // nil = forge default; unsupported on Gitea (spec.md §9)
}

// Client is the capability set spec.md §6 names as sufficient across
// all three backends.
type Client interface {
	// ListOpenPRs returns open PRs whose head branch starts with
	// branchPrefix.
	ListOpenPRs(ctx context.Context, branchPrefix string) ([]PullRequest, error)
	OpenPR(ctx context.Context, in NewPR) (PullRequest, error)
	EditPR(ctx context.Context, number int, in EditPR) (PullRequest, error)
	ClosePR(ctx context.Context, number int) error
	ListPRCommits(ctx context.Context, number int) ([]Commit, error)
	// AssociatedPRs returns PRs whose commit history includes sha —
	// used to find which PR introduced a given changelog commit.
	AssociatedPRs(ctx context.Context, sha string) ([]PullRequest, error)
	GetPR(ctx context.Context, number int) (PullRequest, error)
	AddLabels(ctx context.Context, number int, labels []string) error
	CreateRelease(ctx context.Context, in ReleaseInput) error
}
