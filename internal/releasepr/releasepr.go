// Package releasepr maintains the single release pull/merge request a
// repository ever has open at once (spec.md §4.8): render the combined
// title/body for every package the planner just bumped, enforce the
// one-PR invariant (closing any stray extras), and decide between
// force-pushing the existing branch and opening a fresh one.
//
// Grounded on the teacher's pkg/gh PR-management helpers for the
// "ensure exactly one PR for this concern" pattern, generalized here
// from the teacher's single-repo-update PRs to a multi-package release
// PR whose body lists every bumped package.
package releasepr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/release-plz-go/internal/config"
	"github.com/grovetools/release-plz-go/internal/forge"
	"github.com/grovetools/release-plz-go/internal/gitgw"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/scratch"
)

// Orchestrator drives one release-PR reconciliation pass.
type Orchestrator struct {
	Repo       *gitgw.Repo
	Forge      forge.Client
	Config     *config.Config
	Log        *logrus.Logger
	BaseBranch string

	// Now is injectable for deterministic branch names in tests;
	// defaults to time.Now.
	Now func() time.Time

	// TitleTemplate/BodyTemplate override the defaults; both are
	// text/template source over TemplateData.
	TitleTemplate string
	BodyTemplate  string
}

// New returns an Orchestrator with Now defaulting to time.Now and the
// default title/body templates.
func New(repo *gitgw.Repo, client forge.Client, cfg *config.Config, log *logrus.Logger, baseBranch string) *Orchestrator {
	return &Orchestrator{
		Repo:          repo,
		Forge:         client,
		Config:        cfg,
		Log:           log,
		BaseBranch:    baseBranch,
		Now:           time.Now,
		TitleTemplate: defaultTitleTemplate,
		BodyTemplate:  defaultBodyTemplate,
	}
}

// ReleaseEntry is one bumped package's data for the title/body
// templates.
type ReleaseEntry struct {
	Package       string
	Version       string
	ChangelogText string
}

// TemplateData is what the title/body templates render against.
type TemplateData struct {
	Releases     []ReleaseEntry
	Contributors []string
}

const defaultTitleTemplate = `{{if eq (len .Releases) 1}}chore({{(index .Releases 0).Package}}): release v{{(index .Releases 0).Version}}{{else}}chore: release{{end}}`

const defaultBodyTemplate = `## 🤖 New release
{{range .Releases}}
### {{.Package}}: {{.Version}}
{{.ChangelogText}}
{{end}}
{{if .Contributors}}
## Contributors
{{range .Contributors}}* @{{.}}
{{end}}
{{end}}`

// PlanFunc runs the update planner against the release branch checked
// out at root — a scratch copy of the repository, never the caller's
// own working tree — and returns its result. root plays the same role
// for the planner that the real workspace root normally does.
type PlanFunc func(ctx context.Context, root string) (model.PackagesUpdate, error)

// Run reconciles the single release PR: it prunes any stray extra open
// PRs down to one, then does all of its work — checking out (or
// creating) the release branch, invoking plan to apply the
// manifest/changelog edits, committing, and pushing — inside a scratch
// copy of the repository (internal/scratch) rather than the caller's
// own checkout, so a release-PR run never leaves the user's working
// tree on a different branch or mid-edit. diffs supplies commit
// authorship for the contributor-credit section. Returns ok=false
// (with a zero model.ReleasePR) when there is nothing to release,
// after closing any now-stale open PR.
func (o *Orchestrator) Run(ctx context.Context, plan PlanFunc, diffs map[string]model.Diff) (model.ReleasePR, bool, error) {
	prefix := o.Config.Workspace.PRBranchPrefix

	open, err := o.Forge.ListOpenPRs(ctx, prefix)
	if err != nil {
		return model.ReleasePR{}, false, fmt.Errorf("releasepr: list open PRs: %w", err)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Number < open[j].Number })

	var primary *forge.PullRequest
	if len(open) > 0 {
		primary = &open[0]
		for _, extra := range open[1:] {
			if o.Log != nil {
				o.Log.Infof("closing stray release PR #%d in favor of #%d", extra.Number, primary.Number)
			}
			if err := o.Forge.ClosePR(ctx, extra.Number); err != nil {
				return model.ReleasePR{}, false, fmt.Errorf("releasepr: close stray PR #%d: %w", extra.Number, err)
			}
		}
	}

	// An open PR with commits from someone other than its creator (and
	// not a bot) must not be force-pushed out from under them: force-
	// pushing would rewrite their commits away. Close it and start a
	// fresh PR instead, preserving their commits in the old branch's git
	// history.
	recreate := false
	if primary != nil {
		commits, err := o.Forge.ListPRCommits(ctx, primary.Number)
		if err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: list commits for PR #%d: %w", primary.Number, err)
		}
		if len(prContributors(commits, primary.CreatorLogin)) > 0 {
			recreate = true
		}
	}

	scratchDir, err := os.MkdirTemp("", "release-plz-releasepr-")
	if err != nil {
		return model.ReleasePR{}, false, fmt.Errorf("releasepr: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)
	if err := scratch.CopyTree(o.Repo.Dir, scratchDir); err != nil {
		return model.ReleasePR{}, false, fmt.Errorf("releasepr: copy working tree: %w", err)
	}
	work := gitgw.New(scratchDir)

	branch := ""
	if primary != nil && !recreate {
		branch = primary.HeadBranch
		if err := work.Fetch(ctx, branch); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: fetch %s: %w", branch, err)
		}
		if err := work.Checkout(ctx, branch); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: checkout %s: %w", branch, err)
		}
	} else {
		branch = o.newBranchName(prefix)
		if err := work.CheckoutNewBranch(ctx, branch); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: create branch %s: %w", branch, err)
		}
	}

	update, err := plan(ctx, scratchDir)
	if err != nil {
		return model.ReleasePR{}, false, fmt.Errorf("releasepr: plan: %w", err)
	}

	entries := releaseEntries(update)
	if len(entries) == 0 {
		if primary != nil {
			if o.Log != nil {
				o.Log.Infof("no unreleased changes remain, closing #%d", primary.Number)
			}
			if err := o.Forge.ClosePR(ctx, primary.Number); err != nil {
				return model.ReleasePR{}, false, fmt.Errorf("releasepr: close stale PR #%d: %w", primary.Number, err)
			}
		}
		return model.ReleasePR{}, false, nil
	}

	if err := o.commitAll(ctx, work); err != nil {
		return model.ReleasePR{}, false, err
	}

	title, err := o.render(o.TitleTemplate, entries, diffs)
	if err != nil {
		return model.ReleasePR{}, false, err
	}
	body, err := o.render(o.BodyTemplate, entries, diffs)
	if err != nil {
		return model.ReleasePR{}, false, err
	}

	var pr forge.PullRequest
	if primary != nil && !recreate {
		if err := work.ForcePush(ctx, branch); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: force-push %s: %w", branch, err)
		}
		pr, err = o.Forge.EditPR(ctx, primary.Number, forge.EditPR{Title: title, Body: body})
		if err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: update PR #%d: %w", primary.Number, err)
		}
	} else {
		if primary != nil {
			if o.Log != nil {
				o.Log.Infof("closing #%d in favor of a fresh PR: external contributors would lose commits to a force-push", primary.Number)
			}
			if err := o.Forge.ClosePR(ctx, primary.Number); err != nil {
				return model.ReleasePR{}, false, fmt.Errorf("releasepr: close PR #%d: %w", primary.Number, err)
			}
		}
		if err := work.Push(ctx, branch); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: push %s: %w", branch, err)
		}
		pr, err = o.Forge.OpenPR(ctx, forge.NewPR{Title: title, Body: body, HeadBranch: branch, BaseBranch: o.BaseBranch})
		if err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: open PR: %w", err)
		}
	}

	if len(o.Config.Workspace.PRLabels) > 0 {
		if err := o.Forge.AddLabels(ctx, pr.Number, o.Config.Workspace.PRLabels); err != nil {
			return model.ReleasePR{}, false, fmt.Errorf("releasepr: add labels to #%d: %w", pr.Number, err)
		}
	}

	return model.ReleasePR{
		Number:       pr.Number,
		HeadBranch:   pr.HeadBranch,
		BaseBranch:   pr.BaseBranch,
		Title:        title,
		Body:         body,
		Labels:       o.Config.Workspace.PRLabels,
		Draft:        pr.Draft,
		State:        pr.State,
		CreatorLogin: pr.CreatorLogin,
	}, true, nil
}

// newBranchName implements spec.md §4.8's branch-naming rule: the
// configured prefix followed by a UTC RFC3339 (second precision)
// timestamp with every ":" replaced by "-" (branch names can't contain
// colons).
func (o *Orchestrator) newBranchName(prefix string) string {
	ts := o.Now().UTC().Format(time.RFC3339)
	ts = strings.ReplaceAll(ts, ":", "-")
	return prefix + ts
}

func (o *Orchestrator) commitAll(ctx context.Context, work *gitgw.Repo) error {
	if err := work.Add(ctx, "."); err != nil {
		return fmt.Errorf("releasepr: stage changes: %w", err)
	}
	if err := work.Commit(ctx, "chore: release"); err != nil {
		return fmt.Errorf("releasepr: commit: %w", err)
	}
	return nil
}

func releaseEntries(update model.PackagesUpdate) []ReleaseEntry {
	var out []ReleaseEntry
	for _, r := range update.Results {
		if r.NextVersion == "" {
			continue
		}
		out = append(out, ReleaseEntry{Package: r.Package.Name, Version: r.NextVersion, ChangelogText: r.ChangelogText})
	}
	return out
}

func (o *Orchestrator) render(tmplSrc string, entries []ReleaseEntry, diffs map[string]model.Diff) (string, error) {
	tmpl, err := template.New("releasepr").Parse(tmplSrc)
	if err != nil {
		return "", fmt.Errorf("releasepr: parse template: %w", err)
	}
	var buf bytes.Buffer
	data := TemplateData{Releases: entries, Contributors: externalContributors(entries, diffs)}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("releasepr: render template: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// prContributors returns the distinct commit authors of commits, other
// than creatorLogin and bot accounts — anyone left has contributed work
// to the PR that a force-push would discard.
func prContributors(commits []forge.Commit, creatorLogin string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range commits {
		if c.AuthorLogin == "" || c.AuthorLogin == creatorLogin || c.IsBot() || seen[c.AuthorLogin] {
			continue
		}
		seen[c.AuthorLogin] = true
		out = append(out, c.AuthorLogin)
	}
	return out
}

// externalContributors collects the distinct forge handles of commit
// authors across every released package's diff, excluding bot accounts
// (logins ending in "[bot]", e.g. "dependabot[bot]") per spec.md §4.8.
func externalContributors(entries []ReleaseEntry, diffs map[string]model.Diff) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		d, ok := diffs[e.Package]
		if !ok {
			continue
		}
		for _, c := range d.Commits {
			handle := c.RemoteContributor
			if handle == "" || strings.HasSuffix(handle, "[bot]") || seen[handle] {
				continue
			}
			seen[handle] = true
			out = append(out, handle)
		}
	}
	sort.Strings(out)
	return out
}
