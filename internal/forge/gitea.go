package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Gitea implements Client against the Gitea REST API.
type Gitea struct {
	httpBackend
	Owner string
	Repo  string
}

// NewGitea constructs a Gitea backend. baseURL is typically
// "https://gitea.example.com/api/v1"; token is sent in the Authorization
// header as "token <token>".
func NewGitea(baseURL, owner, repo, token string, client *http.Client) *Gitea {
	return &Gitea{
		httpBackend: newHTTPBackend(baseURL, "Authorization", "token "+token, client),
		Owner:       owner,
		Repo:        repo,
	}
}

func (g *Gitea) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", g.Owner, g.Repo, suffix)
}

type giteaPR struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Draft  bool   `json:"draft"`
	HTMLURL string `json:"html_url"`
	Head   struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

func (p giteaPR) toPullRequest() PullRequest {
	return PullRequest{
		Number:       p.Number,
		HeadBranch:   p.Head.Ref,
		BaseBranch:   p.Base.Ref,
		Title:        p.Title,
		Body:         p.Body,
		State:        p.State,
		CreatorLogin: p.User.Login,
		Draft:        p.Draft,
		HTMLURL:      p.HTMLURL,
	}
}

func (g *Gitea) ListOpenPRs(ctx context.Context, branchPrefix string) ([]PullRequest, error) {
	var raw []giteaPR
	if _, err := g.do(ctx, http.MethodGet, g.repoPath("/pulls?state=open&limit=50"), nil, &raw); err != nil {
		return nil, err
	}
	var out []PullRequest
	for _, p := range raw {
		if strings.HasPrefix(p.Head.Ref, branchPrefix) {
			out = append(out, p.toPullRequest())
		}
	}
	return out, nil
}

func (g *Gitea) OpenPR(ctx context.Context, in NewPR) (PullRequest, error) {
	req := map[string]any{
		"title": in.Title,
		"body":  in.Body,
		"head":  in.HeadBranch,
		"base":  in.BaseBranch,
	}
	var raw giteaPR
	if _, err := g.do(ctx, http.MethodPost, g.repoPath("/pulls"), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *Gitea) EditPR(ctx context.Context, number int, in EditPR) (PullRequest, error) {
	req := map[string]any{}
	if in.Title != "" {
		req["title"] = in.Title
	}
	if in.Body != "" {
		req["body"] = in.Body
	}
	if in.State != "" {
		req["state"] = in.State
	}
	var raw giteaPR
	if _, err := g.do(ctx, http.MethodPatch, g.repoPath(fmt.Sprintf("/pulls/%d", number)), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *Gitea) ClosePR(ctx context.Context, number int) error {
	_, err := g.EditPR(ctx, number, EditPR{State: "closed"})
	return err
}

type giteaCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (g *Gitea) ListPRCommits(ctx context.Context, number int) ([]Commit, error) {
	var raw []giteaCommit
	if _, err := g.do(ctx, http.MethodGet, g.repoPath(fmt.Sprintf("/pulls/%d/commits?limit=250", number)), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Commit, 0, len(raw))
	for _, c := range raw {
		out = append(out, Commit{SHA: c.SHA, AuthorLogin: c.Author.Login, Message: c.Commit.Message, When: c.Commit.Author.Date})
	}
	return out, nil
}

// AssociatedPRs has no direct Gitea endpoint (unlike GitHub's
// commits/{sha}/pulls or GitLab's commits/{sha}/merge_requests); it
// falls back to scanning each open PR's commit list for sha, which is
// adequate at the scale (a handful of open release PRs) this operation
// is ever called at.
func (g *Gitea) AssociatedPRs(ctx context.Context, sha string) ([]PullRequest, error) {
	open, err := g.ListOpenPRs(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []PullRequest
	for _, pr := range open {
		commits, err := g.ListPRCommits(ctx, pr.Number)
		if err != nil {
			continue
		}
		for _, c := range commits {
			if c.SHA == sha {
				out = append(out, pr)
				break
			}
		}
	}
	return out, nil
}

func (g *Gitea) GetPR(ctx context.Context, number int) (PullRequest, error) {
	var raw giteaPR
	if _, err := g.do(ctx, http.MethodGet, g.repoPath(fmt.Sprintf("/pulls/%d", number)), nil, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

type giteaLabel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AddLabels resolves label names to IDs, creating any that don't yet
// exist in the repo, then attaches them by ID — Gitea's API (unlike
// GitHub/GitLab) has no "attach by name" shortcut (spec.md §4.8).
func (g *Gitea) AddLabels(ctx context.Context, number int, labels []string) error {
	var existing []giteaLabel
	if _, err := g.do(ctx, http.MethodGet, g.repoPath("/labels"), nil, &existing); err != nil {
		return err
	}

	byName := make(map[string]int64, len(existing))
	for _, l := range existing {
		byName[l.Name] = l.ID
	}

	ids := make([]int64, 0, len(labels))
	for _, name := range labels {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
			continue
		}
		var created giteaLabel
		req := map[string]any{"name": name, "color": "#ededed"}
		if _, err := g.do(ctx, http.MethodPost, g.repoPath("/labels"), req, &created); err != nil {
			return fmt.Errorf("forge: create gitea label %q: %w", name, err)
		}
		ids = append(ids, created.ID)
	}

	req := map[string]any{"labels": ids}
	_, err := g.do(ctx, http.MethodPost, g.repoPath(fmt.Sprintf("/issues/%d/labels", number)), req, nil)
	return err
}

// CreateRelease creates a Gitea release. Gitea has no make_latest
// concept (spec.md §9's noted capability gap), so ReleaseInput.MakeLatest
// is ignored here.
func (g *Gitea) CreateRelease(ctx context.Context, in ReleaseInput) error {
	req := map[string]any{
		"tag_name":   in.TagName,
		"name":       in.Name,
		"body":       in.Body,
		"draft":      in.Draft,
		"prerelease": in.Prerelease,
	}
	_, err := g.do(ctx, http.MethodPost, g.repoPath("/releases"), req, nil)
	return err
}
