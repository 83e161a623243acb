package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GitHub implements Client against the GitHub REST API (api.github.com
// or a GitHub Enterprise base URL).
type GitHub struct {
	httpBackend
	Owner string
	Repo  string
}

// NewGitHub constructs a GitHub backend. baseURL is typically
// "https://api.github.com"; token is sent as a Bearer token.
func NewGitHub(baseURL, owner, repo, token string, client *http.Client) *GitHub {
	return &GitHub{
		httpBackend: newHTTPBackend(baseURL, "Authorization", "Bearer "+token, client),
		Owner:       owner,
		Repo:        repo,
	}
}

func (g *GitHub) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", g.Owner, g.Repo, suffix)
}

type githubPR struct {
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

func (p githubPR) toPullRequest() PullRequest {
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

func (g *GitHub) ListOpenPRs(ctx context.Context, branchPrefix string) ([]PullRequest, error) {
	var raw []githubPR
	if _, err := g.do(ctx, http.MethodGet, g.repoPath("/pulls?state=open&per_page=100"), nil, &raw); err != nil {
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

func (g *GitHub) OpenPR(ctx context.Context, in NewPR) (PullRequest, error) {
	req := map[string]any{
		"title": in.Title,
		"body":  in.Body,
		"head":  in.HeadBranch,
		"base":  in.BaseBranch,
		"draft": in.Draft,
	}
	var raw githubPR
	if _, err := g.do(ctx, http.MethodPost, g.repoPath("/pulls"), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *GitHub) EditPR(ctx context.Context, number int, in EditPR) (PullRequest, error) {
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
	var raw githubPR
	if _, err := g.do(ctx, http.MethodPatch, g.repoPath(fmt.Sprintf("/pulls/%d", number)), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *GitHub) ClosePR(ctx context.Context, number int) error {
	_, err := g.EditPR(ctx, number, EditPR{State: "closed"})
	return err
}

type githubCommit struct {
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

func (g *GitHub) ListPRCommits(ctx context.Context, number int) ([]Commit, error) {
	var raw []githubCommit
	if _, err := g.do(ctx, http.MethodGet, g.repoPath(fmt.Sprintf("/pulls/%d/commits?per_page=250", number)), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Commit, 0, len(raw))
	for _, c := range raw {
		out = append(out, Commit{
			SHA:         c.SHA,
			AuthorLogin: c.Author.Login,
			Message:     c.Commit.Message,
			When:        c.Commit.Author.Date,
		})
	}
	return out, nil
}

func (g *GitHub) AssociatedPRs(ctx context.Context, sha string) ([]PullRequest, error) {
	var raw []githubPR
	if _, err := g.do(ctx, http.MethodGet, g.repoPath(fmt.Sprintf("/commits/%s/pulls", sha)), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]PullRequest, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.toPullRequest())
	}
	return out, nil
}

func (g *GitHub) GetPR(ctx context.Context, number int) (PullRequest, error) {
	var raw githubPR
	if _, err := g.do(ctx, http.MethodGet, g.repoPath(fmt.Sprintf("/pulls/%d", number)), nil, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

// AddLabels POSTs label names directly — GitHub creates no intermediate
// objects, unlike Gitea (spec.md §4.8's "Label management differs per
// backend").
func (g *GitHub) AddLabels(ctx context.Context, number int, labels []string) error {
	req := map[string]any{"labels": labels}
	_, err := g.do(ctx, http.MethodPost, g.repoPath(fmt.Sprintf("/issues/%d/labels", number)), req, nil)
	return err
}

func (g *GitHub) CreateRelease(ctx context.Context, in ReleaseInput) error {
	req := map[string]any{
		"tag_name":   in.TagName,
		"name":       in.Name,
		"body":       in.Body,
		"draft":      in.Draft,
		"prerelease": in.Prerelease,
	}
	if in.MakeLatest != nil {
		if *in.MakeLatest {
			req["make_latest"] = "true"
		} else {
			req["make_latest"] = "false"
		}
	}
	_, err := g.do(ctx, http.MethodPost, g.repoPath("/releases"), req, nil)
	return err
}
