package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitLab implements Client against the GitLab REST API, addressing the
// project by its URL-encoded "namespace/project" path.
type GitLab struct {
	httpBackend
	ProjectPath string
}

// NewGitLab constructs a GitLab backend. baseURL is typically
// "https://gitlab.com/api/v4"; token is sent via the PRIVATE-TOKEN
// header GitLab's own API expects (not a Bearer token).
func NewGitLab(baseURL, projectPath, token string, client *http.Client) *GitLab {
	return &GitLab{
		httpBackend: newHTTPBackend(baseURL, "PRIVATE-TOKEN", token, client),
		ProjectPath: projectPath,
	}
}

func (g *GitLab) projectPath(suffix string) string {
	return fmt.Sprintf("/projects/%s%s", url.PathEscape(g.ProjectPath), suffix)
}

type gitlabMR struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	State        string `json:"state"`
	WorkInProgress bool  `json:"work_in_progress"`
	WebURL       string `json:"web_url"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Author       struct {
		Username string `json:"username"`
	} `json:"author"`
}

func (m gitlabMR) toPullRequest() PullRequest {
	state := m.State
	if state == "opened" {
		state = "open"
	}
	return PullRequest{
		Number:       m.IID,
		HeadBranch:   m.SourceBranch,
		BaseBranch:   m.TargetBranch,
		Title:        m.Title,
		Body:         m.Description,
		State:        state,
		CreatorLogin: m.Author.Username,
		Draft:        m.WorkInProgress,
		HTMLURL:      m.WebURL,
	}
}

func (g *GitLab) ListOpenPRs(ctx context.Context, branchPrefix string) ([]PullRequest, error) {
	var raw []gitlabMR
	if _, err := g.do(ctx, http.MethodGet, g.projectPath("/merge_requests?state=opened&per_page=100"), nil, &raw); err != nil {
		return nil, err
	}
	var out []PullRequest
	for _, m := range raw {
		if strings.HasPrefix(m.SourceBranch, branchPrefix) {
			out = append(out, m.toPullRequest())
		}
	}
	return out, nil
}

func (g *GitLab) OpenPR(ctx context.Context, in NewPR) (PullRequest, error) {
	req := map[string]any{
		"title":           in.Title,
		"description":     in.Body,
		"source_branch":   in.HeadBranch,
		"target_branch":   in.BaseBranch,
		"remove_source_branch": true,
	}
	var raw gitlabMR
	if _, err := g.do(ctx, http.MethodPost, g.projectPath("/merge_requests"), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *GitLab) EditPR(ctx context.Context, number int, in EditPR) (PullRequest, error) {
	req := map[string]any{}
	if in.Title != "" {
		req["title"] = in.Title
	}
	if in.Body != "" {
		req["description"] = in.Body
	}
	if in.State == "closed" {
		req["state_event"] = "close"
	}
	var raw gitlabMR
	if _, err := g.do(ctx, http.MethodPut, g.projectPath(fmt.Sprintf("/merge_requests/%d", number)), req, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

func (g *GitLab) ClosePR(ctx context.Context, number int) error {
	_, err := g.EditPR(ctx, number, EditPR{State: "closed"})
	return err
}

type gitlabCommit struct {
	ID            string    `json:"id"`
	Message       string    `json:"message"`
	AuthorName    string    `json:"author_name"`
	AuthoredDate  time.Time `json:"authored_date"`
}

func (g *GitLab) ListPRCommits(ctx context.Context, number int) ([]Commit, error) {
	var raw []gitlabCommit
	if _, err := g.do(ctx, http.MethodGet, g.projectPath(fmt.Sprintf("/merge_requests/%d/commits", number)), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Commit, 0, len(raw))
	for _, c := range raw {
		out = append(out, Commit{SHA: c.ID, AuthorLogin: c.AuthorName, Message: c.Message, When: c.AuthoredDate})
	}
	return out, nil
}

func (g *GitLab) AssociatedPRs(ctx context.Context, sha string) ([]PullRequest, error) {
	var raw []gitlabMR
	if _, err := g.do(ctx, http.MethodGet, g.projectPath(fmt.Sprintf("/repository/commits/%s/merge_requests", sha)), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]PullRequest, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.toPullRequest())
	}
	return out, nil
}

func (g *GitLab) GetPR(ctx context.Context, number int) (PullRequest, error) {
	var raw gitlabMR
	if _, err := g.do(ctx, http.MethodGet, g.projectPath(fmt.Sprintf("/merge_requests/%d", number)), nil, &raw); err != nil {
		return PullRequest{}, err
	}
	return raw.toPullRequest(), nil
}

// AddLabels PUTs the merge request with an `add_labels` field, per
// spec.md §4.8's "GitLab by PUT with add_labels" — GitLab merges these
// into the MR's existing label set server-side.
func (g *GitLab) AddLabels(ctx context.Context, number int, labels []string) error {
	req := map[string]any{"add_labels": strings.Join(labels, ",")}
	_, err := g.do(ctx, http.MethodPut, g.projectPath(fmt.Sprintf("/merge_requests/%d", number)), req, nil)
	return err
}

func (g *GitLab) CreateRelease(ctx context.Context, in ReleaseInput) error {
	req := map[string]any{
		"tag_name":    in.TagName,
		"name":        in.Name,
		"description": in.Body,
	}
	_, err := g.do(ctx, http.MethodPost, g.projectPath("/releases"), req, nil)
	return err
}
