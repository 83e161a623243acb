package model

// ReleasePR is the tool's view of the single release pull/merge request it
// maintains per repository. The head branch name always starts with the
// configured prefix (default "release-plz-").
type ReleasePR struct {
	Number     int
	HeadBranch string
	BaseBranch string
	Title      string
	Body       string
	Labels     []string
	Draft      bool
	State      string // "open" or "closed"
	CreatorLogin string
}

// ReleasePRPrefix is the default prefix every release PR's head branch
// begins with.
const ReleasePRPrefix = "release-plz-"
