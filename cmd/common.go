package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/grovetools/release-plz-go/internal/config"
	"github.com/grovetools/release-plz-go/internal/cratesdl"
	"github.com/grovetools/release-plz-go/internal/diff"
	"github.com/grovetools/release-plz-go/internal/forge"
	"github.com/grovetools/release-plz-go/internal/gitgw"
	"github.com/grovetools/release-plz-go/internal/httpretry"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/registry"
	"github.com/grovetools/release-plz-go/internal/workspace"
)

// retryingClient returns an *http.Client wrapping internal/httpretry's
// backoff RoundTripper, shared by every outbound HTTP caller (forge
// backends, the sparse registry index, the crate downloader).
func retryingClient() *http.Client {
	return &http.Client{Transport: httpretry.New(http.DefaultTransport)}
}

// loadWorkspace resolves the workspace, its release-plz.toml (plus any
// workspace.yml alias), and a git gateway rooted at the workspace root.
func loadWorkspace(ctx context.Context) (*model.Workspace, *config.Config, *gitgw.Repo, error) {
	absManifest, err := filepath.Abs(flagManifestPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	ws, err := workspace.Load(ctx, absManifest)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load workspace: %w", err)
	}

	cfg, err := config.LoadFromDir(ws.RootDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load release-plz.toml: %w", err)
	}
	if err := config.LoadWorkspaceYAMLAlias(cfg, ws.RootDir); err != nil {
		return nil, nil, nil, fmt.Errorf("load workspace.yml: %w", err)
	}

	repo := gitgw.New(ws.RootDir)
	return ws, cfg, repo, nil
}

// buildRegistryIndex constructs the configured registry.Index backend.
// kind is "sparse" (default, an HTTPS index like crates.io) or "git" (a
// self-hosted git-backed index, addressed by a local clone directory).
func buildRegistryIndex(kind, sparseURL, gitDir, token string) registry.Index {
	if kind == "git" {
		return registry.NewGitIndex(gitDir)
	}
	return registry.NewSparseIndex(sparseURL, token, retryingClient(), log)
}

// optionalForgeClient builds a forge.Client when a token is configured,
// or returns nil when it isn't — forge releases (and the release-notes
// body that goes with them) are then skipped entirely rather than
// failing the run over a forge credential that simply isn't relevant to
// a given invocation (e.g. a pure `cargo publish` with no associated PR).
func optionalForgeClient(kind, baseURL, owner, repoName, token string) (forge.Client, error) {
	if token == "" {
		return nil, nil
	}
	return buildForgeClient(kind, baseURL, owner, repoName, token)
}

// buildForgeClient constructs the configured forge.Client backend.
func buildForgeClient(kind, baseURL, owner, repoName, token string) (forge.Client, error) {
	client := retryingClient()
	switch kind {
	case "gitlab":
		return forge.NewGitLab(baseURL, owner+"/"+repoName, token, client), nil
	case "gitea":
		return forge.NewGitea(baseURL, owner, repoName, token, client), nil
	case "github", "":
		return forge.NewGitHub(baseURL, owner, repoName, token, client), nil
	default:
		return nil, fmt.Errorf("unknown forge kind %q (want github, gitlab, or gitea)", kind)
	}
}

// resolvePublishedContext reports whether idx has pkg's current manifest
// version and, when it does, what the registry's download endpoint (when
// reachable) knows about it, building the diff.PublishedContext the
// package-diff resolver needs. A package whose current version is not on
// the registry is reported as not existing, even if an earlier version
// was published.
func resolvePublishedContext(ctx context.Context, idx registry.Index, downloadBaseURL string, pkg *model.Package, scratchDir string) (diff.PublishedContext, error) {
	version := pkg.Version.String()
	published, err := idx.IsPublished(ctx, pkg.Name, version)
	if err != nil {
		return diff.PublishedContext{}, fmt.Errorf("check %s@%s on registry: %w", pkg.Name, version, err)
	}
	if !published {
		return diff.PublishedContext{Exists: false}, nil
	}

	pub := diff.PublishedContext{Exists: true, Version: version}
	if downloadBaseURL == "" {
		return pub, nil
	}

	destDir := filepath.Join(scratchDir, pkg.Name)
	treeDir, err := cratesdl.Download(ctx, retryingClient(), downloadBaseURL, pkg.Name, version, destDir)
	if err != nil {
		// Advisory only: fall back to tree-walk without a downloaded twin
		// rather than failing the whole run over registry availability.
		return pub, nil
	}
	pub.TreeDir = treeDir
	pub.CommitSHA = registry.ReadVCSInfoSHA(filepath.Join(treeDir, ".cargo_vcs_info.json"))
	return pub, nil
}

// resolveDiffs computes the package-diff resolver's output for every
// publishable package, plus each package's existing changelog text (read
// from its configured changelog path, empty if absent).
func resolveDiffs(ctx context.Context, ws *model.Workspace, cfg *config.Config, repo *gitgw.Repo, idx registry.Index, downloadBaseURL, scratchDir string) (map[string]model.Diff, map[string]string, error) {
	resolver := diff.New(repo, log)
	diffs := make(map[string]model.Diff)
	existing := make(map[string]string)

	for _, pkg := range ws.Publishable() {
		defaults := cfg.ForPackage(pkg.Name)
		if !defaults.Publish {
			continue
		}

		pub, err := resolvePublishedContext(ctx, idx, downloadBaseURL, pkg, scratchDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve published context for %s: %w", pkg.Name, err)
		}

		d, err := resolver.Resolve(ctx, pkg, pub)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve diff for %s: %w", pkg.Name, err)
		}
		diffs[pkg.Name] = d

		changelogPath := defaults.ChangelogPath
		if changelogPath == "" {
			changelogPath = "CHANGELOG.md"
		}
		if data, err := os.ReadFile(filepath.Join(pkg.Dir, changelogPath)); err == nil {
			existing[pkg.Name] = string(data)
		}
	}

	return diffs, existing, nil
}
