package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grovetools/release-plz-go/internal/cargoexec"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/planner"
	"github.com/grovetools/release-plz-go/internal/releasepr"
	"github.com/grovetools/release-plz-go/internal/workspace"
)

func newReleasePRCmd() *cobra.Command {
	var (
		registryKind   string
		registrySparse string
		registryGitDir string
		registryToken  string
		registryAPIURL string
		remoteURL      string

		forgeKind  string
		forgeURL   string
		forgeOwner string
		forgeRepo  string
		forgeToken string
		baseBranch string
	)

	cmd := &cobra.Command{
		Use:   "release-pr",
		Short: "Open or update the single release pull/merge request",
		Long: `Computes the same plan as "update", applies it on a dedicated release
branch, and opens or force-updates the one release PR the repository
carries at a time — closing any stray duplicates and closing the PR
outright once nothing remains to release.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ws, cfg, repo, err := loadWorkspace(ctx)
			if err != nil {
				return err
			}

			idx := buildRegistryIndex(registryKind, registrySparse, registryGitDir, registryToken)
			fc, err := buildForgeClient(forgeKind, forgeURL, forgeOwner, forgeRepo, forgeToken)
			if err != nil {
				return err
			}

			scratchDir, err := os.MkdirTemp("", "release-plz-release-pr-")
			if err != nil {
				return fmt.Errorf("create scratch dir: %w", err)
			}
			defer os.RemoveAll(scratchDir)

			// Diffs are computed once up front, against the base branch, so
			// the contributor-credit section reflects the commits actually
			// being released rather than whatever the release branch's own
			// history happens to contain.
			diffs, existing, err := resolveDiffs(ctx, ws, cfg, repo, idx, registryAPIURL, scratchDir)
			if err != nil {
				return err
			}

			relManifest, err := filepath.Rel(ws.RootDir, ws.RootManifest)
			if err != nil {
				relManifest = filepath.Base(ws.RootManifest)
			}

			// Each invocation re-loads the workspace from the scratch
			// copy releasepr.Orchestrator.Run checks the release branch
			// out into, so the planner's manifest/changelog edits land
			// there rather than in the caller's own working tree.
			plan := func(ctx context.Context, root string) (model.PackagesUpdate, error) {
				scratchWS, err := workspace.Load(ctx, filepath.Join(root, relManifest))
				if err != nil {
					return model.PackagesUpdate{}, fmt.Errorf("load scratch workspace: %w", err)
				}
				cargo := cargoexec.New(scratchWS.RootDir)
				pl := planner.New(scratchWS, cfg, cargo, log)
				pl.RemoteURL = remoteURL
				return pl.Plan(ctx, diffs, existing)
			}

			orch := releasepr.New(repo, fc, cfg, log, baseBranch)
			pr, opened, err := orch.Run(ctx, plan, diffs)
			if err != nil {
				return fmt.Errorf("reconcile release PR: %w", err)
			}

			return printJSON(cmd, releasePRSummary(pr, opened))
		},
	}

	cmd.Flags().StringVar(&registryKind, "registry-kind", "sparse", "registry backend: sparse or git")
	cmd.Flags().StringVar(&registrySparse, "registry-url", "https://index.crates.io", "sparse index base URL")
	cmd.Flags().StringVar(&registryGitDir, "registry-git-dir", "", "local clone directory for a git-backed index")
	cmd.Flags().StringVar(&registryToken, "registry-token", os.Getenv("CARGO_REGISTRY_TOKEN"), "registry auth token")
	cmd.Flags().StringVar(&registryAPIURL, "registry-api-url", "https://crates.io", "registry API base URL used to download published tarballs for tree comparison")
	cmd.Flags().StringVar(&remoteURL, "repo-url", "", "repository URL used to link commits/PRs in rendered changelogs")

	cmd.Flags().StringVar(&forgeKind, "forge", "github", "forge backend: github, gitlab, or gitea")
	cmd.Flags().StringVar(&forgeURL, "forge-url", "https://api.github.com", "forge API base URL")
	cmd.Flags().StringVar(&forgeOwner, "forge-owner", "", "repository owner/namespace")
	cmd.Flags().StringVar(&forgeRepo, "forge-repo", "", "repository name")
	cmd.Flags().StringVar(&forgeToken, "forge-token", os.Getenv("RELEASE_PLZ_TOKEN"), "forge auth token")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "main", "branch the release PR targets")

	return cmd
}

type releasePRSummaryJSON struct {
	Opened     bool     `json:"opened"`
	Number     int      `json:"number,omitempty"`
	HeadBranch string   `json:"head_branch,omitempty"`
	BaseBranch string   `json:"base_branch,omitempty"`
	Title      string   `json:"title,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

func releasePRSummary(pr model.ReleasePR, opened bool) releasePRSummaryJSON {
	return releasePRSummaryJSON{
		Opened:     opened,
		Number:     pr.Number,
		HeadBranch: pr.HeadBranch,
		BaseBranch: pr.BaseBranch,
		Title:      pr.Title,
		Labels:     pr.Labels,
	}
}
