package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/release-plz-go/internal/cargoexec"
	"github.com/grovetools/release-plz-go/internal/model"
	"github.com/grovetools/release-plz-go/internal/planner"
)

func newUpdateCmd() *cobra.Command {
	var (
		registryKind   string
		registrySparse string
		registryGitDir string
		registryToken  string
		registryAPIURL string
		remoteURL      string
		skipLockfile   bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Compute the next version and changelog for every changed package",
		Long: `Resolves unreleased commits per package, decides the next version per
the conventional-commit bump rules, renders each changelog section, and
writes the resulting manifest and changelog edits directly to the
working tree. Prints the computed plan as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ws, cfg, repo, err := loadWorkspace(ctx)
			if err != nil {
				return err
			}

			idx := buildRegistryIndex(registryKind, registrySparse, registryGitDir, registryToken)

			scratchDir, err := os.MkdirTemp("", "release-plz-update-")
			if err != nil {
				return fmt.Errorf("create scratch dir: %w", err)
			}
			defer os.RemoveAll(scratchDir)

			diffs, existing, err := resolveDiffs(ctx, ws, cfg, repo, idx, registryAPIURL, scratchDir)
			if err != nil {
				return err
			}

			var cargo *cargoexec.Runner
			if !skipLockfile {
				cargo = cargoexec.New(ws.RootDir)
			}

			pl := planner.New(ws, cfg, cargo, log)
			pl.RemoteURL = remoteURL

			update, err := pl.Plan(ctx, diffs, existing)
			if err != nil {
				return fmt.Errorf("plan update: %w", err)
			}

			return printJSON(cmd, updateSummary(update))
		},
	}

	cmd.Flags().StringVar(&registryKind, "registry-kind", "sparse", "registry backend: sparse or git")
	cmd.Flags().StringVar(&registrySparse, "registry-url", "https://index.crates.io", "sparse index base URL")
	cmd.Flags().StringVar(&registryGitDir, "registry-git-dir", "", "local clone directory for a git-backed index")
	cmd.Flags().StringVar(&registryToken, "registry-token", os.Getenv("CARGO_REGISTRY_TOKEN"), "registry auth token")
	cmd.Flags().StringVar(&registryAPIURL, "registry-api-url", "https://crates.io", "registry API base URL used to download published tarballs for tree comparison")
	cmd.Flags().StringVar(&remoteURL, "repo-url", "", "repository URL used to link commits/PRs in rendered changelogs")
	cmd.Flags().BoolVar(&skipLockfile, "no-lockfile-update", false, "skip running cargo update after writing manifest changes")

	return cmd
}

type releaseRecordJSON struct {
	Package              string `json:"package"`
	NextVersion          string `json:"next_version,omitempty"`
	ChangelogText        string `json:"changelog,omitempty"`
	NoUnpublishedChanges bool   `json:"no_unpublished_changes"`
}

type updateSummaryJSON struct {
	Releases         []releaseRecordJSON `json:"releases"`
	WorkspaceVersion string              `json:"workspace_version,omitempty"`
}

func updateSummary(update model.PackagesUpdate) updateSummaryJSON {
	out := updateSummaryJSON{WorkspaceVersion: update.WorkspaceVersion}
	for _, r := range update.Results {
		out.Releases = append(out.Releases, releaseRecordJSON{
			Package:              r.Package.Name,
			NextVersion:          r.NextVersion,
			ChangelogText:        r.ChangelogText,
			NoUnpublishedChanges: r.NoUnpublishedChanges,
		})
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
