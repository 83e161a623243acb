package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/release-plz-go/internal/cargoexec"
	"github.com/grovetools/release-plz-go/internal/executor"
	"github.com/grovetools/release-plz-go/internal/safety"
)

func newReleaseCmd() *cobra.Command {
	var (
		registryKind   string
		registrySparse string
		registryGitDir string
		registryToken  string

		forgeKind  string
		forgeURL   string
		forgeOwner string
		forgeRepo  string
		forgeToken string
		baseBranch string

		waitForVisibility bool
	)

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Publish, tag, and create forge releases for every unreleased package",
		Long: `Walks the workspace in dependency order and, for every package not
already present on the registry at its current version, runs
"cargo publish", tags the commit, and creates a forge release. Running
this again on an unchanged HEAD is a no-op and prints an empty
release list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := safety.CheckRegistryToken(); err != nil {
				return err
			}

			ws, cfg, repo, err := loadWorkspace(ctx)
			if err != nil {
				return err
			}

			idx := buildRegistryIndex(registryKind, registrySparse, registryGitDir, registryToken)

			forgeClient, err := optionalForgeClient(forgeKind, forgeURL, forgeOwner, forgeRepo, forgeToken)
			if err != nil {
				return err
			}

			changelogCache := map[string]string{}

			ex := &executor.Executor{
				Workspace:         ws,
				Config:            cfg,
				Cargo:             cargoexec.New(ws.RootDir),
				Repo:              repo,
				Forge:             forgeClient,
				Registry:          idx,
				Log:               log,
				Token:             registryToken,
				BaseBranch:        baseBranch,
				WaitForVisibility: waitForVisibility,
				ChangelogExcerpt: func(pkgName, version string) string {
					if text, ok := changelogCache[pkgName]; ok {
						return versionSection(text, version)
					}
					pkg, ok := ws.PackageByName(pkgName)
					if !ok {
						return ""
					}
					path := cfg.ForPackage(pkgName).ChangelogPath
					if path == "" {
						path = "CHANGELOG.md"
					}
					data, err := os.ReadFile(filepath.Join(pkg.Dir, path))
					text := ""
					if err == nil {
						text = string(data)
					}
					changelogCache[pkgName] = text
					return versionSection(text, version)
				},
			}

			summary, err := ex.Run(ctx)
			if err != nil {
				return fmt.Errorf("release: %w", err)
			}

			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().StringVar(&registryKind, "registry-kind", "sparse", "registry backend: sparse or git")
	cmd.Flags().StringVar(&registrySparse, "registry-url", "https://index.crates.io", "sparse index base URL")
	cmd.Flags().StringVar(&registryGitDir, "registry-git-dir", "", "local clone directory for a git-backed index")
	cmd.Flags().StringVar(&registryToken, "registry-token", os.Getenv("CARGO_REGISTRY_TOKEN"), "registry auth token, also passed to cargo publish")

	cmd.Flags().StringVar(&forgeKind, "forge", "github", "forge backend: github, gitlab, or gitea")
	cmd.Flags().StringVar(&forgeURL, "forge-url", "https://api.github.com", "forge API base URL")
	cmd.Flags().StringVar(&forgeOwner, "forge-owner", "", "repository owner/namespace")
	cmd.Flags().StringVar(&forgeRepo, "forge-repo", "", "repository name")
	cmd.Flags().StringVar(&forgeToken, "forge-token", os.Getenv("RELEASE_PLZ_TOKEN"), "forge auth token; forge releases are skipped entirely when unset")

	cmd.Flags().BoolVar(&waitForVisibility, "wait-for-visibility", false, "block until each publish is visible on the registry before tagging")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "main", "branch a release PR targets, used to check whether its last commit is still reachable when HEAD has moved past it")

	return cmd
}

// versionSection returns the "## [version]" section of a changelog, from
// its heading up to the next "## " heading, or "" when there is none.
func versionSection(text, version string) string {
	heading := regexp.MustCompile(fmt.Sprintf(`(?m)^## \[?%s\]?([ \t]|$)`, regexp.QuoteMeta(version)))
	loc := heading.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if next := regexp.MustCompile(`(?m)^## `).FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(text[loc[0]:loc[1]] + rest)
}
