// Package config loads release-plz.toml: workspace-wide defaults plus
// per-package override tables, the input the update planner (§4.7),
// release PR orchestrator (§4.8), and executor (§4.9) all read from.
//
// Grounded on the teacher's pkg/workspace/discover.go config-loading
// pattern (a struct decoded from a single file at the workspace root,
// with per-repo override sections), adapted from YAML to TOML since
// that's this domain's native config format — mirrored by the teacher's
// own grove.yml convention via the optional workspace.yml alias in
// alias.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// PackageDefaults holds settings that apply to every package unless
// overridden.
type PackageDefaults struct {
	Changelog        bool     `toml:"changelog"`
	ChangelogPath    string   `toml:"changelog_path"`
	Publish          bool     `toml:"publish"`
	GitRelease       bool     `toml:"git_release"`
	GitReleaseDraft  bool     `toml:"git_release_draft"`
	GitTag           bool     `toml:"git_tag"`
	TagNameTemplate  string   `toml:"tag_name_template"`
	ReleaseNameTemplate string `toml:"release_name_template"`
	SemverCheck      bool     `toml:"semver_check"`
	Registries       []string `toml:"registries"`

	// AllowDirty, NoVerify, Features and AllFeatures are forwarded to
	// `cargo publish` and, like the rest of PackageDefaults, can be
	// overridden per package.
	AllowDirty  bool     `toml:"allow_dirty"`
	NoVerify    bool     `toml:"no_verify"`
	Features    []string `toml:"features"`
	AllFeatures bool     `toml:"all_features"`
}

// WorkspaceConfig is the `[workspace]` table.
type WorkspaceConfig struct {
	PackageDefaults
	PRBranchPrefix string   `toml:"pr_branch_prefix"`
	PRLabels       []string `toml:"pr_labels"`
	CargoUpdateAll bool     `toml:"cargo_update_all"`

	// ReleaseAlways, when false, makes the executor a no-op unless HEAD
	// is the merge commit of an open release PR. DryRun forwards
	// `--dry-run` to every `cargo publish` invocation. Both apply to the
	// whole run, not per package.
	ReleaseAlways bool `toml:"release_always"`
	DryRun        bool `toml:"dry_run"`
}

// PackageOverride is one `[[package]]` table, keyed by Name. Boolean
// fields are pointers so an absent key in TOML is distinguishable from
// an explicit `false` and leaves the workspace default untouched.
type PackageOverride struct {
	Name                string   `toml:"name"`
	Changelog           *bool    `toml:"changelog"`
	ChangelogPath       string   `toml:"changelog_path"`
	Publish             *bool    `toml:"publish"`
	GitRelease          *bool    `toml:"git_release"`
	GitReleaseDraft     *bool    `toml:"git_release_draft"`
	GitTag              *bool    `toml:"git_tag"`
	TagNameTemplate     string   `toml:"tag_name_template"`
	ReleaseNameTemplate string   `toml:"release_name_template"`
	SemverCheck         *bool    `toml:"semver_check"`
	Registries          []string `toml:"registries"`
	AllowDirty          *bool    `toml:"allow_dirty"`
	NoVerify            *bool    `toml:"no_verify"`
	Features            []string `toml:"features"`
	AllFeatures         *bool    `toml:"all_features"`
}

// Config is the fully parsed release-plz.toml.
type Config struct {
	Workspace WorkspaceConfig   `toml:"workspace"`
	Packages  []PackageOverride `toml:"package"`
}

// Load reads and parses path (typically "<workspace root>/release-plz.toml").
func Load(path string) (*Config, error) {
	var cfg Config
	cfg.Workspace = defaultWorkspaceConfig()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDir looks for release-plz.toml directly under dir, falling
// back to default settings if it doesn't exist.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "release-plz.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{Workspace: defaultWorkspaceConfig()}
		return cfg, nil
	}
	return Load(path)
}

func defaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		PackageDefaults: PackageDefaults{
			Changelog:       true,
			ChangelogPath:   "CHANGELOG.md",
			Publish:         true,
			GitRelease:      true,
			GitTag:          true,
			TagNameTemplate: "{{ package }}-v{{ version }}",
			ReleaseNameTemplate: "{{ package }} {{ version }}",
			SemverCheck:     true,
		},
		PRBranchPrefix: "release-plz-",
		PRLabels:       []string{"release"},
		ReleaseAlways:  true,
	}
}

// ForPackage merges workspace defaults with name's override, when one
// exists. Unset override fields fall through to the workspace default.
func (c *Config) ForPackage(name string) PackageDefaults {
	merged := c.Workspace.PackageDefaults
	for _, pkg := range c.Packages {
		if pkg.Name != name {
			continue
		}
		merged = mergeOverride(merged, pkg)
		break
	}
	return merged
}

func mergeOverride(base PackageDefaults, override PackageOverride) PackageDefaults {
	merged := base
	if override.ChangelogPath != "" {
		merged.ChangelogPath = override.ChangelogPath
	}
	if override.TagNameTemplate != "" {
		merged.TagNameTemplate = override.TagNameTemplate
	}
	if override.ReleaseNameTemplate != "" {
		merged.ReleaseNameTemplate = override.ReleaseNameTemplate
	}
	if len(override.Registries) > 0 {
		merged.Registries = override.Registries
	}
	if override.Changelog != nil {
		merged.Changelog = *override.Changelog
	}
	if override.Publish != nil {
		merged.Publish = *override.Publish
	}
	if override.GitRelease != nil {
		merged.GitRelease = *override.GitRelease
	}
	if override.GitReleaseDraft != nil {
		merged.GitReleaseDraft = *override.GitReleaseDraft
	}
	if override.GitTag != nil {
		merged.GitTag = *override.GitTag
	}
	if override.SemverCheck != nil {
		merged.SemverCheck = *override.SemverCheck
	}
	if override.AllowDirty != nil {
		merged.AllowDirty = *override.AllowDirty
	}
	if override.NoVerify != nil {
		merged.NoVerify = *override.NoVerify
	}
	if len(override.Features) > 0 {
		merged.Features = override.Features
	}
	if override.AllFeatures != nil {
		merged.AllFeatures = *override.AllFeatures
	}
	return merged
}
