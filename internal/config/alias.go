package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// workspaceYAML mirrors the handful of fields a "workspace.yml" alias
// may set; present for teams that keep the rest of their tooling in
// YAML and don't want a second file format just for this one.
//
// Grounded on the teacher's WorkspaceMetadata / yaml.Unmarshal pattern
// in cmd/dev_workspace.go.
type workspaceYAML struct {
	PRBranchPrefix string   `yaml:"pr_branch_prefix"`
	PRLabels       []string `yaml:"pr_labels"`
	AllowDirty     bool     `yaml:"allow_dirty"`
}

// LoadWorkspaceYAMLAlias reads "<dir>/workspace.yml", when present, and
// overlays its fields onto cfg.Workspace. Returns cfg unchanged if no
// such file exists.
func LoadWorkspaceYAMLAlias(cfg *Config, dir string) error {
	path := filepath.Join(dir, "workspace.yml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var alias workspaceYAML
	if err := yaml.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if alias.PRBranchPrefix != "" {
		cfg.Workspace.PRBranchPrefix = alias.PRBranchPrefix
	}
	if len(alias.PRLabels) > 0 {
		cfg.Workspace.PRLabels = alias.PRLabels
	}
	if alias.AllowDirty {
		cfg.Workspace.AllowDirty = true
	}
	return nil
}
