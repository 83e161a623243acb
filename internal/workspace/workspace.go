// Package workspace discovers a Cargo workspace's member packages and
// their dependency graph by shelling out to `cargo metadata`, the same
// approach cargo_utils::workspace_members takes in original_source/
// (itself wrapping cargo_metadata::MetadataCommand) rather than
// reimplementing Cargo's own `members`/`exclude` glob resolution.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/grovetools/release-plz-go/internal/manifest"
	"github.com/grovetools/release-plz-go/internal/model"
)

type cargoMetadata struct {
	Packages         []cargoPackage `json:"packages"`
	WorkspaceMembers []string       `json:"workspace_members"`
	WorkspaceRoot    string         `json:"workspace_root"`
}

type cargoPackage struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	ManifestPath string           `json:"manifest_path"`
	Publish      *json.RawMessage `json:"publish"`
	Dependencies []cargoDependency `json:"dependencies"`
}

type cargoDependency struct {
	Name   string  `json:"name"`
	Req    string  `json:"req"`
	Kind   *string `json:"kind"` // null=normal, "dev", "build"
	Path   *string `json:"path"`
	Target *string `json:"target"`
}

// Load runs `cargo metadata` rooted at manifestPath (the workspace root
// Cargo.toml) and builds a model.Workspace from its output, then
// consults each member's raw manifest for details cargo metadata
// normalizes away: workspace-version inheritance and the root's own
// `[workspace.package].version`.
func Load(ctx context.Context, manifestPath string) (*model.Workspace, error) {
	cmd := exec.CommandContext(ctx, "cargo", "metadata", "--no-deps", "--format-version=1", "--manifest-path", manifestPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("workspace: cargo metadata: %s", stderr.String())
	}

	var meta cargoMetadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("workspace: parse cargo metadata output: %w", err)
	}

	members := make(map[string]bool, len(meta.WorkspaceMembers))
	for _, id := range meta.WorkspaceMembers {
		members[id] = true
	}

	ws := &model.Workspace{
		RootDir:      meta.WorkspaceRoot,
		RootManifest: filepath.Join(meta.WorkspaceRoot, "Cargo.toml"),
	}

	for _, cp := range meta.Packages {
		if !members[cp.ID] {
			continue
		}
		pkg, err := toPackage(cp)
		if err != nil {
			return nil, err
		}
		ws.Packages = append(ws.Packages, pkg)
	}

	if root, err := manifest.Load(ws.RootManifest); err == nil {
		if v, ok := root.WorkspacePackageVersion(); ok {
			ws.WorkspaceVersion = &v
		}
	}

	return ws, nil
}

func toPackage(cp cargoPackage) (*model.Package, error) {
	version, err := semver.NewVersion(cp.Version)
	if err != nil {
		return nil, fmt.Errorf("workspace: parse version for %s: %w", cp.Name, err)
	}

	pkg := &model.Package{
		Name:         cp.Name,
		Version:      version,
		ManifestPath: cp.ManifestPath,
		Dir:          filepath.Dir(cp.ManifestPath),
		Publish:      parsePublish(cp.Publish),
	}

	if m, err := manifest.Load(pkg.ManifestPath); err == nil {
		if _, inherited := m.PackageVersion(); inherited {
			pkg.VersionInherited = true
		}
	}

	for _, cd := range cp.Dependencies {
		dep := model.Dependency{
			Name: cd.Name,
			Req:  cd.Req,
			Kind: model.DepNormal,
		}
		if cd.Path != nil {
			dep.Path = *cd.Path
		}
		if cd.Kind != nil {
			switch *cd.Kind {
			case "dev":
				dep.Kind = model.DepDev
			case "build":
				dep.Kind = model.DepBuild
			}
		}
		if cd.Target != nil {
			dep.TargetSpec = *cd.Target
		}
		pkg.Deps = append(pkg.Deps, dep)
	}

	return pkg, nil
}

func parsePublish(raw *json.RawMessage) model.Publish {
	if raw == nil {
		return model.Publish{Kind: model.PublishAbsent}
	}
	var asBool bool
	if err := json.Unmarshal(*raw, &asBool); err == nil {
		return model.Publish{Kind: model.PublishBool, Bool: asBool}
	}
	var asList []string
	if err := json.Unmarshal(*raw, &asList); err == nil {
		return model.Publish{Kind: model.PublishRegistryList, Registries: asList}
	}
	return model.Publish{Kind: model.PublishAbsent}
}
