package model

// Workspace is an ordered set of packages with one root manifest that may
// own `[workspace.dependencies]` and a shared `[workspace.package]` version.
type Workspace struct {
	RootDir         string
	RootManifest    string
	Packages        []*Package
	WorkspaceVersion *string // the `[workspace.package].version`, if set
}

// PackageByName looks up a package by name.
func (w *Workspace) PackageByName(name string) (*Package, bool) {
	for _, p := range w.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Publishable returns every package in the workspace eligible for release.
func (w *Workspace) Publishable() []*Package {
	var out []*Package
	for _, p := range w.Packages {
		if p.Publishable() {
			out = append(out, p)
		}
	}
	return out
}
