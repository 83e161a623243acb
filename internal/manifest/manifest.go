// Package manifest loads and edits a Cargo.toml, preserving whitespace and
// comments on every targeted mutation (spec.md §4.1).
//
// Structural reads (dependency table enumeration, the `publish` field,
// workspace-inheritance keys) go through github.com/pelletier/go-toml/v2
// into a generic document; targeted writes patch the original byte slice
// directly so everything untouched — comments, key order, inline-table
// shape — survives a round trip. No library in the example pack offers a
// format-preserving TOML *editor* (see DESIGN.md, entry "internal/manifest"),
// so the patcher below is scoped to exactly the mutation points spec.md
// §4.1 names.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/grovetools/release-plz-go/internal/apperrors"
)

// DepTableKind names one of the dependency-table flavors a manifest can
// carry.
type DepTableKind struct {
	// Path is the dotted TOML path to the table, e.g. "dependencies",
	// "workspace.dependencies", or "target.cfg(unix).dependencies".
	Path string
	Kind string // "normal", "build", "dev"
}

// LocalManifest is a Cargo.toml loaded from disk, available for targeted
// in-place editing.
type LocalManifest struct {
	Path     string
	raw      []byte
	doc      map[string]any
}

// Load reads and parses path. path must be absolute (mirrors the Rust
// original's LocalManifest::try_new requirement).
func Load(path string) (*LocalManifest, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("manifest: %w: %s is not absolute", apperrors.ErrInvalidManifest, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest: %w: %s", apperrors.ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: %w: %s: %w", apperrors.ErrInvalidManifest, path, err)
	}

	return &LocalManifest{Path: path, raw: data, doc: doc}, nil
}

// Raw returns the current in-memory byte content (after any mutations).
func (m *LocalManifest) Raw() []byte { return m.raw }

// Write serializes the manifest atomically: written to a temp file in the
// same directory, then renamed over the original.
func (m *LocalManifest) Write() error {
	tmp, err := os.CreateTemp(dirOf(m.Path), ".Cargo.toml.*.tmp")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(m.raw); err != nil {
		tmp.Close()
		return fmt.Errorf("manifest: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.Path); err != nil {
		return fmt.Errorf("manifest: rename into place: %w", err)
	}
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// table returns a nested map at the dotted path, or nil if absent.
func table(doc map[string]any, dotted string) map[string]any {
	cur := doc
	for _, part := range strings.Split(dotted, ".") {
		next, ok := cur[part]
		if !ok {
			return nil
		}
		nextMap, ok := next.(map[string]any)
		if !ok {
			return nil
		}
		cur = nextMap
	}
	return cur
}

// PackageVersion returns the `[package].version` string, or "" plus true
// for inherited if the manifest declares `version.workspace = true`.
func (m *LocalManifest) PackageVersion() (version string, inherited bool) {
	pkg := table(m.doc, "package")
	if pkg == nil {
		return "", false
	}
	switch v := pkg["version"].(type) {
	case string:
		return v, false
	case map[string]any:
		if ws, ok := v["workspace"].(bool); ok && ws {
			return "", true
		}
	}
	return "", false
}

// WorkspacePackageVersion returns `[workspace.package].version`, if set.
func (m *LocalManifest) WorkspacePackageVersion() (string, bool) {
	ws := table(m.doc, "workspace.package")
	if ws == nil {
		return "", false
	}
	v, ok := ws["version"].(string)
	return v, ok
}

// standardDepTableKinds enumerates the non-target-conditional dependency
// tables reachable from root.
var standardDepTableKinds = []DepTableKind{
	{Path: "dependencies", Kind: "normal"},
	{Path: "dev-dependencies", Kind: "dev"},
	{Path: "build-dependencies", Kind: "build"},
	{Path: "workspace.dependencies", Kind: "normal"},
}

// DepTables returns every dependency table reachable from root: the
// standard four plus every `[target.*.{dependencies,dev-dependencies,build-dependencies}]`
// variant present in the manifest.
func (m *LocalManifest) DepTables() []DepTableKind {
	out := append([]DepTableKind{}, standardDepTableKinds...)

	target := table(m.doc, "target")
	for spec, raw := range target {
		tbl, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for key, kind := range map[string]string{
			"dependencies":       "normal",
			"dev-dependencies":   "dev",
			"build-dependencies": "build",
		} {
			if _, ok := tbl[key]; ok {
				out = append(out, DepTableKind{Path: fmt.Sprintf("target.%s.%s", spec, key), Kind: kind})
			}
		}
	}
	return out
}

// DependencyEntries returns every dependency name, requirement, and path
// (if any) declared in the given table.
type DependencyEntry struct {
	Name string
	Req  string
	Path string
}

func (m *LocalManifest) DependencyEntries(dotted string) []DependencyEntry {
	tbl := table(m.doc, dotted)
	if tbl == nil {
		return nil
	}
	var out []DependencyEntry
	for name, raw := range tbl {
		switch v := raw.(type) {
		case string:
			out = append(out, DependencyEntry{Name: name, Req: v})
		case map[string]any:
			entry := DependencyEntry{Name: name}
			if req, ok := v["version"].(string); ok {
				entry.Req = req
			}
			if p, ok := v["path"].(string); ok {
				entry.Path = p
			}
			out = append(out, entry)
		}
	}
	return out
}

// Publish reports the raw `[package].publish` field value: nil if absent,
// a bool if boolean, or a []string if a registry list.
func (m *LocalManifest) Publish() any {
	pkg := table(m.doc, "package")
	if pkg == nil {
		return nil
	}
	raw, ok := pkg["publish"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case bool:
		return v
	case []any:
		var list []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	default:
		return nil
	}
}

// --- targeted, format-preserving mutation -------------------------------

var keyValueLine = func(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(\s*` + regexp.QuoteMeta(key) + `\s*=\s*)"([^"]*)"(.*)$`)
}

// sectionBounds returns the byte offsets [start,end) of the body of the
// TOML table header matching headerRE, i.e. the region after the header
// line up to (but excluding) the next top-level `[` header or EOF.
func sectionBounds(raw []byte, header string) (start, end int, found bool) {
	headerRE := regexp.MustCompile(`(?m)^\[` + regexp.QuoteMeta(header) + `\]\s*$`)
	loc := headerRE.FindIndex(raw)
	if loc == nil {
		return 0, 0, false
	}
	bodyStart := loc[1]
	// Find the next header line (`[` at column 0) after bodyStart.
	nextHeaderRE := regexp.MustCompile(`(?m)^\[`)
	rest := raw[bodyStart:]
	nextLoc := nextHeaderRE.FindIndex(rest)
	if nextLoc == nil {
		return bodyStart, len(raw), true
	}
	return bodyStart, bodyStart + nextLoc[0], true
}

// replaceSubmatch2 rewrites the quoted string held in the second capture
// group of a FindSubmatchIndex match (groups: 1=prefix, 2=old quoted value
// without quotes, 3=suffix) with newValue, leaving groups 1 and 3 and
// everything outside the whole match untouched.
func replaceSubmatch2(section []byte, loc []int, newValue string) []byte {
	var buf bytes.Buffer
	buf.Write(section[:loc[0]])        // everything before the match
	buf.Write(section[loc[2]:loc[3]])  // group 1 (prefix up to opening quote)
	buf.WriteByte('"')
	buf.WriteString(newValue)
	buf.WriteByte('"')
	buf.Write(section[loc[6]:loc[7]]) // group 3 (suffix after closing quote)
	buf.Write(section[loc[1]:])        // everything after the match
	return buf.Bytes()
}

// setStringKeyInSection rewrites the value of `key = "..."` within the
// named table section, preserving everything else on the line (including
// trailing comments) and in the file.
func setStringKeyInSection(raw []byte, header, key, newValue string) ([]byte, error) {
	start, end, found := sectionBounds(raw, header)
	if !found {
		return nil, fmt.Errorf("manifest: no [%s] table", header)
	}
	section := raw[start:end]
	re := keyValueLine(key)
	loc := re.FindSubmatchIndex(section)
	if loc == nil {
		return nil, fmt.Errorf("manifest: no %q key in [%s]", key, header)
	}

	newSection := replaceSubmatch2(section, loc, newValue)
	return spliceSection(raw, start, end, newSection), nil
}

// SetPackageVersion rewrites `[package].version = "..."`.
func (m *LocalManifest) SetPackageVersion(newVersion string) error {
	newRaw, err := setStringKeyInSection(m.raw, "package", "version", newVersion)
	if err != nil {
		return err
	}
	m.raw = newRaw
	pkg := table(m.doc, "package")
	if pkg != nil {
		pkg["version"] = newVersion
	}
	return nil
}

// SetWorkspacePackageVersion rewrites `[workspace.package].version = "..."`.
func (m *LocalManifest) SetWorkspacePackageVersion(newVersion string) error {
	newRaw, err := setStringKeyInSection(m.raw, "workspace.package", "version", newVersion)
	if err != nil {
		return err
	}
	m.raw = newRaw
	ws := table(m.doc, "workspace.package")
	if ws != nil {
		ws["version"] = newVersion
	}
	return nil
}

// SetDependencyVersion rewrites the `version` field of a dependency table
// entry, whether expressed as a bare string (`name = "req"`) or as an
// inline table (`name = { path = "...", version = "req" }`).
func (m *LocalManifest) SetDependencyVersion(tableDotted, depName, newReq string) error {
	header := tableDotted
	start, end, found := sectionBounds(m.raw, header)
	if !found {
		return fmt.Errorf("manifest: no [%s] table", header)
	}
	section := m.raw[start:end]

	// Bare string form: `name = "req"`.
	bareRE := regexp.MustCompile(`(?m)^(\s*` + regexp.QuoteMeta(depName) + `\s*=\s*)"([^"]*)"(\s*(?:#.*)?)$`)
	if loc := bareRE.FindSubmatchIndex(section); loc != nil {
		newSection := replaceSubmatch2(section, loc, newReq)
		m.raw = spliceSection(m.raw, start, end, newSection)
		return nil
	}

	// Inline-table form: `name = { ..., version = "req", ... }`.
	inlineRE := regexp.MustCompile(`(?m)^(\s*` + regexp.QuoteMeta(depName) + `\s*=\s*\{[^\}]*\bversion\s*=\s*)"([^"]*)"([^\}]*\})`)
	if loc := inlineRE.FindSubmatchIndex(section); loc != nil {
		newSection := replaceSubmatch2(section, loc, newReq)
		m.raw = spliceSection(m.raw, start, end, newSection)
		return nil
	}

	return fmt.Errorf("manifest: dependency %q has no version field in [%s]", depName, header)
}

func spliceSection(raw []byte, start, end int, newSection []byte) []byte {
	out := make([]byte, 0, len(raw))
	out = append(out, raw[:start]...)
	out = append(out, newSection...)
	out = append(out, raw[end:]...)
	return out
}
