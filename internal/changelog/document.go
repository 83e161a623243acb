package changelog

import (
	"fmt"
	"regexp"
	"strings"
)

// unreleasedHeadingRE matches the "## [Unreleased]" or "## Unreleased"
// marker line (the first letter may be upper or lower case; the rest is
// lowercase), mirroring changelog_parser.rs's
// header-boundary regex in original_source/.
var unreleasedHeadingRE = regexp.MustCompile(`(?m)^## \[?[Uu]nreleased\]?\s*$`)

// versionHeadingRE matches any "## " release heading, used both to find
// the header/body boundary when there's no [Unreleased] marker and to
// find the insertion point for a new section.
var versionHeadingRE = regexp.MustCompile(`(?m)^## `)

// ParseHeader returns everything in changelog up to (and including) its
// first "## [Unreleased]" marker, or, absent that, up to (excluding) its
// first "## " release heading. Returns ok=false if neither is found.
func ParseHeader(text string) (header string, ok bool) {
	if loc := unreleasedHeadingRE.FindStringIndex(text); loc != nil {
		return text[:loc[1]] + "\n", true
	}
	if loc := versionHeadingRE.FindStringIndex(text); loc != nil {
		return text[:loc[0]], true
	}
	return "", false
}

// HasVersionSection reports whether changelog already contains a
// "## [version]" or "## version" release heading for the exact version
// string given.
func HasVersionSection(text, version string) bool {
	pattern := fmt.Sprintf(`(?m)^## \[?%s\]?([ \t]|$)`, regexp.QuoteMeta(version))
	return regexp.MustCompile(pattern).MatchString(text)
}

// Update renders input's release section and splices it into old
// immediately after the header (and any [Unreleased] marker),
// returning the updated document and whether anything changed. If old
// already has a section for input.Version, Update reports changed=false
// and returns old unmodified — callers must not emit an edit in that
// case (spec.md §4.3).
func Update(cfg Config, old string, input ReleaseInput) (newText string, changed bool, err error) {
	if HasVersionSection(old, input.Version) {
		return old, false, nil
	}

	section, err := Render(cfg, input)
	if err != nil {
		return "", false, err
	}

	insertAt := insertionPoint(old)
	newText = old[:insertAt] + "\n" + section + old[insertAt:]
	return newText, true, nil
}

// insertionPoint locates where a new release section belongs: right
// after the [Unreleased] marker line if one exists, else right after
// the document header, else at the very start.
func insertionPoint(old string) int {
	if loc := unreleasedHeadingRE.FindStringIndex(old); loc != nil {
		return loc[1]
	}
	if header, ok := ParseHeader(old); ok {
		return len(header)
	}
	return 0
}

// NewDocument returns a fresh changelog document containing only cfg's
// static header (used the first time a package gets a changelog).
func NewDocument(cfg Config) string {
	if strings.HasSuffix(cfg.Header, "\n") {
		return cfg.Header
	}
	return cfg.Header + "\n"
}
