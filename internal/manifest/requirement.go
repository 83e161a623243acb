package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/grovetools/release-plz-go/internal/apperrors"
)

// caretOrBare matches an (optional) caret prefix followed by a dotted
// version, e.g. "^1.2.3", "1.2.3", "^1".
var caretOrBare = regexp.MustCompile(`^(\^)?(\d+)(\.\d+)?(\.\d+)?$`)
var tildeRE = regexp.MustCompile(`^~(\d+)(\.\d+)?(\.\d+)?$`)
var exactRE = regexp.MustCompile(`^=(\d+)(\.\d+)?(\.\d+)?$`)
var wildcardRE = regexp.MustCompile(`^(\d+|\*)\.(\d+|\*)\.(\d+|\*)$`)

// UpgradeRequirement rewrites a version requirement string to adopt next's
// major/minor/patch while keeping the original operator's shape (spec.md
// §4.7's requirement-upgrade rule, exercised by S5). Wildcards keep their
// wildcard positions. Any other operator is left untouched and reported as
// unsupported via apperrors.ErrUnsupportedOperator.
func UpgradeRequirement(original string, next *semver.Version) (string, error) {
	trimmed := strings.TrimSpace(original)

	if m := tildeRE.FindStringSubmatch(trimmed); m != nil {
		return "~" + truncatedTo(segmentsOf(m[1], m[2], m[3]), next), nil
	}
	if m := exactRE.FindStringSubmatch(trimmed); m != nil {
		return "=" + truncatedTo(segmentsOf(m[1], m[2], m[3]), next), nil
	}
	if m := wildcardRE.FindStringSubmatch(trimmed); m != nil {
		parts := []string{fmt.Sprint(next.Major()), fmt.Sprint(next.Minor()), fmt.Sprint(next.Patch())}
		for i, seg := range m[1:] {
			if seg == "*" {
				parts[i] = "*"
			}
		}
		return strings.Join(parts, "."), nil
	}
	if m := caretOrBare.FindStringSubmatch(trimmed); m != nil {
		prefix := m[1] // "^" or ""
		return prefix + truncatedTo(segmentsOf(m[2], m[3], m[4]), next), nil
	}

	return original, fmt.Errorf("manifest: %w: %q", apperrors.ErrUnsupportedOperator, original)
}

// segmentsOf counts how many of (major, minorGroup, patchGroup) are
// present, where minorGroup/patchGroup are either "" or ".N".
func segmentsOf(major, minorGroup, patchGroup string) int {
	segments := 1
	if minorGroup != "" {
		segments = 2
	}
	if patchGroup != "" {
		segments = 3
	}
	return segments
}

// truncatedTo renders next's major/minor/patch truncated to the given
// number of dotted segments.
func truncatedTo(segments int, next *semver.Version) string {
	switch segments {
	case 1:
		return fmt.Sprint(next.Major())
	case 2:
		return fmt.Sprintf("%d.%d", next.Major(), next.Minor())
	default:
		return fmt.Sprintf("%d.%d.%d", next.Major(), next.Minor(), next.Patch())
	}
}
