// Package semverengine maps conventional-commit streams to a next version
// under a configurable rule set (spec.md §4.2).
package semverengine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/grovetools/release-plz-go/internal/conventional"
)

// Increment is the kind of version bump the engine decided on.
type Increment int

const (
	None Increment = iota
	Major
	Minor
	Patch
	Prerelease
)

func (i Increment) String() string {
	switch i {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Patch:
		return "patch"
	case Prerelease:
		return "prerelease"
	default:
		return "none"
	}
}

// Rules configures the breaking-change and feature-bump policy.
type Rules struct {
	// BreakingAlwaysMajor forces a breaking commit to bump major even on a
	// 0.x version.
	BreakingAlwaysMajor bool
	// FeaturesAlwaysMinor forces a feat commit to bump minor even on a 0.x
	// version.
	FeaturesAlwaysMinor bool
}

// NextIncrement implements spec.md §4.2's rule table exactly.
func NextIncrement(current *semver.Version, messages []string, rules Rules) Increment {
	// Rule 1.
	if len(messages) == 0 {
		return None
	}

	// Rule 2.
	if current.Prerelease() != "" {
		return Prerelease
	}

	// Rule 3.
	var commits []*conventional.Commit
	for _, m := range messages {
		if c, err := conventional.Parse(m); err == nil {
			commits = append(commits, c)
		}
	}
	if len(commits) == 0 {
		return Patch
	}

	// Rule 4.
	var breaking, feature bool
	for _, c := range commits {
		if c.Breaking {
			breaking = true
		}
		if c.Type == "feat" {
			feature = true
		}
	}

	major0 := current.Major() != 0
	minor0 := current.Minor() != 0

	// Rule 5.
	if breaking && (major0 || rules.BreakingAlwaysMajor) {
		return Major
	}

	// Rule 6.
	if rules.FeaturesAlwaysMinor {
		if feature || (minor0 && breaking) {
			return Minor
		}
	} else {
		if (major0 && feature) || (!major0 && minor0 && breaking) {
			return Minor
		}
	}

	// Rule 7.
	return Patch
}

// Bump applies an Increment to the current version following strict semver,
// except Prerelease which increments the trailing numeric identifier of the
// pre-release tail (appending ".1" if there is none). Build metadata is
// preserved verbatim.
func Bump(current *semver.Version, inc Increment) (*semver.Version, error) {
	switch inc {
	case None:
		return current, nil
	case Major:
		next := current.IncMajor()
		return withMetadata(&next, current.Metadata())
	case Minor:
		next := current.IncMinor()
		return withMetadata(&next, current.Metadata())
	case Patch:
		next := current.IncPatch()
		return withMetadata(&next, current.Metadata())
	case Prerelease:
		return bumpPrerelease(current)
	default:
		return nil, fmt.Errorf("semverengine: unknown increment %v", inc)
	}
}

func withMetadata(v *semver.Version, metadata string) (*semver.Version, error) {
	if metadata == "" {
		return v, nil
	}
	withMeta, err := v.SetMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("semverengine: set metadata: %w", err)
	}
	return &withMeta, nil
}

func bumpPrerelease(current *semver.Version) (*semver.Version, error) {
	pre := current.Prerelease()
	if pre == "" {
		return nil, fmt.Errorf("semverengine: Prerelease increment requires an existing pre-release identifier")
	}

	parts := strings.Split(pre, ".")
	last := parts[len(parts)-1]

	if n, err := strconv.Atoi(last); err == nil {
		parts[len(parts)-1] = strconv.Itoa(n + 1)
	} else {
		parts = append(parts, "1")
	}

	newPre := strings.Join(parts, ".")
	next, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d-%s", current.Major(), current.Minor(), current.Patch(), newPre))
	if err != nil {
		return nil, fmt.Errorf("semverengine: build prerelease version: %w", err)
	}
	return withMetadata(next, current.Metadata())
}

// Breaking overrides the engine when an external semver-check reports
// incompatibility (spec.md §4.2's separate `breaking(current)` helper).
func Breaking(current *semver.Version) Increment {
	if current.Prerelease() != "" {
		return Prerelease
	}
	if current.Major() == 0 && current.Minor() == 0 {
		return Patch
	}
	if current.Major() == 0 {
		return Minor
	}
	return Major
}
