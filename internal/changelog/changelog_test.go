package changelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/release-plz-go/internal/model"
)

func TestRender_GroupsByCategory(t *testing.T) {
	cfg := DefaultConfig()
	input := ReleaseInput{
		Version: "1.1.0",
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Commits: []model.Commit{
			{Message: "feat: add widget"},
			{Message: "fix: crash on empty input"},
			{Message: "chore: bump deps"},
		},
	}

	out, err := Render(cfg, input)
	require.NoError(t, err)

	assert.Contains(t, out, "## [1.1.0] - 2026-03-01")
	assert.Contains(t, out, "### Added")
	assert.Contains(t, out, "add widget")
	assert.Contains(t, out, "### Fixed")
	assert.Contains(t, out, "crash on empty input")
	assert.NotContains(t, out, "bump deps")
}

func TestRender_BreakingBypassesSkip(t *testing.T) {
	cfg := DefaultConfig()
	input := ReleaseInput{
		Version: "2.0.0",
		Date:    time.Now(),
		Commits: []model.Commit{
			{Message: "chore!: drop legacy config format"},
		},
	}

	out, err := Render(cfg, input)
	require.NoError(t, err)
	assert.Contains(t, out, "### Breaking changes")
	assert.Contains(t, out, "drop legacy config format")
}

func TestRender_LinkifiesIssueReferences(t *testing.T) {
	cfg := DefaultConfig()
	input := ReleaseInput{
		Version:   "1.0.1",
		Date:      time.Now(),
		RemoteURL: "https://github.com/acme/widgets",
		Commits: []model.Commit{
			{Message: "fix: handle edge case (#42)"},
		},
	}

	out, err := Render(cfg, input)
	require.NoError(t, err)
	assert.Contains(t, out, "[#42](https://github.com/acme/widgets/issues/42)")
}

func TestParseHeader_StopsAtUnreleased(t *testing.T) {
	text := "# Changelog\n\nSome preamble.\n\n## [Unreleased]\n\n## [0.1.0] - 2025-01-01\n- first\n"
	header, ok := ParseHeader(text)
	require.True(t, ok)
	assert.Contains(t, header, "Some preamble.")
	assert.Contains(t, header, "## [Unreleased]")
	assert.NotContains(t, header, "0.1.0")
}

func TestUpdate_InsertsAfterUnreleasedMarker(t *testing.T) {
	cfg := DefaultConfig()
	old := "# Changelog\n\n## [Unreleased]\n\n## [0.1.0] - 2025-01-01\n- first\n"
	input := ReleaseInput{
		Version: "0.2.0",
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Commits: []model.Commit{{Message: "feat: second feature"}},
	}

	out, changed, err := Update(cfg, old, input)
	require.NoError(t, err)
	require.True(t, changed)

	idxUnreleased := indexOf(out, "## [Unreleased]")
	idxNew := indexOf(out, "## [0.2.0]")
	idxOld := indexOf(out, "## [0.1.0]")
	require.True(t, idxUnreleased < idxNew)
	require.True(t, idxNew < idxOld)
}

func TestUpdate_NoChangeWhenVersionAlreadyPresent(t *testing.T) {
	cfg := DefaultConfig()
	old := "# Changelog\n\n## [Unreleased]\n\n## [0.2.0] - 2025-06-01\n- already released\n"
	input := ReleaseInput{
		Version: "0.2.0",
		Date:    time.Now(),
		Commits: []model.Commit{{Message: "feat: whatever"}},
	}

	out, changed, err := Update(cfg, old, input)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, old, out)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
