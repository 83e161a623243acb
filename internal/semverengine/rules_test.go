package semverengine

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

// S1 — patch bump on fix.
func TestNextIncrement_PatchOnFix(t *testing.T) {
	v := mustVersion(t, "1.2.3")
	inc := NextIncrement(v, []string{"fix: bug"}, Rules{})
	assert.Equal(t, Patch, inc)

	next, err := Bump(v, inc)
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", next.String())
}

// S2 — feat on 0.x.
func TestNextIncrement_FeatOnZeroX(t *testing.T) {
	v := mustVersion(t, "0.2.3")
	inc := NextIncrement(v, []string{"feat: x"}, Rules{})
	assert.Equal(t, Patch, inc)
	next, err := Bump(v, inc)
	require.NoError(t, err)
	assert.Equal(t, "0.2.4", next.String())

	incMinor := NextIncrement(v, []string{"feat: x"}, Rules{FeaturesAlwaysMinor: true})
	assert.Equal(t, Minor, incMinor)
	nextMinor, err := Bump(v, incMinor)
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", nextMinor.String())
}

// S3 — breaking on 1.x, 0.x, and with breaking_always_major.
func TestNextIncrement_Breaking(t *testing.T) {
	v1 := mustVersion(t, "1.2.3")
	inc1 := NextIncrement(v1, []string{"feat!: break"}, Rules{})
	assert.Equal(t, Major, inc1)
	next1, err := Bump(v1, inc1)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", next1.String())

	v2 := mustVersion(t, "0.4.4")
	inc2 := NextIncrement(v2, []string{"feat!: break"}, Rules{})
	assert.Equal(t, Minor, inc2)
	next2, err := Bump(v2, inc2)
	require.NoError(t, err)
	assert.Equal(t, "0.5.0", next2.String())

	v3 := mustVersion(t, "0.2.3")
	inc3 := NextIncrement(v3, []string{"feat!: break"}, Rules{BreakingAlwaysMajor: true})
	assert.Equal(t, Major, inc3)
	next3, err := Bump(v3, inc3)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", next3.String())
}

// S4 — pre-release pump.
func TestNextIncrement_Prerelease(t *testing.T) {
	v := mustVersion(t, "1.0.0-alpha.2")
	inc := NextIncrement(v, []string{"chore: whatever"}, Rules{})
	assert.Equal(t, Prerelease, inc)
	next, err := Bump(v, inc)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha.3", next.String())

	v2 := mustVersion(t, "1.0.0-alpha")
	inc2 := NextIncrement(v2, []string{"chore: whatever"}, Rules{})
	assert.Equal(t, Prerelease, inc2)
	next2, err := Bump(v2, inc2)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha.1", next2.String())
}

func TestNextIncrement_NoCommits(t *testing.T) {
	v := mustVersion(t, "1.2.3")
	assert.Equal(t, None, NextIncrement(v, nil, Rules{}))
}

func TestNextIncrement_NonConformingFallsBackToPatch(t *testing.T) {
	v := mustVersion(t, "1.2.3")
	assert.Equal(t, Patch, NextIncrement(v, []string{"not a conventional commit"}, Rules{}))
}

func TestBreaking(t *testing.T) {
	assert.Equal(t, Patch, Breaking(mustVersion(t, "0.0.5")))
	assert.Equal(t, Minor, Breaking(mustVersion(t, "0.4.0")))
	assert.Equal(t, Major, Breaking(mustVersion(t, "1.4.0")))
	assert.Equal(t, Prerelease, Breaking(mustVersion(t, "1.0.0-beta.1")))
}

// Property 1 — monotonicity: next version is always >= current.
func TestMonotonicity(t *testing.T) {
	cases := []struct {
		current  string
		messages []string
	}{
		{"1.2.3", []string{"fix: a"}},
		{"0.2.3", []string{"feat: a"}},
		{"1.2.3", []string{"feat!: a"}},
		{"1.0.0-alpha.2", []string{"chore: a"}},
		{"2.5.1", nil},
	}
	for _, c := range cases {
		v := mustVersion(t, c.current)
		inc := NextIncrement(v, c.messages, Rules{})
		next, err := Bump(v, inc)
		require.NoError(t, err)
		assert.True(t, !next.LessThan(v), "expected %s >= %s", next, v)
		if inc == None {
			assert.Equal(t, v.String(), next.String())
		}
	}
}
