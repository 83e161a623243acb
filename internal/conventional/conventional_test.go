package conventional

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Basic(t *testing.T) {
	c, err := Parse("feat(cli): add flag")
	require.NoError(t, err)
	assert.Equal(t, "feat", c.Type)
	assert.Equal(t, "cli", c.Scope)
	assert.False(t, c.Breaking)
	assert.Equal(t, "add flag", c.Description)
}

func TestParse_BangBreaking(t *testing.T) {
	c, err := Parse("feat!: break things")
	require.NoError(t, err)
	assert.True(t, c.Breaking)
}

func TestParse_FooterBreaking(t *testing.T) {
	msg := "fix: small change\n\nBREAKING CHANGE: removed the old flag"
	c, err := Parse(msg)
	require.NoError(t, err)
	assert.True(t, c.Breaking)
	assert.Equal(t, "removed the old flag", c.BreakingDescription)
}

func TestParse_NotConventional(t *testing.T) {
	_, err := Parse("just a regular commit message")
	assert.ErrorIs(t, err, ErrNotConventional)
}

func TestIsConventional(t *testing.T) {
	assert.True(t, IsConventional("chore: bump deps"))
	assert.False(t, IsConventional("bump deps"))
}
