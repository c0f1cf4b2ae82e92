package token

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedAuthority(t0 time.Time) *Authority {
	a := NewAuthority()
	a.now = func() time.Time { return t0 }
	return a
}

func TestGenerateValidate(t *testing.T) {
	a := NewAuthority()
	tok := a.Generate("alice@192.168.1.11", 60*time.Second, ScopeChat)
	assert.True(t, a.Validate(tok, ScopeChat))
	assert.False(t, a.Validate(tok, ScopeGame))
}

func TestValidateExpired(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	a := fixedAuthority(t0)
	tok := a.Generate("alice@1", 60*time.Second, ScopePing)
	assert.True(t, a.Validate(tok, ScopePing))

	a.now = func() time.Time { return t0.Add(61 * time.Second) }
	assert.False(t, a.Validate(tok, ScopePing))
}

func TestValidateMalformed(t *testing.T) {
	a := NewAuthority()
	for _, tok := range []string{
		"",
		"alice",
		"alice|123",
		"alice|123|chat|extra",
		"alice|notanumber|chat",
		"|123|chat",
		"alice|123|",
	} {
		assert.False(t, a.Validate(tok, ScopeChat), "token %q", tok)
	}
}

func TestRevokeBeatsExpiry(t *testing.T) {
	a := NewAuthority()
	tok := a.Generate("bob@2", time.Hour, ScopeFile)
	require.True(t, a.Validate(tok, ScopeFile))

	a.Revoke(tok)
	assert.False(t, a.Validate(tok, ScopeFile))
}

func TestRevokeMalformedIsNoop(t *testing.T) {
	a := NewAuthority()
	a.Revoke("garbage")
	assert.Zero(t, a.RevokedCount())
}

func TestCleanupEvictsOnlyExpired(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	a := fixedAuthority(t0)

	live := a.Generate("alice@1", time.Hour, ScopeChat)
	dead := fmt.Sprintf("bob@2|%d|chat", t0.Unix()-10)
	a.Revoke(live)
	a.Revoke(dead)
	require.Equal(t, 2, a.RevokedCount())

	a.Cleanup()
	assert.Equal(t, 1, a.RevokedCount())
	assert.False(t, a.Validate(live, ScopeChat))
}

func TestParse(t *testing.T) {
	user, exp, scope, ok := Parse("alice@192.168.1.11|1700000000|game")
	require.True(t, ok)
	assert.Equal(t, "alice@192.168.1.11", user)
	assert.Equal(t, int64(1700000000), exp)
	assert.Equal(t, "game", scope)
}
