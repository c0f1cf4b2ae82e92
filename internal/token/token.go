// Package token implements the LSNP bearer token authority. Tokens are
// plaintext "user_id|unix_expiry|scope" triples; the only state is the
// revocation set, bounded by evicting entries once their own expiry passes.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"lsnpeer/internal/logging"
)

// Scope values a token may carry.
const (
	ScopeChat      = "chat"
	ScopeBroadcast = "broadcast"
	ScopeFollow    = "follow"
	ScopeGroup     = "group"
	ScopeGame      = "game"
	ScopeFile      = "file"
	ScopePing      = "ping"
)

// Default TTLs, in seconds, per scope of use.
const (
	TTLChat      = 600
	TTLBroadcast = 300
	TTLFollow    = 300
	TTLGroup     = 600
	TTLGame      = 3600
	TTLFile      = 600
)

// Authority issues, validates, and revokes tokens. Safe for concurrent use.
type Authority struct {
	mu      sync.Mutex
	revoked map[string]int64 // raw token -> embedded expiry
	now     func() time.Time
}

func NewAuthority() *Authority {
	return &Authority{
		revoked: make(map[string]int64),
		now:     time.Now,
	}
}

// Generate formats a token valid for ttl from now.
func (a *Authority) Generate(userID string, ttl time.Duration, scope string) string {
	expiry := a.now().Add(ttl).Unix()
	return fmt.Sprintf("%s|%d|%s", userID, expiry, scope)
}

// Parse splits a token into its components. A token is malformed unless it is
// exactly three non-empty |-separated fields with a numeric expiry.
func Parse(tok string) (userID string, expiry int64, scope string, ok bool) {
	parts := strings.Split(tok, "|")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", 0, "", false
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], exp, parts[2], true
}

// Validate reports whether tok authorizes expectedScope right now. Each
// failure class is logged but the contract is a uniform boolean.
func (a *Authority) Validate(tok, expectedScope string) bool {
	userID, expiry, scope, ok := Parse(tok)
	if !ok {
		logging.Verbosef("DROP!", "malformed token: %q", tok)
		return false
	}
	if scope != expectedScope {
		logging.Verbosef("DROP!", "token scope mismatch: got %q, expected %q", scope, expectedScope)
		return false
	}
	if a.now().Unix() > expiry {
		logging.Verbosef("DROP!", "expired token for %s (expired at %d)", userID, expiry)
		return false
	}
	a.mu.Lock()
	_, revoked := a.revoked[tok]
	a.mu.Unlock()
	if revoked {
		logging.Verbosef("DROP!", "revoked token used by %s", userID)
		return false
	}
	return true
}

// Revoke rejects tok until its embedded expiry passes. Malformed tokens are
// ignored; they could never validate anyway.
func (a *Authority) Revoke(tok string) {
	_, expiry, _, ok := Parse(tok)
	if !ok {
		return
	}
	a.mu.Lock()
	a.revoked[tok] = expiry
	a.mu.Unlock()
}

// Cleanup drops revocation entries whose expiry has passed. Called
// opportunistically after each dispatched message.
func (a *Authority) Cleanup() {
	now := a.now().Unix()
	a.mu.Lock()
	for tok, exp := range a.revoked {
		if exp < now {
			delete(a.revoked, tok)
		}
	}
	a.mu.Unlock()
}

// RevokedCount reports the size of the revocation set.
func (a *Authority) RevokedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.revoked)
}
