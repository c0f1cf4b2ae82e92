// Package presence keeps the peer visible on the LAN: periodic PROFILE and
// PING broadcasts so other directories learn about us and keep our last-seen
// fresh.
package presence

import (
	"context"
	"time"

	"lsnpeer/internal/identity"
	"lsnpeer/internal/logging"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
	"lsnpeer/internal/transport"
)

// DefaultInterval between announcement rounds.
const DefaultInterval = 30 * time.Second

type Broadcaster struct {
	Local    identity.Local
	Auth     *token.Authority
	Send     transport.Sender
	Interval time.Duration
}

func (b *Broadcaster) interval() time.Duration {
	if b.Interval <= 0 {
		return DefaultInterval
	}
	return b.Interval
}

// Run announces immediately, then on every tick until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.Announce()
	ticker := time.NewTicker(b.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Announce()
		}
	}
}

// Announce sends one PROFILE and one PING broadcast. The ping token outlives
// the interval by a few seconds so a fresh one always arrives before the old
// one expires.
func (b *Broadcaster) Announce() {
	if err := b.Send.SendBroadcast(b.Local.Profile().Encode()); err != nil {
		logging.Logf("profile broadcast failed: %v", err)
		return
	}
	ping := proto.Ping{
		UserID: b.Local.UserID,
		Token:  b.Auth.Generate(b.Local.UserID, b.interval()+5*time.Second, token.ScopePing),
	}
	if err := b.Send.SendBroadcast(ping.Encode()); err != nil {
		logging.Logf("ping broadcast failed: %v", err)
		return
	}
	logging.Verbosef("BROADCAST", "sent PROFILE and PING")
}
