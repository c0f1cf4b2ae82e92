// Package directory holds the peer node's local view of the network: peers,
// posts, DMs, likes, groups, and follow relations. Each store guards its own
// table with a mutex and is safe for concurrent use from the receive loop and
// user-action paths.
package directory

import (
	"sort"
	"sync"
	"time"
)

// Peer is one known peer, overwritten wholesale on every PROFILE receipt.
// Liveness is derived from LastSeen, never stored.
type Peer struct {
	UserID      string
	IP          string
	DisplayName string
	Status      string
	AvatarType  string
	AvatarData  string
	LastSeen    time.Time
}

type PeerDirectory struct {
	mu    sync.Mutex
	peers map[string]Peer
	now   func() time.Time
}

func NewPeerDirectory() *PeerDirectory {
	return &PeerDirectory{
		peers: make(map[string]Peer),
		now:   time.Now,
	}
}

// Upsert replaces the stored profile and stamps LastSeen.
func (d *PeerDirectory) Upsert(p Peer) {
	d.mu.Lock()
	p.LastSeen = d.now()
	d.peers[p.UserID] = p
	d.mu.Unlock()
}

// TouchLastSeen refreshes liveness for a known peer (PING path). Returns
// false for peers never announced via PROFILE.
func (d *PeerDirectory) TouchLastSeen(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[userID]
	if !ok {
		return false
	}
	p.LastSeen = d.now()
	d.peers[userID] = p
	return true
}

func (d *PeerDirectory) Get(userID string) (Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[userID]
	return p, ok
}

// ListLive snapshots the peers seen within the window, sorted by user id.
func (d *PeerDirectory) ListLive(window time.Duration) []Peer {
	now := d.now()
	d.mu.Lock()
	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		if now.Sub(p.LastSeen) <= window {
			out = append(out, p)
		}
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (d *PeerDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.peers)
}
