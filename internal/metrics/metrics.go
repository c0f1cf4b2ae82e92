package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DropRecord is one remembered drop, kept in a small ring for diagnosis.
type DropRecord struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	From   string `json:"from"`
}

type Snapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Received    ReceivedMetrics `json:"received"`
	Drops       DropMetrics     `json:"drops"`
	Acks        AckMetrics      `json:"acks"`
	Games       GameMetrics     `json:"games"`
	Recent      []DropRecord    `json:"recent_drops"`
}

type ReceivedMetrics struct {
	Total  uint64 `json:"total"`
	Posts  uint64 `json:"posts"`
	DMs    uint64 `json:"dms"`
	Chunks uint64 `json:"chunks"`
}

type DropMetrics struct {
	Malformed    uint64 `json:"malformed"`
	Unauthorized uint64 `json:"unauthorized"`
	Duplicate    uint64 `json:"duplicate"`
	UnknownType  uint64 `json:"unknown_type"`
}

type AckMetrics struct {
	Resolved  uint64 `json:"resolved"`
	Unclaimed uint64 `json:"unclaimed"`
}

type GameMetrics struct {
	Completed uint64 `json:"completed"`
}

type Metrics struct {
	received       atomic.Uint64
	posts          atomic.Uint64
	dms            atomic.Uint64
	chunks         atomic.Uint64
	dropMalformed  atomic.Uint64
	dropUnauth     atomic.Uint64
	dropDuplicate  atomic.Uint64
	dropUnknown    atomic.Uint64
	acksResolved   atomic.Uint64
	acksUnclaimed  atomic.Uint64
	gamesCompleted atomic.Uint64
	recent         *DropRecent
}

func New() *Metrics {
	return &Metrics{recent: NewDropRecent(64)}
}

func (m *Metrics) Recent() *DropRecent {
	return m.recent
}

func (m *Metrics) IncReceived() {
	m.received.Add(1)
}

func (m *Metrics) IncPosts() {
	m.posts.Add(1)
}

func (m *Metrics) IncDMs() {
	m.dms.Add(1)
}

func (m *Metrics) IncChunks() {
	m.chunks.Add(1)
}

func (m *Metrics) IncDropMalformed() {
	m.dropMalformed.Add(1)
}

func (m *Metrics) IncDropUnauthorized() {
	m.dropUnauth.Add(1)
}

func (m *Metrics) IncDropDuplicate() {
	m.dropDuplicate.Add(1)
}

func (m *Metrics) IncDropUnknownType() {
	m.dropUnknown.Add(1)
}

func (m *Metrics) IncAcksResolved() {
	m.acksResolved.Add(1)
}

func (m *Metrics) IncAcksUnclaimed() {
	m.acksUnclaimed.Add(1)
}

func (m *Metrics) IncGamesCompleted() {
	m.gamesCompleted.Add(1)
}

func (m *Metrics) Snapshot() Snapshot {
	recent := []DropRecord{}
	if m.recent != nil {
		recent = m.recent.List()
	}
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		Received: ReceivedMetrics{
			Total:  m.received.Load(),
			Posts:  m.posts.Load(),
			DMs:    m.dms.Load(),
			Chunks: m.chunks.Load(),
		},
		Drops: DropMetrics{
			Malformed:    m.dropMalformed.Load(),
			Unauthorized: m.dropUnauth.Load(),
			Duplicate:    m.dropDuplicate.Load(),
			UnknownType:  m.dropUnknown.Load(),
		},
		Acks: AckMetrics{
			Resolved:  m.acksResolved.Load(),
			Unclaimed: m.acksUnclaimed.Load(),
		},
		Games: GameMetrics{
			Completed: m.gamesCompleted.Load(),
		},
		Recent: recent,
	}
}

func (m *Metrics) WriteSnapshot(path string) error {
	if path == "" {
		return nil
	}
	snap := m.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type DropRecent struct {
	mu   sync.Mutex
	cap  int
	list []DropRecord
}

func NewDropRecent(capacity int) *DropRecent {
	if capacity <= 0 {
		capacity = 64
	}
	return &DropRecent{cap: capacity}
}

func (r *DropRecent) Add(rec DropRecord) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) >= r.cap {
		copy(r.list, r.list[1:])
		r.list[len(r.list)-1] = rec
		return
	}
	r.list = append(r.list, rec)
}

func (r *DropRecent) List() []DropRecord {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DropRecord, len(r.list))
	copy(out, r.list)
	return out
}
