package directory

import (
	"sort"
	"sync"

	"lsnpeer/internal/proto"
)

// DMStore is an append-only log of direct messages, deduplicated by
// MESSAGE_ID.
type DMStore struct {
	mu   sync.Mutex
	dms  []proto.DM
	seen map[string]struct{}
}

func NewDMStore() *DMStore {
	return &DMStore{seen: make(map[string]struct{})}
}

// Save appends the DM unless its MESSAGE_ID was already seen. Returns whether
// the DM was new.
func (s *DMStore) Save(dm proto.DM) bool {
	if dm.MessageID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[dm.MessageID]; dup {
		return false
	}
	s.seen[dm.MessageID] = struct{}{}
	s.dms = append(s.dms, dm)
	return true
}

// Recent returns up to limit DMs, newest first by timestamp.
func (s *DMStore) Recent(limit int) []proto.DM {
	s.mu.Lock()
	out := make([]proto.DM, len(s.dms))
	copy(out, s.dms)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Thread returns the conversation between the local user and withUser, oldest
// first, capped at the limit most recent messages.
func (s *DMStore) Thread(withUser, localUser string, limit int) []proto.DM {
	s.mu.Lock()
	var thread []proto.DM
	for _, dm := range s.dms {
		if (dm.From == withUser && dm.To == localUser) || (dm.From == localUser && dm.To == withUser) {
			thread = append(thread, dm)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(thread, func(i, j int) bool { return thread[i].Timestamp < thread[j].Timestamp })
	if len(thread) > limit {
		thread = thread[len(thread)-limit:]
	}
	return thread
}

func (s *DMStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dms)
}
