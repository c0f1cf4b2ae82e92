package directory

import (
	"sort"
	"sync"
)

type likeKey struct {
	poster    string
	timestamp int64
}

// LikeStore tracks which users like which post. Membership is a set, not a
// counter: liking twice has no additional effect.
type LikeStore struct {
	mu    sync.Mutex
	likes map[likeKey]map[string]struct{}
}

func NewLikeStore() *LikeStore {
	return &LikeStore{likes: make(map[likeKey]map[string]struct{})}
}

func (s *LikeStore) Add(poster string, timestamp int64, liker string) {
	k := likeKey{poster, timestamp}
	s.mu.Lock()
	set := s.likes[k]
	if set == nil {
		set = make(map[string]struct{})
		s.likes[k] = set
	}
	set[liker] = struct{}{}
	s.mu.Unlock()
}

// Remove drops liker from the post's set; the empty set is deleted.
func (s *LikeStore) Remove(poster string, timestamp int64, liker string) {
	k := likeKey{poster, timestamp}
	s.mu.Lock()
	if set := s.likes[k]; set != nil {
		delete(set, liker)
		if len(set) == 0 {
			delete(s.likes, k)
		}
	}
	s.mu.Unlock()
}

func (s *LikeStore) Count(poster string, timestamp int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes[likeKey{poster, timestamp}])
}

// Likers snapshots the set of users who like the post, sorted.
func (s *LikeStore) Likers(poster string, timestamp int64) []string {
	s.mu.Lock()
	set := s.likes[likeKey{poster, timestamp}]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
