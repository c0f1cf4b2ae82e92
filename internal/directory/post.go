package directory

import (
	"sync"

	"lsnpeer/internal/proto"
)

type postKey struct {
	poster    string
	timestamp int64
}

// PostStore is an append-only log of broadcast posts, deduplicated by
// MESSAGE_ID. First writer wins; later duplicates are no-ops.
type PostStore struct {
	mu    sync.Mutex
	posts []proto.Post
	seen  map[string]struct{}
	byKey map[postKey]struct{}
}

func NewPostStore() *PostStore {
	return &PostStore{
		seen:  make(map[string]struct{}),
		byKey: make(map[postKey]struct{}),
	}
}

// Save appends the post unless its MESSAGE_ID was already seen. Returns
// whether the post was new.
func (s *PostStore) Save(p proto.Post) bool {
	if p.MessageID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[p.MessageID]; dup {
		return false
	}
	s.seen[p.MessageID] = struct{}{}
	s.byKey[postKey{p.UserID, p.Timestamp}] = struct{}{}
	s.posts = append(s.posts, p)
	return true
}

// Has reports whether a post by poster with the given timestamp exists. Used
// to target likes.
func (s *PostStore) Has(poster string, timestamp int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[postKey{poster, timestamp}]
	return ok
}

// Recent returns up to limit posts, newest first, keeping only those whose
// token still passes valid. With a nil predicate all posts qualify.
func (s *PostStore) Recent(limit int, valid func(token string) bool) []proto.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.Post, 0, limit)
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		p := s.posts[i]
		if valid != nil && !valid(p.Token) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *PostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}
