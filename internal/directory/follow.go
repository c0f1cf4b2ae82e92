package directory

import (
	"sort"
	"sync"
)

// FollowStore keeps two independent sets: who follows the local user, and who
// the local user follows. The relation is asymmetric.
type FollowStore struct {
	mu        sync.Mutex
	followers map[string]struct{}
	following map[string]struct{}
}

func NewFollowStore() *FollowStore {
	return &FollowStore{
		followers: make(map[string]struct{}),
		following: make(map[string]struct{}),
	}
}

func (s *FollowStore) AddFollower(userID string) {
	s.mu.Lock()
	s.followers[userID] = struct{}{}
	s.mu.Unlock()
}

func (s *FollowStore) RemoveFollower(userID string) {
	s.mu.Lock()
	delete(s.followers, userID)
	s.mu.Unlock()
}

func (s *FollowStore) IsFollower(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.followers[userID]
	return ok
}

func (s *FollowStore) AddFollowing(userID string) {
	s.mu.Lock()
	s.following[userID] = struct{}{}
	s.mu.Unlock()
}

func (s *FollowStore) RemoveFollowing(userID string) {
	s.mu.Lock()
	delete(s.following, userID)
	s.mu.Unlock()
}

func (s *FollowStore) IsFollowing(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.following[userID]
	return ok
}

func (s *FollowStore) Followers() []string {
	s.mu.Lock()
	out := setToSlice(s.followers)
	s.mu.Unlock()
	return out
}

func (s *FollowStore) Following() []string {
	s.mu.Lock()
	out := setToSlice(s.following)
	s.mu.Unlock()
	return out
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
