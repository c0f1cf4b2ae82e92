package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsnpeer/internal/proto"
)

func TestPeerUpsertOverwritesWholesale(t *testing.T) {
	d := NewPeerDirectory()
	d.Upsert(Peer{UserID: "alice@1", IP: "1", DisplayName: "Alice", Status: "hi", AvatarType: "emoji", AvatarData: ":)"})
	d.Upsert(Peer{UserID: "alice@1", IP: "1", DisplayName: "Alice2", Status: "bye"})

	p, ok := d.Get("alice@1")
	require.True(t, ok)
	assert.Equal(t, "Alice2", p.DisplayName)
	// no field-level merge: the avatar from the first profile is gone
	assert.Empty(t, p.AvatarType)
	assert.Equal(t, 1, d.Len())
}

func TestPeerLivenessWindow(t *testing.T) {
	d := NewPeerDirectory()
	t0 := time.Unix(1700000000, 0)
	d.now = func() time.Time { return t0 }
	d.Upsert(Peer{UserID: "alice@1"})

	d.now = func() time.Time { return t0.Add(299 * time.Second) }
	assert.Len(t, d.ListLive(300*time.Second), 1)

	d.now = func() time.Time { return t0.Add(301 * time.Second) }
	assert.Empty(t, d.ListLive(300*time.Second))
}

func TestPeerTouchLastSeen(t *testing.T) {
	d := NewPeerDirectory()
	t0 := time.Unix(1700000000, 0)
	d.now = func() time.Time { return t0 }
	d.Upsert(Peer{UserID: "alice@1"})

	d.now = func() time.Time { return t0.Add(400 * time.Second) }
	require.True(t, d.TouchLastSeen("alice@1"))
	assert.Len(t, d.ListLive(300*time.Second), 1)

	assert.False(t, d.TouchLastSeen("stranger@9"))
}

func TestPostSaveDeduplicates(t *testing.T) {
	s := NewPostStore()
	post := proto.Post{UserID: "alice@1", Content: "hi", Timestamp: 100, MessageID: "m1"}
	assert.True(t, s.Save(post))
	assert.False(t, s.Save(post))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has("alice@1", 100))
	assert.False(t, s.Has("alice@1", 101))
}

func TestPostRecentFiltersAndOrders(t *testing.T) {
	s := NewPostStore()
	s.Save(proto.Post{UserID: "a@1", MessageID: "m1", Token: "good", Timestamp: 1})
	s.Save(proto.Post{UserID: "a@1", MessageID: "m2", Token: "bad", Timestamp: 2})
	s.Save(proto.Post{UserID: "a@1", MessageID: "m3", Token: "good", Timestamp: 3})

	got := s.Recent(10, func(tok string) bool { return tok == "good" })
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].MessageID)
	assert.Equal(t, "m1", got[1].MessageID)

	assert.Len(t, s.Recent(1, nil), 1)
}

func TestDMSaveDeduplicates(t *testing.T) {
	s := NewDMStore()
	dm := proto.DM{From: "a@1", To: "b@2", Content: "x", MessageID: "m1"}
	assert.True(t, s.Save(dm))
	assert.False(t, s.Save(dm))
	assert.Equal(t, 1, s.Len())
}

func TestDMThread(t *testing.T) {
	s := NewDMStore()
	s.Save(proto.DM{From: "a@1", To: "me@0", MessageID: "m1", Timestamp: 10})
	s.Save(proto.DM{From: "me@0", To: "a@1", MessageID: "m2", Timestamp: 20})
	s.Save(proto.DM{From: "c@3", To: "me@0", MessageID: "m3", Timestamp: 15})

	thread := s.Thread("a@1", "me@0", 50)
	require.Len(t, thread, 2)
	assert.Equal(t, "m1", thread[0].MessageID)
	assert.Equal(t, "m2", thread[1].MessageID)

	assert.Len(t, s.Thread("a@1", "me@0", 1), 1)
}

func TestLikeSetSemantics(t *testing.T) {
	s := NewLikeStore()
	s.Add("alice@1", 100, "bob@2")
	s.Add("alice@1", 100, "bob@2")
	assert.Equal(t, 1, s.Count("alice@1", 100))

	s.Add("alice@1", 100, "carol@3")
	assert.Equal(t, []string{"bob@2", "carol@3"}, s.Likers("alice@1", 100))

	s.Remove("alice@1", 100, "bob@2")
	s.Remove("alice@1", 100, "bob@2")
	assert.Equal(t, 1, s.Count("alice@1", 100))

	s.Remove("alice@1", 100, "carol@3")
	assert.Zero(t, s.Count("alice@1", 100))
}

func TestGroupLifecycle(t *testing.T) {
	d := NewGroupDirectory()
	d.Create("g1", "Team", []string{"a@1", "b@2"})
	assert.True(t, d.Exists("g1"))
	assert.Equal(t, "Team", d.Name("g1"))
	assert.Equal(t, "nope", d.Name("nope"))

	require.True(t, d.UpdateMembers("g1", []string{"c@3"}, []string{"a@1"}))
	assert.Equal(t, []string{"b@2", "c@3"}, d.Members("g1"))
	assert.True(t, d.IsMember("g1", "c@3"))
	assert.False(t, d.IsMember("g1", "a@1"))

	assert.False(t, d.UpdateMembers("ghost", []string{"x@9"}, nil))
}

func TestGroupMessageLog(t *testing.T) {
	d := NewGroupDirectory()
	d.Create("g1", "Team", []string{"a@1"})
	d.StoreMessage("g1", "a@1", "hello", 100)
	d.StoreMessage("g1", "a@1", "again", 101)

	msgs := d.Messages("g1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)

	// messages for a group created elsewhere still land in a log
	d.StoreMessage("g2", "b@2", "drive-by", 102)
	assert.Len(t, d.Messages("g2"), 1)
	assert.Nil(t, d.Messages("ghost"))
}

func TestFollowAsymmetry(t *testing.T) {
	s := NewFollowStore()
	s.AddFollower("bob@2")
	assert.True(t, s.IsFollower("bob@2"))
	assert.False(t, s.IsFollowing("bob@2"))

	s.AddFollowing("carol@3")
	assert.Equal(t, []string{"bob@2"}, s.Followers())
	assert.Equal(t, []string{"carol@3"}, s.Following())

	s.RemoveFollower("bob@2")
	assert.False(t, s.IsFollower("bob@2"))
	s.RemoveFollower("bob@2") // idempotent
}
