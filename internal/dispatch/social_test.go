package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsnpeer/internal/directory"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
)

func knowPeer(d *Dispatcher, userID, ip string) {
	d.Peers.Upsert(directory.Peer{UserID: userID, IP: ip, DisplayName: userID})
}

func TestSendPostBroadcastsAndStores(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	id, err := d.SendPost("hello lan")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msg, ok := send.byType(proto.TypePost)
	require.True(t, ok)
	assert.Equal(t, "broadcast", msg.ip)
	assert.Equal(t, localUser, msg.fields.Get("USER_ID"))
	assert.Equal(t, id, msg.fields.Get("MESSAGE_ID"))

	// our own token must authorize the message we just sent
	assert.True(t, d.Auth.Validate(msg.fields.Get("TOKEN"), token.ScopeBroadcast))
	assert.Equal(t, 1, d.Posts.Len())
}

func TestSendDMDeliveryConfirmation(t *testing.T) {
	d, send, sink := newTestDispatcher(t)
	knowPeer(d, remoteUser, remoteIP)

	id, err := d.SendDM(remoteUser, "psst")
	require.NoError(t, err)

	msg, ok := send.byType(proto.TypeDM)
	require.True(t, ok)
	assert.Equal(t, remoteIP, msg.ip)
	assert.Equal(t, 1, d.DMs.Len())

	// peer's ACK fires the delivery notification exactly once
	assert.True(t, d.Acks.Resolve(id))
	assert.True(t, sink.contains("delivered"))
	assert.False(t, d.Acks.Resolve(id))
}

func TestSendDMFallsBackToEmbeddedIP(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	_, err := d.SendDM(remoteUser, "psst")
	require.NoError(t, err)
	msg, ok := send.byType(proto.TypeDM)
	require.True(t, ok)
	assert.Equal(t, remoteIP, msg.ip)

	_, err = d.SendDM("nowhere", "psst")
	assert.Error(t, err)
}

func TestFollowPeerTracksFollowing(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	knowPeer(d, remoteUser, remoteIP)

	require.NoError(t, d.FollowPeer(remoteUser))
	assert.True(t, d.Follows.IsFollowing(remoteUser))
	_, ok := send.byType(proto.TypeFollow)
	assert.True(t, ok)

	require.NoError(t, d.UnfollowPeer(remoteUser))
	assert.False(t, d.Follows.IsFollowing(remoteUser))
	_, ok = send.byType(proto.TypeUnfollow)
	assert.True(t, ok)
}

func TestSendLikeMirrorsLocally(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	require.NoError(t, d.SendLike(remoteUser, 100, proto.ActionLike))
	assert.Equal(t, 1, d.Likes.Count(remoteUser, 100))

	msg, ok := send.byType(proto.TypeLike)
	require.True(t, ok)
	assert.Equal(t, "broadcast", msg.ip)

	require.NoError(t, d.SendLike(remoteUser, 100, proto.ActionUnlike))
	assert.Zero(t, d.Likes.Count(remoteUser, 100))

	assert.Error(t, d.SendLike(remoteUser, 100, "SUPERLIKE"))
}

func TestCreateGroupFansOutToKnownMembers(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	knowPeer(d, remoteUser, remoteIP)

	members := []string{localUser, remoteUser, "ghost"}
	require.NoError(t, d.CreateGroup("g1", "lunch", members))
	assert.True(t, d.Groups.IsMember("g1", remoteUser))

	// one unicast: ourselves and the unreachable member are skipped
	assert.Equal(t, 1, send.count())
	msg, ok := send.byType(proto.TypeGroupCreate)
	require.True(t, ok)
	assert.Equal(t, remoteIP, msg.ip)
	assert.Equal(t, "lunch", msg.fields.Get("GROUP_NAME"))
}

func TestUpdateGroupUnknownGroup(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	assert.Error(t, d.UpdateGroup("nope", []string{"a@1"}, nil))
}

func TestSendGroupMessageStoresAndFansOut(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	knowPeer(d, remoteUser, remoteIP)
	require.NoError(t, d.CreateGroup("g1", "lunch", []string{localUser, remoteUser}))

	require.NoError(t, d.SendGroupMessage("g1", "where to?"))
	require.Len(t, d.Groups.Messages("g1"), 1)

	msg, ok := send.byType(proto.TypeGroupMessage)
	require.True(t, ok)
	assert.Equal(t, remoteIP, msg.ip)

	assert.Error(t, d.SendGroupMessage("nope", "hi"))
}

func TestSendRevokeScopeAllowlist(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	chatTok := d.Auth.Generate(localUser, time.Hour, token.ScopeChat)
	require.NoError(t, d.SendRevoke(chatTok, remoteIP))
	assert.False(t, d.Auth.Validate(chatTok, token.ScopeChat))
	msg, ok := send.byType(proto.TypeRevoke)
	require.True(t, ok)
	assert.Equal(t, chatTok, msg.fields.Get("TOKEN"))
	assert.Equal(t, remoteIP, msg.ip)

	// one-way broadcast scopes stay revocation-free
	pingTok := d.Auth.Generate(localUser, time.Hour, token.ScopePing)
	assert.Error(t, d.SendRevoke(pingTok, ""))
	assert.True(t, d.Auth.Validate(pingTok, token.ScopePing))

	assert.Error(t, d.SendRevoke("garbage", ""))
}

func TestSendRevokeBroadcastWithoutTarget(t *testing.T) {
	d, send, _ := newTestDispatcher(t)
	tok := d.Auth.Generate(localUser, time.Hour, token.ScopeFile)
	require.NoError(t, d.SendRevoke(tok, ""))
	msg, ok := send.byType(proto.TypeRevoke)
	require.True(t, ok)
	assert.Equal(t, "broadcast", msg.ip)
}
