// Package dispatch routes decoded wire messages to the stores and engines
// after authorization. One entry point per datagram; a bad message is dropped
// with a classified log line and never escapes the receive loop.
package dispatch

import (
	"errors"

	"lsnpeer/internal/ack"
	"lsnpeer/internal/directory"
	"lsnpeer/internal/file"
	"lsnpeer/internal/game"
	"lsnpeer/internal/identity"
	"lsnpeer/internal/logging"
	"lsnpeer/internal/metrics"
	"lsnpeer/internal/notify"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
	"lsnpeer/internal/transport"
)

type Dispatcher struct {
	Local   identity.Local
	Auth    *token.Authority
	Acks    *ack.Registry
	Peers   *directory.PeerDirectory
	Posts   *directory.PostStore
	DMs     *directory.DMStore
	Likes   *directory.LikeStore
	Groups  *directory.GroupDirectory
	Follows *directory.FollowStore
	Games   *game.Engine
	Files   *file.Inbox
	Send    transport.Sender
	Sink    notify.Sink
	Metrics *metrics.Metrics

	// VerifySenderIP rejects messages whose FROM-embedded ip does not match
	// the UDP source address.
	VerifySenderIP bool
}

// Dispatch handles one raw datagram. Panics in a handler are contained here
// so a single bad message cannot halt the receive loop. Revocation cleanup
// and registry sweeping run after every message, amortized garbage
// collection instead of a background timer.
func (d *Dispatcher) Dispatch(raw, srcIP string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logf("dispatch panic from %s: %v", srcIP, r)
		}
	}()
	defer func() {
		d.Auth.Cleanup()
		d.Acks.Sweep()
	}()

	logging.Wire("RECV <", srcIP, raw)
	f := proto.Parse(raw)
	msg, err := proto.Decode(f)
	if err != nil {
		if errors.Is(err, proto.ErrUnknownType) {
			logging.Verbosef("WARN", "unknown TYPE %q from %s", f.Type(), srcIP)
			if d.Metrics != nil {
				d.Metrics.IncDropUnknownType()
			}
			return
		}
		d.drop(f.Type(), f.Get("FROM"), "malformed", "decode from %s: %v", srcIP, err)
		if d.Metrics != nil {
			d.Metrics.IncDropMalformed()
		}
		return
	}
	if d.Metrics != nil {
		d.Metrics.IncReceived()
	}

	switch m := msg.(type) {
	case proto.Profile:
		d.handleProfile(m, srcIP)
	case proto.Ping:
		d.handlePing(m, srcIP)
	case proto.Post:
		d.handlePost(m, srcIP)
	case proto.DM:
		d.handleDM(m, srcIP)
	case proto.Like:
		d.handleLike(m)
	case proto.Follow:
		d.handleFollow(m)
	case proto.Unfollow:
		d.handleUnfollow(m)
	case proto.GroupCreate:
		d.handleGroupCreate(m)
	case proto.GroupUpdate:
		d.handleGroupUpdate(m)
	case proto.GroupMessage:
		d.handleGroupMessage(m)
	case proto.FileOffer:
		d.Files.HandleOffer(m, srcIP)
	case proto.FileChunk:
		if d.Metrics != nil {
			d.Metrics.IncChunks()
		}
		d.Files.HandleChunk(m, srcIP)
	case proto.FileReceived:
		d.Files.HandleReceived(m)
	case proto.GameInvite:
		d.Games.HandleInvite(m, srcIP)
	case proto.GameMove:
		d.Games.HandleMove(m, srcIP)
	case proto.GameResult:
		if d.Metrics != nil {
			d.Metrics.IncGamesCompleted()
		}
		d.Games.HandleResult(m, srcIP)
	case proto.Ack:
		d.handleAck(m)
	case proto.Revoke:
		d.handleRevoke(m, srcIP)
	}
}

// drop logs a classified rejection. On the wire every drop is identical:
// silence.
func (d *Dispatcher) drop(msgType, from, reason, format string, args ...any) {
	logging.Verbosef("DROP!", format, args...)
	if d.Metrics != nil && d.Metrics.Recent() != nil {
		d.Metrics.Recent().Add(metrics.DropRecord{Type: msgType, Reason: reason, From: from})
	}
}

// authorize validates tok for scope and binds it to the claimed sender.
// Token possession alone is never sufficient.
func (d *Dispatcher) authorize(msgType, claimed, tok, scope string) bool {
	if !d.Auth.Validate(tok, scope) {
		d.drop(msgType, claimed, "unauthorized", "%s token rejected for %s", msgType, claimed)
		if d.Metrics != nil {
			d.Metrics.IncDropUnauthorized()
		}
		return false
	}
	if user, _, _, _ := token.Parse(tok); user != claimed {
		d.drop(msgType, claimed, "unauthorized", "%s token user %q != claimed sender %q", msgType, user, claimed)
		if d.Metrics != nil {
			d.Metrics.IncDropUnauthorized()
		}
		return false
	}
	return true
}

// senderIPOK checks the ip embedded in the claimed user id against the UDP
// source, when the policy is on.
func (d *Dispatcher) senderIPOK(msgType, claimed, srcIP string) bool {
	if !d.VerifySenderIP {
		return true
	}
	if _, declared := proto.SplitUserID(claimed); declared != "" && declared != srcIP {
		d.drop(msgType, claimed, "unauthorized", "%s sender ip mismatch: declared %s, src %s", msgType, declared, srcIP)
		if d.Metrics != nil {
			d.Metrics.IncDropUnauthorized()
		}
		return false
	}
	return true
}

func (d *Dispatcher) handleProfile(m proto.Profile, srcIP string) {
	ip := srcIP
	if ip == "" {
		_, ip = proto.SplitUserID(m.UserID)
	}
	d.Peers.Upsert(directory.Peer{
		UserID:      m.UserID,
		IP:          ip,
		DisplayName: m.DisplayName,
		Status:      m.Status,
		AvatarType:  m.AvatarType,
		AvatarData:  m.AvatarData,
	})
	logging.Verbosef("INFO", "profile update: %s (%s) %q", m.UserID, m.DisplayName, m.Status)
	if m.UserID != d.Local.UserID {
		d.Sink.Notify("%s (%s): %s", m.DisplayName, m.UserID, m.Status)
	}
}

func (d *Dispatcher) handlePing(m proto.Ping, srcIP string) {
	if !d.authorize(proto.TypePing, m.UserID, m.Token, token.ScopePing) {
		return
	}
	if !d.Peers.TouchLastSeen(m.UserID) {
		// first sign of life before any PROFILE; the broadcast loop will
		// fill in the rest
		d.Peers.Upsert(directory.Peer{UserID: m.UserID, IP: srcIP})
	}
	logging.Verbosef("PING", "ping from %s (%s)", m.UserID, srcIP)
}

func (d *Dispatcher) handlePost(m proto.Post, srcIP string) {
	if !d.authorize(proto.TypePost, m.UserID, m.Token, token.ScopeBroadcast) {
		return
	}
	if !d.senderIPOK(proto.TypePost, m.UserID, srcIP) {
		return
	}
	if !d.Posts.Save(m) {
		d.drop(proto.TypePost, m.UserID, "duplicate", "duplicate post %s from %s", m.MessageID, m.UserID)
		if d.Metrics != nil {
			d.Metrics.IncDropDuplicate()
		}
		return
	}
	if d.Metrics != nil {
		d.Metrics.IncPosts()
	}
	if m.UserID != d.Local.UserID {
		d.Sink.Notify("post from %s: %s", m.UserID, m.Content)
	}
}

func (d *Dispatcher) handleDM(m proto.DM, srcIP string) {
	if m.To != d.Local.UserID {
		d.drop(proto.TypeDM, m.From, "unauthorized", "DM for %s is not for us", m.To)
		return
	}
	if !d.authorize(proto.TypeDM, m.From, m.Token, token.ScopeChat) {
		return
	}
	if !d.senderIPOK(proto.TypeDM, m.From, srcIP) {
		return
	}
	if d.DMs.Save(m) {
		if d.Metrics != nil {
			d.Metrics.IncDMs()
		}
		d.Sink.Notify("DM from %s: %s", m.From, m.Content)
	} else {
		d.drop(proto.TypeDM, m.From, "duplicate", "duplicate DM %s from %s", m.MessageID, m.From)
		if d.Metrics != nil {
			d.Metrics.IncDropDuplicate()
		}
	}
	// delivery confirmation goes back either way; the sender's registry
	// entry is one-shot so a re-ACK is harmless
	ackMsg := proto.Ack{UserID: d.Local.UserID, MessageID: m.MessageID, Status: proto.StatusReceived}.Encode()
	if err := d.Send.SendUnicast(ackMsg, srcIP); err != nil {
		logging.Logf("dm ack send failed: %v", err)
	}
}

func (d *Dispatcher) handleLike(m proto.Like) {
	if !d.authorize(proto.TypeLike, m.From, m.Token, token.ScopeBroadcast) {
		return
	}
	if !d.Posts.Has(m.To, m.PostTimestamp) {
		logging.Verbosef("LIKE", "ignored %s for unknown post %d by %s", m.Action, m.PostTimestamp, m.To)
		return
	}
	switch m.Action {
	case proto.ActionLike:
		d.Likes.Add(m.To, m.PostTimestamp, m.From)
	case proto.ActionUnlike:
		d.Likes.Remove(m.To, m.PostTimestamp, m.From)
	}
	if m.To == d.Local.UserID && m.From != d.Local.UserID {
		d.Sink.Notify("%s %sd your post", m.From, m.Action)
	}
}

func (d *Dispatcher) handleFollow(m proto.Follow) {
	if m.To != d.Local.UserID {
		d.drop(proto.TypeFollow, m.From, "unauthorized", "FOLLOW for %s is not for us", m.To)
		return
	}
	if !d.authorize(proto.TypeFollow, m.From, m.Token, token.ScopeFollow) {
		return
	}
	d.Follows.AddFollower(m.From)
	d.Sink.Notify("%s has followed you", m.From)
}

func (d *Dispatcher) handleUnfollow(m proto.Unfollow) {
	if m.To != d.Local.UserID {
		d.drop(proto.TypeUnfollow, m.From, "unauthorized", "UNFOLLOW for %s is not for us", m.To)
		return
	}
	if !d.authorize(proto.TypeUnfollow, m.From, m.Token, token.ScopeFollow) {
		return
	}
	d.Follows.RemoveFollower(m.From)
	d.Sink.Notify("%s has unfollowed you", m.From)
}

func (d *Dispatcher) handleGroupCreate(m proto.GroupCreate) {
	if !d.authorize(proto.TypeGroupCreate, m.From, m.Token, token.ScopeGroup) {
		return
	}
	d.Groups.Create(m.GroupID, m.GroupName, m.Members)
	logging.Verbosef("INFO", "group created: %s (%s) members %v", m.GroupID, m.GroupName, m.Members)
	if m.From != d.Local.UserID && d.Groups.IsMember(m.GroupID, d.Local.UserID) {
		d.Sink.Notify("you've been added to %s", m.GroupName)
	}
}

func (d *Dispatcher) handleGroupUpdate(m proto.GroupUpdate) {
	if !d.authorize(proto.TypeGroupUpdate, m.From, m.Token, token.ScopeGroup) {
		return
	}
	if !d.Groups.UpdateMembers(m.GroupID, m.Add, m.Remove) {
		d.drop(proto.TypeGroupUpdate, m.From, "unauthorized", "update for unknown group %s", m.GroupID)
		return
	}
	d.Sink.Notify("the group %q member list was updated", d.Groups.Name(m.GroupID))
}

func (d *Dispatcher) handleGroupMessage(m proto.GroupMessage) {
	if !d.authorize(proto.TypeGroupMessage, m.From, m.Token, token.ScopeGroup) {
		return
	}
	d.Groups.StoreMessage(m.GroupID, m.From, m.Content, m.Timestamp)
	d.Sink.Notify("[%s] %s: %s", d.Groups.Name(m.GroupID), m.From, m.Content)
}

func (d *Dispatcher) handleAck(m proto.Ack) {
	if d.Acks.Resolve(m.MessageID) {
		if d.Metrics != nil {
			d.Metrics.IncAcksResolved()
		}
		logging.Verbosef("ACK", "resolved %s (%s)", m.MessageID, m.Status)
		return
	}
	if d.Metrics != nil {
		d.Metrics.IncAcksUnclaimed()
	}
	logging.Verbosef("ACK", "no pending continuation for %s (%s)", m.MessageID, m.Status)
}

func (d *Dispatcher) handleRevoke(m proto.Revoke, srcIP string) {
	d.Auth.Revoke(m.Token)
	logging.Verbosef("RECV <", "revoked token from %s: %s", srcIP, m.Token)
}
