package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lsnpeer/internal/logging"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
)

// Outbound user actions. Each sender builds the message with a fresh scoped
// token, applies the effect to the local stores, and fires through the
// transport.

func newMessageID() string {
	return uuid.NewString()[:8]
}

// peerIP resolves the destination address for a user, preferring the
// directory entry over the ip embedded in the id.
func (d *Dispatcher) peerIP(userID string) (string, error) {
	if p, ok := d.Peers.Get(userID); ok && p.IP != "" {
		return p.IP, nil
	}
	if _, ip := proto.SplitUserID(userID); ip != "" {
		return ip, nil
	}
	return "", fmt.Errorf("no known address for %s", userID)
}

// SendPost broadcasts a post and stores it locally.
func (d *Dispatcher) SendPost(content string) (string, error) {
	p := proto.Post{
		UserID:    d.Local.UserID,
		Content:   content,
		Timestamp: time.Now().Unix(),
		MessageID: newMessageID(),
		Token:     d.Auth.Generate(d.Local.UserID, token.TTLBroadcast*time.Second, token.ScopeBroadcast),
	}
	if err := d.Send.SendBroadcast(p.Encode()); err != nil {
		return "", err
	}
	d.Posts.Save(p)
	logging.Verbosef("POST", "posted %s: %s", p.MessageID, content)
	return p.MessageID, nil
}

// SendDM unicasts a direct message and registers a delivery confirmation
// continuation under its message id.
func (d *Dispatcher) SendDM(toUser, content string) (string, error) {
	ip, err := d.peerIP(toUser)
	if err != nil {
		return "", err
	}
	m := proto.DM{
		From:      d.Local.UserID,
		To:        toUser,
		Content:   content,
		Timestamp: time.Now().Unix(),
		MessageID: newMessageID(),
		Token:     d.Auth.Generate(d.Local.UserID, token.TTLChat*time.Second, token.ScopeChat),
	}
	if err := d.Send.SendUnicast(m.Encode(), ip); err != nil {
		return "", err
	}
	d.DMs.Save(m)
	d.Acks.Register(m.MessageID, func() {
		d.Sink.Notify("DM to %s delivered", toUser)
	})
	return m.MessageID, nil
}

// FollowPeer sends FOLLOW and records the relation on our side.
func (d *Dispatcher) FollowPeer(toUser string) error {
	ip, err := d.peerIP(toUser)
	if err != nil {
		return err
	}
	m := proto.Follow{
		From:  d.Local.UserID,
		To:    toUser,
		Token: d.Auth.Generate(d.Local.UserID, token.TTLFollow*time.Second, token.ScopeFollow),
	}
	if err := d.Send.SendUnicast(m.Encode(), ip); err != nil {
		return err
	}
	d.Follows.AddFollowing(toUser)
	d.Sink.Notify("you followed %s", toUser)
	return nil
}

// UnfollowPeer sends UNFOLLOW and drops the relation on our side.
func (d *Dispatcher) UnfollowPeer(toUser string) error {
	ip, err := d.peerIP(toUser)
	if err != nil {
		return err
	}
	m := proto.Unfollow{
		From:  d.Local.UserID,
		To:    toUser,
		Token: d.Auth.Generate(d.Local.UserID, token.TTLFollow*time.Second, token.ScopeFollow),
	}
	if err := d.Send.SendUnicast(m.Encode(), ip); err != nil {
		return err
	}
	d.Follows.RemoveFollowing(toUser)
	d.Sink.Notify("you unfollowed %s", toUser)
	return nil
}

// SendLike broadcasts a LIKE or UNLIKE for a peer's post and mirrors it
// locally.
func (d *Dispatcher) SendLike(poster string, postTimestamp int64, action string) error {
	if action != proto.ActionLike && action != proto.ActionUnlike {
		return fmt.Errorf("bad like action %q", action)
	}
	m := proto.Like{
		From:          d.Local.UserID,
		To:            poster,
		Action:        action,
		PostTimestamp: postTimestamp,
		Token:         d.Auth.Generate(d.Local.UserID, token.TTLBroadcast*time.Second, token.ScopeBroadcast),
	}
	if err := d.Send.SendBroadcast(m.Encode()); err != nil {
		return err
	}
	if action == proto.ActionLike {
		d.Likes.Add(poster, postTimestamp, d.Local.UserID)
	} else {
		d.Likes.Remove(poster, postTimestamp, d.Local.UserID)
	}
	return nil
}

// CreateGroup creates the group locally and unicasts GROUP_CREATE to every
// member with a known address.
func (d *Dispatcher) CreateGroup(groupID, name string, members []string) error {
	m := proto.GroupCreate{
		From:      d.Local.UserID,
		GroupID:   groupID,
		GroupName: name,
		Members:   members,
		Token:     d.Auth.Generate(d.Local.UserID, token.TTLGroup*time.Second, token.ScopeGroup),
	}
	d.Groups.Create(groupID, name, members)
	d.fanOut(m.Encode(), members)
	return nil
}

// UpdateGroup applies member deltas locally and unicasts GROUP_UPDATE to the
// resulting member list.
func (d *Dispatcher) UpdateGroup(groupID string, add, remove []string) error {
	if !d.Groups.UpdateMembers(groupID, add, remove) {
		return fmt.Errorf("unknown group %s", groupID)
	}
	m := proto.GroupUpdate{
		From:    d.Local.UserID,
		GroupID: groupID,
		Add:     add,
		Remove:  remove,
		Token:   d.Auth.Generate(d.Local.UserID, token.TTLGroup*time.Second, token.ScopeGroup),
	}
	d.fanOut(m.Encode(), d.Groups.Members(groupID))
	return nil
}

// SendGroupMessage stores the message in the group log and unicasts it to
// every other member.
func (d *Dispatcher) SendGroupMessage(groupID, content string) error {
	if !d.Groups.Exists(groupID) {
		return fmt.Errorf("unknown group %s", groupID)
	}
	m := proto.GroupMessage{
		From:      d.Local.UserID,
		GroupID:   groupID,
		Content:   content,
		Timestamp: time.Now().Unix(),
		Token:     d.Auth.Generate(d.Local.UserID, token.TTLGroup*time.Second, token.ScopeGroup),
	}
	d.Groups.StoreMessage(groupID, d.Local.UserID, content, m.Timestamp)
	d.fanOut(m.Encode(), d.Groups.Members(groupID))
	return nil
}

// fanOut unicasts an encoded message to each listed member except ourselves.
// Members with no known address are skipped.
func (d *Dispatcher) fanOut(encoded string, members []string) {
	for _, member := range members {
		if member == d.Local.UserID {
			continue
		}
		ip, err := d.peerIP(member)
		if err != nil {
			logging.Verbosef("WARN", "group fan-out skipping %s: %v", member, err)
			continue
		}
		if err := d.Send.SendUnicast(encoded, ip); err != nil {
			logging.Logf("group fan-out to %s failed: %v", member, err)
		}
	}
}

// revocableScopes are the two-way exchanges where a REVOKE is a meaningful
// signal to the peer.
var revocableScopes = map[string]bool{
	token.ScopeChat: true,
	token.ScopeGame: true,
	token.ScopeFile: true,
}

// SendRevoke revokes one of our own tokens locally and tells peers. With a
// target ip the REVOKE is unicast, otherwise broadcast.
func (d *Dispatcher) SendRevoke(tok, targetIP string) error {
	_, _, scope, ok := token.Parse(tok)
	if !ok {
		return fmt.Errorf("malformed token")
	}
	if !revocableScopes[scope] {
		return fmt.Errorf("revocation not allowed for scope %q", scope)
	}
	d.Auth.Revoke(tok)
	m := proto.Revoke{From: d.Local.UserID, Token: tok}
	if targetIP != "" {
		return d.Send.SendUnicast(m.Encode(), targetIP)
	}
	return d.Send.SendBroadcast(m.Encode())
}
