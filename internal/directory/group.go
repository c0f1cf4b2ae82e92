package directory

import (
	"sort"
	"sync"
)

// GroupMessage is one entry in a group's ordered message log.
type GroupMessage struct {
	Sender    string
	Content   string
	Timestamp int64
}

type group struct {
	name     string
	members  map[string]struct{}
	messages []GroupMessage
}

// GroupDirectory tracks group membership sets and per-group message logs.
// Membership changes are set operations, never positional.
type GroupDirectory struct {
	mu     sync.Mutex
	groups map[string]*group
}

func NewGroupDirectory() *GroupDirectory {
	return &GroupDirectory{groups: make(map[string]*group)}
}

// Create initializes a group with its member set and an empty message log. A
// re-create overwrites the previous definition.
func (d *GroupDirectory) Create(groupID, name string, members []string) {
	g := &group{name: name, members: make(map[string]struct{}, len(members))}
	for _, m := range members {
		g.members[m] = struct{}{}
	}
	d.mu.Lock()
	d.groups[groupID] = g
	d.mu.Unlock()
}

// UpdateMembers applies add/remove deltas. Returns false for unknown groups.
func (d *GroupDirectory) UpdateMembers(groupID string, add, remove []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return false
	}
	for _, m := range add {
		g.members[m] = struct{}{}
	}
	for _, m := range remove {
		delete(g.members, m)
	}
	return true
}

// Name returns the group's display name, falling back to the id.
func (d *GroupDirectory) Name(groupID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.groups[groupID]; ok && g.name != "" {
		return g.name
	}
	return groupID
}

func (d *GroupDirectory) Exists(groupID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.groups[groupID]
	return ok
}

func (d *GroupDirectory) IsMember(groupID, userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return false
	}
	_, member := g.members[userID]
	return member
}

// Members snapshots the member set, sorted.
func (d *GroupDirectory) Members(groupID string) []string {
	d.mu.Lock()
	g, ok := d.groups[groupID]
	var out []string
	if ok {
		out = make([]string, 0, len(g.members))
		for m := range g.members {
			out = append(out, m)
		}
	}
	d.mu.Unlock()
	sort.Strings(out)
	return out
}

// StoreMessage appends to the group's log, creating the log for groups the
// local node has not (yet) seen created.
func (d *GroupDirectory) StoreMessage(groupID, sender, content string, timestamp int64) {
	d.mu.Lock()
	g, ok := d.groups[groupID]
	if !ok {
		g = &group{members: make(map[string]struct{})}
		d.groups[groupID] = g
	}
	g.messages = append(g.messages, GroupMessage{Sender: sender, Content: content, Timestamp: timestamp})
	d.mu.Unlock()
}

// Messages snapshots the group's message log in arrival order.
func (d *GroupDirectory) Messages(groupID string) []GroupMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]GroupMessage, len(g.messages))
	copy(out, g.messages)
	return out
}
