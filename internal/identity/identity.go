// Package identity carries the local peer's own profile.
package identity

import "lsnpeer/internal/proto"

// Local is the identity this node claims on the wire. UserID is "name@ip".
type Local struct {
	UserID      string
	IP          string
	DisplayName string
	Status      string
	AvatarType  string
	AvatarData  string
}

// New derives the user id from name and ip. DisplayName defaults to name.
func New(name, ip, displayName, status string) Local {
	if displayName == "" {
		displayName = name
	}
	return Local{
		UserID:      name + "@" + ip,
		IP:          ip,
		DisplayName: displayName,
		Status:      status,
	}
}

// Profile builds the PROFILE announcement for this identity.
func (l Local) Profile() proto.Profile {
	return proto.Profile{
		UserID:      l.UserID,
		DisplayName: l.DisplayName,
		Status:      l.Status,
		AvatarType:  l.AvatarType,
		AvatarData:  l.AvatarData,
	}
}
