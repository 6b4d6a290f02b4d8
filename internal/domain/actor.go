package domain

// Actor is the resolved identity and capability set of the requester.
// A nil *Actor means the request is not authenticated.
type Actor struct {
	UID        int64  `json:"uid"`
	Username   string `json:"username"`
	GID        int64  `json:"gid"`
	StaffUser  bool   `json:"staff_user"`
	StaffRoot  bool   `json:"staff_root"`
	CanMsg     bool   `json:"can_msg"`
	CanSubmit  bool   `json:"can_submit"`
	CanComment bool   `json:"can_comment"`
}

// Owns reports whether the actor is the owner of the given uid.
func (a *Actor) Owns(uid int64) bool {
	return a != nil && a.UID == uid
}

// IsBanned reports whether any ban control has been revoked for the actor.
func (a *Actor) IsBanned() bool {
	return !a.CanMsg || !a.CanSubmit || !a.CanComment
}

// System returns an actor with every capability, used by operator tooling
// that runs outside of a user session.
func System() *Actor {
	return &Actor{
		UID:        0,
		Username:   "system",
		GID:        RootGroupID,
		StaffUser:  true,
		StaffRoot:  true,
		CanMsg:     true,
		CanSubmit:  true,
		CanComment: true,
	}
}
