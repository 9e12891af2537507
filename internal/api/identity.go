package api

// Identity supplies the current user id, if any. An absent identity makes
// persistence and extraction features no-ops while the ephemeral chat
// still functions.
type Identity interface {
	// UserID returns the authenticated user id and true, or "" and false
	// when nobody is signed in.
	UserID() (string, bool)
}

// StaticIdentity is an Identity with a fixed user id.
type StaticIdentity string

func (s StaticIdentity) UserID() (string, bool) {
	return string(s), s != ""
}

// Anonymous is the signed-out identity.
var Anonymous = StaticIdentity("")
