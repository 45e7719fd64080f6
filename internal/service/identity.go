package service

import "strings"

// Identity is the resolved caller of an operation.
// The identity provider fills UserID; an empty value means unauthenticated.
type Identity struct {
	UserID string
}

// NewIdentity creates an identity for userID
func NewIdentity(userID string) Identity {
	return Identity{UserID: strings.TrimSpace(userID)}
}

// Anonymous is the identity of an unauthenticated caller
var Anonymous = Identity{}

// Authenticated reports whether the identity carries a user id
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}
