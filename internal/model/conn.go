package model

import "github.com/google/uuid"

// ConnID uniquely identifies a live client connection
type ConnID string

// NoConn is the zero ConnID, used where a connection has no partner
const NoConn ConnID = ""

// NewConnID returns a fresh random connection identifier
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// AnonymousUser is the identity used for connections that never logged in
const AnonymousUser = "(unauthenticated)"
