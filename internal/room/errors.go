package room

import "errors"

// Errors returned by Manager operations. Every error path leaves both tables
// untouched and broadcasts nothing.
var (
	// ErrInvalidRequest reports a missing required field.
	ErrInvalidRequest = errors.New("missing required field")
	// ErrNotJoined reports an event from a connection without a session.
	ErrNotJoined = errors.New("connection has not joined a room")
	// ErrStaleSession reports a session whose user is no longer on the roster.
	ErrStaleSession = errors.New("session user is no longer in the room")
	// ErrUnknownRecipient reports a private message to a user not in the room.
	ErrUnknownRecipient = errors.New("recipient is not in the room")
	// ErrUserIDTaken reports a duplicate join rejected by DuplicateReject.
	ErrUserIDTaken = errors.New("user id is already bound to another connection")
)
