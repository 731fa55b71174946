package protocol

import (
	"errors"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Code classifies a rejected request.
type Code string

// Error codes carried by error frames.
const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotJoined        Code = "NOT_JOINED"
	CodeStaleSession     Code = "STALE_SESSION"
	CodeUnknownRecipient Code = "UNKNOWN_RECIPIENT"
	CodeUserIDTaken      Code = "USER_ID_TAKEN"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInternal         Code = "INTERNAL"
)

// Error is a boundary failure that can be reported to the client.
type Error struct {
	Event   string
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Event == "" {
		return string(e.Code) + ": " + e.Message
	}
	return e.Event + ": " + string(e.Code) + ": " + e.Message
}

// CodeFor maps an error from the room manager or the decoder to a Code.
func CodeFor(err error) Code {
	var protoErr *Error
	switch {
	case errors.As(err, &protoErr):
		return protoErr.Code
	case errors.Is(err, room.ErrInvalidRequest):
		return CodeInvalidArgument
	case errors.Is(err, room.ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, room.ErrStaleSession):
		return CodeStaleSession
	case errors.Is(err, room.ErrUnknownRecipient):
		return CodeUnknownRecipient
	case errors.Is(err, room.ErrUserIDTaken):
		return CodeUserIDTaken
	default:
		return CodeInternal
	}
}
