package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/roomchat/internal/room"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request is a decoded, validated inbound event.
type Request interface {
	Event() string
}

// JoinRequest binds the connection to a room under a user id.
type JoinRequest struct {
	Room        string `json:"room" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	IconBase64  string `json:"iconBase64"`
	BubbleColor string `json:"bubbleColor"`
	TextColor   string `json:"textColor"`
}

func (JoinRequest) Event() string { return TypeJoin }

// Params converts the request for the room manager.
func (r JoinRequest) Params() room.JoinParams {
	return room.JoinParams{
		Room:        r.Room,
		DisplayName: r.DisplayName,
		UserID:      r.UserID,
		IconBase64:  r.IconBase64,
		BubbleColor: r.BubbleColor,
		TextColor:   r.TextColor,
	}
}

// ChatRequest is a room-wide message.
type ChatRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64"`
	Stamp       string `json:"stamp"`
}

func (ChatRequest) Event() string { return TypeChat }

// Content converts the request for the room manager.
func (r ChatRequest) Content() room.Content {
	return room.Content{Text: r.Text, ImageBase64: r.ImageBase64, Stamp: r.Stamp}
}

// PrivateRequest is a message for one user in the sender's room.
type PrivateRequest struct {
	ToUserID    string `json:"toUserId" validate:"required"`
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64"`
	Stamp       string `json:"stamp"`
}

func (PrivateRequest) Event() string { return TypePrivate }

// Content converts the request for the room manager.
func (r PrivateRequest) Content() room.Content {
	return room.Content{Text: r.Text, ImageBase64: r.ImageBase64, Stamp: r.Stamp}
}

// UpdateProfileRequest is a partial profile update; absent fields stay nil.
type UpdateProfileRequest struct {
	IconBase64  *string `json:"iconBase64"`
	BubbleColor *string `json:"bubbleColor"`
	TextColor   *string `json:"textColor"`
}

func (UpdateProfileRequest) Event() string { return TypeUpdateProfile }

// Update converts the request for the room manager.
func (r UpdateProfileRequest) Update() room.ProfileUpdate {
	return room.ProfileUpdate{IconBase64: r.IconBase64, BubbleColor: r.BubbleColor, TextColor: r.TextColor}
}

// LeaveRequest carries no fields.
type LeaveRequest struct{}

func (LeaveRequest) Event() string { return TypeLeave }

// Decode parses one WebSocket message into its frame and typed request.
// The returned frame is populated as far as parsing got, so callers can
// echo its request id on failure.
func Decode(data []byte) (Frame, Request, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, nil, &Error{Code: CodeInvalidArgument, Message: "invalid frame"}
	}
	if err := validate.Struct(frame); err != nil {
		return frame, nil, &Error{Event: frame.Type, Code: CodeInvalidArgument, Message: fmt.Sprintf("unsupported frame type %q", frame.Type)}
	}

	var req Request
	switch frame.Type {
	case TypeJoin:
		r := &JoinRequest{}
		if err := decodePayload(frame, r); err != nil {
			return frame, nil, err
		}
		req = *r
	case TypeChat:
		r := &ChatRequest{}
		if err := decodePayload(frame, r); err != nil {
			return frame, nil, err
		}
		req = *r
	case TypePrivate:
		r := &PrivateRequest{}
		if err := decodePayload(frame, r); err != nil {
			return frame, nil, err
		}
		req = *r
	case TypeUpdateProfile:
		r := &UpdateProfileRequest{}
		if err := decodePayload(frame, r); err != nil {
			return frame, nil, err
		}
		req = *r
	case TypeLeave:
		req = LeaveRequest{}
	}
	return frame, req, nil
}

func decodePayload(frame Frame, target any) error {
	if !emptyPayload(frame.Payload) {
		if err := json.Unmarshal(frame.Payload, target); err != nil {
			return &Error{Event: frame.Type, Code: CodeInvalidArgument, Message: "invalid " + frame.Type + " payload"}
		}
	}
	if err := validate.Struct(target); err != nil {
		return &Error{Event: frame.Type, Code: CodeInvalidArgument, Message: describe(err)}
	}
	return nil
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}
