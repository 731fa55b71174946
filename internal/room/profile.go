package room

// Presentation defaults applied on join when the client leaves a field empty.
const (
	DefaultBubbleColor = "#e6f7ff"
	DefaultTextColor   = "#222"
)

// Profile is a user's public presentation inside one room's roster.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IconBase64  string `json:"iconBase64"`
	BubbleColor string `json:"bubbleColor"`
	TextColor   string `json:"textColor"`
}

// JoinParams carries a join request. Room, DisplayName and UserID are required.
type JoinParams struct {
	Room        string
	DisplayName string
	UserID      string
	IconBase64  string
	BubbleColor string
	TextColor   string
}

func (p JoinParams) valid() bool {
	return p.Room != "" && p.DisplayName != "" && p.UserID != ""
}

func (p JoinParams) profile() Profile {
	profile := Profile{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IconBase64:  p.IconBase64,
		BubbleColor: p.BubbleColor,
		TextColor:   p.TextColor,
	}
	if profile.BubbleColor == "" {
		profile.BubbleColor = DefaultBubbleColor
	}
	if profile.TextColor == "" {
		profile.TextColor = DefaultTextColor
	}
	return profile
}

// ProfileUpdate is a partial update: nil fields are left unchanged, a non-nil
// field overwrites the attribute even when it points at an empty string.
type ProfileUpdate struct {
	IconBase64  *string
	BubbleColor *string
	TextColor   *string
}

func (u ProfileUpdate) apply(p *Profile) {
	if u.IconBase64 != nil {
		p.IconBase64 = *u.IconBase64
	}
	if u.BubbleColor != nil {
		p.BubbleColor = *u.BubbleColor
	}
	if u.TextColor != nil {
		p.TextColor = *u.TextColor
	}
}

// Content is the body of a chat or private message. Every field is optional
// and an all-empty message is still delivered.
type Content struct {
	Text        string
	ImageBase64 string
	Stamp       string
}

// Message is the outbound chat/private payload. From is a copy of the
// sender's profile taken when the message is sent.
type Message struct {
	Type        string  `json:"type"`
	ToUserID    string  `json:"toUserId,omitempty"`
	From        Profile `json:"from"`
	Text        string  `json:"text"`
	ImageBase64 string  `json:"imageBase64"`
	Stamp       string  `json:"stamp"`
}
