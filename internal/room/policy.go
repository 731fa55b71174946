package room

import "fmt"

// DuplicatePolicy decides what happens when a join names a (room, userId)
// already bound to another live connection.
type DuplicatePolicy int

const (
	// DuplicateReplace overwrites the profile and keeps both connections
	// bound, which acts as an implicit reconnect.
	DuplicateReplace DuplicatePolicy = iota
	// DuplicateReject refuses the second join with ErrUserIDTaken.
	DuplicateReject
)

// ParseDuplicatePolicy accepts "replace" or "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "replace", "":
		return DuplicateReplace, nil
	case "reject":
		return DuplicateReject, nil
	default:
		return DuplicateReplace, fmt.Errorf("unknown duplicate user policy %q", s)
	}
}

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReject:
		return "reject"
	default:
		return "replace"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p DuplicatePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so the policy can be read
// straight from environment variables and flags.
func (p *DuplicatePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseDuplicatePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
