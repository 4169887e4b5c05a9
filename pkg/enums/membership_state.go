package enums

import "fmt"

// MembershipState describes the allowed values for the `state` column in memberships.
type MembershipState string

const (
	MembershipStateActive MembershipState = "active"
	MembershipStateLeft   MembershipState = "left"
	MembershipStateKicked MembershipState = "kicked"
)

var validMembershipStates = []MembershipState{
	MembershipStateActive,
	MembershipStateLeft,
	MembershipStateKicked,
}

// String implements fmt.Stringer.
func (m MembershipState) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical membership state enum.
func (m MembershipState) IsValid() bool {
	for _, candidate := range validMembershipStates {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMembershipState converts the raw string to MembershipState.
func ParseMembershipState(value string) (MembershipState, error) {
	for _, candidate := range validMembershipStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership state %q", value)
}
