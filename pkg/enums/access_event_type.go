package enums

import "fmt"

// AccessEventType is the canonical event_type for access-event routing.
type AccessEventType string

const (
	AccessEventGrantReconciled  AccessEventType = "grant_reconciled"
	AccessEventRevokeReconciled AccessEventType = "revoke_reconciled"
	AccessEventRoleChanged      AccessEventType = "role_changed"
	AccessEventInvitesIssued    AccessEventType = "invites_issued"
	AccessEventMemberEvicted    AccessEventType = "member_evicted"
)

var validAccessEventTypes = []AccessEventType{
	AccessEventGrantReconciled,
	AccessEventRevokeReconciled,
	AccessEventRoleChanged,
	AccessEventInvitesIssued,
	AccessEventMemberEvicted,
}

// IsValid reports whether the value matches the canonical access event_type enum.
func (a AccessEventType) IsValid() bool {
	for _, candidate := range validAccessEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccessEventType converts the raw string to AccessEventType.
func ParseAccessEventType(value string) (AccessEventType, error) {
	for _, candidate := range validAccessEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid access event type %q", value)
}
