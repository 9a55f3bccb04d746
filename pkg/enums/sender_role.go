package enums

import "fmt"

// SenderRole identifies which side of a conversation authored a message.
type SenderRole string

const (
	SenderRoleBuyer  SenderRole = "buyer"
	SenderRoleSeller SenderRole = "seller"
)

var validSenderRoles = []SenderRole{
	SenderRoleBuyer,
	SenderRoleSeller,
}

// String implements fmt.Stringer.
func (r SenderRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known SenderRole.
func (r SenderRole) IsValid() bool {
	for _, candidate := range validSenderRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseSenderRole converts raw input into a SenderRole.
func ParseSenderRole(value string) (SenderRole, error) {
	for _, candidate := range validSenderRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sender role %q", value)
}
