package enums

import "fmt"

// MessageStatus tracks delivery state for a conversation message. Status only
// moves forward: sending -> sent -> delivered -> read, or sending -> failed.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

var validMessageStatuses = []MessageStatus{
	MessageStatusSending,
	MessageStatusSent,
	MessageStatusDelivered,
	MessageStatusRead,
	MessageStatusFailed,
}

var messageStatusRank = map[MessageStatus]int{
	MessageStatusSending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// failed is terminal and only reachable from sending.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if next == MessageStatusFailed {
		return s == MessageStatusSending
	}
	if s == MessageStatusFailed {
		return false
	}
	from, okFrom := messageStatusRank[s]
	to, okTo := messageStatusRank[next]
	return okFrom && okTo && to > from
}

// String implements fmt.Stringer.
func (s MessageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known MessageStatus.
func (s MessageStatus) IsValid() bool {
	for _, candidate := range validMessageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMessageStatus converts raw input into a MessageStatus.
func ParseMessageStatus(value string) (MessageStatus, error) {
	for _, candidate := range validMessageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message status %q", value)
}
