package enums

import "fmt"

// QueueStatus tracks the delivery lifecycle of a queue entry.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusDelivered  QueueStatus = "delivered"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusExpired    QueueStatus = "expired"
)

var validQueueStatuses = []QueueStatus{
	QueueStatusPending,
	QueueStatusProcessing,
	QueueStatusDelivered,
	QueueStatusFailed,
	QueueStatusExpired,
}

// IsTerminal reports whether no further transitions are allowed.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusDelivered || s == QueueStatusExpired
}

// String implements fmt.Stringer.
func (s QueueStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known QueueStatus.
func (s QueueStatus) IsValid() bool {
	for _, candidate := range validQueueStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseQueueStatus converts raw input into a QueueStatus.
func ParseQueueStatus(value string) (QueueStatus, error) {
	for _, candidate := range validQueueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queue status %q", value)
}
