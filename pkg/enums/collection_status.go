package enums

import "fmt"

// CollectionStatus tracks the lifecycle of an inbound payment session.
type CollectionStatus string

const (
	CollectionStatusInitiated CollectionStatus = "initiated"
	CollectionStatusPending   CollectionStatus = "pending"
	CollectionStatusSuccess   CollectionStatus = "success"
	CollectionStatusFailed    CollectionStatus = "failed"
	CollectionStatusTimeout   CollectionStatus = "timeout"
)

var validCollectionStatuses = []CollectionStatus{
	CollectionStatusInitiated,
	CollectionStatusPending,
	CollectionStatusSuccess,
	CollectionStatusFailed,
	CollectionStatusTimeout,
}

// String implements fmt.Stringer.
func (s CollectionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CollectionStatus.
func (s CollectionStatus) IsValid() bool {
	for _, candidate := range validCollectionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s CollectionStatus) IsTerminal() bool {
	switch s {
	case CollectionStatusSuccess, CollectionStatusFailed, CollectionStatusTimeout:
		return true
	}
	return false
}

// ParseCollectionStatus converts raw input into a CollectionStatus.
func ParseCollectionStatus(value string) (CollectionStatus, error) {
	for _, candidate := range validCollectionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection status %q", value)
}
