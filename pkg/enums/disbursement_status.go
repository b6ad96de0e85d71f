package enums

import "fmt"

// DisbursementStatus tracks the lifecycle of an outbound payment session.
type DisbursementStatus string

const (
	DisbursementStatusPending   DisbursementStatus = "pending"
	DisbursementStatusInitiated DisbursementStatus = "initiated"
	DisbursementStatusCompleted DisbursementStatus = "completed"
	DisbursementStatusFailed    DisbursementStatus = "failed"
)

var validDisbursementStatuses = []DisbursementStatus{
	DisbursementStatusPending,
	DisbursementStatusInitiated,
	DisbursementStatusCompleted,
	DisbursementStatusFailed,
}

// String implements fmt.Stringer.
func (s DisbursementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DisbursementStatus.
func (s DisbursementStatus) IsValid() bool {
	for _, candidate := range validDisbursementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s DisbursementStatus) IsTerminal() bool {
	switch s {
	case DisbursementStatusCompleted, DisbursementStatusFailed:
		return true
	}
	return false
}

// ParseDisbursementStatus converts raw input into a DisbursementStatus.
func ParseDisbursementStatus(value string) (DisbursementStatus, error) {
	for _, candidate := range validDisbursementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disbursement status %q", value)
}
