package enums

import "fmt"

// CollectionPurpose categorizes what an inbound payment pays for.
type CollectionPurpose string

const (
	CollectionPurposeBooking     CollectionPurpose = "booking"
	CollectionPurposeWalletTopup CollectionPurpose = "wallet_topup"
	CollectionPurposeAdminTest   CollectionPurpose = "admin_test"
)

var validCollectionPurposes = []CollectionPurpose{
	CollectionPurposeBooking,
	CollectionPurposeWalletTopup,
	CollectionPurposeAdminTest,
}

// IsValid reports whether the value is a known CollectionPurpose.
func (p CollectionPurpose) IsValid() bool {
	for _, candidate := range validCollectionPurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseCollectionPurpose converts raw input into a CollectionPurpose.
func ParseCollectionPurpose(value string) (CollectionPurpose, error) {
	for _, candidate := range validCollectionPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection purpose %q", value)
}
