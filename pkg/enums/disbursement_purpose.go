package enums

import "fmt"

// DisbursementPurpose distinguishes trainer payouts from dispute refunds.
type DisbursementPurpose string

const (
	DisbursementPurposePayout DisbursementPurpose = "payout"
	DisbursementPurposeRefund DisbursementPurpose = "refund"
)

var validDisbursementPurposes = []DisbursementPurpose{
	DisbursementPurposePayout,
	DisbursementPurposeRefund,
}

// IsValid reports whether the value is a known DisbursementPurpose.
func (p DisbursementPurpose) IsValid() bool {
	for _, candidate := range validDisbursementPurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// TransactionType returns the ledger entry type recorded when a session with
// this purpose settles.
func (p DisbursementPurpose) TransactionType() WalletTransactionType {
	if p == DisbursementPurposeRefund {
		return WalletTransactionTypeRefund
	}
	return WalletTransactionTypePayout
}

// ParseDisbursementPurpose converts raw input into a DisbursementPurpose.
func ParseDisbursementPurpose(value string) (DisbursementPurpose, error) {
	for _, candidate := range validDisbursementPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disbursement purpose %q", value)
}
