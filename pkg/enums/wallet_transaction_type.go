package enums

import "fmt"

// WalletTransactionType maps to the wallet_transaction_type_enum enum in Postgres.
type WalletTransactionType string

const (
	WalletTransactionTypeDeposit    WalletTransactionType = "deposit"
	WalletTransactionTypeWithdrawal WalletTransactionType = "withdrawal"
	WalletTransactionTypeRefund     WalletTransactionType = "refund"
	WalletTransactionTypePayout     WalletTransactionType = "payout"
	WalletTransactionTypeAdjustment WalletTransactionType = "adjustment"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypeDeposit,
	WalletTransactionTypeWithdrawal,
	WalletTransactionTypeRefund,
	WalletTransactionTypePayout,
	WalletTransactionTypeAdjustment,
}

// String implements fmt.Stringer.
func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsDebit reports whether the type moves money out of the wallet.
func (t WalletTransactionType) IsDebit() bool {
	switch t {
	case WalletTransactionTypeWithdrawal, WalletTransactionTypeRefund, WalletTransactionTypePayout:
		return true
	}
	return false
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
