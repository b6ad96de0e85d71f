package payouts

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
)

var centsPerUnit = decimal.NewFromInt(100)

// netAfterCommission returns gross minus the commission percentage, in cents,
// rounded down to a whole number of currency units. The provider only moves
// whole units, so the net must land on a unit boundary for the ledger debit to
// match the money actually paid out; the fractional remainder stays with the
// platform as commission.
func netAfterCommission(grossCents int64, commissionPercent int) (int64, error) {
	if commissionPercent < 0 || commissionPercent > 100 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "commission percent must be between 0 and 100")
	}

	net := decimal.NewFromInt(grossCents).
		Mul(decimal.NewFromInt(int64(100 - commissionPercent))).
		Div(decimal.NewFromInt(100))

	units := net.Div(centsPerUnit).Floor()
	return units.Mul(centsPerUnit).IntPart(), nil
}
