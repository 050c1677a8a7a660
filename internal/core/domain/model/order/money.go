package order

import (
	"fmt"

	"freight/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits a money amount may carry.
const MoneyScale = 2

// MaxMoneyAmount is the largest bid or order amount that can be stored.
var MaxMoneyAmount = decimal.RequireFromString("999999999999.99")

// validateMoney rejects amounts the numeric(14,2) columns cannot hold exactly.
func validateMoney(paramName string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return errs.NewValueIsInvalidErrorWithCause(paramName,
			fmt.Errorf("%s has more than %d fractional digits", amount, MoneyScale))
	}
	if amount.GreaterThan(MaxMoneyAmount) {
		return errs.NewValueIsOutOfRangeError(paramName, amount, 0, MaxMoneyAmount)
	}
	return nil
}
