package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one already-parsed row from an external bank feed.
// Amount is signed from the bank account's perspective: positive =
// money in, negative = money out.
type BankTransaction struct {
	ExternalID  string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}
