package model

import "github.com/shopspring/decimal"

// Precision limits of stored values. Every money amount fits the fixed-point
// columns of the SQL store and the 38 significant digits of a DynamoDB number,
// so an increment never rounds away part of what the event recorded.
const (
	MoneyScale    = 4
	QuantityScale = 3
	PercentScale  = 2
)

var (
	MaxMoney    = decimal.New(1, 15)
	MaxQuantity = decimal.New(1, 9)
)

// RoundMoney brings a computed amount to MoneyScale decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// WithinScale reports whether d has no more than scale significant decimal places.
func WithinScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}
