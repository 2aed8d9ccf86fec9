package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtAdjustment is an immutable event record. A positive Amount increases the
// customer's debt, a cash payment is recorded with a negative Amount.
type DebtAdjustment struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customerId"`
	Timestamp  time.Time       `json:"timestamp"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
}

// AdjustmentResult is a recorded adjustment together with the aggregate it produced.
type AdjustmentResult struct {
	DebtAdjustment
	NewTotalDebt decimal.Decimal `json:"newTotalDebt"`
}

// BalanceAudit compares the stored aggregate with the sum of the customer's events.
type BalanceAudit struct {
	CustomerID      uuid.UUID       `json:"customerId"`
	Recorded        decimal.Decimal `json:"recorded"`
	Computed        decimal.Decimal `json:"computed"`
	Drift           decimal.Decimal `json:"drift"`
	OrderCount      int             `json:"orderCount"`
	AdjustmentCount int             `json:"adjustmentCount"`
}

func (a BalanceAudit) Consistent() bool { return a.Drift.IsZero() }

func (d *DebtAdjustment) Key() Key { return DebtKey(d.CustomerID, d.Timestamp, d.ID) }

func DebtAdjustmentToItem(d *DebtAdjustment) (Item, error) {
	return newItem(d.Key(), CategoryDebtAdjustment, d.ID.String(), d, nil, d.Timestamp)
}

func DebtAdjustmentFromItem(item Item) (*DebtAdjustment, error) {
	var d DebtAdjustment
	if err := decodeBody(item, CategoryDebtAdjustment, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
