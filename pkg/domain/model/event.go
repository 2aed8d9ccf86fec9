package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CustomerCreated struct {
	CustomerID uuid.UUID
	Name       string
}

func (e CustomerCreated) Type() string { return "CustomerCreated" }

type CustomerActivityChanged struct {
	CustomerID uuid.UUID
	IsActive   bool
}

func (e CustomerActivityChanged) Type() string { return "CustomerActivityChanged" }

type ProductCreated struct {
	ProductID uuid.UUID
	Name      string
}

func (e ProductCreated) Type() string { return "ProductCreated" }

type ProductUpdated struct {
	ProductID       uuid.UUID
	OldSellingPrice decimal.Decimal
	NewSellingPrice decimal.Decimal
	OldDiscount     decimal.Decimal
	NewDiscount     decimal.Decimal
	IsActive        bool
}

func (e ProductUpdated) Type() string { return "ProductUpdated" }

type OrderPlaced struct {
	OrderID      uuid.UUID
	CustomerID   uuid.UUID
	TotalAmount  decimal.Decimal
	DebtChange   decimal.Decimal
	NewTotalDebt decimal.Decimal
}

func (e OrderPlaced) Type() string { return "OrderPlaced" }

type DebtAdjusted struct {
	AdjustmentID uuid.UUID
	CustomerID   uuid.UUID
	Amount       decimal.Decimal
	Reason       string
	NewTotalDebt decimal.Decimal
}

func (e DebtAdjusted) Type() string { return "DebtAdjusted" }

// DebtReconciled is raised when an operator re-drives the aggregate update of a partial write.
type DebtReconciled struct {
	Kind         EventKind
	EventID      uuid.UUID
	CustomerID   uuid.UUID
	Delta        decimal.Decimal
	NewTotalDebt decimal.Decimal
}

func (e DebtReconciled) Type() string { return "DebtReconciled" }
