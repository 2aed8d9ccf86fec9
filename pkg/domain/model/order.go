package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is an immutable event record living under its customer's partition.
// DebtChange is the exact delta it applied to the customer's totalDebt.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customerId"`
	OrderDate   time.Time       `json:"orderDate"`
	Items       []LineItem      `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PaidNow     decimal.Decimal `json:"paidNow"`
	DebtChange  decimal.Decimal `json:"debtChange"`
	Notes       *string         `json:"notes"`
}

// LineItem keeps a snapshot of the product name and price taken when the order was placed.
type LineItem struct {
	ProductID           uuid.UUID       `json:"productId"`
	ProductNameSnapshot string          `json:"productNameSnapshot"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	Quantity            decimal.Decimal `json:"quantity"`
	LineTotal           decimal.Decimal `json:"lineTotal"`
}

type OrderSummary struct {
	ID          uuid.UUID       `json:"id"`
	OrderDate   time.Time       `json:"orderDate"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PaidNow     decimal.Decimal `json:"paidNow"`
	DebtChange  decimal.Decimal `json:"debtChange"`
}

func (o *Order) Key() Key { return OrderKey(o.CustomerID, o.OrderDate, o.ID) }

func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		OrderDate:   o.OrderDate,
		TotalAmount: o.TotalAmount,
		PaidNow:     o.PaidNow,
		DebtChange:  o.DebtChange,
	}
}

func OrderToItem(o *Order) (Item, error) {
	return newItem(o.Key(), CategoryOrder, o.ID.String(), o, nil, o.OrderDate)
}

func OrderFromItem(item Item) (*Order, error) {
	var o Order
	if err := decodeBody(item, CategoryOrder, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
