package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Customer is the owner of the debt aggregate. TotalDebt is positive when the
// customer owes money and only ever changes through an atomic increment.
type Customer struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Location  string          `json:"location"`
	Phone     string          `json:"phone"`
	Email     *string         `json:"email"`
	Notes     *string         `json:"notes"`
	IsActive  bool            `json:"isActive"`
	TotalDebt decimal.Decimal `json:"totalDebt"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// customerDocument is the stored body. totalDebt and updatedAt live on the item itself.
type customerDocument struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email"`
	Notes     *string   `json:"notes"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func documentOf(c *Customer) customerDocument {
	return customerDocument{
		ID:        c.ID,
		Name:      c.Name,
		Location:  c.Location,
		Phone:     c.Phone,
		Email:     c.Email,
		Notes:     c.Notes,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
	}
}

func CustomerToItem(c *Customer) (Item, error) {
	numbers := map[string]decimal.Decimal{TotalDebtField: c.TotalDebt}
	return newItem(CustomerKey(c.ID), CategoryCustomer, c.Name, documentOf(c), numbers, c.UpdatedAt)
}

// CustomerBody encodes the stored body alone, for updates that must not touch totalDebt.
func CustomerBody(c *Customer) ([]byte, error) {
	body, err := json.Marshal(documentOf(c))
	return body, errors.Wrap(err, "encode customer")
}

func CustomerFromItem(item Item) (*Customer, error) {
	var doc customerDocument
	if err := decodeBody(item, CategoryCustomer, &doc); err != nil {
		return nil, err
	}
	return &Customer{
		ID:        doc.ID,
		Name:      doc.Name,
		Location:  doc.Location,
		Phone:     doc.Phone,
		Email:     doc.Email,
		Notes:     doc.Notes,
		IsActive:  doc.IsActive,
		TotalDebt: item.Numbers[TotalDebtField],
		CreatedAt: doc.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, nil
}

type CustomerDetail struct {
	Customer     *Customer      `json:"customer"`
	RecentOrders []OrderSummary `json:"recentOrders"`
}
