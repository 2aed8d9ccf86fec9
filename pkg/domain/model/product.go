package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	BaseBuyingPrice  decimal.Decimal `json:"baseBuyingPrice"`
	BaseSellingPrice decimal.Decimal `json:"baseSellingPrice"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	ImageKey         *string         `json:"imageKey"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// ProductUpdate carries the fields to change; nil fields are left untouched.
type ProductUpdate struct {
	Name             *string          `validate:"omitempty,min=1"`
	BaseBuyingPrice  *decimal.Decimal `validate:"omitempty,nonneg,money"`
	BaseSellingPrice *decimal.Decimal `validate:"omitempty,nonneg,money"`
	DiscountPercent  *decimal.Decimal `validate:"omitempty,percent"`
	ImageKey         *string
	IsActive         *bool
}

func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.BaseBuyingPrice == nil && u.BaseSellingPrice == nil &&
		u.DiscountPercent == nil && u.ImageKey == nil && u.IsActive == nil
}

// Apply reports whether any field was supplied.
func (p *Product) Apply(u ProductUpdate) bool {
	if u.IsEmpty() {
		return false
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.BaseBuyingPrice != nil {
		p.BaseBuyingPrice = *u.BaseBuyingPrice
	}
	if u.BaseSellingPrice != nil {
		p.BaseSellingPrice = *u.BaseSellingPrice
	}
	if u.DiscountPercent != nil {
		p.DiscountPercent = *u.DiscountPercent
	}
	if u.ImageKey != nil {
		p.ImageKey = u.ImageKey
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	return true
}

func (p *Product) EffectiveSellingPrice() decimal.Decimal {
	return EffectivePrice(p.BaseSellingPrice, &p.DiscountPercent)
}

func (p *Product) EffectiveBuyingPrice() decimal.Decimal {
	return EffectivePrice(p.BaseBuyingPrice, &p.DiscountPercent)
}

// EffectivePrice returns basePrice * (1 - discountPercent/100). A nil or zero
// discount returns basePrice untouched.
func EffectivePrice(basePrice decimal.Decimal, discountPercent *decimal.Decimal) decimal.Decimal {
	if discountPercent == nil || discountPercent.IsZero() {
		return basePrice
	}
	// Division by 100 always terminates, so the factor is exact.
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return basePrice.Mul(factor)
}

func ProductToItem(p *Product) (Item, error) {
	return newItem(ProductKey(p.ID), CategoryProduct, p.Name, p, nil, p.UpdatedAt)
}

// ProductBody encodes the stored body alone, for conditional updates of an existing product.
func ProductBody(p *Product) ([]byte, error) {
	body, err := json.Marshal(p)
	return body, errors.Wrap(err, "encode product")
}

func ProductFromItem(item Item) (*Product, error) {
	var p Product
	if err := decodeBody(item, CategoryProduct, &p); err != nil {
		return nil, err
	}
	p.UpdatedAt = item.UpdatedAt
	return &p, nil
}
