package main

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"distribution/pkg/domain/model"
	"distribution/pkg/domain/service"
)

func uuidArg(c *cli.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.String(name)))
	if err != nil {
		return uuid.Nil, model.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

func decimalArg(c *cli.Context, name string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, model.NewValidationError(name, "must be a decimal number")
	}
	return d, nil
}

func optionalDecimal(c *cli.Context, name string) (*decimal.Decimal, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	d, err := decimalArg(c, name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	s := c.String(name)
	return &s
}

func optionalTime(c *cli.Context, name string) (*time.Time, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, c.String(name))
	if err != nil {
		return nil, model.NewValidationError(name, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func pageOptions(c *cli.Context) service.PageOptions {
	return service.PageOptions{Limit: c.Int("limit")}
}

func listOptions(c *cli.Context) service.ListOptions {
	return service.ListOptions{Search: c.String("search"), IncludeInactive: c.Bool("all")}
}

// parseOrderItem reads "productId:quantity" or "productId:quantity:unitPrice".
func parseOrderItem(raw string) (service.OrderItemInput, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return service.OrderItemInput{}, model.NewValidationError("item", "must be productId:quantity[:unitPrice]")
	}
	productID, err := uuid.Parse(parts[0])
	if err != nil {
		return service.OrderItemInput{}, model.NewValidationError("item.productId", "must be a UUID")
	}
	quantity, err := decimal.NewFromString(parts[1])
	if err != nil {
		return service.OrderItemInput{}, model.NewValidationError("item.quantity", "must be a decimal number")
	}
	item := service.OrderItemInput{ProductID: productID, Quantity: quantity}
	if len(parts) == 3 {
		price, err := decimal.NewFromString(parts[2])
		if err != nil {
			return service.OrderItemInput{}, model.NewValidationError("item.unitPrice", "must be a decimal number")
		}
		item.UnitPrice = &price
	}
	return item, nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// productView adds the discounted prices to a product response.
type productView struct {
	*model.Product
	EffectiveBuyingPrice  decimal.Decimal `json:"effectiveBuyingPrice"`
	EffectiveSellingPrice decimal.Decimal `json:"effectiveSellingPrice"`
}

func newProductView(p *model.Product) productView {
	return productView{
		Product:               p,
		EffectiveBuyingPrice:  p.EffectiveBuyingPrice(),
		EffectiveSellingPrice: p.EffectiveSellingPrice(),
	}
}
