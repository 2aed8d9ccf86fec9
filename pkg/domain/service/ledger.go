package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"distribution/pkg/domain/model"
)

const unknownProductName = "Unknown Product"

type OrderItemInput struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt0,quantity"`
	// UnitPrice, when set, is used as is together with ProductNameSnapshot and
	// the product is not read.
	UnitPrice           *decimal.Decimal `json:"unitPrice" validate:"omitempty,nonneg,money"`
	ProductNameSnapshot *string          `json:"productNameSnapshot"`
}

type PlaceOrderInput struct {
	CustomerID uuid.UUID        `json:"customerId" validate:"required"`
	OrderDate  *time.Time       `json:"orderDate"`
	Items      []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	Discount   decimal.Decimal  `json:"discount" validate:"nonneg,money"`
	PaidNow    decimal.Decimal  `json:"paidNow" validate:"nonneg,money"`
	Notes      *string          `json:"notes"`
}

type AdjustDebtInput struct {
	CustomerID uuid.UUID `json:"customerId" validate:"required"`
	// Amount is unrestricted: positive increases the debt, negative decreases it.
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Reason    string          `json:"reason" validate:"required"`
	Timestamp *time.Time      `json:"timestamp"`
}

// LedgerService writes the immutable event records that move money and keeps
// each customer's totalDebt equal to the sum of those events.
//
// Every write is two steps: (A) put the event record, then (B) increment the
// aggregate. A failure in A leaves nothing behind. A failure in B returns a
// *model.PartialWriteError carrying the recorded event id; the event is never
// rolled back and the fix is to re-drive B with ReconcileOrder or
// ReconcileDebtAdjustment.
type LedgerService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error)
	AdjustDebt(ctx context.Context, input AdjustDebtInput) (*model.AdjustmentResult, error)
	// ReconcileOrder applies the recorded debtChange of an order whose aggregate
	// update failed. Calling it for an order that was already applied double counts it.
	ReconcileOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Customer, error)
	ReconcileDebtAdjustment(ctx context.Context, customerID, adjustmentID uuid.UUID) (*model.Customer, error)
	// AuditBalance recomputes the customer's debt from every recorded event.
	AuditBalance(ctx context.Context, customerID uuid.UUID) (*model.BalanceAudit, error)
}

func NewLedgerService(
	store model.ItemStore,
	customers CustomerService,
	products ProductService,
	queries QueryService,
	dispatcher EventDispatcher,
	logger log.FieldLogger,
) LedgerService {
	return &ledgerService{
		store:      store,
		customers:  customers,
		products:   products,
		queries:    queries,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type ledgerService struct {
	store      model.ItemStore
	customers  CustomerService
	products   ProductService
	queries    QueryService
	dispatcher EventDispatcher
	logger     log.FieldLogger
}

func (s *ledgerService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := s.customers.GetCustomer(ctx, input.CustomerID); err != nil {
		return nil, err
	}

	lines, err := s.priceLines(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	orderID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:         orderID,
		CustomerID: input.CustomerID,
		OrderDate:  eventTime(input.OrderDate),
		Items:      lines,
		Discount:   input.Discount,
		PaidNow:    input.PaidNow,
		Notes:      input.Notes,
	}
	recalculateTotals(order)

	item, err := model.OrderToItem(order)
	if err != nil {
		return nil, err
	}

	customer, err := s.recordEvent(ctx, item, model.OrderEvent, orderID, input.CustomerID, order.DebtChange)
	if err != nil {
		return nil, err
	}

	dispatchEvents(ctx, s.dispatcher, s.logger, model.OrderPlaced{
		OrderID:      orderID,
		CustomerID:   input.CustomerID,
		TotalAmount:  order.TotalAmount,
		DebtChange:   order.DebtChange,
		NewTotalDebt: customer.TotalDebt,
	})
	return order, nil
}

func (s *ledgerService) AdjustDebt(ctx context.Context, input AdjustDebtInput) (*model.AdjustmentResult, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := s.customers.GetCustomer(ctx, input.CustomerID); err != nil {
		return nil, err
	}

	adjustmentID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	adjustment := model.DebtAdjustment{
		ID:         adjustmentID,
		CustomerID: input.CustomerID,
		Timestamp:  eventTime(input.Timestamp),
		Amount:     input.Amount,
		Reason:     input.Reason,
	}

	item, err := model.DebtAdjustmentToItem(&adjustment)
	if err != nil {
		return nil, err
	}

	customer, err := s.recordEvent(ctx, item, model.DebtAdjustmentEvent, adjustmentID, input.CustomerID, adjustment.Amount)
	if err != nil {
		return nil, err
	}

	dispatchEvents(ctx, s.dispatcher, s.logger, model.DebtAdjusted{
		AdjustmentID: adjustmentID,
		CustomerID:   input.CustomerID,
		Amount:       adjustment.Amount,
		Reason:       adjustment.Reason,
		NewTotalDebt: customer.TotalDebt,
	})
	return &model.AdjustmentResult{DebtAdjustment: adjustment, NewTotalDebt: customer.TotalDebt}, nil
}

func (s *ledgerService) ReconcileOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Customer, error) {
	order, err := s.queries.GetOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, model.OrderEvent, orderID, customerID, order.DebtChange)
}

func (s *ledgerService) ReconcileDebtAdjustment(ctx context.Context, customerID, adjustmentID uuid.UUID) (*model.Customer, error) {
	adjustment, err := s.queries.GetDebtAdjustment(ctx, customerID, adjustmentID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, model.DebtAdjustmentEvent, adjustmentID, customerID, adjustment.Amount)
}

func (s *ledgerService) AuditBalance(ctx context.Context, customerID uuid.UUID) (*model.BalanceAudit, error) {
	customer, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	partition := model.CustomerPartition(customerID)
	orderItems, err := s.store.QueryByPrefix(ctx, partition, model.OrderSortKeyPrefix, 0, false)
	if err != nil {
		return nil, errors.Wrapf(err, "audit orders of customer %s", customerID)
	}
	debtItems, err := s.store.QueryByPrefix(ctx, partition, model.DebtSortKeyPrefix, 0, false)
	if err != nil {
		return nil, errors.Wrapf(err, "audit debt adjustments of customer %s", customerID)
	}

	computed := decimal.Zero
	for _, item := range orderItems {
		order, err := model.OrderFromItem(item)
		if err != nil {
			return nil, err
		}
		computed = computed.Add(order.DebtChange)
	}
	for _, item := range debtItems {
		adjustment, err := model.DebtAdjustmentFromItem(item)
		if err != nil {
			return nil, err
		}
		computed = computed.Add(adjustment.Amount)
	}

	return &model.BalanceAudit{
		CustomerID:      customerID,
		Recorded:        customer.TotalDebt,
		Computed:        computed,
		Drift:           customer.TotalDebt.Sub(computed),
		OrderCount:      len(orderItems),
		AdjustmentCount: len(debtItems),
	}, nil
}

// recordEvent runs the two-step write. Step A must complete before step B starts,
// and a cancelled ctx does not stop step B once step A has succeeded.
func (s *ledgerService) recordEvent(
	ctx context.Context,
	event model.Item,
	kind model.EventKind,
	eventID, customerID uuid.UUID,
	delta decimal.Decimal,
) (*model.Customer, error) {
	if err := s.store.Put(ctx, event); err != nil {
		return nil, errors.Wrapf(err, "record %s %s", kind, eventID)
	}

	// Once the event is recorded the increment must run, so cancellation stops at step A.
	customer, err := s.customers.AdjustTotalDebt(context.WithoutCancel(ctx), customerID, delta)
	if err != nil {
		s.logger.WithFields(log.Fields{
			"kind":        kind,
			"event_id":    eventID,
			"customer_id": customerID,
			"delta":       delta.String(),
		}).WithError(err).Error("event recorded but totalDebt not adjusted, reconciliation required")
		return nil, &model.PartialWriteError{
			Kind:       kind,
			EventID:    eventID,
			CustomerID: customerID,
			Delta:      delta,
			Err:        err,
		}
	}
	return customer, nil
}

func (s *ledgerService) reconcile(ctx context.Context, kind model.EventKind, eventID, customerID uuid.UUID, delta decimal.Decimal) (*model.Customer, error) {
	customer, err := s.customers.AdjustTotalDebt(ctx, customerID, delta)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"kind":        kind,
		"event_id":    eventID,
		"customer_id": customerID,
		"delta":       delta.String(),
	}).Warn("totalDebt reconciled")

	dispatchEvents(ctx, s.dispatcher, s.logger, model.DebtReconciled{
		Kind:         kind,
		EventID:      eventID,
		CustomerID:   customerID,
		Delta:        delta,
		NewTotalDebt: customer.TotalDebt,
	})
	return customer, nil
}

// priceLines snapshots name and unit price of every line once, at creation time.
// Catalog prices and line totals are rounded to MoneyScale, so the order's
// debtChange is exactly representable in every store.
func (s *ledgerService) priceLines(ctx context.Context, items []OrderItemInput) ([]model.LineItem, error) {
	lines := make([]model.LineItem, 0, len(items))
	for _, item := range items {
		line := model.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}

		if item.UnitPrice != nil {
			line.UnitPrice = *item.UnitPrice
			line.ProductNameSnapshot = unknownProductName
			if item.ProductNameSnapshot != nil && *item.ProductNameSnapshot != "" {
				line.ProductNameSnapshot = *item.ProductNameSnapshot
			}
		} else {
			product, err := s.products.GetProduct(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			line.UnitPrice = model.RoundMoney(product.EffectiveSellingPrice())
			line.ProductNameSnapshot = product.Name
		}

		line.LineTotal = model.RoundMoney(line.UnitPrice.Mul(line.Quantity))
		lines = append(lines, line)
	}
	return lines, nil
}

// totalAmount and debtChange are not clamped: a large discount or an
// overpayment legitimately produces a negative value.
func recalculateTotals(order *model.Order) {
	subtotal := decimal.Zero
	for _, line := range order.Items {
		subtotal = subtotal.Add(line.LineTotal)
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal.Sub(order.Discount)
	order.DebtChange = order.TotalAmount.Sub(order.PaidNow)
}

func eventTime(requested *time.Time) time.Time {
	if requested != nil && !requested.IsZero() {
		return requested.UTC()
	}
	return time.Now().UTC()
}
