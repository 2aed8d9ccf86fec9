package tests

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution/pkg/domain/model"
	"distribution/pkg/domain/service"
)

func TestPlaceOrder_PricesFromCatalog(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	product := f.createProduct(t, "Sugar 1kg", "15", "10")
	f.dispatcher.Reset()

	order, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: product.ID, Quantity: dec("5")}},
	})

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	line := order.Items[0]
	assert.Equal(t, "Sugar 1kg", line.ProductNameSnapshot)
	assert.True(t, dec("13.5").Equal(line.UnitPrice), line.UnitPrice.String())
	assert.True(t, dec("67.5").Equal(line.LineTotal), line.LineTotal.String())
	assert.True(t, dec("67.5").Equal(order.Subtotal))
	assert.True(t, dec("67.5").Equal(order.DebtChange))
	assert.True(t, dec("67.5").Equal(f.totalDebt(t, customer.ID)))

	require.Len(t, f.dispatcher.events, 1)
	event, ok := f.dispatcher.events[0].(model.OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, order.ID, event.OrderID)
	assert.True(t, dec("67.5").Equal(event.NewTotalDebt))
}

func TestPlaceOrder_Totals(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	product := f.createProduct(t, "Flour", "45", "0")
	name := "Loose eggs"

	order, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items: []service.OrderItemInput{
			{ProductID: product.ID, Quantity: dec("3")},
			{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("15"), ProductNameSnapshot: &name},
		},
		Discount: dec("10"),
	})

	require.NoError(t, err)
	assert.True(t, dec("150").Equal(order.Subtotal), order.Subtotal.String())
	assert.True(t, dec("140").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, dec("140").Equal(order.DebtChange), order.DebtChange.String())
	assert.Equal(t, "Loose eggs", order.Items[1].ProductNameSnapshot)
	assert.True(t, dec("140").Equal(f.totalDebt(t, customer.ID)))
}

func TestPlaceOrder_UnitPriceWithoutSnapshotUsesPlaceholder(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	order, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("2"), UnitPrice: decPtr("4")}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Unknown Product", order.Items[0].ProductNameSnapshot)
}

func TestPlaceOrder_OverpaymentReducesDebt(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	order, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("20")}},
		Discount:   dec("25"),
		PaidNow:    dec("10"),
	})

	require.NoError(t, err)
	assert.True(t, dec("-5").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, dec("-15").Equal(order.DebtChange), order.DebtChange.String())
	assert.True(t, dec("-15").Equal(f.totalDebt(t, customer.ID)))
}

func TestPlaceOrder_UnknownProductWritesNothing(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	product := f.createProduct(t, "Flour", "45", "0")
	f.dispatcher.Reset()
	putsBefore, incrementsBefore := f.store.writes()

	_, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items: []service.OrderItemInput{
			{ProductID: product.ID, Quantity: dec("1")},
			{ProductID: uuid.New(), Quantity: dec("1")},
		},
	})

	assert.ErrorIs(t, err, model.ErrProductNotFound)
	puts, increments := f.store.writes()
	assert.Equal(t, putsBefore, puts)
	assert.Equal(t, incrementsBefore, increments)
	assert.True(t, f.totalDebt(t, customer.ID).IsZero())
	assert.Empty(t, f.dispatcher.events)
}

func TestPlaceOrder_UnknownCustomer(t *testing.T) {
	f := setup(t)

	_, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: uuid.New(),
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("1")}},
	})

	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
	puts, _ := f.store.writes()
	assert.Zero(t, puts)
}

func TestPlaceOrder_Validation(t *testing.T) {
	customerID := uuid.New()
	cases := []struct {
		name  string
		input service.PlaceOrderInput
		field string
	}{
		{"no items", service.PlaceOrderInput{CustomerID: customerID}, "items"},
		{"zero quantity", service.PlaceOrderInput{
			CustomerID: customerID,
			Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("0")}},
		}, "items[0].quantity"},
		{"negative unit price", service.PlaceOrderInput{
			CustomerID: customerID,
			Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("-1")}},
		}, "items[0].unitPrice"},
		{"negative discount", service.PlaceOrderInput{
			CustomerID: customerID,
			Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1")}},
			Discount:   dec("-1"),
		}, "discount"},
		{"negative payment", service.PlaceOrderInput{
			CustomerID: customerID,
			Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1")}},
			PaidNow:    dec("-0.5"),
		}, "paidNow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)

			_, err := f.ledger.PlaceOrder(context.Background(), tc.input)

			var validationErr *model.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestPlaceOrder_SameInstantOrdersAreKept(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	date := at("2024-03-01T10:00:00Z")
	input := service.PlaceOrderInput{
		CustomerID: customer.ID,
		OrderDate:  date,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("7")}},
	}

	first, err := f.ledger.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	second, err := f.ledger.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	orders, err := f.queries.GetCustomerOrders(context.Background(), customer.ID, service.PageOptions{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.True(t, dec("14").Equal(f.totalDebt(t, customer.ID)))
}

func TestPlaceOrder_ConcurrentOrdersAllCounted(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	const orders = 20
	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
				CustomerID: customer.ID,
				Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("2.5")}},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, dec("50").Equal(f.totalDebt(t, customer.ID)))
	audit, err := f.ledger.AuditBalance(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent(), audit.Drift.String())
	assert.Equal(t, orders, audit.OrderCount)
}

func TestPlaceOrder_EventWriteFailureLeavesNothing(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	f.dispatcher.Reset()
	f.store.setFailures(true, false)

	_, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("9")}},
	})

	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	var partial *model.PartialWriteError
	assert.False(t, errors.As(err, &partial))
	_, increments := f.store.writes()
	assert.Zero(t, increments)
	assert.True(t, f.totalDebt(t, customer.ID).IsZero())
	assert.Empty(t, f.dispatcher.events)
}

func TestPlaceOrder_PartialWriteAndReconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	customer := f.createCustomer(t, "Corner Shop")
	f.dispatcher.Reset()
	f.store.setFailures(false, true)

	_, err := f.ledger.PlaceOrder(ctx, service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("4"), UnitPrice: decPtr("5")}},
		PaidNow:    dec("5"),
	})

	var partial *model.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, model.OrderEvent, partial.Kind)
	assert.Equal(t, customer.ID, partial.CustomerID)
	assert.True(t, dec("15").Equal(partial.Delta))
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Empty(t, f.dispatcher.events)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, partial.EventID, entry.Data["event_id"])

	recorded, err := f.queries.GetOrder(ctx, customer.ID, partial.EventID)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(recorded.DebtChange))
	assert.True(t, f.totalDebt(t, customer.ID).IsZero())

	audit, err := f.ledger.AuditBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.False(t, audit.Consistent())
	assert.True(t, dec("-15").Equal(audit.Drift), audit.Drift.String())

	f.store.setFailures(false, false)
	reconciled, err := f.ledger.ReconcileOrder(ctx, customer.ID, partial.EventID)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(reconciled.TotalDebt))

	audit, err = f.ledger.AuditBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent())

	require.Len(t, f.dispatcher.events, 1)
	event, ok := f.dispatcher.events[0].(model.DebtReconciled)
	require.True(t, ok)
	assert.Equal(t, partial.EventID, event.EventID)
}

func TestReconcileOrder_UnknownOrder(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	_, err := f.ledger.ReconcileOrder(context.Background(), customer.ID, uuid.New())

	assert.ErrorIs(t, err, model.ErrOrderNotFound)
	assert.True(t, f.totalDebt(t, customer.ID).IsZero())
}

func TestAdjustDebt_CashPaymentClearsDebt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	customer := f.createCustomer(t, "Corner Shop")

	_, err := f.ledger.AdjustDebt(ctx, service.AdjustDebtInput{CustomerID: customer.ID, Amount: dec("100"), Reason: "opening balance"})
	require.NoError(t, err)
	f.dispatcher.Reset()

	result, err := f.ledger.AdjustDebt(ctx, service.AdjustDebtInput{
		CustomerID: customer.ID,
		Amount:     dec("-100"),
		Reason:     "  cash payment ",
		Timestamp:  at("2024-05-02T08:30:00+02:00"),
	})

	require.NoError(t, err)
	assert.True(t, result.NewTotalDebt.IsZero(), result.NewTotalDebt.String())
	assert.Equal(t, "cash payment", result.Reason)
	assert.Equal(t, "2024-05-02T06:30:00Z", result.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	assert.True(t, f.totalDebt(t, customer.ID).IsZero())

	require.Len(t, f.dispatcher.events, 1)
	event, ok := f.dispatcher.events[0].(model.DebtAdjusted)
	require.True(t, ok)
	assert.Equal(t, result.ID, event.AdjustmentID)

	adjustments, err := f.queries.GetCustomerDebtAdjustments(ctx, customer.ID, service.PageOptions{})
	require.NoError(t, err)
	assert.Len(t, adjustments, 2)
}

func TestAdjustDebt_Validation(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	_, err := f.ledger.AdjustDebt(context.Background(), service.AdjustDebtInput{CustomerID: customer.ID, Amount: dec("5"), Reason: "   "})

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "reason", validationErr.Field)
	_, increments := f.store.writes()
	assert.Zero(t, increments)
}

func TestAdjustDebt_UnknownCustomer(t *testing.T) {
	f := setup(t)

	_, err := f.ledger.AdjustDebt(context.Background(), service.AdjustDebtInput{CustomerID: uuid.New(), Amount: dec("5"), Reason: "x"})

	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
	puts, _ := f.store.writes()
	assert.Zero(t, puts)
}

func TestAdjustDebt_PartialWriteAndReconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	customer := f.createCustomer(t, "Corner Shop")
	f.store.setFailures(false, true)

	_, err := f.ledger.AdjustDebt(ctx, service.AdjustDebtInput{CustomerID: customer.ID, Amount: dec("-30"), Reason: "returned goods"})

	var partial *model.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, model.DebtAdjustmentEvent, partial.Kind)

	f.store.setFailures(false, false)
	reconciled, err := f.ledger.ReconcileDebtAdjustment(ctx, customer.ID, partial.EventID)
	require.NoError(t, err)
	assert.True(t, dec("-30").Equal(reconciled.TotalDebt))
}

func TestPlaceOrder_CancelAfterEventRecordStillAdjustsDebt(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.setCancelAfterPut(cancel)

	order, err := f.ledger.PlaceOrder(ctx, service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("1"), UnitPrice: decPtr("10")}},
	})

	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.True(t, dec("10").Equal(order.DebtChange))
	assert.True(t, dec("10").Equal(f.totalDebt(t, customer.ID)))
	puts, increments := f.store.writes()
	assert.Equal(t, 2, puts)
	assert.Equal(t, 1, increments)
}

func TestAdjustDebt_CancelledBeforeEventRecordWritesNothing(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.AdjustDebt(ctx, service.AdjustDebtInput{CustomerID: customer.ID, Amount: dec("5"), Reason: "opening balance"})

	require.ErrorIs(t, err, context.Canceled)
	var partial *model.PartialWriteError
	assert.False(t, errors.As(err, &partial))
	_, increments := f.store.writes()
	assert.Zero(t, increments)
	adjustments, err := f.queries.GetCustomerDebtAdjustments(context.Background(), customer.ID, service.PageOptions{})
	require.NoError(t, err)
	assert.Empty(t, adjustments)
}

func TestAdjustDebt_RejectsAmountsBeyondStoredPrecision(t *testing.T) {
	cases := []struct {
		name   string
		amount string
	}{
		{"too many decimal places", "0.00000000001"},
		{"fifth decimal place", "12.34567"},
		{"too large", "1000000000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			customer := f.createCustomer(t, "Corner Shop")

			_, err := f.ledger.AdjustDebt(context.Background(), service.AdjustDebtInput{
				CustomerID: customer.ID, Amount: dec(tc.amount), Reason: "correction",
			})

			var validationErr *model.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "amount", validationErr.Field)
			puts, increments := f.store.writes()
			assert.Equal(t, 1, puts)
			assert.Zero(t, increments)
		})
	}
}

func TestAdjustDebt_TrailingZerosAreWithinPrecision(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	result, err := f.ledger.AdjustDebt(context.Background(), service.AdjustDebtInput{
		CustomerID: customer.ID, Amount: dec("-12.3400000"), Reason: "cash payment",
	})

	require.NoError(t, err)
	assert.True(t, dec("-12.34").Equal(result.NewTotalDebt))
}

func TestPlaceOrder_LineTotalsAreRoundedToMoneyScale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	customer := f.createCustomer(t, "Corner Shop")
	// 3.3333 * (1 - 0.1234) = 2.92197078 before rounding.
	product := f.createProduct(t, "Spices", "3.3333", "12.34")

	order, err := f.ledger.PlaceOrder(ctx, service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: product.ID, Quantity: dec("1.333")}},
	})

	require.NoError(t, err)
	line := order.Items[0]
	assert.True(t, dec("2.922").Equal(line.UnitPrice), line.UnitPrice.String())
	assert.True(t, dec("3.8950").Equal(line.LineTotal), line.LineTotal.String())
	assert.LessOrEqual(t, -order.DebtChange.Exponent(), int32(model.MoneyScale))

	audit, err := f.ledger.AuditBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent())
}

func TestPlaceOrder_RejectsQuantityBeyondStoredPrecision(t *testing.T) {
	f := setup(t)
	customer := f.createCustomer(t, "Corner Shop")

	_, err := f.ledger.PlaceOrder(context.Background(), service.PlaceOrderInput{
		CustomerID: customer.ID,
		Items:      []service.OrderItemInput{{ProductID: uuid.New(), Quantity: dec("0.0001"), UnitPrice: decPtr("10")}},
	})

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "items[0].quantity", validationErr.Field)
}

func TestAuditBalance_DetectsDrift(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	customer := f.createCustomer(t, "Corner Shop")
	_, err := f.ledger.AdjustDebt(ctx, service.AdjustDebtInput{CustomerID: customer.ID, Amount: dec("12"), Reason: "opening balance"})
	require.NoError(t, err)

	// An aggregate change without an event record.
	_, err = f.customers.AdjustTotalDebt(ctx, customer.ID, dec("3"))
	require.NoError(t, err)

	audit, err := f.ledger.AuditBalance(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(audit.Recorded))
	assert.True(t, dec("12").Equal(audit.Computed))
	assert.True(t, dec("3").Equal(audit.Drift))
	assert.Equal(t, 0, audit.OrderCount)
	assert.Equal(t, 1, audit.AdjustmentCount)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
