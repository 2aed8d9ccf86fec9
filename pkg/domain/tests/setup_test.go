package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"distribution/pkg/domain/model"
	"distribution/pkg/domain/service"
	"distribution/pkg/infrastructure/store/memory"
)

// --- Setup ---

type fixture struct {
	store      *mockItemStore
	dispatcher *mockEventDispatcher
	logs       *test.Hook

	customers service.CustomerService
	products  service.ProductService
	queries   service.QueryService
	ledger    service.LedgerService
}

func setup(t *testing.T) *fixture {
	return setupWithConfig(t, service.QueryConfig{})
}

func setupWithConfig(t *testing.T, config service.QueryConfig) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	store := newMockItemStore()
	dispatcher := &mockEventDispatcher{}

	customers := service.NewCustomerService(store, dispatcher, logger)
	products := service.NewProductService(store, dispatcher, logger)
	queries := service.NewQueryService(store, customers, config)
	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		logs:       hook,
		customers:  customers,
		products:   products,
		queries:    queries,
		ledger:     service.NewLedgerService(store, customers, products, queries, dispatcher, logger),
	}
}

func (f *fixture) createCustomer(t *testing.T, name string) *model.Customer {
	t.Helper()
	customer, err := f.customers.CreateCustomer(context.Background(), service.CreateCustomerInput{
		Name:     name,
		Location: "Market Street 1",
		Phone:    "555-0100",
	})
	require.NoError(t, err)
	return customer
}

func (f *fixture) createProduct(t *testing.T, name, sellingPrice, discount string) *model.Product {
	t.Helper()
	d := dec(discount)
	product, err := f.products.CreateProduct(context.Background(), service.CreateProductInput{
		Name:             name,
		BaseBuyingPrice:  model.RoundMoney(dec(sellingPrice).Mul(dec("0.8"))),
		BaseSellingPrice: dec(sellingPrice),
		DiscountPercent:  &d,
	})
	require.NoError(t, err)
	return product
}

func (f *fixture) totalDebt(t *testing.T, customerID uuid.UUID) decimal.Decimal {
	t.Helper()
	item, err := f.store.Get(context.Background(), model.CustomerKey(customerID))
	require.NoError(t, err)
	return item.Numbers[model.TotalDebtField]
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// --- Mocks ---

var errInjected = errors.New("injected failure")

// mockItemStore wraps the in-memory store with write counting and failure injection.
type mockItemStore struct {
	*memory.Store

	mu         sync.Mutex
	puts       int
	increments int
	failPut    bool
	failIncr   bool
	// cancelAfterPut simulates a shutdown signal landing right after a successful Put.
	cancelAfterPut context.CancelFunc
	// beforeReplace runs once ahead of the next ReplaceBody, outside the store lock.
	beforeReplace func()
}

func newMockItemStore() *mockItemStore {
	return &mockItemStore{Store: memory.NewStore()}
}

func (m *mockItemStore) Put(ctx context.Context, item model.Item) error {
	m.mu.Lock()
	fail := m.failPut
	if !fail {
		m.puts++
	}
	m.mu.Unlock()
	if fail {
		return &model.StoreError{Op: "put", Err: errInjected}
	}
	if err := ctx.Err(); err != nil {
		return &model.StoreError{Op: "put", Err: err}
	}
	if err := m.Store.Put(ctx, item); err != nil {
		return err
	}
	m.mu.Lock()
	cancel := m.cancelAfterPut
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (m *mockItemStore) IncrementNumericField(ctx context.Context, key model.Key, field string, delta decimal.Decimal, at time.Time) (*model.Item, error) {
	m.mu.Lock()
	fail := m.failIncr
	if !fail {
		m.increments++
	}
	m.mu.Unlock()
	if fail {
		return nil, &model.StoreError{Op: "increment", Err: errInjected}
	}
	// Real drivers refuse to start a call on a done context.
	if err := ctx.Err(); err != nil {
		return nil, &model.StoreError{Op: "increment", Err: err}
	}
	return m.Store.IncrementNumericField(ctx, key, field, delta, at)
}

func (m *mockItemStore) ReplaceBody(ctx context.Context, key model.Key, name string, body []byte, expected, at time.Time) (*model.Item, error) {
	m.mu.Lock()
	hook := m.beforeReplace
	m.beforeReplace = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return m.Store.ReplaceBody(ctx, key, name, body, expected, at)
}

func (m *mockItemStore) writes() (puts, increments int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts, m.increments
}

func (m *mockItemStore) setCancelAfterPut(cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelAfterPut = cancel
}

func (m *mockItemStore) setBeforeReplace(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeReplace = hook
}

func (m *mockItemStore) setFailures(put, increment bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = put
	m.failIncr = increment
}

type mockEventDispatcher struct {
	mu     sync.Mutex
	events []service.Event
}

func (m *mockEventDispatcher) Dispatch(_ context.Context, event service.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
