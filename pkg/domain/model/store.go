package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound = errors.New("item not found")
	// ErrItemConflict reports that a conditional write found the item changed since it was read.
	ErrItemConflict = errors.New("item changed concurrently")
)

// Category tags, indexed together with Name by the secondary index.
const (
	CategoryCustomer       = "CUSTOMER"
	CategoryProduct        = "PRODUCT"
	CategoryOrder          = "ORDER"
	CategoryDebtAdjustment = "DEBT_ADJUSTMENT"
)

const (
	MetaSortKey          = "META"
	OrderSortKeyPrefix   = "ORDER#"
	DebtSortKeyPrefix    = "DEBT#"
	TotalDebtField       = "totalDebt"
	customerPartitionTag = "CUSTOMER#"
	productPartitionTag  = "PRODUCT#"

	// Fixed width so that lexical sort-key order is chronological order.
	sortKeyTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

type Key struct {
	PK string
	SK string
}

// Item is one record of the keyed store. Numbers holds the fields that can be
// incremented atomically; Body holds the rest of the record as a JSON document.
type Item struct {
	Key
	Category  string
	Name      string
	Numbers   map[string]decimal.Decimal
	Body      []byte
	UpdatedAt time.Time
}

// ItemStore guarantees per-item atomicity only. There are no cross-item transactions.
type ItemStore interface {
	// Put is an unconditional upsert of the whole item.
	Put(ctx context.Context, item Item) error
	// Get returns ErrItemNotFound when the key is absent.
	Get(ctx context.Context, key Key) (*Item, error)
	// IncrementNumericField atomically adds delta to field of an existing item,
	// stamps UpdatedAt and returns the post-update item. It returns
	// ErrItemNotFound when the item does not exist.
	IncrementNumericField(ctx context.Context, key Key, field string, delta decimal.Decimal, at time.Time) (*Item, error)
	// ReplaceBody swaps Name and Body of an existing item and stamps UpdatedAt,
	// leaving Numbers untouched so that it never races with increments. The
	// write only happens while the stored UpdatedAt still equals expected, the
	// value the caller read; otherwise it returns ErrItemConflict. It returns
	// ErrItemNotFound when the item does not exist.
	ReplaceBody(ctx context.Context, key Key, name string, body []byte, expected, at time.Time) (*Item, error)
	// QueryByPrefix scans one partition in sort-key order. limit <= 0 means no limit.
	QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int, newestFirst bool) ([]Item, error)
	// QueryByCategory scans the secondary index ordered by Name. limit <= 0 means no limit.
	QueryByCategory(ctx context.Context, category string, limit int) ([]Item, error)
}

// StoreError wraps a backend or transport failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func CustomerPartition(id uuid.UUID) string { return customerPartitionTag + id.String() }

func CustomerKey(id uuid.UUID) Key { return Key{PK: CustomerPartition(id), SK: MetaSortKey} }

func ProductKey(id uuid.UUID) Key { return Key{PK: productPartitionTag + id.String(), SK: MetaSortKey} }

// The id suffix keeps two events recorded at the same instant apart.
func OrderKey(customerID uuid.UUID, at time.Time, orderID uuid.UUID) Key {
	return Key{PK: CustomerPartition(customerID), SK: OrderSortKeyPrefix + sortKeyTime(at) + "#" + orderID.String()}
}

func DebtKey(customerID uuid.UUID, at time.Time, adjustmentID uuid.UUID) Key {
	return Key{PK: CustomerPartition(customerID), SK: DebtSortKeyPrefix + sortKeyTime(at) + "#" + adjustmentID.String()}
}

func sortKeyTime(t time.Time) string { return t.UTC().Format(sortKeyTimeLayout) }

func newItem(key Key, category, name string, doc any, numbers map[string]decimal.Decimal, updatedAt time.Time) (Item, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Item{}, errors.Wrapf(err, "encode %s", category)
	}
	return Item{
		Key:       key,
		Category:  category,
		Name:      name,
		Numbers:   numbers,
		Body:      body,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

func decodeBody(item Item, category string, doc any) error {
	if item.Category != category {
		return errors.Errorf("item %s/%s is a %s, not a %s", item.PK, item.SK, item.Category, category)
	}
	return errors.Wrapf(json.Unmarshal(item.Body, doc), "decode %s %s/%s", category, item.PK, item.SK)
}
