// Package memory is an in-process ItemStore for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"distribution/pkg/domain/model"
)

type Store struct {
	mu    sync.RWMutex
	items map[model.Key]model.Item
}

func NewStore() *Store {
	return &Store{items: make(map[model.Key]model.Item)}
}

var _ model.ItemStore = (*Store)(nil)

func (s *Store) Put(_ context.Context, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Key] = clone(item)
	return nil
}

func (s *Store) Get(_ context.Context, key model.Key) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key]
	if !ok {
		return nil, model.ErrItemNotFound
	}
	c := clone(item)
	return &c, nil
}

func (s *Store) IncrementNumericField(_ context.Context, key model.Key, field string, delta decimal.Decimal, at time.Time) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, model.ErrItemNotFound
	}
	item = clone(item)
	if item.Numbers == nil {
		item.Numbers = make(map[string]decimal.Decimal)
	}
	item.Numbers[field] = item.Numbers[field].Add(delta)
	item.UpdatedAt = at.UTC()
	s.items[key] = item

	c := clone(item)
	return &c, nil
}

func (s *Store) ReplaceBody(_ context.Context, key model.Key, name string, body []byte, expected, at time.Time) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, model.ErrItemNotFound
	}
	if !item.UpdatedAt.Equal(expected) {
		return nil, model.ErrItemConflict
	}
	item = clone(item)
	item.Name = name
	item.Body = append([]byte(nil), body...)
	item.UpdatedAt = at.UTC()
	s.items[key] = item

	c := clone(item)
	return &c, nil
}

func (s *Store) QueryByPrefix(_ context.Context, pk, skPrefix string, limit int, newestFirst bool) ([]model.Item, error) {
	s.mu.RLock()
	var result []model.Item
	for key, item := range s.items {
		if key.PK == pk && strings.HasPrefix(key.SK, skPrefix) {
			result = append(result, clone(item))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if newestFirst {
			return result[i].SK > result[j].SK
		}
		return result[i].SK < result[j].SK
	})
	return truncate(result, limit), nil
}

func (s *Store) QueryByCategory(_ context.Context, category string, limit int) ([]model.Item, error) {
	s.mu.RLock()
	var result []model.Item
	for _, item := range s.items {
		if item.Category == category {
			result = append(result, clone(item))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].PK < result[j].PK
	})
	return truncate(result, limit), nil
}

func truncate(items []model.Item, limit int) []model.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func clone(item model.Item) model.Item {
	c := item
	if item.Numbers != nil {
		c.Numbers = make(map[string]decimal.Decimal, len(item.Numbers))
		for k, v := range item.Numbers {
			c.Numbers[k] = v
		}
	}
	c.Body = append([]byte(nil), item.Body...)
	return c
}
