package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"distribution/pkg/domain/model"
)

type QueryConfig struct {
	// DefaultLimit applies when PageOptions.Limit is not set. Defaults to 50.
	DefaultLimit int
	// LookupScanLimit bounds GetOrder and GetDebtAdjustment. Defaults to 1000.
	LookupScanLimit int
}

type QueryService interface {
	// GetCustomerOrders returns the newest orders first.
	GetCustomerOrders(ctx context.Context, customerID uuid.UUID, page PageOptions) ([]*model.Order, error)
	GetCustomerDebtAdjustments(ctx context.Context, customerID uuid.UUID, page PageOptions) ([]*model.DebtAdjustment, error)
	// GetOrder is a bounded linear scan of the customer's newest orders, not
	// an indexed lookup. An order beyond the scan bound reports ErrOrderNotFound.
	GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Order, error)
	GetDebtAdjustment(ctx context.Context, customerID, adjustmentID uuid.UUID) (*model.DebtAdjustment, error)
	GetCustomerDetail(ctx context.Context, customerID uuid.UUID) (*model.CustomerDetail, error)
}

func NewQueryService(store model.ItemStore, customers CustomerService, config QueryConfig) QueryService {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultPageLimit
	}
	if config.LookupScanLimit <= 0 {
		config.LookupScanLimit = DefaultLookupScanLimit
	}
	return &queryService{store: store, customers: customers, config: config}
}

type queryService struct {
	store     model.ItemStore
	customers CustomerService
	config    QueryConfig
}

func (s *queryService) GetCustomerOrders(ctx context.Context, customerID uuid.UUID, page PageOptions) ([]*model.Order, error) {
	return s.orders(ctx, customerID, page.limit(s.config.DefaultLimit))
}

func (s *queryService) GetCustomerDebtAdjustments(ctx context.Context, customerID uuid.UUID, page PageOptions) ([]*model.DebtAdjustment, error) {
	return s.debtAdjustments(ctx, customerID, page.limit(s.config.DefaultLimit))
}

func (s *queryService) GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*model.Order, error) {
	orders, err := s.orders(ctx, customerID, s.config.LookupScanLimit)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (s *queryService) GetDebtAdjustment(ctx context.Context, customerID, adjustmentID uuid.UUID) (*model.DebtAdjustment, error) {
	adjustments, err := s.debtAdjustments(ctx, customerID, s.config.LookupScanLimit)
	if err != nil {
		return nil, err
	}
	for _, adjustment := range adjustments {
		if adjustment.ID == adjustmentID {
			return adjustment, nil
		}
	}
	return nil, model.ErrDebtNotFound
}

func (s *queryService) GetCustomerDetail(ctx context.Context, customerID uuid.UUID) (*model.CustomerDetail, error) {
	var (
		customer *model.Customer
		orders   []*model.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customer, err = s.customers.GetCustomer(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = s.orders(gctx, customerID, RecentOrdersLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail := &model.CustomerDetail{Customer: customer, RecentOrders: make([]model.OrderSummary, 0, len(orders))}
	for _, order := range orders {
		detail.RecentOrders = append(detail.RecentOrders, order.Summary())
	}
	return detail, nil
}

func (s *queryService) orders(ctx context.Context, customerID uuid.UUID, limit int) ([]*model.Order, error) {
	items, err := s.store.QueryByPrefix(ctx, model.CustomerPartition(customerID), model.OrderSortKeyPrefix, limit, true)
	if err != nil {
		return nil, errors.Wrapf(err, "query orders of customer %s", customerID)
	}
	orders := make([]*model.Order, 0, len(items))
	for _, item := range items {
		order, err := model.OrderFromItem(item)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *queryService) debtAdjustments(ctx context.Context, customerID uuid.UUID, limit int) ([]*model.DebtAdjustment, error) {
	items, err := s.store.QueryByPrefix(ctx, model.CustomerPartition(customerID), model.DebtSortKeyPrefix, limit, true)
	if err != nil {
		return nil, errors.Wrapf(err, "query debt adjustments of customer %s", customerID)
	}
	adjustments := make([]*model.DebtAdjustment, 0, len(items))
	for _, item := range items {
		adjustment, err := model.DebtAdjustmentFromItem(item)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, nil
}
