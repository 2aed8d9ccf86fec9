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

type CreateCustomerInput struct {
	Name     string  `json:"name" validate:"required"`
	Location string  `json:"location" validate:"required"`
	Phone    string  `json:"phone" validate:"required"`
	Email    *string `json:"email"`
	Notes    *string `json:"notes"`
	// IsActive defaults to true when nil.
	IsActive *bool `json:"isActive"`
}

type CustomerService interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*model.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	// AdjustTotalDebt is the only sanctioned way to change totalDebt.
	AdjustTotalDebt(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*model.Customer, error)
	// SetCustomerActive soft-deletes or restores a customer. totalDebt is kept.
	SetCustomerActive(ctx context.Context, id uuid.UUID, active bool) (*model.Customer, error)
	// ListCustomers scans the whole customer category and filters in memory.
	ListCustomers(ctx context.Context, opts ListOptions) ([]*model.Customer, error)
}

func NewCustomerService(store model.ItemStore, dispatcher EventDispatcher, logger log.FieldLogger) CustomerService {
	return &customerService{store: store, dispatcher: dispatcher, logger: logger}
}

type customerService struct {
	store      model.ItemStore
	dispatcher EventDispatcher
	logger     log.FieldLogger
}

func (s *customerService) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*model.Customer, error) {
	input.Email = nonEmpty(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	customerID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := time.Now().UTC()
	customer := &model.Customer{
		ID:        customerID,
		Name:      input.Name,
		Location:  input.Location,
		Phone:     input.Phone,
		Email:     input.Email,
		Notes:     input.Notes,
		IsActive:  isActive,
		TotalDebt: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item, err := model.CustomerToItem(customer)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, item); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}

	dispatchEvents(ctx, s.dispatcher, s.logger, model.CustomerCreated{CustomerID: customerID, Name: customer.Name})
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	item, err := s.store.Get(ctx, model.CustomerKey(id))
	if errors.Is(err, model.ErrItemNotFound) {
		return nil, model.ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %s", id)
	}
	return model.CustomerFromItem(*item)
}

func (s *customerService) AdjustTotalDebt(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*model.Customer, error) {
	item, err := s.store.IncrementNumericField(ctx, model.CustomerKey(id), model.TotalDebtField, delta, time.Now().UTC())
	if errors.Is(err, model.ErrItemNotFound) {
		return nil, model.ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "adjust totalDebt of customer %s", id)
	}
	return model.CustomerFromItem(*item)
}

func (s *customerService) SetCustomerActive(ctx context.Context, id uuid.UUID, active bool) (*model.Customer, error) {
	var (
		customer *model.Customer
		changed  bool
	)
	err := retryOnConflict(func() error {
		current, err := s.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		customer = current
		if changed = current.IsActive != active; !changed {
			return nil
		}

		next := *current
		next.IsActive = active
		body, err := model.CustomerBody(&next)
		if err != nil {
			return err
		}
		// An increment in between moves updatedAt and forces a fresh read.
		item, err := s.store.ReplaceBody(ctx, model.CustomerKey(id), next.Name, body, current.UpdatedAt, nextStamp(current.UpdatedAt))
		if errors.Is(err, model.ErrItemNotFound) {
			return model.ErrCustomerNotFound
		}
		if err != nil {
			return err
		}
		customer, err = model.CustomerFromItem(*item)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "set activity of customer %s", id)
	}
	if changed {
		dispatchEvents(ctx, s.dispatcher, s.logger, model.CustomerActivityChanged{CustomerID: id, IsActive: active})
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, opts ListOptions) ([]*model.Customer, error) {
	items, err := s.store.QueryByCategory(ctx, model.CategoryCustomer, 0)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}

	search := strings.ToLower(opts.Search)
	customers := make([]*model.Customer, 0, len(items))
	for _, item := range items {
		customer, err := model.CustomerFromItem(item)
		if err != nil {
			return nil, err
		}
		if !customer.IsActive && !opts.IncludeInactive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(customer.Name), search) {
			continue
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
