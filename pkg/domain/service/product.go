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

type CreateProductInput struct {
	Name             string          `json:"name" validate:"required"`
	BaseBuyingPrice  decimal.Decimal `json:"baseBuyingPrice" validate:"nonneg,money"`
	BaseSellingPrice decimal.Decimal `json:"baseSellingPrice" validate:"nonneg,money"`
	// DiscountPercent defaults to 0 when nil.
	DiscountPercent *decimal.Decimal `json:"discountPercent" validate:"omitempty,percent"`
	ImageKey        *string          `json:"imageKey"`
	// IsActive defaults to true when nil.
	IsActive *bool `json:"isActive"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// UpdateProduct applies only the supplied fields. An empty update is a plain get.
	UpdateProduct(ctx context.Context, id uuid.UUID, update model.ProductUpdate) (*model.Product, error)
	ListProducts(ctx context.Context, opts ListOptions) ([]*model.Product, error)
}

func NewProductService(store model.ItemStore, dispatcher EventDispatcher, logger log.FieldLogger) ProductService {
	return &productService{store: store, dispatcher: dispatcher, logger: logger}
}

type productService struct {
	store      model.ItemStore
	dispatcher EventDispatcher
	logger     log.FieldLogger
}

func (s *productService) CreateProduct(ctx context.Context, input CreateProductInput) (*model.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	productID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	if input.DiscountPercent != nil {
		discount = *input.DiscountPercent
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := time.Now().UTC()
	product := &model.Product{
		ID:               productID,
		Name:             input.Name,
		BaseBuyingPrice:  input.BaseBuyingPrice,
		BaseSellingPrice: input.BaseSellingPrice,
		DiscountPercent:  discount,
		ImageKey:         input.ImageKey,
		IsActive:         isActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.save(ctx, product); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	dispatchEvents(ctx, s.dispatcher, s.logger, model.ProductCreated{ProductID: productID, Name: product.Name})
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	item, err := s.store.Get(ctx, model.ProductKey(id))
	if errors.Is(err, model.ErrItemNotFound) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return model.ProductFromItem(*item)
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, update model.ProductUpdate) (*model.Product, error) {
	if err := validateInput(update); err != nil {
		return nil, err
	}

	var (
		old, product *model.Product
		changed      bool
	)
	err := retryOnConflict(func() error {
		current, err := s.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		old, product = current, current

		next := *current
		if changed = next.Apply(update); !changed {
			return nil
		}
		body, err := model.ProductBody(&next)
		if err != nil {
			return err
		}
		// Conditional on the version read, so a concurrent update of other fields is never overwritten.
		item, err := s.store.ReplaceBody(ctx, model.ProductKey(id), next.Name, body, current.UpdatedAt, nextStamp(current.UpdatedAt))
		if errors.Is(err, model.ErrItemNotFound) {
			return model.ErrProductNotFound
		}
		if err != nil {
			return err
		}
		product, err = model.ProductFromItem(*item)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	if !changed {
		return product, nil
	}

	dispatchEvents(ctx, s.dispatcher, s.logger, model.ProductUpdated{
		ProductID:       id,
		OldSellingPrice: old.BaseSellingPrice,
		NewSellingPrice: product.BaseSellingPrice,
		OldDiscount:     old.DiscountPercent,
		NewDiscount:     product.DiscountPercent,
		IsActive:        product.IsActive,
	})
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, opts ListOptions) ([]*model.Product, error) {
	items, err := s.store.QueryByCategory(ctx, model.CategoryProduct, 0)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	search := strings.ToLower(opts.Search)
	products := make([]*model.Product, 0, len(items))
	for _, item := range items {
		product, err := model.ProductFromItem(item)
		if err != nil {
			return nil, err
		}
		if !product.IsActive && !opts.IncludeInactive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(product.Name), search) {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

func (s *productService) save(ctx context.Context, product *model.Product) error {
	item, err := model.ProductToItem(product)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, item)
}
