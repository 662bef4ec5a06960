package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

// MaxQuantityPerLine bounds how many units of one product a cart may hold.
const MaxQuantityPerLine = 99

// Service exposes cart mutations and reads.
type Service interface {
	Get(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*models.Cart, error)
	SetItemQuantity(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, owner Owner) error
}

type service struct {
	repo     CartRepository
	products products.ProductRepository
}

// NewService builds a cart service with the required dependencies.
func NewService(repo CartRepository, productRepo products.ProductRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, products: productRepo}, nil
}

// Get returns the owner's cart, creating an empty one on first touch.
func (s *service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner identity required")
	}
	cart, err := s.repo.FindOrCreate(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	return cart, nil
}

// AddItem adds quantity units of the product, merging with any existing
// line for the same product.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	product, err := s.loadPurchasable(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		item.Quantity += quantity
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}

	if item.Quantity > MaxQuantityPerLine {
		item.Quantity = MaxQuantityPerLine
	}
	if item.Quantity > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID.String(), "available": product.Stock})
	}
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving cart item")
	}
	return s.reload(ctx, cart.ID)
}

// SetItemQuantity pins the line to an exact quantity. Zero removes the line.
func (s *service) SetItemQuantity(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
		}
		return s.reload(ctx, cart.ID)
	}

	product, err := s.loadPurchasable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > MaxQuantityPerLine {
		quantity = MaxQuantityPerLine
	}
	if quantity > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID.String(), "available": product.Stock})
	}

	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		item.Quantity = quantity
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}

	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving cart item")
	}
	return s.reload(ctx, cart.ID)
}

// RemoveItem drops the product's line entirely.
func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return s.reload(ctx, cart.ID)
}

// Clear empties the cart.
func (s *service) Clear(ctx context.Context, owner Owner) error {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart")
	}
	return nil
}

func (s *service) loadPurchasable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if !product.Available {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading cart")
	}
	return cart, nil
}
