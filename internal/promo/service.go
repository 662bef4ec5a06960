package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/redis"
)

// Service validates promo codes, computes their discounts, and tracks
// which code a cart has applied.
type Service interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*models.PromoCode, error)
	Apply(ctx context.Context, cartID string, code string, cartTotal decimal.Decimal) (*models.PromoCode, error)
	Remove(ctx context.Context, cartID string) error
	Applied(ctx context.Context, cartID string) (string, error)
}

type service struct {
	repo     PromoRepository
	sessions redis.PromoSessionStore
	now      func() time.Time
}

// NewService builds a promo service with the required dependencies.
func NewService(repo PromoRepository, sessions redis.PromoSessionStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("promo session store required")
	}
	return &service{repo: repo, sessions: sessions, now: time.Now}, nil
}

// Validate checks the code against every redemption rule in a fixed order,
// so callers always see the most fundamental failure first.
func (s *service) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*models.PromoCode, error) {
	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid promo code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up promo code")
	}

	now := s.now()
	switch {
	case !promo.IsActive:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "this promo code is no longer active")
	case now.Before(promo.ValidFrom):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "this promo code is not valid yet")
	case promo.ValidUntil != nil && now.After(*promo.ValidUntil):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "this promo code has expired")
	case promo.MaxUsage != nil && promo.UsedCount >= *promo.MaxUsage:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "this promo code has reached its usage limit")
	case cartTotal.LessThan(promo.MinPurchase):
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum purchase of %s required for this promo code", promo.MinPurchase.StringFixed(2)))
	}
	return promo, nil
}

// CalculateDiscount returns the discount a promo grants on the given amount,
// rounded to two decimal places. Percentage discounts are capped by
// MaxDiscount when set; flat discounts never exceed the amount itself.
func CalculateDiscount(promo *models.PromoCode, amount decimal.Decimal) decimal.Decimal {
	if promo == nil || amount.Sign() <= 0 {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case enums.DiscountTypePercentage:
		discount = amount.Mul(promo.DiscountValue).Div(decimal.NewFromInt(100))
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
	case enums.DiscountTypeFlat:
		discount = promo.DiscountValue
		if discount.GreaterThan(amount) {
			discount = amount
		}
	default:
		return decimal.Zero
	}
	return discount.Round(2)
}

// Apply validates the code and pins it to the cart session.
func (s *service) Apply(ctx context.Context, cartID string, code string, cartTotal decimal.Decimal) (*models.PromoCode, error) {
	promo, err := s.Validate(ctx, code, cartTotal)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.StoreAppliedPromo(ctx, cartID, promo.Code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing applied promo")
	}
	return promo, nil
}

// Remove drops the cart's applied code if any.
func (s *service) Remove(ctx context.Context, cartID string) error {
	if err := s.sessions.ClearAppliedPromo(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing applied promo")
	}
	return nil
}

// Applied returns the code currently pinned to the cart, or empty when none.
func (s *service) Applied(ctx context.Context, cartID string) (string, error) {
	code, err := s.sessions.GetAppliedPromo(ctx, cartID)
	if err != nil {
		if redis.IsNil(err) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading applied promo")
	}
	return code, nil
}
