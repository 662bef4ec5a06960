package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/superbazaar/storefront-api/api/middleware"
	cartsvc "github.com/superbazaar/storefront-api/internal/cart"
	"github.com/superbazaar/storefront-api/internal/promo"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

type stubCartService struct {
	cart    *models.Cart
	err     error
	addErr  error
	lastQty int
}

func (s *stubCartService) Get(ctx context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, owner cartsvc.Owner, productID uuid.UUID, quantity int) (*models.Cart, error) {
	s.lastQty = quantity
	if s.addErr != nil {
		return nil, s.addErr
	}
	return s.cart, nil
}

func (s *stubCartService) SetItemQuantity(ctx context.Context, owner cartsvc.Owner, productID uuid.UUID, quantity int) (*models.Cart, error) {
	s.lastQty = quantity
	return s.cart, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, owner cartsvc.Owner, productID uuid.UUID) (*models.Cart, error) {
	return s.cart, nil
}

func (s *stubCartService) Clear(ctx context.Context, owner cartsvc.Owner) error {
	return s.err
}

type stubPromoService struct {
	code     *models.PromoCode
	err      error
	lastCart string
}

func (s *stubPromoService) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*models.PromoCode, error) {
	return s.code, s.err
}

func (s *stubPromoService) Apply(ctx context.Context, cartID string, code string, cartTotal decimal.Decimal) (*models.PromoCode, error) {
	s.lastCart = cartID
	return s.code, s.err
}

func (s *stubPromoService) Remove(ctx context.Context, cartID string) error {
	s.lastCart = cartID
	return s.err
}

func (s *stubPromoService) Applied(ctx context.Context, cartID string) (string, error) {
	return "", nil
}

func guestContext(r *http.Request, sessionKey string) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), middleware.Identity{SessionKey: sessionKey}))
}

func cartWithItems() *models.Cart {
	price := decimal.NewFromInt(50)
	return &models.Cart{
		ID: uuid.New(),
		Items: []models.CartItem{
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Product:   models.Product{Name: "Basmati Rice 5kg", Price: decimal.NewFromInt(100), Stock: 10, Available: true},
				Quantity:  2,
			},
			{
				ID:        uuid.New(),
				ProductID: uuid.New(),
				Product:   models.Product{Name: "Sunflower Oil 1L", Price: decimal.NewFromInt(60), DiscountPrice: &price, Stock: 5, Available: true},
				Quantity:  1,
			},
		},
	}
}

func TestCartFetchReturnsItemsAndTotals(t *testing.T) {
	svc := &stubCartService{cart: cartWithItems()}
	handler := CartFetch(svc, nil)

	req := guestContext(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(envelope.Data.Items))
	}
	if envelope.Data.Total != "250.00" {
		t.Fatalf("expected total 250.00 got %s", envelope.Data.Total)
	}
	if envelope.Data.ItemCount != 3 {
		t.Fatalf("expected item count 3 got %d", envelope.Data.ItemCount)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	svc := &stubCartService{cart: cartWithItems()}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	req := guestContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.lastQty != 0 {
		t.Fatalf("service should not be called on invalid payload")
	}
}

func TestCartAddItemMapsStockError(t *testing.T) {
	svc := &stubCartService{addErr: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":3}`
	req := guestContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestPromoApplyRejectsEmptyCart(t *testing.T) {
	cartStub := &stubCartService{cart: &models.Cart{ID: uuid.New()}}
	promoStub := &stubPromoService{}
	handler := PromoApply(cartStub, promoStub, nil)

	req := guestContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/promo", strings.NewReader(`{"code":"SAVE10"}`)), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if promoStub.lastCart != "" {
		t.Fatalf("promo service should not run against an empty cart")
	}
}

func TestPromoApplyReturnsDiscountedTotal(t *testing.T) {
	loaded := cartWithItems()
	promoStub := &stubPromoService{
		code: &models.PromoCode{
			Code:          "FLAT40",
			DiscountType:  enums.DiscountTypeFlat,
			DiscountValue: decimal.NewFromInt(40),
		},
	}
	handler := PromoApply(&stubCartService{cart: loaded}, promoStub, nil)

	req := guestContext(httptest.NewRequest(http.MethodPost, "/api/v1/cart/promo", strings.NewReader(`{"code":"flat40"}`)), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if promoStub.lastCart != loaded.ID.String() {
		t.Fatalf("expected promo scoped to cart %s got %s", loaded.ID, promoStub.lastCart)
	}

	var envelope struct {
		Data promoApplyResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Discount != "40.00" {
		t.Fatalf("expected discount 40.00 got %s", envelope.Data.Discount)
	}
	if envelope.Data.Total != "210.00" {
		t.Fatalf("expected total 210.00 got %s", envelope.Data.Total)
	}
}

var _ promo.Service = (*stubPromoService)(nil)
