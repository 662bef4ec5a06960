package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/superbazaar/storefront-api/api/middleware"
	"github.com/superbazaar/storefront-api/api/responses"
	"github.com/superbazaar/storefront-api/api/validators"
	"github.com/superbazaar/storefront-api/internal/cart"
	"github.com/superbazaar/storefront-api/internal/promo"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

// CartFetch returns the caller's cart, creating it on first touch.
func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(loaded))
	}
}

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
}

// CartAddItem merges quantity into an existing line or creates one.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := svc.AddItem(r.Context(), owner, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(loaded))
	}
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

// CartUpdateItem sets a line's quantity; zero removes the line.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := svc.SetItemQuantity(r.Context(), owner, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(loaded))
	}
}

// CartRemoveItem drops a line entirely.
func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := svc.RemoveItem(r.Context(), owner, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(loaded))
	}
}

// CartClear empties the cart.
func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		if err := svc.Clear(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type promoApplyRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

type promoApplyResponse struct {
	Code     string `json:"code"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

// PromoApply validates a code against the current cart and remembers it for
// checkout.
func PromoApply(cartSvc cart.Service, promoSvc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload promoApplyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := cartSvc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(loaded.Items) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}

		subtotal := loaded.TotalPrice()
		code, err := promoSvc.Apply(r.Context(), loaded.ID.String(), strings.TrimSpace(payload.Code), subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount := promo.CalculateDiscount(code, subtotal)
		responses.WriteSuccess(w, promoApplyResponse{
			Code:     code.Code,
			Discount: discount.StringFixed(2),
			Total:    subtotal.Sub(discount).StringFixed(2),
		})
	}
}

// PromoRemove forgets the applied code.
func PromoRemove(cartSvc cart.Service, promoSvc promo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		loaded, err := cartSvc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := promoSvc.Remove(r.Context(), loaded.ID.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
