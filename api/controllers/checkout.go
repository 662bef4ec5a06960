package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/superbazaar/storefront-api/api/middleware"
	"github.com/superbazaar/storefront-api/api/responses"
	"github.com/superbazaar/storefront-api/api/validators"
	"github.com/superbazaar/storefront-api/internal/address"
	"github.com/superbazaar/storefront-api/internal/checkout"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

type checkoutAddressRequest struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country,omitempty" validate:"max=100"`
}

type checkoutRequest struct {
	PaymentMethod     string                  `json:"payment_method" validate:"required,oneof=cod stripe paypal"`
	ShippingMethodID  *uuid.UUID              `json:"shipping_method_id,omitempty"`
	ShippingAddressID *uuid.UUID              `json:"shipping_address_id,omitempty"`
	ShippingAddress   *checkoutAddressRequest `json:"shipping_address,omitempty"`
	CustomerNote      string                  `json:"customer_note,omitempty" validate:"max=1000"`
	ContactEmail      string                  `json:"contact_email,omitempty" validate:"omitempty,email"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		input := checkout.Input{
			PaymentMethod:     method,
			ShippingMethodID:  payload.ShippingMethodID,
			ShippingAddressID: payload.ShippingAddressID,
			CustomerNote:      validators.SanitizeString(payload.CustomerNote, 1000),
			ContactEmail:      strings.TrimSpace(payload.ContactEmail),
			IPAddress:         requestIP(r),
		}
		if payload.ShippingAddress != nil {
			input.NewAddress = &address.Input{
				Type:       enums.AddressTypeShipping,
				FullName:   payload.ShippingAddress.FullName,
				Phone:      payload.ShippingAddress.Phone,
				Line1:      payload.ShippingAddress.Line1,
				Line2:      payload.ShippingAddress.Line2,
				City:       payload.ShippingAddress.City,
				State:      payload.ShippingAddress.State,
				PostalCode: payload.ShippingAddress.PostalCode,
				Country:    payload.ShippingAddress.Country,
			}
		}

		owner := middleware.IdentityFromContext(r.Context()).CartOwner()
		order, err := svc.Execute(r.Context(), owner, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}

func requestIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
