package controllers

import (
	"net/http"

	"github.com/superbazaar/storefront-api/api/middleware"
	"github.com/superbazaar/storefront-api/api/responses"
	"github.com/superbazaar/storefront-api/api/validators"
	"github.com/superbazaar/storefront-api/internal/address"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

type addressRequest struct {
	Type       string `json:"type" validate:"required,oneof=shipping billing"`
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=20"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country,omitempty" validate:"max=100"`
	IsDefault  bool   `json:"is_default,omitempty"`
}

func (req addressRequest) toInput() (address.Input, error) {
	addrType, err := enums.ParseAddressType(req.Type)
	if err != nil {
		return address.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown address type")
	}
	return address.Input{
		Type:       addrType,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}, nil
}

// AddressList returns the user's address book.
func AddressList(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		list, err := svc.List(r.Context(), *identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]addressView, 0, len(list))
		for i := range list {
			views = append(views, newAddressView(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"addresses": views})
	}
}

// AddressCreate adds an address, optionally promoting it to default.
func AddressCreate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		created, err := svc.Create(r.Context(), *identity.UserID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressView(created))
	}
}

// AddressUpdate rewrites an address the user owns.
func AddressUpdate(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		updated, err := svc.Update(r.Context(), *identity.UserID, addressID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAddressView(updated))
	}
}

// AddressDelete removes an address the user owns.
func AddressDelete(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if err := svc.Delete(r.Context(), *identity.UserID, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// AddressSetDefault promotes an address and demotes its siblings.
func AddressSetDefault(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.URLParamUUID(r, "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		updated, err := svc.SetDefault(r.Context(), *identity.UserID, addressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAddressView(updated))
	}
}
