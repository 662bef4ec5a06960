package controllers

import (
	"net/http"
	"strings"

	"github.com/superbazaar/storefront-api/api/middleware"
	"github.com/superbazaar/storefront-api/api/responses"
	"github.com/superbazaar/storefront-api/api/validators"
	"github.com/superbazaar/storefront-api/internal/delivery"
	"github.com/superbazaar/storefront-api/internal/orders"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

// AgentOrders lists orders assigned to the calling courier. ?open=true
// narrows to orders still in flight.
func AgentOrders(svc orders.Service, agents delivery.AgentRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		if identity.UserID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		agent, err := agents.FindByUserID(r.Context(), *identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "no courier profile"))
			return
		}

		openOnly := strings.EqualFold(r.URL.Query().Get("open"), "true")
		list, err := svc.ListForAgent(r.Context(), agent.ID, openOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": newOrderViews(list)})
	}
}

type agentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=shipped delivered"`
}

// AgentUpdateStatus moves an assigned order to shipped or delivered. A
// courier can only touch orders assigned to them.
func AgentUpdateStatus(svc orders.Service, agents delivery.AgentRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		if identity.UserID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		agent, err := agents.FindByUserID(r.Context(), *identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "no courier profile"))
			return
		}

		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.DeliveryAgentID == nil || *order.DeliveryAgentID != agent.ID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status"))
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(updated))
	}
}
