package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/api/responses"
	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

// ProductList returns available products; ?featured=true narrows to the
// featured set.
func ProductList(repo products.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product repository unavailable"))
			return
		}

		var (
			list []models.Product
			err  error
		)
		if strings.EqualFold(r.URL.Query().Get("featured"), "true") {
			list, err = repo.ListFeatured(r.Context())
		} else {
			list, err = repo.ListAvailable(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]productView, 0, len(list))
		for i := range list {
			views = append(views, newProductView(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"products": views})
	}
}

// ProductDetail resolves a product by id, falling back to slug lookup for
// human-readable URLs.
func ProductDetail(repo products.ProductRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product repository unavailable"))
			return
		}

		ref := chi.URLParam(r, "productRef")

		var (
			product *models.Product
			err     error
		)
		if id, parseErr := uuid.Parse(ref); parseErr == nil {
			product, err = repo.FindByID(r.Context(), id)
		} else {
			product, err = repo.FindBySlug(r.Context(), ref)
		}
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductView(product))
	}
}
