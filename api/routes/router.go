package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/superbazaar/storefront-api/api/controllers"
	"github.com/superbazaar/storefront-api/api/middleware"
	"github.com/superbazaar/storefront-api/internal/address"
	"github.com/superbazaar/storefront-api/internal/cart"
	checkoutsvc "github.com/superbazaar/storefront-api/internal/checkout"
	"github.com/superbazaar/storefront-api/internal/delivery"
	"github.com/superbazaar/storefront-api/internal/invoice"
	"github.com/superbazaar/storefront-api/internal/orders"
	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/internal/promo"
	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db"
	"github.com/superbazaar/storefront-api/pkg/enums"
	"github.com/superbazaar/storefront-api/pkg/logger"
	"github.com/superbazaar/storefront-api/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DBPinger        db.Pinger
	Redis           *redis.Client
	ProductRepo     products.ProductRepository
	AgentRepo       delivery.AgentRepository
	CartService     cart.Service
	PromoService    promo.Service
	AddressService  address.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orders.Service
	InvoiceRenderer invoice.Renderer
	MetricsHandler  http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger redis.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, redisPinger))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	checkoutPolicy := middleware.NewThrottlePolicy(
		"checkout",
		cfg.Throttle.CheckoutWindow,
		cfg.Throttle.CheckoutIPLimit,
		cfg.Throttle.CheckoutIdentityLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identify(cfg.JWT, logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		// Catalog and tracking are public.
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.ProductRepo, logg))
			r.Get("/{productRef}", controllers.ProductDetail(deps.ProductRepo, logg))
		})
		r.Get("/orders/track/{orderNumber}", controllers.OrderTrack(deps.OrdersService, logg))

		// Cart and checkout accept users and guest sessions.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireShopper(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.CartService, logg))
				r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
				r.Put("/items/{productId}", controllers.CartUpdateItem(deps.CartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.CartService, logg))
				r.Delete("/", controllers.CartClear(deps.CartService, logg))
				r.Post("/promo", controllers.PromoApply(deps.CartService, deps.PromoService, logg))
				r.Delete("/promo", controllers.PromoRemove(deps.CartService, deps.PromoService, logg))
			})

			checkoutHandler := controllers.Checkout(deps.CheckoutService, logg)
			if deps.Redis != nil {
				r.With(middleware.Throttle(checkoutPolicy, deps.Redis, logg)).Post("/checkout", checkoutHandler)
			} else {
				r.Post("/checkout", checkoutHandler)
			}
		})

		// Order history requires a signed-in user.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(deps.OrdersService, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.OrdersService, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.OrdersService, logg))
				r.Get("/{orderId}/invoice", controllers.OrderInvoice(deps.OrdersService, deps.InvoiceRenderer, logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(deps.AddressService, logg))
				r.Post("/", controllers.AddressCreate(deps.AddressService, logg))
				r.Put("/{addressId}", controllers.AddressUpdate(deps.AddressService, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(deps.AddressService, logg))
				r.Post("/{addressId}/default", controllers.AddressSetDefault(deps.AddressService, logg))
			})
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleDeliveryAgent, logg))
			r.Get("/orders", controllers.AgentOrders(deps.OrdersService, deps.AgentRepo, logg))
			r.Post("/orders/{orderId}/status", controllers.AgentUpdateStatus(deps.OrdersService, deps.AgentRepo, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(deps.OrdersService, logg))
			r.Post("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.OrdersService, logg))
			r.Post("/bulk-status", controllers.AdminBulkUpdateStatus(deps.OrdersService, logg))
			r.Post("/{orderId}/mark-paid", controllers.AdminMarkPaid(deps.OrdersService, logg))
			r.Post("/{orderId}/mark-failed", controllers.AdminMarkFailed(deps.OrdersService, logg))
		})
	})

	return r
}
