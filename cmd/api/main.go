package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/superbazaar/storefront-api/api/routes"
	"github.com/superbazaar/storefront-api/internal/address"
	"github.com/superbazaar/storefront-api/internal/cart"
	"github.com/superbazaar/storefront-api/internal/checkout"
	"github.com/superbazaar/storefront-api/internal/delivery"
	"github.com/superbazaar/storefront-api/internal/invoice"
	"github.com/superbazaar/storefront-api/internal/notifications"
	"github.com/superbazaar/storefront-api/internal/orders"
	"github.com/superbazaar/storefront-api/internal/pricing"
	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/internal/promo"
	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db"
	"github.com/superbazaar/storefront-api/pkg/logger"
	"github.com/superbazaar/storefront-api/pkg/metrics"
	"github.com/superbazaar/storefront-api/pkg/migrate"
	"github.com/superbazaar/storefront-api/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gdb := dbClient.DB()
	productRepo := products.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	promoRepo := promo.NewRepository(gdb)
	agentRepo := delivery.NewRepository(gdb)
	notificationsRepo := notifications.NewRepository(gdb)

	cartService, err := cart.NewService(cartRepo, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	promoService, err := promo.NewService(promoRepo, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	addressService, err := address.NewService(gdb, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notificationsRepo, cfg.Store.SiteName)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, productRepo, notificationService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	balancer, err := delivery.NewBalancer(agentRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery balancer", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.Deps{
		TxRunner:      dbClient,
		DB:            gdb,
		CartRepo:      cartRepo,
		OrdersRepo:    ordersRepo,
		ProductRepo:   productRepo,
		PromoRepo:     promoRepo,
		PromoService:  promoService,
		AddressSvc:    addressService,
		Balancer:      balancer,
		Notifications: notificationService,
		Calculator:    pricing.NewCalculator(cfg.Store),
		StoreConfig:   cfg.Store,
		Metrics:       checkoutMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(notificationsRepo, notifications.NewLogSender(logg), logg, cfg.Notifications)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "notification dispatcher stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DBPinger:        dbClient,
			Redis:           redisClient,
			ProductRepo:     productRepo,
			AgentRepo:       agentRepo,
			CartService:     cartService,
			PromoService:    promoService,
			AddressService:  addressService,
			CheckoutService: checkoutService,
			OrdersService:   ordersService,
			InvoiceRenderer: invoice.NewTextRenderer(cfg.Store.SiteName, cfg.Store.Currency),
			MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
