package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/internal/address"
	"github.com/superbazaar/storefront-api/internal/cart"
	"github.com/superbazaar/storefront-api/internal/delivery"
	"github.com/superbazaar/storefront-api/internal/notifications"
	"github.com/superbazaar/storefront-api/internal/orders"
	"github.com/superbazaar/storefront-api/internal/pricing"
	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/internal/promo"
	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeSessionStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{codes: map[string]string{}}
}

func (f *fakeSessionStore) StoreAppliedPromo(_ context.Context, cartID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[cartID] = code
	return nil
}

func (f *fakeSessionStore) GetAppliedPromo(_ context.Context, cartID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[cartID], nil
}

func (f *fakeSessionStore) ClearAppliedPromo(_ context.Context, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, cartID)
	return nil
}

type checkoutEnv struct {
	db       *gorm.DB
	svc      Service
	cartSvc  cart.Service
	sessions *fakeSessionStore
	cfg      config.StoreConfig
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()
	db := newTestDB(t)
	tx := &gormTxRunner{db: db}
	sessions := newFakeSessionStore()

	cfg := config.StoreConfig{
		SiteName:            "Priyanka Superbazaar",
		Currency:            "INR",
		TaxRate:             0.18,
		MinOrderAmount:      1000,
		DefaultShippingCost: 50,
		EnableCOD:           true,
		OrderNumberPrefix:   "ORD",
	}

	productRepo := products.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	promoRepo := promo.NewRepository(db)

	cartSvc, err := cart.NewService(cartRepo, productRepo)
	require.NoError(t, err)
	promoSvc, err := promo.NewService(promoRepo, sessions)
	require.NoError(t, err)
	addressSvc, err := address.NewService(db, tx)
	require.NoError(t, err)
	balancer, err := delivery.NewBalancer(delivery.NewRepository(db))
	require.NoError(t, err)
	notifSvc, err := notifications.NewService(notifications.NewRepository(db), cfg.SiteName)
	require.NoError(t, err)

	svc, err := NewService(Deps{
		TxRunner:      tx,
		DB:            db,
		CartRepo:      cartRepo,
		OrdersRepo:    orders.NewRepository(db),
		ProductRepo:   productRepo,
		PromoRepo:     promoRepo,
		PromoService:  promoSvc,
		AddressSvc:    addressSvc,
		Balancer:      balancer,
		Notifications: notifSvc,
		Calculator:    pricing.NewCalculator(cfg),
		StoreConfig:   cfg,
		Metrics:       nil,
		Logger:        logger.New(logger.Options{Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)

	return &checkoutEnv{db: db, svc: svc, cartSvc: cartSvc, sessions: sessions, cfg: cfg}
}

func (e *checkoutEnv) seedProduct(t *testing.T, name string, price string, discount *string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:      name,
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Available: true,
	}
	if discount != nil {
		d := decimal.RequireFromString(*discount)
		p.DiscountPrice = &d
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *checkoutEnv) seedUserWithAddress(t *testing.T) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	addr := &models.Address{
		UserID:     userID,
		Type:       enums.AddressTypeShipping,
		FullName:   "Asha Rao",
		Phone:      "9800000000",
		Line1:      "14 MG Road",
		City:       "Pune",
		State:      "Maharashtra",
		PostalCode: "411001",
		Country:    "India",
		IsDefault:  true,
	}
	require.NoError(t, e.db.Create(addr).Error)
	return userID
}

func (e *checkoutEnv) seedAgent(t *testing.T, name string) *models.DeliveryAgent {
	t.Helper()
	agent := &models.DeliveryAgent{
		UserID:   uuid.New(),
		Name:     name,
		Phone:    "9811111111",
		IsActive: true,
	}
	require.NoError(t, e.db.Create(agent).Error)
	return agent
}

func (e *checkoutEnv) fillCart(t *testing.T, owner cart.Owner, items map[*models.Product]int) *models.Cart {
	t.Helper()
	var loaded *models.Cart
	var err error
	for product, qty := range items {
		loaded, err = e.cartSvc.AddItem(context.Background(), owner, product.ID, qty)
		require.NoError(t, err)
	}
	return loaded
}

func (e *checkoutEnv) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", productID).Error)
	return p.Stock
}

func TestExecuteCreatesOrderFromCart(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}
	agent := env.seedAgent(t, "Ravi")

	rice := env.seedProduct(t, "Basmati Rice", "100.00", nil, 10)
	discounted := "50.00"
	oil := env.seedProduct(t, "Sunflower Oil", "60.00", &discounted, 5)
	env.fillCart(t, owner, map[*models.Product]int{rice: 2, oil: 1})

	order, err := env.svc.Execute(ctx, owner, Input{
		PaymentMethod: enums.PaymentMethodCOD,
		ContactEmail:  "asha@example.com",
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 2)

	// subtotal 250.00, tax 45.00, default shipping 50.00
	require.True(t, order.Subtotal.Equal(decimal.RequireFromString("250.00")), order.Subtotal.String())
	require.True(t, order.TaxAmount.Equal(decimal.RequireFromString("45.00")), order.TaxAmount.String())
	require.True(t, order.ShippingCost.Equal(decimal.RequireFromString("50.00")), order.ShippingCost.String())
	require.True(t, order.Total.Equal(decimal.RequireFromString("345.00")), order.Total.String())

	// line items snapshot the effective price at purchase time
	for _, item := range order.Items {
		if item.ProductID == oil.ID {
			require.True(t, item.Price.Equal(decimal.RequireFromString("50.00")))
		}
	}

	require.Equal(t, 8, env.stockOf(t, rice.ID))
	require.Equal(t, 4, env.stockOf(t, oil.ID))

	require.NotNil(t, order.DeliveryAgentID)
	require.Equal(t, agent.ID, *order.DeliveryAgentID)

	require.NotNil(t, order.Payment)
	require.Equal(t, enums.PaymentStatusPending, order.Payment.PaymentState)
	require.True(t, order.Payment.Amount.Equal(order.Total))
	require.Nil(t, order.Payment.PaidAt)

	var remaining int64
	require.NoError(t, env.db.Model(&models.CartItem{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	var note models.Notification
	require.NoError(t, env.db.First(&note, "order_id = ?", order.ID).Error)
	require.Equal(t, "asha@example.com", note.Recipient)
	require.Contains(t, note.Body, order.OrderNumber)
}

func TestExecuteStockShortfallRollsBackEverything(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	plenty := env.seedProduct(t, "Wheat Flour", "80.00", nil, 10)
	scarce := env.seedProduct(t, "Saffron", "500.00", nil, 5)
	env.fillCart(t, owner, map[*models.Product]int{plenty: 2, scarce: 4})

	// Another buyer grabs the saffron before this checkout commits.
	require.NoError(t, env.db.Model(&models.Product{}).
		Where("id = ?", scarce.ID).Update("stock", 3).Error)

	_, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	var orderCount int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)

	require.Equal(t, 10, env.stockOf(t, plenty.ID))
	require.Equal(t, 3, env.stockOf(t, scarce.ID))

	var items int64
	require.NoError(t, env.db.Model(&models.CartItem{}).Count(&items).Error)
	require.Equal(t, int64(2), items)
}

func TestExecuteAppliesPromoAndConsumesUsage(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	product := env.seedProduct(t, "Ghee", "250.00", nil, 10)
	loaded := env.fillCart(t, owner, map[*models.Product]int{product: 1})

	maxUsage := 5
	code := &models.PromoCode{
		Code:          "FLAT40",
		DiscountType:  enums.DiscountTypeFlat,
		DiscountValue: decimal.RequireFromString("40.00"),
		MinPurchase:   decimal.RequireFromString("100.00"),
		MaxUsage:      &maxUsage,
		IsActive:      true,
		ValidFrom:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.db.Create(code).Error)
	require.NoError(t, env.sessions.StoreAppliedPromo(ctx, loaded.ID.String(), "FLAT40"))

	order, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)

	// subtotal 250.00, discount 40.00, tax 0.18*210 = 37.80, shipping 50.00
	require.True(t, order.DiscountAmount.Equal(decimal.RequireFromString("40.00")), order.DiscountAmount.String())
	require.True(t, order.TaxAmount.Equal(decimal.RequireFromString("37.80")), order.TaxAmount.String())
	require.True(t, order.Total.Equal(decimal.RequireFromString("297.80")), order.Total.String())
	require.NotNil(t, order.PromoCodeID)
	require.Equal(t, code.ID, *order.PromoCodeID)

	var stored models.PromoCode
	require.NoError(t, env.db.First(&stored, "id = ?", code.ID).Error)
	require.Equal(t, 1, stored.UsedCount)

	applied, err := env.sessions.GetAppliedPromo(ctx, loaded.ID.String())
	require.NoError(t, err)
	require.Empty(t, applied)
}

func TestExecuteDropsInvalidPromoSilently(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	product := env.seedProduct(t, "Tea", "200.00", nil, 10)
	loaded := env.fillCart(t, owner, map[*models.Product]int{product: 1})

	expiredAt := time.Now().Add(-time.Hour)
	code := &models.PromoCode{
		Code:          "BYGONE",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.RequireFromString("10.00"),
		IsActive:      true,
		ValidFrom:     time.Now().Add(-48 * time.Hour),
		ValidUntil:    &expiredAt,
	}
	require.NoError(t, env.db.Create(code).Error)
	require.NoError(t, env.sessions.StoreAppliedPromo(ctx, loaded.ID.String(), "BYGONE"))

	order, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)

	require.True(t, order.DiscountAmount.IsZero())
	require.Nil(t, order.PromoCodeID)

	var stored models.PromoCode
	require.NoError(t, env.db.First(&stored, "id = ?", code.ID).Error)
	require.Zero(t, stored.UsedCount)

	applied, err := env.sessions.GetAppliedPromo(ctx, loaded.ID.String())
	require.NoError(t, err)
	require.Empty(t, applied)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	_, err := env.svc.Execute(context.Background(), owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	require.Contains(t, appErr.Error(), "cart is empty")
}

func TestExecuteRejectsDisabledCOD(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)

	cfg := env.cfg
	cfg.EnableCOD = false
	svc := env.svc.(*service)
	svc.storeCfg = cfg

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	_, err := svc.Execute(context.Background(), owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cash on delivery")
}

func TestExecuteCardPaymentSettlesImmediately(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	product := env.seedProduct(t, "Honey", "300.00", nil, 4)
	env.fillCart(t, owner, map[*models.Product]int{product: 1})

	order, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodStripe})
	require.NoError(t, err)

	require.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.Payment)
	require.Equal(t, enums.PaymentStatusPaid, order.Payment.PaymentState)
	require.NotNil(t, order.Payment.PaidAt)
}

func TestExecuteGuestCheckoutWithInlineAddress(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	sessionKey := "guest-" + uuid.NewString()
	owner := cart.Owner{SessionKey: &sessionKey}

	product := env.seedProduct(t, "Jaggery", "120.00", nil, 6)
	env.fillCart(t, owner, map[*models.Product]int{product: 2})

	order, err := env.svc.Execute(ctx, owner, Input{
		PaymentMethod: enums.PaymentMethodCOD,
		NewAddress: &address.Input{
			Type:       enums.AddressTypeShipping,
			FullName:   "Guest Buyer",
			Phone:      "9822222222",
			Line1:      "7 Station Road",
			City:       "Nashik",
			State:      "Maharashtra",
			PostalCode: "422001",
		},
	})
	require.NoError(t, err)

	require.Nil(t, order.UserID)
	require.NotNil(t, order.ShippingAddressID)
	require.NotNil(t, order.ShippingAddress)
	require.Equal(t, "India", order.ShippingAddress.Country)
}

func TestExecuteSucceedsWithoutDeliveryAgents(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	product := env.seedProduct(t, "Pickle", "90.00", nil, 3)
	env.fillCart(t, owner, map[*models.Product]int{product: 1})

	order, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)
	require.Nil(t, order.DeliveryAgentID)
}

func TestExecuteRequiresShippingAddressForUser(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := uuid.New() // no saved addresses
	owner := cart.Owner{UserID: &userID}

	product := env.seedProduct(t, "Salt", "20.00", nil, 10)
	env.fillCart(t, owner, map[*models.Product]int{product: 1})

	_, err := env.svc.Execute(ctx, owner, Input{PaymentMethod: enums.PaymentMethodCOD})
	require.Error(t, err)
	require.Contains(t, err.Error(), "shipping address required")
}

func TestExecuteUsesSelectedShippingMethod(t *testing.T) {
	t.Parallel()
	env := newCheckoutEnv(t)
	ctx := context.Background()

	userID := env.seedUserWithAddress(t)
	owner := cart.Owner{UserID: &userID}

	method := &models.ShippingMethod{
		Name:           "Express",
		Price:          decimal.RequireFromString("120.00"),
		MinOrderAmount: decimal.RequireFromString("1000.00"),
		IsActive:       true,
	}
	require.NoError(t, env.db.Create(method).Error)

	product := env.seedProduct(t, "Almonds", "400.00", nil, 5)
	env.fillCart(t, owner, map[*models.Product]int{product: 1})

	order, err := env.svc.Execute(ctx, owner, Input{
		PaymentMethod:    enums.PaymentMethodCOD,
		ShippingMethodID: &method.ID,
	})
	require.NoError(t, err)
	require.True(t, order.ShippingCost.Equal(decimal.RequireFromString("120.00")), order.ShippingCost.String())
}
