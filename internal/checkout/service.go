package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
	"github.com/superbazaar/storefront-api/pkg/db"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
	"github.com/superbazaar/storefront-api/pkg/metrics"
)

const orderNumberRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input captures everything the checkout endpoint accepts.
type Input struct {
	PaymentMethod     enums.PaymentMethod
	ShippingMethodID  *uuid.UUID
	ShippingAddressID *uuid.UUID
	NewAddress        *address.Input
	CustomerNote      string
	ContactEmail      string
	IPAddress         string
}

// Service turns a cart into an order atomically.
type Service interface {
	Execute(ctx context.Context, owner cart.Owner, input Input) (*models.Order, error)
}

type service struct {
	tx           txRunner
	db           *gorm.DB
	cartRepo     cart.CartRepository
	ordersRepo   orders.Repository
	productRepo  products.ProductRepository
	promoRepo    promo.PromoRepository
	promoSvc     promo.Service
	addressSvc   address.Service
	balancer     delivery.Balancer
	notification notifications.Service
	calculator   *pricing.Calculator
	storeCfg     config.StoreConfig
	metrics      *metrics.CheckoutMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// Deps bundles the collaborators checkout needs.
type Deps struct {
	TxRunner      txRunner
	DB            *gorm.DB
	CartRepo      cart.CartRepository
	OrdersRepo    orders.Repository
	ProductRepo   products.ProductRepository
	PromoRepo     promo.PromoRepository
	PromoService  promo.Service
	AddressSvc    address.Service
	Balancer      delivery.Balancer
	Notifications notifications.Service
	Calculator    *pricing.Calculator
	StoreConfig   config.StoreConfig
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if deps.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.ProductRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if deps.PromoRepo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if deps.PromoService == nil {
		return nil, fmt.Errorf("promo service required")
	}
	if deps.AddressSvc == nil {
		return nil, fmt.Errorf("address service required")
	}
	if deps.Balancer == nil {
		return nil, fmt.Errorf("delivery balancer required")
	}
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if deps.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           deps.TxRunner,
		db:           deps.DB,
		cartRepo:     deps.CartRepo,
		ordersRepo:   deps.OrdersRepo,
		productRepo:  deps.ProductRepo,
		promoRepo:    deps.PromoRepo,
		promoSvc:     deps.PromoService,
		addressSvc:   deps.AddressSvc,
		balancer:     deps.Balancer,
		notification: deps.Notifications,
		calculator:   deps.Calculator,
		storeCfg:     deps.StoreConfig,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
		now:          time.Now,
	}, nil
}

// Execute runs the whole cart-to-order transaction. Everything that writes
// runs inside one database transaction: a failure at any step, including a
// stock shortfall on the last line item, leaves no order, no stock change,
// and no consumed promo behind.
func (s *service) Execute(ctx context.Context, owner cart.Owner, input Input) (*models.Order, error) {
	started := s.now()

	if !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner identity required")
	}
	if !input.PaymentMethod.IsValid() {
		s.metrics.IncFailure("invalid_payment_method")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.PaymentMethod == enums.PaymentMethodCOD && !s.storeCfg.EnableCOD {
		s.metrics.IncFailure("cod_disabled")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is not available")
	}

	// The address is resolved (and, for inline input, persisted) outside the
	// order transaction. A saved address is a user asset that survives a
	// failed checkout, matching how address books behave elsewhere in the API.
	shippingAddr, err := s.resolveAddress(ctx, owner, input)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	shippingMethod, err := s.resolveShippingMethod(ctx, input.ShippingMethodID)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	var (
		result    *models.Order
		usedPromo bool
		cartID    uuid.UUID
	)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		promoRepo := s.promoRepo.WithTx(tx)

		loaded, err := cartRepo.Find(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return err
		}
		if len(loaded.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		cartID = loaded.ID

		for _, item := range loaded.Items {
			if !item.Product.Available {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("product %q is no longer available", item.Product.Name))
			}
		}
		subtotal := loaded.TotalPrice()

		// An invalid applied promo is dropped silently: the order proceeds
		// at full price instead of failing checkout.
		appliedPromo, discount := s.resolvePromo(ctx, loaded.ID, subtotal)

		quote := s.calculator.QuoteOrder(subtotal, discount, shippingMethod)

		order := &models.Order{
			UserID:         owner.UserID,
			Status:         enums.OrderStatusPending,
			PaymentStatus:  enums.PaymentStatusPending,
			PaymentMethod:  input.PaymentMethod,
			Subtotal:       quote.Subtotal,
			TaxAmount:      quote.Tax,
			ShippingCost:   quote.Shipping,
			DiscountAmount: quote.Discount,
			CustomerNote:   input.CustomerNote,
		}
		if input.IPAddress != "" {
			order.IPAddress = &input.IPAddress
		}
		if appliedPromo != nil {
			order.PromoCodeID = &appliedPromo.ID
		}
		if shippingAddr != nil {
			order.ShippingAddressID = &shippingAddr.ID
			order.BillingAddressID = &shippingAddr.ID
		}
		if !input.PaymentMethod.Deferred() {
			order.PaymentStatus = enums.PaymentStatusPaid
		}
		for _, item := range loaded.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				Price:       item.Product.EffectivePrice(),
				Quantity:    item.Quantity,
			})
		}

		if err := s.createWithFreshNumber(ctx, ordersRepo, order); err != nil {
			return err
		}

		for _, item := range loaded.Items {
			if err := productRepo.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if appliedPromo != nil {
			if err := promoRepo.MarkUsed(ctx, appliedPromo.ID); err != nil {
				return err
			}
			usedPromo = true
		}

		payment := &models.Payment{
			OrderID:       order.ID,
			PaymentState:  order.PaymentStatus,
			PaymentMethod: input.PaymentMethod,
			Amount:        order.Total,
			Currency:      s.storeCfg.Currency,
		}
		if payment.PaymentState == enums.PaymentStatusPaid {
			paidAt := s.now()
			payment.PaidAt = &paidAt
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}
		order.Payment = payment

		// Courier assignment is best effort; an empty roster never fails
		// the purchase.
		if agent, err := s.balancer.Assign(ctx, tx, order.ID); err == nil {
			order.DeliveryAgentID = &agent.ID
		} else if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
			return err
		}

		if err := cartRepo.ClearItems(ctx, loaded.ID); err != nil {
			return err
		}

		if err := s.notification.EnqueueConfirmation(ctx, tx, order, input.ContactEmail); err != nil {
			return err
		}

		order.ShippingAddress = shippingAddr
		result = order
		return nil
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	// The promo session key is advisory; a failure clearing it only logs.
	if cartID != uuid.Nil {
		if err := s.promoSvc.Remove(ctx, cartID.String()); err != nil {
			s.logg.Warn(s.logg.WithOrderNumber(ctx, result.OrderNumber), "clearing promo session failed")
		}
	}

	method := result.PaymentMethod.String()
	s.metrics.IncOrderCreated(method)
	if usedPromo {
		s.metrics.IncPromoRedemption()
	}
	s.metrics.ObserveDuration(method, s.now().Sub(started))

	s.logg.Info(s.logg.WithOrderNumber(ctx, result.OrderNumber), "order created")
	return result, nil
}

// createWithFreshNumber inserts the order, regenerating the order number on
// the rare uniqueness collision.
func (s *service) createWithFreshNumber(ctx context.Context, repo orders.Repository, order *models.Order) error {
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		number, err := orders.GenerateOrderNumber(s.storeCfg.OrderNumberPrefix, s.now())
		if err != nil {
			return err
		}
		order.OrderNumber = number
		err = repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "order_number") {
			return err
		}
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number")
}

// resolvePromo reads the applied code from the session store and re-validates
// it against the current subtotal. Anything that fails validation, or a
// session store outage, degrades to "no promo".
func (s *service) resolvePromo(ctx context.Context, cartID uuid.UUID, subtotal decimal.Decimal) (*models.PromoCode, decimal.Decimal) {
	code, err := s.promoSvc.Applied(ctx, cartID.String())
	if err != nil {
		s.logg.Warn(ctx, "reading applied promo failed")
		return nil, decimal.Zero
	}
	if code == "" {
		return nil, decimal.Zero
	}
	promoCode, err := s.promoSvc.Validate(ctx, code, subtotal)
	if err != nil {
		if removeErr := s.promoSvc.Remove(ctx, cartID.String()); removeErr != nil {
			s.logg.Warn(ctx, "clearing stale promo session failed")
		}
		return nil, decimal.Zero
	}
	return promoCode, promo.CalculateDiscount(promoCode, subtotal)
}

func (s *service) resolveShippingMethod(ctx context.Context, id *uuid.UUID) (*models.ShippingMethod, error) {
	if id == nil {
		return nil, nil
	}
	var method models.ShippingMethod
	err := s.db.WithContext(ctx).First(&method, "id = ? AND is_active = ?", *id, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method not available")
		}
		return nil, err
	}
	return &method, nil
}

func (s *service) resolveAddress(ctx context.Context, owner cart.Owner, input Input) (*models.Address, error) {
	if input.ShippingAddressID != nil {
		if owner.UserID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "saved addresses require a signed-in user")
		}
		return s.addressSvc.Get(ctx, *owner.UserID, *input.ShippingAddressID)
	}
	if input.NewAddress != nil {
		userID := uuid.Nil
		if owner.UserID != nil {
			userID = *owner.UserID
		}
		return s.addressSvc.Create(ctx, userID, *input.NewAddress)
	}
	if owner.UserID != nil {
		addr, err := s.addressSvc.DefaultFor(ctx, *owner.UserID, enums.AddressTypeShipping)
		if err != nil {
			if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
			}
			return nil, err
		}
		return addr, nil
	}
	// Guest checkout without address details.
	return nil, nil
}

func (s *service) recordFailure(err error) {
	reason := "internal"
	if appErr := pkgerrors.As(err); appErr != nil {
		switch appErr.Code() {
		case pkgerrors.CodeInsufficientStock:
			reason = "insufficient_stock"
		case pkgerrors.CodeValidation:
			reason = "validation"
		case pkgerrors.CodeConflict:
			reason = "promo_exhausted"
		}
	}
	s.metrics.IncFailure(reason)
}
