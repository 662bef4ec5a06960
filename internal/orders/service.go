package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/internal/products"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusNotifier enqueues a customer-facing message about an order's new
// status inside the caller's transaction.
type StatusNotifier interface {
	EnqueueStatusUpdate(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// BulkResult reports the per-order outcome of a bulk action.
type BulkResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Updated bool      `json:"updated"`
	Error   string    `json:"error,omitempty"`
}

// Service drives the order lifecycle after checkout.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	Track(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListForAgent(ctx context.Context, agentID uuid.UUID, openOnly bool) ([]models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (*models.Order, error)
	MarkFailed(ctx context.Context, id uuid.UUID, failureCode, failureMessage string) (*models.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.OrderStatus) []BulkResult
}

// Actor identifies who requested a mutation, for ownership checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

type service struct {
	repo     Repository
	tx       txRunner
	products products.ProductRepository
	notifier StatusNotifier
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, productRepo products.ProductRepository, notifier StatusNotifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("status notifier required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: productRepo,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

// GetForUser loads an order and verifies the caller owns it.
func (s *service) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// Track resolves an order by its public number.
func (s *service) Track(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, next, nil
}

func (s *service) ListForAgent(ctx context.Context, agentID uuid.UUID, openOnly bool) ([]models.Order, error) {
	rows, err := s.repo.ListByAgent(ctx, agentID, openOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing agent orders")
	}
	return rows, nil
}

// Cancel aborts an order that has not shipped yet. Stock consumed at
// checkout is returned to the shelf in the same transaction, and an
// already-captured payment flips to refunded.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		if actor.Role != enums.RoleAdmin {
			if order.UserID == nil || *order.UserID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
		}
		if err := guardTransition(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}

		productRepo := s.products.WithTx(tx)
		for _, item := range order.Items {
			if err := productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusCancelled
		if order.PaymentStatus == enums.PaymentStatusPaid {
			order.PaymentStatus = enums.PaymentStatusRefunded
			if order.Payment != nil {
				order.Payment.PaymentState = enums.PaymentStatusRefunded
				if err := repo.SavePayment(ctx, order.Payment); err != nil {
					return err
				}
			}
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if err := s.notifier.EnqueueStatusUpdate(ctx, tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves the order along the lifecycle. Delivery implies the
// money was collected, so delivered orders are forced to paid.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if status == enums.OrderStatusCancelled {
		return s.Cancel(ctx, id, Actor{Role: enums.RoleAdmin})
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if err := guardTransition(order.Status, status); err != nil {
			return err
		}

		order.Status = status
		switch status {
		case enums.OrderStatusDelivered:
			if err := s.settlePayment(ctx, repo, order, ""); err != nil {
				return err
			}
		case enums.OrderStatusRefunded:
			order.PaymentStatus = enums.PaymentStatusRefunded
			if order.Payment != nil {
				order.Payment.PaymentState = enums.PaymentStatusRefunded
				if err := repo.SavePayment(ctx, order.Payment); err != nil {
					return err
				}
			}
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if err := s.notifier.EnqueueStatusUpdate(ctx, tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaid records a successful payment capture. Calling it twice is a
// no-op rather than an error.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			result = order
			return nil
		}
		if err := s.settlePayment(ctx, repo, order, transactionID); err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkFailed records a failed capture on both the payment and the order.
func (s *service) MarkFailed(ctx context.Context, id uuid.UUID, failureCode, failureMessage string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}

		order.PaymentStatus = enums.PaymentStatusFailed
		if order.Payment != nil {
			order.Payment.PaymentState = enums.PaymentStatusFailed
			if failureCode != "" {
				order.Payment.FailureCode = &failureCode
			}
			if failureMessage != "" {
				order.Payment.FailureMessage = &failureMessage
			}
			if err := repo.SavePayment(ctx, order.Payment); err != nil {
				return err
			}
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkUpdateStatus applies the transition to each order independently, so
// one ineligible order never blocks the rest of the batch.
func (s *service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.OrderStatus) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		if _, err := s.UpdateStatus(ctx, id, status); err != nil {
			results = append(results, BulkResult{OrderID: id, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{OrderID: id, Updated: true})
	}
	return results
}

func (s *service) settlePayment(ctx context.Context, repo Repository, order *models.Order, transactionID string) error {
	order.PaymentStatus = enums.PaymentStatusPaid
	if order.Payment == nil {
		return nil
	}
	order.Payment.PaymentState = enums.PaymentStatusPaid
	if transactionID != "" {
		order.Payment.TransactionID = &transactionID
	}
	if order.Payment.PaidAt == nil {
		paidAt := s.now()
		order.Payment.PaidAt = &paidAt
	}
	return repo.SavePayment(ctx, order.Payment)
}
