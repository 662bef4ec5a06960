package notifications

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

// Service enqueues order messages for asynchronous delivery.
type Service interface {
	EnqueueConfirmation(ctx context.Context, tx *gorm.DB, order *models.Order, recipient string) error
	EnqueueStatusUpdate(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type service struct {
	repo     Repository
	siteName string
}

// NewService wires notification dependencies.
func NewService(repo Repository, siteName string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if siteName == "" {
		siteName = "Storefront"
	}
	return &service{repo: repo, siteName: siteName}, nil
}

// EnqueueConfirmation queues the order confirmation inside the checkout
// transaction. Recipient may be empty for guest orders without contact
// details; those are skipped rather than failed.
func (s *service) EnqueueConfirmation(ctx context.Context, tx *gorm.DB, order *models.Order, recipient string) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if recipient == "" {
		return nil
	}

	var lines []string
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("%d x %s @ %s", item.Quantity, item.ProductName, item.Price.StringFixed(2)))
	}
	body := fmt.Sprintf(
		"Thank you for your order %s.\n\n%s\n\nSubtotal: %s\nDiscount: %s\nTax: %s\nShipping: %s\nTotal: %s\n",
		order.OrderNumber,
		strings.Join(lines, "\n"),
		order.Subtotal.StringFixed(2),
		order.DiscountAmount.StringFixed(2),
		order.TaxAmount.StringFixed(2),
		order.ShippingCost.StringFixed(2),
		order.Total.StringFixed(2),
	)

	notification := &models.Notification{
		Kind:      enums.NotificationOrderConfirmation,
		OrderID:   &order.ID,
		Recipient: recipient,
		Subject:   fmt.Sprintf("%s: order %s confirmed", s.siteName, order.OrderNumber),
		Body:      body,
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueueing confirmation")
	}
	return nil
}

// EnqueueStatusUpdate queues a status-change message for the order's owner.
func (s *service) EnqueueStatusUpdate(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	recipient := ""
	if order.UserID != nil {
		recipient = order.UserID.String()
	}
	if recipient == "" {
		return nil
	}

	notification := &models.Notification{
		Kind:      enums.NotificationOrderStatusUpdate,
		OrderID:   &order.ID,
		Recipient: recipient,
		Subject:   fmt.Sprintf("%s: order %s is now %s", s.siteName, order.OrderNumber, order.Status),
		Body:      fmt.Sprintf("Your order %s has been updated to %s.", order.OrderNumber, order.Status),
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueueing status update")
	}
	return nil
}
