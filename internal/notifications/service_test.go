package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}, &models.Order{}, &models.OrderItem{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	userID := uuid.New()
	order := &models.Order{
		OrderNumber:    "ORD-20260101120000-ABC123",
		UserID:         &userID,
		Status:         enums.OrderStatusPending,
		PaymentMethod:  enums.PaymentMethodCOD,
		Subtotal:       decimal.NewFromInt(300),
		TaxAmount:      decimal.NewFromInt(54),
		ShippingCost:   decimal.NewFromInt(50),
		DiscountAmount: decimal.Zero,
		Items: []models.OrderItem{{
			ProductID:   uuid.New(),
			ProductName: "Aashirvaad Atta 10kg",
			Price:       decimal.NewFromInt(300),
			Quantity:    1,
		}},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestEnqueueConfirmationWritesQueueRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), "Priyanka Superbazaar")
	require.NoError(t, err)
	order := seedOrder(t, db)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.EnqueueConfirmation(context.Background(), tx, order, "customer@example.com")
	}))

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, enums.NotificationOrderConfirmation, row.Kind)
	require.Equal(t, "customer@example.com", row.Recipient)
	require.Contains(t, row.Subject, order.OrderNumber)
	require.Contains(t, row.Body, "Aashirvaad Atta 10kg")
	require.Contains(t, row.Body, "Total: 404.00")
	require.True(t, row.Pending())
}

func TestEnqueueConfirmationSkipsEmptyRecipient(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), "Priyanka Superbazaar")
	require.NoError(t, err)
	order := seedOrder(t, db)

	require.NoError(t, svc.EnqueueConfirmation(context.Background(), db, order, ""))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEnqueueStatusUpdateRollsBackWithTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), "Priyanka Superbazaar")
	require.NoError(t, err)
	order := seedOrder(t, db)

	sentinel := errors.New("boom")
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := svc.EnqueueStatusUpdate(context.Background(), tx, order); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

type recordingSender struct {
	sent     []uuid.UUID
	failWith error
}

func (s *recordingSender) Send(_ context.Context, n *models.Notification) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, n.ID)
	return nil
}

func newDispatcher(t *testing.T, db *gorm.DB, sender Sender, maxAttempts int) *Dispatcher {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel})
	d, err := NewDispatcher(NewRepository(db), sender, logg, config.NotificationsConfig{
		DispatchInterval: time.Second,
		DispatchBatch:    10,
		MaxAttempts:      maxAttempts,
	})
	require.NoError(t, err)
	return d
}

func enqueueRow(t *testing.T, db *gorm.DB) *models.Notification {
	t.Helper()
	row := &models.Notification{
		Kind:      enums.NotificationOrderStatusUpdate,
		Recipient: "customer@example.com",
		Subject:   "order update",
		Body:      "your order shipped",
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestDispatchBatchMarksSent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, 5)
	row := enqueueRow(t, db)

	require.NoError(t, d.DispatchBatch(context.Background()))
	require.Equal(t, []uuid.UUID{row.ID}, sender.sent)

	var reloaded models.Notification
	require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
	require.NotNil(t, reloaded.SentAt)
	require.Equal(t, 1, reloaded.Attempts)

	// Sent rows are not picked up again.
	require.NoError(t, d.DispatchBatch(context.Background()))
	require.Len(t, sender.sent, 1)
}

func TestDispatchBatchRetriesUntilAttemptBudget(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sender := &recordingSender{failWith: errors.New("gateway down")}
	d := newDispatcher(t, db, sender, 2)
	row := enqueueRow(t, db)

	require.NoError(t, d.DispatchBatch(context.Background()))
	require.NoError(t, d.DispatchBatch(context.Background()))

	var reloaded models.Notification
	require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
	require.Nil(t, reloaded.SentAt)
	require.Equal(t, 2, reloaded.Attempts)
	require.NotNil(t, reloaded.LastError)

	// Budget exhausted: the row is abandoned, even once the gateway recovers.
	sender.failWith = nil
	require.NoError(t, d.DispatchBatch(context.Background()))
	require.Empty(t, sender.sent)
}
