package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

// Dispatcher drains the notification queue in the background. Failed sends
// burn an attempt and are retried on the next tick until the attempt budget
// runs out.
type Dispatcher struct {
	repo   Repository
	sender Sender
	logg   *logger.Logger
	cfg    config.NotificationsConfig
}

// NewDispatcher builds the queue worker.
func NewDispatcher(repo Repository, sender Sender, logg *logger.Logger, cfg config.NotificationsConfig) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 5 * time.Second
	}
	if cfg.DispatchBatch <= 0 {
		cfg.DispatchBatch = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{repo: repo, sender: sender, logg: logg, cfg: cfg}, nil
}

// Run loops until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchBatch(ctx); err != nil {
				d.logg.Error(ctx, "notification dispatch batch failed", err)
			}
		}
	}
}

// DispatchBatch sends one batch of pending notifications.
func (d *Dispatcher) DispatchBatch(ctx context.Context) error {
	pending, err := d.repo.ListPending(ctx, d.cfg.DispatchBatch, d.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("listing pending notifications: %w", err)
	}

	for i := range pending {
		notification := &pending[i]
		if err := d.sender.Send(ctx, notification); err != nil {
			logCtx := d.logg.WithField(ctx, "notification_id", notification.ID.String())
			d.logg.Error(logCtx, "notification send failed", err)
			if markErr := d.repo.MarkFailed(ctx, notification.ID, err); markErr != nil {
				return fmt.Errorf("marking notification failed: %w", markErr)
			}
			continue
		}
		if err := d.repo.MarkSent(ctx, notification.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("marking notification sent: %w", err)
		}
	}
	return nil
}
