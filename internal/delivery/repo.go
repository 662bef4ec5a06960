package delivery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/enums"
)

// AgentRepository exposes courier reads and assignment writes.
type AgentRepository interface {
	WithTx(tx *gorm.DB) AgentRepository
	ListActive(ctx context.Context) ([]models.DeliveryAgent, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryAgent, error)
	OpenOrderCounts(ctx context.Context) (map[uuid.UUID]int64, error)
	AssignOrder(ctx context.Context, orderID, agentID uuid.UUID) error
}

// Repository is the gorm-backed AgentRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an agent repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) AgentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListActive returns assignable couriers in stable creation order, so ties
// in the balancer resolve the same way every time.
func (r *Repository) ListActive(ctx context.Context) ([]models.DeliveryAgent, error) {
	var rows []models.DeliveryAgent
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByUserID loads the agent profile behind a user account.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryAgent, error) {
	var agent models.DeliveryAgent
	if err := r.db.WithContext(ctx).First(&agent, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// OpenOrderCounts returns, per agent, how many orders are still in flight
// (pending, processing, or shipped).
func (r *Repository) OpenOrderCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	type row struct {
		DeliveryAgentID uuid.UUID
		Total           int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("delivery_agent_id, COUNT(*) AS total").
		Where("delivery_agent_id IS NOT NULL AND status IN ?", openStatuses()).
		Group("delivery_agent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.DeliveryAgentID] = r.Total
	}
	return counts, nil
}

// AssignOrder records the courier on the order.
func (r *Repository) AssignOrder(ctx context.Context, orderID, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("delivery_agent_id", agentID).Error
}

func openStatuses() []enums.OrderStatus {
	return []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
	}
}
