package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

// Balancer spreads new orders across active couriers by open workload.
type Balancer interface {
	PickAgent(ctx context.Context) (*models.DeliveryAgent, error)
	Assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.DeliveryAgent, error)
}

type balancer struct {
	repo AgentRepository
}

// NewBalancer builds a workload balancer over the agent repository.
func NewBalancer(repo AgentRepository) (Balancer, error) {
	if repo == nil {
		return nil, fmt.Errorf("agent repository required")
	}
	return &balancer{repo: repo}, nil
}

// PickAgent selects the active courier with the fewest open orders. Agents
// are scanned in stable creation order, so ties always resolve to the
// longest-registered courier.
func (b *balancer) PickAgent(ctx context.Context) (*models.DeliveryAgent, error) {
	agents, err := b.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing delivery agents")
	}
	if len(agents) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active delivery agents")
	}

	counts, err := b.repo.OpenOrderCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting open orders")
	}

	best := &agents[0]
	bestLoad := counts[best.ID]
	for i := 1; i < len(agents); i++ {
		if load := counts[agents[i].ID]; load < bestLoad {
			best = &agents[i]
			bestLoad = load
		}
	}
	return best, nil
}

// Assign picks the least-loaded courier and records them on the order
// within the caller's transaction.
func (b *balancer) Assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.DeliveryAgent, error) {
	repo := b.repo.WithTx(tx)
	scoped := &balancer{repo: repo}

	agent, err := scoped.PickAgent(ctx)
	if err != nil {
		return nil, err
	}
	if err := repo.AssignOrder(ctx, orderID, agent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assigning delivery agent")
	}
	return agent, nil
}
