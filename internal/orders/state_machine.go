package orders

import (
	"fmt"

	"github.com/superbazaar/storefront-api/pkg/enums"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

// allowedTransitions is the order lifecycle. Cancellation is only possible
// before the parcel leaves the warehouse. Delivered is reachable from any
// pre-delivery state: a COD order handed over at the door may still be
// pending or processing in the system when the agent marks it delivered.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusRefunded:   {},
}

// CanTransition reports whether an order may move from one status to another.
// Refunds are an administrative escape hatch reachable from any other state.
func CanTransition(from, to enums.OrderStatus) bool {
	if to == enums.OrderStatusRefunded {
		return from != enums.OrderStatusRefunded
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// guardTransition returns a state-conflict error when the move is not allowed.
func guardTransition(from, to enums.OrderStatus) error {
	if from == to {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is already %s", from))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", from, to))
	}
	return nil
}
