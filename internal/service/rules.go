package service

import (
	"github.com/bakehouse/api/internal/enum"
	"github.com/go-faster/errors"
)

// ErrInvalidTransition is returned when an order cannot move to the
// requested status.
var ErrInvalidTransition = errors.New("invalid status transition")

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// Delivered and cancelled are terminal and have no entry.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusDraft:      {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:  {enum.OrderStatusInProgress, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
}

// CanEditOrder reports whether items, dates and discounts may still change.
func CanEditOrder(status enum.OrderStatus) bool {
	return status == enum.OrderStatusDraft || status == enum.OrderStatusConfirmed
}

// CanCancelOrder reports whether the cancel action is offered.
func CanCancelOrder(status enum.OrderStatus) bool {
	return status == enum.OrderStatusDraft || status == enum.OrderStatusConfirmed
}

// CanDeleteOrder reports whether the order may be removed outright.
func CanDeleteOrder(status enum.OrderStatus) bool {
	return status == enum.OrderStatusDraft
}

// ValidateStatusTransition checks if the transition from current to next is allowed.
func ValidateStatusTransition(current, next enum.OrderStatus) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "cannot transition from %s to %s", current, next)
}

// NextStatuses lists the statuses an order in status may move to.
func NextStatuses(status enum.OrderStatus) []enum.OrderStatus {
	next := allowedTransitions[status]
	out := make([]enum.OrderStatus, len(next))
	copy(out, next)
	return out
}

// Permissions is the per-order action set shown to clients.
type Permissions struct {
	CanEdit   bool `json:"can_edit"`
	CanCancel bool `json:"can_cancel"`
	CanDelete bool `json:"can_delete"`
}

// PermissionsFor evaluates every action predicate for status.
func PermissionsFor(status enum.OrderStatus) Permissions {
	return Permissions{
		CanEdit:   CanEditOrder(status),
		CanCancel: CanCancelOrder(status),
		CanDelete: CanDeleteOrder(status),
	}
}
