package model

// OrderStatus is the single lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusFulfilling      OrderStatus = "fulfilling"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

// orderTransitions lists the statuses reachable from each status.
// Delivered, cancelled and refunded have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusAwaitingPayment,
		OrderStatusPaid,
		OrderStatusCancelled,
		OrderStatusRefunded,
	},
	OrderStatusAwaitingPayment: {
		OrderStatusPaid,
		OrderStatusCancelled,
		OrderStatusRefunded,
	},
	OrderStatusPaid: {
		OrderStatusFulfilling,
		OrderStatusShipped,
		OrderStatusCancelled,
		OrderStatusRefunded,
	},
	OrderStatusFulfilling: {
		OrderStatusShipped,
		OrderStatusCancelled,
		OrderStatusRefunded,
	},
	OrderStatusShipped: {
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
	},
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusFulfilling,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// IsAwaitingPayment reports whether payment for the order is still outstanding.
func (s OrderStatus) IsAwaitingPayment() bool {
	return s == OrderStatusPending || s == OrderStatusAwaitingPayment
}

// IsPaid reports whether money has been collected and not returned.
func (s OrderStatus) IsPaid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFulfilling, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// PredecessorsOf returns every status from which next is reachable.
func PredecessorsOf(next OrderStatus) []OrderStatus {
	var from []OrderStatus
	for status, targets := range orderTransitions {
		for _, t := range targets {
			if t == next {
				from = append(from, status)
				break
			}
		}
	}
	return from
}
