package domain

type OrderStatus string

const (
	StatusPending        OrderStatus = "Pending"
	StatusConfirmed      OrderStatus = "Confirmed"
	StatusProcessing     OrderStatus = "Processing"
	StatusShipped        OrderStatus = "Shipped"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

// fulfillment is the forward path; position in the slice is the rank.
var fulfillment = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

func rank(s OrderStatus) int {
	for i, st := range fulfillment {
		if st == s {
			return i
		}
	}
	return -1
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if st == StatusCancelled || rank(st) >= 0 {
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether an order may move from one status to another.
// Forward moves may skip steps; the only move off the forward path is into Cancelled.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return from.Cancellable()
	}
	f, t := rank(from), rank(to)
	return f >= 0 && t > f
}

func AllStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(fulfillment)+1)
	out = append(out, fulfillment...)
	return append(out, StatusCancelled)
}
