package domain

import (
	"fmt"
	"time"
)

// Forward order of the fulfilment path. Cancelled sits outside it.
var statusRank = map[OrderStatus]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// HoldsStock reports whether an order in this status must have its items deducted from stock.
func HoldsStock(status OrderStatus) bool {
	switch status {
	case StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Transition is a planned status change and the stock side effects it requires.
type Transition struct {
	From          OrderStatus
	To            OrderStatus
	CommitStock   bool
	RestoreStock  bool
	PaymentStatus PaymentStatus
}

// IsNoop reports whether applying the transition leaves the order untouched.
func (t Transition) IsNoop(order Order) bool {
	return t.From == t.To && !t.CommitStock && !t.RestoreStock && t.PaymentStatus == order.PaymentStatus
}

// PlanTransition decides whether order may move to target and what has to happen to stock.
// The stockDeducted flag, not the current status, decides whether a commit or restore is due.
func PlanTransition(order Order, target OrderStatus) (Transition, error) {
	if _, err := ParseOrderStatus(string(target)); err != nil {
		return Transition{}, err
	}

	t := Transition{
		From:          order.Status,
		To:            target,
		PaymentStatus: order.PaymentStatus,
	}

	if target == order.Status {
		t.CommitStock = HoldsStock(target) && !order.StockDeducted
		return t, nil
	}

	if order.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	if target == StatusCancelled {
		t.RestoreStock = order.StockDeducted
		if order.StockDeducted || order.PaymentStatus == PaymentPaid {
			t.PaymentStatus = PaymentRefunded
		}
		return t, nil
	}

	if statusRank[target] < statusRank[order.Status] {
		return Transition{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, target)
	}

	t.CommitStock = HoldsStock(target) && !order.StockDeducted

	if target == StatusDelivered && order.PaymentMethod == PaymentMethodCOD {
		t.PaymentStatus = PaymentPaid
	}

	return t, nil
}

// ApplyTransition writes a planned transition onto the order once its stock effects have succeeded.
func (o *Order) ApplyTransition(t Transition, now time.Time) {
	o.Status = t.To
	o.PaymentStatus = t.PaymentStatus
	if t.CommitStock {
		o.StockDeducted = true
	}
	if t.RestoreStock {
		o.StockDeducted = false
	}
	o.UpdatedAt = now
}
