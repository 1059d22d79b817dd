package kafka

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/oklog/ulid/v2"
)

// Event types carried in the event_type record header.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

const schemaVersion = "1.0"

// Envelope is the JSON value of every record on the orders topic.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	OrderID    string          `json:"order_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type statusChangedPayload struct {
	From          domain.OrderStatus   `json:"from"`
	To            domain.OrderStatus   `json:"to"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	StockDeducted bool                 `json:"stock_deducted"`
}

func newEnvelope(eventType, orderID string, payload any, now time.Time) (Envelope, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("generate event id: %w", err)
	}

	env := Envelope{
		EventID:    id.String(),
		EventType:  eventType,
		OccurredAt: now.UTC(),
		OrderID:    orderID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		env.Payload = raw
	}
	return env, nil
}
