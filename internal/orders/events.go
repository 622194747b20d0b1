package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventOrderPaid     = "OrderPaid"
	EventOrderReady    = "OrderReady"
	EventOrderDone     = "OrderCompleted"
	EventOrderRejected = "OrderRejected"
	EventOrderExpired  = "OrderExpired"
	EventCashAccepted  = "CashAccepted"
	EventCashCancelled = "CashCancelled"
	EventCashReopened  = "CashReopened"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "warungpay-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// Payload umum untuk semua event transisi; kolom tunai/QRIS diisi
// sesuai event-nya.
type OrderEventPayload struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Total         int64         `json:"total"`

	CancelReason   string     `json:"cancel_reason,omitempty"`
	CanReopenUntil *time.Time `json:"can_reopen_until,omitempty"`
	AcceptedBy     string     `json:"accepted_by,omitempty"`
}

func EventPayloadOf(o *Order) OrderEventPayload {
	return OrderEventPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		CustomerName:   o.CustomerName,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		Total:          o.Pricing.Total,
		CancelReason:   o.CashCancelReason,
		CanReopenUntil: o.CanReopenUntil,
		AcceptedBy:     o.CashAcceptedBy,
	}
}
