package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"warungpay/internal/orders"
)

type captureSender struct {
	userID  string
	content string
	calls   int
}

func (c *captureSender) Send(_ context.Context, userID, content string) error {
	c.userID = userID
	c.content = content
	c.calls++
	return nil
}

func envelopeMsg(t *testing.T, eventType string, p orders.OrderEventPayload) kafkago.Message {
	t.Helper()
	payload, _ := json.Marshal(p)
	env := orders.Envelope{
		EventID:       "ev-1",
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: p.OrderID,
		Payload:       payload,
	}
	b, _ := json.Marshal(env)
	return kafkago.Message{Value: b}
}

func TestHandleEvent_SendsToCustomer(t *testing.T) {
	sender := &captureSender{}
	svc := &Service{Sender: sender}

	p := orders.OrderEventPayload{
		OrderID:       "ORD-12345678",
		UserID:        "u1",
		Status:        orders.StatusPaid,
		PaymentMethod: orders.MethodQRIS,
		Total:         34000,
	}
	if err := svc.HandleEvent(context.Background(), envelopeMsg(t, orders.EventOrderPaid, p)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if sender.calls != 1 || sender.userID != "u1" {
		t.Fatalf("message not delivered: %+v", sender)
	}
	if !strings.Contains(sender.content, "ORD-12345678") {
		t.Errorf("message should mention the order id: %q", sender.content)
	}
}

func TestHandleEvent_BadEnvelope(t *testing.T) {
	svc := &Service{Sender: &captureSender{}}
	if err := svc.HandleEvent(context.Background(), kafkago.Message{Value: []byte("{nope")}); err == nil {
		t.Errorf("malformed envelope should surface an error for redelivery")
	}
}

func TestCompose(t *testing.T) {
	until := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		event   string
		payload orders.OrderEventPayload
		wants   []string
	}{
		{
			"created cash",
			orders.EventOrderCreated,
			orders.OrderEventPayload{OrderID: "ORD-1", PaymentMethod: orders.MethodCash, Total: 24000},
			[]string{"ORD-1", "tunai", "24000"},
		},
		{
			"created qris",
			orders.EventOrderCreated,
			orders.OrderEventPayload{OrderID: "ORD-1", PaymentMethod: orders.MethodQRIS, Total: 24000},
			[]string{"scan", "24000"},
		},
		{
			"cash timeout mentions reopen window",
			orders.EventCashCancelled,
			orders.OrderEventPayload{OrderID: "ORD-1", CancelReason: orders.ReasonCashTimeout, CanReopenUntil: &until},
			[]string{"dibatalkan", "dibuka lagi"},
		},
		{
			"staff cancel has no reopen hint",
			orders.EventCashCancelled,
			orders.OrderEventPayload{OrderID: "ORD-1", CancelReason: "staff_cancel"},
			[]string{"dibatalkan"},
		},
		{
			"ready",
			orders.EventOrderReady,
			orders.OrderEventPayload{OrderID: "ORD-1"},
			[]string{"siap diambil"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compose(tc.event, tc.payload)
			for _, w := range tc.wants {
				if !strings.Contains(got, w) {
					t.Errorf("Compose(%s) = %q, missing %q", tc.event, got, w)
				}
			}
		})
	}

	if got := Compose("SomethingInternal", orders.OrderEventPayload{}); got != "" {
		t.Errorf("unknown event should compose nothing, got %q", got)
	}
}
