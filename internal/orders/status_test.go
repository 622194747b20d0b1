package orders

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusPendingPayment},
		{StatusDraft, StatusPendingCash},
		{StatusPendingPayment, StatusPaid},
		{StatusPendingPayment, StatusExpired},
		{StatusPendingPayment, StatusCancelled},
		{StatusPendingCash, StatusProcessing},
		{StatusPendingCash, StatusCancelled},
		{StatusPaid, StatusProcessing},
		{StatusProcessing, StatusReady},
		{StatusReady, StatusCompleted},
		{StatusCancelled, StatusPendingCash}, // reopen tunai
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusReady, StatusPendingPayment},
		{StatusPaid, StatusPendingPayment},
		{StatusCompleted, StatusCancelled},
		{StatusExpired, StatusPendingPayment},
		{StatusExpired, StatusPendingCash},
		{StatusPendingCash, StatusPaid},
		{StatusProcessing, StatusCompleted},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be forbidden", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusPendingPayment, StatusPendingCash, StatusPaid, StatusProcessing, StatusReady} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
