package orders

import (
	"fmt"
	"time"
)

// EmptyCartError: checkout dicoba tanpa item di keranjang.
type EmptyCartError struct {
	UserID string
}

func (e *EmptyCartError) Error() string {
	return fmt.Sprintf("cart is empty for user %s", e.UserID)
}

type OrderNotFoundError struct {
	ID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order not found: %s", e.ID)
}

// InvalidTransitionError membawa status saat ini supaya caller bisa
// menjelaskan kenapa transisi ditolak.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// ReopenNotAllowedError: pembatalan oleh staff tidak bisa di-reopen
// sendiri oleh pelanggan.
type ReopenNotAllowedError struct {
	ID     string
	Reason string
}

func (e *ReopenNotAllowedError) Error() string {
	return fmt.Sprintf("order %s: cancel reason %q is not customer-reopenable", e.ID, e.Reason)
}

type ReopenWindowExpiredError struct {
	ID    string
	Until time.Time
}

func (e *ReopenWindowExpiredError) Error() string {
	return fmt.Sprintf("order %s: reopen window closed at %s", e.ID, e.Until.Format(time.RFC3339))
}

type ReopenQuotaExceededError struct {
	ID    string
	Count int
	Max   int
}

func (e *ReopenQuotaExceededError) Error() string {
	return fmt.Sprintf("order %s: reopen quota exceeded (%d/%d)", e.ID, e.Count, e.Max)
}

type ReopenCooldownError struct {
	ID      string
	RetryAt time.Time
}

func (e *ReopenCooldownError) Error() string {
	return fmt.Sprintf("order %s: reopen on cooldown until %s", e.ID, e.RetryAt.Format(time.RFC3339))
}
