package orders

import "time"

type PaymentMethod string

const (
	MethodQRIS PaymentMethod = "QRIS"
	MethodCash PaymentMethod = "CASH"
)

// Alasan pembatalan otomatis oleh sweep; satu-satunya alasan yang
// boleh di-reopen sendiri oleh pelanggan.
const ReasonCashTimeout = "cash_timeout"

type Addon struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Qty   int    `json:"qty"`
}

type Item struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  int64   `json:"price"` // rupiah per unit
	Qty    int     `json:"qty"`
	Notes  string  `json:"notes,omitempty"`
	Addons []Addon `json:"addons,omitempty"`
}

// Invariant: Total == Subtotal + Fee.
type Pricing struct {
	Subtotal int64 `json:"subtotal"`
	Fee      int64 `json:"fee"`
	Total    int64 `json:"total"`
}

type Order struct {
	ID            string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	CustomerName  string        `json:"customer_name"`
	Items         []Item        `json:"items"`
	Notes         string        `json:"notes,omitempty"`
	Pricing       Pricing       `json:"pricing"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PaymentExpiry *time.Time `json:"payment_expiry,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Sub-flow tunai.
	CashExpiresAt    *time.Time `json:"cash_expires_at,omitempty"`
	CashAcceptedAt   *time.Time `json:"cash_accepted_at,omitempty"`
	CashAcceptedBy   string     `json:"cash_accepted_by,omitempty"`
	CashCancelledAt  *time.Time `json:"cash_cancelled_at,omitempty"`
	CashCancelReason string     `json:"cash_cancel_reason,omitempty"`
	CanReopenUntil   *time.Time `json:"can_reopen_until,omitempty"`
	ReopenCount      int        `json:"reopen_count,omitempty"`

	// Jalur QRIS.
	QRISCode      string `json:"qris_code,omitempty"`
	QRISGenerated bool   `json:"qris_generated,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`

	PaymentProof string `json:"payment_proof,omitempty"`
	PaidVia      string `json:"paid_via,omitempty"`   // dashboard | webhook | chat
	UpdatedBy    string `json:"updated_by,omitempty"` // aktor transisi terakhir
}

// Clone mengembalikan salinan yang aman dimutasi caller.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = cloneItems(o.Items)
	return &c
}

// Session adalah keranjang transien per user, terpisah dari Order.
type Session struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Clone() *Session {
	c := *s
	c.Items = cloneItems(s.Items)
	return &c
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Addons != nil {
			adds := make([]Addon, len(out[i].Addons))
			copy(adds, out[i].Addons)
			out[i].Addons = adds
		}
	}
	return out
}
