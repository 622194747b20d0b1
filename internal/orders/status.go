package orders

type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusPendingCash    Status = "pending_cash"
	StatusPaid           Status = "paid"
	StatusProcessing     Status = "processing"
	StatusReady          Status = "ready"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// Forward-only, kecuali cancelled -> pending_cash (reopen jalur tunai).
// Edge "non-terminal -> cancelled" adalah override manual dari staff.
var validNext = map[Status]map[Status]bool{
	StatusDraft:          {StatusPendingPayment: true, StatusPendingCash: true, StatusCancelled: true},
	StatusPendingPayment: {StatusPaid: true, StatusExpired: true, StatusCancelled: true},
	StatusPendingCash:    {StatusProcessing: true, StatusCancelled: true},
	StatusPaid:           {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing:     {StatusReady: true, StatusCancelled: true},
	StatusReady:          {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:      {},
	StatusCancelled:      {StatusPendingCash: true},
	StatusExpired:        {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal: tidak ada transisi keluar via jalur umum. Reopen tunai
// dijaga terpisah oleh Manager, bukan lewat UpdateStatus.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}
