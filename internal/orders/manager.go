package orders

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"warungpay/internal/pricing"
	"warungpay/internal/qris"
)

// Store adalah mirror durable write-through. Tidak pernah memulai
// mutasi sendiri; hanya mencerminkan keputusan Manager.
type Store interface {
	LoadAll(ctx context.Context) ([]*Order, error)
	Save(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) (bool, error)
}

type Config struct {
	PaymentTimeout time.Duration // masa berlaku QRIS
	CashTimeout    time.Duration // batas tunggu bayar tunai
	ReopenWindow   time.Duration // jendela reopen setelah cash_timeout
	ReopenCooldown time.Duration // jeda minimal sebelum reopen pelanggan
	MaxReopen      int           // kuota reopen per order
	SessionTTL     time.Duration // idle maksimum keranjang

	Fee          pricing.FeePolicy
	QRISTemplate string
}

func (c *Config) setDefaults() {
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 15 * time.Minute
	}
	if c.CashTimeout <= 0 {
		c.CashTimeout = 30 * time.Minute
	}
	if c.ReopenWindow <= 0 {
		c.ReopenWindow = 60 * time.Minute
	}
	if c.ReopenCooldown <= 0 {
		c.ReopenCooldown = 3 * time.Minute
	}
	if c.MaxReopen <= 0 {
		c.MaxReopen = 1
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
}

// TransitionMeta adalah payload transisi yang di-enumerasi; tidak ada
// merge objek bebas supaya field liar tidak bisa merusak record.
type TransitionMeta struct {
	PaymentProof string
	PaymentRef   string
	PaidVia      string
	Actor        string
	Note         string
}

// Manager memegang tabel order & session in-memory sebagai source of
// truth selama proses hidup. Mutasi diserialisasi per order lewat
// keyed lock (dashboard vs webhook tidak bisa sama-sama sukses);
// penulisan field selalu di bawah mu supaya pembaca tidak balapan.
// Sweep memakai entry point ber-lock yang sama, tidak ada jalan pintas.
type Manager struct {
	cfg   Config
	store Store
	now   func() time.Time

	mu       sync.RWMutex
	orders   map[string]*Order
	sessions map[string]*Session

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	retryMu sync.Mutex
	retry   map[string]struct{} // order id yang gagal di-persist
}

func NewManager(store Store, cfg Config) *Manager {
	cfg.setDefaults()
	return &Manager{
		cfg:      cfg,
		store:    store,
		now:      time.Now,
		orders:   make(map[string]*Order),
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
		retry:    make(map[string]struct{}),
	}
}

// Rehydrate memuat ulang snapshot dari store saat startup.
func (m *Manager) Rehydrate(ctx context.Context) error {
	all, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range all {
		m.orders[o.ID] = o
	}
	return nil
}

func (m *Manager) lockOrder(id string) func() {
	m.lockMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

// ---- keranjang / session ----

func (m *Manager) AddItem(userID string, it Item) *Session {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &Session{UserID: userID, CreatedAt: now}
		m.sessions[userID] = s
	}
	s.Items = append(s.Items, it)
	s.UpdatedAt = now
	return s.Clone()
}

func (m *Manager) RemoveItem(userID, itemID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	kept := s.Items[:0]
	removed := false
	for _, it := range s.Items {
		if !removed && it.ID == itemID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.Items = kept
	s.UpdatedAt = m.now()
	return s.Clone(), removed
}

func (m *Manager) SetCartNotes(userID, notes string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	s.Notes = notes
	s.UpdatedAt = m.now()
	return true
}

func (m *Manager) Cart(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *Manager) ClearCart(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// ---- lifecycle ----

// CreateOrder mengubah keranjang jadi Order: hitung pricing (fee
// termasuk), pasang expiry sesuai metode, generate kode QRIS untuk
// jalur scan, simpan write-through, lalu kosongkan keranjang.
func (m *Manager) CreateOrder(ctx context.Context, userID, customerName string, method PaymentMethod) (*Order, error) {
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || len(s.Items) == 0 {
		m.mu.Unlock()
		return nil, &EmptyCartError{UserID: userID}
	}
	items := cloneItems(s.Items)
	notes := s.Notes
	m.mu.Unlock()

	br := pricing.Calculate(toLines(items), m.cfg.Fee)
	o := &Order{
		ID:            newOrderID(now.UnixMilli()),
		UserID:        userID,
		CustomerName:  customerName,
		Items:         items,
		Notes:         notes,
		Pricing:       Pricing{Subtotal: br.Subtotal, Fee: br.Fee, Total: br.Total},
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch method {
	case MethodCash:
		o.Status = StatusPendingCash
		exp := now.Add(m.cfg.CashTimeout)
		o.CashExpiresAt = &exp
	default:
		o.Status = StatusPendingPayment
		exp := now.Add(m.cfg.PaymentTimeout)
		o.PaymentExpiry = &exp

		// Nominal yang di-encode adalah subtotal; tag fee di kode
		// membawa sisanya sehingga scanner menagih total yang sama.
		code, err := qris.Generate(m.cfg.QRISTemplate, br.Subtotal, m.cfg.Fee)
		if err != nil {
			return nil, fmt.Errorf("generate qris for %s: %w", o.ID, err)
		}
		if !qris.Validate(code) {
			return nil, fmt.Errorf("qris validation failed for %s", o.ID)
		}
		o.QRISCode = code
		o.QRISGenerated = true
	}

	m.mu.Lock()
	m.orders[o.ID] = o
	delete(m.sessions, userID)
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

func (m *Manager) GetOrder(id string) (*Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (m *Manager) ListByStatus(status Status) []*Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, o.Clone())
		}
	}
	return out
}

// UpdateStatus adalah corong tunggal semua trigger eksternal
// (dashboard, webhook, chat). Satu panggilan = satu transisi logis;
// snapshot yang di-persist selalu mencerminkan itu.
func (m *Manager) UpdateStatus(ctx context.Context, id string, next Status, meta *TransitionMeta) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	if !CanTransition(o.Status, next) {
		return nil, &InvalidTransitionError{ID: id, From: o.Status, To: next}
	}

	now := m.now()
	m.mu.Lock()
	m.applyTransition(o, next, meta, now)
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

// applyTransition hanya boleh dipanggil dengan keyed lock + mu dipegang.
func (m *Manager) applyTransition(o *Order, next Status, meta *TransitionMeta, now time.Time) {
	o.Status = next
	o.UpdatedAt = now
	switch next {
	case StatusPaid:
		o.PaidAt = &now
	case StatusProcessing:
		// confirmedAt hanya di-stamp sekali, di entry pertama.
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = &now
		}
	case StatusCompleted:
		o.CompletedAt = &now
	}
	if meta != nil {
		if meta.PaymentProof != "" {
			o.PaymentProof = meta.PaymentProof
		}
		if meta.PaymentRef != "" {
			o.PaymentRef = meta.PaymentRef
		}
		if meta.PaidVia != "" {
			o.PaidVia = meta.PaidVia
		}
		if meta.Actor != "" {
			o.UpdatedBy = meta.Actor
		}
		if meta.Note != "" {
			o.Notes = meta.Note
		}
	}
}

// ---- sub-flow tunai ----

func (m *Manager) AcceptCash(ctx context.Context, id, acceptedBy string) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	if o.Status != StatusPendingCash {
		return nil, &InvalidTransitionError{ID: id, From: o.Status, To: StatusProcessing}
	}

	now := m.now()
	m.mu.Lock()
	m.applyTransition(o, StatusProcessing, nil, now)
	o.CashAcceptedAt = &now
	o.CashAcceptedBy = acceptedBy
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

// CancelCash: window <= 0 memakai default config. Idempoten terhadap
// order yang sudah cancelled (hanya re-stamp, tidak dobel transisi).
func (m *Manager) CancelCash(ctx context.Context, id, reason string, window time.Duration) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	if o.Status != StatusPendingCash && o.Status != StatusCancelled {
		return nil, &InvalidTransitionError{ID: id, From: o.Status, To: StatusCancelled}
	}

	m.mu.Lock()
	m.cancelCashLocked(o, reason, window, m.now())
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

func (m *Manager) cancelCashLocked(o *Order, reason string, window time.Duration, now time.Time) {
	if window <= 0 {
		window = m.cfg.ReopenWindow
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	o.CashCancelledAt = &now
	o.CashCancelReason = reason
	until := now.Add(window)
	o.CanReopenUntil = &until
}

// ReopenCash: jalur self-service pelanggan. Hanya untuk pembatalan
// otomatis cash_timeout, dalam jendela reopen, lewat cooldown, dan
// selama kuota belum habis. Tidak menambah reopenCount — kuota itu
// jatah override staff, bukan jatah pelanggan.
func (m *Manager) ReopenCash(ctx context.Context, id string) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o, err := m.reopenable(id)
	if err != nil {
		return nil, err
	}
	if o.CashCancelReason != ReasonCashTimeout {
		return nil, &ReopenNotAllowedError{ID: id, Reason: o.CashCancelReason}
	}
	now := m.now()
	if o.CashCancelledAt != nil {
		if retryAt := o.CashCancelledAt.Add(m.cfg.ReopenCooldown); now.Before(retryAt) {
			return nil, &ReopenCooldownError{ID: id, RetryAt: retryAt}
		}
	}

	m.mu.Lock()
	m.reopenLocked(o, now)
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

// ReopenCashByStaff: tanpa batasan alasan/cooldown, tapi memakan kuota.
func (m *Manager) ReopenCashByStaff(ctx context.Context, id string) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o, err := m.reopenable(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.reopenLocked(o, m.now())
	o.ReopenCount++
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

// reopenable memeriksa prasyarat bersama kedua jalur reopen.
// Dipanggil dengan per-order lock sudah dipegang.
func (m *Manager) reopenable(id string) (*Order, error) {
	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	if o.Status != StatusCancelled || o.PaymentMethod != MethodCash {
		return nil, &InvalidTransitionError{ID: id, From: o.Status, To: StatusPendingCash}
	}
	now := m.now()
	if o.CanReopenUntil == nil || now.After(*o.CanReopenUntil) {
		var until time.Time
		if o.CanReopenUntil != nil {
			until = *o.CanReopenUntil
		}
		return nil, &ReopenWindowExpiredError{ID: id, Until: until}
	}
	if o.ReopenCount >= m.cfg.MaxReopen {
		return nil, &ReopenQuotaExceededError{ID: id, Count: o.ReopenCount, Max: m.cfg.MaxReopen}
	}
	return o, nil
}

func (m *Manager) reopenLocked(o *Order, now time.Time) {
	o.Status = StatusPendingCash
	o.UpdatedAt = now
	o.CashCancelledAt = nil
	o.CashCancelReason = ""
	o.CanReopenUntil = nil
	exp := now.Add(m.cfg.CashTimeout)
	o.CashExpiresAt = &exp
}

// ---- sweep ----

type SweepResult struct {
	ExpiredQRIS   []*Order
	CancelledCash []*Order
}

// SweepExpired menegakkan transisi berbasis jam: pending_payment yang
// lewat paymentExpiry jadi expired (terminal), pending_cash yang lewat
// cashExpiresAt dibatalkan dengan alasan cash_timeout — satu-satunya
// jalur yang menghasilkan alasan reopenable itu. Idempoten: status
// dicek ulang di bawah per-order lock sebelum bertindak. Sekalian
// membersihkan session idle dan me-retry persist yang gagal.
func (m *Manager) SweepExpired(ctx context.Context) SweepResult {
	now := m.now()

	m.mu.RLock()
	var dueQRIS, dueCash []string
	for id, o := range m.orders {
		switch {
		case o.Status == StatusPendingPayment && o.PaymentExpiry != nil && now.After(*o.PaymentExpiry):
			dueQRIS = append(dueQRIS, id)
		case o.Status == StatusPendingCash && o.CashExpiresAt != nil && now.After(*o.CashExpiresAt):
			dueCash = append(dueCash, id)
		}
	}
	m.mu.RUnlock()

	var res SweepResult
	for _, id := range dueQRIS {
		o, err := m.expireIfDue(ctx, id, now)
		if err != nil {
			log.Printf("sweep: expire %s: %v", id, err)
			continue
		}
		if o != nil {
			res.ExpiredQRIS = append(res.ExpiredQRIS, o)
		}
	}
	for _, id := range dueCash {
		o, err := m.cancelCashIfDue(ctx, id, now)
		if err != nil {
			log.Printf("sweep: cash timeout %s: %v", id, err)
			continue
		}
		if o != nil {
			res.CancelledCash = append(res.CancelledCash, o)
		}
	}

	m.sweepSessions(now)
	m.flushRetries(ctx)
	return res
}

func (m *Manager) expireIfDue(ctx context.Context, id string, now time.Time) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	// bisa saja keburu dibayar/dibatalkan sejak snapshot
	if o.Status != StatusPendingPayment || o.PaymentExpiry == nil || !now.After(*o.PaymentExpiry) {
		return nil, nil
	}

	m.mu.Lock()
	m.applyTransition(o, StatusExpired, nil, now)
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

func (m *Manager) cancelCashIfDue(ctx context.Context, id string, now time.Time) (*Order, error) {
	unlock := m.lockOrder(id)
	defer unlock()

	o := m.lookup(id)
	if o == nil {
		return nil, &OrderNotFoundError{ID: id}
	}
	if o.Status != StatusPendingCash || o.CashExpiresAt == nil || !now.After(*o.CashExpiresAt) {
		return nil, nil
	}

	m.mu.Lock()
	m.cancelCashLocked(o, ReasonCashTimeout, m.cfg.ReopenWindow, now)
	snap := o.Clone()
	m.mu.Unlock()

	m.persist(ctx, snap)
	return snap, nil
}

func (m *Manager) sweepSessions(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, s := range m.sessions {
		idle := s.UpdatedAt
		if idle.IsZero() {
			idle = s.CreatedAt
		}
		if now.Sub(idle) > m.cfg.SessionTTL {
			delete(m.sessions, uid)
		}
	}
}

// ---- persistence ----

func (m *Manager) lookup(id string) *Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

func (m *Manager) snapshot(id string) *Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	return o.Clone()
}

// persist menulis snapshot secara sinkron. Kalau store lagi tidak
// sehat, in-memory tetap otoritatif; id diantrekan dan dicoba ulang
// di tick sweep berikutnya.
func (m *Manager) persist(ctx context.Context, snap *Order) {
	if err := m.store.Save(ctx, snap); err != nil {
		log.Printf("persist %s: %v (queued for retry)", snap.ID, err)
		m.retryMu.Lock()
		m.retry[snap.ID] = struct{}{}
		m.retryMu.Unlock()
	}
}

func (m *Manager) flushRetries(ctx context.Context) {
	m.retryMu.Lock()
	ids := make([]string, 0, len(m.retry))
	for id := range m.retry {
		ids = append(ids, id)
	}
	m.retryMu.Unlock()

	for _, id := range ids {
		snap := m.snapshot(id)
		if snap != nil {
			if err := m.store.Save(ctx, snap); err != nil {
				log.Printf("retry persist %s: %v", id, err)
				continue
			}
		}
		m.retryMu.Lock()
		delete(m.retry, id)
		m.retryMu.Unlock()
	}
}

func toLines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		l := pricing.Line{Price: it.Price, Qty: int64(it.Qty)}
		for _, a := range it.Addons {
			l.Addons = append(l.Addons, pricing.Addon{Price: a.Price, Qty: int64(a.Qty)})
		}
		lines = append(lines, l)
	}
	return lines
}
