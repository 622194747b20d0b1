package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "warungpay/internal/kafka"
	"warungpay/internal/orders"
	"warungpay/internal/redisx"
)

// GatewayHandler adalah permukaan konfirmasi pembayaran: klik
// dashboard, webhook, dan perintah chat semuanya mendarat ke corong
// Manager yang sama lewat handler ini.
type GatewayHandler struct {
	Manager  *orders.Manager
	Producer *kafkax.Producer // boleh nil di test
	Redis    *redis.Client    // boleh nil di test
	Service  string
}

func (h *GatewayHandler) Register(r *chi.Mux) {
	r.Route("/carts/{userID}", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Delete("/items/{itemID}", h.removeItem)
		r.Put("/notes", h.setCartNotes)
	})

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Post("/confirm", h.confirmPayment)
		r.Post("/reject", h.rejectPayment)
		r.Post("/ready", h.markReady)
		r.Post("/complete", h.markCompleted)
		r.Post("/cash/accept", h.acceptCash)
		r.Post("/cash/cancel", h.cancelCash)
		r.Post("/cash/reopen", h.reopenCash)
		r.Post("/cash/reopen-staff", h.reopenCashByStaff)
	})

	r.Post("/webhooks/payment", h.paymentWebhook)
}

// ---- keranjang ----

func (h *GatewayHandler) addItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var it orders.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if it.ID == "" || it.Name == "" || it.Qty <= 0 || it.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.AddItem(userID, it))
}

func (h *GatewayHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Manager.RemoveItem(chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not in cart"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *GatewayHandler) setCartNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !h.Manager.SetCartNotes(chi.URLParam(r, "userID"), req.Notes) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GatewayHandler) getCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Manager.Cart(chi.URLParam(r, "userID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart not found"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *GatewayHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.Manager.ClearCart(chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

// ---- order ----

type createOrderReq struct {
	UserID        string `json:"user_id"`
	CustomerName  string `json:"customer_name"`
	PaymentMethod string `json:"payment_method"` // QRIS | CASH
}

func (h *GatewayHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	method := orders.PaymentMethod(req.PaymentMethod)
	if req.UserID == "" || (method != orders.MethodQRIS && method != orders.MethodCash) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.CreateOrder(ctx, req.UserID, req.CustomerName, method)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventOrderCreated)
	writeJSON(w, http.StatusCreated, o)
}

func (h *GatewayHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// fast path: cache status di redis, tabel Manager tidak disentuh
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, id)
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, ok := h.Manager.GetOrder(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *GatewayHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	status := orders.Status(r.URL.Query().Get("status"))
	if status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status filter"})
		return
	}
	list := h.Manager.ListByStatus(status)
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

type confirmReq struct {
	Proof string `json:"proof,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Via   string `json:"via,omitempty"`
	Actor string `json:"actor,omitempty"`
}

func (h *GatewayHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	meta := &orders.TransitionMeta{PaymentProof: req.Proof, PaymentRef: req.Ref, PaidVia: req.Via, Actor: req.Actor}
	h.transition(w, r, orders.StatusPaid, meta, orders.EventOrderPaid)
}

func (h *GatewayHandler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	meta := &orders.TransitionMeta{Actor: req.Actor, Note: req.Reason}
	h.transition(w, r, orders.StatusCancelled, meta, orders.EventOrderRejected)
}

func (h *GatewayHandler) markReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, orders.StatusReady, nil, orders.EventOrderReady)
}

func (h *GatewayHandler) markCompleted(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, orders.StatusCompleted, nil, orders.EventOrderDone)
}

func (h *GatewayHandler) transition(w http.ResponseWriter, r *http.Request, next orders.Status, meta *orders.TransitionMeta, event string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.UpdateStatus(ctx, chi.URLParam(r, "id"), next, meta)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, event)
	writeJSON(w, http.StatusOK, o)
}

// ---- sub-flow tunai ----

func (h *GatewayHandler) acceptCash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AcceptedBy string `json:"accepted_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.AcceptCash(ctx, chi.URLParam(r, "id"), req.AcceptedBy)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventCashAccepted)
	writeJSON(w, http.StatusOK, o)
}

func (h *GatewayHandler) cancelCash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason    string `json:"reason"`
		WindowMin int    `json:"window_min,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "staff_cancel"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.CancelCash(ctx, chi.URLParam(r, "id"), req.Reason, time.Duration(req.WindowMin)*time.Minute)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventCashCancelled)
	writeJSON(w, http.StatusOK, o)
}

func (h *GatewayHandler) reopenCash(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.ReopenCash(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventCashReopened)
	writeJSON(w, http.StatusOK, o)
}

func (h *GatewayHandler) reopenCashByStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Manager.ReopenCashByStaff(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventCashReopened)
	writeJSON(w, http.StatusOK, o)
}

// ---- webhook ----

type paymentWebhookReq struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Ref     string `json:"ref,omitempty"`
}

// paymentWebhook: callback dari agregator pembayaran. Dedup via redis
// supaya retry agregator tidak diproses dua kali; balapan dengan klik
// dashboard diselesaikan oleh per-order lock di Manager.
func (h *GatewayHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.EventID == "" || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "webhook", req.EventID)
		if exists, _ := redisx.Exists(ctx, h.Redis, dkey); exists {
			writeJSON(w, http.StatusOK, map[string]string{"result": "duplicate"})
			return
		}
		_ = h.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	o, err := h.Manager.UpdateStatus(ctx, req.OrderID, orders.StatusPaid,
		&orders.TransitionMeta{PaymentRef: req.Ref, PaidVia: "webhook"})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.afterTransition(ctx, o, orders.EventOrderPaid)
	writeJSON(w, http.StatusOK, o)
}

// ---- shared helpers ----

func (h *GatewayHandler) afterTransition(ctx context.Context, o *orders.Order, event string) {
	h.cacheStatus(ctx, o)
	h.publish(o, event)
}

func (h *GatewayHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"order_id": o.ID, "status": o.Status, "total": o.Pricing.Total})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *GatewayHandler) publish(o *orders.Order, event string) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.EventPayloadOf(o)),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr memetakan taksonomi error lifecycle ke kode HTTP; detail di
// body supaya caller bisa menjelaskan penolakan ke user.
func writeErr(w http.ResponseWriter, err error) {
	var (
		empty    *orders.EmptyCartError
		notFound *orders.OrderNotFoundError
		invalid  *orders.InvalidTransitionError
		noReopen *orders.ReopenNotAllowedError
		window   *orders.ReopenWindowExpiredError
		quota    *orders.ReopenQuotaExceededError
		cooldown *orders.ReopenCooldownError
	)
	switch {
	case errors.As(err, &empty):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": err.Error(), "current_status": invalid.From,
		})
	case errors.As(err, &noReopen), errors.As(err, &window), errors.As(err, &quota):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": err.Error(), "retry_at": cooldown.RetryAt,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
