package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "warungpay/internal/kafka"
	"warungpay/internal/orders"
	"warungpay/internal/redisx"
)

// Service mengubah event transisi jadi pesan chat ke pelanggan.
type Service struct {
	Sender      Sender
	Redis       *redis.Client // boleh nil: dedup dilewati
	ServiceName string
}

// HandleEvent dipasang sebagai handler consumer.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via redis (pakai event_id), pola yang sama dengan webhook
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload)
	if err != nil {
		return err
	}

	text := Compose(env.EventType, p)
	if text == "" {
		return nil // event tanpa pesan pelanggan
	}
	return s.Sender.Send(ctx, p.UserID, text)
}

// Compose merender teks notifikasi per jenis event. Kosong berarti
// event itu tidak perlu pesan ke pelanggan.
func Compose(eventType string, p orders.OrderEventPayload) string {
	switch eventType {
	case orders.EventOrderCreated:
		if p.PaymentMethod == orders.MethodCash {
			return fmt.Sprintf("Pesanan %s dibuat. Silakan bayar tunai di kasir, total Rp%d.", p.OrderID, p.Total)
		}
		return fmt.Sprintf("Pesanan %s dibuat. Silakan scan kode pembayaran, total Rp%d.", p.OrderID, p.Total)
	case orders.EventOrderPaid:
		return fmt.Sprintf("Pembayaran pesanan %s diterima. Pesanan segera diproses.", p.OrderID)
	case orders.EventCashAccepted:
		return fmt.Sprintf("Pembayaran tunai pesanan %s diterima kasir. Pesanan sedang diproses.", p.OrderID)
	case orders.EventOrderReady:
		return fmt.Sprintf("Pesanan %s sudah siap diambil.", p.OrderID)
	case orders.EventOrderDone:
		return fmt.Sprintf("Pesanan %s selesai. Terima kasih!", p.OrderID)
	case orders.EventOrderExpired:
		return fmt.Sprintf("Pesanan %s kedaluwarsa karena belum dibayar. Silakan pesan ulang.", p.OrderID)
	case orders.EventCashCancelled:
		if p.CancelReason == orders.ReasonCashTimeout && p.CanReopenUntil != nil {
			return fmt.Sprintf("Pesanan %s dibatalkan karena melewati batas bayar tunai. Bisa dibuka lagi sampai %s.",
				p.OrderID, p.CanReopenUntil.Local().Format(time.Kitchen))
		}
		return fmt.Sprintf("Pesanan %s dibatalkan.", p.OrderID)
	case orders.EventCashReopened:
		return fmt.Sprintf("Pesanan %s dibuka kembali. Silakan bayar tunai di kasir.", p.OrderID)
	case orders.EventOrderRejected:
		return fmt.Sprintf("Pembayaran pesanan %s ditolak. Hubungi kasir untuk bantuan.", p.OrderID)
	}
	return ""
}
