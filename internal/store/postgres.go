// Package store adalah mirror durable untuk tabel order in-memory.
// Blob JSON-nya otoritatif; kolom status/user/metode/total hanya
// denormalisasi untuk lookup ber-index dari dashboard.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"warungpay/internal/orders"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Postgres struct{ DB *pgxpool.Pool }

// LoadAll dipanggil sekali saat startup untuk rehydrate tabel in-memory.
func (s *Postgres) LoadAll(ctx context.Context) ([]*orders.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT blob FROM orders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*orders.Order
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var o orders.Order
		if err := json.Unmarshal(blob, &o); err != nil {
			return nil, fmt.Errorf("decode order blob: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// Save: upsert satu baris per order, dipanggil sinkron setelah tiap
// mutasi Manager.
func (s *Postgres) Save(ctx context.Context, o *orders.Order) error {
	blob, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO orders(id, blob, status, user_id, payment_method, created_at, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET blob = EXCLUDED.blob,
		    status = EXCLUDED.status,
		    total_cents = EXCLUDED.total_cents
	`, o.ID, blob, string(o.Status), o.UserID, string(o.PaymentMethod), o.CreatedAt, o.Pricing.Total)
	return err
}

func (s *Postgres) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
