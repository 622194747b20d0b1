package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"warungpay/internal/config"
	"warungpay/internal/httpx"
	kafkax "warungpay/internal/kafka"
	"warungpay/internal/orders"
	"warungpay/internal/redisx"
	"warungpay/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := store.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024)
	prod.Start(ctx)

	// Manager + rehydrate dari mirror durable
	mgr := orders.NewManager(&store.Postgres{DB: db}, cfg.ManagerConfig())
	if err := mgr.Rehydrate(ctx); err != nil {
		log.Fatalf("rehydrate: %v", err)
	}

	router := httpx.NewRouter()
	gh := &httpx.GatewayHandler{
		Manager:  mgr,
		Producer: prod,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	gh.Register(router)

	// sweep berkala: expiry QRIS + timeout tunai; hasilnya dipublish
	// supaya notifier bisa mengabari pelanggan
	go runSweep(ctx, mgr, prod, cfg)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop loop producer & sweep
	prod.WaitClosed() // drain
}

func runSweep(ctx context.Context, mgr *orders.Manager, prod *kafkax.Producer, cfg config.Config) {
	t := time.NewTicker(cfg.SweepInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res := mgr.SweepExpired(ctx)
			for _, o := range res.ExpiredQRIS {
				publishEvent(prod, cfg.ServiceName, o, orders.EventOrderExpired)
			}
			for _, o := range res.CancelledCash {
				publishEvent(prod, cfg.ServiceName, o, orders.EventCashCancelled)
			}
			if n := len(res.ExpiredQRIS) + len(res.CancelledCash); n > 0 {
				log.Printf("sweep: %d order ditransisikan", n)
			}
		}
	}
}

func publishEvent(prod *kafkax.Producer, producer string, o *orders.Order, event string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.EventPayloadOf(o)),
	}
	prod.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
