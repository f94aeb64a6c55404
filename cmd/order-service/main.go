package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/medsupply-orders/internal/api"
	catalogapp "github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/http"
	catalogpg "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/medsupply-orders/internal/memstore"
	"github.com/dmehra2102/medsupply-orders/internal/order/application"
	orderhttp "github.com/dmehra2102/medsupply-orders/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/medsupply-orders/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/medsupply-orders/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/medsupply-orders/pkg/config"
	"github.com/dmehra2102/medsupply-orders/pkg/database"
	"github.com/dmehra2102/medsupply-orders/pkg/idempotency"
	"github.com/dmehra2102/medsupply-orders/pkg/logging"
	"github.com/dmehra2102/medsupply-orders/pkg/outbox"
	"github.com/dmehra2102/medsupply-orders/pkg/shutdown"
	"github.com/dmehra2102/medsupply-orders/pkg/tracing"
)

func main() {
	cfg, err := config.LoadServer(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	var (
		orders   application.OrderRepository
		products catalogapp.ProductRepository
		health   api.HealthCheck
	)
	switch cfg.Storage {
	case config.StorageMemory:
		store := memstore.New()
		orders, products = store, store
		log.Warn("using in-memory storage; data is lost on restart")
	default:
		pool, err := database.Connect(ctx, log, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		orders = orderpg.NewRepository(log, pool)
		products = catalogpg.NewRepository(log, pool)
		health = pool.Ping

		writer := orderkafka.NewWriter(strings.Split(cfg.KafkaAddr, ","), log)
		defer writer.Close()
		startRelay(ctx, log, pool, writer, cfg.OutboxTopic)
	}

	var cache application.IdempotencyCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, replays resolved by the database only", "addr", cfg.RedisAddr, "err", err)
		} else {
			cache = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		}
	}

	handler := api.NewRouter(log,
		orderhttp.NewHandler(log, application.NewService(log, orders, cache)),
		cataloghttp.NewHandler(log, catalogapp.NewService(log, products)),
		health,
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("order-service shutdown complete")
}

func startRelay(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool, producer outbox.Producer, topic string) {
	host, _ := os.Hostname()
	relay := outbox.NewRelay(log,
		orderpg.NewOutboxStore(log, pool),
		outbox.NewDispatcher(log, producer, topic),
		"order-service-"+host,
	)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()
}
