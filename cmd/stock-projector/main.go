package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	catalogkafka "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/kafka"
	catalogpg "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/medsupply-orders/pkg/config"
	"github.com/dmehra2102/medsupply-orders/pkg/database"
	"github.com/dmehra2102/medsupply-orders/pkg/idempotency"
	"github.com/dmehra2102/medsupply-orders/pkg/logging"
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

	tp, err := tracing.Init(ctx, "stock-projector", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	pool, err := database.Connect(ctx, log, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	projector := application.NewStockProjector(log, catalogpg.NewRepository(log, pool))
	reader := catalogkafka.NewReader(strings.Split(cfg.KafkaAddr, ","), cfg.OutboxTopic, cfg.ConsumerGroup)
	consumer := catalogkafka.NewConsumer(log, reader, projector, idem)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	log.Info("stock-projector running", "topic", cfg.OutboxTopic, "group", cfg.ConsumerGroup)
	<-ctx.Done()
	log.Info("stock-projector shutdown")
}
