package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	orderdom "github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/outbox"
	"github.com/dmehra2102/medsupply-orders/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper is satisfied by idempotency.Store.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Consumer projects OrderCreated events onto product stock levels.
type Consumer struct {
	log        *slog.Logger
	reader     Reader
	projector  *application.StockProjector
	idem       Deduper
	tracer     trace.Tracer
	maxTries   uint
	retryDelay time.Duration
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, projector *application.StockProjector, idem Deduper) *Consumer {
	return &Consumer{
		log:        log,
		reader:     reader,
		projector:  projector,
		idem:       idem,
		tracer:     otel.Tracer("stock-projector"),
		maxTries:   5,
		retryDelay: 5 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// process retries msg until it is handled or ctx ends. Commits are cumulative
// per partition, so fetching past an unapplied message would lose it.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	for {
		err := c.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.log.Error("stock projection failed, holding offset", "offset", msg.Offset, "retry_in", c.retryDelay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// Handle applies one message. A nil return means the message may be committed,
// including for duplicates, foreign event types and undecodable payloads.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg.Headers, outbox.HeaderEventType)
	if eventType != orderdom.EventOrderCreated {
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated")
	defer span.End()

	var ev orderdom.OrderCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, "bad payload")
		return nil
	}
	span.SetAttributes(attribute.Int64("order.id", ev.OrderID))

	movements := make([]catalog.StockMovement, 0, len(ev.Items))
	for _, it := range ev.Items {
		movements = append(movements, catalog.StockMovement{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	_, err = backoff.Retry(msgCtx, func() (struct{}, error) {
		return struct{}{}, c.projector.Apply(msgCtx, ev.OrderID, movements)
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		// Released even on shutdown, or the redelivery would be skipped as a duplicate.
		if fErr := c.idem.Forget(context.WithoutCancel(ctx), key); fErr != nil {
			c.log.Warn("idempotency release failed", "key", key, "err", fErr)
		}
		return err
	}
	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
