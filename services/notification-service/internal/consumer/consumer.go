package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookable-dev/bookable/libs/kafkax"
	"github.com/bookable-dev/bookable/services/notification-service/internal/inbox"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer reads every reservation-engine topic through one group reader and
// routes messages to per-topic handlers. Messages on topics without a handler
// are acknowledged and dropped.
type Consumer struct {
	reader   *kafka.Reader
	logger   *slog.Logger
	inbox    *inbox.Repository
	handlers map[string]Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handlers map[string]Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:   reader,
		logger:   logger,
		inbox:    inboxRepo,
		handlers: handlers,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		handler, ok := c.handlers[msg.Topic]
		if !ok {
			span.End()
			continue
		}

		meta := kafkax.ExtractEventMeta(msg)
		claimed, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !claimed {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := handler(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}
