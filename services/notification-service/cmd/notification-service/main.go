package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bookable-dev/bookable/libs/config"
	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/libs/kafkax"
	otelx "github.com/bookable-dev/bookable/libs/otel"
	"github.com/bookable-dev/bookable/libs/runtime"
	"github.com/bookable-dev/bookable/services/notification-service/internal/consumer"
	"github.com/bookable-dev/bookable/services/notification-service/internal/email"
	"github.com/bookable-dev/bookable/services/notification-service/internal/inbox"
	"github.com/bookable-dev/bookable/services/notification-service/internal/notify"
	"github.com/bookable-dev/bookable/services/notification-service/internal/storage"
)

const (
	topicConfirmed = "reservation.confirmed.v1"
	topicReleased  = "reservation.released.v1"
	topicCancelled = "reservation.cancelled.v1"
	topicAwaiting  = "reservation.awaiting_confirmation.v1"
	topicReceipt   = "billing.receipt.requested.v1"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 5)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	notifications := storage.NewRepository(pool)
	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	alertRecipients := notify.Recipients{
		Staff: config.String("STAFF_ALERT_EMAIL", ""),
		Admin: config.String("ADMIN_ALERT_EMAIL", ""),
	}

	deliver := func(ctx context.Context, n storage.Notification, subject, body string) error {
		if n.Recipient == "" {
			logger.Warn("notification has no recipient", "kind", n.Kind, "reservation_id", n.ReservationID)
			return nil
		}
		n.Channel = "email"
		n.Status = "sent"
		if err := sender.Send(n.Recipient, subject, body); err != nil {
			logger.Error("email send failed", "err", err, "kind", n.Kind, "recipient", n.Recipient)
			n.Status = "failed"
		}
		return notifications.Insert(ctx, n)
	}

	reservationHandler := func(kind string, render func(notify.ReservationEvent) (string, string), recipient func(notify.ReservationEvent) string) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var evt notify.ReservationEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			subject, body := render(evt)
			return deliver(ctx, storage.Notification{
				ReservationID: evt.ReservationID,
				Kind:          kind,
				Recipient:     recipient(evt),
				Payload:       map[string]any{"topic": msg.Topic, "start_at": evt.StartAt},
			}, subject, body)
		}
	}
	customerEmail := func(evt notify.ReservationEvent) string { return evt.CustomerEmail }

	// fanOutHandler writes one notification row per delivery leg.
	fanOutHandler := func(deliveries func(notify.ReservationEvent, notify.Recipients) []notify.Delivery) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var evt notify.ReservationEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			var firstErr error
			for _, d := range deliveries(evt, alertRecipients) {
				err := deliver(ctx, storage.Notification{
					ReservationID: evt.ReservationID,
					Kind:          d.Kind,
					Recipient:     d.Recipient,
					Payload:       map[string]any{"topic": msg.Topic, "start_at": evt.StartAt},
				}, d.Subject, d.Body)
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}
	}

	handlers := map[string]consumer.Handler{
		topicConfirmed: fanOutHandler(notify.ConfirmedDeliveries),
		topicReleased:  reservationHandler("released", notify.ReleasedEmail, customerEmail),
		topicCancelled: reservationHandler("cancelled", notify.CancelledEmail, customerEmail),
		topicAwaiting:  fanOutHandler(notify.AwaitingDeliveries),
		topicReceipt: func(ctx context.Context, msg kafka.Message) error {
			var evt notify.ReceiptEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			subject, body := notify.ReceiptEmail(evt)
			reservationID := ""
			if evt.Type == "reservation" {
				reservationID = evt.TargetID
			}
			return deliver(ctx, storage.Notification{
				ReservationID: reservationID,
				Kind:          "receipt",
				Recipient:     evt.PayerEmail,
				Payload:       map[string]any{"topic": msg.Topic, "session_id": evt.SessionID},
			}, subject, body)
		},
	}

	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  []string{topicConfirmed, topicReleased, topicCancelled, topicAwaiting, topicReceipt},
	}, handlers)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
