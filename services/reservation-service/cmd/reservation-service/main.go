package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookable-dev/bookable/libs/config"
	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/libs/httpx"
	"github.com/bookable-dev/bookable/libs/kafkax"
	otelx "github.com/bookable-dev/bookable/libs/otel"
	"github.com/bookable-dev/bookable/libs/runtime"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/billing"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/handlers"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/storage"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/sweeper"
)

func main() {
	service := config.String("SERVICE_NAME", "reservation-service")
	port, err := config.Port("PORT", "8080")
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
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 2)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reservationRepo := storage.NewReservationRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	calendarRepo := storage.NewCalendarRepository(pool)
	paymentRepo := storage.NewPaymentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	slotSweeper := sweeper.New(pool, reservationRepo, paymentRepo, outboxRepo, logger,
		config.DurationMinutes("PENDING_TTL_MINUTES", sweeper.DefaultTTL),
		config.Int("SWEEP_BATCH_SIZE", 100),
		int64(config.Int("SWEEP_ADVISORY_KEY", 0)),
	)
	go slotSweeper.Run(ctx, config.DurationMinutes("SWEEP_INTERVAL_MINUTES", time.Minute))

	feePolicy := billing.FeePolicy{
		PercentBps: int64(config.Int("PLATFORM_FEE_PERCENT_BPS", 0)),
		FixedCents: int64(config.Int("PLATFORM_FEE_FIXED_CENTS", 0)),
	}

	slotsHandler := handlers.NewSlotsHandler(calendarRepo, reservationRepo, catalogRepo, logger)
	bookingHandler := handlers.NewBookingHandler(reservationRepo, catalogRepo, outboxRepo, logger)
	checkoutHandler := handlers.NewCheckoutHandler(reservationRepo, catalogRepo, paymentRepo, handlers.CheckoutConfig{
		StripeSecretKey: config.String("STRIPE_SECRET_KEY", ""),
		SuccessURL:      config.String("CHECKOUT_SUCCESS_URL", ""),
		CancelURL:       config.String("CHECKOUT_CANCEL_URL", ""),
		FeePolicy:       feePolicy,
	}, logger)
	webhookHandler := handlers.NewWebhookHandler(paymentRepo, reservationRepo, outboxRepo,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		config.DurationMinutes("STRIPE_WEBHOOK_TOLERANCE_MINUTES", 5*time.Minute),
		logger,
	)
	calendarHandler := handlers.NewCalendarHandler(calendarRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	// Redis-backed rate limiting when available; a per-instance in-memory
	// limiter otherwise.
	var rateLimit httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, service)
		rateLimit = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		rateLimit = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware()
	}

	mux := runtime.NewBaseMux(readyChecks...)
	mux.HandleFunc("/api/v1/public/slots", slotsHandler.Day)
	mux.HandleFunc("/api/v1/public/slots/month", slotsHandler.Month)
	mux.HandleFunc("/api/v1/public/appointments", bookingHandler.Draft)
	mux.HandleFunc("/api/v1/public/appointments/checkout", checkoutHandler.Create)
	mux.HandleFunc("/api/v1/public/stripe/webhook", webhookHandler.StripeWebhook)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/confirm", bookingHandler.ConfirmManual)
	mux.HandleFunc("/api/v1/appointments/no-show", bookingHandler.NoShow)
	mux.HandleFunc("/api/v1/appointments/complete", bookingHandler.Complete)
	mux.HandleFunc("/api/v1/calendar/hours", calendarHandler.UpsertHours)
	mux.HandleFunc("/api/v1/calendar/off-days", calendarHandler.OffDays)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		rateLimit,
		httpx.WithCORS(httpx.PublicAPIPolicy(config.String("CORS_ALLOWED_ORIGINS", "*"))),
		httpx.WithNoStore(),
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "reservation")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
