package filesfy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/filesfy/internal/cache"
	"github.com/magabrotheeeer/filesfy/internal/config"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/identityprovider"
	"github.com/magabrotheeeer/filesfy/internal/lib/jwt"
	"github.com/magabrotheeeer/filesfy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/metrics"
	"github.com/magabrotheeeer/filesfy/internal/migrations"
	"github.com/magabrotheeeer/filesfy/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/filesfy/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/filesfy/internal/services/payment"
	recoveryservice "github.com/magabrotheeeer/filesfy/internal/services/recovery"
	subservice "github.com/magabrotheeeer/filesfy/internal/services/subscription"
	"github.com/magabrotheeeer/filesfy/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-приложение сервиса.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	closers []io.Closer
}

// New подключает хранилище и внешние зависимости и собирает маршруты.
// Redis, RabbitMQ и Stripe необязательны: без них сервис работает без
// кеша и отзыва токенов, без публикации событий и в симулированном
// режиме оплаты соответственно.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	subOpts := []subservice.Option{subservice.WithMetrics(m)}
	authOpts := []authservice.Option{
		authservice.WithMetrics(m),
		authservice.WithTestLogin(cfg.TestLoginEnabled()),
		authservice.WithExternalVerifier(identityprovider.NewGoogle(cfg.GoogleClientID)),
	}

	var rateLimiter middlewarectx.SharedLimiter
	if cfg.AddressRedis != "" {
		redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis is unavailable, running without cache", sl.Err(err))
		} else {
			app.closers = append(app.closers, redisCache)
			subOpts = append(subOpts, subservice.WithCache(redisCache))
			authOpts = append(authOpts, authservice.WithRevocations(redisCache))
			rateLimiter = redisCache
		}
	}

	if cfg.RabbitMQ.URL != "" {
		conn, publisher, err := newPublisher(cfg.RabbitMQ)
		if err != nil {
			logger.Warn("rabbitmq is unavailable, plan changes will not be published", sl.Err(err))
		} else {
			app.closers = append(app.closers, publisher, conn)
			subOpts = append(subOpts, subservice.WithPublisher(publisher))
		}
	}

	ledger := subservice.New(db, cfg.Plans, cfg.Limits, logger, subOpts...)
	authService := authservice.New(db, ledger, jwt.NewJWTMaker(cfg.JWTSecretKey, jwt.TokenTTL), logger, authOpts...)

	var (
		gateway paymentservice.Gateway
		parser  paymentwebhook.EventParser
	)
	if paymentprovider.IsSimulated(cfg.Gateway.SecretKey) {
		logger.Warn("payment gateway is not configured, payments are simulated")
	} else {
		stripeClient := paymentprovider.NewStripe(cfg.Gateway.SecretKey, cfg.WebhookSecret, nil)
		gateway = stripeClient
		parser = stripeClient
	}
	paymentService := paymentservice.New(db, ledger, gateway, authService, m, cfg.Currency, logger)

	recoveryService := recoveryservice.New(recoveryservice.NewCatalogSource(), cfg.Limits, m, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, Services{
		Auth:         authService,
		Subscription: ledger,
		Payment:      paymentService,
		Recovery:     recoveryService,
		Webhook:      parser,
		DB:           db,
		Registry:     registry,
		RateLimiter:  rateLimiter,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func newPublisher(cfg config.RabbitMQ) (*amqp.Connection, *rabbitmq.Publisher, error) {
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetBillingQueues())
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, rabbitmq.NewPublisher(ch, cfg.Exchange), nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close dependency", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
