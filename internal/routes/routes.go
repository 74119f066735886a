package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundstransfer/internal/account"
	"github.com/congo-pay/fundstransfer/internal/config"
	"github.com/congo-pay/fundstransfer/internal/identity"
	"github.com/congo-pay/fundstransfer/internal/ledger"
	"github.com/congo-pay/fundstransfer/internal/middleware"
	"github.com/congo-pay/fundstransfer/internal/notification"
	"github.com/congo-pay/fundstransfer/internal/payments"
	"github.com/congo-pay/fundstransfer/internal/reference"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache
// and Broker are optional in development.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Broker notification.Publisher
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. The returned
// dispatcher must be run by the caller for alerts to be delivered.
func Setup(app *fiber.App, d Deps) (*notification.Dispatcher, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Backends
	var store ledger.Store
	var users identity.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		users = identity.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory ledger")
		store = ledger.NewInMemory()
		users = identity.NewMemoryRepository()
	}

	channels, err := notificationChannels(d)
	if err != nil {
		return nil, err
	}

	// Services and handlers
	generator := reference.New(nil)
	hasher := account.BcryptHasher{}
	accountSvc := account.NewService(store, generator, hasher, d.Logger)
	identitySvc := identity.NewService(users, accountSvc, d.Logger)
	dispatcher := notification.NewDispatcher(identitySvc, channels, notification.Options{
		Workers:     d.Cfg.Notify.Workers,
		QueueSize:   d.Cfg.Notify.QueueSize,
		MaxAttempts: d.Cfg.Notify.MaxAttempts,
		Backoff:     d.Cfg.Notify.RetryBackoff,
	}, d.Logger)
	paymentSvc := payments.NewService(store, account.NewGuard(store, hasher), generator, identitySvc, dispatcher, d.Logger)

	RegisterHealthRoutes(app, d, dispatcher)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth([]byte(d.Cfg.JWTSecret)))
	RegisterAccountRoutes(protected, account.NewHandler(accountSvc))

	transferGuards := []fiber.Handler{middleware.TransferRateLimit(d.Cache, d.Cfg.TransferAttemptsPerMinute)}
	if d.Cache != nil {
		transferGuards = append(transferGuards, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterPaymentRoutes(protected, payments.NewHandler(paymentSvc), transferGuards...)

	return dispatcher, nil
}

// notificationChannels builds one email and one SMS channel on the
// configured transport.
func notificationChannels(d Deps) ([]notification.Channel, error) {
	var notifier notification.Notifier
	switch d.Cfg.Notify.Transport {
	case config.TransportAMQP:
		if d.Broker == nil {
			return nil, fmt.Errorf("amqp transport selected but no broker channel is configured")
		}
		notifier = notification.NewAMQPNotifier(d.Broker, d.Cfg.Notify.Exchange)
	case config.TransportRedis:
		if d.Cache == nil {
			return nil, fmt.Errorf("redis transport selected but redis is not configured")
		}
		notifier = notification.NewStreamNotifier(d.Cache, d.Cfg.Notify.Stream)
	default:
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	return []notification.Channel{
		{Medium: notification.MediumEmail, Notifier: notifier},
		{Medium: notification.MediumSMS, Notifier: notifier},
	}, nil
}
