package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundstransfer/internal/config"
	"github.com/congo-pay/fundstransfer/internal/middleware"
	"github.com/congo-pay/fundstransfer/internal/notification"
	"github.com/congo-pay/fundstransfer/internal/routes"
)

// Server wraps the Fiber application and the notification dispatcher that
// runs alongside it.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	dispatcher *notification.Dispatcher
	logger     *slog.Logger

	stopDispatcher context.CancelFunc
	dispatcherDone chan struct{}
}

// New instantiates the HTTP server, delegates route wiring to routes.Setup
// and starts the notification workers. broker may be nil unless the AMQP
// notification transport is selected.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, broker notification.Publisher, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	dispatcher, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Broker: broker, Logger: logger})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:            app,
		cfg:            cfg,
		dispatcher:     dispatcher,
		logger:         logger,
		stopDispatcher: cancel,
		dispatcherDone: make(chan struct{}),
	}
	go func() {
		defer close(s.dispatcherDone)
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("notification dispatcher stopped", "error", err)
		}
	}()
	return s, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, waits for in-flight ones and then stops
// the notification workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.stopDispatcher()
	select {
	case <-s.dispatcherDone:
	case <-ctx.Done():
	}
	stats := s.dispatcher.Stats()
	s.logger.Info("notification dispatcher stopped",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)
	return err
}
