// Package server hosts a headless engine together with its HTTP API.
//
// A Server builds the store named in its Config, constructs the engine,
// mounts the API on a fiber application and owns the lifecycle of all
// three:
//
//	srv := server.New(server.WithConfig(cfg))
//	if err := srv.Init(ctx); err != nil { ... }
//	engine.RegisterFunc(srv.Engine(), "SyncContacts", syncContacts)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Stop(ctx)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/headless/api"
	"github.com/xraph/headless/backoff"
	"github.com/xraph/headless/engine"
	"github.com/xraph/headless/ext"
	mw "github.com/xraph/headless/middleware"
	"github.com/xraph/headless/store"
	"github.com/xraph/headless/store/memory"
	pgstore "github.com/xraph/headless/store/postgres"
	redisstore "github.com/xraph/headless/store/redis"
)

var errNotInitialized = errors.New("headless/server: not initialized")

// Server owns a store, an engine and the fiber application serving its API.
type Server struct {
	config  Config
	store   store.Store
	eng     *engine.Engine
	api     *api.API
	app     *fiber.App
	ln      net.Listener
	logger  *slog.Logger
	exts    []ext.Extension
	mws     []mw.Middleware
	bo      backoff.Strategy
	engOpts []engine.Option
	closers []func() error
	served  chan error
}

// New creates a Server. Call Init before registering tasks.
func New(opts ...Option) *Server {
	s := &Server{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine. It is nil until Init succeeds.
func (s *Server) Engine() *engine.Engine { return s.eng }

// API returns the API handler. It is nil until Init succeeds.
func (s *Server) API() *api.API { return s.api }

// App returns the fiber application. It is nil until Init succeeds.
func (s *Server) App() *fiber.App { return s.app }

// Config returns the server configuration.
func (s *Server) Config() Config { return s.config }

// Addr returns the bound listen address, or "" when not listening.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Init opens the store, builds the engine and registers routes.
func (s *Server) Init(ctx context.Context) error {
	if s.eng != nil {
		return nil
	}

	if s.store == nil {
		st, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = st
	}

	opts := make([]engine.Option, 0, len(s.exts)+len(s.engOpts)+4)
	opts = append(opts,
		engine.WithConfig(s.config.Engine),
		engine.WithLogger(s.logger),
		engine.WithMiddleware(s.mws...),
	)
	for _, x := range s.exts {
		opts = append(opts, engine.WithExtension(x))
	}
	if s.bo != nil {
		opts = append(opts, engine.WithBackoff(s.bo))
	}
	opts = append(opts, s.engOpts...)

	eng, err := engine.New(s.store, opts...)
	if err != nil {
		return fmt.Errorf("headless/server: build engine: %w", err)
	}
	s.eng = eng
	s.api = api.New(eng, api.WithLogger(s.logger))

	s.app = fiber.New(fiber.Config{
		AppName:               "headless",
		DisableStartupMessage: true,
		ErrorHandler:          s.api.ErrorHandler,
	})
	s.app.Use(recover.New())
	s.app.Get("/health", s.health)
	if !s.config.DisableRoutes {
		s.api.RegisterRoutes(s.app.Group(s.config.BasePath))
	}

	s.logger.Debug("headless server initialized",
		slog.String("store", s.config.Store.Driver),
		slog.String("base_path", s.config.BasePath),
		slog.Bool("disable_routes", s.config.DisableRoutes),
	)
	return nil
}

// Start migrates the store and starts serving HTTP when Addr is set.
func (s *Server) Start(ctx context.Context) error {
	if s.eng == nil {
		return errNotInitialized
	}

	if !s.config.DisableMigrate {
		if err := s.store.Migrate(ctx); err != nil {
			return fmt.Errorf("headless/server: migration failed: %w", err)
		}
	}

	if s.config.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("headless/server: listen %s: %w", s.config.Addr, err)
	}
	s.ln = ln
	s.served = make(chan error, 1)
	go func() {
		s.served <- s.app.Listener(ln)
	}()

	s.logger.Info("headless server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts down the HTTP listener, then the engine and store, then any
// connections the server opened itself.
func (s *Server) Stop(ctx context.Context) error {
	if s.eng == nil {
		return nil
	}

	var errs []error
	if s.ln != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if err := <-s.served; err != nil {
			errs = append(errs, fmt.Errorf("serve http: %w", err))
		}
		s.ln = nil
	}

	if err := s.eng.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	return errors.Join(errs...)
}

// Health pings the store.
func (s *Server) Health(ctx context.Context) error {
	if s.store == nil {
		return errNotInitialized
	}
	return s.store.Ping(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	if err := s.Health(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// openStore builds the store named by the config.
func (s *Server) openStore(ctx context.Context) (store.Store, error) {
	sc := s.config.Store
	switch sc.Driver {
	case "", DriverMemory:
		return memory.New(), nil

	case DriverPostgres:
		if sc.DSN == "" {
			return nil, errors.New("headless/server: postgres store requires a dsn")
		}
		return pgstore.New(ctx, sc.DSN, pgstore.WithLogger(s.logger))

	case DriverRedis:
		if sc.DSN == "" {
			return nil, errors.New("headless/server: redis store requires a dsn")
		}
		opt, err := goredis.ParseURL(sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("headless/server: parse redis dsn: %w", err)
		}
		client := goredis.NewClient(opt)
		s.closers = append(s.closers, client.Close)

		opts := []redisstore.Option{redisstore.WithLogger(s.logger)}
		if sc.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(sc.Prefix))
		}
		return redisstore.New(client, opts...), nil

	default:
		return nil, fmt.Errorf("headless/server: unknown store driver %q", sc.Driver)
	}
}
