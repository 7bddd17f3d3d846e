package server

import (
	"log/slog"

	"github.com/xraph/headless/backoff"
	"github.com/xraph/headless/engine"
	"github.com/xraph/headless/ext"
	mw "github.com/xraph/headless/middleware"
	"github.com/xraph/headless/store"
)

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the server configuration.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.config = cfg }
}

// WithStore sets the persistence backend directly. The store's Driver
// setting in Config is then ignored.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithLogger sets the logger shared by the server, engine and API.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithExtension registers a lifecycle extension with the engine.
func WithExtension(x ext.Extension) Option {
	return func(s *Server) { s.exts = append(s.exts, x) }
}

// WithMiddleware adds task middleware to the engine.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(s *Server) { s.mws = append(s.mws, m...) }
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Server) { s.bo = b }
}

// WithEngineOptions passes additional options to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Server) { s.engOpts = append(s.engOpts, opts...) }
}

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.config.Addr = addr }
}

// WithBasePath sets the URL prefix for all API routes.
func WithBasePath(path string) Option {
	return func(s *Server) { s.config.BasePath = path }
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() Option {
	return func(s *Server) { s.config.DisableRoutes = true }
}

// WithDisableMigrate disables store migration on Start.
func WithDisableMigrate() Option {
	return func(s *Server) { s.config.DisableMigrate = true }
}
