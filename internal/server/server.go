package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/phrasebook-app/apiserver/config"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/db"
	"github.com/phrasebook-app/apiserver/internal/handlers"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/mq"
	"github.com/phrasebook-app/apiserver/internal/pubsub"
	"github.com/phrasebook-app/apiserver/internal/resolvers"
	"github.com/phrasebook-app/apiserver/internal/seed"
	"github.com/phrasebook-app/apiserver/internal/storage"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/internal/store/memory"
	"github.com/phrasebook-app/apiserver/types"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	requestTimeout = 60 * time.Second
	// The connection write deadline trails the handler timeout so a timed
	// out request still gets its 503.
	writeTimeout = requestTimeout + 5*time.Second
)

// Server wraps the HTTP server, router and the collaborators it owns.
type Server struct {
	httpServer      *http.Server
	router          *chi.Mux
	db              *sql.DB
	bus             *pubsub.Bus[types.MessageCreated]
	broker          mq.Backend
	bridge          *pubsub.Bridge[types.MessageCreated]
	logger          logging.Logger
	shutdownTimeout time.Duration
}

// New constructs a Server from cfg. Collaborators opened here are released
// by Shutdown.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{logger: logger, shutdownTimeout: cfg.ShutdownTimeout}
	ready := false
	defer func() {
		if !ready {
			s.release()
		}
	}()

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	deps := resolvers.Deps{Tokens: tokens, Logger: logger}
	switch strings.ToLower(strings.TrimSpace(cfg.Database.Driver)) {
	case DriverMemory:
		mem := memory.New()
		deps.Messages, deps.Users = mem.Messages(), mem.Users()
		logger.Warn(ctx, "using in-memory store, data is lost on exit")
		if err := seed.Load(ctx, mem.Users(), mem.Messages(), seed.Accounts(), logger); err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
	case "", DriverPostgres:
		s.db, err = db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		deps.Messages, deps.Users = store.NewMessageRepository(s.db), store.NewUserRepository(s.db)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	s.bus = pubsub.NewBus[types.MessageCreated](pubsub.WithLogger(logger))
	deps.Publisher, deps.Feed = s.bus, s.bus

	instanceID := uuid.NewString()
	s.broker, err = mq.Open(ctx, cfg.Broker, instanceID)
	if err != nil {
		return nil, fmt.Errorf("open broker: %w", err)
	}
	if s.broker != nil {
		s.bridge = pubsub.NewBridge(s.bus, s.broker, instanceID, logger)
		deps.Publisher = s.bridge
		logger.Info(ctx, "event broker enabled", "backend", cfg.Broker.Backend, "instance", instanceID)
	}

	avatars, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if avatars != nil {
		deps.Avatars = avatars
	}

	res := resolvers.New(deps)
	s.router = Routes(res, tokens, cfg.AllowedOrigins, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	// Open event streams never go idle on their own.
	s.httpServer.RegisterOnShutdown(s.bus.Close)

	ready = true
	return s, nil
}

// Routes builds the HTTP handler tree.
func Routes(res *resolvers.Resolver, tokens handlers.TokenVerifier, origins []string, logger logging.Logger) *chi.Mux {
	if logger == nil {
		logger = logging.Nop()
	}
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Token"},
		}).Handler,
		handlers.Identity(tokens),
		handlers.Loaders(res),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/messages/stream", handlers.MessageStream(res, logger))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Route("/messages", func(r chi.Router) {
			handlers.MessageRouter(r, res, logger)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, res, logger)
		})
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, res, logger)
		})
	})
	return router
}

// Run serves HTTP and relays broker events until ctx ends, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.bridge != nil {
		g.Go(func() error {
			return s.bridge.Run(ctx, pubsub.MessageCreated)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown drains in-flight requests and releases every collaborator.
func (s *Server) Shutdown() error {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.release()
	s.logger.Info(ctx, "server stopped")
	return err
}

func (s *Server) release() {
	if s.bus != nil {
		s.bus.Close()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn(context.Background(), "close broker failed", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
