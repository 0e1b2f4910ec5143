package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illegalcall/avocatel/internal/config"
	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/payments"
	"github.com/illegalcall/avocatel/internal/pkg/supabase"
	"github.com/illegalcall/avocatel/internal/session"
	"github.com/illegalcall/avocatel/pkg/database"
)

type Server struct {
	app        *fiber.App
	cfg        *config.Config
	db         *database.Clients
	store      ledger.Store
	reconciler *ledger.Reconciler
	gateway    payments.Gateway
	catalog    *payments.Catalog
	identity   supabase.Provider
	sessions   *session.Manager
	logger     *slog.Logger
}

// NewServer wires the HTTP API. notifier receives reconciliation failures
// and may be nil.
func NewServer(
	cfg *config.Config,
	db *database.Clients,
	gateway payments.Gateway,
	identity supabase.Provider,
	notifier ledger.FailureNotifier,
) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := payments.ParseCatalog(cfg.Catalog.Packages)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit packages: %w", err)
	}

	apiLogger := slog.Default().With("component", "api")
	store := ledger.NewPostgresStore(db.DB)

	var statusCache *ledger.StatusCache
	if db.Redis != nil {
		statusCache = ledger.NewStatusCache(db.Redis, cfg.Redis.LockTTL, cfg.Redis.StatusTTL)
	}

	app := fiber.New(fiber.Config{
		AppName: "avocatel",
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(maintenance(cfg.Server.MaintenanceMode))
	if cfg.Session.EncryptionKey != "" {
		app.Use(encryptcookie.New(encryptcookie.Config{
			Key: cfg.Session.EncryptionKey,
		}))
	}

	server := &Server{
		app:        app,
		cfg:        cfg,
		db:         db,
		store:      store,
		reconciler: ledger.NewReconciler(store, statusCache, notifier, apiLogger),
		gateway:    gateway,
		catalog:    catalog,
		identity:   identity,
		sessions:   session.NewManager(cfg.Session, cfg.IsProduction()),
		logger:     apiLogger,
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/success", s.handleSuccessPage)

	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.rateLimit(), s.handleLogin)
	api.Get("/authenticate", s.handleAuthenticate)
	api.Post("/logout", s.handleLogout)
	api.Get("/credit-packages", cache.New(cache.Config{
		Expiration:   s.cfg.Server.CacheExpiration,
		CacheControl: true,
	}), s.handleCreditPackages)
	api.All("/checkout_sessions", s.rateLimit(), s.handleCheckoutSession)
	api.Post("/webhook", s.handleWebhook)

	// Session routes
	api.Get("/profile", s.sessions.Require(), s.handleGetProfile)
	api.Post("/chat/messages", s.sessions.Require(), s.handleChatMessage)

	// Admin routes; login must be registered before the guarded group.
	api.Post("/admin/login", s.rateLimit(), s.handleAdminLogin)
	admin := api.Group("/admin", jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))
	admin.Get("/profiles/:id", s.handleAdminProfile)
	admin.Post("/reconciliations/:sessionId/replay", s.handleReplay)
}

func (s *Server) rateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        s.cfg.Server.MaxRequests,
		Expiration: s.cfg.Server.RequestTimeout,
	})
}

// upstreamMessage hides upstream error details in production.
func (s *Server) upstreamMessage(generic string, err error) string {
	if s.cfg.IsProduction() {
		return generic
	}
	return fmt.Sprintf("%s: %v", generic, err)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
