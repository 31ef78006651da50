package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"gestao/internal/auth"
	"gestao/internal/cache"
	applog "gestao/internal/log"
	"gestao/internal/middleware/ratelimit"
	"gestao/internal/middleware/security"
	"gestao/internal/middleware/trace"
	"gestao/internal/services"
)

const (
	viewCacheSize = 120
	viewCacheTTL  = 5 * time.Minute
)

// Deps are the collaborators the API serves.
type Deps struct {
	Ledger             *services.LedgerService
	Auth               *auth.Service
	Logger             *applog.Logger
	RateLimitPerMinute int
	// SecureCookies marks the auth cookie Secure.
	SecureCookies bool
}

type Server struct {
	http.Server
	ledger        *services.LedgerService
	auth          *auth.Service
	validate      *validator.Validate
	secureCookies bool

	// month views keyed "YYYY-MM", purged on every write
	views    *cache.LRUCache[services.MonthView]
	viewMu   sync.Mutex
	viewGen  uint64 // bumped by every purge
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	ipSource *security.ClientIPResolver

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:        d.Ledger,
		auth:          d.Auth,
		validate:      newValidator(),
		secureCookies: d.SecureCookies,
		views:         cache.NewLRUCache[services.MonthView](viewCacheSize, viewCacheTTL),
		caches:        cache.NewManager(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		ipSource:      security.NewClientIPResolver(),
	}
	s.caches.Register(s.views)
	s.caches.StartCleanup(10 * time.Minute)

	s.Handler = s.routes(logger.WithComponent(applog.ComponentHTTP))
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed)
	})

	r.Use(
		trace.NewMiddleware(s.ipSource.ExtractClientIP, logger).Middleware,
		applog.Middleware(logger),
		applog.RequestIDMiddleware(trace.RequestIDFromRequest),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
	)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	limited := r.PathPrefix("/").Subrouter()
	limited.Use(s.limiter.Middleware(s.ipSource.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
		writeStatus(w, http.StatusTooManyRequests)
	}))

	limited.Handle("/register", s.auth.Optional(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	limited.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	limited.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api := limited.PathPrefix("/").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers", s.handleCreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id:[0-9]+}", s.handleDeleteCustomer).Methods(http.MethodDelete)

	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleDeleteOrder).Methods(http.MethodDelete)

	api.HandleFunc("/installments/{id:[0-9]+}/settle", s.handleSettleInstallment).Methods(http.MethodPost)

	api.HandleFunc("/cashflow", s.handleCashFlow).Methods(http.MethodGet)
	api.HandleFunc("/export.xlsx", s.handleExport).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id:[0-9]+}/password", s.handleResetPassword).Methods(http.MethodPost)

	return r
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateViews drops cached month views after a ledger write.
func (s *Server) invalidateViews() {
	s.viewMu.Lock()
	s.viewGen++
	s.views.Purge()
	s.viewMu.Unlock()
}

func (s *Server) viewGeneration() uint64 {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.viewGen
}

// storeView caches v unless a write has purged the views since gen was read.
func (s *Server) storeView(key string, gen uint64, v services.MonthView) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if gen == s.viewGen {
		s.views.Set(key, v)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
