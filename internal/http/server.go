package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/middleware/ratelimit"
	"minhasfinancas/internal/middleware/security"
	"minhasfinancas/internal/middleware/trace"
)

// EntryService is the entry use case surface the handlers depend on.
type EntryService interface {
	Save(ctx context.Context, l core.Lancamento) (core.Lancamento, error)
	Update(ctx context.Context, l core.Lancamento) (core.Lancamento, error)
	Delete(ctx context.Context, l core.Lancamento) error
	SetStatus(ctx context.Context, l core.Lancamento, status core.StatusLancamento) (core.Lancamento, error)
	Find(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error)
	FindByID(ctx context.Context, id int64) (core.Lancamento, bool, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// UserService is the user use case surface the handlers depend on.
type UserService interface {
	Authenticate(ctx context.Context, email, senha string) (core.Usuario, error)
	Register(ctx context.Context, u core.Usuario) (core.Usuario, error)
	FindByID(ctx context.Context, id int64) (core.Usuario, bool, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the middleware chain.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	entries     EntryService
	users       UserService
	pinger      Pinger
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, entries EntryService, users UserService, pinger Pinger, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	detector, err := security.NewDetector(logger, opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		entries:  entries,
		users:    users,
		pinger:   pinger,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Logger:            logger,
		}),
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/usuarios/autenticar", s.handleAuthenticate)
	api.HandleFunc("POST /api/usuarios", s.handleRegister)
	api.HandleFunc("GET /api/usuarios/{id}/saldo", s.handleBalance)
	api.HandleFunc("POST /api/lancamentos", s.handleCreateEntry)
	api.HandleFunc("GET /api/lancamentos", s.handleSearchEntries)
	api.HandleFunc("PUT /api/lancamentos/{id}", s.handleUpdateEntry)
	api.HandleFunc("PUT /api/lancamentos/{id}/atualiza-status", s.handleUpdateStatus)
	api.HandleFunc("DELETE /api/lancamentos/{id}", s.handleDeleteEntry)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.rateLimiter.Middleware(detector.ExtractClientIP, nil)(api))

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(handler)
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the server. Safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		requests := s.tracer.GetMetrics()
		limited := s.rateLimiter.GetMetrics()
		s.logger.Info("HTTP server stopped",
			log.FieldOperation, log.OpShutdown,
			"total_requests", requests.TotalRequests,
			"server_errors", requests.ServerErrors,
			"rate_limited", limited.Rejected,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Text("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Header("Retry-After", "5").Write(w)
			return
		}
	}
	NewResponse().Text("ready").Write(w)
}
