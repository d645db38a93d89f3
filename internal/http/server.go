package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"salvadanaio/internal/cache"
	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Ports the handlers depend on. The services package provides the
// implementations.
type (
	SourceManager interface {
		Create(ctx context.Context, src core.RecurringSource) (core.RecurringSource, int, error)
		Update(ctx context.Context, src core.RecurringSource) (services.UpdateResult, error)
		Delete(ctx context.Context, ownerID, id string) error
		Get(ctx context.Context, ownerID, id string) (core.RecurringSource, error)
		List(ctx context.Context, ownerID string) ([]core.RecurringSource, error)
		ListEntries(ctx context.Context, ownerID, id string) ([]core.LedgerEntry, error)
	}

	AccountManager interface {
		SetStartingBalance(ctx context.Context, ownerID string, amount core.Money, notes string) (services.Balance, error)
		Balance(ctx context.Context, ownerID string) (services.Balance, error)
		History(ctx context.Context, ownerID string, limit int) ([]core.BalanceEntry, error)
	}

	GoalManager interface {
		Create(ctx context.Context, g core.Goal) (core.Goal, error)
		Get(ctx context.Context, ownerID, id string) (core.Goal, error)
		List(ctx context.Context, ownerID string) ([]core.Goal, error)
		Contributions(ctx context.Context, ownerID, goalID string) ([]core.Contribution, error)
	}

	ContributionManager interface {
		Contribute(ctx context.Context, ownerID, goalID string, amount core.Money, month core.Month, notes string) (services.ContributionResult, error)
		Reverse(ctx context.Context, ownerID, contributionID string) (services.ContributionResult, error)
	}

	// Pinger reports whether a dependency is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Dependencies groups the collaborators the server routes to.
type Dependencies struct {
	Sources       SourceManager
	Accounts      AccountManager
	Goals         GoalManager
	Contributions ContributionManager
	// Ready is checked by /readyz; nil means always ready.
	Ready Pinger
}

type Server struct {
	http.Server
	deps       Dependencies
	logger     *log.Logger
	structured *log.StructuredLogger
	limiter    *rateLimiter
	now        func() time.Time
	started    time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l.WithComponent(log.ComponentHTTP) }
}

// WithRateLimit caps mutating requests per client IP per minute. Zero
// disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.limiter = newRateLimiter(perMinute) }
}

const defaultRateLimit = 60

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(defaultRateLimit),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.structured = log.NewStructuredLogger(s.logger)
	s.started = s.now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/sources", s.api(s.handleCreateSource))
	mux.Handle("GET /api/sources", s.api(s.handleListSources))
	mux.Handle("GET /api/sources/{id}", s.api(s.handleGetSource))
	mux.Handle("PUT /api/sources/{id}", s.api(s.handleUpdateSource))
	mux.Handle("DELETE /api/sources/{id}", s.api(s.handleDeleteSource))
	mux.Handle("GET /api/sources/{id}/entries", s.api(s.handleListEntries))

	mux.Handle("GET /api/balance", s.api(s.handleBalance))
	mux.Handle("GET /api/balance/history", s.api(s.handleBalanceHistory))
	mux.Handle("PUT /api/account/starting-balance", s.api(s.handleSetStartingBalance))

	mux.Handle("POST /api/goals", s.api(s.handleCreateGoal))
	mux.Handle("GET /api/goals", s.api(s.handleListGoals))
	mux.Handle("GET /api/goals/{id}", s.api(s.handleGetGoal))
	mux.Handle("GET /api/goals/{id}/contributions", s.api(s.handleListContributions))
	mux.Handle("POST /api/goals/{id}/contributions", s.api(s.handleContribute))
	mux.Handle("DELETE /api/contributions/{id}", s.api(s.handleReverseContribution))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withRequestContext(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Limiter exposes the rate limiter for periodic sweeping.
func (s *Server) Limiter() cache.Cleaner {
	return s.limiter
}

// apiHandler serves one owner-scoped API call. Returned errors are rendered
// through ErrorResponse.
type apiHandler func(w http.ResponseWriter, r *http.Request, ownerID string) error

func (s *Server) api(h apiHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method != http.MethodGet && !s.limiter.allow(extractClientIP(r)) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, extractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Header("Retry-After", "60").
				Body(errorBody{Error: errorDetail{Code: "rate_limited", Message: "rate limit exceeded, please try again later"}}).
				Write(w)
			return
		}

		owner, err := ownerID(r)
		if err == nil {
			err = h(w, r, owner)
		}
		if err != nil {
			s.writeError(w, r, err)
		}
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch core.ErrorCode(err) {
	case core.CodeValidation, core.CodeNotFound, core.CodeInsufficientBalance:
		log.FromContext(ctx).DebugContext(ctx, "Request rejected",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorType(err),
			log.FieldPath, r.URL.Path)
	default:
		s.structured.LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method, log.NewFields().WithRequestID(requestID(r)))
	}
	ErrorResponse(err).Write(w)
}

// withRequestContext assigns a request id, attaches the request-scoped logger,
// applies security headers and logs the completed request.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	attach := log.Middleware(s.logger)(log.RequestIDMiddleware(requestID)(next))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		clientIP := extractClientIP(r)
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = generateRequestID()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		r = r.WithContext(ctx)

		setSecurityHeaders(w)
		w.Header().Set("X-Request-ID", id)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		attach.ServeHTTP(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, s.now().Sub(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
