package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles what the HTTP handlers call into.
type Services struct {
	Booking   BookingAPI
	Schedules ScheduleAPI
	Catalog   CatalogAPI
	Health    Pinger
}

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	sessions domain.SessionResolver
	auth     *HTTPAuth
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, sessions domain.SessionResolver, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		sessions: sessions,
		auth:     NewHTTPAuth(cfg),
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(srv.routes(), "slotbook-http"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.accessLog, s.auth.RateLimit)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/companies/{companyId}/slots", s.handleSlots).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/slots/check", s.handleCheckSlot).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/services", s.handleServices).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/schedule", s.handleGetSchedule).Methods(http.MethodGet)
	api.Handle("/companies/{companyId}/schedule",
		s.auth.Require(PermWriteSchedule, http.HandlerFunc(s.handleUpdateSchedule))).Methods(http.MethodPut)

	api.Handle("/companies/{companyId}/reservations",
		s.requireSession(s.handleBook)).Methods(http.MethodPost)
	api.Handle("/companies/{companyId}/reservations",
		s.auth.Require(PermReadReservations, http.HandlerFunc(s.handleListReservations))).Methods(http.MethodGet)
	api.Handle("/companies/{companyId}/reservations/export",
		s.auth.Require(PermReadReservations, http.HandlerFunc(s.handleExport))).Methods(http.MethodGet)

	api.Handle("/me/reservations", s.requireSession(s.handleMyReservations)).Methods(http.MethodGet)
	api.Handle("/reservations/{id}/cancel", s.requireSession(s.handleCancel)).Methods(http.MethodPost)
	api.Handle("/reservations/{id}/calendar", s.requireSession(s.handleCalendar)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireSession resolves the bearer token into a client session.
func (s *HTTPServer) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || s.sessions == nil {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeySession, sess)))
	})
}

func sessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(ctxKeySession).(*models.Session)
	return sess
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// Require guards next with an API key holding permission for the {companyId} in the path.
// With auth disabled every request passes.
func (a *HTTPAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		client, err := a.keys.authenticate(
			strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)),
			strings.TrimSpace(r.Header.Get(a.keys.extraHeader)),
		)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err := authorize(client, permission, mux.Vars(r)["companyId"]); err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyAPIClient, client.Name)))
	})
}

func (a *HTTPAuth) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey buckets by API key, then bearer token, then remote host.
func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return "key:" + apiKey
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return "session:" + token
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveHTTP(route, strconv.Itoa(recorder.status), dur)

		ev := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
