// Package api provides the HTTP server for CoinFlow.
// It exposes the rewards ledger, account reads, and rate-limit status
// over a JSON API on localhost.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coinflow-app/coinflow/internal/app/ledger"
	"github.com/coinflow-app/coinflow/internal/app/queue"
	"github.com/coinflow-app/coinflow/internal/app/ratelimit"
	"github.com/coinflow-app/coinflow/internal/app/rates"
	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/connectivity"
)

// History reads the append-only trail for the account views.
type History interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
	ListWithdrawals(ctx context.Context, accountID string, limit int) ([]domain.Withdrawal, error)
}

// Server is the CoinFlow HTTP API server.
type Server struct {
	ledger         *ledger.Ledger
	limiter        *ratelimit.Limiter
	rates          *rates.Provider
	queue          *queue.Queue
	monitor        *connectivity.Monitor
	history        History
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(l *ledger.Ledger, limiter *ratelimit.Limiter, provider *rates.Provider, q *queue.Queue, monitor *connectivity.Monitor, history History) *Server {
	return &Server{
		ledger:  l,
		limiter: limiter,
		rates:   provider,
		queue:   q,
		monitor: monitor,
		history: history,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.handleSignup)
		r.Get("/account", s.handleAccount)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/config", s.handleConfig)
		r.Get("/limits/{action}", s.handleLimits)

		r.Route("/earnings", func(r chi.Router) {
			r.Post("/checkin", s.handleCheckIn)
			r.Post("/spin", s.handleSpin)
			r.Post("/coins", s.handleAddCoins)
		})

		r.Post("/tasks/{id}/complete", s.handleCompleteTask)

		r.Post("/withdrawals", s.handleRequestWithdrawal)
		r.Get("/withdrawals", s.handleListWithdrawals)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// actor resolves the acting account from the X-Account-ID header set by
// the identity collaborator. Missing header means not authenticated.
func actor(r *http.Request) (string, error) {
	id := r.Header.Get("X-Account-ID")
	if id == "" {
		return "", domain.ErrNotAuthenticated
	}
	return id, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

// writeError maps a failure to its HTTP status and envelope. Every
// coded failure keeps its machine code; anything else is opaque.
func writeError(w http.ResponseWriter, err error) {
	var coded *domain.Error
	if !errors.As(err, &coded) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": errorBody{Code: "INTERNAL", Message: "internal error"},
		})
		return
	}

	body := errorBody{Code: coded.Code, Message: coded.Message}
	if coded.RetryAfter > 0 {
		body.RetryAfterMS = coded.RetryAfter.Milliseconds()
		w.Header().Set("Retry-After", formatSeconds(coded.RetryAfter))
	}
	writeJSON(w, statusFor(coded.Code), map[string]interface{}{"error": body})
}

func statusFor(code string) int {
	switch code {
	case domain.ErrNotAuthenticated.Code:
		return http.StatusUnauthorized
	case domain.ErrAccountNotFound.Code:
		return http.StatusNotFound
	case domain.ErrAccountExists.Code,
		domain.ErrAlreadyCheckedIn.Code,
		domain.ErrNoSpinsLeft.Code,
		domain.ErrTaskAlreadyDone.Code:
		return http.StatusConflict
	case domain.ErrWithdrawalsDisabled.Code,
		domain.ErrMethodUnavailable.Code:
		return http.StatusForbidden
	case domain.ErrRateLimited.Code,
		domain.ErrDailyLimitExceeded.Code,
		domain.ErrWithdrawalDailyLimit.Code:
		return http.StatusTooManyRequests
	case domain.ErrStorageUnavailable.Code,
		domain.ErrWriteConflict.Code,
		domain.ErrOffline.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func formatSeconds(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// corsMiddleware adds CORS headers for the local web view.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Account-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
