// Package rpc exposes the vault engine over an HTTP JSON surface. Handlers
// translate wire payloads into engine operations and map the engine's error
// taxonomy onto HTTP status codes; all state semantics live in the engine.
package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"bondvault/native/auth"
	"bondvault/native/token"
	"bondvault/native/vault"
	"bondvault/observability/metrics"
)

// Config tunes the server's request throttling.
type Config struct {
	// RequestsPerSecond refills the limiter bucket; zero disables limiting.
	RequestsPerSecond float64
	// Burst is the limiter bucket size; defaults to RequestsPerSecond.
	Burst int
}

// Server routes HTTP requests to the vault engine.
type Server struct {
	engine    *vault.Engine
	approvals *auth.Approvals
	ledger    *token.Ledger
	logger    *slog.Logger
	limiter   *rate.Limiter
	metrics   *metrics.OperationMetrics
}

// NewServer wires the HTTP surface to the engine and its collaborators.
func NewServer(engine *vault.Engine, approvals *auth.Approvals, ledger *token.Ledger, logger *slog.Logger, cfg Config) *Server {
	s := &Server{
		engine:    engine,
		approvals: approvals,
		ledger:    ledger,
		logger:    logger,
		metrics:   metrics.Operations(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.throttle)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/vaults", s.instrument("create_vault", s.handleCreateVault))
		v1.Post("/operators", s.instrument("approve_operator", s.handleApproveOperator))
		v1.Get("/accounts/{address}", s.instrument("get_account", s.handleGetAccount))
		v1.Route("/vaults/{digest}", func(vr chi.Router) {
			vr.Get("/", s.instrument("get_vault", s.handleGetVault))
			vr.Get("/shares/{address}", s.instrument("get_shares", s.handleGetShares))
			vr.Post("/lend", s.instrument("lend", s.handleLend))
			vr.Post("/redeem", s.instrument("redeem", s.handleRedeem))
			vr.Post("/loans", s.instrument("commit_loan", s.handleCommitLoan))
			vr.Get("/loans/{borrower}", s.instrument("get_loans", s.handleGetLoans))
			vr.Post("/loans/{borrower}/{index}/repay", s.instrument("repay", s.handleRepay))
			vr.Get("/loans/{borrower}/{index}/liquidatable", s.instrument("liquidatable", s.handleLiquidatable))
			vr.Post("/loans/{borrower}/{index}/liquidate", s.instrument("liquidate", s.handleLiquidate))
		})
	})
	return r
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument wraps a handler with outcome accounting and latency metrics.
func (s *Server) instrument(operation string, handler func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		status := handler(w, r)
		outcome := "ok"
		if status >= http.StatusBadRequest {
			outcome = "error"
		}
		s.metrics.Observe(operation, outcome, time.Since(started))
		if s.logger != nil && status >= http.StatusInternalServerError {
			s.logger.Error("operation failed", "operation", operation, "status", status)
		}
	}
}
