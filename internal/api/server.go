// Package api serves the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/metrics"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/notify"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/service"
)

// maxUploadBytes bounds import request bodies.
const maxUploadBytes = 10 << 20

// Server is the ledger HTTP API.
type Server struct {
	svc     *service.Service
	hub     *notify.Hub
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewServer creates a server. hub and m may be nil, which disables the
// change feed and the /metrics endpoint respectively.
func NewServer(svc *service.Service, hub *notify.Hub, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{svc: svc, hub: hub, metrics: m, logger: logger.With(zap.String("component", "api"))}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", s.handleListCustomers)
			r.Post("/", s.handleAddCustomer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCustomer)
				r.Patch("/", s.handleUpdateCustomer)
				r.Delete("/", s.handleDeleteCustomer)
				r.Get("/transactions", s.handleCustomerTransactions)
				r.Post("/transactions", s.handleAddTransaction)
				r.Get("/statement", s.handleStatement)
				r.Get("/balance", s.handleCheckBalance)
				r.Post("/balance/recompute", s.handleRecomputeBalance)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.handleListOrders)
			r.Post("/", s.handleAddOrder)
			r.Patch("/{id}", s.handleUpdateOrder)
			r.Delete("/{id}", s.handleDeleteOrder)
		})

		r.Get("/stats", s.handleStats)
		r.Get("/verify", s.handleVerify)

		r.Get("/export/customers.csv", s.handleExportCSV)
		r.Get("/export/snapshot.json", s.handleExportJSON)
		r.Post("/import/customers", s.handleImportCSV)
		r.Post("/import/snapshot", s.handleImportJSON)
		r.Post("/reset", s.handleReset)

		if s.hub != nil {
			r.Get("/events", s.handleEvents)
		}
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// instrument records request latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    kind,
		},
	})
}

// fail maps err onto a status code and error type.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, "storage_error"
	switch {
	case errors.Is(err, models.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, models.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrSchema):
		status, kind = http.StatusUnprocessableEntity, "schema_error"
	case errors.Is(err, models.ErrEmptyFile):
		status, kind = http.StatusUnprocessableEntity, "empty_file"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, kind, err.Error())
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return models.Invalid("invalid request body: %v", err)
	}
	return nil
}

// confirmed reports whether a destructive request carries confirm=true.
func confirmed(r *http.Request) error {
	if r.URL.Query().Get("confirm") != "true" {
		return models.Invalid("this operation replaces existing data; repeat with ?confirm=true")
	}
	return nil
}
