package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ILLUVRSE/pizza-rewards/internal/analytics"
	"github.com/ILLUVRSE/pizza-rewards/internal/auth"
	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/service"
)

const maxJSONBody = 1 << 20

// Pinger reports whether the coupon ledger is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type StatsSource interface {
	Stats() analytics.Stats
}

type Server struct {
	service *service.Service
	ledger  Pinger
	vendors *auth.VendorVerifier
	stats   StatsSource
	timeout time.Duration
}

// New builds the server. stats may be nil. requestTimeout should exceed the
// evaluator's request budget so the static tier always gets to answer.
func New(svc *service.Service, ledger Pinger, vendors *auth.VendorVerifier, stats StatsSource, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{service: svc, ledger: ledger, vendors: vendors, stats: stats, timeout: requestTimeout}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Post("/stories", s.handleSubmit)
	r.Get("/providers/health", s.handleProviderHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.vendors.Middleware)
		r.Post("/coupons/validate", s.handleValidate)
		r.Post("/providers/{name}/reset", s.handleProviderReset)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if s.stats != nil {
		status["analytics"] = s.stats.Stats()
	}
	if err := s.ledger.Ping(ctx); err != nil {
		status["ok"] = false
		status["ledger"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := bindJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Submit(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[http] submit %s: %v", middleware.GetReqID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "could not issue coupon")
		return
	}
	status := http.StatusCreated
	if res.AlreadyIssued {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

type validateRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := bindJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := s.service.ValidateCoupon(req.Code)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"valid":  false,
			"reason": coupon.Reason(err),
			"error":  err.Error(),
		})
		return
	}
	log.Printf("[http] vendor %s validated %s", auth.VendorFromContext(r.Context()), info.Code)
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"providers": s.service.ProviderHealth()})
}

func (s *Server) handleProviderReset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.service.ResetProvider(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bindJSON decodes exactly one JSON object and rejects unknown fields.
func bindJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body must not be empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain only a single JSON object")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
