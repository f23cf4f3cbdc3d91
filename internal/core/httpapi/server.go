// Package httpapi serves the rule service over HTTP/JSON.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solatis/ruletree/internal/core/service"
	"github.com/solatis/ruletree/internal/subject"
	"github.com/solatis/ruletree/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Pinger reports storage health. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server routes HTTP requests to the rule service.
type Server struct {
	rules  *service.Service
	pinger Pinger
	logger *slog.Logger
	router *chi.Mux
}

// New builds the router. pinger may be nil (health reports storage as unchecked).
func New(rules *service.Service, pinger Pinger, logger *slog.Logger, timeout time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{rules: rules, pinger: pinger, logger: logger}
	s.setupRoutes(timeout)
	return s
}

func (s *Server) setupRoutes(timeout time.Duration) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/api/v1/health", s.handleHealth)
	r.Post("/api/v1/validate", s.handleValidateKind)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Post("/import", s.handleImportLegacy)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Post("/validate", s.handleValidate)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ruleRequest is the body of create and update. Conditions may be a JSON
// tree or a string holding JSON or XML text.
type ruleRequest struct {
	Name       string          `json:"name"`
	Kind       types.RuleKind  `json:"kind"`
	Conditions json.RawMessage `json:"conditions"`
	Active     *bool           `json:"active"`
}

func (req ruleRequest) input() (service.RuleInput, error) {
	in := service.RuleInput{Name: req.Name, Kind: req.Kind, Active: true}
	if req.Active != nil {
		in.Active = *req.Active
	}
	raw := strings.TrimSpace(string(req.Conditions))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		if err := json.Unmarshal(req.Conditions, &in.Conditions); err != nil {
			return in, err
		}
	default:
		in.Conditions = raw
	}
	return in, nil
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListRules(r.Context())
	if err != nil {
		s.respondServiceError(w, r, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conditions", err)
		return
	}

	rec, err := s.rules.CreateRule(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, r, "failed to create rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// handleImportLegacy accepts either an XML body with name/kind/active query
// parameters or a JSON ruleRequest whose conditions hold the XML text.
func (s *Server) handleImportLegacy(w http.ResponseWriter, r *http.Request) {
	var in service.RuleInput
	if isXML(r.Header.Get("Content-Type")) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
		q := r.URL.Query()
		in = service.RuleInput{
			Name:       q.Get("name"),
			Kind:       types.RuleKind(q.Get("kind")),
			Conditions: string(body),
			Active:     q.Get("active") != "false",
		}
	} else {
		var req ruleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
		var err error
		if in, err = req.input(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid conditions", err)
			return
		}
	}

	rec, err := s.rules.ImportLegacy(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, r, "failed to import rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rec, err := s.rules.GetRule(r.Context(), ruleID(r))
	if err != nil {
		s.respondServiceError(w, r, "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conditions", err)
		return
	}

	rec, err := s.rules.UpdateRule(r.Context(), ruleID(r), in)
	if err != nil {
		s.respondServiceError(w, r, "failed to update rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.DeleteRule(r.Context(), ruleID(r)); err != nil {
		s.respondServiceError(w, r, "failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validateRequest struct {
	Kind    types.RuleKind  `json:"kind,omitempty"`
	Subject json.RawMessage `json:"subject"`
}

// record decodes the subject, keeping numbers float64 cannot hold exactly.
func (req validateRequest) record() (*subject.Record, error) {
	raw := bytes.TrimSpace(req.Subject)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return subject.New(nil), nil
	}
	return subject.FromJSON(raw)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	subj, err := req.record()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid subject", err)
		return
	}

	res, err := s.rules.Validate(r.Context(), ruleID(r), subj)
	if err != nil {
		s.respondServiceError(w, r, "validation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidateKind(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Kind == "" {
		respondError(w, http.StatusBadRequest, "kind is required", nil)
		return
	}
	subj, err := req.record()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid subject", err)
		return
	}

	start := time.Now()
	results, err := s.rules.ValidateKind(r.Context(), req.Kind, subj)
	if err != nil {
		s.respondServiceError(w, r, "validation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results":        results,
		"evaluationTime": time.Since(start).String(),
	})
}

func ruleID(r *http.Request) types.RuleID {
	return types.RuleID(chi.URLParam(r, "ruleId"))
}

func isXML(contentType string) bool {
	return strings.Contains(contentType, "/xml") || strings.Contains(contentType, "+xml")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrRuleExists):
		return http.StatusConflict
	case service.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), message, slog.Any("error", err))
	}
	respondError(w, code, message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
