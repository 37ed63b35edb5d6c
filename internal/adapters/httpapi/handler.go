// Package httpapi serves the account flows as JSON over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kvetinski/identity/internal/domain"
	accountsvc "github.com/kvetinski/identity/internal/service/account"
	"github.com/kvetinski/identity/internal/telemetry"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc     *accountsvc.Service
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewHandler(svc *accountsvc.Service, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{svc: svc, logger: logger, metrics: metrics}
}

// Routes builds the router. allowedOrigins feeds the CORS policy; empty
// allows any origin.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(h.observe)

	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/verify", h.handleVerify)
		r.Post("/login", h.handleLogin)
		r.Get("/me", h.handleMe)
	})

	return r
}

type registerRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

type registerResponse struct {
	Message   string `json:"message"`
	AccountID string `json:"accountId"`
}

type verifyRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type loginResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	Account domain.Summary `json:"account"`
}

type meResponse struct {
	Account domain.Summary `json:"account"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), accountsvc.RegisterInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		Password:    req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Message: res.Message, AccountID: res.AccountID.String()})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.svc.Verify(r.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Message: res.Message, Token: res.Token, Account: res.Account})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		h.writeError(w, r, domain.ErrInvalidToken)
		return
	}

	summary, err := h.svc.Whoami(r.Context(), strings.TrimSpace(token))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{Account: summary})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.KindInvalidArgument, Message: msg})
		return false
	}

	return true
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case domain.KindInvalidArgument, domain.KindInvalidCode:
		return http.StatusBadRequest
	case domain.KindDuplicateAccount:
		return http.StatusConflict
	case domain.KindDeliveryFailed:
		return http.StatusBadGateway
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindCodeExpired:
		return http.StatusGone
	case domain.KindNotVerified:
		return http.StatusForbidden
	case domain.KindInvalidCredentials, domain.KindInvalidToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	code := StatusFor(kind)
	if code >= http.StatusInternalServerError {
		h.logger.Error("http request failed",
			"route", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}

	writeJSON(w, code, errorResponse{Error: kind, Message: domain.Message(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		h.metrics.ObserveHTTP(route, strconv.Itoa(status), time.Since(start))
		h.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
