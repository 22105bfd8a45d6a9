package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/version"
)

// StatusReport is the bridge state exposed on /status.
type StatusReport struct {
	WhatsAppConnected bool                    `json:"whatsapp_connected"`
	User              string                  `json:"user"`
	Chats             int                     `json:"chats"`
	Users             int                     `json:"users"`
	Contacts          int                     `json:"contacts"`
	StartedAt         time.Time               `json:"started_at"`
	Metrics           metrics.RuntimeSnapshot `json:"metrics"`
}

// Backend is what the gateway needs from the running bridge.
type Backend interface {
	Status() StatusReport
	SendText(ctx context.Context, jid, text string) (string, error)
}

type Server struct {
	cfg        config.GatewayConfig
	backend    Backend
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, backend Backend) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18791
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:     cfg,
		backend: backend,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           NewHandler(s.cfg.Token, s.backend),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// NewHandler builds the gateway routes. A non-empty token protects every
// route but /health and /version.
func NewHandler(token string, backend Backend) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if backend == nil {
			writeError(w, requestID, http.StatusServiceUnavailable, "unavailable", "bridge is not running")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     backend.Status(),
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			Number  string `json:"number"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		number := contacts.NormalizePhone(req.Number)
		if len(number) < 6 || len(number) > 15 {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid phone number format")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "message is required")
			return
		}
		if backend == nil {
			writeError(w, requestID, http.StatusServiceUnavailable, "unavailable", "bridge is not running")
			return
		}

		messageID, err := backend.SendText(bus.WithRequestID(r.Context(), requestID), contacts.JID(number), req.Message)
		if err != nil {
			slog.Error("gateway send failed", "request_id", requestID, "number", number, "error", err)
			writeError(w, requestID, http.StatusBadGateway, "send_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"number":     number,
			"message_id": messageID,
			"confirmed":  messageID != "",
			"request_id": requestID,
		})
	})
	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(got, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expected)) == 1
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
