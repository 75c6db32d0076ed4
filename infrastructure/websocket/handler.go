package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"duo-chat/auth"
	"duo-chat/contract"
	"duo-chat/errors"
	"duo-chat/services"

	gorilla "github.com/gorilla/websocket"
)

const maxBodySize = 1 << 16

// Sessions runs admitted chat sessions.
type Sessions interface {
	Serve(ctx context.Context, conn contract.Connection) error
	OnlineUsers() []string
}

type Handler struct {
	log      *slog.Logger
	sessions Sessions
	accounts services.IAuthService
	upgrader gorilla.Upgrader
	cfg      ConnectionConfig
	stats    func() any
}

// NewHandler wires the HTTP surface. stats may be nil, it feeds /healthz.
func NewHandler(
	log *slog.Logger,
	sessions Sessions,
	accounts services.IAuthService,
	origins *OriginPolicy,
	cfg ConnectionConfig,
	stats func() any,
) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
		accounts: accounts,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		cfg:   cfg,
		stats: stats,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.serveWebsocket)
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

// serveWebsocket upgrades first, admission happens on the socket so a
// refused client still receives its logout notice.
func (h *Handler) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(ws, token, h.cfg, h.log)
	if err := h.sessions.Serve(r.Context(), conn); err != nil {
		h.log.Debug("Session refused", "conn_id", conn.ID(), "error", err)
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token.String()})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.String()})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":      "ok",
		"onlineUsers": len(h.sessions.OnlineUsers()),
	}
	if h.stats != nil {
		body["process"] = h.stats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid payload.", Error: true})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "Something went wrong, try again later."
	switch {
	case errors.Is(err, errors.ErrUserAlreadyExists):
		status, message = http.StatusConflict, "User already exists."
	case errors.Is(err, errors.ErrInvalidPassword):
		status, message = http.StatusBadRequest, "Invalid registration details."
	case errors.Is(err, errors.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, errors.ErrStoreUnavailable):
		status, message = http.StatusServiceUnavailable, "Service unavailable, try again later."
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("Account request failed", "error", err)
	} else {
		h.log.Debug("Account request refused", "error", err)
	}
	writeJSON(w, status, errorResponse{Message: message, Error: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
