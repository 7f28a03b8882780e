// Package httpapi exposes the sync engine over HTTP and websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/notify"
)

// SyncAPI is the part of the sync service the HTTP layer calls.
type SyncAPI interface {
	Push(ctx context.Context, deviceAuthToken string, batch []model.ActionEnvelope) (int, error)
	Pull(ctx context.Context, deviceAuthToken string, status model.ClientDataStatus) (*model.ServerDataStatus, error)
	Identify(ctx context.Context, deviceAuthToken string) (familyID, deviceID string, err error)
}

// AuthAPI is the part of the auth service the HTTP layer calls.
type AuthAPI interface {
	ParentLogin(ctx context.Context, deviceAuthToken, parentUserID, secondPasswordHash, ip string) (model.Tokens, error)
	VerifyAccessToken(token string) (familyID, userID string, err error)
}

// ServerConfig tunes request handling limits.
type ServerConfig struct {
	MaxBodyBytes int64
}

// Server routes sync, parent auth and websocket requests to the services.
type Server struct {
	log  *zap.Logger
	sync SyncAPI
	auth AuthAPI
	hub  *notify.Hub
	cfg  ServerConfig

	upgrader websocket.Upgrader
}

// NewServer constructs the HTTP API server.
func NewServer(log *zap.Logger, syncSvc SyncAPI, authSvc AuthAPI, hub *notify.Hub, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		log:  log,
		sync: syncSvc,
		auth: authSvc,
		hub:  hub,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the routed handler with logging and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync/push-actions", s.handlePushActions)
	mux.HandleFunc("POST /sync/pull-status", s.handlePullStatus)
	mux.HandleFunc("GET /sync/websocket", s.handleWebsocket)
	mux.HandleFunc("POST /parent/login", s.handleParentLogin)
	mux.HandleFunc("GET /parent/status", s.handleParentStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withRecover(s.log, withLogging(s.log, mux))
}

type pushActionsRequest struct {
	DeviceAuthToken string                 `json:"deviceAuthToken"`
	Actions         []model.ActionEnvelope `json:"actions"`
}

type pushActionsResponse struct {
	Applied int `json:"applied"`
}

func (s *Server) handlePushActions(w http.ResponseWriter, r *http.Request) {
	var req pushActionsRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	applied, err := s.sync.Push(r.Context(), req.DeviceAuthToken, req.Actions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pushActionsResponse{Applied: applied})
}

type pullStatusRequest struct {
	DeviceAuthToken string                 `json:"deviceAuthToken"`
	Status          model.ClientDataStatus `json:"status"`
}

func (s *Server) handlePullStatus(w http.ResponseWriter, r *http.Request) {
	var req pullStatusRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	diff, err := s.sync.Pull(r.Context(), req.DeviceAuthToken, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	deviceAuthToken := r.URL.Query().Get("deviceAuthToken")
	familyID, deviceID, err := s.sync.Identify(r.Context(), deviceAuthToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		s.log.Debug("websocket upgrade", zap.Error(err))
		return
	}

	conn := notify.NewConn(s.log, ws, deviceID)
	s.hub.Register(familyID, conn)
	defer s.hub.Unregister(familyID, conn)

	s.log.Info("websocket connected",
		zap.String("familyId", familyID),
		zap.String("deviceId", deviceID),
	)
	conn.Run(r.Context())
}

type parentLoginRequest struct {
	DeviceAuthToken    string `json:"deviceAuthToken"`
	ParentUserID       string `json:"parentUserId"`
	SecondPasswordHash string `json:"secondPasswordHash"`
}

type parentLoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) handleParentLogin(w http.ResponseWriter, r *http.Request) {
	var req parentLoginRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	tokens, err := s.auth.ParentLogin(r.Context(), req.DeviceAuthToken, req.ParentUserID, req.SecondPasswordHash, clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentLoginResponse{
		AccessToken: tokens.AccessToken,
		ExpiresAt:   tokens.ExpiresAt,
	})
}

type parentStatusResponse struct {
	FamilyID string `json:"familyId"`
	UserID   string `json:"userId"`
}

func (s *Server) handleParentStatus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, r, errs.ErrUnauthorized)
		return
	}
	familyID, userID, err := s.auth.VerifyAccessToken(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parentStatusResponse{FamilyID: familyID, UserID: userID})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

// writeError maps service sentinels to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	case errors.Is(err, errs.ErrSequenceMismatch),
		errors.Is(err, errs.ErrIntegrityMismatch),
		errors.Is(err, errs.ErrConflict):
		writeErrorBody(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, errs.ErrMalformedAction),
		errors.Is(err, errs.ErrUnknownActionType):
		writeErrorBody(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, errs.ErrRateLimited):
		writeErrorBody(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
