package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
	"github.com/dmitrijs2005/palletkeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

// AuthAPI is the part of services.AuthService the handlers call.
type AuthAPI interface {
	Authenticator
	Login(ctx context.Context, username, password, sourceAddress string) (*services.LoginResult, error)
	Logout(ctx context.Context, token, sourceAddress string) error
	Register(ctx context.Context, callerToken string, req services.RegisterRequest, sourceAddress string) (*models.Profile, error)
	Profile(ctx context.Context, id services.Identity) (*models.Profile, error)
}

// DeviceLogAPI is the part of services.DeviceLogService the handlers call.
type DeviceLogAPI interface {
	Append(ctx context.Context, message, level, deviceIP string) (*models.DeviceLog, error)
	List(ctx context.Context, limit int, level string) ([]*models.DeviceLog, error)
	Status(ctx context.Context) (*models.DeviceLogStats, error)
	Clear(ctx context.Context, caller services.Identity) (int64, error)
}

type Handlers struct {
	auth AuthAPI
	logs DeviceLogAPI
	log  logging.Logger
}

func NewHandlers(a AuthAPI, l DeviceLogAPI, log logging.Logger) *Handlers {
	return &Handlers{auth: a, logs: l, log: log.With("module", "rest")}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", common.ErrValidation)
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *models.Profile `json:"user"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: common.BearerScheme,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), bearerToken(r), clientIP(r)); err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request, id services.Identity) {
	p, err := h.auth.Profile(r.Context(), id)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.auth.Register(r.Context(), bearerToken(r), services.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, clientIP(r))
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type appendLogRequest struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func (h *Handlers) AppendLog(w http.ResponseWriter, r *http.Request, _ services.Identity) {
	var req appendLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	l, err := h.logs.Append(r.Context(), req.Message, req.Level, clientIP(r))
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": l.ID})
}

func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request, _ services.Identity) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrValidation))
			return
		}
		limit = n
	}

	logs, err := h.logs.List(r.Context(), limit, r.URL.Query().Get("level"))
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request, _ services.Identity) {
	st, err := h.logs.Status(r.Context())
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "online",
		"total_logs":    st.Total,
		"logs_by_level": st.ByLevel,
		"last_log":      st.Last,
	})
}

func (h *Handlers) ClearLogs(w http.ResponseWriter, r *http.Request, id services.Identity) {
	n, err := h.logs.Clear(r.Context(), id)
	if err != nil {
		h.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "deleted_count": n})
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "OK")
}

// logFailure keeps the real cause in the server log; the client only sees
// the mapped message.
func (h *Handlers) logFailure(r *http.Request, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		return
	}
	h.log.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
}
