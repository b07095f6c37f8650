package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/cookie"
	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/handler"
	"github.com/dukerupert/idunn/internal/service"
	"github.com/dukerupert/idunn/internal/telemetry"
)

// AuthHandler serves signup, login, and logout. Sessions are carried in an
// HttpOnly cookie backed by a server-side session record.
type AuthHandler struct {
	users   service.UserService
	cookies *cookie.Config
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users service.UserService, cookies *cookie.Config, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:   users,
		cookies: cookies,
		logger:  logger,
	}
}

type accountBody struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Signup handles POST /api/signup. New accounts start on the free plan.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth.signup"

	var req credentialsRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	account, token, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.Signups.Inc()
	}
	h.cookies.SetSession(w, cookie.SessionCookieName, token, int(service.SessionTTL.Seconds()))
	handler.JSON(w, http.StatusCreated, struct {
		User accountBody `json:"user"`
	}{User: accountBody{ID: account.ID, Email: account.Email}})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth.login"

	var req credentialsRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	account, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if telemetry.Business != nil && domain.IsCode(err, domain.EUNAUTHORIZED) {
			telemetry.Business.LoginFailed.WithLabelValues("invalid_credentials").Inc()
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.Logins.Inc()
	}
	h.cookies.SetSession(w, cookie.SessionCookieName, token, int(service.SessionTTL.Seconds()))
	handler.JSON(w, http.StatusOK, struct {
		User accountBody `json:"user"`
	}{User: accountBody{ID: account.ID, Email: account.Email}})
}

// Logout handles POST /api/logout. Logging out without a session is fine.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := cookie.Get(r, cookie.SessionCookieName)
	if err := h.users.Logout(r.Context(), token); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.ClearSession(w, cookie.SessionCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me, returning the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := domain.UserFromContext(r.Context())
	if user == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		User accountBody `json:"user"`
	}{User: accountBody{ID: user.ID, Email: user.Email}})
}
