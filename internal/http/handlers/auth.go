package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/http/respond"
	"github.com/hongminglow/kinder-admin/internal/middleware"
	"github.com/hongminglow/kinder-admin/internal/models/dto"
)

// AuthHandler owns the register, login and confirmation endpoints.
type AuthHandler struct {
	svc          *auth.Service
	cookieSecure bool
	log          *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service, cookieSecure bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, cookieSecure: cookieSecure, log: log}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/confirm/{token}", h.handleConfirm)
	mux.HandleFunc("POST /auth/confirm", h.handleResend)
	mux.HandleFunc("GET /auth/unconfirmed", h.handleUnconfirmed)
	mux.HandleFunc("GET /auth/me", h.handleMe)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	user, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.Password2,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "A confirmation email has been sent to you by email.", user)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	p, err := h.svc.Authenticate(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    p.Session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if p.Session.Remember {
		cookie.Expires = p.Session.ExpiresAt
	}
	http.SetCookie(w, cookie)
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Session: p.Session.ID, User: *p.User})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), middleware.SessionID(r)); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	respond.JSON(w, http.StatusOK, "You have been logged out.", nil)
}

func (h *AuthHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Confirm(r.Context(), p, r.PathValue("token")); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "You have confirmed your account. Thanks!", status(p))
}

func (h *AuthHandler) handleResend(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.User.Confirmed {
		respond.JSON(w, http.StatusOK, "account already confirmed", status(p))
		return
	}
	if err := h.svc.ResendConfirmation(r.Context(), p); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "A new confirmation email has been sent to you by email.", nil)
}

func (h *AuthHandler) handleUnconfirmed(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if !p.Authenticated() || p.User.Confirmed {
		respond.JSON(w, http.StatusOK, "nothing to confirm", status(p))
		return
	}
	respond.JSON(w, http.StatusOK, "You have not confirmed your account yet.", status(p))
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, "ok", status(p))
}

func status(p auth.Principal) dto.StatusResponse {
	if !p.Authenticated() {
		return dto.StatusResponse{}
	}
	return dto.StatusResponse{Authenticated: true, Confirmed: p.User.Confirmed, User: p.User}
}
