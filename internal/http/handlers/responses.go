package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/http/respond"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// respondError maps service and storage errors to the envelope. Unknown
// errors are logged and reported as 500 without detail.
func respondError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrAuthenticationRequired):
		respond.Error(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenUserMismatch):
		respond.Error(w, http.StatusBadRequest, "the confirmation link is invalid or has expired")
	case errors.Is(err, auth.ErrPermissionDenied):
		respond.Error(w, permission.Deny.Status(), "permission denied")
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		respond.Error(w, http.StatusConflict, "email or username already registered")
	case errors.Is(err, storage.ErrUnavailable):
		log.Error("storage unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		respond.Error(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// permitted writes the decision's status and reports false when it denies.
func permitted(w http.ResponseWriter, d permission.Decision) bool {
	if d.Allowed() {
		return true
	}
	respond.Error(w, d.Status(), "permission denied")
	return false
}

// principal returns the signed-in principal or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p := auth.PrincipalFrom(r.Context())
	if !p.Authenticated() {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return p, false
	}
	return p, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
