package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/http/respond"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "session"

// Gatekeeper resolves sessions and runs the pre-request check.
type Gatekeeper interface {
	Resolve(ctx context.Context, sessionID string) (auth.Principal, error)
	GateRequest(ctx context.Context, p auth.Principal, path string) (auth.Gate, error)
}

// SessionID reads the session id from the cookie, falling back to a bearer token.
func SessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Session attaches the resolved principal to the request context and sends
// unconfirmed users outside the auth flow to unconfirmedPath.
func Session(gate Gatekeeper, unconfirmedPath string, log *zap.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, err := gate.Resolve(ctx, SessionID(r))
		if err != nil {
			log.Error("resolve session", zap.String("request_id", RequestIDFrom(ctx)), zap.Error(err))
			respond.Error(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}

		decision, err := gate.GateRequest(ctx, p, r.URL.Path)
		if err != nil {
			log.Error("gate request", zap.String("request_id", RequestIDFrom(ctx)), zap.Error(err))
			respond.Error(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		if decision == auth.RedirectToUnconfirmed {
			http.Redirect(w, r, unconfirmedPath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, p)))
	})
}
