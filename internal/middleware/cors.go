package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	corsMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsMaxAge  = 10 * time.Minute
)

// corsHeaders are the request headers a browser client may send: the JSON
// body type, the bearer session and the correlation id.
var corsHeaders = strings.Join([]string{"Content-Type", "Authorization", RequestIDHeader}, ", ")

// originPolicy decides which browser origins may call the API.
type originPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

// allows reports whether origin is listed. A wildcard policy allows every
// origin but never with credentials.
func (p originPolicy) allows(origin string) (ok, credentials bool) {
	if _, listed := p.origins[strings.ToLower(origin)]; listed {
		return true, true
	}
	return p.any, false
}

// CORS lets browser clients on the configured origins use the session
// cookie and read X-Request-ID. Listed origins are echoed with credentials;
// "*" only grants anonymous access. Preflight requests end here with 204.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")

		if origin := r.Header.Get("Origin"); origin != "" {
			if ok, credentials := policy.allows(origin); ok {
				if credentials {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				} else {
					h.Set("Access-Control-Allow-Origin", "*")
				}
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				if r.Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", corsMethods)
					h.Set("Access-Control-Allow-Headers", corsHeaders)
					h.Set("Access-Control-Max-Age", strconv.Itoa(int(corsMaxAge.Seconds())))
				}
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
