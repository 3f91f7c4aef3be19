package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/models"
)

type stubGate struct {
	principal  auth.Principal
	resolveErr error
	gate       auth.Gate
	gateErr    error
	gotID      string
}

func (s *stubGate) Resolve(_ context.Context, id string) (auth.Principal, error) {
	s.gotID = id
	return s.principal, s.resolveErr
}

func (s *stubGate) GateRequest(context.Context, auth.Principal, string) (auth.Gate, error) {
	return s.gate, s.gateErr
}

func okHandler(seen *auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = auth.PrincipalFrom(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionIDSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionID(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", SessionID(r))

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionID(r))
}

func TestSessionAttachesPrincipal(t *testing.T) {
	user := &models.User{ID: 4, Confirmed: true}
	gate := &stubGate{principal: auth.Principal{User: user}, gate: auth.Allow}

	var seen auth.Principal
	h := Session(gate, "/auth/unconfirmed", nil, okHandler(&seen))

	r := httptest.NewRequest(http.MethodGet, "/posts", nil)
	r.Header.Set("Authorization", "Bearer sid")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sid", gate.gotID)
	require.True(t, seen.Authenticated())
	assert.Equal(t, int64(4), seen.User.ID)
}

func TestSessionRedirectsUnconfirmed(t *testing.T) {
	gate := &stubGate{principal: auth.Principal{User: &models.User{ID: 4}}, gate: auth.RedirectToUnconfirmed}
	h := Session(gate, "/auth/unconfirmed", nil, okHandler(nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/unconfirmed", rr.Header().Get("Location"))
}

func TestSessionStoreFailure(t *testing.T) {
	for _, gate := range []*stubGate{
		{resolveErr: errors.New("redis down")},
		{gateErr: errors.New("db down")},
	} {
		h := Session(gate, "/auth/unconfirmed", nil, okHandler(nil))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/posts", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
}

func TestHTTPMetricsHandlerRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{
		Registerer: registry,
		Route:      func(*http.Request) string { return "GET /hello" },
	})
	require.NoError(t, err)

	h := metrics.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hello", nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	labels := prometheus.Labels{"method": http.MethodGet, "route": "GET /hello", "status": "201"}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.With(labels)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
	assert.NotZero(t, testutil.CollectAndCount(metrics.Duration))

	again, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)
	assert.Same(t, metrics.Requests, again.Requests)
}

func TestHTTPMetricsNoopWhenNil(t *testing.T) {
	h := (*HTTPMetrics)(nil).Handler(okHandler(nil))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	h := RequestID(Logging(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fine?x=1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
	assert.Equal(t, rr.Header().Get(RequestIDHeader), entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestRequestIDReusesHeader(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = RequestIDFrom(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, "abc-123", got)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://app.test/", "*"}, okHandler(nil))

	r := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	r.Header.Set("Origin", "http://APP.test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://APP.test", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
	assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))

	r = httptest.NewRequest(http.MethodGet, "/posts", nil)
	r.Header.Set("Origin", "http://other.test")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, RequestIDHeader, rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	h := CORS([]string{"http://app.test"}, okHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/posts", nil)
	r.Header.Set("Origin", "http://evil.test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}
