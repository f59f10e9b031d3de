package routing

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(ready func() bool) (http.Handler, *int) {
	calls := 0
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("OK"))
	})
	return SetupRouter(Config{Webhook: webhook, Logger: zerolog.Nop(), Ready: ready}), &calls
}

func TestSetupRouter_Callback(t *testing.T) {
	router, calls := newRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{"events":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, 1, *calls)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// Webhook only accepts POST
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, *calls)
}

func TestSetupRouter_Healthz(t *testing.T) {
	ready := true
	router, _ := newRouter(func() bool { return ready })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	ready = false
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSetupRouter_Metrics(t *testing.T) {
	router, _ := newRouter(nil)

	// Generate a request so the HTTP counters have a sample
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "groupguard_http_requests_total")
}

func TestSetupRouter_UnknownPath(t *testing.T) {
	router, _ := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupRouter_AccessLog(t *testing.T) {
	var buf strings.Builder
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Int("events", 3)
		})
		_, _ = w.Write([]byte("OK"))
	})

	for _, tt := range []struct {
		name       string
		trustProxy bool
		clientIP   string
	}{
		{"peer address by default", false, "192.0.2.10"},
		{"forwarded address behind a proxy", true, "203.0.113.7"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			router := SetupRouter(Config{Webhook: webhook, Logger: zerolog.New(&buf), TrustProxy: tt.trustProxy})

			req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{}`))
			req.RemoteAddr = "192.0.2.10:40000"
			req.Header.Set("X-Forwarded-For", "203.0.113.7")
			router.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
			assert.Equal(t, tt.clientIP, entry["client_ip"])
			assert.Equal(t, float64(3), entry["events"])
		})
	}
}
