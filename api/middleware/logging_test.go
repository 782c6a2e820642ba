package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

func newLoggedRouter(buf *bytes.Buffer) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: buf})
	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {})
	return r
}

func TestLoggingRecordsRoutePatternAndSize(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	newLoggedRouter(&buf).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	out := buf.String()
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, out, `"route":"/orders/{orderId}"`)
	assert.Contains(t, out, `"path":"/orders/42"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":5`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	router := newLoggedRouter(&buf)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, buf.String(), "probes log at debug")

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestLoggingNilLoggerPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	rec := httptest.NewRecorder()
	Logging(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
