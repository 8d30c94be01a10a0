package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/plugin"
	"imagescout/internal/server"
)

// echoPlugin exposes a single route for mount testing.
type echoPlugin struct{}

func (echoPlugin) Name() string                         { return "echo" }
func (echoPlugin) Version() string                      { return "1.0.0" }
func (echoPlugin) Init(*viper.Viper, *zap.Logger) error { return nil }
func (echoPlugin) Start(context.Context) error          { return nil }
func (echoPlugin) Stop() error                          { return nil }

func (echoPlugin) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/hello", Handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}},
	}
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	reg := plugin.NewRegistry(zap.NewNop())
	if err := reg.Register(echoPlugin{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return server.New("127.0.0.1:0", reg, zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "imagescout" {
		t.Errorf("body = %v, want status ok, service imagescout", body)
	}
	if rec.Header().Get("X-Imagescout-Version") == "" {
		t.Error("missing version header")
	}
}

func TestPluginsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/plugins", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var plugins []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &plugins); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plugins) != 1 || plugins[0]["name"] != "echo" {
		t.Errorf("plugins = %v, want just echo", plugins)
	}
}

func TestPluginRoutesMounted(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/echo/hello", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418 (plugin route must be mounted)", rec.Code)
	}
}

func TestUnknownAPIPathReturnsProblem(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	var p server.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Status != http.StatusNotFound || p.Instance != "/api/v1/nope" {
		t.Errorf("problem = %+v, want 404 for /api/v1/nope", p)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// Generate one instrumented request first.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/echo/hello", nil))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, series := range []string{"imagescout_http_requests_total", "imagescout_http_request_duration_seconds"} {
		if !strings.Contains(body, series) {
			t.Errorf("metrics output missing %s", series)
		}
	}
}
