package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/mindmap/internal/expander"
	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/testutil"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testHandler(t *testing.T, cfg *Config, ping pinger) http.Handler {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := mapservice.NewService(store, db)
	return newHandler(cfg, svc, nil, ping)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	h := testHandler(t, NewDefaultConfig(), fakePinger{})
	if w := serve(h, httptest.NewRequest(http.MethodGet, "/health/live", nil)); w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
	if w := serve(h, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}

	down := testHandler(t, NewDefaultConfig(), fakePinger{err: errors.New("db gone")})
	if w := serve(down, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with failing db = %d, want 503", w.Code)
	}
}

func TestAPIMountedWithAuth(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "s3cret"}
	h := testHandler(t, cfg, fakePinger{})

	if w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/mindmaps", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/mindmaps", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	if w := serve(h, req); w.Code != http.StatusOK {
		t.Errorf("with token = %d, want 200", w.Code)
	}
	// Health stays public.
	if w := serve(h, httptest.NewRequest(http.MethodGet, "/health/live", nil)); w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.CORSOrigins = []string{"http://editor.local"}
	h := testHandler(t, cfg, fakePinger{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/mindmaps/abc", nil)
	req.Header.Set("Origin", "http://editor.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := serve(h, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://editor.local" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := testHandler(t, NewDefaultConfig(), fakePinger{})
	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/mindmaps", nil))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mindmap_http_requests_total") {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestNewExpander(t *testing.T) {
	if _, ok := newExpander(AIConfig{Provider: AIProviderHeuristic}, nil).(expander.Heuristic); !ok {
		t.Error("heuristic provider should build Heuristic")
	}
	e := newExpander(AIConfig{Provider: AIProviderOpenAI, APIKey: "k"}, nil)
	if e.Name() != "openai" {
		t.Errorf("name = %q", e.Name())
	}
}
