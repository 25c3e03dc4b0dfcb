package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/warden/internal/config"
	"github.com/codeGROOVE-dev/warden/internal/state"
)

type fakeConn bool

func (f fakeConn) Connected() bool { return bool(f) }

type fakePending int

func (f fakePending) Pending() int { return int(f) }

func TestGetEnv(t *testing.T) {
	t.Setenv("WARDEN_TEST_SET", "value")

	if got := getEnv("WARDEN_TEST_SET", "default"); got != "value" {
		t.Errorf("getEnv(set) = %q, want value", got)
	}
	if got := getEnv("WARDEN_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnv(unset) = %q, want default", got)
	}
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ok\n" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ok\n")
	}
}

func TestHealthzHandler(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantStatus int
		wantBody   string
	}{
		{name: "connected", connected: true, wantStatus: http.StatusOK, wantBody: "ok - 2 pending alerts"},
		{name: "disconnected", wantStatus: http.StatusServiceUnavailable, wantBody: "discord disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			makeHealthzHandler(fakeConn(tt.connected), fakePending(2))(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	router := newRouter(fakeConn(true), fakePending(0))

	tests := []struct {
		path       string
		method     string
		wantStatus int
	}{
		{path: "/", method: http.MethodGet, wantStatus: http.StatusOK},
		{path: "/health", method: http.MethodGet, wantStatus: http.StatusOK},
		{path: "/healthz", method: http.MethodGet, wantStatus: http.StatusOK},
		{path: "/metrics", method: http.MethodGet, wantStatus: http.StatusOK},
		{path: "/health", method: http.MethodPost, wantStatus: http.StatusMethodNotAllowed},
		{path: "/nope", method: http.MethodGet, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	expectedHeaders := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "1; mode=block",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   "default-src 'none'",
	}
	for header, want := range expectedHeaders {
		if got := w.Header().Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("PROTECTED_USER_ID", "p1")
	t.Setenv("STORE", config.StoreMemory)
	t.Setenv("PORT", "")

	cfg, err := loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.DiscordBotToken != "token" || cfg.ProtectedUserID != "p1" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Port != defaultPort {
		t.Errorf("port = %q, want %q", cfg.Port, defaultPort)
	}
}

func TestLoadConfig_MissingProtectedUser(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("PROTECTED_USER_ID", "")
	t.Setenv("STORE", config.StoreMemory)

	if _, err := loadConfig(context.Background()); err == nil {
		t.Error("loadConfig() should fail without PROTECTED_USER_ID")
	}
}

func TestNewStore(t *testing.T) {
	s, err := newStore(context.Background(), config.StoreMemory)
	if err != nil {
		t.Fatalf("newStore(memory) error = %v", err)
	}
	if _, ok := s.(*state.MemoryStore); !ok {
		t.Errorf("newStore(memory) = %T, want *state.MemoryStore", s)
	}
	if _, err := newStore(context.Background(), "redis"); err == nil {
		t.Error("newStore(redis) should fail")
	}
}
