package shield

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/promptdock/kit"
)

func TestIsLoopback(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"127.0.0.1":      true,
		"192.168.1.4:80": false,
		"example.com:80": false,
		"":               false,
	}
	for addr, want := range cases {
		if got := IsLoopback(addr); got != want {
			t.Errorf("IsLoopback(%q): got %v, want %v", addr, got, want)
		}
	}
}

func TestLocalOnly(t *testing.T) {
	h := LocalOnly(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/composers", nil)
	req.RemoteAddr = "10.0.0.8:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote peer: got %d, want 403", rec.Code)
	}

	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("loopback peer: got %d, want 204", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = kit.GetRequestID(r.Context())
		if kit.GetTransport(r.Context()) != "http" {
			t.Errorf("transport: got %q", kit.GetTransport(r.Context()))
		}
		if GetLogger(r.Context()) == nil {
			t.Error("missing request logger")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("client id: ctx=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" || seen == "req-42" {
		t.Fatalf("generated id: got %q", seen)
	}
}

func TestDefaultStack_MaxBody(t *testing.T) {
	var readErr error
	r := chi.NewRouter()
	for _, mw := range DefaultStack(nil) {
		r.Use(mw)
	}
	r.Post("/insert", func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})
	req := httptest.NewRequest(http.MethodPost, "/insert", bytes.NewReader(make([]byte, MaxBody+1)))
	req.RemoteAddr = "127.0.0.1:5000"
	r.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Fatal("expected read error past the limit")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s: got %q, want %q", name, got, want)
		}
	}
}

func TestDefaultStack_HeadOnGetRoute(t *testing.T) {
	r := chi.NewRouter()
	for _, mw := range DefaultStack(nil) {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "ok") })

	req := httptest.NewRequest(http.MethodHead, "/health", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health: got %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("HEAD /health: no request id")
	}
}
