package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidtube/internal/api"
	"vidtube/internal/auth"
	"vidtube/internal/models"
	"vidtube/internal/observability/metrics"
	"vidtube/internal/storage"
)

func newTestHandler(t *testing.T) (*api.Handler, *storage.JSONRepository) {
	t.Helper()
	store, err := storage.NewJSONRepository("")
	if err != nil {
		t.Fatalf("NewJSONRepository error: %v", err)
	}
	sessions := auth.NewSessionManager(time.Hour)
	handler := api.NewHandler(store, sessions,
		api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		api.WithMetrics(metrics.New()),
	)
	return handler, store
}

func newTestUser(t *testing.T, store *storage.JSONRepository, username string) models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), storage.CreateUserParams{
		Username: username,
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return user
}

func newTestServer(t *testing.T, handler *api.Handler, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	srv, err := New(handler, cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return srv
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestNewRejectsInvalidTrustedProxy(t *testing.T) {
	handler, _ := newTestHandler(t)
	if _, err := New(handler, Config{RateLimit: RateLimitConfig{TrustedProxies: []string{"not-a-cidr/99"}}}); err == nil {
		t.Fatal("expected invalid trusted proxy to fail")
	}
}

func TestAuthMiddlewareAcceptsCookie(t *testing.T) {
	handler, store := newTestHandler(t)
	user := newTestUser(t, store, "tester")
	token, _, err := handler.Sessions.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		ctxUser, ok := api.UserFromContext(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if ctxUser.ID != user.ID {
			t.Fatalf("expected user %s, got %s", user.ID, ctxUser.ID)
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/likes/video/x", nil)
	req.AddCookie(&http.Cookie{Name: api.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()

	authMiddleware(handler, nil, next).ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatalf("expected next handler to be called, got status %d", rec.Code)
	}
}

func TestAuthMiddlewareContinuesAnonymouslyWithoutToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		if _, ok := api.UserFromContext(r.Context()); ok {
			t.Fatal("expected no user in context")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/user/x", nil)
	authMiddleware(handler, nil, next).ServeHTTP(httptest.NewRecorder(), req)

	if !nextCalled {
		t.Fatal("expected anonymous request to reach handler")
	}
}

func TestAuthMiddlewareRejectsInvalidSession(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/videos", nil)
	req.Header.Set("Authorization", "Bearer not-a-session")
	rec := httptest.NewRecorder()

	authMiddleware(handler, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for an invalid session")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var envelope api.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Success || envelope.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}

func TestAuthMiddlewareLetsStaleTokenLogOut(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: api.SessionCookieName, Value: "expired"})
	rec := httptest.NewRecorder()
	called := false

	authMiddleware(handler, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected logout to pass through, got %d", rec.Code)
	}
}

func TestClientIPResolverIgnoresForwardedByDefault(t *testing.T) {
	resolver, err := newClientIPResolver(RateLimitConfig{})
	if err != nil {
		t.Fatalf("newClientIPResolver error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.10:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	ip, source := resolver.ClientIPFromRequest(req)
	if ip != "198.51.100.10" {
		t.Fatalf("expected remote addr, got %q", ip)
	}
	if source != ipSourceRemoteAddr {
		t.Fatalf("expected source %q, got %q", ipSourceRemoteAddr, source)
	}
}

func TestClientIPResolverTrustsForwardedWhenEnabled(t *testing.T) {
	resolver, err := newClientIPResolver(RateLimitConfig{TrustForwardedHeaders: true})
	if err != nil {
		t.Fatalf("newClientIPResolver error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1111"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	ip, source := resolver.ClientIPFromRequest(req)
	if ip != "203.0.113.5" {
		t.Fatalf("expected first forwarded ip, got %q", ip)
	}
	if source != ipSourceXForwardedFor {
		t.Fatalf("expected source %q, got %q", ipSourceXForwardedFor, source)
	}
}

func TestClientIPResolverTrustedProxyCIDR(t *testing.T) {
	resolver, err := newClientIPResolver(RateLimitConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	if err != nil {
		t.Fatalf("newClientIPResolver error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Real-IP", "203.0.113.10")
	ip, source := resolver.ClientIPFromRequest(req)
	if ip != "203.0.113.10" {
		t.Fatalf("expected real ip header, got %q", ip)
	}
	if source != ipSourceXRealIP {
		t.Fatalf("expected source %q, got %q", ipSourceXRealIP, source)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "198.51.100.20:4444"
	req2.Header.Set("X-Forwarded-For", "203.0.113.11")
	ip2, source2 := resolver.ClientIPFromRequest(req2)
	if ip2 != "198.51.100.20" {
		t.Fatalf("expected remote addr for untrusted proxy, got %q", ip2)
	}
	if source2 != ipSourceRemoteAddr {
		t.Fatalf("expected source %q, got %q", ipSourceRemoteAddr, source2)
	}
}

func TestServerRoutesAuthenticatedToggle(t *testing.T) {
	handler, store := newTestHandler(t)
	author := newTestUser(t, store, "author")
	fan := newTestUser(t, store, "fan")
	tweet, err := store.CreateTweet(context.Background(), author.ID, "hello")
	if err != nil {
		t.Fatalf("CreateTweet: %v", err)
	}
	token, _, err := handler.Sessions.Create(context.Background(), fan.ID)
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	var audit bytes.Buffer
	srv := newTestServer(t, handler, Config{AuditLogger: slog.New(slog.NewJSONHandler(&audit, nil))})

	req := httptest.NewRequest(http.MethodPost, "/api/likes/tweet/"+tweet.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	var entry map[string]any
	if err := json.Unmarshal(audit.Bytes(), &entry); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if entry["user_id"] != fan.ID || entry["method"] != http.MethodPost {
		t.Fatalf("unexpected audit entry %v", entry)
	}

	anon := httptest.NewRequest(http.MethodPost, "/api/likes/tweet/"+tweet.ID, nil)
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, anon)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous toggle to be rejected, got %d", rec.Code)
	}
}

func TestServerServesMetricsAndUnknownRoutes(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := newTestServer(t, handler, Config{})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vidtube_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope api.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("expected JSON envelope for unknown route: %v", err)
	}
}

func TestServerMetricsLabelRequestsByRoute(t *testing.T) {
	handler, store := newTestHandler(t)
	srv := newTestServer(t, handler, Config{})
	alice := newTestUser(t, store, "alice")
	bob := newTestUser(t, store, "bob")

	for _, id := range []string{alice.ID, bob.ID} {
		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tweets/user/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected tweets 200, got %d", rec.Code)
		}
	}
	for i := 0; i < 200; i++ {
		srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/nope-%d", i), nil))
	}

	rec := httptest.NewRecorder()
	srv.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`vidtube_http_requests_total{method="GET",route="/api/tweets/user/{userId}",status="200"} 2`,
		`vidtube_http_requests_total{method="GET",route="unmatched",status="404"} 200`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
	if strings.Contains(body, "/api/nope-") {
		t.Fatal("expected unknown paths to stay out of metric labels")
	}
	if got := strings.Count(body, "vidtube_http_requests_total{"); got != 2 {
		t.Fatalf("expected 2 request series, got %d", got)
	}
}

func TestServerGlobalRateLimit(t *testing.T) {
	handler, _ := newTestHandler(t)
	recorder := metrics.New()
	srv := newTestServer(t, handler, Config{
		Metrics:   recorder,
		RateLimit: RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 1},
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestServerRunServesAndDrains(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := newTestServer(t, handler, Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bound := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, func(addr net.Addr) { bound <- addr }) }()

	var addr net.Addr
	select {
	case addr = <-bound:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header from the live chain")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
