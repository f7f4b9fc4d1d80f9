package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"debt-collector/internal/audit"
	"debt-collector/internal/auth"
	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/config"
	"debt-collector/internal/dialer"
	"debt-collector/internal/rbac"
	"debt-collector/internal/reporting"
	"debt-collector/internal/tenant"
)

func testApp() *app {
	callRepo := calls.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	st := &stores{
		instances: tenant.NewMemoryRepo(tenant.Instance{ID: "a", Active: true}),
		bills:     bills.NewMemoryRepo(),
		calls:     callRepo,
		audit:     auditRepo,
		close:     func() {},
	}
	auditSvc := audit.NewService(auditRepo)
	engine := dialer.NewEngine(st.bills, st.calls, &dialer.Dispatcher{}, dialer.NewMemoryLease(), auditSvc, dialer.EngineConfig{Location: time.UTC})
	return &app{
		stores:     st,
		audit:      auditSvc,
		engine:     engine,
		worker:     dialer.NewWorker(st.instances, engine, time.Minute, 1),
		reporting:  reporting.NewService(reporting.Sources{Calls: callRepo, Audit: auditRepo}),
		closeLease: func() {},
	}
}

func testRouter(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	r := gin.New()
	registerRoutes(r, testApp(), auth.RequireAccessToken(m))
	return r, m
}

func get(r *gin.Engine, path, token string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	r, _ := testRouter(t)
	if code := get(r, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code := get(r, "/metrics", ""); code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
}

func TestRoutes_SummaryRequiresToken(t *testing.T) {
	r, m := testRouter(t)
	if code := get(r, "/v1/instances/a/dialer/summary", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	tok, err := m.Issue(time.Now(), "op-1", "a", rbac.RoleViewer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code := get(r, "/v1/instances/a/dialer/summary", tok); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := get(r, "/v1/instances/b/dialer/summary", tok); code != http.StatusForbidden {
		t.Fatalf("expected 403 for another instance, got %d", code)
	}
}

func TestRoutes_HealthzReportsStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := testApp()
	a.stores.ping = func(ctx context.Context) error { return errors.New("connection refused") }
	r := gin.New()
	registerRoutes(r, a, func(c *gin.Context) { c.Next() })

	if code := get(r, "/healthz", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}
