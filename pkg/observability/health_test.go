package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker("test")
	checker.AddCheck("plugins", func(ctx context.Context) DependencyStatus {
		return DependencyStatus{Status: StatusUnhealthy}
	})

	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != StatusHealthy {
		t.Errorf("Expected status %q, got %v", StatusHealthy, body["status"])
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]string
		wantStatus string
		wantCode   int
	}{
		{
			name:       "no checks",
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "all healthy",
			checks:     map[string]string{"plugins": StatusHealthy, "watcher": StatusHealthy},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "degraded",
			checks:     map[string]string{"plugins": StatusHealthy, "watcher": StatusDegraded},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name:       "unhealthy wins over degraded",
			checks:     map[string]string{"plugins": StatusUnhealthy, "watcher": StatusDegraded},
			wantStatus: StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker("1.2.3")
			for name, status := range tt.checks {
				status := status
				checker.AddCheck(name, func(ctx context.Context) DependencyStatus {
					return DependencyStatus{Status: status}
				})
			}

			rec := httptest.NewRecorder()
			checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Expected %q, got %q", tt.wantStatus, status.Status)
			}
			if status.Version != "1.2.3" {
				t.Errorf("Expected version 1.2.3, got %q", status.Version)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Errorf("Expected %d dependencies, got %d", len(tt.checks), len(status.Dependencies))
			}
		})
	}
}
