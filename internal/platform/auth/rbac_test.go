package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleContext(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		granted []string
		allowed []string
		wantErr bool
	}{
		{"matching role", []string{RoleReceptionist}, []string{RoleReceptionist, RoleDentist}, false},
		{"admin passes", []string{RoleAdmin}, []string{RoleDentist}, false},
		{"wrong role", []string{RoleAssistant}, []string{RoleDentist}, true},
		{"no roles", nil, []string{RoleDentist}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(tt.allowed...)(okHandler)(roleContext(tt.granted))
			if (err != nil) != tt.wantErr {
				t.Fatalf("RequireRole() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != http.StatusForbidden {
					t.Errorf("expected 403, got %v", err)
				}
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	if !HasRole([]string{"dentist"}, "dentist") {
		t.Error("expected dentist to match")
	}
	if HasRole([]string{"dentist"}) {
		t.Error("expected no match with empty requirement for non-admin")
	}
	if !HasRole([]string{"admin"}) {
		t.Error("expected admin to match anything")
	}
}

func TestAuthSkipper(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())
	c.SetPath("/health")
	if !AuthSkipper(c) {
		t.Error("expected /health to be public")
	}
	c.SetPath("/api/v1/patients")
	if AuthSkipper(c) {
		t.Error("expected /api/v1/patients to require auth")
	}
	if !IsPublicPath("/health/db") {
		t.Error("expected /health/db to be public")
	}
}
