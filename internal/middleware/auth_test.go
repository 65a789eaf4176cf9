package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	want := model.Principal{ID: 42, Email: "asha@example.com", Name: "Asha", Role: model.RoleUser}

	token, err := m.IssueToken(want)
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		got, ok := PrincipalFromContext(r.Context())
		require.True(t, ok, "principal not in context")
		assert.Equal(t, want, got)
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, nextCalled, "next handler was not called")
}

func TestAuthMiddleware_WithCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	token, err := m.IssueToken(model.Principal{ID: 7, Email: "ops@example.com", Role: model.RoleAdmin})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, token)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "no cookies set by SetAuthCookie")

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(cookies[0])

	var got model.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	})
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, model.RoleAdmin, got.Role)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	other := NewAuthMiddleware("other-secret", time.Hour)

	foreign, err := other.IssueToken(model.Principal{ID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	expiring := NewAuthMiddleware("test-secret", time.Minute)
	expiring.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiring.IssueToken(model.Principal{ID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	badRole, err := m.IssueToken(model.Principal{ID: 1, Role: model.Role("root")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "foreign signature", header: "Bearer " + foreign},
		{name: "expired", header: "Bearer " + expired},
		{name: "unknown role", header: "Bearer " + badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.Middleware(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"ok":false,"error":"Unauthorized","message":"`+messageFor(tt.header)+`"}`, w.Body.String())
		})
	}
}

func messageFor(header string) string {
	if header == "" || header == "Basic abc" {
		return errMissingToken.Error()
	}
	return "invalid or expired token"
}

func TestRequireStaff(t *testing.T) {
	tests := []struct {
		name       string
		principal  *model.Principal
		wantStatus int
	}{
		{name: "admin", principal: &model.Principal{ID: 1, Role: model.RoleAdmin}, wantStatus: http.StatusNoContent},
		{name: "agent", principal: &model.Principal{ID: 2, Role: model.RoleAgent}, wantStatus: http.StatusNoContent},
		{name: "user", principal: &model.Principal{ID: 3, Role: model.RoleUser}, wantStatus: http.StatusForbidden},
		{name: "anonymous", principal: nil, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.principal != nil {
				r = r.WithContext(WithPrincipal(r.Context(), *tt.principal))
			}
			w := httptest.NewRecorder()

			RequireStaff(next).ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
