package rbac

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy(" Admin = quotation.view, QUOTATION.EDIT ; viewer=quotation.view;; admin=quotation.finalize")
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "viewer"}, policy.Roles())
	perms, err := NewService(policy).EffectivePermissions(context.Background(), shared.Principal{Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, []string{PermQuotationEdit, PermQuotationFinalize, PermQuotationView}, perms)

	_, err = ParsePolicy("broken")
	assert.Error(t, err)
	_, err = ParsePolicy("=quotation.view")
	assert.Error(t, err)
}

func TestDefaultPolicy(t *testing.T) {
	policy, err := ParsePolicy(DefaultPolicy)
	require.NoError(t, err)
	svc := NewService(policy)

	perms, err := svc.EffectivePermissions(context.Background(), shared.Principal{Role: "sales_rep"})
	require.NoError(t, err)
	assert.NotContains(t, perms, PermQuotationFinalize)
	assert.Contains(t, perms, PermQuotationEdit)

	_, err = svc.EffectivePermissions(context.Background(), shared.Principal{Role: "guest"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	policy, err := ParsePolicy(DefaultPolicy)
	require.NoError(t, err)
	svc := NewService(policy)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := Middleware{Service: svc, Logger: logger}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.With(mw.RequireAny(PermQuotationView, PermQuotationEdit)).Get("/any", ok)
	r.With(mw.RequireAll(PermQuotationEdit, PermQuotationFinalize)).Get("/all", ok)
	r.With(mw.RequireAll()).Get("/open", ok)
	r.Route("/permissions", NewPermissionsHandler(logger, svc).MountRoutes)
	return r
}

func call(router http.Handler, path, user, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		path string
		user string
		role string
		want int
	}{
		{"anonymous", "/any", "", "", http.StatusUnauthorized},
		{"unknown role", "/any", "u-1", "guest", http.StatusForbidden},
		{"viewer any", "/any", "u-1", "viewer", http.StatusNoContent},
		{"viewer all", "/all", "u-1", "viewer", http.StatusForbidden},
		{"rep all", "/all", "u-1", "sales_rep", http.StatusForbidden},
		{"manager all", "/all", "u-1", "Sales_Manager", http.StatusNoContent},
		{"no requirements", "/open", "", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, call(router, tc.path, tc.user, tc.role).Code)
		})
	}
}

func TestPermissionsMe(t *testing.T) {
	router := newTestRouter(t)

	rec := call(router, "/permissions/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(router, "/permissions/me", "u-9", "viewer")
	require.Equal(t, http.StatusOK, rec.Code)
	var body meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u-9", body.UserID)
	assert.Equal(t, []string{PermQuotationView}, body.Permissions)

	rec = call(router, "/permissions/me", "u-9", "guest")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Permissions)
}
