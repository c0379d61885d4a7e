package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/tokens"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signedClient(t *testing.T, c *models.Client, scopes []string) string {
	t.Helper()
	raw, err := tokens.Sign(tokens.ClientClaims(c, scopes), testSecret, time.Minute)
	require.NoError(t, err)
	return raw
}

func guardedRouter(req Requirement) *gin.Engine {
	g := gin.New()
	g.GET("/api/data", Require(testSecret, req), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return g
}

func TestRequire_NoHeader(t *testing.T) {
	g := guardedRouter(Requirement{Auth: true})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestRequire_InvalidToken(t *testing.T) {
	g := guardedRouter(Requirement{Auth: true})
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestRequire_AuthDisabledPassesThrough(t *testing.T) {
	g := guardedRouter(Requirement{Auth: false})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequire_AdminBypassesScopesAndPermissions(t *testing.T) {
	admin := &models.Client{ClientID: "root", IsAdmin: true, Status: models.StatusActive}
	raw := signedClient(t, admin, nil)

	g := guardedRouter(Requirement{Auth: true, Scopes: []string{"read", "write"}, Permissions: true})
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequire_MissingScope(t *testing.T) {
	c := &models.Client{ClientID: "acme", Status: models.StatusActive}
	raw := signedClient(t, c, []string{"read"})

	g := guardedRouter(Requirement{Auth: true, Scopes: []string{"read", "write"}})
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Contains(t, rw.Body.String(), "insufficient_scopes")
}

func TestRequire_PermissionRegexMismatch(t *testing.T) {
	c := &models.Client{
		ClientID: "acme",
		Status:   models.StatusActive,
		Permissions: []models.Permission{
			{Method: "GET", Path: "^/other/.*$"},
		},
	}
	raw := signedClient(t, c, []string{"read"})

	g := guardedRouter(Requirement{Auth: true, Scopes: []string{"read"}, Permissions: true})
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Contains(t, rw.Body.String(), "not_allowed")
}

func TestRequire_PermissionMatch(t *testing.T) {
	c := &models.Client{
		ClientID: "acme",
		Status:   models.StatusActive,
		Permissions: []models.Permission{
			{Method: "get", Path: "/api/.*"},
		},
	}
	raw := signedClient(t, c, []string{"read"})

	g := guardedRouter(Requirement{Auth: true, Scopes: []string{"read"}, Permissions: true})
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

func TestAllowedByPermissions(t *testing.T) {
	perms := []models.Permission{
		{Method: "POST", Path: "^/webhooks/.*$"},
		{Method: "GET", Path: "[invalid"},
	}
	require.True(t, AllowedByPermissions(perms, "post", "/webhooks/filtroclientes"))
	// a pattern that fails to compile never matches
	require.False(t, AllowedByPermissions(perms, "GET", "/webhooks/filtroclientes"))
	require.False(t, AllowedByPermissions(nil, "GET", "/api/data"))
}

func TestRequireAdmin(t *testing.T) {
	g := gin.New()
	g.GET("/admin/clients", RequireAdmin(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	plain := signedClient(t, &models.Client{ClientID: "acme", Status: models.StatusActive}, []string{"read"})
	req := httptest.NewRequest(http.MethodGet, "/admin/clients", nil)
	req.Header.Set("Authorization", "Bearer "+plain)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Contains(t, rw.Body.String(), "admin_only")

	scoped := signedClient(t, &models.Client{ClientID: "ops", Status: models.StatusActive}, []string{"admin"})
	req = httptest.NewRequest(http.MethodGet, "/admin/clients", nil)
	req.Header.Set("Authorization", "Bearer "+scoped)
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	g := gin.New()
	g.GET("/portal/x",
		Require(testSecret, Requirement{Auth: true, Scopes: []string{"portal"}}),
		RequireSuperAdmin(),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)

	company := "saga"
	user := &models.AppUser{Email: "a@b.co", Role: models.RoleCompanyAdmin, CompanyCode: &company, Status: models.StatusActive}
	raw, err := tokens.Sign(tokens.UserClaims(user), testSecret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/portal/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Contains(t, rw.Body.String(), "super_admin_only")

	super := &models.AppUser{Email: "root@b.co", Role: models.RoleSuperAdmin, Status: models.StatusActive}
	raw, err = tokens.Sign(tokens.UserClaims(super), testSecret, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/portal/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}
