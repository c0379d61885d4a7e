package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/tokens"
)

// ClaimsKey is the gin context key holding the verified *tokens.Claims.
const ClaimsKey = "claims"

// Requirement declares what a route demands from the caller. Admin tokens
// bypass the scope and permission checks entirely.
type Requirement struct {
	Auth        bool
	Scopes      []string
	Permissions bool
}

// ClaimsFrom returns the verified claims set by Require, if any.
func ClaimsFrom(c *gin.Context) (*tokens.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokens.Claims)
	return claims, ok
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Require returns the authorization guard for one route requirement:
// verify the bearer token, let admins through, then check the scope set
// and (when declared) the regex method+path permission list.
func Require(secret string, req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !req.Auth {
			c.Next()
			return
		}

		raw, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := tokens.Parse(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ClaimsKey, claims)

		if claims.IsAdmin {
			c.Next()
			return
		}

		if !HasRequiredScopes(claims.Scopes, req.Scopes) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_scopes"})
			return
		}

		if req.Permissions {
			if !AllowedByPermissions(claims.Perms, c.Request.Method, routePath(c)) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not_allowed"})
				return
			}
		}

		c.Next()
	}
}

// RequireAdmin guards the admin surface: the token must be an admin token
// or carry the "admin" scope.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := tokens.Parse(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ClaimsKey, claims)

		if !claims.IsAdmin && !claims.HasScope("admin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_only"})
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin allows only privileged human users through. It must
// run after Require (it reads the claims set there).
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || !claims.IsUser() || claims.Role != models.RoleSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "super_admin_only"})
			return
		}
		c.Next()
	}
}

// HasRequiredScopes reports whether every required scope is present.
func HasRequiredScopes(have, required []string) bool {
	for _, r := range required {
		found := false
		for _, h := range have {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// compiled permission patterns, keyed by the raw pattern. A pattern that
// fails to compile is cached as nil and never matches.
var permPatterns sync.Map

func compiledPattern(pattern string) *regexp.Regexp {
	if v, ok := permPatterns.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	permPatterns.Store(pattern, re)
	return re
}

// AllowedByPermissions reports whether at least one permission matches the
// request method (case-insensitive) and path (pattern as regex). An empty
// permission list never matches.
func AllowedByPermissions(perms []models.Permission, method, path string) bool {
	for _, p := range perms {
		if !strings.EqualFold(p.Method, method) {
			continue
		}
		re := compiledPattern(p.Path)
		if re != nil && re.MatchString(path) {
			return true
		}
	}
	return false
}

// routePath prefers the declared route template over the concrete URL so
// permission patterns match what operators configured routes against.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
