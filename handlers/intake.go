package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/filtroclientes/api/internal/clients"
	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/intake"
	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/tokens"
	"github.com/filtroclientes/api/pkg/logger"
	"github.com/filtroclientes/api/pkg/metrics"
	"github.com/filtroclientes/api/pkg/middleware"
)

// IntakeHandler holds dependencies for the webhook ingest endpoint.
type IntakeHandler struct {
	cfg        *config.Config
	clientsSvc *clients.Service
	intakeSvc  *intake.Service
}

func NewIntakeHandler(cfg *config.Config, c *clients.Service, s *intake.Service) *IntakeHandler {
	return &IntakeHandler{cfg: cfg, clientsSvc: c, intakeSvc: s}
}

// Register routes under /webhooks
func (h *IntakeHandler) Register(rg *gin.RouterGroup) {
	w := rg.Group("/webhooks")
	w.POST("/filtroclientes", h.Ingest)
}

// Ingest accepts an intake form submission. Callers authorize either with
// a bearer token (client tokens only) or with client_id/client_secret
// inside the body itself; both paths enforce the same scope and
// permission rules. The response never carries the cross-center view or
// the derivation trace; those stay on the super-admin read paths.
func (h *IntakeHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var payload intake.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if !h.authorize(c, &payload) {
		return
	}

	sub, err := h.intakeSvc.Process(c.Request.Context(), &payload)
	if err != nil {
		logger.Errorf("intake pipeline failed: %v", err)
		metrics.IntakeSubmissions.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	metrics.IntakeSubmissions.WithLabelValues("ok").Inc()

	c.JSON(http.StatusCreated, gin.H{
		"ok":         true,
		"id":         sub.ID,
		"normalized": sub.Normalized,
		"match":      sub.Match,
	})
}

// authorize resolves the caller on the webhook path and reports whether
// the request may proceed; on failure the response has already been
// written.
func (h *IntakeHandler) authorize(c *gin.Context, payload *intake.Payload) bool {
	if raw, hasBearer := middleware.BearerToken(c); hasBearer {
		claims, err := tokens.Parse(raw, h.cfg.JWT.Secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return false
		}
		if claims.IsUser() {
			c.JSON(http.StatusForbidden, gin.H{"error": "user_token_not_allowed"})
			return false
		}
		if claims.IsAdmin {
			return true
		}
		return h.checkClientAccess(c, claims.Scopes, claims.Perms)
	}

	// inline one-shot credentials inside the body
	clientID, _ := payloadString(payload, "client_id", "clientId")
	clientSecret, _ := payloadString(payload, "client_secret", "clientSecret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_client_credentials"})
		return false
	}
	client, err := h.clientsSvc.Authenticate(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		if errors.Is(err, clients.ErrInvalidClient) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return false
	}
	if client.IsAdmin {
		return true
	}
	return h.checkClientAccess(c, client.Scopes, client.Permissions)
}

// checkClientAccess applies the non-admin rules: the "write" scope plus a
// permission entry matching this route.
func (h *IntakeHandler) checkClientAccess(c *gin.Context, scopes []string, perms []models.Permission) bool {
	if !middleware.HasRequiredScopes(scopes, []string{"write"}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient_scopes"})
		return false
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if !middleware.AllowedByPermissions(perms, c.Request.Method, path) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_allowed"})
		return false
	}
	return true
}

// payloadString fetches the first present key as a string.
func payloadString(p *intake.Payload, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := p.Get(k); ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
