package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filtroclientes/api/internal/clients"
	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/tokens"
	"github.com/filtroclientes/api/internal/users"
	"github.com/filtroclientes/api/pkg/metrics"
)

// TokenRequest is the client-credentials grant body. Scope is optional and
// space-delimited; omitting it grants every configured scope.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

// UserTokenRequest is the password grant body for portal users.
type UserTokenRequest struct {
	GrantType string `json:"grant_type"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// OAuthHandler holds dependencies
type OAuthHandler struct {
	cfg        *config.Config
	clientsSvc *clients.Service
	usersSvc   *users.Service
}

func NewOAuthHandler(cfg *config.Config, c *clients.Service, u *users.Service) *OAuthHandler {
	return &OAuthHandler{cfg: cfg, clientsSvc: c, usersSvc: u}
}

// Register routes under /oauth
func (h *OAuthHandler) Register(rg *gin.RouterGroup) {
	o := rg.Group("/oauth")
	o.POST("/token", h.Token)
	o.POST("/user-token", h.UserToken)
}

// Token issues a client-credentials access token. Every requested scope
// must be configured on the client; any unknown scope fails the whole
// request and lists the offending entries (no partial grant).
func (h *OAuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if req.GrantType != "client_credentials" || req.ClientID == "" || req.ClientSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	client, err := h.clientsSvc.Authenticate(c.Request.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, clients.ErrInvalidClient) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	granted, invalid := h.clientsSvc.GrantScopes(client, strings.Fields(req.Scope))
	if len(invalid) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope", "invalid_scopes": invalid})
		return
	}

	access, err := tokens.Sign(tokens.ClientClaims(client, granted), h.cfg.JWT.Secret, h.cfg.JWT.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	metrics.TokensIssued.WithLabelValues("client_credentials").Inc()
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"token_type":   "bearer",
		"expires_in":   h.cfg.TokenTTLSeconds(),
		"scope":        strings.Join(granted, " "),
	})
}

// UserToken issues a portal token via the password grant. There is no
// scope negotiation here; the scope is always "portal" and authorization
// downstream is claim-driven by role.
func (h *OAuthHandler) UserToken(c *gin.Context) {
	var req UserTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if req.GrantType != "password" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidUser) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	access, err := tokens.Sign(tokens.UserClaims(user), h.cfg.JWT.Secret, h.cfg.JWT.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	metrics.TokensIssued.WithLabelValues("password").Inc()
	companyCode := ""
	if user.CompanyCode != nil {
		companyCode = *user.CompanyCode
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"token_type":   "bearer",
		"expires_in":   h.cfg.TokenTTLSeconds(),
		"scope":        "portal",
		"role":         user.Role,
		"companyCode":  companyCode,
	})
}
