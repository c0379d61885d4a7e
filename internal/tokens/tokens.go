package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/filtroclientes/api/internal/models"
)

// Actor types carried in the token claim-set.
const (
	ActorClient = "client"
	ActorUser   = "user"
)

// ErrInvalidToken indicates the token failed signature or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the authorization claim-set embedded in issued tokens. It is a
// snapshot taken at issuance time: editing or disabling the credential does
// not invalidate tokens already in flight.
//
// ActorType discriminates the variant: client tokens carry Scopes, Perms
// and IsAdmin; user tokens additionally carry Role, CompanyCode, UserID and
// ExternalUserID (and always the fixed "portal" scope).
type Claims struct {
	Scopes         []string            `json:"scopes"`
	Perms          []models.Permission `json:"perms"`
	IsAdmin        bool                `json:"isAdmin"`
	ActorType      string              `json:"actorType"`
	Role           string              `json:"role,omitempty"`
	CompanyCode    string              `json:"companyCode,omitempty"`
	UserID         string              `json:"userId,omitempty"`
	ExternalUserID *int64              `json:"externalUserId,omitempty"`
	jwt.RegisteredClaims
}

// IsClient reports whether the claims belong to a machine client token.
func (c *Claims) IsClient() bool { return c.ActorType == ActorClient }

// IsUser reports whether the claims belong to a portal user token.
func (c *Claims) IsUser() bool { return c.ActorType == ActorUser }

// HasScope reports whether scope is present in the token's scope set.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ClientClaims builds the claim-set for a client-credentials grant.
func ClientClaims(client *models.Client, scopes []string) *Claims {
	perms := client.Permissions
	if perms == nil {
		perms = []models.Permission{}
	}
	if scopes == nil {
		scopes = []string{}
	}
	return &Claims{
		Scopes:    scopes,
		Perms:     perms,
		IsAdmin:   client.IsAdmin,
		ActorType: ActorClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: client.ClientID,
		},
	}
}

// UserClaims builds the claim-set for a password grant. Portal tokens carry
// the fixed "portal" scope; authorization is role-driven downstream.
func UserClaims(user *models.AppUser) *Claims {
	company := ""
	if user.CompanyCode != nil {
		company = *user.CompanyCode
	}
	return &Claims{
		Scopes:         []string{"portal"},
		Perms:          []models.Permission{},
		ActorType:      ActorUser,
		Role:           user.Role,
		CompanyCode:    company,
		UserID:         user.ID,
		ExternalUserID: user.ExternalUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.Email,
		},
	}
}

// Sign stamps the claims with issue/expiry times and signs them with HS256.
func Sign(claims *Claims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the embedded claim-set.
// Verification is pure CPU work; it never touches the store.
func Parse(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
