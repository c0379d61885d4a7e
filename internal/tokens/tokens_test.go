package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filtroclientes/api/internal/models"
)

const testSecret = "test-secret-0123456789-0123456789"

func TestClientTokenRoundTrip(t *testing.T) {
	client := &models.Client{
		ClientID: "acme",
		Scopes:   []string{"read", "write"},
		Permissions: []models.Permission{
			{Method: "POST", Path: "/webhooks/.*"},
		},
		IsAdmin: false,
	}

	raw, err := Sign(ClientClaims(client, []string{"write"}), testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(raw, testSecret)
	require.NoError(t, err)
	require.True(t, claims.IsClient())
	require.Equal(t, "acme", claims.Subject)
	require.Equal(t, []string{"write"}, claims.Scopes)
	require.Len(t, claims.Perms, 1)
	require.Equal(t, "/webhooks/.*", claims.Perms[0].Path)
	require.False(t, claims.IsAdmin)
}

func TestUserTokenRoundTrip(t *testing.T) {
	company := "saga"
	ext := int64(42)
	user := &models.AppUser{
		ID:             "u1",
		Email:          "ops@example.com",
		Role:           models.RoleCompanyAdmin,
		CompanyCode:    &company,
		ExternalUserID: &ext,
	}

	raw, err := Sign(UserClaims(user), testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(raw, testSecret)
	require.NoError(t, err)
	require.True(t, claims.IsUser())
	require.Equal(t, []string{"portal"}, claims.Scopes)
	require.Equal(t, models.RoleCompanyAdmin, claims.Role)
	require.Equal(t, "saga", claims.CompanyCode)
	require.NotNil(t, claims.ExternalUserID)
	require.Equal(t, int64(42), *claims.ExternalUserID)
}

// Token minting is not idempotent but claim computation is: two tokens for
// the same credential differ only in their timestamps.
func TestClaimComputationDeterministic(t *testing.T) {
	client := &models.Client{ClientID: "acme", Scopes: []string{"read"}}

	a := ClientClaims(client, client.Scopes)
	b := ClientClaims(client, client.Scopes)
	require.Equal(t, a, b)
}

func TestParseRejectsBadSignature(t *testing.T) {
	client := &models.Client{ClientID: "acme"}
	raw, err := Sign(ClientClaims(client, nil), testSecret, time.Hour)
	require.NoError(t, err)

	_, err = Parse(raw, "another-secret-another-secret-123")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	client := &models.Client{ClientID: "acme"}
	raw, err := Sign(ClientClaims(client, nil), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(raw, testSecret)
	require.ErrorIs(t, err, ErrInvalidToken)
}
