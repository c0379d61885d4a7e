package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/filtroclientes/api/internal/models"
)

// bcrypt cost used for client secrets.
const secretHashCost = 12

var (
	// ErrExists indicates a client with the same clientId already exists.
	ErrExists = errors.New("client exists")
	// ErrInvalidClient covers absent, disabled and wrong-secret clients so
	// callers cannot distinguish which credential part failed.
	ErrInvalidClient = errors.New("invalid client")
)

// Service encapsulates client credential business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// CreateParams carries the admin-supplied fields for a new client.
type CreateParams struct {
	ClientID     string
	ClientSecret string
	CompanyCodes []string
	Scopes       []string
	Permissions  []models.Permission
	IsAdmin      bool
}

// Create registers a new client. When no secret is supplied one is
// generated. The raw secret is returned exactly once; only its bcrypt hash
// is persisted.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Client, string, error) {
	if _, err := s.repo.GetByClientID(ctx, p.ClientID); err == nil {
		return nil, "", ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	rawSecret := p.ClientSecret
	if rawSecret == "" {
		var err error
		rawSecret, err = generateSecret()
		if err != nil {
			return nil, "", err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawSecret), secretHashCost)
	if err != nil {
		return nil, "", err
	}

	c := &models.Client{
		ClientID:     p.ClientID,
		SecretHash:   string(hash),
		CompanyCodes: orEmpty(p.CompanyCodes),
		Scopes:       orEmpty(p.Scopes),
		Permissions:  p.Permissions,
		IsAdmin:      p.IsAdmin,
		Status:       models.StatusActive,
	}
	if c.Permissions == nil {
		c.Permissions = []models.Permission{}
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, "", err
	}
	return c, rawSecret, nil
}

// Authenticate validates a clientId/clientSecret pair against the store.
// It fails with ErrInvalidClient when the client is absent, disabled or the
// secret hash does not match.
func (s *Service) Authenticate(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	c, err := s.repo.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if !c.Active() {
		return nil, ErrInvalidClient
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(clientSecret)); err != nil {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// GrantScopes computes the scope set for a token request. An empty request
// grants every configured scope; otherwise every requested scope must be
// configured, and any that is not fails the whole request (no partial
// grant) with the offending scopes returned.
func (s *Service) GrantScopes(c *models.Client, requested []string) (granted []string, invalid []string) {
	if len(requested) == 0 {
		return orEmpty(c.Scopes), nil
	}
	for _, scope := range requested {
		if c.HasScope(scope) {
			granted = append(granted, scope)
		} else {
			invalid = append(invalid, scope)
		}
	}
	if len(invalid) > 0 {
		return nil, invalid
	}
	return granted, nil
}

// RotateSecret replaces the stored secret hash and returns the new raw
// secret. Used by the admin patch operation.
func (s *Service) RotateSecret(ctx context.Context, clientID, newSecret string) (string, error) {
	raw := newSecret
	if raw == "" {
		var err error
		raw, err = generateSecret()
		if err != nil {
			return "", err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), secretHashCost)
	if err != nil {
		return "", err
	}
	if _, err := s.repo.Update(ctx, clientID, bson.M{"secretHash": string(hash)}); err != nil {
		return "", err
	}
	return raw, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
