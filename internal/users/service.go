package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/filtroclientes/api/internal/models"
)

const passwordHashCost = 12

var (
	// ErrInvalidUser covers absent, disabled and wrong-password users.
	ErrInvalidUser = errors.New("invalid user")
	// ErrExists indicates the email is already registered.
	ErrExists = errors.New("user exists")
	// ErrCompanyRequired enforces the role invariant: every role other than
	// super_admin must be bound to a company code.
	ErrCompanyRequired = errors.New("company code required for role")
)

// Service encapsulates portal user business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// CreateParams carries the admin-supplied fields for a new portal user.
type CreateParams struct {
	Email          string
	FullName       string
	Password       string
	Role           string
	CompanyCode    *string
	ExternalUserID *int64
}

// Create registers a new portal user.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.AppUser, error) {
	if !models.ValidRole(p.Role) {
		return nil, errors.New("invalid role")
	}
	if p.Role != models.RoleSuperAdmin && (p.CompanyCode == nil || strings.TrimSpace(*p.CompanyCode) == "") {
		return nil, ErrCompanyRequired
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), passwordHashCost)
	if err != nil {
		return nil, err
	}
	u := &models.AppUser{
		Email:          email,
		FullName:       p.FullName,
		PasswordHash:   string(hash),
		Role:           p.Role,
		CompanyCode:    p.CompanyCode,
		ExternalUserID: p.ExternalUserID,
		Status:         models.StatusActive,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate validates an email/password pair. Lookup is by lowercased
// email; absent, disabled and mismatched credentials are indistinguishable
// to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.AppUser, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidUser
		}
		return nil, err
	}
	if !u.Active() {
		return nil, ErrInvalidUser
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidUser
	}
	return u, nil
}

// List returns all portal users.
func (s *Service) List(ctx context.Context) ([]*models.AppUser, error) {
	return s.repo.List(ctx)
}
