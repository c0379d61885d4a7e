package handlers

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/filtroclientes/api/internal/clients"
	"github.com/filtroclientes/api/internal/companies"
	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/intake"
	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/studies"
	"github.com/filtroclientes/api/internal/users"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: testJWTSecret, TokenTTL: time.Hour},
	}
}

func hashSecret(raw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// fakeClientRepo is an in-memory clients.Repository.
type fakeClientRepo struct {
	byID map[string]*models.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{byID: map[string]*models.Client{}}
}

func (r *fakeClientRepo) GetByClientID(_ context.Context, clientID string) (*models.Client, error) {
	c, ok := r.byID[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) Insert(_ context.Context, c *models.Client) error {
	cp := *c
	r.byID[c.ClientID] = &cp
	return nil
}

func (r *fakeClientRepo) List(_ context.Context) ([]*models.Client, error) {
	out := []*models.Client{}
	for _, c := range r.byID {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeClientRepo) Update(_ context.Context, clientID string, set bson.M) (*models.Client, error) {
	c, ok := r.byID[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "secretHash":
			c.SecretHash = v.(string)
		case "status":
			c.Status = v.(string)
		case "scopes":
			c.Scopes = v.([]string)
		case "permissions":
			c.Permissions = v.([]models.Permission)
		case "companyCodes":
			c.CompanyCodes = v.([]string)
		case "isAdmin":
			c.IsAdmin = v.(bool)
		}
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) Delete(_ context.Context, clientID string) error {
	if _, ok := r.byID[clientID]; !ok {
		return clients.ErrNotFound
	}
	delete(r.byID, clientID)
	return nil
}

// fakeUserRepo is an in-memory users.Repository.
type fakeUserRepo struct {
	byEmail map[string]*models.AppUser
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*models.AppUser{}}
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.AppUser, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Insert(_ context.Context, u *models.AppUser) error {
	cp := *u
	r.byEmail[u.Email] = &cp
	return nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]*models.AppUser, error) {
	out := []*models.AppUser{}
	for _, u := range r.byEmail {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// fakeCompanyRepo is an in-memory companies.Repository.
type fakeCompanyRepo struct {
	byCode map[string]*models.Company
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{byCode: map[string]*models.Company{}}
}

func (r *fakeCompanyRepo) GetByCode(_ context.Context, code string) (*models.Company, error) {
	c, ok := r.byCode[code]
	if !ok {
		return nil, companies.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCompanyRepo) Insert(_ context.Context, c *models.Company) error {
	cp := *c
	r.byCode[c.Code] = &cp
	return nil
}

func (r *fakeCompanyRepo) List(_ context.Context) ([]*models.Company, error) {
	out := []*models.Company{}
	for _, c := range r.byCode {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// fakeCatalog is an in-memory studies.Repository.
type fakeCatalog struct {
	items []*studies.ClinicalStudy
}

func (f *fakeCatalog) FindRecruiting(_ context.Context) ([]*studies.ClinicalStudy, error) {
	out := []*studies.ClinicalStudy{}
	for _, s := range f.items {
		if s.EstadoProtocolo == studies.Recruiting {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) List(_ context.Context) ([]*studies.ClinicalStudy, error) {
	return append([]*studies.ClinicalStudy{}, f.items...), nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*studies.ClinicalStudy, error) {
	for _, s := range f.items {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, studies.ErrNotFound
}

func (f *fakeCatalog) Insert(_ context.Context, s *studies.ClinicalStudy) error {
	for _, cur := range f.items {
		if cur.Protocolo == s.Protocolo {
			return studies.ErrExists
		}
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("study-%d", len(f.items)+1)
	}
	f.items = append(f.items, s)
	return nil
}

func (f *fakeCatalog) Update(_ context.Context, id string, set bson.M) (*studies.ClinicalStudy, error) {
	for _, s := range f.items {
		if s.ID == id {
			if v, ok := set["estado_protocolo"].(string); ok {
				s.EstadoProtocolo = v
			}
			if v, ok := set["subtipo"].(string); ok {
				s.Subtipo = v
			}
			return s, nil
		}
	}
	return nil, studies.ErrNotFound
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	for i, s := range f.items {
		if s.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return studies.ErrNotFound
}

// fakeSubmissionRepo is an in-memory intake.Repository.
type fakeSubmissionRepo struct {
	items []*intake.Submission
}

func (r *fakeSubmissionRepo) Insert(_ context.Context, s *intake.Submission) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sub-%d", len(r.items)+1)
	}
	r.items = append(r.items, s)
	return nil
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*intake.Submission, error) {
	for _, s := range r.items {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, intake.ErrNotFound
}

func (r *fakeSubmissionRepo) Find(_ context.Context, filter bson.M, limit, skip int64) ([]*intake.Submission, error) {
	out := []*intake.Submission{}
	for _, s := range r.items {
		if submissionMatches(s, filter) {
			out = append(out, s)
		}
	}
	if skip > 0 && skip < int64(len(out)) {
		out = out[skip:]
	} else if skip >= int64(len(out)) {
		out = []*intake.Submission{}
	}
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSubmissionRepo) Count(_ context.Context, filter bson.M) (int64, error) {
	var n int64
	for _, s := range r.items {
		if submissionMatches(s, filter) {
			n++
		}
	}
	return n, nil
}

// submissionMatches understands only the filter shapes the handlers build.
func submissionMatches(s *intake.Submission, filter bson.M) bool {
	for k, v := range filter {
		switch k {
		case "_id":
			if v == nil {
				return false
			}
			if s.ID != v {
				return false
			}
		case "companyCodes":
			// Mongo array membership semantics
			want, ok := v.(string)
			if !ok {
				return false
			}
			found := false
			for _, have := range s.CompanyCodes {
				if have == want {
					found = true
				}
			}
			if !found {
				return false
			}
		case "sourceUserId":
			id, ok := v.(int64)
			if !ok || s.SourceUserID == nil || *s.SourceUserID != float64(id) {
				return false
			}
		case "match.total_matches":
			if m, ok := v.(bson.M); ok {
				if s.Match == nil || s.Match.TotalMatches <= m["$gt"].(int) {
					return false
				}
			}
		}
	}
	return true
}
