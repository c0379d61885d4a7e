package intake

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/filtroclientes/api/internal/studies"
)

type fakeSubmissionRepo struct {
	inserted []*Submission
}

func (f *fakeSubmissionRepo) Insert(ctx context.Context, s *Submission) error {
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id string) (*Submission, error) {
	for _, s := range f.inserted {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeSubmissionRepo) Find(ctx context.Context, filter bson.M, limit, skip int64) ([]*Submission, error) {
	return f.inserted, nil
}

func (f *fakeSubmissionRepo) Count(ctx context.Context, filter bson.M) (int64, error) {
	return int64(len(f.inserted)), nil
}

type fakeCatalog struct {
	studies []*studies.ClinicalStudy
}

func (f *fakeCatalog) FindRecruiting(ctx context.Context) ([]*studies.ClinicalStudy, error) {
	return f.studies, nil
}
func (f *fakeCatalog) List(ctx context.Context) ([]*studies.ClinicalStudy, error) {
	return f.studies, nil
}
func (f *fakeCatalog) GetByID(ctx context.Context, id string) (*studies.ClinicalStudy, error) {
	return nil, studies.ErrNotFound
}
func (f *fakeCatalog) Insert(ctx context.Context, s *studies.ClinicalStudy) error { return nil }
func (f *fakeCatalog) Update(ctx context.Context, id string, set bson.M) (*studies.ClinicalStudy, error) {
	return nil, studies.ErrNotFound
}
func (f *fakeCatalog) Delete(ctx context.Context, id string) error { return nil }

func testCatalog() *fakeCatalog {
	return &fakeCatalog{studies: []*studies.ClinicalStudy{
		{
			ID:               "s1",
			Protocolo:        "P-001",
			Enfermedad:       "Cáncer de Pulmón",
			CentrosProtocolo: []string{"saga"},
			EstadoProtocolo:  "Reclutando",
		},
		{
			ID:               "s2",
			Protocolo:        "P-002",
			Enfermedad:       "Cáncer de Pulmón",
			CentrosProtocolo: []string{"bh"},
			EstadoProtocolo:  "Reclutando",
		},
	}}
}

func TestProcessPipeline(t *testing.T) {
	repo := &fakeSubmissionRepo{}
	svc := NewService(repo, testCatalog())

	var payload Payload
	body := `{
		"client_id": "acme",
		"client_secret": "shh",
		"enfermedad": "pulmón",
		"centro": "saga",
		"user_id": 341
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	sub, err := svc.Process(context.Background(), &payload)
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)

	// credentials are stripped before storage
	_, hasID := sub.RawPayload["client_id"]
	_, hasSecret := sub.RawPayload["client_secret"]
	require.False(t, hasID)
	require.False(t, hasSecret)
	require.Contains(t, sub.RawPayload, "enfermedad")

	require.Equal(t, SourceFiltroclientes, sub.Source)
	require.Equal(t, []string{"saga"}, sub.CompanyCodes)
	require.Equal(t, float64(341), *sub.SourceUserID)
	require.Nil(t, sub.SourceUserRef)

	// scoped pass sees only the declared center, cross-center sees the rest
	require.Equal(t, 1, sub.Match.TotalMatches)
	require.Equal(t, "s1", sub.Match.Studies[0].ID)
	require.Equal(t, 2, sub.MatchCrossCenter.TotalAllCenters)
	require.Len(t, sub.MatchCrossCenter.StudiesOtherCenters, 1)
	require.Equal(t, "s2", sub.MatchCrossCenter.StudiesOtherCenters[0].ID)

	require.NotNil(t, sub.MatchDebug)
	require.Equal(t, 2, sub.MatchDebug.Evaluated)
}

func TestFilterForRole(t *testing.T) {
	ext := int64(42)

	require.Equal(t, bson.M{}, FilterForRole("super_admin", "", nil))
	require.Equal(t, bson.M{"companyCodes": "saga"}, FilterForRole("company_admin", "SAGA", nil))
	require.Equal(t, bson.M{"_id": nil}, FilterForRole("company_admin", "", nil))
	require.Equal(t, bson.M{"sourceUserId": int64(42)}, FilterForRole("company_user", "saga", &ext))
	require.Equal(t, bson.M{"companyCodes": "saga"}, FilterForRole("company_user", "saga", nil))
	require.Equal(t, bson.M{"_id": nil}, FilterForRole("company_user", "", nil))
	require.Equal(t, bson.M{"_id": nil}, FilterForRole("other", "saga", &ext))
}
