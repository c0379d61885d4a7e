package intake

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/filtroclientes/api/internal/studies"
)

// credentialKeys are stripped from the raw payload before storage so that
// inline webhook credentials never reach the database.
var credentialKeys = []string{"client_id", "client_secret", "clientId", "clientSecret"}

// Service orchestrates the submission pipeline: sanitize, normalize, match
// (center-scoped and all-centers), derive the cross-center comparison and
// persist one append-only document.
type Service struct {
	repo    Repository
	catalog studies.Repository
}

func NewService(repo Repository, catalog studies.Repository) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// SanitizePayload removes embedded credentials from the raw body.
func SanitizePayload(p *Payload) {
	for _, key := range credentialKeys {
		p.Delete(key)
	}
}

// Process runs the full pipeline for one webhook body and returns the
// persisted submission. The two matcher passes run concurrently over one
// catalog snapshot; both are pure. If ctx is cancelled before the insert
// completes the computed match is discarded with no partial write.
func (s *Service) Process(ctx context.Context, payload *Payload) (*Submission, error) {
	SanitizePayload(payload)
	normalized := Normalize(payload)
	patient := normalized.Patient()

	catalog, err := s.catalog.FindRecruiting(ctx)
	if err != nil {
		return nil, err
	}

	var (
		scoped, all *studies.MatchResult
		scopedDebug *studies.DebugTrace
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scoped, scopedDebug = studies.Match(catalog, patient, normalized.Centro)
	}()
	go func() {
		defer wg.Done()
		// only the matched set is needed here, so skip the trace
		all = studies.MatchUntraced(catalog, patient, nil)
	}()
	wg.Wait()

	submission := &Submission{
		Source:           SourceFiltroclientes,
		SourceUserID:     normalized.UserID,
		SourceUserRef:    normalized.UserRef,
		CompanyCodes:     normalized.Centro,
		RawPayload:       payload.Map(),
		Normalized:       normalized,
		Match:            scoped,
		MatchCrossCenter: studies.CrossCenter(all, normalized.Centro),
		MatchDebug:       scopedDebug,
	}
	if err := s.repo.Insert(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GetByID returns one stored submission.
func (s *Service) GetByID(ctx context.Context, id string) (*Submission, error) {
	return s.repo.GetByID(ctx, id)
}

// Count returns the number of stored submissions matching the filter.
func (s *Service) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.repo.Count(ctx, filter)
}

// ListParams selects a page of submissions.
type ListParams struct {
	Filter bson.M
	Limit  int64
	Skip   int64
	// OnlyWithMatch narrows to submissions with (true) or without (false)
	// at least one matched study.
	OnlyWithMatch *bool
}

// List returns a page of submissions plus the total count for the filter.
func (s *Service) List(ctx context.Context, p ListParams) ([]*Submission, int64, error) {
	filter := bson.M{}
	for k, v := range p.Filter {
		filter[k] = v
	}
	if p.OnlyWithMatch != nil {
		if *p.OnlyWithMatch {
			filter["match.total_matches"] = bson.M{"$gt": 0}
		} else {
			filter["$or"] = bson.A{
				bson.M{"match.total_matches": 0},
				bson.M{"match": nil},
			}
		}
	}
	items, err := s.repo.Find(ctx, filter, p.Limit, p.Skip)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FilterForRole builds the submission visibility filter for a portal user.
// Roles whose company/external-id binding is incomplete (and unknown roles)
// get an impossible filter rather than an error, mirroring the original
// portal behavior; rejecting non-user actors is the handler's job.
func FilterForRole(role, companyCode string, externalUserID *int64) bson.M {
	switch role {
	case "super_admin":
		return bson.M{}
	case "company_admin":
		if companyCode == "" {
			return bson.M{"_id": nil}
		}
		return bson.M{"companyCodes": strings.ToLower(companyCode)}
	case "company_user":
		if externalUserID != nil {
			return bson.M{"sourceUserId": *externalUserID}
		}
		if companyCode != "" {
			return bson.M{"companyCodes": strings.ToLower(companyCode)}
		}
	}
	return bson.M{"_id": nil}
}
