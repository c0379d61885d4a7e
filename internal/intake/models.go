package intake

import (
	"time"

	"github.com/filtroclientes/api/internal/studies"
)

// SourceFiltroclientes tags submissions originating from the public intake
// web form webhook.
const SourceFiltroclientes = "filtroclientes"

// Submission is the append-only record persisted for each webhook call.
// It carries both match views: matchCrossCenter and matchDebug are stored
// always but surface only on the super-admin read endpoints.
type Submission struct {
	ID               string                     `bson:"_id,omitempty" json:"id,omitempty"`
	Source           string                     `bson:"source" json:"source"`
	SourceUserID     *float64                   `bson:"sourceUserId" json:"sourceUserId"`
	SourceUserRef    *string                    `bson:"sourceUserRef" json:"sourceUserRef"`
	CompanyCodes     []string                   `bson:"companyCodes" json:"companyCodes"`
	RawPayload       map[string]interface{}     `bson:"rawPayload" json:"rawPayload"`
	Normalized       *NormalizedIntake          `bson:"normalized" json:"normalized"`
	Match            *studies.MatchResult       `bson:"match" json:"match"`
	MatchCrossCenter *studies.CrossCenterResult `bson:"matchCrossCenter" json:"matchCrossCenter,omitempty"`
	MatchDebug       *studies.DebugTrace        `bson:"matchDebug" json:"matchDebug,omitempty"`
	CreatedAt        time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time                  `bson:"updatedAt" json:"updatedAt"`
}
