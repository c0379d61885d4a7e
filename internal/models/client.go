package models

import "time"

// Statuses shared by Client and AppUser documents.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Permission constrains which concrete endpoints a non-admin caller may
// invoke. Path is interpreted as a regular expression at check time.
type Permission struct {
	Method string `bson:"method" json:"method"`
	Path   string `bson:"path" json:"path"`
}

// Client is a machine credential. The secret is stored only as a bcrypt
// hash; the raw secret is returned exactly once at creation time.
type Client struct {
	ID           string       `bson:"_id,omitempty" json:"id,omitempty"`
	ClientID     string       `bson:"clientId" json:"clientId"`
	SecretHash   string       `bson:"secretHash" json:"-"`
	CompanyCodes []string     `bson:"companyCodes" json:"companyCodes"`
	Scopes       []string     `bson:"scopes" json:"scopes"`
	Permissions  []Permission `bson:"permissions" json:"permissions"`
	IsAdmin      bool         `bson:"isAdmin" json:"isAdmin"`
	Status       string       `bson:"status" json:"status"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// Active reports whether the client may authenticate.
func (c *Client) Active() bool { return c.Status == StatusActive }

// HasScope reports whether the client is configured with the given scope.
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
