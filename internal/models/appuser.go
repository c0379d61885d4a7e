package models

import "time"

// Portal roles, ordered from most to least privileged.
const (
	RoleSuperAdmin   = "super_admin"
	RoleCompanyAdmin = "company_admin"
	RoleCompanyUser  = "company_user"
)

// ValidRole reports whether role is one of the known portal roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleCompanyAdmin, RoleCompanyUser:
		return true
	}
	return false
}

// AppUser is a human/portal credential. Email is stored lowercased and is
// unique. Non-super_admin roles must carry a non-null company code.
type AppUser struct {
	ID             string    `bson:"_id,omitempty" json:"id,omitempty"`
	Email          string    `bson:"email" json:"email"`
	FullName       string    `bson:"fullName" json:"fullName"`
	PasswordHash   string    `bson:"passwordHash" json:"-"`
	Role           string    `bson:"role" json:"role"`
	CompanyCode    *string   `bson:"companyCode" json:"companyCode"`
	ExternalUserID *int64    `bson:"externalUserId" json:"externalUserId"`
	Status         string    `bson:"status" json:"status"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Active reports whether the user may authenticate.
func (u *AppUser) Active() bool { return u.Status == StatusActive }
