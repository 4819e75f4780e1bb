package models

// Role values carried by caller auth tokens.
const (
	RoleAdmin  = "admin"
	RoleExpert = "expert"
	RoleUser   = "user"
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
