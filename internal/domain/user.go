package domain

import "time"

// Role discriminates what a signed-in principal is allowed to do.
// This is the single canonical enumeration; the backend's role string is
// normalized through ParseRole on the way in.
type Role string

const (
	RoleUser      Role = "USER"
	RoleVolunteer Role = "VOLUNTEER"
	RoleShelter   Role = "SHELTER"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole normalizes a backend role string into a canonical Role.
// Unknown values fall back to RoleUser rather than failing the whole
// identity decode.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleVolunteer, RoleShelter, RoleAdmin:
		return Role(s)
	}
	return RoleUser
}

// Valid reports whether the role is one of the canonical values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVolunteer, RoleShelter, RoleAdmin:
		return true
	}
	return false
}

// User is the cached profile of the signed-in principal. It is owned by the
// session manager and replaced wholesale on identity refresh; partial updates
// go through UserPatch.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	ProfileImage   string    `json:"profileImage,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	ProviderUserID string    `json:"providerUserId,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

// UserPatch carries the fields a profile edit may change. Nil fields are
// left untouched by Apply.
type UserPatch struct {
	Email        *string `json:"email,omitempty"`
	Name         *string `json:"name,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// Apply merges the patch into a copy of u and returns it.
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	return u
}
