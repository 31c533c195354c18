package domain

import "time"

// Role is a capability flag carried by a user.
type Role string

const (
	RoleRenter Role = "RENTER"
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRenter, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// VerificationStatus represents the identity verification state of a user.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationRejected   VerificationStatus = "REJECTED"
)

// User represents a marketplace member. Users are never hard-deleted.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	PhoneVerified bool
	Verification  VerificationStatus
	IsRenter      bool
	IsOwner       bool
	IsAdmin       bool
	IsSuspended   bool
	IsDeleted     bool
	CreatedAt     time.Time
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID string
	Roles  []Role
}

// Has reports whether the actor carries the given role.
func (a Actor) Has(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for Has(RoleAdmin).
func (a Actor) IsAdmin() bool {
	return a.Has(RoleAdmin)
}
