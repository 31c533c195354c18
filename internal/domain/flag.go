package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlagReason classifies an owner's flag against a renter.
type FlagReason string

const (
	FlagReasonDamage     FlagReason = "DAMAGE"
	FlagReasonLateReturn FlagReason = "LATE_RETURN"
	FlagReasonNoShow     FlagReason = "NO_SHOW"
	FlagReasonMisconduct FlagReason = "MISCONDUCT"
	FlagReasonOther      FlagReason = "OTHER"
)

// Valid reports whether r is a known flag reason.
func (r FlagReason) Valid() bool {
	switch r {
	case FlagReasonDamage, FlagReasonLateReturn, FlagReasonNoShow, FlagReasonMisconduct, FlagReasonOther:
		return true
	}
	return false
}

// RenterFlag is a moderation note left by an owner against a renter.
type RenterFlag struct {
	ID          string
	BookingID   string
	OwnerID     string
	RenterID    string
	Reason      FlagReason
	Description string
	Cost        decimal.Decimal
	PhotoURLs   []string
	DamageID    string
	CreatedAt   time.Time
}

// RenterRedTag is a platform-wide penalty marker. Only active tags count.
type RenterRedTag struct {
	ID             string
	BookingID      string
	OwnerID        string
	RenterID       string
	Reason         string
	IsActive       bool
	ResolvedBy     string
	ResolvedAt     time.Time
	ResolutionNote string
	CreatedAt      time.Time
}

// RenterStanding summarizes moderation records for a renter.
type RenterStanding struct {
	RenterID      string
	FlagCount     int
	ActiveRedTags int
	IsRedTagged   bool
}
