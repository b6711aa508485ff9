// Package family provides household family and member management.
// A family is the top-level collaborative unit owning inventory, members,
// and shopping lists.
package family

import (
	"errors"
	"time"
)

var (
	ErrFamilyNotFound  = errors.New("family not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrVersionConflict = errors.New("member version conflict")
	ErrAlreadyMember   = errors.New("user is already a member of this family")
)

// Role constants for family member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// ValidRole reports whether s is a known member role.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// MembershipStatus represents the status of a family membership.
type MembershipStatus string

const (
	MembershipActive        MembershipStatus = "ACTIVE"
	MembershipPendingSwitch MembershipStatus = "PENDING_SWITCH"
	MembershipSuspended     MembershipStatus = "SUSPENDED"
)

// Family represents a household.
type Family struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member represents a user's membership in a family.
// Version implements optimistic concurrency: updates and deletes must carry
// the version they were read at and fail with ErrVersionConflict when stale.
type Member struct {
	ID        string           `json:"id" gorm:"primaryKey"`
	FamilyID  string           `json:"familyId" gorm:"index"`
	UserID    string           `json:"userId" gorm:"index"`
	Role      string           `json:"role"`
	Status    MembershipStatus `json:"status"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// MembershipSummary is the user's current family membership at decision
// time. At most one exists per user; it drives switch-confirmation gating
// in the invitation resolver.
type MembershipSummary struct {
	FamilyID   string           `json:"familyId"`
	FamilyName string           `json:"familyName"`
	Role       string           `json:"role"`
	Status     MembershipStatus `json:"status"`
}
