// Package invites implements family invitations: creation, the recipient's
// decision flow (accept, decline, decline-all), and decision-token gating.
package invites

import (
	"time"
)

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusDeclined InvitationStatus = "declined"
	StatusExpired  InvitationStatus = "expired"
	StatusRevoked  InvitationStatus = "revoked"
)

// Invitation invites a user into a family with a proposed role.
type Invitation struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	FamilyID      string           `json:"familyId" gorm:"index"`
	FamilyName    string           `json:"familyName"`
	InvitedUserID string           `json:"invitedUserId" gorm:"index"`
	InviterUserID string           `json:"inviterUserId"`
	InviterName   string           `json:"inviterName"`
	Role          string           `json:"role"`
	Message       string           `json:"message,omitempty"`
	Status        InvitationStatus `json:"status"`
	DeclineReason string           `json:"declineReason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	DecidedAt     *time.Time       `json:"decidedAt,omitempty"`
}

// Actionable reports whether the invitation can still be decided on: it is
// pending and not past its expiry.
func (i *Invitation) Actionable(now time.Time) bool {
	return i.Status == StatusPending && now.Before(i.ExpiresAt)
}
