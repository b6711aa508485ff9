package invites

import (
	"errors"
	"time"

	"github.com/pantryware/homestock/internal/family"
)

var (
	// ErrInvitationNotActionable is returned for invitations that are not
	// pending or already past expiry.
	ErrInvitationNotActionable = errors.New("invitation is not actionable")
	// ErrSwitchConfirmationRequired gates accepting an invitation into a
	// different family while an active membership exists.
	ErrSwitchConfirmationRequired = errors.New("switch confirmation required")
	// ErrNoActionableInvitations is returned by decline-all when the
	// recipient has nothing to decline.
	ErrNoActionableInvitations = errors.New("no actionable invitations")
	// ErrDecisionTokenInvalid covers missing, expired, consumed, and
	// mismatched decision tokens.
	ErrDecisionTokenInvalid = errors.New("decision token invalid")
)

// AcceptRequest is a resolved accept decision. DecisionToken is carried
// verbatim from the listing that issued it; the resolver never inspects it.
type AcceptRequest struct {
	InvitationID  string `json:"invitationId"`
	DecisionToken string `json:"decisionToken"`
	ConfirmSwitch bool   `json:"confirmSwitch"`
}

// DeclineRequest declines a single invitation. Reason is free text for the
// inviter's benefit and is stored as-is.
type DeclineRequest struct {
	InvitationID  string `json:"invitationId"`
	DecisionToken string `json:"decisionToken"`
	Reason        string `json:"reason,omitempty"`
}

// DeclineAllRequest declines every actionable invitation for the recipient.
type DeclineAllRequest struct {
	DecisionToken string `json:"decisionToken"`
}

// RequiresSwitchConfirmation reports whether accepting inv would pull the
// recipient out of a family they are actively in. Only an ACTIVE membership
// in a different family gates; suspended and pending-switch memberships
// carry no weight here.
func RequiresSwitchConfirmation(inv *Invitation, membership *family.MembershipSummary) bool {
	return membership != nil &&
		membership.Status == family.MembershipActive &&
		membership.FamilyID != inv.FamilyID
}

// ResolveAccept validates an accept decision against the invitation and the
// recipient's current membership. membership is nil when the recipient
// belongs to no family. Accepting into a different family than the current
// active membership is a hard gate: it fails with
// ErrSwitchConfirmationRequired unless confirmSwitch is set. The gate is
// evaluated only after actionability, so stale invitations never prompt for
// a switch.
func ResolveAccept(inv *Invitation, membership *family.MembershipSummary, confirmSwitch bool, now time.Time) error {
	if !inv.Actionable(now) {
		return ErrInvitationNotActionable
	}
	if RequiresSwitchConfirmation(inv, membership) && !confirmSwitch {
		return ErrSwitchConfirmationRequired
	}
	return nil
}

// ResolveDecline validates a decline decision. Declining never requires
// switch confirmation regardless of the recipient's membership.
func ResolveDecline(inv *Invitation, now time.Time) error {
	if !inv.Actionable(now) {
		return ErrInvitationNotActionable
	}
	return nil
}

// ResolveDeclineAll filters invs down to the actionable subset. It returns
// ErrNoActionableInvitations when the subset is empty; non-actionable
// invitations are skipped silently, never an error.
func ResolveDeclineAll(invs []*Invitation, now time.Time) ([]*Invitation, error) {
	var actionable []*Invitation
	for _, inv := range invs {
		if inv.Actionable(now) {
			actionable = append(actionable, inv)
		}
	}
	if len(actionable) == 0 {
		return nil, ErrNoActionableInvitations
	}
	return actionable, nil
}
