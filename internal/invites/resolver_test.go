package invites

import (
	"errors"
	"testing"
	"time"

	"github.com/pantryware/homestock/internal/family"
)

func pendingInvitation(familyID string, expiresAt time.Time) *Invitation {
	return &Invitation{
		ID:            NewInvitationID(),
		FamilyID:      familyID,
		FamilyName:    "Test Family",
		InvitedUserID: "user-1",
		InviterUserID: "user-2",
		Role:          family.RoleMember,
		Status:        StatusPending,
		CreatedAt:     time.Now().Add(-time.Hour),
		ExpiresAt:     expiresAt,
	}
}

func TestResolveAccept_NoMembership(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-1", now.Add(time.Hour))

	if err := ResolveAccept(inv, nil, false, now); err != nil {
		t.Fatalf("expected accept to pass without membership, got %v", err)
	}
}

func TestResolveAccept_SameFamily(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-1", now.Add(time.Hour))
	membership := &family.MembershipSummary{FamilyID: "fam-1", Role: family.RoleMember, Status: family.MembershipActive}

	// Same family never needs switch confirmation.
	if err := ResolveAccept(inv, membership, false, now); err != nil {
		t.Fatalf("expected accept to pass for same family, got %v", err)
	}
}

func TestResolveAccept_SwitchRequiresConfirmation(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-2", now.Add(time.Hour))
	membership := &family.MembershipSummary{FamilyID: "fam-1", Role: family.RoleAdmin, Status: family.MembershipActive}

	err := ResolveAccept(inv, membership, false, now)
	if !errors.Is(err, ErrSwitchConfirmationRequired) {
		t.Fatalf("expected ErrSwitchConfirmationRequired, got %v", err)
	}

	if err := ResolveAccept(inv, membership, true, now); err != nil {
		t.Fatalf("expected confirmed switch to pass, got %v", err)
	}
}

func TestResolveAccept_InactiveMembershipNotGated(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-2", now.Add(time.Hour))

	// Only an ACTIVE membership in another family gates the accept; a
	// suspended or mid-switch one does not.
	for _, status := range []family.MembershipStatus{family.MembershipSuspended, family.MembershipPendingSwitch} {
		membership := &family.MembershipSummary{FamilyID: "fam-1", Role: family.RoleMember, Status: status}
		if RequiresSwitchConfirmation(inv, membership) {
			t.Errorf("%s membership should not require switch confirmation", status)
		}
		if err := ResolveAccept(inv, membership, false, now); err != nil {
			t.Errorf("%s membership: expected accept to pass, got %v", status, err)
		}
	}
}

func TestResolveAccept_NotActionable(t *testing.T) {
	now := time.Now()

	expired := pendingInvitation("fam-1", now.Add(-time.Minute))
	if err := ResolveAccept(expired, nil, false, now); !errors.Is(err, ErrInvitationNotActionable) {
		t.Fatalf("expected ErrInvitationNotActionable for expired, got %v", err)
	}

	declined := pendingInvitation("fam-1", now.Add(time.Hour))
	declined.Status = StatusDeclined
	if err := ResolveAccept(declined, nil, false, now); !errors.Is(err, ErrInvitationNotActionable) {
		t.Fatalf("expected ErrInvitationNotActionable for declined, got %v", err)
	}

	revoked := pendingInvitation("fam-1", now.Add(time.Hour))
	revoked.Status = StatusRevoked
	if err := ResolveAccept(revoked, nil, false, now); !errors.Is(err, ErrInvitationNotActionable) {
		t.Fatalf("expected ErrInvitationNotActionable for revoked, got %v", err)
	}
}

func TestResolveAccept_ActionabilityBeforeSwitchGate(t *testing.T) {
	now := time.Now()
	// Expired invitation into a different family: the stale invitation must
	// never prompt for a switch.
	inv := pendingInvitation("fam-2", now.Add(-time.Minute))
	membership := &family.MembershipSummary{FamilyID: "fam-1", Role: family.RoleMember, Status: family.MembershipActive}

	err := ResolveAccept(inv, membership, false, now)
	if !errors.Is(err, ErrInvitationNotActionable) {
		t.Fatalf("expected ErrInvitationNotActionable, got %v", err)
	}
}

func TestResolveDecline_NeverGatedBySwitch(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-2", now.Add(time.Hour))

	if err := ResolveDecline(inv, now); err != nil {
		t.Fatalf("expected decline to pass, got %v", err)
	}

	inv.Status = StatusAccepted
	if err := ResolveDecline(inv, now); !errors.Is(err, ErrInvitationNotActionable) {
		t.Fatalf("expected ErrInvitationNotActionable, got %v", err)
	}
}

func TestResolveDeclineAll(t *testing.T) {
	now := time.Now()
	actionable1 := pendingInvitation("fam-1", now.Add(time.Hour))
	actionable2 := pendingInvitation("fam-2", now.Add(time.Hour))
	expired := pendingInvitation("fam-3", now.Add(-time.Minute))
	declined := pendingInvitation("fam-4", now.Add(time.Hour))
	declined.Status = StatusDeclined

	got, err := ResolveDeclineAll([]*Invitation{actionable1, expired, actionable2, declined}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 actionable invitations, got %d", len(got))
	}
	for _, inv := range got {
		if !inv.Actionable(now) {
			t.Errorf("invitation %s is not actionable", inv.ID)
		}
	}
}

func TestResolveDeclineAll_NoneActionable(t *testing.T) {
	now := time.Now()
	expired := pendingInvitation("fam-1", now.Add(-time.Minute))

	if _, err := ResolveDeclineAll([]*Invitation{expired}, now); !errors.Is(err, ErrNoActionableInvitations) {
		t.Fatalf("expected ErrNoActionableInvitations, got %v", err)
	}
	if _, err := ResolveDeclineAll(nil, now); !errors.Is(err, ErrNoActionableInvitations) {
		t.Fatalf("expected ErrNoActionableInvitations for empty list, got %v", err)
	}
}

func TestInvitationActionable_ExpiryBoundary(t *testing.T) {
	now := time.Now()
	inv := pendingInvitation("fam-1", now)

	// Exactly at expiry the invitation is no longer actionable.
	if inv.Actionable(now) {
		t.Fatal("invitation at its expiry instant should not be actionable")
	}
	if !inv.Actionable(now.Add(-time.Millisecond)) {
		t.Fatal("invitation just before expiry should be actionable")
	}
}
