package family

import (
	"context"
	"errors"
	"time"
)

// Service wraps the repos with membership operations that span both.
type Service struct {
	Families FamilyRepo
	Members  MemberRepo
}

func NewService(families FamilyRepo, members MemberRepo) *Service {
	return &Service{Families: families, Members: members}
}

// SummaryForUser returns the user's current active membership, or nil when
// the user belongs to no family.
func (s *Service) SummaryForUser(ctx context.Context, userID string) (*MembershipSummary, error) {
	m, err := s.Members.ActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, nil
		}
		return nil, err
	}
	summary := &MembershipSummary{
		FamilyID: m.FamilyID,
		Role:     m.Role,
		Status:   m.Status,
	}
	// The membership is authoritative; the family name is decoration and a
	// missing family row must not block decisions that hinge on the summary.
	f, err := s.Families.Get(ctx, m.FamilyID)
	if err == nil {
		summary.FamilyName = f.Name
	} else if !errors.Is(err, ErrFamilyNotFound) {
		return nil, err
	}
	return summary, nil
}

// ActivateMembership makes userID an active member of familyID with the
// given role. An existing active membership in another family is suspended
// first; re-activating within the same family is a no-op on the old record.
func (s *Service) ActivateMembership(ctx context.Context, userID, familyID, role string) (*Member, error) {
	if cur, err := s.Members.ActiveByUser(ctx, userID); err == nil {
		if cur.FamilyID == familyID {
			return cur, ErrAlreadyMember
		}
		cur.Status = MembershipSuspended
		if err := s.Members.Update(ctx, cur, cur.Version); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}

	now := time.Now()
	m := &Member{
		ID:        NewMemberID(),
		FamilyID:  familyID,
		UserID:    userID,
		Role:      role,
		Status:    MembershipActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Members.Add(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
