package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pantryware/homestock/internal/invites"
)

type invitationRepo struct {
	db *gorm.DB
}

func (r *invitationRepo) Create(ctx context.Context, inv *invites.Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *invitationRepo) Get(ctx context.Context, id string) (*invites.Invitation, error) {
	var inv invites.Invitation
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invites.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) ListByRecipient(ctx context.Context, userID string) ([]*invites.Invitation, error) {
	var out []*invites.Invitation
	if err := r.db.WithContext(ctx).
		Where("invited_user_id = ?", userID).
		Order("expires_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *invitationRepo) ListByFamily(ctx context.Context, familyID string) ([]*invites.Invitation, error) {
	var out []*invites.Invitation
	if err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *invitationRepo) Update(ctx context.Context, inv *invites.Invitation) error {
	res := r.db.WithContext(ctx).Model(&invites.Invitation{}).
		Where("id = ?", inv.ID).Updates(inv)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invites.ErrInvitationNotFound
	}
	return nil
}

func (r *invitationRepo) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	res := r.db.WithContext(ctx).Model(&invites.Invitation{}).
		Where("status = ? AND expires_at <= ?", invites.StatusPending, now).
		Update("status", invites.StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
