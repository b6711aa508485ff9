package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pantryware/homestock/internal/family"
)

type familyRepo struct {
	db *gorm.DB
}

func (r *familyRepo) Create(ctx context.Context, f *family.Family) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *familyRepo) Get(ctx context.Context, id string) (*family.Family, error) {
	var f family.Family
	err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, family.ErrFamilyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *familyRepo) Update(ctx context.Context, f *family.Family) error {
	f.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&family.Family{}).
		Where("id = ?", f.ID).Updates(f)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return family.ErrFamilyNotFound
	}
	return nil
}

func (r *familyRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&family.Family{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return family.ErrFamilyNotFound
	}
	return nil
}

func (r *familyRepo) List(ctx context.Context) ([]*family.Family, error) {
	var out []*family.Family
	if err := r.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type memberRepo struct {
	db *gorm.DB
}

func (r *memberRepo) Add(ctx context.Context, m *family.Member) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&family.Member{}).
		Where("user_id = ? AND family_id = ? AND status <> ?",
			m.UserID, m.FamilyID, family.MembershipSuspended).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return family.ErrAlreadyMember
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *memberRepo) Get(ctx context.Context, id string) (*family.Member, error) {
	var m family.Member
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, family.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) ListByFamily(ctx context.Context, familyID string) ([]*family.Member, error) {
	var out []*family.Member
	if err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memberRepo) ActiveByUser(ctx context.Context, userID string) (*family.Member, error) {
	var m family.Member
	err := r.db.WithContext(ctx).
		First(&m, "user_id = ? AND status = ?", userID, family.MembershipActive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, family.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Update applies the member row guarded by the expected version; the WHERE
// clause makes the version check and increment one atomic statement.
func (r *memberRepo) Update(ctx context.Context, m *family.Member, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&family.Member{}).
		Where("id = ? AND version = ?", m.ID, expectedVersion).
		Updates(map[string]any{
			"role":       m.Role,
			"status":     m.Status,
			"version":    expectedVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, m.ID); err != nil {
			return err
		}
		return family.ErrVersionConflict
	}
	m.Version = expectedVersion + 1
	return nil
}

func (r *memberRepo) Delete(ctx context.Context, id string, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, expectedVersion).
		Delete(&family.Member{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return family.ErrVersionConflict
	}
	return nil
}
