package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pantryware/homestock/internal/nfc"
)

type urlRepo struct {
	db *gorm.DB
}

func (r *urlRepo) Create(ctx context.Context, u *nfc.URL) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *urlRepo) GetActive(ctx context.Context, id string) (*nfc.URL, error) {
	var u nfc.URL
	err := r.db.WithContext(ctx).First(&u, "id = ? AND active = ?", id, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nfc.ErrURLInactiveOrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *urlRepo) Get(ctx context.Context, id string) (*nfc.URL, error) {
	var u nfc.URL
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nfc.ErrURLInactiveOrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *urlRepo) ListByItem(ctx context.Context, itemID string) ([]*nfc.URL, error) {
	var out []*nfc.URL
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *urlRepo) Deactivate(ctx context.Context, id string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&nfc.URL{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "deactivated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nfc.ErrURLInactiveOrNotFound
	}
	return nil
}

// Rotate deactivates the item's active URLs and creates the replacement in
// one transaction.
func (r *urlRepo) Rotate(ctx context.Context, itemID, familyID string) (*nfc.URL, error) {
	now := time.Now()
	fresh := &nfc.URL{
		ID:        nfc.NewURLID(),
		ItemID:    itemID,
		FamilyID:  familyID,
		Active:    true,
		CreatedAt: now,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&nfc.URL{}).
			Where("item_id = ? AND active = ?", itemID, true).
			Updates(map[string]any{"active": false, "deactivated_at": now}).Error; err != nil {
			return err
		}
		return tx.Create(fresh).Error
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
