package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pantryware/homestock/internal/notifications"
)

type prefsRepo struct {
	db *gorm.DB
}

func (r *prefsRepo) Get(ctx context.Context, userID string) (*notifications.Preferences, error) {
	var p notifications.Preferences
	err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notifications.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prefsRepo) Put(ctx context.Context, p *notifications.Preferences) error {
	p.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error
}
