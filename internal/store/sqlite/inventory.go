package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pantryware/homestock/internal/inventory"
)

type itemRepo struct {
	db *gorm.DB
}

func (r *itemRepo) Create(ctx context.Context, item *inventory.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepo) Get(ctx context.Context, id string) (*inventory.Item, error) {
	var item inventory.Item
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) ListByFamily(ctx context.Context, familyID string) ([]*inventory.Item, error) {
	var out []*inventory.Item
	if err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *itemRepo) Update(ctx context.Context, item *inventory.Item) error {
	item.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&inventory.Item{}).
		Where("id = ?", item.ID).Updates(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return inventory.ErrItemNotFound
	}
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&inventory.Item{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return inventory.ErrItemNotFound
	}
	return nil
}

// AdjustQuantity applies the delta in a single guarded UPDATE so the
// non-negative invariant holds under concurrent adjustments.
func (r *itemRepo) AdjustQuantity(ctx context.Context, id string, delta int64) (*inventory.Item, error) {
	res := r.db.WithContext(ctx).Model(&inventory.Item{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, inventory.ErrQuantityNegative
	}
	return r.Get(ctx, id)
}

type listRepo struct {
	db *gorm.DB
}

func (r *listRepo) CreateList(ctx context.Context, l *inventory.ShoppingList) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *listRepo) GetList(ctx context.Context, id string) (*inventory.ShoppingList, error) {
	var l inventory.ShoppingList
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrListNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listRepo) ListsByFamily(ctx context.Context, familyID string) ([]*inventory.ShoppingList, error) {
	var out []*inventory.ShoppingList
	if err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listRepo) DeleteList(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&inventory.ShoppingList{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return inventory.ErrListNotFound
		}
		return tx.Delete(&inventory.ShoppingListEntry{}, "list_id = ?", id).Error
	})
}

func (r *listRepo) AddEntry(ctx context.Context, e *inventory.ShoppingListEntry) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&inventory.ShoppingList{}).
		Where("id = ?", e.ListID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return inventory.ErrListNotFound
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *listRepo) GetEntry(ctx context.Context, id string) (*inventory.ShoppingListEntry, error) {
	var e inventory.ShoppingListEntry
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *listRepo) EntriesByList(ctx context.Context, listID string) ([]*inventory.ShoppingListEntry, error) {
	var out []*inventory.ShoppingListEntry
	if err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listRepo) UpdateEntry(ctx context.Context, e *inventory.ShoppingListEntry) error {
	e.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&inventory.ShoppingListEntry{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"name":       e.Name,
			"quantity":   e.Quantity,
			"checked":    e.Checked,
			"updated_at": e.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return inventory.ErrEntryNotFound
	}
	return nil
}

func (r *listRepo) DeleteEntry(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&inventory.ShoppingListEntry{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return inventory.ErrEntryNotFound
	}
	return nil
}
