// Package inventory tracks household stock items and shopping lists.
package inventory

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrListNotFound     = errors.New("shopping list not found")
	ErrEntryNotFound    = errors.New("shopping list entry not found")
	ErrQuantityNegative = errors.New("quantity would go negative")
)

// Item is a stocked household item. Quantity never goes below zero;
// adjustments that would cross zero are rejected.
type Item struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	FamilyID          string    `json:"familyId" gorm:"index"`
	Name              string    `json:"name"`
	Quantity          int64     `json:"quantity"`
	Unit              string    `json:"unit,omitempty"`
	LowStockThreshold int64     `json:"lowStockThreshold"`
	Location          string    `json:"location,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// LowStock reports whether the item is at or below its threshold. A zero
// threshold disables low-stock reporting for the item.
func (i *Item) LowStock() bool {
	return i.LowStockThreshold > 0 && i.Quantity <= i.LowStockThreshold
}

// ShoppingList groups entries the family plans to buy.
type ShoppingList struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	FamilyID  string    `json:"familyId" gorm:"index"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ShoppingListEntry is a single line on a shopping list. ItemID links the
// entry back to a stocked item when it was added from inventory; free-form
// entries leave it empty.
type ShoppingListEntry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ListID    string    `json:"listId" gorm:"index"`
	ItemID    string    `json:"itemId,omitempty"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Checked   bool      `json:"checked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
