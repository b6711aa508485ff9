package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemRepo stores inventory items.
type ItemRepo interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	ListByFamily(ctx context.Context, familyID string) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error
	// AdjustQuantity atomically applies delta to the item's quantity.
	// It fails with ErrQuantityNegative when the result would be below
	// zero, leaving the item unchanged.
	AdjustQuantity(ctx context.Context, id string, delta int64) (*Item, error)
}

// ListRepo stores shopping lists and their entries.
type ListRepo interface {
	CreateList(ctx context.Context, l *ShoppingList) error
	GetList(ctx context.Context, id string) (*ShoppingList, error)
	ListsByFamily(ctx context.Context, familyID string) ([]*ShoppingList, error)
	DeleteList(ctx context.Context, id string) error

	AddEntry(ctx context.Context, e *ShoppingListEntry) error
	GetEntry(ctx context.Context, id string) (*ShoppingListEntry, error)
	EntriesByList(ctx context.Context, listID string) ([]*ShoppingListEntry, error)
	UpdateEntry(ctx context.Context, e *ShoppingListEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

// NewItemID returns a fresh item identifier.
func NewItemID() string { return uuid.NewString() }

// NewListID returns a fresh shopping list identifier.
func NewListID() string { return uuid.NewString() }

// NewEntryID returns a fresh shopping list entry identifier.
func NewEntryID() string { return uuid.NewString() }

// MemoryItemRepo is an in-memory ItemRepo with a family index.
type MemoryItemRepo struct {
	mu       sync.RWMutex
	items    map[string]*Item
	byFamily map[string]map[string]struct{}
}

func NewMemoryItemRepo() *MemoryItemRepo {
	return &MemoryItemRepo{
		items:    make(map[string]*Item),
		byFamily: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryItemRepo) Create(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[item.ID] = &cp
	if r.byFamily[item.FamilyID] == nil {
		r.byFamily[item.FamilyID] = make(map[string]struct{})
	}
	r.byFamily[item.FamilyID][item.ID] = struct{}{}
	return nil
}

func (r *MemoryItemRepo) Get(_ context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *MemoryItemRepo) ListByFamily(_ context.Context, familyID string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Item, 0, len(r.byFamily[familyID]))
	for id := range r.byFamily[familyID] {
		cp := *r.items[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryItemRepo) Update(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	cp := *item
	cp.UpdatedAt = time.Now()
	r.items[item.ID] = &cp
	return nil
}

func (r *MemoryItemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return ErrItemNotFound
	}
	delete(r.byFamily[item.FamilyID], id)
	delete(r.items, id)
	return nil
}

func (r *MemoryItemRepo) AdjustQuantity(_ context.Context, id string, delta int64) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.Quantity+delta < 0 {
		return nil, ErrQuantityNegative
	}
	item.Quantity += delta
	item.UpdatedAt = time.Now()
	cp := *item
	return &cp, nil
}

// MemoryListRepo is an in-memory ListRepo.
type MemoryListRepo struct {
	mu       sync.RWMutex
	lists    map[string]*ShoppingList
	entries  map[string]*ShoppingListEntry
	byFamily map[string]map[string]struct{}
	byList   map[string]map[string]struct{}
}

func NewMemoryListRepo() *MemoryListRepo {
	return &MemoryListRepo{
		lists:    make(map[string]*ShoppingList),
		entries:  make(map[string]*ShoppingListEntry),
		byFamily: make(map[string]map[string]struct{}),
		byList:   make(map[string]map[string]struct{}),
	}
}

func (r *MemoryListRepo) CreateList(_ context.Context, l *ShoppingList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.lists[l.ID] = &cp
	if r.byFamily[l.FamilyID] == nil {
		r.byFamily[l.FamilyID] = make(map[string]struct{})
	}
	r.byFamily[l.FamilyID][l.ID] = struct{}{}
	return nil
}

func (r *MemoryListRepo) GetList(_ context.Context, id string) (*ShoppingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[id]
	if !ok {
		return nil, ErrListNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *MemoryListRepo) ListsByFamily(_ context.Context, familyID string) ([]*ShoppingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ShoppingList, 0, len(r.byFamily[familyID]))
	for id := range r.byFamily[familyID] {
		cp := *r.lists[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryListRepo) DeleteList(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[id]
	if !ok {
		return ErrListNotFound
	}
	for entryID := range r.byList[id] {
		delete(r.entries, entryID)
	}
	delete(r.byList, id)
	delete(r.byFamily[l.FamilyID], id)
	delete(r.lists, id)
	return nil
}

func (r *MemoryListRepo) AddEntry(_ context.Context, e *ShoppingListEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[e.ListID]; !ok {
		return ErrListNotFound
	}
	cp := *e
	r.entries[e.ID] = &cp
	if r.byList[e.ListID] == nil {
		r.byList[e.ListID] = make(map[string]struct{})
	}
	r.byList[e.ListID][e.ID] = struct{}{}
	return nil
}

func (r *MemoryListRepo) GetEntry(_ context.Context, id string) (*ShoppingListEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryListRepo) EntriesByList(_ context.Context, listID string) ([]*ShoppingListEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ShoppingListEntry, 0, len(r.byList[listID]))
	for id := range r.byList[listID] {
		cp := *r.entries[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryListRepo) UpdateEntry(_ context.Context, e *ShoppingListEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; !ok {
		return ErrEntryNotFound
	}
	cp := *e
	cp.UpdatedAt = time.Now()
	r.entries[e.ID] = &cp
	return nil
}

func (r *MemoryListRepo) DeleteEntry(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	delete(r.byList[e.ListID], id)
	delete(r.entries, id)
	return nil
}
