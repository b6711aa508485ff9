package nfc

import (
	"context"
	"sort"
	"sync"
	"time"
)

// URLRepo stores NFC adjustment URLs.
type URLRepo interface {
	Create(ctx context.Context, u *URL) error
	// GetActive resolves a URL ID to its active record. Unknown and
	// deactivated IDs both fail with ErrURLInactiveOrNotFound.
	GetActive(ctx context.Context, id string) (*URL, error)
	// Get returns a URL regardless of active state, for management.
	Get(ctx context.Context, id string) (*URL, error)
	ListByItem(ctx context.Context, itemID string) ([]*URL, error)
	Deactivate(ctx context.Context, id string) error
	// Rotate atomically deactivates every active URL for the item and
	// creates the replacement: at no point do zero or two active URLs
	// exist for the item.
	Rotate(ctx context.Context, itemID, familyID string) (*URL, error)
}

// MemoryURLRepo is an in-memory URLRepo with an item index.
type MemoryURLRepo struct {
	mu     sync.RWMutex
	urls   map[string]*URL
	byItem map[string]map[string]struct{}
}

func NewMemoryURLRepo() *MemoryURLRepo {
	return &MemoryURLRepo{
		urls:   make(map[string]*URL),
		byItem: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryURLRepo) Create(_ context.Context, u *URL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(u)
	return nil
}

func (r *MemoryURLRepo) add(u *URL) {
	cp := *u
	r.urls[u.ID] = &cp
	if r.byItem[u.ItemID] == nil {
		r.byItem[u.ItemID] = make(map[string]struct{})
	}
	r.byItem[u.ItemID][u.ID] = struct{}{}
}

func (r *MemoryURLRepo) GetActive(_ context.Context, id string) (*URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[id]
	if !ok || !u.Active {
		return nil, ErrURLInactiveOrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryURLRepo) Get(_ context.Context, id string) (*URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[id]
	if !ok {
		return nil, ErrURLInactiveOrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryURLRepo) ListByItem(_ context.Context, itemID string) ([]*URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*URL, 0, len(r.byItem[itemID]))
	for id := range r.byItem[itemID] {
		cp := *r.urls[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryURLRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.urls[id]
	if !ok || !u.Active {
		return ErrURLInactiveOrNotFound
	}
	now := time.Now()
	u.Active = false
	u.DeactivatedAt = &now
	return nil
}

func (r *MemoryURLRepo) Rotate(_ context.Context, itemID, familyID string) (*URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id := range r.byItem[itemID] {
		if u := r.urls[id]; u.Active {
			u.Active = false
			deactivatedAt := now
			u.DeactivatedAt = &deactivatedAt
		}
	}
	fresh := &URL{
		ID:        NewURLID(),
		ItemID:    itemID,
		FamilyID:  familyID,
		Active:    true,
		CreatedAt: now,
	}
	r.add(fresh)
	cp := *fresh
	return &cp, nil
}
