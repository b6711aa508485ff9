package notifications

import (
	"context"
	"sync"
	"time"
)

// Repo stores preference documents keyed by user.
type Repo interface {
	// Get returns the user's stored preferences, or ErrPreferencesNotFound
	// when the user never saved any.
	Get(ctx context.Context, userID string) (*Preferences, error)
	// Put replaces the user's preference document.
	Put(ctx context.Context, p *Preferences) error
}

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu    sync.RWMutex
	prefs map[string]*Preferences
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{prefs: make(map[string]*Preferences)}
}

func (r *MemoryRepo) Get(_ context.Context, userID string) (*Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	cp := *p
	cp.Rules = append([]Rule(nil), p.Rules...)
	return &cp, nil
}

func (r *MemoryRepo) Put(_ context.Context, p *Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Rules = append([]Rule(nil), p.Rules...)
	cp.UpdatedAt = time.Now()
	r.prefs[p.UserID] = &cp
	return nil
}
