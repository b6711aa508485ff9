package family

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FamilyRepo stores families.
type FamilyRepo interface {
	Create(ctx context.Context, f *Family) error
	Get(ctx context.Context, id string) (*Family, error)
	Update(ctx context.Context, f *Family) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Family, error)
}

// MemberRepo stores family memberships.
//
// Update and Delete enforce optimistic concurrency: the caller passes the
// version it read, and the call fails with ErrVersionConflict when the
// stored version differs. On success Update increments the version.
type MemberRepo interface {
	Add(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (*Member, error)
	ListByFamily(ctx context.Context, familyID string) ([]*Member, error)
	// ActiveByUser returns the user's ACTIVE membership, or
	// ErrMemberNotFound when the user has none.
	ActiveByUser(ctx context.Context, userID string) (*Member, error)
	Update(ctx context.Context, m *Member, expectedVersion int64) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

// NewMemberID returns a fresh member identifier.
func NewMemberID() string { return uuid.NewString() }

// NewFamilyID returns a fresh family identifier.
func NewFamilyID() string { return uuid.NewString() }

// MemoryFamilyRepo is an in-memory FamilyRepo.
type MemoryFamilyRepo struct {
	mu       sync.RWMutex
	families map[string]*Family
}

func NewMemoryFamilyRepo() *MemoryFamilyRepo {
	return &MemoryFamilyRepo{families: make(map[string]*Family)}
}

func (r *MemoryFamilyRepo) Create(_ context.Context, f *Family) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.families[f.ID] = &cp
	return nil
}

func (r *MemoryFamilyRepo) Get(_ context.Context, id string) (*Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[id]
	if !ok {
		return nil, ErrFamilyNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *MemoryFamilyRepo) Update(_ context.Context, f *Family) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[f.ID]; !ok {
		return ErrFamilyNotFound
	}
	cp := *f
	cp.UpdatedAt = time.Now()
	r.families[f.ID] = &cp
	return nil
}

func (r *MemoryFamilyRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[id]; !ok {
		return ErrFamilyNotFound
	}
	delete(r.families, id)
	return nil
}

func (r *MemoryFamilyRepo) List(_ context.Context) ([]*Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Family, 0, len(r.families))
	for _, f := range r.families {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryMemberRepo is an in-memory MemberRepo with secondary indexes by
// family and by user.
type MemoryMemberRepo struct {
	mu       sync.RWMutex
	members  map[string]*Member
	byFamily map[string]map[string]struct{}
	byUser   map[string]map[string]struct{}
}

func NewMemoryMemberRepo() *MemoryMemberRepo {
	return &MemoryMemberRepo{
		members:  make(map[string]*Member),
		byFamily: make(map[string]map[string]struct{}),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (r *MemoryMemberRepo) Add(_ context.Context, m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byUser[m.UserID] {
		if existing := r.members[id]; existing != nil &&
			existing.FamilyID == m.FamilyID && existing.Status != MembershipSuspended {
			return ErrAlreadyMember
		}
	}
	cp := *m
	r.members[m.ID] = &cp
	if r.byFamily[m.FamilyID] == nil {
		r.byFamily[m.FamilyID] = make(map[string]struct{})
	}
	r.byFamily[m.FamilyID][m.ID] = struct{}{}
	if r.byUser[m.UserID] == nil {
		r.byUser[m.UserID] = make(map[string]struct{})
	}
	r.byUser[m.UserID][m.ID] = struct{}{}
	return nil
}

func (r *MemoryMemberRepo) Get(_ context.Context, id string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryMemberRepo) ListByFamily(_ context.Context, familyID string) ([]*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, 0, len(r.byFamily[familyID]))
	for id := range r.byFamily[familyID] {
		cp := *r.members[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryMemberRepo) ActiveByUser(_ context.Context, userID string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.byUser[userID] {
		if m := r.members[id]; m != nil && m.Status == MembershipActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrMemberNotFound
}

func (r *MemoryMemberRepo) Update(_ context.Context, m *Member, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[m.ID]
	if !ok {
		return ErrMemberNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	cp := *m
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now()
	r.members[m.ID] = &cp
	m.Version = cp.Version
	return nil
}

func (r *MemoryMemberRepo) Delete(_ context.Context, id string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[id]
	if !ok {
		return ErrMemberNotFound
	}
	if cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	delete(r.byFamily[cur.FamilyID], id)
	delete(r.byUser[cur.UserID], id)
	delete(r.members, id)
	return nil
}
