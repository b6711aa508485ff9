package invites

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvitationNotFound = errors.New("invitation not found")

// Repo stores invitations.
type Repo interface {
	Create(ctx context.Context, inv *Invitation) error
	Get(ctx context.Context, id string) (*Invitation, error)
	// ListByRecipient returns all invitations addressed to userID,
	// soonest-expiring first, regardless of status.
	ListByRecipient(ctx context.Context, userID string) ([]*Invitation, error)
	ListByFamily(ctx context.Context, familyID string) ([]*Invitation, error)
	Update(ctx context.Context, inv *Invitation) error
	// ExpirePending marks pending invitations past their expiry as
	// expired and returns how many were transitioned.
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

// NewInvitationID returns a fresh invitation identifier.
func NewInvitationID() string { return uuid.NewString() }

// MemoryRepo is an in-memory Repo with recipient and family indexes.
type MemoryRepo struct {
	mu          sync.RWMutex
	invitations map[string]*Invitation
	byRecipient map[string]map[string]struct{}
	byFamily    map[string]map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		invitations: make(map[string]*Invitation),
		byRecipient: make(map[string]map[string]struct{}),
		byFamily:    make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepo) Create(_ context.Context, inv *Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invitations[inv.ID] = &cp
	if r.byRecipient[inv.InvitedUserID] == nil {
		r.byRecipient[inv.InvitedUserID] = make(map[string]struct{})
	}
	r.byRecipient[inv.InvitedUserID][inv.ID] = struct{}{}
	if r.byFamily[inv.FamilyID] == nil {
		r.byFamily[inv.FamilyID] = make(map[string]struct{})
	}
	r.byFamily[inv.FamilyID][inv.ID] = struct{}{}
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invitations[id]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *MemoryRepo) ListByRecipient(_ context.Context, userID string) ([]*Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Invitation, 0, len(r.byRecipient[userID]))
	for id := range r.byRecipient[userID] {
		cp := *r.invitations[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r *MemoryRepo) ListByFamily(_ context.Context, familyID string) ([]*Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Invitation, 0, len(r.byFamily[familyID]))
	for id := range r.byFamily[familyID] {
		cp := *r.invitations[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Update(_ context.Context, inv *Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invitations[inv.ID]; !ok {
		return ErrInvitationNotFound
	}
	cp := *inv
	r.invitations[inv.ID] = &cp
	return nil
}

func (r *MemoryRepo) ExpirePending(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, inv := range r.invitations {
		if inv.Status == StatusPending && !now.Before(inv.ExpiresAt) {
			inv.Status = StatusExpired
			n++
		}
	}
	return n, nil
}
