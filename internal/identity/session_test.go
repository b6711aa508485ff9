package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/pantryware/homestock/internal/identity"
)

func TestMemorySessionRepo_CRUD(t *testing.T) {
	repo := identity.NewMemorySessionRepo()
	ctx := context.Background()

	session, err := repo.Create(ctx, "user-123", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.Token == "" {
		t.Error("token should be assigned")
	}
	if session.UserID != "user-123" {
		t.Errorf("expected userID 'user-123', got %q", session.UserID)
	}

	got, err := repo.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "user-123" {
		t.Errorf("expected userID 'user-123', got %q", got.UserID)
	}

	if err := repo.Delete(ctx, session.Token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = repo.Get(ctx, session.Token)
	if err != identity.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemorySessionRepo_ExpiredSession(t *testing.T) {
	repo := identity.NewMemorySessionRepo()
	ctx := context.Background()

	session, err := repo.Create(ctx, "user-123", time.Millisecond)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = repo.Get(ctx, session.Token)
	if err != identity.ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestMemorySessionRepo_DeleteByUser(t *testing.T) {
	repo := identity.NewMemorySessionRepo()
	ctx := context.Background()

	s1, _ := repo.Create(ctx, "user-123", time.Hour)
	s2, _ := repo.Create(ctx, "user-123", time.Hour)

	if err := repo.DeleteByUser(ctx, "user-123"); err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}

	_, err := repo.Get(ctx, s1.Token)
	if err != identity.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound for s1, got %v", err)
	}
	_, err = repo.Get(ctx, s2.Token)
	if err != identity.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound for s2, got %v", err)
	}
}

func TestMemorySessionRepo_DeleteExpired(t *testing.T) {
	repo := identity.NewMemorySessionRepo()
	ctx := context.Background()

	repo.Create(ctx, "user-123", time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	s2, _ := repo.Create(ctx, "user-456", time.Hour)

	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expired session, got %d", count)
	}

	_, err = repo.Get(ctx, s2.Token)
	if err != nil {
		t.Errorf("valid session should still exist: %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	t1, err := identity.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	t2, err := identity.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if t1 == t2 {
		t.Error("tokens should be unique")
	}

	// Should be base64 URL encoded (43 chars for 32 bytes)
	if len(t1) < 40 {
		t.Errorf("token too short: %d", len(t1))
	}
}
