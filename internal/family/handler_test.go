package family

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pantryware/homestock/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type familyFixture struct {
	svc    *Service
	router chi.Router
	user   *identity.User
}

func newFamilyFixture(t *testing.T) *familyFixture {
	t.Helper()

	svc := NewService(NewMemoryFamilyRepo(), NewMemoryMemberRepo())
	user := &identity.User{ID: "user-1", Username: "alice"}
	h := NewHandler(testLogger(), svc, func(ctx context.Context) (*identity.User, error) {
		return user, nil
	})

	r := chi.NewRouter()
	r.Post("/api/families", h.HandleCreate)
	r.Get("/api/families/current", h.HandleGet)
	r.Patch("/api/families/current", h.HandleUpdate)
	r.Get("/api/families/current/members", h.HandleListMembers)
	r.Patch("/api/families/current/members/{memberId}", h.HandleUpdateMember)
	r.Delete("/api/families/current/members/{memberId}", h.HandleRemoveMember)

	return &familyFixture{svc: svc, router: r, user: user}
}

func (f *familyFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate_CreatorBecomesAdmin(t *testing.T) {
	f := newFamilyFixture(t)

	rec := f.do(t, http.MethodPost, "/api/families", map[string]string{"name": "Smith Household"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var fam Family
	if err := json.Unmarshal(rec.Body.Bytes(), &fam); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fam.Name != "Smith Household" {
		t.Errorf("name = %q", fam.Name)
	}

	m, err := f.svc.Members.ActiveByUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("active membership: %v", err)
	}
	if m.FamilyID != fam.ID || m.Role != RoleAdmin {
		t.Errorf("membership = %+v, want admin of %s", m, fam.ID)
	}
}

func TestHandleCreate_MissingName(t *testing.T) {
	f := newFamilyFixture(t)
	rec := f.do(t, http.MethodPost, "/api/families", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGet_NoMembership(t *testing.T) {
	f := newFamilyFixture(t)
	rec := f.do(t, http.MethodGet, "/api/families/current", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleUpdateMember_VersionConflict(t *testing.T) {
	f := newFamilyFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/families", map[string]string{"name": "Smith Household"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	m, err := f.svc.Members.ActiveByUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("active membership: %v", err)
	}

	role := RoleMember
	rec := f.do(t, http.MethodPatch, "/api/families/current/members/"+m.ID, updateMemberRequest{Role: &role, Version: m.Version})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body.String())
	}
	var updated Member
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Version != m.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, m.Version+1)
	}

	// Replay with the stale version.
	rec = f.do(t, http.MethodPatch, "/api/families/current/members/"+m.ID, updateMemberRequest{Role: &role, Version: m.Version})
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale update: status %d, want 409: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			ReasonCode string `json:"reason_code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.ReasonCode != "version_conflict" {
		t.Fatalf("reason_code = %q, want version_conflict", envelope.Error.ReasonCode)
	}
}

func TestHandleRemoveMember_StaleVersion(t *testing.T) {
	f := newFamilyFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/families", map[string]string{"name": "Smith Household"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	m, err := f.svc.Members.ActiveByUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("active membership: %v", err)
	}

	rec := f.do(t, http.MethodDelete, "/api/families/current/members/"+m.ID, deleteMemberRequest{Version: m.Version + 5})
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale delete: status %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/families/current/members/"+m.ID, deleteMemberRequest{Version: m.Version})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestActivateMembership_SuspendsPrevious(t *testing.T) {
	svc := NewService(NewMemoryFamilyRepo(), NewMemoryMemberRepo())
	ctx := context.Background()

	first, err := svc.ActivateMembership(ctx, "user-1", "fam-1", RoleAdmin)
	if err != nil {
		t.Fatalf("first activation: %v", err)
	}
	second, err := svc.ActivateMembership(ctx, "user-1", "fam-2", RoleMember)
	if err != nil {
		t.Fatalf("second activation: %v", err)
	}

	got, err := svc.Members.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if got.Status != MembershipSuspended {
		t.Errorf("first membership status = %s, want %s", got.Status, MembershipSuspended)
	}

	active, err := svc.Members.ActiveByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != second.ID || active.FamilyID != "fam-2" {
		t.Errorf("active = %+v, want %s in fam-2", active, second.ID)
	}
}

func TestActivateMembership_SameFamily(t *testing.T) {
	svc := NewService(NewMemoryFamilyRepo(), NewMemoryMemberRepo())
	ctx := context.Background()

	first, err := svc.ActivateMembership(ctx, "user-1", "fam-1", RoleMember)
	if err != nil {
		t.Fatalf("activation: %v", err)
	}
	again, err := svc.ActivateMembership(ctx, "user-1", "fam-1", RoleMember)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("re-activation error = %v, want ErrAlreadyMember", err)
	}
	if again == nil || again.ID != first.ID {
		t.Fatalf("re-activation membership = %+v, want existing %s", again, first.ID)
	}
}
