package invites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pantryware/homestock/internal/cache/memory"
	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type inviteFixture struct {
	repo     *MemoryRepo
	tokens   *TokenStore
	families *family.Service
	parties  *identity.MemoryPartyRepo
	handler  *Handler
	router   chi.Router
	user     *identity.User
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()

	repo := NewMemoryRepo()
	tokens := NewTokenStore(memory.New(time.Minute, 0), time.Minute)
	families := family.NewService(family.NewMemoryFamilyRepo(), family.NewMemoryMemberRepo())
	parties := identity.NewMemoryPartyRepo()

	user := &identity.User{ID: "user-1", Username: "alice", Role: identity.RoleUser}
	if err := parties.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	h := NewHandler(testLogger(), repo, tokens, families, parties, func(ctx context.Context) (*identity.User, error) {
		return user, nil
	})

	r := chi.NewRouter()
	r.Get("/api/invitations", h.HandleList)
	r.Post("/api/invitations/decline-all", h.HandleDeclineAll)
	r.Post("/api/invitations/{invitationId}/accept", h.HandleAccept)
	r.Post("/api/invitations/{invitationId}/decline", h.HandleDecline)
	r.Post("/api/families/current/invitations", h.HandleCreate)

	return &inviteFixture{repo: repo, tokens: tokens, families: families, parties: parties, handler: h, router: r, user: user}
}

func (f *inviteFixture) seedInvitation(t *testing.T, familyID string, expiresAt time.Time) *Invitation {
	t.Helper()
	inv := pendingInvitation(familyID, expiresAt)
	inv.InvitedUserID = f.user.ID
	if err := f.repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("seed invitation: %v", err)
	}
	return inv
}

// listToken lists the caller's invitations and returns the issued decision
// token, mirroring how a client obtains one.
func (f *inviteFixture) listToken(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invitations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list invitations: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return resp.DecisionToken
}

func (f *inviteFixture) postDecision(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(rec, req)
	return rec
}

func reasonCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			ReasonCode string `json:"reason_code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.ReasonCode
}

func TestHandleList_TokenOnlyWhenActionable(t *testing.T) {
	f := newInviteFixture(t)

	// Only an expired invitation: no token.
	f.seedInvitation(t, "fam-1", time.Now().Add(-time.Hour))
	if tok := f.listToken(t); tok != "" {
		t.Fatalf("expected no decision token, got %q", tok)
	}

	f.seedInvitation(t, "fam-2", time.Now().Add(time.Hour))
	if tok := f.listToken(t); tok == "" {
		t.Fatal("expected a decision token once an actionable invitation exists")
	}
}

func TestHandleList_SwitchConfirmationFlag(t *testing.T) {
	f := newInviteFixture(t)
	if _, err := f.families.ActivateMembership(context.Background(), f.user.ID, "fam-old", family.RoleMember); err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	sameFamily := f.seedInvitation(t, "fam-old", time.Now().Add(time.Hour))
	otherFamily := f.seedInvitation(t, "fam-new", time.Now().Add(time.Hour))
	staleOther := f.seedInvitation(t, "fam-stale", time.Now().Add(-time.Hour))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invitations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}

	// Clients learn up front which accepts will need a confirmed switch:
	// only actionable invitations into a family other than the current one.
	want := map[string]bool{sameFamily.ID: false, otherFamily.ID: true, staleOther.ID: false}
	for _, view := range resp.Invitations {
		if view.RequiresSwitchConfirmation != want[view.ID] {
			t.Errorf("invitation %s requiresSwitchConfirmation = %v, want %v",
				view.ID, view.RequiresSwitchConfirmation, want[view.ID])
		}
	}
}

func TestHandleAccept(t *testing.T) {
	f := newInviteFixture(t)
	inv := f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	token := f.listToken(t)

	rec := f.postDecision(t, "/api/invitations/"+inv.ID+"/accept", AcceptRequest{DecisionToken: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d: %s", rec.Code, rec.Body.String())
	}

	var resp acceptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode accept response: %v", err)
	}
	if resp.Invitation.Status != StatusAccepted {
		t.Errorf("invitation status = %s, want %s", resp.Invitation.Status, StatusAccepted)
	}
	if resp.Membership == nil || resp.Membership.FamilyID != "fam-1" {
		t.Errorf("membership = %+v, want family fam-1", resp.Membership)
	}

	summary, err := f.families.SummaryForUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary == nil || summary.FamilyID != "fam-1" {
		t.Errorf("active membership = %+v, want fam-1", summary)
	}
}

func TestHandleAccept_SwitchGate(t *testing.T) {
	f := newInviteFixture(t)
	if _, err := f.families.ActivateMembership(context.Background(), f.user.ID, "fam-old", family.RoleMember); err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	inv := f.seedInvitation(t, "fam-new", time.Now().Add(time.Hour))
	token := f.listToken(t)

	rec := f.postDecision(t, "/api/invitations/"+inv.ID+"/accept", AcceptRequest{DecisionToken: token})
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed switch: status %d, want 409", rec.Code)
	}
	if got := reasonCodeOf(t, rec); got != "switch_confirmation_required" {
		t.Fatalf("reason_code = %q, want switch_confirmation_required", got)
	}

	// The rejected attempt must not burn the token; the confirmed retry
	// reuses it.
	rec = f.postDecision(t, "/api/invitations/"+inv.ID+"/accept", AcceptRequest{DecisionToken: token, ConfirmSwitch: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed switch: status %d: %s", rec.Code, rec.Body.String())
	}

	summary, err := f.families.SummaryForUser(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary == nil || summary.FamilyID != "fam-new" {
		t.Errorf("active membership = %+v, want fam-new", summary)
	}
}

func TestHandleAccept_TokenSingleUse(t *testing.T) {
	f := newInviteFixture(t)
	inv1 := f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	inv2 := f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	token := f.listToken(t)

	if rec := f.postDecision(t, "/api/invitations/"+inv1.ID+"/accept", AcceptRequest{DecisionToken: token}); rec.Code != http.StatusOK {
		t.Fatalf("first accept: status %d: %s", rec.Code, rec.Body.String())
	}

	rec := f.postDecision(t, "/api/invitations/"+inv2.ID+"/decline", DeclineRequest{DecisionToken: token})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reused token: status %d, want 409", rec.Code)
	}
	if got := reasonCodeOf(t, rec); got != "decision_token_invalid" {
		t.Fatalf("reason_code = %q, want decision_token_invalid", got)
	}
}

func TestHandleAccept_BogusToken(t *testing.T) {
	f := newInviteFixture(t)
	inv := f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))

	rec := f.postDecision(t, "/api/invitations/"+inv.ID+"/accept", AcceptRequest{DecisionToken: "not-a-token"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("bogus token: status %d, want 409", rec.Code)
	}
	if got := reasonCodeOf(t, rec); got != "decision_token_invalid" {
		t.Fatalf("reason_code = %q, want decision_token_invalid", got)
	}
}

func TestHandleAccept_OtherUsersInvitation(t *testing.T) {
	f := newInviteFixture(t)
	inv := pendingInvitation("fam-1", time.Now().Add(time.Hour))
	inv.InvitedUserID = "someone-else"
	if err := f.repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("seed invitation: %v", err)
	}
	f.seedInvitation(t, "fam-2", time.Now().Add(time.Hour))
	token := f.listToken(t)

	// Another recipient's invitation looks exactly like a missing one.
	rec := f.postDecision(t, "/api/invitations/"+inv.ID+"/accept", AcceptRequest{DecisionToken: token})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign invitation: status %d, want 404", rec.Code)
	}
	missing := f.postDecision(t, "/api/invitations/"+NewInvitationID()+"/accept", AcceptRequest{DecisionToken: token})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing invitation: status %d, want 404", missing.Code)
	}
}

func TestHandleDecline_Expired(t *testing.T) {
	f := newInviteFixture(t)
	expired := f.seedInvitation(t, "fam-1", time.Now().Add(-time.Hour))
	f.seedInvitation(t, "fam-2", time.Now().Add(time.Hour))
	token := f.listToken(t)

	rec := f.postDecision(t, "/api/invitations/"+expired.ID+"/decline", DeclineRequest{DecisionToken: token})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expired decline: status %d, want 409", rec.Code)
	}
	if got := reasonCodeOf(t, rec); got != "invitation_not_actionable" {
		t.Fatalf("reason_code = %q, want invitation_not_actionable", got)
	}
}

func TestHandleDecline_RecordsReason(t *testing.T) {
	f := newInviteFixture(t)
	inv := f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	token := f.listToken(t)

	rec := f.postDecision(t, "/api/invitations/"+inv.ID+"/decline", DeclineRequest{
		DecisionToken: token,
		Reason:        "moving out next month",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("decline: status %d: %s", rec.Code, rec.Body.String())
	}

	got, err := f.repo.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusDeclined {
		t.Errorf("status = %s, want %s", got.Status, StatusDeclined)
	}
	if got.DeclineReason != "moving out next month" {
		t.Errorf("decline reason = %q, want it stored verbatim", got.DeclineReason)
	}
}

func TestHandleCreate_InviterNameAndMessage(t *testing.T) {
	f := newInviteFixture(t)
	if err := f.families.Families.Create(context.Background(), &family.Family{ID: "fam-1", Name: "Home"}); err != nil {
		t.Fatalf("seed family: %v", err)
	}
	if _, err := f.families.ActivateMembership(context.Background(), f.user.ID, "fam-1", family.RoleAdmin); err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	invited := &identity.User{ID: "user-2", Username: "bob"}
	if err := f.parties.Create(context.Background(), invited); err != nil {
		t.Fatalf("seed invited user: %v", err)
	}

	rec := f.postDecision(t, "/api/families/current/invitations", createRequest{
		Username: "bob",
		Message:  "join our pantry",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var inv Invitation
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode invitation: %v", err)
	}
	if inv.InviterName != "alice" {
		t.Errorf("inviter name = %q, want alice", inv.InviterName)
	}
	if inv.Message != "join our pantry" {
		t.Errorf("message = %q, want it passed through", inv.Message)
	}
}

func TestHandleDeclineAll(t *testing.T) {
	f := newInviteFixture(t)
	f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	f.seedInvitation(t, "fam-2", time.Now().Add(time.Hour))
	expired := f.seedInvitation(t, "fam-3", time.Now().Add(-time.Hour))
	token := f.listToken(t)

	rec := f.postDecision(t, "/api/invitations/decline-all", DeclineAllRequest{DecisionToken: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("decline-all: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp declineAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Declined != 2 {
		t.Errorf("declined = %d, want 2", resp.Declined)
	}

	// The expired one stays untouched until the sweeper reaps it.
	got, err := f.repo.Get(context.Background(), expired.ID)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("expired invitation status = %s, want %s", got.Status, StatusPending)
	}
}

func TestHandleDeclineAll_NoneActionable(t *testing.T) {
	f := newInviteFixture(t)
	f.seedInvitation(t, "fam-1", time.Now().Add(time.Hour))
	token := f.listToken(t)

	// Decline the only actionable invitation first, then the bulk decline
	// has nothing left to act on.
	if rec := f.postDecision(t, "/api/invitations/decline-all", DeclineAllRequest{DecisionToken: token}); rec.Code != http.StatusOK {
		t.Fatalf("first decline-all: status %d: %s", rec.Code, rec.Body.String())
	}

	// A token issued before the set emptied out, as when invitations expire
	// between listing and deciding.
	token, err := f.tokens.Issue(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rec := f.postDecision(t, "/api/invitations/decline-all", DeclineAllRequest{DecisionToken: token})
	if rec.Code != http.StatusConflict {
		t.Fatalf("empty decline-all: status %d, want 409", rec.Code)
	}
	if got := reasonCodeOf(t, rec); got != "no_actionable_invitations" {
		t.Fatalf("reason_code = %q, want no_actionable_invitations", got)
	}
}

func TestSweeper_ExpirePending(t *testing.T) {
	f := newInviteFixture(t)
	expired := f.seedInvitation(t, "fam-1", time.Now().Add(-time.Hour))
	live := f.seedInvitation(t, "fam-2", time.Now().Add(time.Hour))

	n, err := f.repo.ExpirePending(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d invitations, want 1", n)
	}

	for id, want := range map[string]InvitationStatus{expired.ID: StatusExpired, live.ID: StatusPending} {
		got, err := f.repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != want {
			t.Errorf("invitation %s status = %s, want %s", id, got.Status, want)
		}
	}
}

func TestMemoryRepo_ListByRecipientOrder(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now()
	// Created in one order, expiring in another.
	for i, hours := range []int{48, 12, 24} {
		inv := pendingInvitation("fam-1", now.Add(time.Duration(hours)*time.Hour))
		inv.ID = fmt.Sprintf("inv-%d", i)
		inv.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(context.Background(), inv); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	invs, err := repo.ListByRecipient(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Soonest-expiring first, independent of creation order.
	if len(invs) != 3 || invs[0].ID != "inv-1" || invs[1].ID != "inv-2" || invs[2].ID != "inv-0" {
		t.Fatalf("unexpected order: %v, %v, %v", invs[0].ID, invs[1].ID, invs[2].ID)
	}
}
