package nfc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type nfcFixture struct {
	urls    *MemoryURLRepo
	items   *inventory.MemoryItemRepo
	members *family.MemoryMemberRepo
	router  chi.Router
}

// newNFCFixture wires the handler with an authenticated admin member of
// fam-1. The adjust endpoint itself ignores the caller.
func newNFCFixture(t *testing.T) *nfcFixture {
	t.Helper()

	urls := NewMemoryURLRepo()
	items := inventory.NewMemoryItemRepo()
	members := family.NewMemoryMemberRepo()

	user := &identity.User{ID: "user-1", Username: "alice"}
	if err := members.Add(context.Background(), &family.Member{
		ID:       family.NewMemberID(),
		FamilyID: "fam-1",
		UserID:   user.ID,
		Role:     family.RoleAdmin,
		Status:   family.MembershipActive,
		Version:  1,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	h := NewHandler(testLogger(), urls, items, members, NewProcessor(urls, items), func(ctx context.Context) (*identity.User, error) {
		return user, nil
	})

	r := chi.NewRouter()
	r.Post("/api/adjust/{urlId}", h.HandleAdjust)
	r.Post("/api/items/{itemId}/nfc", h.HandleCreateURL)
	r.Get("/api/items/{itemId}/nfc", h.HandleListURLs)
	r.Post("/api/nfc/{urlId}/rotate", h.HandleRotateURL)
	r.Delete("/api/nfc/{urlId}", h.HandleDeactivateURL)

	return &nfcFixture{urls: urls, items: items, members: members, router: r}
}

func (f *nfcFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleAdjust(t *testing.T) {
	f := newNFCFixture(t)
	item := seedItem(t, f.items, 2)
	u := seedURL(t, f.urls, item.ID)

	rec := f.do(t, http.MethodPost, "/api/adjust/"+u.ID, `{"delta": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Quantity != 3 || res.ItemName != "Oat Milk" {
		t.Fatalf("result = %+v", res)
	}
}

func TestHandleAdjust_Errors(t *testing.T) {
	f := newNFCFixture(t)
	item := seedItem(t, f.items, 0)
	u := seedURL(t, f.urls, item.ID)
	deactivated := seedURL(t, f.urls, item.ID)
	if err := f.urls.Deactivate(context.Background(), deactivated.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	cases := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantReason string
	}{
		{"invalid delta", "/api/adjust/" + u.ID, `{"delta": 2}`, http.StatusBadRequest, "invalid_delta"},
		{"malformed body", "/api/adjust/" + u.ID, `{`, http.StatusBadRequest, "bad_request"},
		{"unknown url", "/api/adjust/does-not-exist", `{"delta": 1}`, http.StatusNotFound, "url_inactive_or_not_found"},
		{"deactivated url", "/api/adjust/" + deactivated.ID, `{"delta": 1}`, http.StatusNotFound, "url_inactive_or_not_found"},
		{"negative quantity", "/api/adjust/" + u.ID, `{"delta": -1}`, http.StatusConflict, "quantity_would_go_negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			var envelope struct {
				Error struct {
					ReasonCode string `json:"reason_code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if envelope.Error.ReasonCode != tc.wantReason {
				t.Fatalf("reason_code = %q, want %q", envelope.Error.ReasonCode, tc.wantReason)
			}
		})
	}
}

func TestHandleCreateAndRotateURL(t *testing.T) {
	f := newNFCFixture(t)
	item := seedItem(t, f.items, 5)

	rec := f.do(t, http.MethodPost, "/api/items/"+item.ID+"/nfc", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var created URL
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	rec = f.do(t, http.MethodPost, "/api/nfc/"+created.ID+"/rotate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate: status %d: %s", rec.Code, rec.Body.String())
	}
	var fresh URL
	if err := json.Unmarshal(rec.Body.Bytes(), &fresh); err != nil {
		t.Fatalf("decode fresh: %v", err)
	}
	if fresh.ID == created.ID {
		t.Fatal("rotate kept the same URL ID")
	}

	// Both URLs are visible on the item, only the fresh one active.
	rec = f.do(t, http.MethodGet, "/api/items/"+item.ID+"/nfc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d: %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		URLs []*URL `json:"urls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.URLs) != 2 {
		t.Fatalf("listed %d urls, want 2", len(listed.URLs))
	}
	active := 0
	for _, u := range listed.URLs {
		if u.Active {
			active++
			if u.ID != fresh.ID {
				t.Errorf("active url = %s, want %s", u.ID, fresh.ID)
			}
		}
	}
	if active != 1 {
		t.Fatalf("%d active urls, want 1", active)
	}
}

func TestHandleDeactivateURL(t *testing.T) {
	f := newNFCFixture(t)
	item := seedItem(t, f.items, 5)
	u := seedURL(t, f.urls, item.ID)

	if rec := f.do(t, http.MethodDelete, "/api/nfc/"+u.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status %d: %s", rec.Code, rec.Body.String())
	}
	// Deactivating again conflicts.
	if rec := f.do(t, http.MethodDelete, "/api/nfc/"+u.ID, ""); rec.Code != http.StatusConflict {
		t.Fatalf("second deactivate: status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateURL_ViewerForbidden(t *testing.T) {
	f := newNFCFixture(t)
	item := seedItem(t, f.items, 5)

	viewer := &identity.User{ID: "user-2", Username: "bob"}
	if err := f.members.Add(context.Background(), &family.Member{
		ID:       family.NewMemberID(),
		FamilyID: "fam-1",
		UserID:   viewer.ID,
		Role:     family.RoleViewer,
		Status:   family.MembershipActive,
		Version:  1,
	}); err != nil {
		t.Fatalf("seed viewer: %v", err)
	}

	h := NewHandler(testLogger(), f.urls, f.items, f.members, NewProcessor(f.urls, f.items), func(ctx context.Context) (*identity.User, error) {
		return viewer, nil
	})
	r := chi.NewRouter()
	r.Post("/api/items/{itemId}/nfc", h.HandleCreateURL)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items/"+item.ID+"/nfc", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer create: status %d, want 403", rec.Code)
	}
}
