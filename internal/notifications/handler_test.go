package notifications

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pantryware/homestock/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newPrefsHandler() (*Handler, *MemoryRepo) {
	repo := NewMemoryRepo()
	h := NewHandler(testLogger(), repo, func(ctx context.Context) (*identity.User, error) {
		return &identity.User{ID: "user-1", Username: "alice"}, nil
	})
	return h, repo
}

func TestHandleGet_NeverSaved(t *testing.T) {
	h, _ := newPrefsHandler()

	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodGet, "/api/preferences", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var p Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.UserID != "user-1" || p.DefaultFrequency != FrequencyImmediate {
		t.Fatalf("defaults = %+v", p)
	}
}

func TestHandlePut_FullReplace(t *testing.T) {
	h, repo := newPrefsHandler()

	put := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/preferences", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.HandlePut(rec, req)
		return rec
	}

	rec := put(`{
		"timezone": "Europe/Berlin",
		"defaultFrequency": "DAILY",
		"rules": [
			{"type": "LOW_STOCK", "channel": "EMAIL", "frequency": "IMMEDIATE"},
			{"type": "SUGGESTION", "channel": "IN_APP", "frequency": ["DAILY", "WEEKLY"]}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first put: status %d: %s", rec.Code, rec.Body.String())
	}

	// The second put carries no rules; the earlier ones must be gone.
	rec = put(`{"unsubscribeAllEmail": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("second put: status %d: %s", rec.Code, rec.Body.String())
	}

	p, err := repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Rules) != 0 {
		t.Errorf("rules = %v, want none", p.Rules)
	}
	if !p.UnsubscribeAllEmail {
		t.Error("unsubscribeAllEmail not persisted")
	}
	if p.DefaultFrequency != FrequencyImmediate {
		t.Errorf("default frequency = %s, want %s", p.DefaultFrequency, FrequencyImmediate)
	}
	if got := EffectiveFrequencies(p, TypeLowStock, ChannelEmail); len(got) != 1 || got[0] != FrequencyNone {
		t.Errorf("effective email frequencies = %v, want [%s]", got, FrequencyNone)
	}
}

func TestHandlePut_Validation(t *testing.T) {
	h, _ := newPrefsHandler()

	cases := []struct {
		name string
		body string
	}{
		{"bad timezone", `{"timezone": "Mars/Olympus"}`},
		{"bad default frequency", `{"defaultFrequency": "HOURLY"}`},
		{"bad type", `{"rules": [{"type": "RESTOCK", "channel": "EMAIL", "frequency": "DAILY"}]}`},
		{"bad channel", `{"rules": [{"type": "LOW_STOCK", "channel": "SMS", "frequency": "DAILY"}]}`},
		{"empty frequency", `{"rules": [{"type": "LOW_STOCK", "channel": "EMAIL", "frequency": []}]}`},
		{"duplicate rule", `{"rules": [
			{"type": "LOW_STOCK", "channel": "EMAIL", "frequency": "DAILY"},
			{"type": "LOW_STOCK", "channel": "EMAIL", "frequency": "WEEKLY"}
		]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/preferences", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			h.HandlePut(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
