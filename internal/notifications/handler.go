package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pantryware/homestock/internal/api"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/logutil"
)

// Handler serves the notification preference endpoints.
type Handler struct {
	log         *slog.Logger
	repo        Repo
	currentUser func(ctx context.Context) (*identity.User, error)
}

func NewHandler(log *slog.Logger, repo Repo, currentUser func(ctx context.Context) (*identity.User, error)) *Handler {
	return &Handler{log: logutil.NoopIfNil(log), repo: repo, currentUser: currentUser}
}

type putRequest struct {
	Timezone            string    `json:"timezone,omitempty"`
	DefaultFrequency    Frequency `json:"defaultFrequency,omitempty"`
	UnsubscribeAllEmail bool      `json:"unsubscribeAllEmail"`
	Rules               []Rule    `json:"rules"`
}

// HandleGet returns the caller's preferences. Users who never saved any
// get the defaults rather than a 404, so clients always have a document
// to edit.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	p, err := h.repo.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, ErrPreferencesNotFound) {
			api.WriteJSON(w, http.StatusOK, DefaultPreferences(user.ID))
			return
		}
		h.log.Error("load preferences", "user_id", user.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// HandlePut replaces the caller's preference document. Full replace: rules
// absent from the request are gone afterwards.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := validate(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
		return
	}

	p := &Preferences{
		UserID:              user.ID,
		Timezone:            req.Timezone,
		DefaultFrequency:    req.DefaultFrequency,
		UnsubscribeAllEmail: req.UnsubscribeAllEmail,
		Rules:               req.Rules,
	}
	if p.DefaultFrequency == "" {
		p.DefaultFrequency = FrequencyImmediate
	}
	if err := h.repo.Put(r.Context(), p); err != nil {
		h.log.Error("save preferences", "user_id", user.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	h.log.Info("preferences updated", "user_id", user.ID, "rules", len(p.Rules))
	api.WriteJSON(w, http.StatusOK, p)
}

func validate(req *putRequest) error {
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", req.Timezone)
		}
	}
	if req.DefaultFrequency != "" && !ValidFrequency(req.DefaultFrequency) {
		return fmt.Errorf("unknown frequency %q", req.DefaultFrequency)
	}
	seen := make(map[string]struct{}, len(req.Rules))
	for _, rule := range req.Rules {
		if !ValidType(rule.Type) {
			return fmt.Errorf("unknown notification type %q", rule.Type)
		}
		if !ValidChannel(rule.Channel) {
			return fmt.Errorf("unknown channel %q", rule.Channel)
		}
		if len(rule.Frequencies) == 0 {
			return fmt.Errorf("rule for %s/%s has no frequency", rule.Type, rule.Channel)
		}
		for _, f := range rule.Frequencies {
			if !ValidFrequency(f) {
				return fmt.Errorf("unknown frequency %q", f)
			}
		}
		key := string(rule.Type) + "/" + string(rule.Channel)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate rule for %s", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
