package nfc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pantryware/homestock/internal/api"
	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
	"github.com/pantryware/homestock/internal/logutil"
	"github.com/pantryware/homestock/internal/metrics"
)

// Handler serves NFC URL management and the public adjustment endpoint.
type Handler struct {
	log         *slog.Logger
	urls        URLRepo
	items       inventory.ItemRepo
	members     family.MemberRepo
	processor   *Processor
	currentUser func(ctx context.Context) (*identity.User, error)
}

func NewHandler(
	log *slog.Logger,
	urls URLRepo,
	items inventory.ItemRepo,
	members family.MemberRepo,
	processor *Processor,
	currentUser func(ctx context.Context) (*identity.User, error),
) *Handler {
	return &Handler{
		log:         logutil.NoopIfNil(log),
		urls:        urls,
		items:       items,
		members:     members,
		processor:   processor,
		currentUser: currentUser,
	}
}

type adjustRequest struct {
	Delta int64 `json:"delta"`
}

// HandleAdjust is the public endpoint behind NFC tags. It requires no
// authentication: possession of the unguessable URL ID is the credential.
// Error responses for unknown and deactivated IDs are identical.
func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	urlID := chi.URLParam(r, "urlId")
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.AdjustmentsTotal.WithLabelValues("bad_request").Inc()
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}

	result, err := h.processor.ProcessAdjustment(r.Context(), urlID, req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDelta):
			metrics.AdjustmentsTotal.WithLabelValues("invalid_delta").Inc()
			api.WriteBadRequest(w, api.ReasonInvalidDelta, "delta must be +1 or -1")
		case errors.Is(err, ErrURLInactiveOrNotFound):
			metrics.AdjustmentsTotal.WithLabelValues("url_inactive").Inc()
			api.WriteError(w, http.StatusNotFound, api.ReasonURLInactiveOrNotFound, "url inactive or not found")
		case errors.Is(err, ErrQuantityWouldGoNegative):
			metrics.AdjustmentsTotal.WithLabelValues("negative").Inc()
			api.WriteConflict(w, api.ReasonQuantityWouldGoNegative, "quantity would go negative")
		default:
			metrics.AdjustmentsTotal.WithLabelValues("failed").Inc()
			h.log.Error("process adjustment", "url_id", urlID, "error", err)
			api.WriteError(w, http.StatusInternalServerError, api.ReasonAdjustmentFailed, "adjustment failed")
		}
		return
	}
	metrics.AdjustmentsTotal.WithLabelValues("applied").Inc()
	h.log.Info("nfc adjustment applied", "item_id", result.ItemID, "delta", req.Delta, "quantity", result.Quantity)
	api.WriteJSON(w, http.StatusOK, result)
}

// HandleCreateURL creates an adjustment URL for an item.
func (h *Handler) HandleCreateURL(w http.ResponseWriter, r *http.Request) {
	m, item, ok := h.requireItem(w, r)
	if !ok {
		return
	}
	u := &URL{
		ID:        NewURLID(),
		ItemID:    item.ID,
		FamilyID:  m.FamilyID,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.urls.Create(r.Context(), u); err != nil {
		h.log.Error("create nfc url", "item_id", item.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	h.log.Info("nfc url created", "item_id", item.ID, "url_id", u.ID)
	api.WriteJSON(w, http.StatusCreated, u)
}

// HandleListURLs lists an item's adjustment URLs, active and deactivated.
func (h *Handler) HandleListURLs(w http.ResponseWriter, r *http.Request) {
	_, item, ok := h.requireItem(w, r)
	if !ok {
		return
	}
	urls, err := h.urls.ListByItem(r.Context(), item.ID)
	if err != nil {
		h.log.Error("list nfc urls", "item_id", item.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"urls": urls})
}

// HandleRotateURL rotates an item's adjustment URL: the old ID stops
// resolving and a fresh one takes over, atomically. Used when a tag is
// lost or its URL may have leaked.
func (h *Handler) HandleRotateURL(w http.ResponseWriter, r *http.Request) {
	m, u, ok := h.requireURL(w, r)
	if !ok {
		return
	}
	fresh, err := h.urls.Rotate(r.Context(), u.ItemID, m.FamilyID)
	if err != nil {
		h.log.Error("rotate nfc url", "item_id", u.ItemID, "error", err)
		api.WriteInternalError(w)
		return
	}
	h.log.Info("nfc url rotated", "item_id", u.ItemID, "url_id", fresh.ID)
	api.WriteJSON(w, http.StatusOK, fresh)
}

// HandleDeactivateURL deactivates an adjustment URL without replacement.
func (h *Handler) HandleDeactivateURL(w http.ResponseWriter, r *http.Request) {
	_, u, ok := h.requireURL(w, r)
	if !ok {
		return
	}
	if err := h.urls.Deactivate(r.Context(), u.ID); err != nil {
		if errors.Is(err, ErrURLInactiveOrNotFound) {
			api.WriteConflict(w, api.ReasonConflict, "url is already deactivated")
			return
		}
		h.log.Error("deactivate nfc url", "url_id", u.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireItem authorizes the caller for the item in the URL. Viewers
// cannot manage NFC URLs.
func (h *Handler) requireItem(w http.ResponseWriter, r *http.Request) (*family.Member, *inventory.Item, bool) {
	m, ok := h.requireMember(w, r)
	if !ok {
		return nil, nil, false
	}
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "itemId"))
	if err != nil || item.FamilyID != m.FamilyID {
		api.WriteNotFound(w, "item not found")
		return nil, nil, false
	}
	return m, item, true
}

func (h *Handler) requireURL(w http.ResponseWriter, r *http.Request) (*family.Member, *URL, bool) {
	m, ok := h.requireMember(w, r)
	if !ok {
		return nil, nil, false
	}
	u, err := h.urls.Get(r.Context(), chi.URLParam(r, "urlId"))
	if err != nil || u.FamilyID != m.FamilyID {
		api.WriteNotFound(w, "url not found")
		return nil, nil, false
	}
	return m, u, true
}

func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request) (*family.Member, bool) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	m, err := h.members.ActiveByUser(r.Context(), user.ID)
	if err != nil {
		api.WriteNotFound(w, "no active family membership")
		return nil, false
	}
	if m.Role == family.RoleViewer {
		api.WriteForbidden(w, "viewers have read-only access")
		return nil, false
	}
	return m, true
}
