package inventory

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
	"github.com/pantryware/homestock/internal/logutil"
)

// Handler serves inventory item and shopping list endpoints. All routes
// are scoped to the caller's active family; viewers get read-only access.
type Handler struct {
	log         *slog.Logger
	items       ItemRepo
	lists       ListRepo
	members     family.MemberRepo
	currentUser func(ctx context.Context) (*identity.User, error)
}

func NewHandler(
	log *slog.Logger,
	items ItemRepo,
	lists ListRepo,
	members family.MemberRepo,
	currentUser func(ctx context.Context) (*identity.User, error),
) *Handler {
	return &Handler{
		log:         logutil.NoopIfNil(log),
		items:       items,
		lists:       lists,
		members:     members,
		currentUser: currentUser,
	}
}

type itemRequest struct {
	Name              string `json:"name"`
	Quantity          *int64 `json:"quantity,omitempty"`
	Unit              string `json:"unit,omitempty"`
	LowStockThreshold *int64 `json:"lowStockThreshold,omitempty"`
	Location          string `json:"location,omitempty"`
}

type adjustItemRequest struct {
	Delta int64 `json:"delta"`
}

type createListRequest struct {
	Name string `json:"name"`
}

type entryRequest struct {
	ItemID   string `json:"itemId,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity int64  `json:"quantity"`
	Checked  *bool  `json:"checked,omitempty"`
}

type listWithEntries struct {
	*ShoppingList
	Entries []*ShoppingListEntry `json:"entries"`
}

// HandleCreateItem adds an item to the family inventory.
func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name is required")
		return
	}
	item := &Item{
		ID:       NewItemID(),
		FamilyID: m.FamilyID,
		Name:     req.Name,
		Unit:     req.Unit,
		Location: req.Location,
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			api.WriteBadRequest(w, api.ReasonInvalidField, "quantity must not be negative")
			return
		}
		item.Quantity = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := h.items.Create(r.Context(), item); err != nil {
		h.log.Error("create item", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusCreated, item)
}

// HandleListItems lists inventory items. With ?lowStock=true only items at
// or below their threshold are returned.
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, false)
	if !ok {
		return
	}
	items, err := h.items.ListByFamily(r.Context(), m.FamilyID)
	if err != nil {
		h.log.Error("list items", "family_id", m.FamilyID, "error", err)
		api.WriteInternalError(w)
		return
	}
	if r.URL.Query().Get("lowStock") == "true" {
		filtered := items[:0]
		for _, it := range items {
			if it.LowStock() {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleGetItem returns a single item.
func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, false)
	if !ok {
		return
	}
	item, ok := h.loadFamilyItem(w, r, m.FamilyID)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, item)
}

// HandleUpdateItem updates item fields. Quantity changes go through the
// adjust endpoint, not here.
func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	item, ok := h.loadFamilyItem(w, r, m.FamilyID)
	if !ok {
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Unit != "" {
		item.Unit = req.Unit
	}
	if req.Location != "" {
		item.Location = req.Location
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if err := h.items.Update(r.Context(), item); err != nil {
		h.log.Error("update item", "item_id", item.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, item)
}

// HandleDeleteItem removes an item from the inventory.
func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	item, ok := h.loadFamilyItem(w, r, m.FamilyID)
	if !ok {
		return
	}
	if err := h.items.Delete(r.Context(), item.ID); err != nil {
		h.log.Error("delete item", "item_id", item.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdjustItem applies an arbitrary quantity delta to an item. Unlike
// the public NFC adjust endpoint this is authenticated and accepts any
// delta, but the result still never drops below zero.
func (h *Handler) HandleAdjustItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	item, ok := h.loadFamilyItem(w, r, m.FamilyID)
	if !ok {
		return
	}
	var req adjustItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	updated, err := h.items.AdjustQuantity(r.Context(), item.ID, req.Delta)
	if err != nil {
		if errors.Is(err, ErrQuantityNegative) {
			api.WriteConflict(w, api.ReasonQuantityWouldGoNegative, "quantity would go negative")
			return
		}
		h.log.Error("adjust item", "item_id", item.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// HandleCreateList creates a shopping list.
func (h *Handler) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name is required")
		return
	}
	now := time.Now()
	l := &ShoppingList{ID: NewListID(), FamilyID: m.FamilyID, Name: req.Name, CreatedAt: now, UpdatedAt: now}
	if err := h.lists.CreateList(r.Context(), l); err != nil {
		h.log.Error("create shopping list", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusCreated, l)
}

// HandleLists lists the family's shopping lists.
func (h *Handler) HandleLists(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, false)
	if !ok {
		return
	}
	lists, err := h.lists.ListsByFamily(r.Context(), m.FamilyID)
	if err != nil {
		h.log.Error("list shopping lists", "family_id", m.FamilyID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

// HandleGetList returns a shopping list with its entries.
func (h *Handler) HandleGetList(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, false)
	if !ok {
		return
	}
	l, ok := h.loadFamilyList(w, r, m.FamilyID)
	if !ok {
		return
	}
	entries, err := h.lists.EntriesByList(r.Context(), l.ID)
	if err != nil {
		h.log.Error("list entries", "list_id", l.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, listWithEntries{ShoppingList: l, Entries: entries})
}

// HandleDeleteList removes a shopping list and its entries.
func (h *Handler) HandleDeleteList(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	l, ok := h.loadFamilyList(w, r, m.FamilyID)
	if !ok {
		return
	}
	if err := h.lists.DeleteList(r.Context(), l.ID); err != nil {
		h.log.Error("delete shopping list", "list_id", l.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddEntry adds an entry to a shopping list. The entry either links
// an inventory item or carries a free-form name.
func (h *Handler) HandleAddEntry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	l, ok := h.loadFamilyList(w, r, m.FamilyID)
	if !ok {
		return
	}
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	name := req.Name
	if req.ItemID != "" {
		item, err := h.items.Get(r.Context(), req.ItemID)
		if err != nil || item.FamilyID != m.FamilyID {
			api.WriteNotFound(w, "item not found")
			return
		}
		name = item.Name
	}
	if name == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name or itemId is required")
		return
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	now := time.Now()
	e := &ShoppingListEntry{
		ID:        NewEntryID(),
		ListID:    l.ID,
		ItemID:    req.ItemID,
		Name:      name,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.lists.AddEntry(r.Context(), e); err != nil {
		h.log.Error("add entry", "list_id", l.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusCreated, e)
}

// HandleUpdateEntry updates an entry, typically to check it off.
func (h *Handler) HandleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	l, ok := h.loadFamilyList(w, r, m.FamilyID)
	if !ok {
		return
	}
	e, err := h.lists.GetEntry(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil || e.ListID != l.ID {
		api.WriteNotFound(w, "entry not found")
		return
	}
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name != "" {
		e.Name = req.Name
	}
	if req.Quantity > 0 {
		e.Quantity = req.Quantity
	}
	if req.Checked != nil {
		e.Checked = *req.Checked
	}
	if err := h.lists.UpdateEntry(r.Context(), e); err != nil {
		h.log.Error("update entry", "entry_id", e.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, e)
}

// HandleDeleteEntry removes an entry from a shopping list.
func (h *Handler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, true)
	if !ok {
		return
	}
	l, ok := h.loadFamilyList(w, r, m.FamilyID)
	if !ok {
		return
	}
	e, err := h.lists.GetEntry(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil || e.ListID != l.ID {
		api.WriteNotFound(w, "entry not found")
		return
	}
	if err := h.lists.DeleteEntry(r.Context(), e.ID); err != nil {
		h.log.Error("delete entry", "entry_id", e.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireMembership(w http.ResponseWriter, r *http.Request, write bool) (*family.Member, bool) {
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
	if write && m.Role == family.RoleViewer {
		api.WriteForbidden(w, "viewers have read-only access")
		return nil, false
	}
	return m, true
}

func (h *Handler) loadFamilyItem(w http.ResponseWriter, r *http.Request, familyID string) (*Item, bool) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "itemId"))
	if err != nil || item.FamilyID != familyID {
		api.WriteNotFound(w, "item not found")
		return nil, false
	}
	return item, true
}

func (h *Handler) loadFamilyList(w http.ResponseWriter, r *http.Request, familyID string) (*ShoppingList, bool) {
	l, err := h.lists.GetList(r.Context(), chi.URLParam(r, "listId"))
	if err != nil || l.FamilyID != familyID {
		api.WriteNotFound(w, "shopping list not found")
		return nil, false
	}
	return l, true
}
