package family

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pantryware/homestock/internal/api"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/logutil"
)

// Handler serves family and member management endpoints.
type Handler struct {
	log         *slog.Logger
	svc         *Service
	currentUser func(ctx context.Context) (*identity.User, error)
}

func NewHandler(log *slog.Logger, svc *Service, currentUser func(ctx context.Context) (*identity.User, error)) *Handler {
	return &Handler{log: logutil.NoopIfNil(log), svc: svc, currentUser: currentUser}
}

type createFamilyRequest struct {
	Name string `json:"name"`
}

type updateFamilyRequest struct {
	Name string `json:"name"`
}

type updateMemberRequest struct {
	Role    *string `json:"role,omitempty"`
	Status  *string `json:"status,omitempty"`
	Version int64   `json:"version"`
}

type deleteMemberRequest struct {
	Version int64 `json:"version"`
}

// HandleCreate creates a family and adds the caller as its admin member.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	var req createFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name is required")
		return
	}

	now := time.Now()
	f := &Family{ID: NewFamilyID(), Name: req.Name, CreatedAt: now, UpdatedAt: now}
	if err := h.svc.Families.Create(r.Context(), f); err != nil {
		h.log.Error("create family", "error", err)
		api.WriteInternalError(w)
		return
	}
	if _, err := h.svc.ActivateMembership(r.Context(), user.ID, f.ID, RoleAdmin); err != nil {
		h.log.Error("add creator membership", "family_id", f.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	h.log.Info("family created", "family_id", f.ID, "user_id", user.ID)
	api.WriteJSON(w, http.StatusCreated, f)
}

// HandleGet returns a family the caller belongs to.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, "")
	if !ok {
		return
	}
	f, err := h.svc.Families.Get(r.Context(), m.FamilyID)
	if err != nil {
		api.WriteNotFound(w, "family not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, f)
}

// HandleUpdate renames a family. Admin only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, RoleAdmin)
	if !ok {
		return
	}
	var req updateFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name is required")
		return
	}
	f, err := h.svc.Families.Get(r.Context(), m.FamilyID)
	if err != nil {
		api.WriteNotFound(w, "family not found")
		return
	}
	f.Name = req.Name
	if err := h.svc.Families.Update(r.Context(), f); err != nil {
		h.log.Error("update family", "family_id", f.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, f)
}

// HandleListMembers lists the members of the caller's family.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	m, ok := h.requireMembership(w, r, "")
	if !ok {
		return
	}
	members, err := h.svc.Members.ListByFamily(r.Context(), m.FamilyID)
	if err != nil {
		h.log.Error("list members", "family_id", m.FamilyID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

// HandleUpdateMember changes a member's role or status. The request carries
// the version the client read; a stale version yields 409 version_conflict.
func (h *Handler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireMembership(w, r, RoleAdmin)
	if !ok {
		return
	}
	memberID := chi.URLParam(r, "memberId")
	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	target, err := h.svc.Members.Get(r.Context(), memberID)
	if err != nil || target.FamilyID != caller.FamilyID {
		api.WriteNotFound(w, "member not found")
		return
	}
	if req.Role != nil {
		if !ValidRole(*req.Role) {
			api.WriteBadRequest(w, api.ReasonInvalidField, "unknown role")
			return
		}
		target.Role = *req.Role
	}
	if req.Status != nil {
		switch MembershipStatus(*req.Status) {
		case MembershipActive, MembershipPendingSwitch, MembershipSuspended:
			target.Status = MembershipStatus(*req.Status)
		default:
			api.WriteBadRequest(w, api.ReasonInvalidField, "unknown status")
			return
		}
	}
	if err := h.svc.Members.Update(r.Context(), target, req.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			api.WriteConflict(w, api.ReasonVersionConflict, "member was modified concurrently, re-read and retry")
			return
		}
		h.log.Error("update member", "member_id", memberID, "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, target)
}

// HandleRemoveMember removes a member from the family.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireMembership(w, r, RoleAdmin)
	if !ok {
		return
	}
	memberID := chi.URLParam(r, "memberId")
	var req deleteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	target, err := h.svc.Members.Get(r.Context(), memberID)
	if err != nil || target.FamilyID != caller.FamilyID {
		api.WriteNotFound(w, "member not found")
		return
	}
	if err := h.svc.Members.Delete(r.Context(), memberID, req.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			api.WriteConflict(w, api.ReasonVersionConflict, "member was modified concurrently, re-read and retry")
			return
		}
		h.log.Error("remove member", "member_id", memberID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireMembership resolves the caller's active membership and, when role
// is non-empty, checks the caller holds that role.
func (h *Handler) requireMembership(w http.ResponseWriter, r *http.Request, role string) (*Member, bool) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	m, err := h.svc.Members.ActiveByUser(r.Context(), user.ID)
	if err != nil {
		api.WriteNotFound(w, "no active family membership")
		return nil, false
	}
	if role != "" && m.Role != role {
		api.WriteForbidden(w, "insufficient role")
		return nil, false
	}
	return m, true
}
