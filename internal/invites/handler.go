package invites

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
	"github.com/pantryware/homestock/internal/metrics"
)

// DefaultExpiry is how long a new invitation stays actionable.
const DefaultExpiry = 7 * 24 * time.Hour

// Handler serves invitation listing, creation, revocation, and the
// recipient decision endpoints.
type Handler struct {
	log         *slog.Logger
	repo        Repo
	tokens      *TokenStore
	families    *family.Service
	parties     identity.PartyRepo
	currentUser func(ctx context.Context) (*identity.User, error)
	now         func() time.Time
}

func NewHandler(
	log *slog.Logger,
	repo Repo,
	tokens *TokenStore,
	families *family.Service,
	parties identity.PartyRepo,
	currentUser func(ctx context.Context) (*identity.User, error),
) *Handler {
	return &Handler{
		log:         logutil.NoopIfNil(log),
		repo:        repo,
		tokens:      tokens,
		families:    families,
		parties:     parties,
		currentUser: currentUser,
		now:         time.Now,
	}
}

type invitationView struct {
	*Invitation
	Actionable                 bool `json:"actionable"`
	RequiresSwitchConfirmation bool `json:"requiresSwitchConfirmation"`
}

type listResponse struct {
	Invitations   []invitationView `json:"invitations"`
	DecisionToken string           `json:"decisionToken,omitempty"`
}

type createRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Message  string `json:"message"`
}

type acceptResponse struct {
	Invitation *Invitation               `json:"invitation"`
	Membership *family.MembershipSummary `json:"membership"`
}

type declineAllResponse struct {
	Declined int `json:"declined"`
}

// HandleList lists the caller's invitations, soonest-expiring first. Each
// entry carries whether it can still be decided and whether accepting it
// would need a confirmed family switch. When at least one is actionable, a
// fresh decision token is issued alongside; clients forward it verbatim on
// every decision.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	invs, err := h.repo.ListByRecipient(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list invitations", "error", err)
		api.WriteInternalError(w)
		return
	}
	membership, err := h.families.SummaryForUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error("load membership", "user_id", user.ID, "error", err)
		api.WriteInternalError(w)
		return
	}

	now := h.now()
	resp := listResponse{Invitations: make([]invitationView, 0, len(invs))}
	anyActionable := false
	for _, inv := range invs {
		actionable := inv.Actionable(now)
		anyActionable = anyActionable || actionable
		resp.Invitations = append(resp.Invitations, invitationView{
			Invitation:                 inv,
			Actionable:                 actionable,
			RequiresSwitchConfirmation: actionable && RequiresSwitchConfirmation(inv, membership),
		})
	}
	if anyActionable {
		token, err := h.tokens.Issue(r.Context(), user.ID)
		if err != nil {
			h.log.Error("issue decision token", "error", err)
			api.WriteInternalError(w)
			return
		}
		resp.DecisionToken = token
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// HandleAccept accepts an invitation. Joining a different family than the
// caller's current one requires confirmSwitch; the previous membership is
// suspended when the switch goes through.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	user, inv, ok := h.loadOwnInvitation(w, r)
	if !ok {
		return
	}
	var req AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.tokens.Validate(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}

	membership, err := h.families.SummaryForUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error("load membership", "user_id", user.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	if err := ResolveAccept(inv, membership, req.ConfirmSwitch, h.now()); err != nil {
		h.writeResolveError(w, err)
		return
	}

	// The token is consumed only once the decision is known to mutate.
	if err := h.tokens.Consume(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}
	member, err := h.families.ActivateMembership(r.Context(), user.ID, inv.FamilyID, inv.Role)
	if err != nil && !errors.Is(err, family.ErrAlreadyMember) {
		h.log.Error("activate membership", "invitation_id", inv.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	now := h.now()
	inv.Status = StatusAccepted
	inv.DecidedAt = &now
	if err := h.repo.Update(r.Context(), inv); err != nil {
		h.log.Error("record accept", "invitation_id", inv.ID, "error", err)
		api.WriteInternalError(w)
		return
	}

	metrics.InviteDecisionsTotal.WithLabelValues("accept").Inc()
	h.log.Info("invitation accepted", "invitation_id", inv.ID, "family_id", inv.FamilyID, "user_id", user.ID)
	api.WriteJSON(w, http.StatusOK, acceptResponse{
		Invitation: inv,
		Membership: &family.MembershipSummary{
			FamilyID:   member.FamilyID,
			FamilyName: inv.FamilyName,
			Role:       member.Role,
			Status:     member.Status,
		},
	})
}

// HandleDecline declines a single invitation.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	user, inv, ok := h.loadOwnInvitation(w, r)
	if !ok {
		return
	}
	var req DeclineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.tokens.Validate(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}
	if err := ResolveDecline(inv, h.now()); err != nil {
		h.writeResolveError(w, err)
		return
	}
	if err := h.tokens.Consume(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}

	now := h.now()
	inv.Status = StatusDeclined
	inv.DeclineReason = req.Reason
	inv.DecidedAt = &now
	if err := h.repo.Update(r.Context(), inv); err != nil {
		h.log.Error("record decline", "invitation_id", inv.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	metrics.InviteDecisionsTotal.WithLabelValues("decline").Inc()
	h.log.Info("invitation declined", "invitation_id", inv.ID, "user_id", user.ID)
	api.WriteJSON(w, http.StatusOK, inv)
}

// HandleDeclineAll declines every actionable invitation the caller has.
// The actionable set is computed server-side at decision time, not from
// whatever list the client last saw.
func (h *Handler) HandleDeclineAll(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	var req DeclineAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if err := h.tokens.Validate(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}

	invs, err := h.repo.ListByRecipient(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list invitations", "error", err)
		api.WriteInternalError(w)
		return
	}
	now := h.now()
	actionable, err := ResolveDeclineAll(invs, now)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}
	if err := h.tokens.Consume(r.Context(), req.DecisionToken, user.ID); err != nil {
		h.writeTokenError(w, err)
		return
	}

	declined := 0
	for _, inv := range actionable {
		inv.Status = StatusDeclined
		decidedAt := now
		inv.DecidedAt = &decidedAt
		if err := h.repo.Update(r.Context(), inv); err != nil {
			h.log.Error("record decline", "invitation_id", inv.ID, "error", err)
			continue
		}
		declined++
	}
	metrics.InviteDecisionsTotal.WithLabelValues("decline_all").Inc()
	h.log.Info("invitations declined", "user_id", user.ID, "count", declined)
	api.WriteJSON(w, http.StatusOK, declineAllResponse{Declined: declined})
}

// HandleCreate creates an invitation into the caller's family. Admin only.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	membership, err := h.families.SummaryForUser(r.Context(), user.ID)
	if err != nil {
		api.WriteInternalError(w)
		return
	}
	if membership == nil {
		api.WriteNotFound(w, "no active family membership")
		return
	}
	if membership.Role != family.RoleAdmin {
		api.WriteForbidden(w, "insufficient role")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "username is required")
		return
	}
	if req.Role == "" {
		req.Role = family.RoleMember
	}
	if !family.ValidRole(req.Role) {
		api.WriteBadRequest(w, api.ReasonInvalidField, "unknown role")
		return
	}
	invited, err := h.parties.GetByUsername(r.Context(), req.Username)
	if err != nil {
		api.WriteNotFound(w, "user not found")
		return
	}

	inviterName := user.DisplayName
	if inviterName == "" {
		inviterName = user.Username
	}
	now := h.now()
	inv := &Invitation{
		ID:            NewInvitationID(),
		FamilyID:      membership.FamilyID,
		FamilyName:    membership.FamilyName,
		InvitedUserID: invited.ID,
		InviterUserID: user.ID,
		InviterName:   inviterName,
		Role:          req.Role,
		Message:       req.Message,
		Status:        StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(DefaultExpiry),
	}
	if err := h.repo.Create(r.Context(), inv); err != nil {
		h.log.Error("create invitation", "error", err)
		api.WriteInternalError(w)
		return
	}
	h.log.Info("invitation created", "invitation_id", inv.ID, "family_id", inv.FamilyID, "invited_user_id", invited.ID)
	api.WriteJSON(w, http.StatusCreated, inv)
}

// HandleRevoke revokes a pending invitation sent from the caller's family.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return
	}
	membership, err := h.families.SummaryForUser(r.Context(), user.ID)
	if err != nil || membership == nil || membership.Role != family.RoleAdmin {
		api.WriteForbidden(w, "insufficient role")
		return
	}
	inv, err := h.repo.Get(r.Context(), chi.URLParam(r, "invitationId"))
	if err != nil || inv.FamilyID != membership.FamilyID {
		api.WriteNotFound(w, "invitation not found")
		return
	}
	if inv.Status != StatusPending {
		api.WriteConflict(w, api.ReasonInvitationNotActionable, "invitation is no longer pending")
		return
	}
	now := h.now()
	inv.Status = StatusRevoked
	inv.DecidedAt = &now
	if err := h.repo.Update(r.Context(), inv); err != nil {
		h.log.Error("revoke invitation", "invitation_id", inv.ID, "error", err)
		api.WriteInternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadOwnInvitation resolves the caller and the invitation from the URL,
// requiring the caller to be its recipient. Other users' invitations look
// like 404 to avoid leaking their existence.
func (h *Handler) loadOwnInvitation(w http.ResponseWriter, r *http.Request) (*identity.User, *Invitation, bool) {
	user, err := h.currentUser(r.Context())
	if err != nil {
		api.WriteUnauthorized(w, "authentication required")
		return nil, nil, false
	}
	inv, err := h.repo.Get(r.Context(), chi.URLParam(r, "invitationId"))
	if err != nil || inv.InvitedUserID != user.ID {
		api.WriteNotFound(w, "invitation not found")
		return nil, nil, false
	}
	return user, inv, true
}

func (h *Handler) writeTokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrDecisionTokenInvalid) {
		api.WriteConflict(w, api.ReasonDecisionTokenInvalid, "decision token is missing, expired, or already used")
		return
	}
	h.log.Error("decision token check", "error", err)
	api.WriteInternalError(w)
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvitationNotActionable):
		api.WriteConflict(w, api.ReasonInvitationNotActionable, "invitation is expired or already decided")
	case errors.Is(err, ErrSwitchConfirmationRequired):
		api.WriteConflict(w, api.ReasonSwitchConfirmationRequired, "accepting this invitation leaves your current family; confirm the switch to proceed")
	case errors.Is(err, ErrNoActionableInvitations):
		api.WriteConflict(w, api.ReasonNoActionableInvitations, "no actionable invitations to decline")
	default:
		h.log.Error("resolve decision", "error", err)
		api.WriteInternalError(w)
	}
}
