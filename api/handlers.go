/*
handlers.go - HTTP route handlers

PURPOSE:
  Translates HTTP requests into calls on the ledger services and maps
  domain errors back onto HTTP status codes.

ERROR MAPPING:
  - invalid input (shares, totals, unbalanced ledgers): 400
  - missing records: 404
  - status conflicts (locked, pending amount change): 409
  - actor not allowed to toggle a payment: 403
  - storage failures and everything else: 500

SEE ALSO:
  - dto.go: Request and response types
  - server.go: Route registration
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

const dateLayout = "2006-01-02"

// Stores bundles the storage interfaces a Handler needs. Both the
// SQLite store and the in-memory store satisfy it.
type Stores struct {
	Participants  ledger.ParticipantDirectory
	Templates     ledger.TemplateStore
	Purchases     ledger.PurchaseStore
	Distributions ledger.DistributionStore
}

// Handler holds the wired services and shared plumbing for all routes.
type Handler struct {
	stores    Stores
	templates *ledger.TemplateService
	ledgers   *ledger.LedgerService
	statuses  *ledger.StatusService
	reconcile *ledger.Reconciler
	payments  *ledger.PaymentTracker
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewHandler wires the domain services on top of the given stores.
// Every mutation funnels through a change observer that logs the
// affected purchase.
func NewHandler(stores Stores, log zerolog.Logger) *Handler {
	observer := func(id ledger.PurchaseID) {
		log.Debug().Str("purchase_id", string(id)).Msg("ledger changed")
	}

	return &Handler{
		stores: stores,
		templates: &ledger.TemplateService{
			Templates: stores.Templates,
		},
		ledgers: &ledger.LedgerService{
			Purchases:     stores.Purchases,
			Distributions: stores.Distributions,
			Templates:     stores.Templates,
			Observer:      observer,
		},
		statuses: &ledger.StatusService{
			Purchases:     stores.Purchases,
			Distributions: stores.Distributions,
			Observer:      observer,
		},
		reconcile: &ledger.Reconciler{
			Purchases:     stores.Purchases,
			Distributions: stores.Distributions,
			Observer:      observer,
		},
		payments: &ledger.PaymentTracker{
			Purchases:     stores.Purchases,
			Distributions: stores.Distributions,
			Observer:      observer,
		},
		validate: validator.New(),
		log:      log,
	}
}

// Statuses exposes the status service for background jobs such as the
// auto-lock sweeper.
func (h *Handler) Statuses() *ledger.StatusService { return h.statuses }

// Payments exposes the payment tracker for background jobs.
func (h *Handler) Payments() *ledger.PaymentTracker { return h.payments }

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ledger.ErrNotAuthorized):
		status = http.StatusForbidden
		code = "forbidden"
	case ledger.IsStateConflict(err):
		status = http.StatusConflict
		code = "state_conflict"
	case ledger.IsClientError(err) || errors.Is(err, ledger.ErrUnknownStrategy):
		status = http.StatusBadRequest
		code = "invalid_request"
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_request"})
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.badRequest(w, "validation failed: "+err.Error())
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.stores.Participants.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ParticipantDTO, len(participants))
	for i, p := range participants {
		dtos[i] = toParticipantDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) PutParticipant(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := ledger.Participant{ID: ledger.ParticipantID(req.ID), DisplayName: req.DisplayName}
	if err := h.stores.Participants.Put(r.Context(), p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantDTO(p))
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.stores.Templates.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListActiveTemplates(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if s := r.URL.Query().Get("as_of"); s != "" {
		parsed, err := parseDate(s)
		if err != nil {
			h.badRequest(w, "invalid as_of date, expected YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	templates, err := h.templates.ListActive(r.Context(), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := ledger.TemplateID(chi.URLParam(r, "templateID"))
	t, err := h.stores.Templates.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(*t))
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	effectiveFrom, err := parseDate(req.EffectiveFrom)
	if err != nil {
		h.badRequest(w, "invalid effective_from date, expected YYYY-MM-DD")
		return
	}
	t, err := h.templates.Create(r.Context(), req.Name, effectiveFrom, toTemplateMembers(req.Members))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(*t))
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := ledger.TemplateID(chi.URLParam(r, "templateID"))
	var req UpdateTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.templates.Update(r.Context(), id, toTemplateMembers(req.Members))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(*t))
}

func (h *Handler) SetTemplateActive(w http.ResponseWriter, r *http.Request) {
	id := ledger.TemplateID(chi.URLParam(r, "templateID"))
	var req SetTemplateActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	t, err := h.templates.SetActive(r.Context(), id, req.Active)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(*t))
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := ledger.TemplateID(chi.URLParam(r, "templateID"))
	if err := h.templates.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASES
// =============================================================================

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	var (
		purchases []ledger.Purchase
		err       error
	)
	if s := r.URL.Query().Get("status"); s != "" {
		purchases, err = h.stores.Purchases.ListByStatus(r.Context(), ledger.Status(s))
	} else {
		purchases, err = h.stores.Purchases.List(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		h.badRequest(w, "invalid date, expected YYYY-MM-DD")
		return
	}
	total, ok := parseMoney(req.TotalAmount)
	if !ok {
		h.badRequest(w, "invalid total_amount")
		return
	}
	var templateID *ledger.TemplateID
	if req.TemplateID != nil {
		id := ledger.TemplateID(*req.TemplateID)
		templateID = &id
	}
	p, err := h.ledgers.CreatePurchase(r.Context(), date, total, ledger.ParticipantID(req.BuyerID), templateID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Buyers are assumed self-settled on ledgers seeded at creation.
	if templateID != nil {
		if err := h.payments.AutoSettleBuyer(r.Context(), p.ID); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeDetail(w, r, http.StatusCreated, p.ID)
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	h.writeDetail(w, r, http.StatusOK, id)
}

// writeDetail responds with a purchase, its ledger, and the all-paid
// flag.
func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, status int, id ledger.PurchaseID) {
	p, err := h.stores.Purchases.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rows, err := h.stores.Distributions.ListByPurchase(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	allPaid, err := h.payments.AllPaid(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, status, PurchaseDetailDTO{
		Purchase:      toPurchaseDTO(*p),
		Distributions: toDistributionDTOs(rows),
		AllPaid:       allPaid,
	})
}

func (h *Handler) EditTotal(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	var req EditTotalRequest
	if !h.decode(w, r, &req) {
		return
	}
	total, ok := parseMoney(req.TotalAmount)
	if !ok {
		h.badRequest(w, "invalid total_amount")
		return
	}
	if _, err := h.ledgers.EditTotal(r.Context(), id, total); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

func (h *Handler) LockPurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	var req LockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.statuses.Lock(r.Context(), id, ledger.ParticipantID(req.ActorID)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) UnlockPurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	if _, err := h.statuses.Unlock(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) ResolvePurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	newTotal, ok := parseMoney(req.NewTotal)
	if !ok {
		h.badRequest(w, "invalid new_total")
		return
	}
	oldTotal, ok := parseMoney(req.OldTotal)
	if !ok {
		h.badRequest(w, "invalid old_total")
		return
	}
	_, err := h.reconcile.Resolve(r.Context(), id, ledger.Strategy(req.Strategy), newTotal, oldTotal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

// =============================================================================
// LEDGER EDITS
// =============================================================================

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	rows, err := h.ledgers.Ledger(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTOs(rows))
}

func (h *Handler) SetManualShares(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	var req ManualSharesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledgers.RebuildFromManualShares(r.Context(), id, toShareMembers(req.Members)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) BuildFromTemplate(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	var req BuildFromTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledgers.BuildFromTemplate(r.Context(), id, ledger.TemplateID(req.TemplateID)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) RedistributeEqually(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	if err := h.ledgers.RedistributeEqually(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) UpdateMemberShares(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	participant := ledger.ParticipantID(chi.URLParam(r, "participantID"))
	var req UpdateSharesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ledgers.UpdateMemberShares(r.Context(), id, participant, req.Shares); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	participant := ledger.ParticipantID(chi.URLParam(r, "participantID"))
	if err := h.ledgers.RemoveParticipant(r.Context(), id, participant); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) SetPaid(w http.ResponseWriter, r *http.Request) {
	id := ledger.DistributionID(chi.URLParam(r, "distributionID"))
	var req SetPaidRequest
	if !h.decode(w, r, &req) {
		return
	}
	row, err := h.payments.SetPaid(r.Context(), id, ledger.ParticipantID(req.ActorID), req.Paid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*row))
}

func (h *Handler) AutoSettleBuyer(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "purchaseID"))
	if err := h.payments.AutoSettleBuyer(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, id)
}

func (h *Handler) OverrideAmount(w http.ResponseWriter, r *http.Request) {
	id := ledger.DistributionID(chi.URLParam(r, "distributionID"))
	var req OverrideAmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseMoney(req.Amount)
	if !ok {
		h.badRequest(w, "invalid amount")
		return
	}
	if err := h.ledgers.ApplyManualAmountOverride(r.Context(), id, amount); err != nil {
		h.writeError(w, err)
		return
	}
	row, err := h.stores.Distributions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*row))
}

func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	id := ledger.DistributionID(chi.URLParam(r, "distributionID"))
	if err := h.ledgers.ClearManualAmountOverride(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	row, err := h.stores.Distributions.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(*row))
}
