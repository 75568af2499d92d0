/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("12.50"), never JSON numbers, so
  nothing on the wire can reintroduce float rounding.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  shared validator before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ParticipantRequest registers or renames a participant.
type ParticipantRequest struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
}

// ShareMemberRequest is one weighted participant in a template or a
// manual ledger edit.
type ShareMemberRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Shares        int    `json:"shares" validate:"required,min=1"`
}

// CreateTemplateRequest creates a distribution template.
type CreateTemplateRequest struct {
	Name          string               `json:"name" validate:"required"`
	EffectiveFrom string               `json:"effective_from" validate:"required"` // ISO date
	Members       []ShareMemberRequest `json:"members" validate:"required,min=1,dive"`
}

// UpdateTemplateRequest replaces a template's members.
type UpdateTemplateRequest struct {
	Members []ShareMemberRequest `json:"members" validate:"required,min=1,dive"`
}

// SetTemplateActiveRequest toggles a template.
type SetTemplateActiveRequest struct {
	Active bool `json:"active"`
}

// CreatePurchaseRequest creates a draft purchase.
type CreatePurchaseRequest struct {
	Date        string  `json:"date" validate:"required"` // ISO date
	TotalAmount string  `json:"total_amount" validate:"required"`
	BuyerID     string  `json:"buyer_id" validate:"required"`
	TemplateID  *string `json:"template_id,omitempty"`
}

// EditTotalRequest changes a purchase's total amount.
type EditTotalRequest struct {
	TotalAmount string `json:"total_amount" validate:"required"`
}

// ManualSharesRequest rebuilds a ledger from hand-entered shares.
type ManualSharesRequest struct {
	Members []ShareMemberRequest `json:"members" validate:"required,min=1,dive"`
}

// BuildFromTemplateRequest seeds a ledger from a template.
type BuildFromTemplateRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// UpdateSharesRequest changes one member's shares.
type UpdateSharesRequest struct {
	Shares int `json:"shares" validate:"required,min=1"`
}

// OverrideAmountRequest sets a row's manual amount override.
type OverrideAmountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// LockRequest locks a draft purchase for payment.
type LockRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
}

// ResolveRequest applies a reconciliation strategy.
type ResolveRequest struct {
	Strategy string `json:"strategy" validate:"required,oneof=keep redistribute adjust"`
	NewTotal string `json:"new_total" validate:"required"`
	OldTotal string `json:"old_total" validate:"required"`
}

// SetPaidRequest toggles a distribution's paid flag.
type SetPaidRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Paid    bool   `json:"paid"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ParticipantDTO represents a participant in API responses.
type ParticipantDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// TemplateMemberDTO is one member of a template.
type TemplateMemberDTO struct {
	ParticipantID string `json:"participant_id"`
	Shares        int    `json:"shares"`
}

// TemplateDTO represents a distribution template.
type TemplateDTO struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	EffectiveFrom string              `json:"effective_from"`
	IsActive      bool                `json:"is_active"`
	TotalShares   int                 `json:"total_shares"`
	Members       []TemplateMemberDTO `json:"members"`
	CreatedAt     string              `json:"created_at,omitempty"`
	UpdatedAt     string              `json:"updated_at,omitempty"`
}

// DistributionDTO represents one participant's obligation.
type DistributionDTO struct {
	ID               string  `json:"id"`
	PurchaseID       string  `json:"purchase_id"`
	ParticipantID    string  `json:"participant_id"`
	Shares           int     `json:"shares"`
	Percentage       string  `json:"percentage"`
	CalculatedAmount string  `json:"calculated_amount"`
	AdjustedAmount   *string `json:"adjusted_amount,omitempty"`
	EffectiveAmount  string  `json:"effective_amount"`
	IsPaid           bool    `json:"is_paid"`
	PaidAt           *string `json:"paid_at,omitempty"`
	Version          int     `json:"version"`
	AdjustmentType   *string `json:"adjustment_type,omitempty"`
	Notes            string  `json:"notes,omitempty"`
}

// PurchaseDTO represents a purchase with its status.
type PurchaseDTO struct {
	ID                  string  `json:"id"`
	Date                string  `json:"date"`
	BuyerID             string  `json:"buyer_id"`
	TotalAmount         string  `json:"total_amount"`
	OriginalTotalAmount *string `json:"original_total_amount,omitempty"`
	Status              string  `json:"status"`
	LockedAt            *string `json:"locked_at,omitempty"`
	LockedBy            *string `json:"locked_by,omitempty"`
	TemplateID          *string `json:"template_id,omitempty"`
	ManuallyModified    bool    `json:"manually_modified"`
}

// PurchaseDetailDTO is a purchase plus its ledger.
type PurchaseDetailDTO struct {
	Purchase      PurchaseDTO       `json:"purchase"`
	Distributions []DistributionDTO `json:"distributions"`
	AllPaid       bool              `json:"all_paid"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toParticipantDTO(p ledger.Participant) ParticipantDTO {
	return ParticipantDTO{ID: string(p.ID), DisplayName: p.DisplayName}
}

func toTemplateDTO(t ledger.Template) TemplateDTO {
	members := make([]TemplateMemberDTO, len(t.Members))
	for i, m := range t.Members {
		members[i] = TemplateMemberDTO{ParticipantID: string(m.Participant), Shares: m.Shares}
	}
	return TemplateDTO{
		ID:            string(t.ID),
		Name:          t.Name,
		EffectiveFrom: t.EffectiveFrom.Format("2006-01-02"),
		IsActive:      t.IsActive,
		TotalShares:   t.TotalShares,
		Members:       members,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
}

func toPurchaseDTO(p ledger.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:               string(p.ID),
		Date:             p.Date.Format("2006-01-02"),
		BuyerID:          string(p.Buyer),
		TotalAmount:      p.TotalAmount.StringFixed(ledger.MoneyPlaces),
		Status:           string(p.Status),
		ManuallyModified: p.ManuallyModified,
	}
	if p.OriginalTotalAmount != nil {
		s := p.OriginalTotalAmount.StringFixed(ledger.MoneyPlaces)
		dto.OriginalTotalAmount = &s
	}
	if p.LockedAt != nil {
		s := p.LockedAt.Format(time.RFC3339)
		dto.LockedAt = &s
	}
	if p.LockedBy != nil {
		s := string(*p.LockedBy)
		dto.LockedBy = &s
	}
	if p.TemplateID != nil {
		s := string(*p.TemplateID)
		dto.TemplateID = &s
	}
	return dto
}

func toDistributionDTO(d ledger.Distribution) DistributionDTO {
	dto := DistributionDTO{
		ID:               string(d.ID),
		PurchaseID:       string(d.PurchaseID),
		ParticipantID:    string(d.Participant),
		Shares:           d.Shares,
		Percentage:       d.Percentage.StringFixed(4),
		CalculatedAmount: d.CalculatedAmount.StringFixed(ledger.MoneyPlaces),
		EffectiveAmount:  d.EffectiveAmount().StringFixed(ledger.MoneyPlaces),
		IsPaid:           d.IsPaid,
		Version:          d.Version,
		Notes:            d.Notes,
	}
	if d.AdjustedAmount != nil {
		s := d.AdjustedAmount.StringFixed(ledger.MoneyPlaces)
		dto.AdjustedAmount = &s
	}
	if d.PaidAt != nil {
		s := d.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	if d.AdjustmentType != nil {
		s := string(*d.AdjustmentType)
		dto.AdjustmentType = &s
	}
	return dto
}

func toDistributionDTOs(rows []ledger.Distribution) []DistributionDTO {
	dtos := make([]DistributionDTO, len(rows))
	for i, d := range rows {
		dtos[i] = toDistributionDTO(d)
	}
	return dtos
}

func toShareMembers(members []ShareMemberRequest) []ledger.ShareMember {
	out := make([]ledger.ShareMember, len(members))
	for i, m := range members {
		out[i] = ledger.ShareMember{Participant: ledger.ParticipantID(m.ParticipantID), Shares: m.Shares}
	}
	return out
}

func toTemplateMembers(members []ShareMemberRequest) []ledger.TemplateMember {
	out := make([]ledger.TemplateMember, len(members))
	for i, m := range members {
		out[i] = ledger.TemplateMember{Participant: ledger.ParticipantID(m.ParticipantID), Shares: m.Shares}
	}
	return out
}

func parseMoney(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
