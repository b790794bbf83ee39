package revenue

import (
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ChangeOrderAppliedEvent is raised when a change order reaches APPLIED
type ChangeOrderAppliedEvent struct {
	shared.BaseDomainEvent
	ChangeOrderID uuid.UUID `json:"change_order_id"`
	ContractID    uuid.UUID `json:"contract_id"`
	Treatment     Treatment `json:"treatment"`
	EffectiveDate time.Time `json:"effective_date"`
	LineCount     int       `json:"line_count"`
}

// EventType returns the event type name
func (e *ChangeOrderAppliedEvent) EventType() string {
	return "ChangeOrderApplied"
}

// NewChangeOrderAppliedEvent creates a new ChangeOrderAppliedEvent
func NewChangeOrderAppliedEvent(co *ChangeOrder) *ChangeOrderAppliedEvent {
	return &ChangeOrderAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChangeOrderApplied", co.ID, "ChangeOrder", co.TenantID),
		ChangeOrderID:   co.ID,
		ContractID:      co.ContractID,
		Treatment:       co.Type,
		EffectiveDate:   co.EffectiveDate,
		LineCount:       len(co.Lines),
	}
}

// SSPChangeApprovedEvent is raised when an SSP change request is approved.
// It is the trigger payload for prospective reallocation.
type SSPChangeApprovedEvent struct {
	shared.BaseDomainEvent
	ChangeRequestID  uuid.UUID   `json:"change_request_id"`
	AffectedProducts []uuid.UUID `json:"affected_products"`
	DecidedBy        uuid.UUID   `json:"decided_by"`
}

// EventType returns the event type name
func (e *SSPChangeApprovedEvent) EventType() string {
	return "SSPChangeApproved"
}

// NewSSPChangeApprovedEvent creates a new SSPChangeApprovedEvent
func NewSSPChangeApprovedEvent(r *SSPChangeRequest) *SSPChangeApprovedEvent {
	var decidedBy uuid.UUID
	if r.DecidedBy != nil {
		decidedBy = *r.DecidedBy
	}
	return &SSPChangeApprovedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("SSPChangeApproved", r.ID, "SSPChangeRequest", r.TenantID),
		ChangeRequestID:  r.ID,
		AffectedProducts: r.Diff.AffectedProducts,
		DecidedBy:        decidedBy,
	}
}

// AllocationCompletedEvent is raised after a successful allocation run
type AllocationCompletedEvent struct {
	shared.BaseDomainEvent
	RunID              uuid.UUID          `json:"run_id"`
	InvoiceID          uuid.UUID          `json:"invoice_id"`
	Strategy           AllocationStrategy `json:"strategy"`
	POBsCreated        int                `json:"pobs_created"`
	TotalAllocated     decimal.Decimal    `json:"total_allocated"`
	RoundingAdjustment decimal.Decimal    `json:"rounding_adjustment"`
}

// EventType returns the event type name
func (e *AllocationCompletedEvent) EventType() string {
	return "AllocationCompleted"
}

// NewAllocationCompletedEvent creates a new AllocationCompletedEvent
func NewAllocationCompletedEvent(audit *AllocationAudit, pobsCreated int) *AllocationCompletedEvent {
	return &AllocationCompletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent("AllocationCompleted", audit.RunID, "AllocationAudit", audit.TenantID),
		RunID:              audit.RunID,
		InvoiceID:          audit.InvoiceID,
		Strategy:           audit.Strategy,
		POBsCreated:        pobsCreated,
		TotalAllocated:     audit.TotalAllocatedAmount,
		RoundingAdjustment: audit.RoundingAdjustment,
	}
}
