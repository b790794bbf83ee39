package revenue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Treatment represents the ASC 606 accounting treatment of a modification
type Treatment string

const (
	// TreatmentDraft is the placeholder type a change order carries until it
	// is applied; the real treatment is chosen at apply time.
	TreatmentDraft          Treatment = "DRAFT"
	TreatmentSeparate       Treatment = "SEPARATE"
	TreatmentTerminationNew Treatment = "TERMINATION_NEW"
	TreatmentProspective    Treatment = "PROSPECTIVE"
	TreatmentRetrospective  Treatment = "RETROSPECTIVE"
)

// IsValid checks if the treatment is an applicable (non-placeholder) variant
func (t Treatment) IsValid() bool {
	switch t {
	case TreatmentSeparate, TreatmentTerminationNew, TreatmentProspective, TreatmentRetrospective:
		return true
	}
	return false
}

// String returns the string representation of Treatment
func (t Treatment) String() string {
	return string(t)
}

// ChangeOrderStatus represents the change order lifecycle: DRAFT then
// APPLIED, terminal. There is no rejected or cancelled state.
type ChangeOrderStatus string

const (
	ChangeOrderStatusDraft   ChangeOrderStatus = "DRAFT"
	ChangeOrderStatusApplied ChangeOrderStatus = "APPLIED"
)

// IsValid checks if the status is a valid ChangeOrderStatus
func (s ChangeOrderStatus) IsValid() bool {
	return s == ChangeOrderStatusDraft || s == ChangeOrderStatusApplied
}

// ChangeLine is one line-level delta of a change order. Either POBID (for
// modifications of an existing obligation) or ProductID (for additions) is
// set.
type ChangeLine struct {
	shared.BaseEntity
	ChangeOrderID uuid.UUID          `gorm:"type:uuid;not null;index"`
	POBID         *uuid.UUID         `gorm:"column:pob_id;type:uuid;index"`
	ProductID     *uuid.UUID         `gorm:"type:uuid"`
	QtyDelta      decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	PriceDelta    decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	TermDeltaDays int                `gorm:"not null;default:0"`
	NewMethod     *RecognitionMethod `gorm:"type:varchar(30)"`
	NewSSP        *decimal.Decimal   `gorm:"column:new_ssp;type:decimal(18,4)"`
}

// ChangeLineInput is the payload for creating one change line
type ChangeLineInput struct {
	POBID         *uuid.UUID
	ProductID     *uuid.UUID
	QtyDelta      decimal.Decimal
	PriceDelta    decimal.Decimal
	TermDeltaDays int
	NewMethod     *RecognitionMethod
	NewSSP        *decimal.Decimal
}

// Validate checks that the line references either a POB or a product
func (in ChangeLineInput) Validate() error {
	if in.POBID == nil && in.ProductID == nil {
		return shared.NewDomainError("INVALID_INPUT", "Change line requires a POB or product reference")
	}
	if in.NewMethod != nil && !in.NewMethod.IsValid() {
		return shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown recognition method: %s", *in.NewMethod))
	}
	return nil
}

// ChangeOrder is a contract modification. It is created DRAFT with its lines
// and transitions exactly once to APPLIED, carrying the treatment chosen at
// apply time.
type ChangeOrder struct {
	shared.TenantAggregateRoot
	ContractID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	EffectiveDate time.Time         `gorm:"not null;index"`
	Type          Treatment         `gorm:"type:varchar(20);not null"`
	Reason        string            `gorm:"type:text"`
	Status        ChangeOrderStatus `gorm:"type:varchar(10);not null;default:'DRAFT';index"`
	AppliedAt     *time.Time
	AppliedBy     *uuid.UUID        `gorm:"type:uuid"`
	Lines         []ChangeLine      `gorm:"foreignKey:ChangeOrderID"`
}

// NewChangeOrder creates a DRAFT change order with its lines
func NewChangeOrder(tenantID, createdBy, contractID uuid.UUID, effectiveDate time.Time, reason string, lines []ChangeLineInput) (*ChangeOrder, error) {
	if contractID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Contract ID is required")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Change order requires at least one line")
	}
	co := &ChangeOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		ContractID:          contractID,
		EffectiveDate:       effectiveDate,
		Type:                TreatmentDraft,
		Reason:              reason,
		Status:              ChangeOrderStatusDraft,
	}
	for _, in := range lines {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		co.Lines = append(co.Lines, ChangeLine{
			BaseEntity:    shared.NewBaseEntity(),
			ChangeOrderID: co.ID,
			POBID:         in.POBID,
			ProductID:     in.ProductID,
			QtyDelta:      in.QtyDelta,
			PriceDelta:    in.PriceDelta,
			TermDeltaDays: in.TermDeltaDays,
			NewMethod:     in.NewMethod,
			NewSSP:        in.NewSSP,
		})
	}
	return co, nil
}

func (ChangeOrder) TableName() string {
	return "change_orders"
}

func (ChangeLine) TableName() string {
	return "change_lines"
}

// Apply transitions the change order to APPLIED under the given treatment.
// The transition is irreversible; a second apply fails with INVALID_STATE.
func (co *ChangeOrder) Apply(treatment Treatment, appliedBy uuid.UUID) error {
	if co.Status != ChangeOrderStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Change order is not in DRAFT status")
	}
	if !treatment.IsValid() {
		return shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown treatment: %s", treatment))
	}
	now := time.Now()
	co.Type = treatment
	co.Status = ChangeOrderStatusApplied
	co.AppliedAt = &now
	co.AppliedBy = &appliedBy
	co.UpdatedAt = now
	co.IncrementVersion()
	co.AddDomainEvent(NewChangeOrderAppliedEvent(co))
	return nil
}

// IsApplied reports whether the change order has reached its terminal state
func (co *ChangeOrder) IsApplied() bool {
	return co.Status == ChangeOrderStatusApplied
}
