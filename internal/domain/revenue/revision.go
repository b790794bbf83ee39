package revenue

import (
	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RevisionCause tags what triggered a schedule revision
type RevisionCause string

const (
	RevisionCauseChangeOrder RevisionCause = "CO"  // contract modification
	RevisionCauseVCEstimate  RevisionCause = "VC"  // variable-consideration change
	RevisionCauseSSPChange   RevisionCause = "SSP" // prospective reallocation
)

// IsValid checks if the cause is a valid RevisionCause
func (c RevisionCause) IsValid() bool {
	switch c {
	case RevisionCauseChangeOrder, RevisionCauseVCEstimate, RevisionCauseSSPChange:
		return true
	}
	return false
}

// ScheduleRevision records the delta between planned-before and
// planned-after recognition for a POB starting at a given period, linked to
// the change order, VC estimate, or SSP change that triggered it.
type ScheduleRevision struct {
	shared.TenantAggregateRoot
	POBID         uuid.UUID       `gorm:"column:pob_id;type:uuid;not null;index"`
	FromYear      int             `gorm:"not null"`
	FromMonth     int             `gorm:"not null"`
	PlannedBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PlannedAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Cause         RevisionCause   `gorm:"type:varchar(5);not null;index"`
	ChangeOrderID *uuid.UUID      `gorm:"type:uuid;index"`
	VCEstimateID  *uuid.UUID      `gorm:"column:vc_estimate_id;type:uuid;index"`
	SSPChangeID   *uuid.UUID      `gorm:"column:ssp_change_id;type:uuid;index"`
}

// NewScheduleRevision records one revision delta
func NewScheduleRevision(tenantID, pobID uuid.UUID, fromYear, fromMonth int, plannedBefore, plannedAfter decimal.Decimal, cause RevisionCause) (*ScheduleRevision, error) {
	if !cause.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", "Unknown revision cause: "+string(cause))
	}
	return &ScheduleRevision{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		POBID:               pobID,
		FromYear:            fromYear,
		FromMonth:           fromMonth,
		PlannedBefore:       plannedBefore,
		PlannedAfter:        plannedAfter,
		Cause:               cause,
	}, nil
}

func (ScheduleRevision) TableName() string {
	return "schedule_revisions"
}

// Delta returns plannedAfter minus plannedBefore
func (r *ScheduleRevision) Delta() decimal.Decimal {
	return r.PlannedAfter.Sub(r.PlannedBefore)
}
