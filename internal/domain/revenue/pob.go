package revenue

import (
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RecognitionMethod represents how a performance obligation recognizes revenue
type RecognitionMethod string

const (
	RecognitionRatableMonthly  RecognitionMethod = "RATABLE_MONTHLY"
	RecognitionPointInTime     RecognitionMethod = "POINT_IN_TIME"
	RecognitionUsageBased      RecognitionMethod = "USAGE_BASED"
	RecognitionPercentComplete RecognitionMethod = "PERCENT_COMPLETE"
)

// IsValid checks if the recognition method is valid
func (m RecognitionMethod) IsValid() bool {
	switch m {
	case RecognitionRatableMonthly, RecognitionPointInTime, RecognitionUsageBased, RecognitionPercentComplete:
		return true
	}
	return false
}

// String returns the string representation of RecognitionMethod
func (m RecognitionMethod) String() string {
	return string(m)
}

// POBStatus represents the lifecycle of a performance obligation
type POBStatus string

const (
	POBStatusOpen   POBStatus = "OPEN"
	POBStatusClosed POBStatus = "CLOSED"
)

// IsValid checks if the status is a valid POBStatus
func (s POBStatus) IsValid() bool {
	return s == POBStatusOpen || s == POBStatusClosed
}

// PerformanceObligation is a unit of revenue recognition created by the
// allocation engine. Its allocated amount and SSP are mutated only by
// prospective reallocation while the POB is OPEN; a CLOSED POB is immutable.
type PerformanceObligation struct {
	shared.TenantAggregateRoot
	ContractID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	SubscriptionID  *uuid.UUID           `gorm:"type:uuid;index"`
	InvoiceLineID   *uuid.UUID           `gorm:"type:uuid;index"`
	ProductID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	Name            string               `gorm:"type:varchar(200);not null"`
	Method          RecognitionMethod    `gorm:"type:varchar(30);not null"`
	StartDate       time.Time            `gorm:"not null"`
	EndDate         *time.Time
	Qty             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	UOM             string               `gorm:"column:uom;type:varchar(20)"`
	SSP             *decimal.Decimal     `gorm:"column:ssp;type:decimal(18,4)"` // nil for residual-only allocations
	AllocatedAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency        valueobject.Currency `gorm:"type:varchar(3);not null"`
	Status          POBStatus            `gorm:"type:varchar(10);not null;default:'OPEN';index"`
	ClosedAt        *time.Time
}

// NewPerformanceObligation creates an OPEN performance obligation. An empty
// method defaults to RATABLE_MONTHLY.
func NewPerformanceObligation(tenantID, createdBy, contractID, productID uuid.UUID, name string, method RecognitionMethod, startDate time.Time, qty decimal.Decimal, allocatedAmount decimal.Decimal, currency valueobject.Currency) (*PerformanceObligation, error) {
	if contractID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Contract ID is required")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product ID is required")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Currency is required")
	}
	if method == "" {
		method = RecognitionRatableMonthly
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", "Unknown recognition method: "+method.String())
	}
	return &PerformanceObligation{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		ContractID:          contractID,
		ProductID:           productID,
		Name:                name,
		Method:              method,
		StartDate:           startDate,
		Qty:                 qty,
		AllocatedAmount:     allocatedAmount,
		Currency:            currency,
		Status:              POBStatusOpen,
	}, nil
}

func (PerformanceObligation) TableName() string {
	return "performance_obligations"
}

// IsOpen reports whether the POB can still be modified
func (p *PerformanceObligation) IsOpen() bool {
	return p.Status == POBStatusOpen
}

// Reallocate replaces the POB's SSP and allocated amount. Only valid while
// OPEN; prospective reallocation is the sole caller.
func (p *PerformanceObligation) Reallocate(newSSP, newAllocated decimal.Decimal) error {
	if !p.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Cannot reallocate a closed performance obligation")
	}
	p.SSP = &newSSP
	p.AllocatedAmount = newAllocated
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// ApplyChange mutates the POB with a change-order line's deltas. Only valid
// while OPEN.
func (p *PerformanceObligation) ApplyChange(qtyDelta, priceDelta decimal.Decimal, termDeltaDays int, newMethod *RecognitionMethod, newSSP *decimal.Decimal) error {
	if !p.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify a closed performance obligation")
	}
	if newMethod != nil {
		if !newMethod.IsValid() {
			return shared.NewDomainError("UNKNOWN_VARIANT", "Unknown recognition method: "+newMethod.String())
		}
		p.Method = *newMethod
	}
	p.Qty = p.Qty.Add(qtyDelta)
	p.AllocatedAmount = p.AllocatedAmount.Add(priceDelta)
	if termDeltaDays != 0 && p.EndDate != nil {
		shifted := p.EndDate.AddDate(0, 0, termDeltaDays)
		p.EndDate = &shifted
	}
	if newSSP != nil {
		p.SSP = newSSP
	}
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// Close marks the POB as fully recognized. Terminal.
func (p *PerformanceObligation) Close() error {
	if !p.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "Performance obligation is already closed")
	}
	now := time.Now()
	p.Status = POBStatusClosed
	p.ClosedAt = &now
	p.UpdatedAt = now
	return nil
}
