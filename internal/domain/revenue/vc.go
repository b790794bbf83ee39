package revenue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultConstraintThreshold is the probability threshold used when a tenant
// has no VC policy configured. Fail-safe: an unconfigured tenant constrains
// at 0.5, it does not skip constraining.
var DefaultConstraintThreshold = decimal.NewFromFloat(0.5)

// VCMethod represents the estimation method for variable consideration
type VCMethod string

const (
	VCMethodExpectedValue VCMethod = "EXPECTED_VALUE"
	VCMethodMostLikely    VCMethod = "MOST_LIKELY"
)

// IsValid checks if the method is a valid VCMethod
func (m VCMethod) IsValid() bool {
	return m == VCMethodExpectedValue || m == VCMethodMostLikely
}

// String returns the string representation of VCMethod
func (m VCMethod) String() string {
	return string(m)
}

// VCEstimateStatus represents the lifecycle of a variable-consideration estimate
type VCEstimateStatus string

const (
	VCEstimateStatusOpen     VCEstimateStatus = "OPEN"
	VCEstimateStatusResolved VCEstimateStatus = "RESOLVED"
)

// IsValid checks if the status is a valid VCEstimateStatus
func (s VCEstimateStatus) IsValid() bool {
	return s == VCEstimateStatusOpen || s == VCEstimateStatusResolved
}

// VCPolicy is the per-tenant variable-consideration constraint policy.
// One row per tenant.
type VCPolicy struct {
	shared.TenantAggregateRoot
	DefaultMethod                  VCMethod        `gorm:"type:varchar(20);not null"`
	ConstraintProbabilityThreshold decimal.Decimal `gorm:"type:decimal(5,4);not null"` // 0..1
	VolatilityLookbackMonths       int             `gorm:"not null;default:0"`
}

// NewVCPolicy creates a constraint policy for the tenant
func NewVCPolicy(tenantID uuid.UUID, method VCMethod, threshold decimal.Decimal, lookbackMonths int) (*VCPolicy, error) {
	if !method.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown VC method: %s", method))
	}
	if threshold.IsNegative() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Constraint threshold must be between 0 and 1")
	}
	if lookbackMonths < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Lookback months cannot be negative")
	}
	return &VCPolicy{
		TenantAggregateRoot:            shared.NewTenantAggregateRoot(tenantID),
		DefaultMethod:                  method,
		ConstraintProbabilityThreshold: threshold,
		VolatilityLookbackMonths:       lookbackMonths,
	}, nil
}

// Constrain applies the core constraint rule: the estimate passes through
// unchanged when confidence meets the threshold, otherwise it is zeroed.
func Constrain(estimate, confidence, threshold decimal.Decimal) decimal.Decimal {
	if confidence.GreaterThanOrEqual(threshold) {
		return estimate
	}
	return decimal.Zero
}

// VCEstimate is a constrained variable-consideration estimate, upserted by
// (tenant, contract, pob, year, month). Re-submitting for the same period
// overwrites the prior estimate; period history lives in schedule revisions.
//
// Year/month range is not validated here; the boundary layer owns that.
type VCEstimate struct {
	shared.TenantAggregateRoot
	ContractID        uuid.UUID        `gorm:"type:uuid;not null;index:idx_vc_estimate_period,priority:2"`
	POBID             uuid.UUID        `gorm:"column:pob_id;type:uuid;not null;index:idx_vc_estimate_period,priority:3"`
	Year              int              `gorm:"not null;index:idx_vc_estimate_period,priority:4"`
	Month             int              `gorm:"not null;index:idx_vc_estimate_period,priority:5"`
	Method            VCMethod         `gorm:"type:varchar(20);not null"`
	RawEstimate       decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ConstrainedAmount decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Confidence        decimal.Decimal  `gorm:"type:decimal(5,4);not null"` // 0..1
	Status            VCEstimateStatus `gorm:"type:varchar(10);not null;default:'OPEN'"`
}

func (VCPolicy) TableName() string {
	return "vc_policies"
}

// NewVCEstimate creates a constrained estimate for the period
func NewVCEstimate(tenantID, createdBy, contractID, pobID uuid.UUID, year, month int, method VCMethod, rawEstimate, confidence, threshold decimal.Decimal, resolve bool) (*VCEstimate, error) {
	if !method.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown VC method: %s", method))
	}
	status := VCEstimateStatusOpen
	if resolve {
		status = VCEstimateStatusResolved
	}
	return &VCEstimate{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		ContractID:          contractID,
		POBID:               pobID,
		Year:                year,
		Month:               month,
		Method:              method,
		RawEstimate:         rawEstimate,
		ConstrainedAmount:   Constrain(rawEstimate, confidence, threshold),
		Confidence:          confidence,
		Status:              status,
	}, nil
}

func (VCEstimate) TableName() string {
	return "vc_estimates"
}

// Revise overwrites the estimate for the same period, re-applying the
// constraint rule.
func (e *VCEstimate) Revise(method VCMethod, rawEstimate, confidence, threshold decimal.Decimal, resolve bool) error {
	if !method.IsValid() {
		return shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown VC method: %s", method))
	}
	e.Method = method
	e.RawEstimate = rawEstimate
	e.Confidence = confidence
	e.ConstrainedAmount = Constrain(rawEstimate, confidence, threshold)
	if resolve {
		e.Status = VCEstimateStatusResolved
	} else {
		e.Status = VCEstimateStatusOpen
	}
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	return nil
}
