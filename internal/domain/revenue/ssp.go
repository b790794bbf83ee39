package revenue

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PricingMethod represents how a standalone selling price was established
type PricingMethod string

const (
	PricingMethodListPrice        PricingMethod = "LIST_PRICE"
	PricingMethodAdjustedMarket   PricingMethod = "ADJUSTED_MARKET"
	PricingMethodCostPlus         PricingMethod = "COST_PLUS"
	PricingMethodResidualApproach PricingMethod = "RESIDUAL_APPROACH"
)

// IsValid checks if the pricing method is valid
func (m PricingMethod) IsValid() bool {
	switch m {
	case PricingMethodListPrice, PricingMethodAdjustedMarket,
		PricingMethodCostPlus, PricingMethodResidualApproach:
		return true
	}
	return false
}

// String returns the string representation of PricingMethod
func (m PricingMethod) String() string {
	return string(m)
}

// CatalogStatus represents the approval status of a catalog entry
type CatalogStatus string

const (
	CatalogStatusDraft    CatalogStatus = "DRAFT"
	CatalogStatusApproved CatalogStatus = "APPROVED"
	CatalogStatusRejected CatalogStatus = "REJECTED"
)

// IsValid checks if the status is a valid CatalogStatus
func (s CatalogStatus) IsValid() bool {
	switch s {
	case CatalogStatusDraft, CatalogStatusApproved, CatalogStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of CatalogStatus
func (s CatalogStatus) String() string {
	return string(s)
}

// CatalogEntry is an effective-dated standalone selling price for a
// product/currency pair. At most one APPROVED entry with an open effective
// interval may exist per (tenant, product, currency); superseded entries are
// end-dated, never deleted.
type CatalogEntry struct {
	shared.TenantAggregateRoot
	ProductID      uuid.UUID            `gorm:"type:uuid;not null;index:idx_ssp_entry_lookup,priority:2"`
	Currency       valueobject.Currency `gorm:"type:varchar(3);not null;index:idx_ssp_entry_lookup,priority:3"`
	SSP            decimal.Decimal      `gorm:"column:ssp;type:decimal(18,4);not null"`
	Method         PricingMethod        `gorm:"type:varchar(30);not null"`
	EffectiveFrom  time.Time            `gorm:"not null;index"`
	EffectiveTo    *time.Time           // nil = open interval
	CorridorMinPct *decimal.Decimal     `gorm:"type:decimal(8,4)"`
	CorridorMaxPct *decimal.Decimal     `gorm:"type:decimal(8,4)"`
	Status         CatalogStatus        `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	DecidedBy      *uuid.UUID           `gorm:"type:uuid"`
	DecidedAt      *time.Time
}

// NewCatalogEntry creates a DRAFT catalog entry. Approval is a separate
// decision step.
func NewCatalogEntry(tenantID, createdBy, productID uuid.UUID, currency valueobject.Currency, ssp decimal.Decimal, method PricingMethod, effectiveFrom time.Time, effectiveTo *time.Time) (*CatalogEntry, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product ID is required")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Currency is required")
	}
	if ssp.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "SSP cannot be negative")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid pricing method: %s", method))
	}
	if effectiveTo != nil && !effectiveTo.After(effectiveFrom) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Effective-to must be after effective-from")
	}
	return &CatalogEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		ProductID:           productID,
		Currency:            currency,
		SSP:                 ssp,
		Method:              method,
		EffectiveFrom:       effectiveFrom,
		EffectiveTo:         effectiveTo,
		Status:              CatalogStatusDraft,
	}, nil
}

func (CatalogEntry) TableName() string {
	return "ssp_catalog_entries"
}

// IsOpen reports whether the entry's effective interval is open-ended
func (e *CatalogEntry) IsOpen() bool {
	return e.EffectiveTo == nil
}

// ContainsDate reports whether asOf falls inside [EffectiveFrom, EffectiveTo)
func (e *CatalogEntry) ContainsDate(asOf time.Time) bool {
	if asOf.Before(e.EffectiveFrom) {
		return false
	}
	return e.EffectiveTo == nil || asOf.Before(*e.EffectiveTo)
}

// EndDate closes the entry's effective interval at the given date.
// Used when a superseding entry takes effect.
func (e *CatalogEntry) EndDate(at time.Time) error {
	if e.EffectiveTo != nil {
		return shared.NewDomainError("INVALID_STATE", "Catalog entry is already end-dated")
	}
	if !at.After(e.EffectiveFrom) {
		return shared.NewDomainError("INVALID_INPUT", "End date must be after effective-from")
	}
	e.EffectiveTo = &at
	e.UpdatedAt = time.Now()
	return nil
}

// Decide transitions a DRAFT entry to APPROVED or REJECTED
func (e *CatalogEntry) Decide(status CatalogStatus, decidedBy uuid.UUID) error {
	if e.Status != CatalogStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Catalog entry is not in DRAFT status")
	}
	if status != CatalogStatusApproved && status != CatalogStatusRejected {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid decision status: %s", status))
	}
	now := time.Now()
	e.Status = status
	e.DecidedBy = &decidedBy
	e.DecidedAt = &now
	e.UpdatedAt = now
	return nil
}

// RoundingRule selects how allocated amounts are rounded to whole currency units
type RoundingRule string

const (
	RoundingHalfUp  RoundingRule = "HALF_UP" // round half away from zero
	RoundingBankers RoundingRule = "BANKERS" // round half to even
)

// IsValid checks if the rounding rule is valid
func (r RoundingRule) IsValid() bool {
	return r == RoundingHalfUp || r == RoundingBankers
}

// Apply rounds the amount to whole currency units under this rule.
// Unknown rules fall back to half-up.
func (r RoundingRule) Apply(amount decimal.Decimal) decimal.Decimal {
	if r == RoundingBankers {
		return amount.RoundBank(0)
	}
	return amount.Round(0)
}

// ProductIDSet is a set of product IDs stored as a JSON array
type ProductIDSet []uuid.UUID

// Contains reports whether the set includes the given product
func (s ProductIDSet) Contains(productID uuid.UUID) bool {
	for _, id := range s {
		if id == productID {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for JSONB storage
func (s ProductIDSet) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]uuid.UUID{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB storage
func (s *ProductIDSet) Scan(value any) error {
	if value == nil {
		*s = ProductIDSet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("cannot scan non-string value into ProductIDSet")
	}
	return json.Unmarshal(data, s)
}

// SSPPolicy is the per-tenant allocation policy. One row per tenant,
// replaced wholesale on write.
type SSPPolicy struct {
	shared.TenantAggregateRoot
	RoundingRule             RoundingRule    `gorm:"type:varchar(20);not null"`
	ResidualAllowed          bool            `gorm:"not null;default:false"`
	ResidualEligibleProducts ProductIDSet    `gorm:"type:jsonb"`
	DefaultMethod            PricingMethod   `gorm:"type:varchar(30);not null"`
	CorridorTolerancePct     decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	AlertThresholdPct        decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
}

// NewSSPPolicy creates a policy for the tenant
func NewSSPPolicy(tenantID uuid.UUID, rounding RoundingRule, residualAllowed bool, residualProducts ProductIDSet, defaultMethod PricingMethod, corridorTolerancePct, alertThresholdPct decimal.Decimal) (*SSPPolicy, error) {
	if !rounding.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid rounding rule: %s", rounding))
	}
	if !defaultMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid pricing method: %s", defaultMethod))
	}
	if corridorTolerancePct.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Corridor tolerance cannot be negative")
	}
	return &SSPPolicy{
		TenantAggregateRoot:      shared.NewTenantAggregateRoot(tenantID),
		RoundingRule:             rounding,
		ResidualAllowed:          residualAllowed,
		ResidualEligibleProducts: residualProducts,
		DefaultMethod:            defaultMethod,
		CorridorTolerancePct:     corridorTolerancePct,
		AlertThresholdPct:        alertThresholdPct,
	}, nil
}

func (SSPPolicy) TableName() string {
	return "ssp_policies"
}

// IsResidualEligible reports whether the product may absorb residual amounts
func (p *SSPPolicy) IsResidualEligible(productID uuid.UUID) bool {
	return p.ResidualEligibleProducts.Contains(productID)
}

// CorridorResult is the outcome of a corridor compliance check
type CorridorResult struct {
	Compliant bool
	MedianSSP *decimal.Decimal
	Variance  *decimal.Decimal
}

// CheckCorridor compares a candidate SSP against the median of historical
// approved SSPs for the currency. With no history the check passes.
func (p *SSPPolicy) CheckCorridor(candidate decimal.Decimal, approvedSSPs []decimal.Decimal) CorridorResult {
	if len(approvedSSPs) == 0 {
		return CorridorResult{Compliant: true}
	}
	median := medianDecimal(approvedSSPs)
	if median.IsZero() {
		return CorridorResult{Compliant: true, MedianSSP: &median}
	}
	variance := candidate.Sub(median).Abs().Div(median)
	compliant := variance.LessThanOrEqual(p.CorridorTolerancePct)
	return CorridorResult{Compliant: compliant, MedianSSP: &median, Variance: &variance}
}

func medianDecimal(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// ChangeRequestStatus represents the lifecycle of an SSP change request
type ChangeRequestStatus string

const (
	ChangeRequestStatusDraft    ChangeRequestStatus = "DRAFT"
	ChangeRequestStatusApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestStatusRejected ChangeRequestStatus = "REJECTED"
)

// IsValid checks if the status is a valid ChangeRequestStatus
func (s ChangeRequestStatus) IsValid() bool {
	switch s {
	case ChangeRequestStatusDraft, ChangeRequestStatusApproved, ChangeRequestStatusRejected:
		return true
	}
	return false
}

// SSPDiff is the structured payload of an SSP change request: the affected
// products and their proposed new SSP values.
type SSPDiff struct {
	AffectedProducts []uuid.UUID                `json:"affected_products"`
	NewSSPValues     map[string]decimal.Decimal `json:"new_ssp_values"` // keyed by product ID string
}

// NewSSPFor returns the proposed SSP for a product, if any
func (d SSPDiff) NewSSPFor(productID uuid.UUID) (decimal.Decimal, bool) {
	v, ok := d.NewSSPValues[productID.String()]
	return v, ok
}

// Value implements driver.Valuer for JSONB storage
func (d SSPDiff) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB storage
func (d *SSPDiff) Scan(value any) error {
	if value == nil {
		*d = SSPDiff{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("cannot scan non-string value into SSPDiff")
	}
	return json.Unmarshal(data, d)
}

// SSPChangeRequest records a proposed SSP change awaiting a decision.
// Approval does not itself mutate the catalog; the approved request is the
// trigger payload for prospective reallocation against open POBs.
type SSPChangeRequest struct {
	shared.TenantAggregateRoot
	Requestor uuid.UUID           `gorm:"type:uuid;not null"`
	Reason    string              `gorm:"type:text"`
	Diff      SSPDiff             `gorm:"type:jsonb;not null"`
	Status    ChangeRequestStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DecidedBy *uuid.UUID          `gorm:"type:uuid"`
	DecidedAt *time.Time
}

// NewSSPChangeRequest creates a DRAFT change request
func NewSSPChangeRequest(tenantID, requestor uuid.UUID, reason string, diff SSPDiff) (*SSPChangeRequest, error) {
	if len(diff.AffectedProducts) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Change request must affect at least one product")
	}
	for _, productID := range diff.AffectedProducts {
		if _, ok := diff.NewSSPFor(productID); !ok {
			return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Missing new SSP value for product %s", productID))
		}
	}
	return &SSPChangeRequest{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, requestor),
		Requestor:           requestor,
		Reason:              reason,
		Diff:                diff,
		Status:              ChangeRequestStatusDraft,
	}, nil
}

func (SSPChangeRequest) TableName() string {
	return "ssp_change_requests"
}

// Decide transitions a DRAFT request to APPROVED or REJECTED, stamping the decider
func (r *SSPChangeRequest) Decide(status ChangeRequestStatus, decidedBy uuid.UUID) error {
	if r.Status != ChangeRequestStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Change request is not in DRAFT status")
	}
	if status != ChangeRequestStatusApproved && status != ChangeRequestStatusRejected {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Invalid decision status: %s", status))
	}
	now := time.Now()
	r.Status = status
	r.DecidedBy = &decidedBy
	r.DecidedAt = &now
	r.UpdatedAt = now
	if status == ChangeRequestStatusApproved {
		r.AddDomainEvent(NewSSPChangeApprovedEvent(r))
	}
	return nil
}
