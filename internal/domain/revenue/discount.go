package revenue

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RuleKind represents the kind of discount rule
type RuleKind string

const (
	RuleKindProportional RuleKind = "PROP"     // percentage of the whole invoice
	RuleKindResidual     RuleKind = "RESIDUAL" // percentage of residual-product lines only
	RuleKindTiered       RuleKind = "TIERED"   // percentage above a total-amount threshold
	RuleKindPromotional  RuleKind = "PROMO"    // percentage inside a promo date window
	RuleKindPartner      RuleKind = "PARTNER"  // percentage for listed partner customers
)

// IsValid checks if the rule kind is valid
func (k RuleKind) IsValid() bool {
	switch k {
	case RuleKindProportional, RuleKindResidual, RuleKindTiered, RuleKindPromotional, RuleKindPartner:
		return true
	}
	return false
}

// String returns the string representation of RuleKind
func (k RuleKind) String() string {
	return string(k)
}

// RuleParams holds the kind-specific parameters of a discount rule.
// Which fields are required depends on the rule kind; Validate enforces
// the variant exhaustively so an unknown kind is a hard error.
type RuleParams struct {
	Pct              decimal.Decimal  `json:"pct"`
	Threshold        *decimal.Decimal `json:"threshold,omitempty"`         // TIERED
	StartDate        *time.Time       `json:"start_date,omitempty"`        // PROMO
	EndDate          *time.Time       `json:"end_date,omitempty"`          // PROMO
	PartnerCustomers []uuid.UUID      `json:"partner_customers,omitempty"` // PARTNER
	ResidualProducts ProductIDSet     `json:"residual_products,omitempty"` // RESIDUAL
}

// Validate checks the params against the requirements of the given kind
func (p RuleParams) Validate(kind RuleKind) error {
	if p.Pct.IsNegative() || p.Pct.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_INPUT", "Discount percentage must be between 0 and 1")
	}
	switch kind {
	case RuleKindProportional:
		return nil
	case RuleKindResidual:
		if len(p.ResidualProducts) == 0 {
			return shared.NewDomainError("INVALID_INPUT", "Residual rule requires a residual product list")
		}
		return nil
	case RuleKindTiered:
		if p.Threshold == nil || p.Threshold.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT", "Tiered rule requires a non-negative threshold")
		}
		return nil
	case RuleKindPromotional:
		if p.StartDate == nil || p.EndDate == nil {
			return shared.NewDomainError("INVALID_INPUT", "Promotional rule requires a start and end date")
		}
		if !p.EndDate.After(*p.StartDate) {
			return shared.NewDomainError("INVALID_INPUT", "Promotional end date must be after start date")
		}
		return nil
	case RuleKindPartner:
		if len(p.PartnerCustomers) == 0 {
			return shared.NewDomainError("INVALID_INPUT", "Partner rule requires a partner customer list")
		}
		return nil
	default:
		return shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown discount rule kind: %s", kind))
	}
}

// Value implements driver.Valuer for JSONB storage
func (p RuleParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB storage
func (p *RuleParams) Scan(value any) error {
	if value == nil {
		*p = RuleParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("cannot scan non-string value into RuleParams")
	}
	return json.Unmarshal(data, p)
}

// DiscountRule is a time-boxed, prioritized discount definition. A code is
// unique among active rules within an effective window; upserting a rule
// end-dates the prior active rule with the same code.
//
// Usage caps are tracked on the record but not enforced by eligibility
// filtering; enforcement is a boundary-layer responsibility.
type DiscountRule struct {
	shared.TenantAggregateRoot
	Kind           RuleKind         `gorm:"type:varchar(20);not null"`
	Code           string           `gorm:"type:varchar(50);not null;index:idx_discount_rule_code,priority:2"`
	Params         RuleParams       `gorm:"type:jsonb;not null"`
	Active         bool             `gorm:"not null;default:true;index"`
	EffectiveFrom  time.Time        `gorm:"not null"`
	EffectiveTo    *time.Time
	Priority       int              `gorm:"not null;default:0"`
	UsageCapCount  *int
	UsageCapAmount *decimal.Decimal `gorm:"type:decimal(18,4)"`
	UsedCount      int              `gorm:"not null;default:0"`
	UsedAmount     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
}

// NewDiscountRule creates an active discount rule
func NewDiscountRule(tenantID, createdBy uuid.UUID, kind RuleKind, code string, params RuleParams, effectiveFrom time.Time, effectiveTo *time.Time, priority int) (*DiscountRule, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown discount rule kind: %s", kind))
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Discount rule code is required")
	}
	if err := params.Validate(kind); err != nil {
		return nil, err
	}
	if effectiveTo != nil && !effectiveTo.After(effectiveFrom) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Effective-to must be after effective-from")
	}
	return &DiscountRule{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		Kind:                kind,
		Code:                code,
		Params:              params,
		Active:              true,
		EffectiveFrom:       effectiveFrom,
		EffectiveTo:         effectiveTo,
		Priority:            priority,
		UsedAmount:          decimal.Zero,
	}, nil
}

func (DiscountRule) TableName() string {
	return "discount_rules"
}

// ContainsDate reports whether asOf falls inside [EffectiveFrom, EffectiveTo)
func (r *DiscountRule) ContainsDate(asOf time.Time) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || asOf.Before(*r.EffectiveTo)
}

// EndDate deactivates the rule by closing its effective window
func (r *DiscountRule) EndDate(at time.Time) error {
	if !r.Active {
		return shared.NewDomainError("INVALID_STATE", "Discount rule is already inactive")
	}
	r.Active = false
	if at.After(r.EffectiveFrom) {
		r.EffectiveTo = &at
	}
	r.UpdatedAt = time.Now()
	return nil
}

// EligibilityContext carries the invoice facts eligibility filtering needs
type EligibilityContext struct {
	TotalAmount decimal.Decimal
	CustomerID  uuid.UUID
}

// IsEligible applies the kind-specific eligibility rule for the given date
// and invoice context. PROP and RESIDUAL rules are always eligible inside
// their window.
func (r *DiscountRule) IsEligible(asOf time.Time, ctx EligibilityContext) bool {
	if !r.Active || !r.ContainsDate(asOf) {
		return false
	}
	switch r.Kind {
	case RuleKindProportional, RuleKindResidual:
		return true
	case RuleKindTiered:
		return r.Params.Threshold != nil && ctx.TotalAmount.GreaterThanOrEqual(*r.Params.Threshold)
	case RuleKindPromotional:
		if r.Params.StartDate == nil || r.Params.EndDate == nil {
			return false
		}
		return !asOf.Before(*r.Params.StartDate) && !asOf.After(*r.Params.EndDate)
	case RuleKindPartner:
		for _, id := range r.Params.PartnerCustomers {
			if id == ctx.CustomerID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// LineAmount is the minimal invoice line view discount calculation needs
type LineAmount struct {
	ProductID uuid.UUID
	Amount    decimal.Decimal
}

// CalculateAmount computes the discount amount the rule contributes for the
// given line set and invoice total.
func (r *DiscountRule) CalculateAmount(lines []LineAmount, totalAmount decimal.Decimal) decimal.Decimal {
	switch r.Kind {
	case RuleKindProportional, RuleKindPromotional, RuleKindPartner:
		return totalAmount.Mul(r.Params.Pct)
	case RuleKindResidual:
		residualTotal := decimal.Zero
		for _, line := range lines {
			if r.Params.ResidualProducts.Contains(line.ProductID) {
				residualTotal = residualTotal.Add(line.Amount)
			}
		}
		return residualTotal.Mul(r.Params.Pct)
	case RuleKindTiered:
		if r.Params.Threshold != nil && totalAmount.GreaterThanOrEqual(*r.Params.Threshold) {
			return totalAmount.Mul(r.Params.Pct)
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// DiscountDetail is the snapshot stored with each discount application
type DiscountDetail struct {
	RuleCode    string          `json:"rule_code"`
	RuleKind    RuleKind        `json:"rule_kind"`
	Pct         decimal.Decimal `json:"pct"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Value implements driver.Valuer for JSONB storage
func (d DiscountDetail) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB storage
func (d *DiscountDetail) Scan(value any) error {
	if value == nil {
		*d = DiscountDetail{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("cannot scan non-string value into DiscountDetail")
	}
	return json.Unmarshal(data, d)
}

// DiscountApplied is the append-only audit row written once per rule
// application within an allocation run.
type DiscountApplied struct {
	shared.TenantAggregateRoot
	RuleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	RunID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Detail    DiscountDetail  `gorm:"type:jsonb;not null"`
}

// NewDiscountApplied records a single rule application
func NewDiscountApplied(tenantID, ruleID, invoiceID, runID uuid.UUID, amount decimal.Decimal, detail DiscountDetail) *DiscountApplied {
	return &DiscountApplied{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		RuleID:              ruleID,
		InvoiceID:           invoiceID,
		RunID:               runID,
		Amount:              amount,
		Detail:              detail,
	}
}

func (DiscountApplied) TableName() string {
	return "discounts_applied"
}
