package revenue

import (
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// weightTolerance is the floating-point tolerance for the component
// weight-sum check.
var weightTolerance = decimal.NewFromFloat(1e-4)

// BundleComponent is one weighted constituent of a product bundle
type BundleComponent struct {
	shared.BaseEntity
	BundleID  uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID        `gorm:"type:uuid;not null;index"`
	WeightPct decimal.Decimal  `gorm:"type:decimal(8,4);not null"`
	Required  bool             `gorm:"not null;default:false"`
	MinQty    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MaxQty    *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

func (BundleComponent) TableName() string {
	return "bundle_components"
}

// NewBundleComponent creates a bundle component
func NewBundleComponent(bundleID, productID uuid.UUID, weightPct decimal.Decimal, required bool, minQty, maxQty *decimal.Decimal) (*BundleComponent, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Component product ID is required")
	}
	if weightPct.IsNegative() || weightPct.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Component weight must be between 0 and 1")
	}
	return &BundleComponent{
		BaseEntity: shared.NewBaseEntity(),
		BundleID:   bundleID,
		ProductID:  productID,
		WeightPct:  weightPct,
		Required:   required,
		MinQty:     minQty,
		MaxQty:     maxQty,
	}, nil
}

// Bundle is an effective-dated product bundle. The SKU is unique among
// active bundles; upserting end-dates the prior active bundle with the
// same SKU.
type Bundle struct {
	shared.TenantAggregateRoot
	BundleSKU     string            `gorm:"type:varchar(50);not null;index:idx_bundle_sku,priority:2"`
	Name          string            `gorm:"type:varchar(200);not null"`
	Active        bool              `gorm:"not null;default:true;index"`
	EffectiveFrom time.Time         `gorm:"not null"`
	EffectiveTo   *time.Time
	Components    []BundleComponent `gorm:"foreignKey:BundleID"`
}

// NewBundle creates an active bundle with its components
func NewBundle(tenantID, createdBy uuid.UUID, bundleSKU, name string, effectiveFrom time.Time, effectiveTo *time.Time) (*Bundle, error) {
	if bundleSKU == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Bundle SKU is required")
	}
	if effectiveTo != nil && !effectiveTo.After(effectiveFrom) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Effective-to must be after effective-from")
	}
	return &Bundle{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		BundleSKU:           bundleSKU,
		Name:                name,
		Active:              true,
		EffectiveFrom:       effectiveFrom,
		EffectiveTo:         effectiveTo,
	}, nil
}

func (Bundle) TableName() string {
	return "bundles"
}

// AddComponent appends a component to the bundle
func (b *Bundle) AddComponent(productID uuid.UUID, weightPct decimal.Decimal, required bool, minQty, maxQty *decimal.Decimal) error {
	component, err := NewBundleComponent(b.ID, productID, weightPct, required, minQty, maxQty)
	if err != nil {
		return err
	}
	b.Components = append(b.Components, *component)
	return nil
}

// ContainsDate reports whether asOf falls inside [EffectiveFrom, EffectiveTo)
func (b *Bundle) ContainsDate(asOf time.Time) bool {
	if asOf.Before(b.EffectiveFrom) {
		return false
	}
	return b.EffectiveTo == nil || asOf.Before(*b.EffectiveTo)
}

// EndDate deactivates the bundle by closing its effective window
func (b *Bundle) EndDate(at time.Time) error {
	if !b.Active {
		return shared.NewDomainError("INVALID_STATE", "Bundle is already inactive")
	}
	b.Active = false
	if at.After(b.EffectiveFrom) {
		b.EffectiveTo = &at
	}
	b.UpdatedAt = time.Now()
	return nil
}

// ValidateWeights reports whether the component weights sum to 1.0 within
// tolerance. Advisory only: callers decide whether to persist a bundle that
// fails the check.
func ValidateWeights(components []BundleComponent) bool {
	sum := decimal.Zero
	for _, c := range components {
		sum = sum.Add(c.WeightPct)
	}
	return sum.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(weightTolerance)
}

// ComponentShare is a bundle line amount pre-allocated to one component
type ComponentShare struct {
	ProductID uuid.UUID
	Amount    decimal.Decimal
	WeightPct decimal.Decimal
}

// PreAllocate splits a bundle line's amount across the bundle's components
// by weight. The split is proportional and unrounded; rounding happens in
// the allocation engine like any other line.
func (b *Bundle) PreAllocate(lineAmount decimal.Decimal) []ComponentShare {
	shares := make([]ComponentShare, 0, len(b.Components))
	for _, c := range b.Components {
		shares = append(shares, ComponentShare{
			ProductID: c.ProductID,
			Amount:    lineAmount.Mul(c.WeightPct),
			WeightPct: c.WeightPct,
		})
	}
	return shares
}
