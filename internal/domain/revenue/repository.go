package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
)

// Lookup methods on these interfaces return (nil, nil) when no row matches;
// callers decide whether absence is an error.

// CatalogEntryRepository defines the interface for SSP catalog persistence
type CatalogEntryRepository interface {
	// FindByIDForTenant finds a catalog entry by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*CatalogEntry, error)

	// FindOpenApproved finds the APPROVED entry with an open effective
	// interval for (tenant, product, currency)
	FindOpenApproved(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency) (*CatalogEntry, error)

	// FindEffective finds the APPROVED entry whose effective interval
	// contains asOf, most recent effective-from first
	FindEffective(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency, asOf time.Time) (*CatalogEntry, error)

	// FindApprovedByCurrency finds all APPROVED entries for a currency,
	// across products. Used for corridor median computation.
	FindApprovedByCurrency(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency) ([]CatalogEntry, error)

	// Save creates or updates a catalog entry
	Save(ctx context.Context, entry *CatalogEntry) error
}

// SSPPolicyRepository defines the interface for allocation policy persistence
type SSPPolicyRepository interface {
	// FindByTenant finds the tenant's policy
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*SSPPolicy, error)

	// Save replaces the tenant's policy wholesale
	Save(ctx context.Context, policy *SSPPolicy) error
}

// SSPChangeRequestRepository defines the interface for change request persistence
type SSPChangeRequestRepository interface {
	// FindByIDForTenant finds a change request by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SSPChangeRequest, error)

	// Save creates or updates a change request
	Save(ctx context.Context, request *SSPChangeRequest) error
}

// DiscountRuleRepository defines the interface for discount rule persistence
type DiscountRuleRepository interface {
	// FindByIDForTenant finds a rule by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*DiscountRule, error)

	// FindActiveByCode finds the active rule with the given code
	FindActiveByCode(ctx context.Context, tenantID uuid.UUID, code string) (*DiscountRule, error)

	// FindActiveAsOf finds active rules whose effective window contains
	// asOf, sorted by priority descending then creation time ascending
	FindActiveAsOf(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]DiscountRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *DiscountRule) error
}

// DiscountAppliedRepository defines the interface for discount audit rows
type DiscountAppliedRepository interface {
	// Save appends a discount application record
	Save(ctx context.Context, applied *DiscountApplied) error

	// FindByRunID finds all applications recorded for an allocation run
	FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) ([]DiscountApplied, error)
}

// BundleRepository defines the interface for bundle persistence
type BundleRepository interface {
	// FindActiveBySKU finds the active bundle with the given SKU
	FindActiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string) (*Bundle, error)

	// FindEffectiveBySKU finds the bundle whose effective window contains asOf
	FindEffectiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string, asOf time.Time) (*Bundle, error)

	// Save creates or updates a bundle together with its components
	Save(ctx context.Context, bundle *Bundle) error
}

// PerformanceObligationRepository defines the interface for POB persistence
type PerformanceObligationRepository interface {
	// FindByIDForTenant finds a POB by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PerformanceObligation, error)

	// FindByContract finds POBs for a contract
	FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) ([]PerformanceObligation, error)

	// FindOpenByProducts finds all OPEN POBs referencing any of the products
	FindOpenByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]PerformanceObligation, error)

	// Save creates or updates a POB
	Save(ctx context.Context, pob *PerformanceObligation) error

	// SaveAll creates or updates a batch of POBs
	SaveAll(ctx context.Context, pobs []*PerformanceObligation) error
}

// AllocationAuditRepository defines the interface for allocation audit rows.
// Audit rows are write-once; there is no update or delete.
type AllocationAuditRepository interface {
	// Save appends an audit record
	Save(ctx context.Context, audit *AllocationAudit) error

	// FindByRunID finds the audit record for a run
	FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) (*AllocationAudit, error)

	// FindByInvoice finds all audit records for an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]AllocationAudit, error)
}

// ChangeOrderFilter defines filtering options for change order queries
type ChangeOrderFilter struct {
	shared.Filter
	ContractID *uuid.UUID
	Status     *ChangeOrderStatus
	Type       *Treatment
	FromDate   *time.Time
	ToDate     *time.Time
}

// ChangeOrderRepository defines the interface for change order persistence
type ChangeOrderRepository interface {
	// FindByIDForTenant finds a change order with its lines
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ChangeOrder, error)

	// FindAllForTenant finds change orders with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ChangeOrderFilter) ([]ChangeOrder, error)

	// CountForTenant counts change orders matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ChangeOrderFilter) (int64, error)

	// Save creates or updates a change order together with its lines
	Save(ctx context.Context, changeOrder *ChangeOrder) error
}

// VCPolicyRepository defines the interface for VC policy persistence
type VCPolicyRepository interface {
	// FindByTenant finds the tenant's constraint policy
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*VCPolicy, error)

	// Save creates or replaces the tenant's policy
	Save(ctx context.Context, policy *VCPolicy) error
}

// VCEstimateFilter defines filtering options for VC estimate queries
type VCEstimateFilter struct {
	shared.Filter
	ContractID *uuid.UUID
	POBID      *uuid.UUID
	Status     *VCEstimateStatus
	Year       *int
	Month      *int
}

// VCEstimateRepository defines the interface for VC estimate persistence
type VCEstimateRepository interface {
	// FindByPeriod finds the estimate for the upsert key
	// (tenant, contract, pob, year, month)
	FindByPeriod(ctx context.Context, tenantID, contractID, pobID uuid.UUID, year, month int) (*VCEstimate, error)

	// FindAllForTenant finds estimates with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter VCEstimateFilter) ([]VCEstimate, error)

	// CountForTenant counts estimates matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter VCEstimateFilter) (int64, error)

	// Save creates or updates an estimate
	Save(ctx context.Context, estimate *VCEstimate) error
}

// RevisionFilter defines filtering options for schedule revision queries
type RevisionFilter struct {
	shared.Filter
	POBID    *uuid.UUID
	Cause    *RevisionCause
	FromYear *int
}

// ScheduleRevisionRepository defines the interface for revision persistence
type ScheduleRevisionRepository interface {
	// Save appends a revision record
	Save(ctx context.Context, revision *ScheduleRevision) error

	// FindAllForTenant finds revisions with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter RevisionFilter) ([]ScheduleRevision, error)

	// CountForTenant counts revisions matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter RevisionFilter) (int64, error)

	// FindByPOB finds all revisions for a POB
	FindByPOB(ctx context.Context, tenantID, pobID uuid.UUID) ([]ScheduleRevision, error)
}
