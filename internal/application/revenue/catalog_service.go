package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService provides application-level SSP catalog and policy operations
type CatalogService struct {
	catalogRepo       domain.CatalogEntryRepository
	policyRepo        domain.SSPPolicyRepository
	changeRequestRepo domain.SSPChangeRequestRepository
	uow               shared.UnitOfWork
	logger            *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	catalogRepo domain.CatalogEntryRepository,
	policyRepo domain.SSPPolicyRepository,
	changeRequestRepo domain.SSPChangeRequestRepository,
	uow shared.UnitOfWork,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		catalogRepo:       catalogRepo,
		policyRepo:        policyRepo,
		changeRequestRepo: changeRequestRepo,
		uow:               uow,
		logger:            logger,
	}
}

// CatalogEntryResponse represents a catalog entry in API responses
type CatalogEntryResponse struct {
	ID             uuid.UUID            `json:"id"`
	ProductID      uuid.UUID            `json:"product_id"`
	Currency       valueobject.Currency `json:"currency"`
	SSP            decimal.Decimal      `json:"ssp"`
	Method         string               `json:"method"`
	EffectiveFrom  time.Time            `json:"effective_from"`
	EffectiveTo    *time.Time           `json:"effective_to,omitempty"`
	CorridorMinPct *decimal.Decimal     `json:"corridor_min_pct,omitempty"`
	CorridorMaxPct *decimal.Decimal     `json:"corridor_max_pct,omitempty"`
	Status         string               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

func toCatalogEntryResponse(e *domain.CatalogEntry) *CatalogEntryResponse {
	return &CatalogEntryResponse{
		ID:             e.ID,
		ProductID:      e.ProductID,
		Currency:       e.Currency,
		SSP:            e.SSP,
		Method:         e.Method.String(),
		EffectiveFrom:  e.EffectiveFrom,
		EffectiveTo:    e.EffectiveTo,
		CorridorMinPct: e.CorridorMinPct,
		CorridorMaxPct: e.CorridorMaxPct,
		Status:         e.Status.String(),
		CreatedAt:      e.CreatedAt,
	}
}

// UpsertEntryRequest is the payload for creating a catalog entry
type UpsertEntryRequest struct {
	ProductID      uuid.UUID            `json:"product_id"`
	Currency       valueobject.Currency `json:"currency"`
	SSP            decimal.Decimal      `json:"ssp"`
	Method         domain.PricingMethod `json:"method"`
	EffectiveFrom  time.Time            `json:"effective_from"`
	EffectiveTo    *time.Time           `json:"effective_to,omitempty"`
	CorridorMinPct *decimal.Decimal     `json:"corridor_min_pct,omitempty"`
	CorridorMaxPct *decimal.Decimal     `json:"corridor_max_pct,omitempty"`
}

// UpsertEntry end-dates any APPROVED open-interval entry for the same
// (product, currency) at the new entry's effective-from, then inserts a new
// DRAFT entry. It never auto-approves.
func (s *CatalogService) UpsertEntry(ctx context.Context, tenantID, userID uuid.UUID, req UpsertEntryRequest) (*CatalogEntryResponse, error) {
	entry, err := domain.NewCatalogEntry(tenantID, userID, req.ProductID, req.Currency, req.SSP, req.Method, req.EffectiveFrom, req.EffectiveTo)
	if err != nil {
		return nil, err
	}
	entry.CorridorMinPct = req.CorridorMinPct
	entry.CorridorMaxPct = req.CorridorMaxPct

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		prior, err := s.catalogRepo.FindOpenApproved(ctx, tenantID, req.ProductID, req.Currency)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := prior.EndDate(req.EffectiveFrom); err != nil {
				return err
			}
			if err := s.catalogRepo.Save(ctx, prior); err != nil {
				return err
			}
		}
		return s.catalogRepo.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ssp catalog entry created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("currency", string(req.Currency)),
		zap.String("ssp", req.SSP.String()))
	return toCatalogEntryResponse(entry), nil
}

// DecideEntry transitions a DRAFT entry to APPROVED or REJECTED
func (s *CatalogService) DecideEntry(ctx context.Context, tenantID, userID, entryID uuid.UUID, status domain.CatalogStatus) (*CatalogEntryResponse, error) {
	entry, err := s.catalogRepo.FindByIDForTenant(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Catalog entry not found")
	}
	if err := entry.Decide(status, userID); err != nil {
		return nil, err
	}
	if err := s.catalogRepo.Save(ctx, entry); err != nil {
		return nil, err
	}
	return toCatalogEntryResponse(entry), nil
}

// GetEffective returns the APPROVED entry whose effective interval contains
// asOf, or nil when none exists.
func (s *CatalogService) GetEffective(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency, asOf time.Time) (*CatalogEntryResponse, error) {
	entry, err := s.catalogRepo.FindEffective(ctx, tenantID, productID, currency, asOf)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return toCatalogEntryResponse(entry), nil
}

// CorridorComplianceResponse is the result of a corridor check
type CorridorComplianceResponse struct {
	Compliant bool             `json:"compliant"`
	MedianSSP *decimal.Decimal `json:"median_ssp,omitempty"`
	Variance  *decimal.Decimal `json:"variance,omitempty"`
}

// CheckCorridorCompliance compares a candidate SSP against the median of all
// APPROVED SSPs for the currency, across products. With no policy or no
// approved history the check passes: the corridor fails open.
func (s *CatalogService) CheckCorridorCompliance(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency, candidate decimal.Decimal) (*CorridorComplianceResponse, error) {
	policy, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return &CorridorComplianceResponse{Compliant: true}, nil
	}

	entries, err := s.catalogRepo.FindApprovedByCurrency(ctx, tenantID, currency)
	if err != nil {
		return nil, err
	}
	ssps := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		ssps[i] = e.SSP
	}

	result := policy.CheckCorridor(candidate, ssps)
	return &CorridorComplianceResponse{
		Compliant: result.Compliant,
		MedianSSP: result.MedianSSP,
		Variance:  result.Variance,
	}, nil
}

// PolicyResponse represents the allocation policy in API responses
type PolicyResponse struct {
	RoundingRule             string              `json:"rounding_rule"`
	ResidualAllowed          bool                `json:"residual_allowed"`
	ResidualEligibleProducts domain.ProductIDSet `json:"residual_eligible_products"`
	DefaultMethod            string              `json:"default_method"`
	CorridorTolerancePct     decimal.Decimal     `json:"corridor_tolerance_pct"`
	AlertThresholdPct        decimal.Decimal     `json:"alert_threshold_pct"`
}

func toPolicyResponse(p *domain.SSPPolicy) *PolicyResponse {
	return &PolicyResponse{
		RoundingRule:             string(p.RoundingRule),
		ResidualAllowed:          p.ResidualAllowed,
		ResidualEligibleProducts: p.ResidualEligibleProducts,
		DefaultMethod:            p.DefaultMethod.String(),
		CorridorTolerancePct:     p.CorridorTolerancePct,
		AlertThresholdPct:        p.AlertThresholdPct,
	}
}

// UpsertPolicyRequest is the payload for replacing the tenant policy
type UpsertPolicyRequest struct {
	RoundingRule             domain.RoundingRule  `json:"rounding_rule"`
	ResidualAllowed          bool                 `json:"residual_allowed"`
	ResidualEligibleProducts domain.ProductIDSet  `json:"residual_eligible_products"`
	DefaultMethod            domain.PricingMethod `json:"default_method"`
	CorridorTolerancePct     decimal.Decimal      `json:"corridor_tolerance_pct"`
	AlertThresholdPct        decimal.Decimal      `json:"alert_threshold_pct"`
}

// UpsertPolicy replaces the tenant's allocation policy wholesale
func (s *CatalogService) UpsertPolicy(ctx context.Context, tenantID uuid.UUID, req UpsertPolicyRequest) (*PolicyResponse, error) {
	policy, err := domain.NewSSPPolicy(tenantID, req.RoundingRule, req.ResidualAllowed, req.ResidualEligibleProducts, req.DefaultMethod, req.CorridorTolerancePct, req.AlertThresholdPct)
	if err != nil {
		return nil, err
	}
	existing, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		policy.TenantAggregateRoot = existing.TenantAggregateRoot
		policy.UpdatedAt = time.Now()
		policy.IncrementVersion()
	}
	if err := s.policyRepo.Save(ctx, policy); err != nil {
		return nil, err
	}
	return toPolicyResponse(policy), nil
}

// GetPolicy returns the tenant's policy, or nil when none is configured
func (s *CatalogService) GetPolicy(ctx context.Context, tenantID uuid.UUID) (*PolicyResponse, error) {
	policy, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, nil
	}
	return toPolicyResponse(policy), nil
}

// ChangeRequestResponse represents an SSP change request in API responses
type ChangeRequestResponse struct {
	ID        uuid.UUID      `json:"id"`
	Requestor uuid.UUID      `json:"requestor"`
	Reason    string         `json:"reason"`
	Diff      domain.SSPDiff `json:"diff"`
	Status    string         `json:"status"`
	DecidedBy *uuid.UUID     `json:"decided_by,omitempty"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toChangeRequestResponse(r *domain.SSPChangeRequest) *ChangeRequestResponse {
	return &ChangeRequestResponse{
		ID:        r.ID,
		Requestor: r.Requestor,
		Reason:    r.Reason,
		Diff:      r.Diff,
		Status:    string(r.Status),
		DecidedBy: r.DecidedBy,
		DecidedAt: r.DecidedAt,
		CreatedAt: r.CreatedAt,
	}
}

// CreateChangeRequest creates a DRAFT SSP change request
func (s *CatalogService) CreateChangeRequest(ctx context.Context, tenantID, userID uuid.UUID, reason string, diff domain.SSPDiff) (*ChangeRequestResponse, error) {
	request, err := domain.NewSSPChangeRequest(tenantID, userID, reason, diff)
	if err != nil {
		return nil, err
	}
	if err := s.changeRequestRepo.Save(ctx, request); err != nil {
		return nil, err
	}
	return toChangeRequestResponse(request), nil
}

// DecideChangeRequest approves or rejects a DRAFT change request. Approval
// does not mutate the catalog; the approved request becomes the trigger
// payload for prospective reallocation.
func (s *CatalogService) DecideChangeRequest(ctx context.Context, tenantID, userID, requestID uuid.UUID, status domain.ChangeRequestStatus) (*ChangeRequestResponse, error) {
	request, err := s.changeRequestRepo.FindByIDForTenant(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "SSP change request not found")
	}
	if err := request.Decide(status, userID); err != nil {
		return nil, err
	}
	if err := s.changeRequestRepo.Save(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("ssp change request decided",
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_id", requestID.String()),
		zap.String("status", string(status)))
	return toChangeRequestResponse(request), nil
}
