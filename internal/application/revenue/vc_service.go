package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VCService provides variable-consideration policy and estimate operations
type VCService struct {
	policyRepo   domain.VCPolicyRepository
	estimateRepo domain.VCEstimateRepository
	revisionRepo domain.ScheduleRevisionRepository
	uow          shared.UnitOfWork
	logger       *zap.Logger
}

// NewVCService creates a new VCService
func NewVCService(
	policyRepo domain.VCPolicyRepository,
	estimateRepo domain.VCEstimateRepository,
	revisionRepo domain.ScheduleRevisionRepository,
	uow shared.UnitOfWork,
	logger *zap.Logger,
) *VCService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VCService{
		policyRepo:   policyRepo,
		estimateRepo: estimateRepo,
		revisionRepo: revisionRepo,
		uow:          uow,
		logger:       logger,
	}
}

// VCPolicyResponse represents the constraint policy in API responses
type VCPolicyResponse struct {
	DefaultMethod                  string          `json:"default_method"`
	ConstraintProbabilityThreshold decimal.Decimal `json:"constraint_probability_threshold"`
	VolatilityLookbackMonths       int             `json:"volatility_lookback_months"`
}

func toVCPolicyResponse(p *domain.VCPolicy) *VCPolicyResponse {
	return &VCPolicyResponse{
		DefaultMethod:                  p.DefaultMethod.String(),
		ConstraintProbabilityThreshold: p.ConstraintProbabilityThreshold,
		VolatilityLookbackMonths:       p.VolatilityLookbackMonths,
	}
}

// UpsertVCPolicyRequest is the payload for replacing the constraint policy
type UpsertVCPolicyRequest struct {
	DefaultMethod                  domain.VCMethod `json:"default_method"`
	ConstraintProbabilityThreshold decimal.Decimal `json:"constraint_probability_threshold"`
	VolatilityLookbackMonths       int             `json:"volatility_lookback_months"`
}

// UpsertPolicy replaces the tenant's constraint policy wholesale
func (s *VCService) UpsertPolicy(ctx context.Context, tenantID uuid.UUID, req UpsertVCPolicyRequest) (*VCPolicyResponse, error) {
	policy, err := domain.NewVCPolicy(tenantID, req.DefaultMethod, req.ConstraintProbabilityThreshold, req.VolatilityLookbackMonths)
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
	return toVCPolicyResponse(policy), nil
}

// GetPolicy returns the tenant's constraint policy, or nil when unconfigured
func (s *VCService) GetPolicy(ctx context.Context, tenantID uuid.UUID) (*VCPolicyResponse, error) {
	policy, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, nil
	}
	return toVCPolicyResponse(policy), nil
}

// VCEstimateResponse represents an estimate in API responses
type VCEstimateResponse struct {
	ID                uuid.UUID       `json:"id"`
	ContractID        uuid.UUID       `json:"contract_id"`
	POBID             uuid.UUID       `json:"pob_id"`
	Year              int             `json:"year"`
	Month             int             `json:"month"`
	Method            string          `json:"method"`
	RawEstimate       decimal.Decimal `json:"raw_estimate"`
	ConstrainedAmount decimal.Decimal `json:"constrained_amount"`
	Confidence        decimal.Decimal `json:"confidence"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toVCEstimateResponse(e *domain.VCEstimate) *VCEstimateResponse {
	return &VCEstimateResponse{
		ID:                e.ID,
		ContractID:        e.ContractID,
		POBID:             e.POBID,
		Year:              e.Year,
		Month:             e.Month,
		Method:            e.Method.String(),
		RawEstimate:       e.RawEstimate,
		ConstrainedAmount: e.ConstrainedAmount,
		Confidence:        e.Confidence,
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt,
	}
}

// UpsertEstimateRequest is the payload for submitting an estimate for a period
type UpsertEstimateRequest struct {
	ContractID  uuid.UUID       `json:"contract_id"`
	POBID       uuid.UUID       `json:"pob_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Method      domain.VCMethod `json:"method"` // empty = policy default
	RawEstimate decimal.Decimal `json:"raw_estimate"`
	Confidence  decimal.Decimal `json:"confidence"`
	Resolve     bool            `json:"resolve"`
}

// UpsertEstimate creates or revises the estimate for (contract, pob, year,
// month), applying the constraint rule with the tenant's threshold. Without
// a policy the default 0.5 threshold still constrains. A revision that
// changes the constrained amount writes a schedule revision delta.
func (s *VCService) UpsertEstimate(ctx context.Context, tenantID, userID uuid.UUID, req UpsertEstimateRequest) (*VCEstimateResponse, error) {
	if req.Confidence.IsNegative() || req.Confidence.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Confidence must be between 0 and 1")
	}

	threshold := domain.DefaultConstraintThreshold
	method := req.Method
	policy, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		threshold = policy.ConstraintProbabilityThreshold
		if method == "" {
			method = policy.DefaultMethod
		}
	}
	if method == "" {
		method = domain.VCMethodExpectedValue
	}

	var estimate *domain.VCEstimate
	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		existing, err := s.estimateRepo.FindByPeriod(ctx, tenantID, req.ContractID, req.POBID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if existing == nil {
			estimate, err = domain.NewVCEstimate(tenantID, userID, req.ContractID, req.POBID, req.Year, req.Month, method, req.RawEstimate, req.Confidence, threshold, req.Resolve)
			if err != nil {
				return err
			}
			return s.estimateRepo.Save(ctx, estimate)
		}

		before := existing.ConstrainedAmount
		if err := existing.Revise(method, req.RawEstimate, req.Confidence, threshold, req.Resolve); err != nil {
			return err
		}
		if err := s.estimateRepo.Save(ctx, existing); err != nil {
			return err
		}
		if !before.Equal(existing.ConstrainedAmount) {
			revision, err := domain.NewScheduleRevision(tenantID, req.POBID, req.Year, req.Month, before, existing.ConstrainedAmount, domain.RevisionCauseVCEstimate)
			if err != nil {
				return err
			}
			estimateID := existing.ID
			revision.VCEstimateID = &estimateID
			if err := s.revisionRepo.Save(ctx, revision); err != nil {
				return err
			}
		}
		estimate = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vc estimate upserted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("pob_id", req.POBID.String()),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.String("constrained", estimate.ConstrainedAmount.String()))
	return toVCEstimateResponse(estimate), nil
}

// ListEstimates returns estimates matching the filter with pagination
func (s *VCService) ListEstimates(ctx context.Context, tenantID uuid.UUID, filter domain.VCEstimateFilter) (*shared.Paginated[*VCEstimateResponse], error) {
	estimates, err := s.estimateRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.estimateRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]*VCEstimateResponse, len(estimates))
	for i := range estimates {
		responses[i] = toVCEstimateResponse(&estimates[i])
	}
	page := shared.NewPaginated(responses, total, filter.Page, filter.PageSize)
	return &page, nil
}
