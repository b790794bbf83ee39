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

// DiscountService provides application-level discount rule operations
type DiscountService struct {
	ruleRepo    domain.DiscountRuleRepository
	appliedRepo domain.DiscountAppliedRepository
	uow         shared.UnitOfWork
	logger      *zap.Logger
}

// NewDiscountService creates a new DiscountService
func NewDiscountService(
	ruleRepo domain.DiscountRuleRepository,
	appliedRepo domain.DiscountAppliedRepository,
	uow shared.UnitOfWork,
	logger *zap.Logger,
) *DiscountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{
		ruleRepo:    ruleRepo,
		appliedRepo: appliedRepo,
		uow:         uow,
		logger:      logger,
	}
}

// DiscountRuleResponse represents a discount rule in API responses
type DiscountRuleResponse struct {
	ID            uuid.UUID         `json:"id"`
	Kind          string            `json:"kind"`
	Code          string            `json:"code"`
	Params        domain.RuleParams `json:"params"`
	Active        bool              `json:"active"`
	EffectiveFrom time.Time         `json:"effective_from"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
	Priority      int               `json:"priority"`
	UsedCount     int               `json:"used_count"`
	UsedAmount    decimal.Decimal   `json:"used_amount"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toDiscountRuleResponse(r *domain.DiscountRule) *DiscountRuleResponse {
	return &DiscountRuleResponse{
		ID:            r.ID,
		Kind:          r.Kind.String(),
		Code:          r.Code,
		Params:        r.Params,
		Active:        r.Active,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		Priority:      r.Priority,
		UsedCount:     r.UsedCount,
		UsedAmount:    r.UsedAmount,
		CreatedAt:     r.CreatedAt,
	}
}

// UpsertRuleRequest is the payload for creating or replacing a discount rule
type UpsertRuleRequest struct {
	Kind          domain.RuleKind   `json:"kind"`
	Code          string            `json:"code"`
	Params        domain.RuleParams `json:"params"`
	EffectiveFrom time.Time         `json:"effective_from"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
	Priority      int               `json:"priority"`
}

// UpsertRule end-dates any active rule with the same code at the new rule's
// effective-from and inserts the replacement. Rule codes stay unique among
// active rules this way.
func (s *DiscountService) UpsertRule(ctx context.Context, tenantID, userID uuid.UUID, req UpsertRuleRequest) (*DiscountRuleResponse, error) {
	rule, err := domain.NewDiscountRule(tenantID, userID, req.Kind, req.Code, req.Params, req.EffectiveFrom, req.EffectiveTo, req.Priority)
	if err != nil {
		return nil, err
	}

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		prior, err := s.ruleRepo.FindActiveByCode(ctx, tenantID, req.Code)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := prior.EndDate(req.EffectiveFrom); err != nil {
				return err
			}
			if err := s.ruleRepo.Save(ctx, prior); err != nil {
				return err
			}
		}
		return s.ruleRepo.Save(ctx, rule)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("discount rule upserted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("code", req.Code),
		zap.String("kind", req.Kind.String()))
	return toDiscountRuleResponse(rule), nil
}

// DeactivateRule end-dates an active rule immediately
func (s *DiscountService) DeactivateRule(ctx context.Context, tenantID, ruleID uuid.UUID) (*DiscountRuleResponse, error) {
	rule, err := s.ruleRepo.FindByIDForTenant(ctx, tenantID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Discount rule not found")
	}
	if err := rule.EndDate(time.Now()); err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}
	return toDiscountRuleResponse(rule), nil
}

// GetActiveRules returns the active rules whose windows contain asOf, sorted
// by priority descending then creation order.
func (s *DiscountService) GetActiveRules(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*DiscountRuleResponse, error) {
	rules, err := s.ruleRepo.FindActiveAsOf(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	responses := make([]*DiscountRuleResponse, len(rules))
	for i := range rules {
		responses[i] = toDiscountRuleResponse(&rules[i])
	}
	return responses, nil
}

// AppliedDiscount is one rule's contribution within a computation
type AppliedDiscount struct {
	RuleID   uuid.UUID             `json:"rule_id"`
	RuleCode string                `json:"rule_code"`
	RuleKind string                `json:"rule_kind"`
	Amount   decimal.Decimal       `json:"amount"`
	Detail   domain.DiscountDetail `json:"detail"`
}

// DiscountComputation is the outcome of evaluating all eligible rules
type DiscountComputation struct {
	TotalDiscount decimal.Decimal   `json:"total_discount"`
	Applied       []AppliedDiscount `json:"applied"`
}

// ComputeDiscounts evaluates every eligible active rule against the invoice
// lines in priority order and sums their contributions. Discounts stack; the
// sum is not capped at the invoice total here, the caller floors net at zero.
func (s *DiscountService) ComputeDiscounts(ctx context.Context, tenantID uuid.UUID, asOf time.Time, customerID uuid.UUID, lines []domain.LineAmount, totalAmount decimal.Decimal) (*DiscountComputation, error) {
	rules, err := s.ruleRepo.FindActiveAsOf(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	eligibility := domain.EligibilityContext{TotalAmount: totalAmount, CustomerID: customerID}
	computation := &DiscountComputation{TotalDiscount: decimal.Zero, Applied: make([]AppliedDiscount, 0)}
	for i := range rules {
		rule := &rules[i]
		if !rule.IsEligible(asOf, eligibility) {
			continue
		}
		amount := rule.CalculateAmount(lines, totalAmount)
		if amount.IsZero() {
			continue
		}
		computation.TotalDiscount = computation.TotalDiscount.Add(amount)
		computation.Applied = append(computation.Applied, AppliedDiscount{
			RuleID:   rule.ID,
			RuleCode: rule.Code,
			RuleKind: rule.Kind.String(),
			Amount:   amount,
			Detail: domain.DiscountDetail{
				RuleCode:    rule.Code,
				RuleKind:    rule.Kind,
				Pct:         rule.Params.Pct,
				TotalAmount: totalAmount,
			},
		})
	}
	return computation, nil
}

// RecordApplications persists one DiscountApplied row per applied rule for
// the given allocation run. Rows are append-only.
func (s *DiscountService) RecordApplications(ctx context.Context, tenantID, invoiceID, runID uuid.UUID, applied []AppliedDiscount) error {
	for _, app := range applied {
		record := domain.NewDiscountApplied(tenantID, app.RuleID, invoiceID, runID, app.Amount, app.Detail)
		if err := s.appliedRepo.Save(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
