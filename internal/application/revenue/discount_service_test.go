package revenue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newDiscountService(ruleRepo *MockDiscountRuleRepository, appliedRepo *MockDiscountAppliedRepository) *DiscountService {
	return NewDiscountService(ruleRepo, appliedRepo, passthroughUOW{}, newTestLogger())
}

func propRule(t *testing.T, tenantID uuid.UUID, code string, pct float64, from time.Time) *domain.DiscountRule {
	t.Helper()
	rule, err := domain.NewDiscountRule(tenantID, uuid.New(), domain.RuleKindProportional, code, domain.RuleParams{Pct: decimal.NewFromFloat(pct)}, from, nil, 0)
	assert.NoError(t, err)
	return rule
}

func TestDiscountService_UpsertRule_EndDatesSameCode(t *testing.T) {
	ruleRepo := new(MockDiscountRuleRepository)
	appliedRepo := new(MockDiscountAppliedRepository)
	service := newDiscountService(ruleRepo, appliedRepo)

	ctx := context.Background()
	tenantID := uuid.New()
	priorFrom := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newFrom := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	prior := propRule(t, tenantID, "SUMMER", 0.05, priorFrom)

	ruleRepo.On("FindActiveByCode", ctx, tenantID, "SUMMER").Return(prior, nil)
	ruleRepo.On("Save", ctx, mock.AnythingOfType("*revenue.DiscountRule")).Return(nil)

	result, err := service.UpsertRule(ctx, tenantID, uuid.New(), UpsertRuleRequest{
		Kind:          domain.RuleKindProportional,
		Code:          "SUMMER",
		Params:        domain.RuleParams{Pct: decimal.NewFromFloat(0.1)},
		EffectiveFrom: newFrom,
	})

	assert.NoError(t, err)
	assert.True(t, result.Active)
	assert.False(t, prior.Active)
	assert.NotNil(t, prior.EffectiveTo)
	assert.True(t, prior.EffectiveTo.Equal(newFrom))
	ruleRepo.AssertNumberOfCalls(t, "Save", 2)
}

func TestDiscountService_UpsertRule_RejectsInvalidParams(t *testing.T) {
	ruleRepo := new(MockDiscountRuleRepository)
	appliedRepo := new(MockDiscountAppliedRepository)
	service := newDiscountService(ruleRepo, appliedRepo)

	_, err := service.UpsertRule(context.Background(), uuid.New(), uuid.New(), UpsertRuleRequest{
		Kind:          domain.RuleKindTiered,
		Code:          "BIGDEAL",
		Params:        domain.RuleParams{Pct: decimal.NewFromFloat(0.1)}, // missing threshold
		EffectiveFrom: time.Now(),
	})

	assert.Error(t, err)
	ruleRepo.AssertNotCalled(t, "Save")
}

func TestDiscountService_ComputeDiscounts_StacksEligibleRules(t *testing.T) {
	ruleRepo := new(MockDiscountRuleRepository)
	appliedRepo := new(MockDiscountAppliedRepository)
	service := newDiscountService(ruleRepo, appliedRepo)

	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	threshold := decimal.NewFromInt(1000)
	tiered, err := domain.NewDiscountRule(tenantID, uuid.New(), domain.RuleKindTiered, "VOLUME",
		domain.RuleParams{Pct: decimal.NewFromFloat(0.05), Threshold: &threshold}, from, nil, 10)
	assert.NoError(t, err)
	prop := propRule(t, tenantID, "BASE", 0.1, from)

	ruleRepo.On("FindActiveAsOf", ctx, tenantID, asOf).Return([]domain.DiscountRule{*tiered, *prop}, nil)

	total := decimal.NewFromInt(2000)
	result, err := service.ComputeDiscounts(ctx, tenantID, asOf, uuid.New(), nil, total)

	assert.NoError(t, err)
	// 5% tiered + 10% proportional on 2000
	assert.True(t, result.TotalDiscount.Equal(decimal.NewFromInt(300)), "got %s", result.TotalDiscount)
	assert.Len(t, result.Applied, 2)
}

func TestDiscountService_ComputeDiscounts_SkipsIneligibleRules(t *testing.T) {
	ruleRepo := new(MockDiscountRuleRepository)
	appliedRepo := new(MockDiscountAppliedRepository)
	service := newDiscountService(ruleRepo, appliedRepo)

	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	threshold := decimal.NewFromInt(5000)
	tiered, err := domain.NewDiscountRule(tenantID, uuid.New(), domain.RuleKindTiered, "VOLUME",
		domain.RuleParams{Pct: decimal.NewFromFloat(0.05), Threshold: &threshold}, from, nil, 0)
	assert.NoError(t, err)
	partner, err := domain.NewDiscountRule(tenantID, uuid.New(), domain.RuleKindPartner, "PARTNER",
		domain.RuleParams{Pct: decimal.NewFromFloat(0.2), PartnerCustomers: []uuid.UUID{uuid.New()}}, from, nil, 0)
	assert.NoError(t, err)

	ruleRepo.On("FindActiveAsOf", ctx, tenantID, asOf).Return([]domain.DiscountRule{*tiered, *partner}, nil)

	// below the tier threshold, not a listed partner
	result, err := service.ComputeDiscounts(ctx, tenantID, asOf, uuid.New(), nil, decimal.NewFromInt(2000))

	assert.NoError(t, err)
	assert.True(t, result.TotalDiscount.IsZero())
	assert.Empty(t, result.Applied)
}

func TestDiscountService_RecordApplications_AppendsPerRule(t *testing.T) {
	ruleRepo := new(MockDiscountRuleRepository)
	appliedRepo := new(MockDiscountAppliedRepository)
	service := newDiscountService(ruleRepo, appliedRepo)

	ctx := context.Background()
	tenantID := uuid.New()
	applied := []AppliedDiscount{
		{RuleID: uuid.New(), RuleCode: "A", Amount: decimal.NewFromInt(10)},
		{RuleID: uuid.New(), RuleCode: "B", Amount: decimal.NewFromInt(20)},
	}

	appliedRepo.On("Save", ctx, mock.AnythingOfType("*revenue.DiscountApplied")).Return(nil)

	err := service.RecordApplications(ctx, tenantID, uuid.New(), uuid.New(), applied)

	assert.NoError(t, err)
	appliedRepo.AssertNumberOfCalls(t, "Save", 2)
}
