package revenue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type modificationFixture struct {
	changeOrderRepo *MockChangeOrderRepository
	pobRepo         *MockPerformanceObligationRepository
	revisionRepo    *MockScheduleRevisionRepository
	scheduleBuilder *MockScheduleBuilder
	recognition     *MockRecognitionRunner
	service         *ModificationService
}

func newModificationFixture() *modificationFixture {
	f := &modificationFixture{
		changeOrderRepo: new(MockChangeOrderRepository),
		pobRepo:         new(MockPerformanceObligationRepository),
		revisionRepo:    new(MockScheduleRevisionRepository),
		scheduleBuilder: new(MockScheduleBuilder),
		recognition:     new(MockRecognitionRunner),
	}
	f.service = NewModificationService(f.changeOrderRepo, f.pobRepo, f.revisionRepo,
		f.scheduleBuilder, f.recognition, passthroughUOW{}, newTestLogger())
	return f
}

func draftChangeOrder(t *testing.T, tenantID uuid.UUID, lines []domain.ChangeLineInput) *domain.ChangeOrder {
	t.Helper()
	co, err := domain.NewChangeOrder(tenantID, uuid.New(), uuid.New(),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "expansion", lines)
	require.NoError(t, err)
	return co
}

func TestModificationService_CreateChangeOrder(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	pobID := uuid.New()

	f.changeOrderRepo.On("Save", ctx, mock.AnythingOfType("*revenue.ChangeOrder")).Return(nil)

	result, err := f.service.CreateChangeOrder(ctx, tenantID, uuid.New(), CreateChangeOrderRequest{
		ContractID:    uuid.New(),
		EffectiveDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Reason:        "expansion",
		Lines:         []domain.ChangeLineInput{{POBID: &pobID, PriceDelta: decimal.NewFromInt(500)}},
	})

	require.NoError(t, err)
	assert.Equal(t, "DRAFT", result.Status)
	assert.Equal(t, "DRAFT", result.Type)
	assert.Len(t, result.Lines, 1)
}

func TestModificationService_CreateChangeOrder_RequiresLineReference(t *testing.T) {
	f := newModificationFixture()

	_, err := f.service.CreateChangeOrder(context.Background(), uuid.New(), uuid.New(), CreateChangeOrderRequest{
		ContractID:    uuid.New(),
		EffectiveDate: time.Now(),
		Lines:         []domain.ChangeLineInput{{PriceDelta: decimal.NewFromInt(500)}},
	})

	assert.Error(t, err)
	f.changeOrderRepo.AssertNotCalled(t, "Save")
}

func TestModificationService_ApplyChangeOrder_TerminationNewNotImplemented(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()

	_, err := f.service.ApplyChangeOrder(ctx, uuid.New(), uuid.New(), uuid.New(), domain.TreatmentTerminationNew)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_IMPLEMENTED", domainErr.Code)
	f.changeOrderRepo.AssertNotCalled(t, "FindByIDForTenant")
}

func TestModificationService_ApplyChangeOrder_SecondApplyFails(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	pobID := uuid.New()
	co := draftChangeOrder(t, tenantID, []domain.ChangeLineInput{{POBID: &pobID, PriceDelta: decimal.NewFromInt(100)}})
	require.NoError(t, co.Apply(domain.TreatmentProspective, uuid.New()))

	f.changeOrderRepo.On("FindByIDForTenant", ctx, tenantID, co.ID).Return(co, nil)

	_, err := f.service.ApplyChangeOrder(ctx, tenantID, uuid.New(), co.ID, domain.TreatmentProspective)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in DRAFT status")
	f.changeOrderRepo.AssertNotCalled(t, "Save")
}

func TestModificationService_ApplyChangeOrder_Prospective(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()

	pob, err := domain.NewPerformanceObligation(tenantID, uuid.New(), uuid.New(), uuid.New(), "licenses",
		domain.RecognitionRatableMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(10), decimal.NewFromInt(1200), valueobject.USD)
	require.NoError(t, err)
	pobID := pob.ID

	co := draftChangeOrder(t, tenantID, []domain.ChangeLineInput{
		{POBID: &pobID, QtyDelta: decimal.NewFromInt(5), PriceDelta: decimal.NewFromInt(600)},
	})

	f.changeOrderRepo.On("FindByIDForTenant", ctx, tenantID, co.ID).Return(co, nil)
	f.changeOrderRepo.On("Save", ctx, co).Return(nil)
	f.pobRepo.On("FindByIDForTenant", ctx, tenantID, pobID).Return(pob, nil)
	f.pobRepo.On("SaveAll", ctx, mock.Anything).Return(nil)

	var revision *domain.ScheduleRevision
	f.revisionRepo.On("Save", ctx, mock.AnythingOfType("*revenue.ScheduleRevision")).Run(func(args mock.Arguments) {
		revision = args.Get(1).(*domain.ScheduleRevision)
	}).Return(nil)
	// the rebuild must start at the effective date, not the POB inception
	effectiveDate := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	f.scheduleBuilder.On("Rebuild", ctx, tenantID, mock.MatchedBy(func(req RebuildRequest) bool {
		return req.POBID == pobID && !req.CatchUp && req.StartDate.Equal(effectiveDate)
	})).Return(nil)

	result, err := f.service.ApplyChangeOrder(ctx, tenantID, uuid.New(), co.ID, domain.TreatmentProspective)

	require.NoError(t, err)
	assert.Equal(t, "APPLIED", result.Status)
	assert.Equal(t, "PROSPECTIVE", result.Type)
	assert.True(t, pob.AllocatedAmount.Equal(decimal.NewFromInt(1800)))
	assert.True(t, pob.Qty.Equal(decimal.NewFromInt(15)))

	require.NotNil(t, revision)
	assert.Equal(t, domain.RevisionCauseChangeOrder, revision.Cause)
	// prospective revisions start at the effective date, not the POB start
	assert.Equal(t, 2025, revision.FromYear)
	assert.Equal(t, 4, revision.FromMonth)
	assert.True(t, revision.PlannedBefore.Equal(decimal.NewFromInt(1200)))
	assert.True(t, revision.PlannedAfter.Equal(decimal.NewFromInt(1800)))
}

func TestModificationService_ApplyChangeOrder_RetrospectiveCatchesUp(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()

	pob, err := domain.NewPerformanceObligation(tenantID, uuid.New(), uuid.New(), uuid.New(), "support",
		domain.RecognitionRatableMonthly, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(1), decimal.NewFromInt(2400), valueobject.USD)
	require.NoError(t, err)
	pobID := pob.ID

	co := draftChangeOrder(t, tenantID, []domain.ChangeLineInput{
		{POBID: &pobID, PriceDelta: decimal.NewFromInt(-400)},
	})

	f.changeOrderRepo.On("FindByIDForTenant", ctx, tenantID, co.ID).Return(co, nil)
	f.changeOrderRepo.On("Save", ctx, co).Return(nil)
	f.pobRepo.On("FindByIDForTenant", ctx, tenantID, pobID).Return(pob, nil)
	f.pobRepo.On("SaveAll", ctx, mock.Anything).Return(nil)

	var revision *domain.ScheduleRevision
	f.revisionRepo.On("Save", ctx, mock.AnythingOfType("*revenue.ScheduleRevision")).Run(func(args mock.Arguments) {
		revision = args.Get(1).(*domain.ScheduleRevision)
	}).Return(nil)
	f.scheduleBuilder.On("Rebuild", ctx, tenantID, mock.MatchedBy(func(req RebuildRequest) bool {
		return req.CatchUp && req.StartDate.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	})).Return(nil)

	_, err = f.service.ApplyChangeOrder(ctx, tenantID, uuid.New(), co.ID, domain.TreatmentRetrospective)

	require.NoError(t, err)
	require.NotNil(t, revision)
	// retrospective revisions reach back to the POB start period
	assert.Equal(t, 2024, revision.FromYear)
	assert.Equal(t, 7, revision.FromMonth)
	assert.True(t, pob.AllocatedAmount.Equal(decimal.NewFromInt(2000)))
}

func TestModificationService_ApplyChangeOrder_SeparateCreatesPOBs(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	productID := uuid.New()

	existing, err := domain.NewPerformanceObligation(tenantID, uuid.New(), uuid.New(), uuid.New(), "base",
		domain.RecognitionRatableMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(1), decimal.NewFromInt(1000), valueobject.USD)
	require.NoError(t, err)

	co := draftChangeOrder(t, tenantID, []domain.ChangeLineInput{
		{ProductID: &productID, QtyDelta: decimal.NewFromInt(2), PriceDelta: decimal.NewFromInt(800)},
	})

	f.changeOrderRepo.On("FindByIDForTenant", ctx, tenantID, co.ID).Return(co, nil)
	f.changeOrderRepo.On("Save", ctx, co).Return(nil)
	f.pobRepo.On("FindByContract", ctx, tenantID, co.ContractID, mock.Anything).Return([]domain.PerformanceObligation{*existing}, nil)

	var saved []*domain.PerformanceObligation
	f.pobRepo.On("SaveAll", ctx, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).([]*domain.PerformanceObligation)
	}).Return(nil)
	f.scheduleBuilder.On("Rebuild", ctx, tenantID, mock.AnythingOfType("revenue.RebuildRequest")).Return(nil)

	result, err := f.service.ApplyChangeOrder(ctx, tenantID, uuid.New(), co.ID, domain.TreatmentSeparate)

	require.NoError(t, err)
	assert.Equal(t, "SEPARATE", result.Type)
	require.Len(t, saved, 1)
	assert.Equal(t, productID, saved[0].ProductID)
	assert.True(t, saved[0].AllocatedAmount.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, valueobject.USD, saved[0].Currency)
	assert.True(t, saved[0].IsOpen())
}

func TestModificationService_ApplyChangeOrder_SideEffectFailureLeavesApplied(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	pobID := uuid.New()

	co := draftChangeOrder(t, tenantID, []domain.ChangeLineInput{
		{POBID: &pobID, PriceDelta: decimal.NewFromInt(100)},
	})

	f.changeOrderRepo.On("FindByIDForTenant", ctx, tenantID, co.ID).Return(co, nil)
	f.changeOrderRepo.On("Save", ctx, co).Return(nil)
	f.pobRepo.On("FindByIDForTenant", ctx, tenantID, pobID).Return(nil, nil)

	_, err := f.service.ApplyChangeOrder(ctx, tenantID, uuid.New(), co.ID, domain.TreatmentProspective)

	require.Error(t, err)
	// the status transition was persisted before the treatment failed
	assert.True(t, co.IsApplied())
}

func TestModificationService_RunRevisedRecognition_NeverErrors(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	req := RecognitionRequest{Year: 2025, Month: 3}

	f.recognition.On("Run", ctx, tenantID, req).Return("", shared.NewDomainError("INVALID_STATE", "period is locked"))

	result := f.service.RunRevisedRecognition(ctx, tenantID, req)

	assert.False(t, result.Success)
	assert.Equal(t, "period is locked", result.Message)
	assert.Empty(t, result.RunID)
}

func TestModificationService_RunRevisedRecognition_Success(t *testing.T) {
	f := newModificationFixture()
	ctx := context.Background()
	tenantID := uuid.New()
	req := RecognitionRequest{Year: 2025, Month: 3, DryRun: true}

	f.recognition.On("Run", ctx, tenantID, req).Return("run-42", nil)

	result := f.service.RunRevisedRecognition(ctx, tenantID, req)

	assert.True(t, result.Success)
	assert.Equal(t, "run-42", result.RunID)
}
