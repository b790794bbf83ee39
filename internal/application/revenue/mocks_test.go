package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockCatalogEntryRepository is a mock implementation of CatalogEntryRepository
type MockCatalogEntryRepository struct {
	mock.Mock
}

func (m *MockCatalogEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.CatalogEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogEntry), args.Error(1)
}

func (m *MockCatalogEntryRepository) FindOpenApproved(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency) (*domain.CatalogEntry, error) {
	args := m.Called(ctx, tenantID, productID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogEntry), args.Error(1)
}

func (m *MockCatalogEntryRepository) FindEffective(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency, asOf time.Time) (*domain.CatalogEntry, error) {
	args := m.Called(ctx, tenantID, productID, currency, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogEntry), args.Error(1)
}

func (m *MockCatalogEntryRepository) FindApprovedByCurrency(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency) ([]domain.CatalogEntry, error) {
	args := m.Called(ctx, tenantID, currency)
	return args.Get(0).([]domain.CatalogEntry), args.Error(1)
}

func (m *MockCatalogEntryRepository) Save(ctx context.Context, entry *domain.CatalogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockSSPPolicyRepository is a mock implementation of SSPPolicyRepository
type MockSSPPolicyRepository struct {
	mock.Mock
}

func (m *MockSSPPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.SSPPolicy, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SSPPolicy), args.Error(1)
}

func (m *MockSSPPolicyRepository) Save(ctx context.Context, policy *domain.SSPPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

// MockSSPChangeRequestRepository is a mock implementation of SSPChangeRequestRepository
type MockSSPChangeRequestRepository struct {
	mock.Mock
}

func (m *MockSSPChangeRequestRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.SSPChangeRequest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SSPChangeRequest), args.Error(1)
}

func (m *MockSSPChangeRequestRepository) Save(ctx context.Context, request *domain.SSPChangeRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

// MockDiscountRuleRepository is a mock implementation of DiscountRuleRepository
type MockDiscountRuleRepository struct {
	mock.Mock
}

func (m *MockDiscountRuleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.DiscountRule, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DiscountRule), args.Error(1)
}

func (m *MockDiscountRuleRepository) FindActiveByCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.DiscountRule, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DiscountRule), args.Error(1)
}

func (m *MockDiscountRuleRepository) FindActiveAsOf(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]domain.DiscountRule, error) {
	args := m.Called(ctx, tenantID, asOf)
	return args.Get(0).([]domain.DiscountRule), args.Error(1)
}

func (m *MockDiscountRuleRepository) Save(ctx context.Context, rule *domain.DiscountRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

// MockDiscountAppliedRepository is a mock implementation of DiscountAppliedRepository
type MockDiscountAppliedRepository struct {
	mock.Mock
}

func (m *MockDiscountAppliedRepository) Save(ctx context.Context, applied *domain.DiscountApplied) error {
	args := m.Called(ctx, applied)
	return args.Error(0)
}

func (m *MockDiscountAppliedRepository) FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.DiscountApplied, error) {
	args := m.Called(ctx, tenantID, runID)
	return args.Get(0).([]domain.DiscountApplied), args.Error(1)
}

// MockBundleRepository is a mock implementation of BundleRepository
type MockBundleRepository struct {
	mock.Mock
}

func (m *MockBundleRepository) FindActiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string) (*domain.Bundle, error) {
	args := m.Called(ctx, tenantID, bundleSKU)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bundle), args.Error(1)
}

func (m *MockBundleRepository) FindEffectiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string, asOf time.Time) (*domain.Bundle, error) {
	args := m.Called(ctx, tenantID, bundleSKU, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bundle), args.Error(1)
}

func (m *MockBundleRepository) Save(ctx context.Context, bundle *domain.Bundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

// MockPerformanceObligationRepository is a mock implementation of PerformanceObligationRepository
type MockPerformanceObligationRepository struct {
	mock.Mock
}

func (m *MockPerformanceObligationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.PerformanceObligation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PerformanceObligation), args.Error(1)
}

func (m *MockPerformanceObligationRepository) FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) ([]domain.PerformanceObligation, error) {
	args := m.Called(ctx, tenantID, contractID, filter)
	return args.Get(0).([]domain.PerformanceObligation), args.Error(1)
}

func (m *MockPerformanceObligationRepository) FindOpenByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]domain.PerformanceObligation, error) {
	args := m.Called(ctx, tenantID, productIDs)
	return args.Get(0).([]domain.PerformanceObligation), args.Error(1)
}

func (m *MockPerformanceObligationRepository) Save(ctx context.Context, pob *domain.PerformanceObligation) error {
	args := m.Called(ctx, pob)
	return args.Error(0)
}

func (m *MockPerformanceObligationRepository) SaveAll(ctx context.Context, pobs []*domain.PerformanceObligation) error {
	args := m.Called(ctx, pobs)
	return args.Error(0)
}

// MockAllocationAuditRepository is a mock implementation of AllocationAuditRepository
type MockAllocationAuditRepository struct {
	mock.Mock
}

func (m *MockAllocationAuditRepository) Save(ctx context.Context, audit *domain.AllocationAudit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockAllocationAuditRepository) FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.AllocationAudit, error) {
	args := m.Called(ctx, tenantID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AllocationAudit), args.Error(1)
}

func (m *MockAllocationAuditRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]domain.AllocationAudit, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]domain.AllocationAudit), args.Error(1)
}

// MockChangeOrderRepository is a mock implementation of ChangeOrderRepository
type MockChangeOrderRepository struct {
	mock.Mock
}

func (m *MockChangeOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.ChangeOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChangeOrder), args.Error(1)
}

func (m *MockChangeOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.ChangeOrderFilter) ([]domain.ChangeOrder, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]domain.ChangeOrder), args.Error(1)
}

func (m *MockChangeOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.ChangeOrderFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChangeOrderRepository) Save(ctx context.Context, changeOrder *domain.ChangeOrder) error {
	args := m.Called(ctx, changeOrder)
	return args.Error(0)
}

// MockVCPolicyRepository is a mock implementation of VCPolicyRepository
type MockVCPolicyRepository struct {
	mock.Mock
}

func (m *MockVCPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.VCPolicy, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VCPolicy), args.Error(1)
}

func (m *MockVCPolicyRepository) Save(ctx context.Context, policy *domain.VCPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

// MockVCEstimateRepository is a mock implementation of VCEstimateRepository
type MockVCEstimateRepository struct {
	mock.Mock
}

func (m *MockVCEstimateRepository) FindByPeriod(ctx context.Context, tenantID, contractID, pobID uuid.UUID, year, month int) (*domain.VCEstimate, error) {
	args := m.Called(ctx, tenantID, contractID, pobID, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VCEstimate), args.Error(1)
}

func (m *MockVCEstimateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.VCEstimateFilter) ([]domain.VCEstimate, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]domain.VCEstimate), args.Error(1)
}

func (m *MockVCEstimateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.VCEstimateFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVCEstimateRepository) Save(ctx context.Context, estimate *domain.VCEstimate) error {
	args := m.Called(ctx, estimate)
	return args.Error(0)
}

// MockScheduleRevisionRepository is a mock implementation of ScheduleRevisionRepository
type MockScheduleRevisionRepository struct {
	mock.Mock
}

func (m *MockScheduleRevisionRepository) Save(ctx context.Context, revision *domain.ScheduleRevision) error {
	args := m.Called(ctx, revision)
	return args.Error(0)
}

func (m *MockScheduleRevisionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.RevisionFilter) ([]domain.ScheduleRevision, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]domain.ScheduleRevision), args.Error(1)
}

func (m *MockScheduleRevisionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.RevisionFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockScheduleRevisionRepository) FindByPOB(ctx context.Context, tenantID, pobID uuid.UUID) ([]domain.ScheduleRevision, error) {
	args := m.Called(ctx, tenantID, pobID)
	return args.Get(0).([]domain.ScheduleRevision), args.Error(1)
}

// MockInvoiceSource is a mock implementation of InvoiceSource
type MockInvoiceSource struct {
	mock.Mock
}

func (m *MockInvoiceSource) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

// MockScheduleBuilder is a mock implementation of ScheduleBuilder
type MockScheduleBuilder struct {
	mock.Mock
}

func (m *MockScheduleBuilder) Rebuild(ctx context.Context, tenantID uuid.UUID, req RebuildRequest) error {
	args := m.Called(ctx, tenantID, req)
	return args.Error(0)
}

// MockRecognitionRunner is a mock implementation of RecognitionRunner
type MockRecognitionRunner struct {
	mock.Mock
}

func (m *MockRecognitionRunner) Run(ctx context.Context, tenantID uuid.UUID, req RecognitionRequest) (string, error) {
	args := m.Called(ctx, tenantID, req)
	return args.String(0), args.Error(1)
}

// passthroughUOW runs the unit-of-work function directly, without a
// transaction.
type passthroughUOW struct{}

func (passthroughUOW) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}
