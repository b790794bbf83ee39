package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationMetrics records allocation run outcomes. Implementations live in
// the telemetry infrastructure; a nop implementation is used when none is
// injected.
type AllocationMetrics interface {
	RecordRun(ctx context.Context, strategy string, succeeded bool, millis int64)
}

type nopAllocationMetrics struct{}

func (nopAllocationMetrics) RecordRun(context.Context, string, bool, int64) {}

// AllocationService runs the transaction-price allocation pipeline
type AllocationService struct {
	invoiceSource     InvoiceSource
	catalogRepo       domain.CatalogEntryRepository
	policyRepo        domain.SSPPolicyRepository
	bundleRepo        domain.BundleRepository
	pobRepo           domain.PerformanceObligationRepository
	auditRepo         domain.AllocationAuditRepository
	changeRequestRepo domain.SSPChangeRequestRepository
	revisionRepo      domain.ScheduleRevisionRepository
	discountService   *DiscountService
	scheduleBuilder   ScheduleBuilder
	uow               shared.UnitOfWork
	metrics           AllocationMetrics
	logger            *zap.Logger
}

// AllocationServiceOption configures an AllocationService
type AllocationServiceOption func(*AllocationService)

// WithAllocationMetrics injects a metrics recorder
func WithAllocationMetrics(m AllocationMetrics) AllocationServiceOption {
	return func(s *AllocationService) {
		s.metrics = m
	}
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	invoiceSource InvoiceSource,
	catalogRepo domain.CatalogEntryRepository,
	policyRepo domain.SSPPolicyRepository,
	bundleRepo domain.BundleRepository,
	pobRepo domain.PerformanceObligationRepository,
	auditRepo domain.AllocationAuditRepository,
	changeRequestRepo domain.SSPChangeRequestRepository,
	revisionRepo domain.ScheduleRevisionRepository,
	discountService *DiscountService,
	scheduleBuilder ScheduleBuilder,
	uow shared.UnitOfWork,
	logger *zap.Logger,
	opts ...AllocationServiceOption,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AllocationService{
		invoiceSource:     invoiceSource,
		catalogRepo:       catalogRepo,
		policyRepo:        policyRepo,
		bundleRepo:        bundleRepo,
		pobRepo:           pobRepo,
		auditRepo:         auditRepo,
		changeRequestRepo: changeRequestRepo,
		revisionRepo:      revisionRepo,
		discountService:   discountService,
		scheduleBuilder:   scheduleBuilder,
		uow:               uow,
		metrics:           nopAllocationMetrics{},
		logger:            logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocateRequest is the payload for an allocation run
type AllocateRequest struct {
	InvoiceID uuid.UUID                 `json:"invoice_id"`
	Strategy  domain.AllocationStrategy `json:"strategy"` // empty = AUTO
}

// AllocatedLineResponse is one line's allocation result
type AllocatedLineResponse struct {
	LineID    uuid.UUID        `json:"line_id"`
	ProductID uuid.UUID        `json:"product_id"`
	Amount    decimal.Decimal  `json:"amount"`
	SSP       *decimal.Decimal `json:"ssp,omitempty"`
	Allocated decimal.Decimal  `json:"allocated"`
	POBID     uuid.UUID        `json:"pob_id"`
}

// AllocationResponse is the result of a successful allocation run
type AllocationResponse struct {
	RunID              uuid.UUID               `json:"run_id"`
	InvoiceID          uuid.UUID               `json:"invoice_id"`
	Strategy           string                  `json:"strategy"`
	Lines              []AllocatedLineResponse `json:"lines"`
	TotalAllocated     decimal.Decimal         `json:"total_allocated"`
	RoundingAdjustment decimal.Decimal         `json:"rounding_adjustment"`
	TotalDiscount      decimal.Decimal         `json:"total_discount"`
	CorridorFlagged    bool                    `json:"corridor_flagged"`
	CorridorFlags      []string                `json:"corridor_flags,omitempty"`
}

// defaultPolicy is used when the tenant has not configured one: half-up
// rounding, no residual allocation, corridor checks disabled.
func defaultPolicy(tenantID uuid.UUID) *domain.SSPPolicy {
	policy, _ := domain.NewSSPPolicy(tenantID, domain.RoundingHalfUp, false, nil, domain.PricingMethodListPrice, decimal.Zero, decimal.Zero)
	return policy
}

// AllocateFromInvoice runs the full allocation pipeline for one invoice:
// bundle expansion, SSP resolution as of the invoice date, discount
// application, strategy resolution, allocation, POB creation, and the audit
// write. Every invocation leaves an audit row; failures after the run starts
// are recorded with their error before being returned.
func (s *AllocationService) AllocateFromInvoice(ctx context.Context, tenantID, userID uuid.UUID, req AllocateRequest) (*AllocationResponse, error) {
	runID := uuid.New()
	started := time.Now()
	requested := req.Strategy
	if requested == "" {
		requested = domain.StrategyAuto
	}

	response, err := s.allocate(ctx, tenantID, userID, runID, req.InvoiceID, requested, started)
	millis := time.Since(started).Milliseconds()
	if err != nil {
		audit := domain.NewFailedAllocationAudit(tenantID, runID, req.InvoiceID, requested, err, millis)
		if auditErr := s.auditRepo.Save(ctx, audit); auditErr != nil {
			s.logger.Error("failed to write allocation failure audit",
				zap.String("run_id", runID.String()),
				zap.Error(auditErr))
		}
		s.metrics.RecordRun(ctx, requested.String(), false, millis)
		s.logger.Warn("allocation run failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", req.InvoiceID.String()),
			zap.String("run_id", runID.String()),
			zap.Error(err))
		return nil, err
	}

	s.metrics.RecordRun(ctx, response.Strategy, true, millis)
	s.logger.Info("allocation run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("run_id", runID.String()),
		zap.String("strategy", response.Strategy),
		zap.Int("lines", len(response.Lines)),
		zap.String("total_allocated", response.TotalAllocated.String()))
	return response, nil
}

func (s *AllocationService) allocate(ctx context.Context, tenantID, userID, runID, invoiceID uuid.UUID, requested domain.AllocationStrategy, started time.Time) (*AllocationResponse, error) {
	invoice, err := s.invoiceSource.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}
	if len(invoice.Lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invoice has no lines")
	}

	policy, err := s.policyRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// no configured policy means no corridor to enforce (fail-open)
	policyConfigured := policy != nil
	if policy == nil {
		policy = defaultPolicy(tenantID)
	}

	lines, err := s.prepareLines(ctx, tenantID, invoice, policy)
	if err != nil {
		return nil, err
	}

	discounts, err := s.discountService.ComputeDiscounts(ctx, tenantID, invoice.InvoiceDate, invoice.CustomerID, lineAmounts(lines), invoice.TotalAmount)
	if err != nil {
		return nil, err
	}
	net := invoice.TotalAmount.Sub(discounts.TotalDiscount)
	if net.IsNegative() {
		net = decimal.Zero
	}

	allApproved := true
	for _, line := range lines {
		if line.SSP == nil {
			allApproved = false
			break
		}
	}
	strategy, err := domain.ResolveStrategy(requested, allApproved, policy.ResidualAllowed)
	if err != nil {
		return nil, err
	}
	allocator, err := domain.AllocatorFor(strategy)
	if err != nil {
		return nil, err
	}
	outcome, err := allocator.Allocate(net, lines, policy.RoundingRule)
	if err != nil {
		return nil, err
	}

	var corridorFlags []string
	if policyConfigured && strategy == domain.StrategyRelativeSSP {
		corridorFlags, err = s.corridorFlags(ctx, tenantID, invoice.Currency, policy, lines)
		if err != nil {
			return nil, err
		}
	}
	corridorFlagged := len(corridorFlags) > 0

	pobs := make([]*domain.PerformanceObligation, 0, len(outcome.Lines))
	responseLines := make([]AllocatedLineResponse, 0, len(outcome.Lines))
	for _, alloc := range outcome.Lines {
		pob, err := domain.NewPerformanceObligation(tenantID, userID, invoice.ContractID, alloc.ProductID, alloc.ProductName, alloc.Method, invoice.InvoiceDate, alloc.Qty, alloc.Allocated, invoice.Currency)
		if err != nil {
			return nil, err
		}
		pob.SubscriptionID = invoice.SubscriptionID
		lineID := alloc.LineID
		pob.InvoiceLineID = &lineID
		pob.UOM = alloc.UOM
		pob.EndDate = alloc.EndDate
		pob.SSP = alloc.SSP
		pobs = append(pobs, pob)
		responseLines = append(responseLines, AllocatedLineResponse{
			LineID:    alloc.LineID,
			ProductID: alloc.ProductID,
			Amount:    alloc.Amount,
			SSP:       alloc.SSP,
			Allocated: alloc.Allocated,
			POBID:     pob.ID,
		})
	}

	audit := domain.NewAllocationAudit(tenantID, runID, invoiceID, strategy,
		auditInputs(invoice, lines, discounts, net),
		auditResults(outcome),
		corridorFlagged, invoice.TotalAmount, outcome.TotalAllocated, outcome.RoundingAdjustment,
		time.Since(started).Milliseconds())
	audit.AddDomainEvent(domain.NewAllocationCompletedEvent(audit, len(pobs)))

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		if err := s.pobRepo.SaveAll(ctx, pobs); err != nil {
			return err
		}
		if err := s.discountService.RecordApplications(ctx, tenantID, invoiceID, runID, discounts.Applied); err != nil {
			return err
		}
		return s.auditRepo.Save(ctx, audit)
	})
	if err != nil {
		return nil, err
	}

	return &AllocationResponse{
		RunID:              runID,
		InvoiceID:          invoiceID,
		Strategy:           strategy.String(),
		Lines:              responseLines,
		TotalAllocated:     outcome.TotalAllocated,
		RoundingAdjustment: outcome.RoundingAdjustment,
		TotalDiscount:      discounts.TotalDiscount,
		CorridorFlagged:    corridorFlagged,
		CorridorFlags:      corridorFlags,
	}, nil
}

// prepareLines expands bundle lines into weighted component lines and
// resolves each line's effective SSP as of the invoice date.
func (s *AllocationService) prepareLines(ctx context.Context, tenantID uuid.UUID, invoice *Invoice, policy *domain.SSPPolicy) ([]domain.AllocationLine, error) {
	expanded := make([]InvoiceLine, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		if line.BundleSKU == "" {
			expanded = append(expanded, line)
			continue
		}
		bundle, err := s.bundleRepo.FindEffectiveBySKU(ctx, tenantID, line.BundleSKU, invoice.InvoiceDate)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, shared.NewDomainError("MISSING_CONFIGURATION", "No effective bundle for SKU "+line.BundleSKU)
		}
		for _, share := range bundle.PreAllocate(line.Amount) {
			expanded = append(expanded, InvoiceLine{
				ID:          line.ID,
				ProductID:   share.ProductID,
				ProductName: line.ProductName,
				Amount:      share.Amount,
				Qty:         line.Qty,
				UOM:         line.UOM,
				EndDate:     line.EndDate,
				Method:      line.Method,
			})
		}
	}

	lines := make([]domain.AllocationLine, len(expanded))
	for i, line := range expanded {
		entry, err := s.catalogRepo.FindEffective(ctx, tenantID, line.ProductID, invoice.Currency, invoice.InvoiceDate)
		if err != nil {
			return nil, err
		}
		var ssp *decimal.Decimal
		if entry != nil {
			v := entry.SSP
			ssp = &v
		}
		lines[i] = domain.AllocationLine{
			LineID:           line.ID,
			ProductID:        line.ProductID,
			ProductName:      line.ProductName,
			Amount:           line.Amount,
			Qty:              line.Qty,
			UOM:              line.UOM,
			EndDate:          line.EndDate,
			Method:           line.Method,
			SSP:              ssp,
			ResidualEligible: policy.IsResidualEligible(line.ProductID),
		}
	}
	return lines, nil
}

// corridorFlags checks every SSP-bearing line against the median of APPROVED
// SSPs for the invoice currency. A non-compliant line appends a readable flag;
// flags never block the run. No approved history means nothing to flag.
func (s *AllocationService) corridorFlags(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency, policy *domain.SSPPolicy, lines []domain.AllocationLine) ([]string, error) {
	approved, err := s.catalogRepo.FindApprovedByCurrency(ctx, tenantID, currency)
	if err != nil {
		return nil, err
	}
	ssps := make([]decimal.Decimal, len(approved))
	for i := range approved {
		ssps[i] = approved[i].SSP
	}
	var flags []string
	for _, line := range lines {
		if line.SSP == nil {
			continue
		}
		result := policy.CheckCorridor(*line.SSP, ssps)
		if result.Compliant {
			continue
		}
		flags = append(flags, fmt.Sprintf("%s: SSP %s deviates %s%% from the %s median %s",
			line.ProductName, line.SSP.String(),
			result.Variance.Mul(decimal.NewFromInt(100)).StringFixed(2),
			currency, result.MedianSSP.String()))
	}
	return flags, nil
}

func lineAmounts(lines []domain.AllocationLine) []domain.LineAmount {
	amounts := make([]domain.LineAmount, len(lines))
	for i, line := range lines {
		amounts[i] = domain.LineAmount{ProductID: line.ProductID, Amount: line.Amount}
	}
	return amounts
}

func auditInputs(invoice *Invoice, lines []domain.AllocationLine, discounts *DiscountComputation, net decimal.Decimal) domain.JSONMap {
	lineSnapshots := make([]map[string]any, len(lines))
	for i, line := range lines {
		snapshot := map[string]any{
			"line_id":    line.LineID.String(),
			"product_id": line.ProductID.String(),
			"amount":     line.Amount.String(),
		}
		if line.SSP != nil {
			snapshot["ssp"] = line.SSP.String()
		}
		lineSnapshots[i] = snapshot
	}
	return domain.JSONMap{
		"invoice_id":     invoice.ID.String(),
		"invoice_total":  invoice.TotalAmount.String(),
		"total_discount": discounts.TotalDiscount.String(),
		"net_amount":     net.String(),
		"lines":          lineSnapshots,
	}
}

func auditResults(outcome *domain.AllocationOutcome) domain.JSONMap {
	lineResults := make([]map[string]any, len(outcome.Lines))
	for i, alloc := range outcome.Lines {
		lineResults[i] = map[string]any{
			"line_id":    alloc.LineID.String(),
			"product_id": alloc.ProductID.String(),
			"allocated":  alloc.Allocated.String(),
		}
	}
	return domain.JSONMap{
		"strategy":            outcome.Strategy.String(),
		"total_allocated":     outcome.TotalAllocated.String(),
		"rounding_adjustment": outcome.RoundingAdjustment.String(),
		"lines":               lineResults,
	}
}

// ReallocateRequest triggers prospective reallocation from an approved SSP
// change request.
type ReallocateRequest struct {
	ChangeRequestID uuid.UUID `json:"change_request_id"`
	DryRun          bool      `json:"dry_run"`
}

// ReallocatedPOB is one POB's before/after in a reallocation preview or run
type ReallocatedPOB struct {
	POBID           uuid.UUID       `json:"pob_id"`
	ContractID      uuid.UUID       `json:"contract_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	OldSSP          decimal.Decimal `json:"old_ssp"`
	NewSSP          decimal.Decimal `json:"new_ssp"`
	AllocatedBefore decimal.Decimal `json:"allocated_before"`
	AllocatedAfter  decimal.Decimal `json:"allocated_after"`
	Delta           decimal.Decimal `json:"delta"`
}

// ReallocationResponse is the result of a prospective reallocation
type ReallocationResponse struct {
	ChangeRequestID          uuid.UUID        `json:"change_request_id"`
	DryRun                   bool             `json:"dry_run"`
	OpenPOBsAffected         int              `json:"open_pobs_affected"`
	TotalReallocationDelta   decimal.Decimal  `json:"total_reallocation_delta"`
	ScheduleRevisionsCreated int              `json:"schedule_revisions_created"`
	POBs                     []ReallocatedPOB `json:"pobs"`
}

// ProspectiveReallocation reprices the OPEN POBs of the products named in an
// approved SSP change. Each POB whose stored SSP differs from the proposed
// value moves by delta = (newSSP - oldSSP) x qty; POBs already at the new
// SSP are skipped and not counted. DryRun computes the same deltas without
// persisting or writing revisions. Closed POBs are never touched.
func (s *AllocationService) ProspectiveReallocation(ctx context.Context, tenantID, userID uuid.UUID, reallocReq ReallocateRequest) (*ReallocationResponse, error) {
	request, err := s.changeRequestRepo.FindByIDForTenant(ctx, tenantID, reallocReq.ChangeRequestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "SSP change request not found")
	}
	if request.Status != domain.ChangeRequestStatusApproved {
		return nil, shared.NewDomainError("INVALID_STATE", "SSP change request is not approved")
	}

	pobs, err := s.pobRepo.FindOpenByProducts(ctx, tenantID, request.Diff.AffectedProducts)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	totalDelta := decimal.Zero
	var details []ReallocatedPOB
	var toSave []*domain.PerformanceObligation
	var revisions []*domain.ScheduleRevision
	for i := range pobs {
		pob := &pobs[i]
		newSSP, ok := request.Diff.NewSSPFor(pob.ProductID)
		if !ok {
			continue
		}
		// residual POBs carry no SSP baseline to reprice from
		if pob.SSP == nil {
			continue
		}
		oldSSP := *pob.SSP
		if oldSSP.Equal(newSSP) {
			continue
		}
		qty := pob.Qty
		if qty.IsZero() {
			qty = one
		}
		delta := newSSP.Sub(oldSSP).Mul(qty)
		after := pob.AllocatedAmount.Add(delta)
		details = append(details, ReallocatedPOB{
			POBID:           pob.ID,
			ContractID:      pob.ContractID,
			ProductID:       pob.ProductID,
			OldSSP:          oldSSP,
			NewSSP:          newSSP,
			AllocatedBefore: pob.AllocatedAmount,
			AllocatedAfter:  after,
			Delta:           delta,
		})
		totalDelta = totalDelta.Add(delta)
		if reallocReq.DryRun {
			continue
		}
		revision, err := domain.NewScheduleRevision(tenantID, pob.ID, pob.StartDate.Year(), int(pob.StartDate.Month()), pob.AllocatedAmount, after, domain.RevisionCauseSSPChange)
		if err != nil {
			return nil, err
		}
		changeID := request.ID
		revision.SSPChangeID = &changeID
		revision.CreatedBy = &userID
		revisions = append(revisions, revision)
		if err := pob.Reallocate(newSSP, after); err != nil {
			return nil, err
		}
		toSave = append(toSave, pob)
	}

	response := &ReallocationResponse{
		ChangeRequestID:        request.ID,
		DryRun:                 reallocReq.DryRun,
		OpenPOBsAffected:       len(details),
		TotalReallocationDelta: totalDelta,
		POBs:                   details,
	}
	if reallocReq.DryRun || len(toSave) == 0 {
		return response, nil
	}

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		if err := s.pobRepo.SaveAll(ctx, toSave); err != nil {
			return err
		}
		for _, revision := range revisions {
			if err := s.revisionRepo.Save(ctx, revision); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	response.ScheduleRevisionsCreated = len(revisions)

	for _, pob := range toSave {
		rebuild := RebuildRequest{POBID: pob.ID, Method: pob.Method, StartDate: pob.StartDate, EndDate: pob.EndDate, CatchUp: false}
		if err := s.scheduleBuilder.Rebuild(ctx, tenantID, rebuild); err != nil {
			s.logger.Error("schedule rebuild failed after reallocation",
				zap.String("pob_id", pob.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("prospective reallocation applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", userID.String()),
		zap.String("change_request_id", request.ID.String()),
		zap.Int("pobs_changed", len(toSave)),
		zap.String("total_delta", totalDelta.String()))
	return response, nil
}
