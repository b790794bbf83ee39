package revenue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ModificationService owns the contract-modification lifecycle: change order
// creation, the one-way apply transition with its treatment dispatch, and
// revised recognition runs.
type ModificationService struct {
	changeOrderRepo domain.ChangeOrderRepository
	pobRepo         domain.PerformanceObligationRepository
	revisionRepo    domain.ScheduleRevisionRepository
	scheduleBuilder ScheduleBuilder
	recognition     RecognitionRunner
	uow             shared.UnitOfWork
	logger          *zap.Logger
}

// NewModificationService creates a new ModificationService
func NewModificationService(
	changeOrderRepo domain.ChangeOrderRepository,
	pobRepo domain.PerformanceObligationRepository,
	revisionRepo domain.ScheduleRevisionRepository,
	scheduleBuilder ScheduleBuilder,
	recognition RecognitionRunner,
	uow shared.UnitOfWork,
	logger *zap.Logger,
) *ModificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModificationService{
		changeOrderRepo: changeOrderRepo,
		pobRepo:         pobRepo,
		revisionRepo:    revisionRepo,
		scheduleBuilder: scheduleBuilder,
		recognition:     recognition,
		uow:             uow,
		logger:          logger,
	}
}

// ChangeLineResponse represents one change line in API responses
type ChangeLineResponse struct {
	ID            uuid.UUID        `json:"id"`
	POBID         *uuid.UUID       `json:"pob_id,omitempty"`
	ProductID     *uuid.UUID       `json:"product_id,omitempty"`
	QtyDelta      decimal.Decimal  `json:"qty_delta"`
	PriceDelta    decimal.Decimal  `json:"price_delta"`
	TermDeltaDays int              `json:"term_delta_days"`
	NewMethod     *string          `json:"new_method,omitempty"`
	NewSSP        *decimal.Decimal `json:"new_ssp,omitempty"`
}

// ChangeOrderResponse represents a change order in API responses
type ChangeOrderResponse struct {
	ID            uuid.UUID            `json:"id"`
	ContractID    uuid.UUID            `json:"contract_id"`
	EffectiveDate time.Time            `json:"effective_date"`
	Type          string               `json:"type"`
	Reason        string               `json:"reason"`
	Status        string               `json:"status"`
	AppliedAt     *time.Time           `json:"applied_at,omitempty"`
	AppliedBy     *uuid.UUID           `json:"applied_by,omitempty"`
	Lines         []ChangeLineResponse `json:"lines"`
	CreatedAt     time.Time            `json:"created_at"`
}

func toChangeOrderResponse(co *domain.ChangeOrder) *ChangeOrderResponse {
	lines := make([]ChangeLineResponse, len(co.Lines))
	for i, line := range co.Lines {
		var method *string
		if line.NewMethod != nil {
			m := line.NewMethod.String()
			method = &m
		}
		lines[i] = ChangeLineResponse{
			ID:            line.ID,
			POBID:         line.POBID,
			ProductID:     line.ProductID,
			QtyDelta:      line.QtyDelta,
			PriceDelta:    line.PriceDelta,
			TermDeltaDays: line.TermDeltaDays,
			NewMethod:     method,
			NewSSP:        line.NewSSP,
		}
	}
	return &ChangeOrderResponse{
		ID:            co.ID,
		ContractID:    co.ContractID,
		EffectiveDate: co.EffectiveDate,
		Type:          co.Type.String(),
		Reason:        co.Reason,
		Status:        string(co.Status),
		AppliedAt:     co.AppliedAt,
		AppliedBy:     co.AppliedBy,
		Lines:         lines,
		CreatedAt:     co.CreatedAt,
	}
}

// CreateChangeOrderRequest is the payload for creating a DRAFT change order
type CreateChangeOrderRequest struct {
	ContractID    uuid.UUID                `json:"contract_id"`
	EffectiveDate time.Time                `json:"effective_date"`
	Reason        string                   `json:"reason"`
	Lines         []domain.ChangeLineInput `json:"lines"`
}

// CreateChangeOrder creates a DRAFT change order with its lines
func (s *ModificationService) CreateChangeOrder(ctx context.Context, tenantID, userID uuid.UUID, req CreateChangeOrderRequest) (*ChangeOrderResponse, error) {
	co, err := domain.NewChangeOrder(tenantID, userID, req.ContractID, req.EffectiveDate, req.Reason, req.Lines)
	if err != nil {
		return nil, err
	}
	if err := s.changeOrderRepo.Save(ctx, co); err != nil {
		return nil, err
	}
	s.logger.Info("change order created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("change_order_id", co.ID.String()),
		zap.String("contract_id", req.ContractID.String()),
		zap.Int("lines", len(co.Lines)))
	return toChangeOrderResponse(co), nil
}

// GetChangeOrder returns a change order with its lines
func (s *ModificationService) GetChangeOrder(ctx context.Context, tenantID, changeOrderID uuid.UUID) (*ChangeOrderResponse, error) {
	co, err := s.changeOrderRepo.FindByIDForTenant(ctx, tenantID, changeOrderID)
	if err != nil {
		return nil, err
	}
	if co == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Change order not found")
	}
	return toChangeOrderResponse(co), nil
}

// ListChangeOrders returns change orders matching the filter with pagination
func (s *ModificationService) ListChangeOrders(ctx context.Context, tenantID uuid.UUID, filter domain.ChangeOrderFilter) (*shared.Paginated[*ChangeOrderResponse], error) {
	orders, err := s.changeOrderRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.changeOrderRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]*ChangeOrderResponse, len(orders))
	for i := range orders {
		responses[i] = toChangeOrderResponse(&orders[i])
	}
	page := shared.NewPaginated(responses, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ApplyChangeOrder transitions a DRAFT change order to APPLIED and executes
// the treatment against the contract's obligations.
//
// The status transition and the treatment side effects are separate
// transactions: the order is persisted APPLIED before the side effects run,
// so a side-effect failure returns an error while the order stays APPLIED
// with partial effects. Callers must inspect errors rather than infer
// success from the APPLIED status.
func (s *ModificationService) ApplyChangeOrder(ctx context.Context, tenantID, userID, changeOrderID uuid.UUID, treatment domain.Treatment) (*ChangeOrderResponse, error) {
	if treatment == domain.TreatmentTerminationNew {
		return nil, shared.ErrNotImplemented
	}

	co, err := s.changeOrderRepo.FindByIDForTenant(ctx, tenantID, changeOrderID)
	if err != nil {
		return nil, err
	}
	if co == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Change order not found")
	}
	if err := co.Apply(treatment, userID); err != nil {
		return nil, err
	}
	if err := s.changeOrderRepo.Save(ctx, co); err != nil {
		return nil, err
	}

	switch treatment {
	case domain.TreatmentSeparate:
		err = s.applySeparate(ctx, tenantID, userID, co)
	case domain.TreatmentProspective:
		err = s.applyAdjustment(ctx, tenantID, co, false)
	case domain.TreatmentRetrospective:
		err = s.applyAdjustment(ctx, tenantID, co, true)
	}
	if err != nil {
		s.logger.Error("change order applied but treatment execution failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("change_order_id", co.ID.String()),
			zap.String("treatment", treatment.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("change order applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("change_order_id", co.ID.String()),
		zap.String("treatment", treatment.String()))
	return toChangeOrderResponse(co), nil
}

// applySeparate books each product-referencing line as a new OPEN POB priced
// at its own delta. Existing obligations are untouched.
func (s *ModificationService) applySeparate(ctx context.Context, tenantID, userID uuid.UUID, co *domain.ChangeOrder) error {
	currency, err := s.currencyForContract(ctx, tenantID, co.ContractID)
	if err != nil {
		return err
	}
	pobs := make([]*domain.PerformanceObligation, 0, len(co.Lines))
	for _, line := range co.Lines {
		if line.ProductID == nil {
			continue
		}
		method := domain.RecognitionRatableMonthly
		if line.NewMethod != nil {
			method = *line.NewMethod
		}
		pob, err := domain.NewPerformanceObligation(tenantID, userID, co.ContractID, *line.ProductID, "", method, co.EffectiveDate, line.QtyDelta, line.PriceDelta, currency)
		if err != nil {
			return err
		}
		pob.SSP = line.NewSSP
		pobs = append(pobs, pob)
	}
	if len(pobs) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Separate treatment requires at least one product line")
	}

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		return s.pobRepo.SaveAll(ctx, pobs)
	})
	if err != nil {
		return err
	}

	for _, pob := range pobs {
		rebuild := RebuildRequest{POBID: pob.ID, Method: pob.Method, StartDate: pob.StartDate, EndDate: pob.EndDate}
		if err := s.scheduleBuilder.Rebuild(ctx, tenantID, rebuild); err != nil {
			return err
		}
	}
	return nil
}

// applyAdjustment mutates the referenced open POBs with each line's deltas
// and records a schedule revision per changed POB. Retrospective treatment
// rebuilds with catch-up from the POB start; prospective rebuilds forward
// from the effective date only.
func (s *ModificationService) applyAdjustment(ctx context.Context, tenantID uuid.UUID, co *domain.ChangeOrder, catchUp bool) error {
	var changed []*domain.PerformanceObligation
	var revisions []*domain.ScheduleRevision
	for _, line := range co.Lines {
		if line.POBID == nil {
			continue
		}
		pob, err := s.pobRepo.FindByIDForTenant(ctx, tenantID, *line.POBID)
		if err != nil {
			return err
		}
		if pob == nil {
			return shared.NewDomainError("NOT_FOUND", "Performance obligation not found: "+line.POBID.String())
		}
		before := pob.AllocatedAmount
		if err := pob.ApplyChange(line.QtyDelta, line.PriceDelta, line.TermDeltaDays, line.NewMethod, line.NewSSP); err != nil {
			return err
		}

		fromYear, fromMonth := co.EffectiveDate.Year(), int(co.EffectiveDate.Month())
		if catchUp {
			fromYear, fromMonth = pob.StartDate.Year(), int(pob.StartDate.Month())
		}
		revision, err := domain.NewScheduleRevision(tenantID, pob.ID, fromYear, fromMonth, before, pob.AllocatedAmount, domain.RevisionCauseChangeOrder)
		if err != nil {
			return err
		}
		changeOrderID := co.ID
		revision.ChangeOrderID = &changeOrderID
		changed = append(changed, pob)
		revisions = append(revisions, revision)
	}
	if len(changed) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Adjustment treatment requires at least one POB line")
	}

	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		if err := s.pobRepo.SaveAll(ctx, changed); err != nil {
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
		return err
	}

	for _, pob := range changed {
		// prospective rebuilds start at the effective date; periods before
		// it stay locked. Retrospective rebuilds from inception.
		start := co.EffectiveDate
		if catchUp {
			start = pob.StartDate
		}
		rebuild := RebuildRequest{POBID: pob.ID, Method: pob.Method, StartDate: start, EndDate: pob.EndDate, CatchUp: catchUp}
		if err := s.scheduleBuilder.Rebuild(ctx, tenantID, rebuild); err != nil {
			return err
		}
	}
	return nil
}

// currencyForContract infers the contract currency from its existing POBs
func (s *ModificationService) currencyForContract(ctx context.Context, tenantID, contractID uuid.UUID) (valueobject.Currency, error) {
	pobs, err := s.pobRepo.FindByContract(ctx, tenantID, contractID, shared.Filter{Page: 1, PageSize: 1})
	if err != nil {
		return "", err
	}
	if len(pobs) == 0 {
		return "", shared.NewDomainError("MISSING_CONFIGURATION", "Contract has no obligations to infer a currency from")
	}
	return pobs[0].Currency, nil
}

// RecognitionRunResponse reports a revised recognition run. Failures are
// folded into the response instead of an error so batch callers always get
// a result per period.
type RecognitionRunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// RunRevisedRecognition re-runs recognition for a period after modifications.
// It never returns an error; failures are reported in the response.
func (s *ModificationService) RunRevisedRecognition(ctx context.Context, tenantID uuid.UUID, req RecognitionRequest) *RecognitionRunResponse {
	runID, err := s.recognition.Run(ctx, tenantID, req)
	if err != nil {
		var domainErr *shared.DomainError
		message := "recognition run failed"
		if errors.As(err, &domainErr) {
			message = domainErr.Message
		}
		s.logger.Warn("revised recognition run failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("year", req.Year),
			zap.Int("month", req.Month),
			zap.Error(err))
		return &RecognitionRunResponse{Success: false, Message: message}
	}
	return &RecognitionRunResponse{Success: true, Message: "recognition completed", RunID: runID}
}
