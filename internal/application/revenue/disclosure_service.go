package revenue

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DisclosureService produces read-only rollups for external reporting. No
// writes happen here.
type DisclosureService struct {
	changeOrderRepo domain.ChangeOrderRepository
	estimateRepo    domain.VCEstimateRepository
	revisionRepo    domain.ScheduleRevisionRepository
	logger          *zap.Logger
}

// NewDisclosureService creates a new DisclosureService
func NewDisclosureService(
	changeOrderRepo domain.ChangeOrderRepository,
	estimateRepo domain.VCEstimateRepository,
	revisionRepo domain.ScheduleRevisionRepository,
	logger *zap.Logger,
) *DisclosureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisclosureService{
		changeOrderRepo: changeOrderRepo,
		estimateRepo:    estimateRepo,
		revisionRepo:    revisionRepo,
		logger:          logger,
	}
}

// ModificationRegisterEntry is one applied modification in the register
type ModificationRegisterEntry struct {
	ChangeOrderID uuid.UUID       `json:"change_order_id"`
	ContractID    uuid.UUID       `json:"contract_id"`
	EffectiveDate time.Time       `json:"effective_date"`
	Treatment     string          `json:"treatment"`
	Reason        string          `json:"reason"`
	LineCount     int             `json:"line_count"`
	TotalDelta    decimal.Decimal `json:"total_delta"`
	AppliedAt     *time.Time      `json:"applied_at,omitempty"`
}

// ModificationRegister lists every applied modification for the tenant,
// sorted by effective date ascending.
func (s *DisclosureService) ModificationRegister(ctx context.Context, tenantID uuid.UUID, filter domain.ChangeOrderFilter) ([]ModificationRegisterEntry, error) {
	applied := domain.ChangeOrderStatusApplied
	filter.Status = &applied
	orders, err := s.changeOrderRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	register := make([]ModificationRegisterEntry, len(orders))
	for i := range orders {
		co := &orders[i]
		totalDelta := decimal.Zero
		for _, line := range co.Lines {
			totalDelta = totalDelta.Add(line.PriceDelta)
		}
		register[i] = ModificationRegisterEntry{
			ChangeOrderID: co.ID,
			ContractID:    co.ContractID,
			EffectiveDate: co.EffectiveDate,
			Treatment:     co.Type.String(),
			Reason:        co.Reason,
			LineCount:     len(co.Lines),
			TotalDelta:    totalDelta,
			AppliedAt:     co.AppliedAt,
		}
	}
	sort.SliceStable(register, func(i, j int) bool {
		return register[i].EffectiveDate.Before(register[j].EffectiveDate)
	})
	return register, nil
}

// VCRollforwardRow is one contract/POB/period movement in the rollforward
type VCRollforwardRow struct {
	ContractID uuid.UUID       `json:"contract_id"`
	POBID      uuid.UUID       `json:"pob_id"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Opening    decimal.Decimal `json:"opening"`
	Additions  decimal.Decimal `json:"additions"`
	Changes    decimal.Decimal `json:"changes"`
	Closing    decimal.Decimal `json:"closing"`
	Resolved   bool            `json:"resolved"`
}

// VCRollforward rolls constrained estimates forward per contract/POB across
// the year's periods. Opening is the prior period's closing; the first
// appearance of a POB books its full constrained amount as an addition,
// later periods book the delta as a change.
func (s *DisclosureService) VCRollforward(ctx context.Context, tenantID uuid.UUID, year int) ([]VCRollforwardRow, error) {
	filter := domain.VCEstimateFilter{Year: &year}
	filter.PageSize = -1
	estimates, err := s.estimateRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(estimates, func(i, j int) bool {
		if estimates[i].POBID != estimates[j].POBID {
			return estimates[i].POBID.String() < estimates[j].POBID.String()
		}
		if estimates[i].Year != estimates[j].Year {
			return estimates[i].Year < estimates[j].Year
		}
		return estimates[i].Month < estimates[j].Month
	})

	rows := make([]VCRollforwardRow, 0, len(estimates))
	closingByPOB := make(map[uuid.UUID]decimal.Decimal)
	for i := range estimates {
		e := &estimates[i]
		opening, seen := closingByPOB[e.POBID]
		row := VCRollforwardRow{
			ContractID: e.ContractID,
			POBID:      e.POBID,
			Year:       e.Year,
			Month:      e.Month,
			Opening:    opening,
			Closing:    e.ConstrainedAmount,
			Resolved:   e.Status == domain.VCEstimateStatusResolved,
		}
		if !seen {
			row.Opening = decimal.Zero
			row.Additions = e.ConstrainedAmount
			row.Changes = decimal.Zero
		} else {
			row.Additions = decimal.Zero
			row.Changes = e.ConstrainedAmount.Sub(opening)
		}
		closingByPOB[e.POBID] = e.ConstrainedAmount
		rows = append(rows, row)
	}
	return rows, nil
}

// RPOSnapshotRow is one remaining-performance-obligation band
type RPOSnapshotRow struct {
	ContractID uuid.UUID       `json:"contract_id"`
	Band       string          `json:"band"`
	Amount     decimal.Decimal `json:"amount"`
}

// RPOSnapshot returns the remaining performance obligation disclosure.
// Not yet implemented upstream of the schedule data it needs; returns an
// empty slice so report consumers get a stable shape.
//
// TODO: populate from recognition schedules once the external recognition
// service exposes remaining-balance reads.
func (s *DisclosureService) RPOSnapshot(ctx context.Context, tenantID uuid.UUID) ([]RPOSnapshotRow, error) {
	return []RPOSnapshotRow{}, nil
}

// ScheduleRevisionEntry is one revision row in the revisions listing
type ScheduleRevisionEntry struct {
	ID            uuid.UUID       `json:"id"`
	POBID         uuid.UUID       `json:"pob_id"`
	FromYear      int             `json:"from_year"`
	FromMonth     int             `json:"from_month"`
	PlannedBefore decimal.Decimal `json:"planned_before"`
	PlannedAfter  decimal.Decimal `json:"planned_after"`
	Delta         decimal.Decimal `json:"delta"`
	Cause         string          `json:"cause"`
	ChangeOrderID *uuid.UUID      `json:"change_order_id,omitempty"`
	VCEstimateID  *uuid.UUID      `json:"vc_estimate_id,omitempty"`
	SSPChangeID   *uuid.UUID      `json:"ssp_change_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListRevisions returns the revision audit trail matching the filter
func (s *DisclosureService) ListRevisions(ctx context.Context, tenantID uuid.UUID, filter domain.RevisionFilter) ([]ScheduleRevisionEntry, error) {
	revisions, err := s.revisionRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	entries := make([]ScheduleRevisionEntry, len(revisions))
	for i := range revisions {
		r := &revisions[i]
		entries[i] = ScheduleRevisionEntry{
			ID:            r.ID,
			POBID:         r.POBID,
			FromYear:      r.FromYear,
			FromMonth:     r.FromMonth,
			PlannedBefore: r.PlannedBefore,
			PlannedAfter:  r.PlannedAfter,
			Delta:         r.Delta(),
			Cause:         string(r.Cause),
			ChangeOrderID: r.ChangeOrderID,
			VCEstimateID:  r.VCEstimateID,
			SSPChangeID:   r.SSPChangeID,
			CreatedAt:     r.CreatedAt,
		}
	}
	return entries, nil
}
