package revenue

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AllocationStrategy selects how net transaction price is spread across lines
type AllocationStrategy string

const (
	StrategyAuto        AllocationStrategy = "AUTO"
	StrategyRelativeSSP AllocationStrategy = "RELATIVE_SSP"
	StrategyResidual    AllocationStrategy = "RESIDUAL"
)

// IsValid checks if the strategy is valid
func (s AllocationStrategy) IsValid() bool {
	switch s {
	case StrategyAuto, StrategyRelativeSSP, StrategyResidual:
		return true
	}
	return false
}

// String returns the string representation of AllocationStrategy
func (s AllocationStrategy) String() string {
	return string(s)
}

// ResolveStrategy turns AUTO into a concrete strategy. The fallback order is
// an explicit policy decision:
//  1. every line has an approved SSP  -> RELATIVE_SSP
//  2. policy permits residual         -> RESIDUAL
//  3. otherwise                       -> RELATIVE_SSP even without full
//     approval (permissive default; missing SSPs then fail the run)
func ResolveStrategy(requested AllocationStrategy, allLinesApproved, residualAllowed bool) (AllocationStrategy, error) {
	switch requested {
	case StrategyRelativeSSP, StrategyResidual:
		return requested, nil
	case StrategyAuto:
		if allLinesApproved {
			return StrategyRelativeSSP, nil
		}
		if residualAllowed {
			return StrategyResidual, nil
		}
		return StrategyRelativeSSP, nil
	default:
		return "", shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown allocation strategy: %s", requested))
	}
}

// AllocationLine is one invoice line prepared for allocation. SSP is the
// effective standalone selling price resolved as of the invoice date, nil
// when no approved entry exists.
type AllocationLine struct {
	LineID           uuid.UUID
	ProductID        uuid.UUID
	ProductName      string
	Amount           decimal.Decimal
	Qty              decimal.Decimal
	UOM              string
	EndDate          *time.Time
	Method           RecognitionMethod
	SSP              *decimal.Decimal
	ResidualEligible bool
}

// LineAllocation is the allocated result for one line
type LineAllocation struct {
	AllocationLine
	Allocated decimal.Decimal
}

// AllocationOutcome is the result of one strategy run over a line set.
// The rounding adjustment is the sub-unit remainder deliberately not
// redistributed across lines: Sum(Allocated) + RoundingAdjustment equals
// the net amount exactly.
type AllocationOutcome struct {
	Strategy           AllocationStrategy
	Lines              []LineAllocation
	TotalAllocated     decimal.Decimal
	RoundingAdjustment decimal.Decimal
}

// Allocator spreads a net amount across invoice lines
type Allocator interface {
	Strategy() AllocationStrategy
	Allocate(netAmount decimal.Decimal, lines []AllocationLine, rounding RoundingRule) (*AllocationOutcome, error)
}

// AllocatorFor returns the allocator for a concrete (non-AUTO) strategy
func AllocatorFor(strategy AllocationStrategy) (Allocator, error) {
	switch strategy {
	case StrategyRelativeSSP:
		return RelativeSSPAllocator{}, nil
	case StrategyResidual:
		return ResidualAllocator{}, nil
	default:
		return nil, shared.NewDomainError("UNKNOWN_VARIANT", fmt.Sprintf("Unknown allocation strategy: %s", strategy))
	}
}

// RelativeSSPAllocator allocates the net amount proportionally to
// SSP-weighted line amounts. Every line must carry an SSP.
type RelativeSSPAllocator struct{}

// Strategy returns RELATIVE_SSP
func (RelativeSSPAllocator) Strategy() AllocationStrategy {
	return StrategyRelativeSSP
}

// Allocate computes weight = ssp x lineAmount per line, allocates
// netAmount x weight / totalWeight, and rounds each allocation to whole
// currency units under the policy rounding rule. The unrounded remainder
// becomes the rounding adjustment.
func (RelativeSSPAllocator) Allocate(netAmount decimal.Decimal, lines []AllocationLine, rounding RoundingRule) (*AllocationOutcome, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "No invoice lines to allocate")
	}
	weights := make([]decimal.Decimal, len(lines))
	totalWeight := decimal.Zero
	for i, line := range lines {
		if line.SSP == nil {
			return nil, shared.NewDomainError("MISSING_CONFIGURATION", fmt.Sprintf("No approved SSP for product %s", line.ProductID))
		}
		weights[i] = line.SSP.Mul(line.Amount)
		totalWeight = totalWeight.Add(weights[i])
	}
	if totalWeight.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Total allocation weight is zero")
	}

	outcome := &AllocationOutcome{
		Strategy:       StrategyRelativeSSP,
		Lines:          make([]LineAllocation, len(lines)),
		TotalAllocated: decimal.Zero,
	}
	for i, line := range lines {
		raw := netAmount.Mul(weights[i]).Div(totalWeight)
		allocated := rounding.Apply(raw)
		outcome.Lines[i] = LineAllocation{AllocationLine: line, Allocated: allocated}
		outcome.TotalAllocated = outcome.TotalAllocated.Add(allocated)
	}
	outcome.RoundingAdjustment = netAmount.Sub(outcome.TotalAllocated)
	return outcome, nil
}

// ResidualAllocator allocates SSP-priced lines first at their own amount,
// then splits whatever net amount remains evenly across residual-eligible
// lines. Residual lines keep a nil SSP.
type ResidualAllocator struct{}

// Strategy returns RESIDUAL
func (ResidualAllocator) Strategy() AllocationStrategy {
	return StrategyResidual
}

// Allocate partitions lines into SSP-priced and residual-eligible. Priced
// lines are allocated min(lineAmount, remainingNet) in input order; the
// remainder is split evenly (not by relative size) across residual lines.
func (ResidualAllocator) Allocate(netAmount decimal.Decimal, lines []AllocationLine, rounding RoundingRule) (*AllocationOutcome, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "No invoice lines to allocate")
	}
	var residualIdx []int
	priced := make([]int, 0, len(lines))
	for i, line := range lines {
		if line.SSP != nil {
			priced = append(priced, i)
		} else if line.ResidualEligible {
			residualIdx = append(residualIdx, i)
		} else {
			return nil, shared.NewDomainError("MISSING_CONFIGURATION", fmt.Sprintf("Product %s has no SSP and is not residual-eligible", lines[i].ProductID))
		}
	}
	if len(residualIdx) == 0 {
		return nil, shared.NewDomainError("MISSING_CONFIGURATION", "Residual strategy requires at least one residual-eligible line")
	}

	outcome := &AllocationOutcome{
		Strategy:       StrategyResidual,
		Lines:          make([]LineAllocation, len(lines)),
		TotalAllocated: decimal.Zero,
	}
	remaining := netAmount
	for _, i := range priced {
		allocated := lines[i].Amount
		if allocated.GreaterThan(remaining) {
			allocated = remaining
		}
		if allocated.IsNegative() {
			allocated = decimal.Zero
		}
		allocated = rounding.Apply(allocated)
		outcome.Lines[i] = LineAllocation{AllocationLine: lines[i], Allocated: allocated}
		outcome.TotalAllocated = outcome.TotalAllocated.Add(allocated)
		remaining = remaining.Sub(allocated)
	}

	share := remaining.Div(decimal.NewFromInt(int64(len(residualIdx))))
	for _, i := range residualIdx {
		allocated := rounding.Apply(share)
		outcome.Lines[i] = LineAllocation{AllocationLine: lines[i], Allocated: allocated}
		outcome.TotalAllocated = outcome.TotalAllocated.Add(allocated)
	}
	outcome.RoundingAdjustment = netAmount.Sub(outcome.TotalAllocated)
	return outcome, nil
}

// JSONMap is a free-form JSON object column used for audit snapshots
type JSONMap map[string]any

// Value implements driver.Valuer for JSONB storage
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("cannot scan non-string value into JSONMap")
	}
	return json.Unmarshal(data, m)
}

// AllocationAudit is the write-once record of one allocation run, success
// or failure. Failed runs store {"error": message} as the input snapshot so
// every invocation stays traceable.
type AllocationAudit struct {
	shared.TenantAggregateRoot
	RunID                uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_audit_run"`
	InvoiceID            uuid.UUID          `gorm:"type:uuid;not null;index"`
	Strategy             AllocationStrategy `gorm:"type:varchar(20);not null"`
	Inputs               JSONMap            `gorm:"type:jsonb"`
	Results              JSONMap            `gorm:"type:jsonb"`
	CorridorFlagged      bool               `gorm:"not null;default:false"`
	TotalInvoiceAmount   decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAllocatedAmount decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	RoundingAdjustment   decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	ProcessingMillis     int64              `gorm:"not null;default:0"`
	Succeeded            bool               `gorm:"not null"`
}

func (AllocationAudit) TableName() string {
	return "allocation_audits"
}

// NewAllocationAudit records a successful allocation run
func NewAllocationAudit(tenantID, runID, invoiceID uuid.UUID, strategy AllocationStrategy, inputs, results JSONMap, corridorFlagged bool, totalInvoice, totalAllocated, roundingAdjustment decimal.Decimal, processingMillis int64) *AllocationAudit {
	return &AllocationAudit{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		RunID:                runID,
		InvoiceID:            invoiceID,
		Strategy:             strategy,
		Inputs:               inputs,
		Results:              results,
		CorridorFlagged:      corridorFlagged,
		TotalInvoiceAmount:   totalInvoice,
		TotalAllocatedAmount: totalAllocated,
		RoundingAdjustment:   roundingAdjustment,
		ProcessingMillis:     processingMillis,
		Succeeded:            true,
	}
}

// NewFailedAllocationAudit records an aborted allocation run
func NewFailedAllocationAudit(tenantID, runID, invoiceID uuid.UUID, strategy AllocationStrategy, failure error, processingMillis int64) *AllocationAudit {
	return &AllocationAudit{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		RunID:               runID,
		InvoiceID:           invoiceID,
		Strategy:            strategy,
		Inputs:              JSONMap{"error": failure.Error()},
		Results:             JSONMap{},
		ProcessingMillis:    processingMillis,
		Succeeded:           false,
	}
}
