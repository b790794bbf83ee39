package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	domain "github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Invoice is the read model the allocation engine consumes. Invoices are
// owned by a billing system outside this context; they are never written
// here.
type Invoice struct {
	ID             uuid.UUID
	ContractID     uuid.UUID
	SubscriptionID *uuid.UUID
	CustomerID     uuid.UUID
	Currency       valueobject.Currency
	InvoiceDate    time.Time
	TotalAmount    decimal.Decimal
	Lines          []InvoiceLine
}

// InvoiceLine is one line of an invoice read model
type InvoiceLine struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	BundleSKU   string // set when the line references a bundle SKU
	Amount      decimal.Decimal
	Qty         decimal.Decimal
	UOM         string
	EndDate     *time.Time
	Method      domain.RecognitionMethod // optional override, empty = default
}

// InvoiceSource resolves invoices from the external billing system.
// A nil invoice with nil error means the invoice does not exist.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*Invoice, error)
}

// RebuildRequest asks the schedule builder to (re)build the recognition
// schedule for a POB from a given start date.
type RebuildRequest struct {
	POBID     uuid.UUID
	Method    domain.RecognitionMethod
	StartDate time.Time
	EndDate   *time.Time
	// CatchUp requests a cumulative catch-up posting for periods already
	// elapsed before StartDate. Set by retrospective treatment only.
	CatchUp bool
}

// ScheduleBuilder rebuilds period-by-period recognition schedules.
// Its internal algorithm belongs to the recognition system.
type ScheduleBuilder interface {
	Rebuild(ctx context.Context, tenantID uuid.UUID, req RebuildRequest) error
}

// RecognitionRequest asks the recognition runner for a period-close run
type RecognitionRequest struct {
	Year   int
	Month  int
	DryRun bool
}

// RecognitionRunner executes or simulates period-close revenue recognition
type RecognitionRunner interface {
	Run(ctx context.Context, tenantID uuid.UUID, req RecognitionRequest) (runID string, err error)
}
