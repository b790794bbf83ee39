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

// BundleService provides application-level bundle definition operations
type BundleService struct {
	bundleRepo domain.BundleRepository
	uow        shared.UnitOfWork
	logger     *zap.Logger
}

// NewBundleService creates a new BundleService
func NewBundleService(bundleRepo domain.BundleRepository, uow shared.UnitOfWork, logger *zap.Logger) *BundleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BundleService{
		bundleRepo: bundleRepo,
		uow:        uow,
		logger:     logger,
	}
}

// BundleComponentInput is one component in an upsert payload
type BundleComponentInput struct {
	ProductID uuid.UUID        `json:"product_id"`
	WeightPct decimal.Decimal  `json:"weight_pct"`
	Required  bool             `json:"required"`
	MinQty    *decimal.Decimal `json:"min_qty,omitempty"`
	MaxQty    *decimal.Decimal `json:"max_qty,omitempty"`
}

// UpsertBundleRequest is the payload for creating or replacing a bundle
type UpsertBundleRequest struct {
	BundleSKU     string                 `json:"bundle_sku"`
	Name          string                 `json:"name"`
	EffectiveFrom time.Time              `json:"effective_from"`
	EffectiveTo   *time.Time             `json:"effective_to,omitempty"`
	Components    []BundleComponentInput `json:"components"`
}

// BundleComponentResponse represents a bundle component in API responses
type BundleComponentResponse struct {
	ProductID uuid.UUID        `json:"product_id"`
	WeightPct decimal.Decimal  `json:"weight_pct"`
	Required  bool             `json:"required"`
	MinQty    *decimal.Decimal `json:"min_qty,omitempty"`
	MaxQty    *decimal.Decimal `json:"max_qty,omitempty"`
}

// BundleResponse represents a bundle in API responses
type BundleResponse struct {
	ID            uuid.UUID                 `json:"id"`
	BundleSKU     string                    `json:"bundle_sku"`
	Name          string                    `json:"name"`
	Active        bool                      `json:"active"`
	EffectiveFrom time.Time                 `json:"effective_from"`
	EffectiveTo   *time.Time                `json:"effective_to,omitempty"`
	Components    []BundleComponentResponse `json:"components"`
	WeightsValid  bool                      `json:"weights_valid"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func toBundleResponse(b *domain.Bundle) *BundleResponse {
	components := make([]BundleComponentResponse, len(b.Components))
	for i, c := range b.Components {
		components[i] = BundleComponentResponse{
			ProductID: c.ProductID,
			WeightPct: c.WeightPct,
			Required:  c.Required,
			MinQty:    c.MinQty,
			MaxQty:    c.MaxQty,
		}
	}
	return &BundleResponse{
		ID:            b.ID,
		BundleSKU:     b.BundleSKU,
		Name:          b.Name,
		Active:        b.Active,
		EffectiveFrom: b.EffectiveFrom,
		EffectiveTo:   b.EffectiveTo,
		Components:    components,
		WeightsValid:  domain.ValidateWeights(b.Components),
		CreatedAt:     b.CreatedAt,
	}
}

// UpsertBundle end-dates any active bundle with the same SKU at the new
// bundle's effective-from and inserts the replacement. Weights that do not
// sum to 1.0 are flagged in the response but do not block the write.
func (s *BundleService) UpsertBundle(ctx context.Context, tenantID, userID uuid.UUID, req UpsertBundleRequest) (*BundleResponse, error) {
	bundle, err := domain.NewBundle(tenantID, userID, req.BundleSKU, req.Name, req.EffectiveFrom, req.EffectiveTo)
	if err != nil {
		return nil, err
	}
	if len(req.Components) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Bundle requires at least one component")
	}
	for _, c := range req.Components {
		if err := bundle.AddComponent(c.ProductID, c.WeightPct, c.Required, c.MinQty, c.MaxQty); err != nil {
			return nil, err
		}
	}

	err = s.uow.Execute(ctx, func(ctx context.Context) error {
		prior, err := s.bundleRepo.FindActiveBySKU(ctx, tenantID, req.BundleSKU)
		if err != nil {
			return err
		}
		if prior != nil {
			if err := prior.EndDate(req.EffectiveFrom); err != nil {
				return err
			}
			if err := s.bundleRepo.Save(ctx, prior); err != nil {
				return err
			}
		}
		return s.bundleRepo.Save(ctx, bundle)
	})
	if err != nil {
		return nil, err
	}

	if !domain.ValidateWeights(bundle.Components) {
		s.logger.Warn("bundle component weights do not sum to 1.0",
			zap.String("tenant_id", tenantID.String()),
			zap.String("bundle_sku", req.BundleSKU))
	}
	return toBundleResponse(bundle), nil
}

// GetEffective returns the active bundle for the SKU whose window contains
// asOf, or nil when none exists.
func (s *BundleService) GetEffective(ctx context.Context, tenantID uuid.UUID, bundleSKU string, asOf time.Time) (*BundleResponse, error) {
	bundle, err := s.bundleRepo.FindEffectiveBySKU(ctx, tenantID, bundleSKU, asOf)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, nil
	}
	return toBundleResponse(bundle), nil
}

// ComponentShareResponse is one component's share of a pre-allocated line
type ComponentShareResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Amount    decimal.Decimal `json:"amount"`
	WeightPct decimal.Decimal `json:"weight_pct"`
}

// PreAllocate splits a bundle line amount across the effective bundle's
// components by weight. Shares are unrounded; the allocation engine rounds
// them with every other line.
func (s *BundleService) PreAllocate(ctx context.Context, tenantID uuid.UUID, bundleSKU string, asOf time.Time, lineAmount decimal.Decimal) ([]ComponentShareResponse, error) {
	bundle, err := s.bundleRepo.FindEffectiveBySKU(ctx, tenantID, bundleSKU, asOf)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "No effective bundle for SKU "+bundleSKU)
	}
	shares := bundle.PreAllocate(lineAmount)
	responses := make([]ComponentShareResponse, len(shares))
	for i, share := range shares {
		responses[i] = ComponentShareResponse{
			ProductID: share.ProductID,
			Amount:    share.Amount,
			WeightPct: share.WeightPct,
		}
	}
	return responses, nil
}
