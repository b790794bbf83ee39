package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// Common allowed sort fields for entities with base fields
// These are the common fields present in most entities

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// ObligationSortFields contains allowed sort fields for performance obligations
var ObligationSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"contract_id":      true,
	"product_id":       true,
	"name":             true,
	"method":           true,
	"start_date":       true,
	"end_date":         true,
	"allocated_amount": true,
	"status":           true,
}

// ChangeOrderSortFields contains allowed sort fields for change orders
var ChangeOrderSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"contract_id":    true,
	"effective_date": true,
	"type":           true,
	"status":         true,
	"applied_at":     true,
}

// VCEstimateSortFields contains allowed sort fields for variable consideration estimates
var VCEstimateSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"contract_id":        true,
	"pob_id":             true,
	"year":               true,
	"month":              true,
	"method":             true,
	"raw_estimate":       true,
	"constrained_amount": true,
	"confidence":         true,
	"status":             true,
}

// ScheduleRevisionSortFields contains allowed sort fields for schedule revisions
var ScheduleRevisionSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"pob_id":     true,
	"from_year":  true,
	"from_month": true,
	"cause":      true,
}

// CatalogEntrySortFields contains allowed sort fields for SSP catalog entries
var CatalogEntrySortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"product_id":     true,
	"currency":       true,
	"ssp":            true,
	"method":         true,
	"effective_from": true,
	"effective_to":   true,
	"status":         true,
}

// DiscountRuleSortFields contains allowed sort fields for discount rules
var DiscountRuleSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"kind":           true,
	"code":           true,
	"active":         true,
	"effective_from": true,
	"effective_to":   true,
	"priority":       true,
}
