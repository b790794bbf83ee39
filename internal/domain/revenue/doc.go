// Package revenue provides domain models for revenue allocation and contract
// modification in a multi-tenant accounting platform.
//
// This package implements the revenue recognition bounded context, which is
// responsible for:
//   - Maintaining effective-dated standalone selling prices (SSP) per product
//     and currency, together with a per-tenant allocation policy
//   - Evaluating time-boxed, prioritized discount rules against invoice lines
//   - Allocating an invoice's net transaction price across performance
//     obligations by relative-SSP or residual strategy
//   - Constraining variable-consideration estimates against a probability
//     threshold
//   - Driving contract modifications (change orders) through the four
//     accounting treatments: separate contract, termination + new contract,
//     prospective, and retrospective
//
// Key Aggregates:
//   - CatalogEntry: An effective-dated SSP for a product/currency pair
//   - DiscountRule: A prioritized, time-boxed discount definition
//   - Bundle: A product bundle with weighted components
//   - PerformanceObligation: A unit of revenue recognition created by allocation
//   - ChangeOrder: A contract modification with line-level deltas
//   - VCEstimate: A constrained variable-consideration estimate per period
//
// The revenue domain integrates with:
//   - An invoice source: invoices are read, never written, by this context
//   - A schedule builder: recognition schedules are rebuilt on modification
//   - A recognition runner: period-close runs are triggered, not executed, here
package revenue
