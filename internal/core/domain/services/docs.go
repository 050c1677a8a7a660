// Package services holds domain logic that reads across aggregates or
// does not belong to a single one.
//
// The package includes:
//   - ProgressAdvisor: rule-derived hints for a master order's fill state
//   - MarketPriceAnalyzer: median and deviation of a bid against accepted prices
//   - WeightedAverage: the consensus blend of provider quotes
package services
