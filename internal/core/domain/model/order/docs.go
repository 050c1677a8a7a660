// Package order implements the MasterOrder aggregate of the freight ledger.
//
// A shipper posts a MasterOrder describing total weight, volume, route and
// deadline. Carriers place Bids on fractions of it; each accepted bid
// allocates a PartialOrder and decrements the remaining capacity. The
// aggregate owns its partial orders and bids and is the only place where
// capacity is checked and mutated.
//
// Key business rules:
//   - remainingWeight = totalWeight - Σ(active partial order weights); same for volume
//   - remaining capacity never goes negative
//   - a bid must be at least minLoadPercentage of the total unless it takes the
//     exact remainder; with LTL disabled it must take the exact remainder
//   - master status moves OPEN -> PARTIALLY_FILLED -> FILLED -> IN_PROGRESS -> COMPLETED;
//     CANCELLED is terminal and reachable from any non-terminal status
//
// Every mutation bumps the aggregate version and records a domain event;
// Progress derives the immutable ProgressSnapshot for the current state.
package order
