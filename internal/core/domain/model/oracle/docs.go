// Package oracle models the price providers behind the fuel surcharge
// consensus.
//
// A Provider is an administrative record: its type decides which adapter
// quotes rates for it, Weight is its share in the weighted average, and
// Priority orders providers when consensus is not in use (lower wins).
package oracle
