// Package kernel provides the shared value objects of the freight domain:
// UUID identifiers, GeoPoint coordinates with haversine distance, and the
// pickup/delivery Route of a master order.
//
// Value objects are immutable and must be created through their
// constructors; zero values fail Validate.
package kernel
