package ports

import (
	"context"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
)

// ComplianceRequirements are the cargo properties a carrier must be cleared for.
type ComplianceRequirements struct {
	Hazardous             bool
	TemperatureControlled bool
}

// ComplianceChecker decides whether a carrier may take a load.
type ComplianceChecker interface {
	// Check returns an error wrapping order.ErrComplianceRejected when the
	// carrier is not allowed. Any other error means the check itself failed.
	Check(ctx context.Context, carrierID kernel.UUID, req ComplianceRequirements) error
}

// PriceValidator compares a bid amount to the market for its route.
// It always produces an assessment; provider or store failures degrade to
// an assessment without history.
type PriceValidator interface {
	ValidateMarketPrice(ctx context.Context, price float64, route kernel.Route) order.PriceAssessment
}

// EventPublisher hands committed domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...order.DomainEvent) error
}

// ProgressPublisher fans a fresh snapshot out to live subscribers.
type ProgressPublisher interface {
	Publish(snapshot order.ProgressSnapshot)
}

// Actor identifies who triggered an administrative action.
type Actor struct {
	UserID string
	Role   string
}

// AuditRecord is evidence of one administrative change.
type AuditRecord struct {
	Action     string            `json:"action"`
	ResourceID kernel.UUID       `json:"resourceId"`
	ActorID    string            `json:"actorId"`
	ActorRole  string            `json:"actorRole"`
	Details    map[string]string `json:"details,omitempty"`
	At         time.Time         `json:"at"`
}

// AuditRecorder ships audit records to the evidence store.
type AuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord) error
}
