package oracle

import "time"

// SurchargeSource tells which step of the policy produced a surcharge.
type SurchargeSource string

const (
	SourceConsensus SurchargeSource = "consensus"
	SourcePrimary   SurchargeSource = "primary"
	SourceFallback  SurchargeSource = "fallback"
)

// Surcharge is a fuel surcharge multiplier, e.g. 1.08 for +8%.
type Surcharge struct {
	Rate       float64         `json:"rate"`
	Source     SurchargeSource `json:"source"`
	Providers  []string        `json:"providers,omitempty"`
	Region     string          `json:"region"`
	ComputedAt time.Time       `json:"computedAt"`
}

// IsFresh reports whether s was computed less than ttl before now.
func (s Surcharge) IsFresh(now time.Time, ttl time.Duration) bool {
	return !s.ComputedAt.IsZero() && now.Sub(s.ComputedAt) < ttl
}
