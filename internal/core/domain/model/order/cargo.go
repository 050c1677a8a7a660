package order

import (
	"strings"

	"freight/internal/pkg/errs"
)

// Cargo describes what is shipped.
type Cargo struct {
	description           string
	hazardous             bool
	temperatureControlled bool
}

// NewCargo requires a non-blank description.
func NewCargo(description string, hazardous, temperatureControlled bool) (Cargo, error) {
	if strings.TrimSpace(description) == "" {
		return Cargo{}, errs.NewValueIsRequiredError("cargoDescription")
	}
	return Cargo{
		description:           description,
		hazardous:             hazardous,
		temperatureControlled: temperatureControlled,
	}, nil
}

// Description returns the free-text cargo description.
func (c Cargo) Description() string { return c.description }

// Hazardous reports whether the cargo needs a hazmat-certified carrier.
func (c Cargo) Hazardous() bool { return c.hazardous }

// TemperatureControlled reports whether the cargo needs a reefer-certified carrier.
func (c Cargo) TemperatureControlled() bool { return c.temperatureControlled }
