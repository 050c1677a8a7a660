// Package compliance clears carriers for loads against a YAML policy file.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Policy is the YAML document read by PolicyChecker:
//
//	blockedCarriers:
//	  - 2f1d0c9e-3c1a-4a57-9d55-0d6a4a3b8b11
//	hazmatCertified:
//	  - 7b8f...
//	temperatureCertified:
//	  - 7b8f...
type Policy struct {
	BlockedCarriers      []string `yaml:"blockedCarriers"`
	HazmatCertified      []string `yaml:"hazmatCertified"`
	TemperatureCertified []string `yaml:"temperatureCertified"`
}

// PolicyChecker implements ports.ComplianceChecker. A zero policy allows everyone.
type PolicyChecker struct {
	blocked     map[kernel.UUID]struct{}
	hazmat      map[kernel.UUID]struct{}
	temperature map[kernel.UUID]struct{}
	enforced    bool
}

var _ ports.ComplianceChecker = (*PolicyChecker)(nil)

// NewPolicyChecker loads the policy at path. An empty path or a missing
// file yields a checker that allows every carrier.
func NewPolicyChecker(path string, logger *zap.Logger) (*PolicyChecker, error) {
	logger = logger.Named("compliance")
	if path == "" {
		logger.Warn("no compliance policy configured, all carriers are allowed")
		return &PolicyChecker{}, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("compliance policy file not found, all carriers are allowed", zap.String("path", path))
		return &PolicyChecker{}, nil
	}
	if err != nil {
		return nil, err
	}

	var p Policy
	if err = yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse compliance policy %s: %w", path, err)
	}

	checker, err := NewPolicyCheckerFromPolicy(p)
	if err != nil {
		return nil, fmt.Errorf("compliance policy %s: %w", path, err)
	}

	logger.Info("compliance policy loaded",
		zap.String("path", path),
		zap.Int("blocked", len(checker.blocked)),
		zap.Int("hazmatCertified", len(checker.hazmat)),
		zap.Int("temperatureCertified", len(checker.temperature)),
	)
	return checker, nil
}

// NewPolicyCheckerFromPolicy enforces p. Every listed id must be a UUID.
func NewPolicyCheckerFromPolicy(p Policy) (*PolicyChecker, error) {
	blocked, blockedErr := idSet(p.BlockedCarriers)
	hazmat, hazmatErr := idSet(p.HazmatCertified)
	temperature, temperatureErr := idSet(p.TemperatureCertified)
	if err := errors.Join(blockedErr, hazmatErr, temperatureErr); err != nil {
		return nil, err
	}

	return &PolicyChecker{
		blocked:     blocked,
		hazmat:      hazmat,
		temperature: temperature,
		enforced:    true,
	}, nil
}

func (c *PolicyChecker) Check(ctx context.Context, carrierID kernel.UUID, req ports.ComplianceRequirements) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.enforced {
		return nil
	}

	if _, ok := c.blocked[carrierID]; ok {
		return fmt.Errorf("%w: carrier %s is blocked", order.ErrComplianceRejected, carrierID)
	}
	if _, ok := c.hazmat[carrierID]; req.Hazardous && !ok {
		return fmt.Errorf("%w: carrier %s is not certified for hazardous cargo", order.ErrComplianceRejected, carrierID)
	}
	if _, ok := c.temperature[carrierID]; req.TemperatureControlled && !ok {
		return fmt.Errorf("%w: carrier %s is not certified for temperature-controlled cargo", order.ErrComplianceRejected, carrierID)
	}
	return nil
}

func idSet(ids []string) (map[kernel.UUID]struct{}, error) {
	set := make(map[kernel.UUID]struct{}, len(ids))
	for _, raw := range ids {
		id, err := kernel.UUIDFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("carrier id %q: %w", raw, err)
		}
		set[id] = struct{}{}
	}
	return set, nil
}
