package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"freight/internal/core/application/consensus"
	"freight/internal/pkg/errs"

	"gopkg.in/yaml.v3"
)

// RateTable is the YAML document behind a regional static table provider:
//
//	default: 1.05
//	regions:
//	  midwest: 1.07
//	  west-coast: 1.12
type RateTable struct {
	Default float64            `yaml:"default"`
	Regions map[string]float64 `yaml:"regions"`
}

// Rate returns the region's rate, or the default when the region is not listed.
func (t RateTable) Rate(region string) (float64, bool) {
	if rate, ok := t.Regions[strings.ToLower(region)]; ok && rate > 0 {
		return rate, true
	}
	if t.Default > 0 {
		return t.Default, true
	}
	return 0, false
}

// StaticTableProvider reads its table from disk on every quote, so edits to
// the file are picked up on the next oracle refresh.
type StaticTableProvider struct {
	name   string
	path   string
	weight float64
}

func NewStaticTableProvider(name, path string, weight float64) (*StaticTableProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errs.NewValueIsRequiredError("endpoint")
	}
	return &StaticTableProvider{name: name, path: path, weight: weight}, nil
}

func (p *StaticTableProvider) Name() string    { return p.name }
func (p *StaticTableProvider) Weight() float64 { return p.weight }

func (p *StaticTableProvider) IsAvailable(context.Context) bool {
	info, err := os.Stat(p.path)
	return err == nil && !info.IsDir()
}

func (p *StaticTableProvider) FetchCurrentRate(ctx context.Context, region string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	table, err := LoadRateTable(p.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", consensus.ErrProviderUnavailable, err)
	}

	rate, ok := table.Rate(region)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no rate for region %q", consensus.ErrProviderUnavailable, p.name, region)
	}
	return rate, nil
}

// LoadRateTable parses a rate table file. Region names are matched case-insensitively.
func LoadRateTable(path string) (RateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, err
	}

	var table RateTable
	if err = yaml.Unmarshal(raw, &table); err != nil {
		return RateTable{}, fmt.Errorf("parse rate table %s: %w", path, err)
	}

	normalized := make(map[string]float64, len(table.Regions))
	for region, rate := range table.Regions {
		normalized[strings.ToLower(region)] = rate
	}
	table.Regions = normalized

	if table.Default <= 0 && len(table.Regions) == 0 {
		return RateTable{}, errors.New("rate table has neither a default nor regions")
	}
	return table, nil
}
