package services

import (
	"fmt"
	"math"
	"slices"

	"freight/internal/core/domain/model/order"
)

// DefaultRiskThresholdPercent is the deviation above which a price is high risk.
const DefaultRiskThresholdPercent = 15.0

// MarketPriceAnalyzer compares prices to the median of accepted prices.
type MarketPriceAnalyzer struct {
	thresholdPercent float64
}

// NewMarketPriceAnalyzer uses DefaultRiskThresholdPercent when threshold is not positive.
func NewMarketPriceAnalyzer(thresholdPercent float64) MarketPriceAnalyzer {
	if !(thresholdPercent > 0) {
		thresholdPercent = DefaultRiskThresholdPercent
	}
	return MarketPriceAnalyzer{thresholdPercent: thresholdPercent}
}

// Threshold returns the deviation limit in percent.
func (a MarketPriceAnalyzer) Threshold() float64 {
	return a.thresholdPercent
}

// Assess flags price when it deviates from the median of history by more
// than the threshold. Without history there is nothing to compare against
// and the price is accepted as is.
func (a MarketPriceAnalyzer) Assess(price float64, history []float64) order.PriceAssessment {
	median, ok := Median(history)
	if !ok || median == 0 {
		return order.PriceAssessment{Reason: "no comparable market history"}
	}

	deviation := (price - median) / median * 100
	res := order.PriceAssessment{MedianPrice: median, DeviationPercent: deviation}
	if math.Abs(deviation) > a.thresholdPercent {
		res.HighRisk = true
		direction := "above"
		if deviation < 0 {
			direction = "below"
		}
		res.Reason = fmt.Sprintf("price is %.1f%% %s the market median %.2f", math.Abs(deviation), direction, median)
		return res
	}
	res.Reason = "within market range"
	return res
}

// Median returns the sorted-array median, averaging the middle pair for
// even counts. ok is false for an empty input.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

// Quote is one provider's answer for the weighted average.
type Quote struct {
	Rate   float64
	Weight float64
}

// WeightedAverage computes Σ(rate·weight)/Σ(weight). ok is false when the
// total weight is zero.
func WeightedAverage(quotes []Quote) (float64, bool) {
	var sum, weights float64
	for _, q := range quotes {
		sum += q.Rate * q.Weight
		weights += q.Weight
	}
	if weights <= 0 {
		return 0, false
	}
	return sum / weights, true
}
