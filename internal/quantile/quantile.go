// Package quantile classifies metric values into quintile bins for
// color-coding. Boundaries are computed over the positive values of the
// current sample set only; zero and negative values carry no rank
// information in this encoding.
package quantile

import (
	"math"
	"sort"

	"github.com/spatialplot/globeviz/internal/model"
)

// MinSampleSize is the smallest number of positive values that yields
// usable boundaries. Below it classification falls back to DefaultBin.
const MinSampleSize = 5

// DefaultBin is the middle bin used when boundaries are unavailable.
const DefaultBin = 2

// cut points for the 20th/40th/60th/80th percentiles
var cutPoints = [4]float64{0.2, 0.4, 0.6, 0.8}

// ComputeBoundaries returns the four quintile thresholds over the
// positive entries of values. The thresholds use linear interpolation
// between order statistics at fractional index p*(n-1). With fewer than
// MinSampleSize positive entries the result is invalid and Classify
// returns DefaultBin for every value.
func ComputeBoundaries(values []float64) model.QuantileBoundaries {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) < MinSampleSize {
		return model.QuantileBoundaries{}
	}
	sort.Float64s(positive)

	var b model.QuantileBoundaries
	n := float64(len(positive))
	for i, p := range cutPoints {
		index := p * (n - 1)
		lower := int(math.Floor(index))
		upper := int(math.Ceil(index))
		if lower == upper {
			b.Thresholds[i] = positive[lower]
			continue
		}
		weight := index - float64(lower)
		b.Thresholds[i] = positive[lower]*(1-weight) + positive[upper]*weight
	}
	b.Valid = true
	return b
}

// Classify places value into a bin 0..4 using the <= rule: a value
// exactly equal to Thresholds[i] lands in bin i. Invalid boundaries
// classify everything into DefaultBin.
func Classify(value float64, b model.QuantileBoundaries) int {
	if !b.Valid {
		return DefaultBin
	}
	for i, threshold := range b.Thresholds {
		if value <= threshold {
			return i
		}
	}
	return len(b.Thresholds)
}
