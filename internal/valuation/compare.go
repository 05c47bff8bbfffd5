package valuation

import (
	"math"

	"autovaluate/internal/cfg"
	"autovaluate/internal/dataset"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Verdict classifies an estimate against the comparable-sales mean.
type Verdict string

const (
	VerdictBelow Verdict = "Great Deal (Below Market Avg)"
	VerdictAbove Verdict = "Premium Price (Above Market Avg)"
	VerdictFair  Verdict = "Fair Market Price"
)

const noteNotEnoughData = "Not enough data to generate market curve."

// engineEpsilon absorbs float error at the tolerance boundary.
const engineEpsilon = 1e-9

// Comparison places an estimate among comparable reference sales. Prices
// are in the query's currency. When Available is false only Comparables
// and Note are meaningful.
type Comparison struct {
	Available   bool      `json:"available"`
	Comparables int       `json:"comparables"`
	Mean        float64   `json:"mean,omitempty"`
	Min         float64   `json:"min,omitempty"`
	Max         float64   `json:"max,omitempty"`
	Verdict     Verdict   `json:"verdict,omitempty"`
	Position    float64   `json:"position"`
	Note        string    `json:"note,omitempty"`
	Prices      []float64 `json:"-"`
}

// Comparable reports whether a reference row matches the model year
// exactly and the engine size within tolerance, inclusive.
func Comparable(r dataset.Record, year int, engine, tolerance float64) bool {
	return r.Year == float64(year) && math.Abs(r.EngineSize-engine) <= tolerance+engineEpsilon
}

// Compare filters the reference sample and classifies the estimate. factor
// converts reference prices (GBP) into the estimate's currency.
func Compare(reference []dataset.Record, year int, engine, estimate, factor float64, s cfg.ComparisonSettings) Comparison {
	var prices []float64
	for _, r := range reference {
		if Comparable(r, year, engine, s.EngineTolerance) {
			prices = append(prices, r.Price*factor)
		}
	}

	c := Comparison{Comparables: len(prices)}
	if len(prices) < s.MinComparables || len(prices) == 0 {
		c.Note = noteNotEnoughData
		return c
	}

	c.Available = true
	c.Prices = prices
	c.Mean = stat.Mean(prices, nil)
	c.Min = floats.Min(prices)
	c.Max = floats.Max(prices)
	c.Verdict = Classify(estimate, c.Mean, s.VerdictBand)
	c.Position = Position(estimate, c.Min, c.Max)
	return c
}

// Classify applies the verdict band around the mean: strictly below
// (1-band)*mean is a deal, strictly above (1+band)*mean is premium.
func Classify(estimate, mean, band float64) Verdict {
	switch {
	case estimate < mean*(1-band):
		return VerdictBelow
	case estimate > mean*(1+band):
		return VerdictAbove
	default:
		return VerdictFair
	}
}

// Position is the estimate's normalised place in [min, max], clamped to
// [0, 1]. A degenerate range gives 0.5.
func Position(estimate, min, max float64) float64 {
	if max <= min {
		return 0.5
	}
	p := (estimate - min) / (max - min)
	switch {
	case math.IsNaN(p):
		return 0.5
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
