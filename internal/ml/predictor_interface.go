// Package ml trains and serves the bagged regression forest that maps
// vehicle attributes to a sale price.
//
// Training fans trees out over a worker pool with one seeded random source
// per tree; the fitted forest is immutable and gob-encodable.
package ml

import "autovaluate/internal/dataset"

// PredictorInterface is what valuation needs from a model.
type PredictorInterface interface {
	// Predict returns the estimated price, in the training currency, for
	// one vehicle.
	Predict(rec dataset.Record) (float64, error)
}
