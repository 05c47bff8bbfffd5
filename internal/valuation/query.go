// Package valuation turns a vehicle description into a priced report: a
// model estimate in the buyer's currency placed against comparable
// historical sales.
package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"autovaluate/internal/common"
)

var ErrInvalidQuery = errors.New("invalid query")

// Region is the market a query is priced in.
type Region string

const (
	RegionUK    Region = "uk"
	RegionIndia Region = "india"
)

// RegionInfo describes how a market takes input and shows prices.
type RegionInfo struct {
	Region          Region  `json:"region"`
	Label           string  `json:"label"`
	Currency        string  `json:"currency"`
	Symbol          string  `json:"symbol"`
	DistanceUnit    string  `json:"distance_unit"`
	MaxDistance     float64 `json:"max_distance"`
	DefaultDistance float64 `json:"default_distance"`
}

var regions = map[Region]RegionInfo{
	RegionUK: {
		Region: RegionUK, Label: "UK (GBP)", Currency: "GBP", Symbol: "£",
		DistanceUnit: "miles", MaxDistance: common.MaxUKDistance, DefaultDistance: common.DefaultUKMileage,
	},
	RegionIndia: {
		Region: RegionIndia, Label: "India (INR)", Currency: "INR", Symbol: "₹",
		DistanceUnit: "km", MaxDistance: common.MaxINDistance, DefaultDistance: common.DefaultINKm,
	},
}

// Regions lists the supported markets, base market first.
func Regions() []RegionInfo {
	return []RegionInfo{regions[RegionUK], regions[RegionIndia]}
}

// Info returns display and input details for the region.
func (r Region) Info() (RegionInfo, bool) {
	info, ok := regions[r]
	return info, ok
}

// ParseRegion accepts a region name or its currency code, case-insensitively.
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uk", "gb", "gbp":
		return RegionUK, nil
	case "india", "in", "inr":
		return RegionIndia, nil
	}
	return "", fmt.Errorf("%w: unknown region %q", ErrInvalidQuery, s)
}

// Query is one valuation request. Distance is in the region's unit.
type Query struct {
	Region       Region  `json:"region"`
	Brand        string  `json:"brand"`
	Year         int     `json:"year"`
	Transmission string  `json:"transmission"`
	FuelType     string  `json:"fuelType"`
	EngineSize   float64 `json:"engineSize"`
	Distance     float64 `json:"distance"`
}

// DefaultQuery is the form's starting state for a region.
func DefaultQuery(r Region) Query {
	info, ok := r.Info()
	if !ok {
		info = regions[RegionUK]
	}
	return Query{
		Region:       info.Region,
		Brand:        common.Brands[0],
		Year:         common.DefaultYear,
		Transmission: common.Transmissions[0],
		FuelType:     common.FuelTypes[0],
		EngineSize:   common.DefaultEngine,
		Distance:     info.DefaultDistance,
	}
}

// Validate rejects anything outside the closed input sets and ranges.
func (q Query) Validate() error {
	info, ok := q.Region.Info()
	if !ok {
		return fmt.Errorf("%w: unknown region %q", ErrInvalidQuery, q.Region)
	}
	if !contains(common.Brands, q.Brand) {
		return fmt.Errorf("%w: brand %q not offered", ErrInvalidQuery, q.Brand)
	}
	if !contains(common.Transmissions, q.Transmission) {
		return fmt.Errorf("%w: transmission %q not offered", ErrInvalidQuery, q.Transmission)
	}
	if !contains(common.FuelTypes, q.FuelType) {
		return fmt.Errorf("%w: fuel type %q not offered", ErrInvalidQuery, q.FuelType)
	}
	if q.Year < common.MinYear || q.Year > common.MaxYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidQuery, q.Year, common.MinYear, common.MaxYear)
	}
	if !engineOffered(q.EngineSize) {
		return fmt.Errorf("%w: engine size %.1f not offered", ErrInvalidQuery, q.EngineSize)
	}
	if math.IsNaN(q.Distance) || q.Distance < 0 || q.Distance > info.MaxDistance {
		return fmt.Errorf("%w: distance %.0f %s outside 0-%.0f", ErrInvalidQuery, q.Distance, info.DistanceUnit, info.MaxDistance)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func engineOffered(v float64) bool {
	for _, e := range common.EngineSizes {
		if math.Abs(e-v) < 1e-9 {
			return true
		}
	}
	return false
}

// Options is the closed input vocabulary for form widgets.
type Options struct {
	Regions       []RegionInfo `json:"regions"`
	Brands        []string     `json:"brands"`
	Transmissions []string     `json:"transmissions"`
	FuelTypes     []string     `json:"fuel_types"`
	EngineSizes   []float64    `json:"engine_sizes"`
	MinYear       int          `json:"min_year"`
	MaxYear       int          `json:"max_year"`
	Defaults      Query        `json:"defaults"`
}

func InputOptions() Options {
	return Options{
		Regions:       Regions(),
		Brands:        common.Brands,
		Transmissions: common.Transmissions,
		FuelTypes:     common.FuelTypes,
		EngineSizes:   common.EngineSizes,
		MinYear:       common.MinYear,
		MaxYear:       common.MaxYear,
		Defaults:      DefaultQuery(RegionUK),
	}
}
