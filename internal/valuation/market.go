package valuation

import (
	"autovaluate/internal/cfg"
	"autovaluate/internal/common"
	"autovaluate/internal/dataset"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Market applies the fixed conversion constants between the base market
// the model was trained on (UK, GBP, miles) and the query's region.
type Market struct {
	settings cfg.MarketSettings
	lang     language.Tag
}

func NewMarket(s cfg.MarketSettings) Market {
	return Market{settings: s, lang: language.English}
}

// Factor is the multiplier from GBP to the region's currency.
func (m Market) Factor(r Region) float64 {
	if r == RegionIndia {
		return m.settings.ExchangeRate
	}
	return 1
}

// Convert takes a GBP amount into the region's currency.
func (m Market) Convert(gbp float64, r Region) float64 {
	return gbp * m.Factor(r)
}

// Miles turns the query's distance into the miles the model was trained on.
func (m Market) Miles(q Query) float64 {
	if q.Region == RegionIndia {
		return q.Distance / m.settings.KmPerMile
	}
	return q.Distance
}

func (m Market) defaults(r Region) cfg.RegionDefaults {
	if r == RegionIndia {
		return m.settings.India
	}
	return m.settings.UK
}

// Record builds the model input for a query. The model attribute is left
// empty since the dashboard never asks for it.
func (m Market) Record(q Query) dataset.Record {
	d := m.defaults(q.Region)
	return dataset.Record{
		Brand:        q.Brand,
		Transmission: q.Transmission,
		FuelType:     q.FuelType,
		Year:         float64(q.Year),
		Mileage:      m.Miles(q),
		Tax:          d.Tax,
		MPG:          d.MPG,
		EngineSize:   q.EngineSize,
	}
}

// Format renders an amount already in the region's currency. INR amounts
// above one lakh are shown in lakhs; everything else gets thousands
// separators and no decimals.
func (m Market) Format(amount float64, r Region) string {
	info, ok := r.Info()
	if !ok {
		info = regions[RegionUK]
	}
	p := message.NewPrinter(m.lang)
	if r == RegionIndia && amount > common.LakhThreshold {
		return info.Symbol + " " + p.Sprintf("%.2f Lakhs", amount/common.LakhDivisor)
	}
	return info.Symbol + " " + p.Sprintf("%.0f", amount)
}
