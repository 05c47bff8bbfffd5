package cfg

import (
	"fmt"

	"autovaluate/internal/common"
)

// MarketSettings holds the fixed conversion constants used when a query is
// placed in a market other than the one the model was trained on.
type MarketSettings struct {
	ExchangeRate float64 // base currency -> INR
	KmPerMile    float64
	UK           RegionDefaults
	India        RegionDefaults
}

// RegionDefaults supplies model inputs the dashboard never asks the user for.
// The figures are placeholders, not market data.
type RegionDefaults struct {
	Tax float64 `yaml:"tax"`
	MPG float64 `yaml:"mpg"`
}

func DefaultMarketSettings() MarketSettings {
	return MarketSettings{
		ExchangeRate: common.DefaultExchangeRate,
		KmPerMile:    common.DefaultKmPerMile,
		UK:           RegionDefaults{Tax: common.DefaultTax, MPG: common.DefaultMPG},
		India:        RegionDefaults{Tax: common.DefaultTax, MPG: common.DefaultMPG},
	}
}

func (m MarketSettings) Validate() error {
	if m.ExchangeRate <= 0 || m.ExchangeRate > common.MaxExchangeRate {
		return fmt.Errorf("exchange rate must be between 0 and %.0f, got %f", common.MaxExchangeRate, m.ExchangeRate)
	}
	if m.KmPerMile <= 0 {
		return fmt.Errorf("km per mile must be positive, got %f", m.KmPerMile)
	}
	for name, r := range map[string]RegionDefaults{"uk": m.UK, "india": m.India} {
		if r.Tax < 0 {
			return fmt.Errorf("region %s: default tax cannot be negative, got %f", name, r.Tax)
		}
		if r.MPG <= 0 {
			return fmt.Errorf("region %s: default mpg must be positive, got %f", name, r.MPG)
		}
	}
	return nil
}
