package valuation

import (
	"errors"
	"testing"

	"autovaluate/internal/cfg"
	"autovaluate/internal/common"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	valuations  map[string]int
	failures    map[string]int
	verdicts    map[string]int
	unavailable int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		valuations: map[string]int{},
		failures:   map[string]int{},
		verdicts:   map[string]int{},
	}
}

func (m *recordingMetrics) ValuationsInc(region string)        { m.valuations[region]++ }
func (m *recordingMetrics) ValuationFailuresInc(reason string) { m.failures[reason]++ }
func (m *recordingMetrics) VerdictInc(verdict string)          { m.verdicts[verdict]++ }
func (m *recordingMetrics) ComparisonUnavailableInc()          { m.unavailable++ }

func comparisonSettings() cfg.ComparisonSettings {
	return cfg.ComparisonSettings{
		EngineTolerance: common.DefaultEngineTolerance,
		MinComparables:  common.DefaultMinComparables,
		VerdictBand:     common.DefaultVerdictBand,
	}
}

// sixComparables: 2019, engine within 1.5±0.2, mean 15,000. Two extra rows
// fall outside the filter.
func sixComparables() []dataset.Record {
	return []dataset.Record{
		{Year: 2019, EngineSize: 1.5, Price: 13000},
		{Year: 2019, EngineSize: 1.4, Price: 14000},
		{Year: 2019, EngineSize: 1.6, Price: 15000},
		{Year: 2019, EngineSize: 1.3, Price: 15000},
		{Year: 2019, EngineSize: 1.7, Price: 16000},
		{Year: 2019, EngineSize: 1.5, Price: 17000},
		{Year: 2018, EngineSize: 1.5, Price: 99000},
		{Year: 2019, EngineSize: 2.0, Price: 99000},
	}
}

func ukQuery() Query {
	return Query{
		Region: RegionUK, Brand: "Ford", Year: 2019, Transmission: "Manual",
		FuelType: "Petrol", EngineSize: 1.5, Distance: 30000,
	}
}

func TestCompare_Verdicts(t *testing.T) {
	ref := sixComparables()
	tests := []struct {
		estimate float64
		want     Verdict
	}{
		{14000, VerdictFair},
		{12500, VerdictBelow},
		{17000, VerdictAbove},
		{13500, VerdictFair},
		{16500, VerdictFair},
	}

	for _, tt := range tests {
		c := Compare(ref, 2019, 1.5, tt.estimate, 1, comparisonSettings())
		require.True(t, c.Available)
		assert.Equal(t, 6, c.Comparables)
		assert.InDelta(t, 15000, c.Mean, 1e-9)
		assert.Equal(t, 13000.0, c.Min)
		assert.Equal(t, 17000.0, c.Max)
		assert.Equal(t, tt.want, c.Verdict, "estimate %.0f", tt.estimate)
	}
}

func TestCompare_NotEnoughData(t *testing.T) {
	ref := sixComparables()[1:]
	c := Compare(ref, 2019, 1.5, 15000, 1, comparisonSettings())

	assert.False(t, c.Available)
	assert.Equal(t, 5, c.Comparables)
	assert.Equal(t, noteNotEnoughData, c.Note)
	assert.Empty(t, c.Verdict)
	assert.Nil(t, c.Prices)
}

func TestCompare_AppliesFactor(t *testing.T) {
	c := Compare(sixComparables(), 2019, 1.5, 1650000, 110, comparisonSettings())
	require.True(t, c.Available)
	assert.InDelta(t, 1650000, c.Mean, 1e-6)
	assert.Equal(t, VerdictFair, c.Verdict)
}

func TestPosition(t *testing.T) {
	assert.Equal(t, 0.5, Position(100, 100, 100), "degenerate range")
	assert.Equal(t, 0.0, Position(50, 100, 200))
	assert.Equal(t, 1.0, Position(500, 100, 200))
	assert.InDelta(t, 0.25, Position(125, 100, 200), 1e-12)

	for _, est := range []float64{-1e9, 0, 13000, 15000, 17000, 1e9} {
		p := Position(est, 13000, 17000)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestCompare_AllPricesEqual(t *testing.T) {
	ref := make([]dataset.Record, 6)
	for i := range ref {
		ref[i] = dataset.Record{Year: 2020, EngineSize: 2.0, Price: 20000}
	}
	c := Compare(ref, 2020, 2.0, 25000, 1, comparisonSettings())
	require.True(t, c.Available)
	assert.Equal(t, 0.5, c.Position)
	assert.Equal(t, VerdictAbove, c.Verdict)
}

func TestComparable_ToleranceInclusive(t *testing.T) {
	assert.True(t, Comparable(dataset.Record{Year: 2019, EngineSize: 1.3}, 2019, 1.5, 0.2))
	assert.True(t, Comparable(dataset.Record{Year: 2019, EngineSize: 1.7}, 2019, 1.5, 0.2))
	assert.False(t, Comparable(dataset.Record{Year: 2019, EngineSize: 1.8}, 2019, 1.5, 0.2))
	assert.False(t, Comparable(dataset.Record{Year: 2020, EngineSize: 1.5}, 2019, 1.5, 0.2))
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, ukQuery().Validate())

	tests := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"unknown region", func(q *Query) { q.Region = "fr" }},
		{"unknown brand", func(q *Query) { q.Brand = "Lada" }},
		{"unknown transmission", func(q *Query) { q.Transmission = "CVT" }},
		{"unknown fuel", func(q *Query) { q.FuelType = "Electric" }},
		{"year too old", func(q *Query) { q.Year = 2004 }},
		{"year too new", func(q *Query) { q.Year = 2026 }},
		{"engine not offered", func(q *Query) { q.EngineSize = 1.9 }},
		{"negative distance", func(q *Query) { q.Distance = -1 }},
		{"uk distance too high", func(q *Query) { q.Distance = 200001 }},
		{"india distance too high", func(q *Query) { q.Region = RegionIndia; q.Distance = 300001 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ukQuery()
			tt.mutate(&q)
			assert.ErrorIs(t, q.Validate(), ErrInvalidQuery)
		})
	}

	india := ukQuery()
	india.Region = RegionIndia
	india.Distance = 250000
	assert.NoError(t, india.Validate(), "India allows up to 300,000 km")
}

func TestParseRegion(t *testing.T) {
	for in, want := range map[string]Region{"UK": RegionUK, "gbp": RegionUK, " India ": RegionIndia, "INR": RegionIndia} {
		got, err := ParseRegion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRegion("mars")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMarket_Conversion(t *testing.T) {
	m := NewMarket(cfg.DefaultMarketSettings())

	assert.Equal(t, 1000.0, m.Convert(1000, RegionUK))
	assert.Equal(t, 110000.0, m.Convert(1000, RegionIndia))

	q := ukQuery()
	q.Region = RegionIndia
	q.Distance = 16090
	assert.InDelta(t, 10000, m.Miles(q), 1e-9)

	rec := m.Record(q)
	assert.Equal(t, 145.0, rec.Tax)
	assert.Equal(t, 50.0, rec.MPG)
	assert.Equal(t, 2019.0, rec.Year)
	assert.Empty(t, rec.Model)
}

func TestMarket_RegionDefaultsConfigurable(t *testing.T) {
	s := cfg.DefaultMarketSettings()
	s.India = cfg.RegionDefaults{Tax: 0, MPG: 40}
	m := NewMarket(s)

	q := ukQuery()
	q.Region = RegionIndia
	rec := m.Record(q)
	assert.Equal(t, 0.0, rec.Tax)
	assert.Equal(t, 40.0, rec.MPG)

	assert.Equal(t, 145.0, m.Record(ukQuery()).Tax)
}

func TestMarket_Format(t *testing.T) {
	m := NewMarket(cfg.DefaultMarketSettings())

	assert.Equal(t, "£ 12,346", m.Format(12345.6, RegionUK))
	assert.Equal(t, "£ 950", m.Format(950, RegionUK))
	assert.Equal(t, "₹ 12.35 Lakhs", m.Format(1234567, RegionIndia))
	assert.Equal(t, "₹ 95,000", m.Format(95000, RegionIndia))
	assert.Equal(t, "₹ 100,000", m.Format(100000, RegionIndia), "exactly one lakh is not abbreviated")
	assert.Equal(t, "£ 250,000", m.Format(250000, RegionUK), "lakhs apply to INR only")
}

func TestService_Valuate(t *testing.T) {
	metrics := newRecordingMetrics()
	svc, err := NewService(ml.StaticPredictor{Price: 14000}, sixComparables(), cfg.DefaultMarketSettings(), comparisonSettings(), metrics)
	require.NoError(t, err)

	r, err := svc.Valuate(ukQuery())
	require.NoError(t, err)

	_, err = uuid.Parse(r.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, 14000.0, r.Estimate)
	assert.Equal(t, 14000.0, r.EstimateGBP)
	assert.Equal(t, "£ 14,000", r.Display)
	assert.Equal(t, "GBP", r.Region.Currency)
	assert.True(t, r.Comparison.Available)
	assert.Equal(t, VerdictFair, r.Comparison.Verdict)
	assert.Equal(t, "£ 15,000", r.MeanDisplay)
	assert.InDelta(t, 0.25, r.Comparison.Position, 1e-12)

	assert.Equal(t, 1, metrics.valuations["uk"])
	assert.Equal(t, 1, metrics.verdicts[string(VerdictFair)])
}

func TestService_IndiaIsRateTimesUK(t *testing.T) {
	svc, err := NewService(ml.StaticPredictor{Price: 14000}, sixComparables(), cfg.DefaultMarketSettings(), comparisonSettings(), nil)
	require.NoError(t, err)

	uk, err := svc.Valuate(ukQuery())
	require.NoError(t, err)

	q := ukQuery()
	q.Region = RegionIndia
	q.Distance = 50000
	in, err := svc.Valuate(q)
	require.NoError(t, err)

	assert.Equal(t, uk.Estimate*common.DefaultExchangeRate, in.Estimate)
	assert.Equal(t, "₹ 15.40 Lakhs", in.Display)
	assert.Equal(t, uk.Comparison.Verdict, in.Comparison.Verdict)
	assert.InDelta(t, uk.Comparison.Position, in.Comparison.Position, 1e-12)
}

func TestService_ComparisonUnavailable(t *testing.T) {
	metrics := newRecordingMetrics()
	svc, err := NewService(ml.StaticPredictor{Price: 9000}, sixComparables()[:3], cfg.DefaultMarketSettings(), comparisonSettings(), metrics)
	require.NoError(t, err)

	r, err := svc.Valuate(ukQuery())
	require.NoError(t, err, "missing comparables is not an error")
	assert.Equal(t, 9000.0, r.Estimate)
	assert.False(t, r.Comparison.Available)
	assert.Empty(t, r.MeanDisplay)
	assert.Equal(t, 1, metrics.unavailable)
}

func TestService_Errors(t *testing.T) {
	metrics := newRecordingMetrics()
	svc, err := NewService(ml.StaticPredictor{Err: errors.New("boom")}, nil, cfg.DefaultMarketSettings(), comparisonSettings(), metrics)
	require.NoError(t, err)

	bad := ukQuery()
	bad.Brand = "Lada"
	_, err = svc.Valuate(bad)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, 1, metrics.failures["invalid_query"])

	_, err = svc.Valuate(ukQuery())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, 1, metrics.failures["prediction"])

	_, err = NewService(nil, nil, cfg.DefaultMarketSettings(), comparisonSettings(), nil)
	assert.Error(t, err)

	badMarket := cfg.DefaultMarketSettings()
	badMarket.ExchangeRate = 0
	_, err = NewService(ml.StaticPredictor{}, nil, badMarket, comparisonSettings(), nil)
	assert.Error(t, err)
}

func TestInputOptions(t *testing.T) {
	o := InputOptions()
	assert.Len(t, o.Brands, 9)
	assert.Len(t, o.EngineSizes, 14)
	assert.Len(t, o.Regions, 2)
	assert.NoError(t, o.Defaults.Validate())
	assert.NoError(t, DefaultQuery(RegionIndia).Validate())
}
