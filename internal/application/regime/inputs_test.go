package regime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

func indexSeries(n int, withSources bool) marketdata.Series {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		c := 3000 * math.Exp(0.0005*float64(i)) * (1 + 0.05*math.Sin(float64(i)/11))
		bars[i] = marketdata.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1e9 + 2e8*math.Sin(float64(i)/7),
		}
		if withSources {
			bars[i].Valuation = f64(12 + 3*math.Sin(float64(i)/40))
			bars[i].NetFlow = f64(1e8 * math.Sin(float64(i)/3))
			bars[i].LargeOrderNet = f64(5e7)
			bars[i].InstitutionalNet = f64(-2e7)
			bars[i].MarginBalance = f64(1e12 + 1e9*float64(i))
			bars[i].Breadth = &marketdata.BreadthCount{Advancers: 3000, Decliners: 2000}
			bars[i].Extremes = &marketdata.ExtremeCount{LimitUp: 40, LimitDown: 10}
		}
	}
	return marketdata.Series{Symbol: "000300", Market: marketdata.MarketCN, Bars: bars}
}

func TestInputsFromSeries_AllSources(t *testing.T) {
	s := indexSeries(400, true)
	in, warnings, err := InputsFromSeries(s, s.Bars[399].Date)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	for _, d := range regime.Dimensions {
		_, ok := in.Raw(d)
		assert.True(t, ok, "dimension %s should be present", d)
	}
	assert.InDelta(t, 1.0, *in.LargeOrderFlow, 1e-12)
	assert.InDelta(t, -1.0, *in.Institutional, 1e-12)
	assert.InDelta(t, 0.6, *in.Breadth, 1e-12)
	assert.InDelta(t, 0.6, *in.Sentiment, 1e-12)
	assert.GreaterOrEqual(t, *in.Valuation, 0.0)
	assert.LessOrEqual(t, *in.Valuation, 1.0)
	require.NotNil(t, in.MomentumSlope)
	assert.NotNil(t, in.MomentumSlope.ZScore)
	assert.NotNil(t, in.MomentumSlope.Acceleration)
	assert.Contains(t, []float64{-1, -0.5, 0, 0.5, 1}, *in.Trend)
}

func TestInputsFromSeries_PriceOnly(t *testing.T) {
	s := indexSeries(100, false)
	in, warnings, err := InputsFromSeries(s, s.Bars[99].Date)
	require.NoError(t, err)

	missing := map[string]bool{}
	for _, w := range warnings {
		missing[w.Dimension] = true
	}
	for _, d := range []regime.Dimension{
		regime.DimValuation, regime.DimCapitalFlow, regime.DimLargeOrderFlow,
		regime.DimInstitutional, regime.DimMargin, regime.DimSentiment, regime.DimBreadth,
	} {
		assert.True(t, missing[string(d)], "expected warning for %s", d)
		_, ok := in.Raw(d)
		assert.False(t, ok, "%s should be nil", d)
	}
	require.NotNil(t, in.MomentumSlope)
	// 100 筆不足以計算 120 日斜率與 z-score
	assert.Nil(t, in.MomentumSlope.Acceleration)
	assert.Nil(t, in.MomentumSlope.ZScore)
	assert.NotNil(t, in.Technical)
}

func TestInputsFromSeries_UnknownDate(t *testing.T) {
	s := indexSeries(50, false)
	_, _, err := InputsFromSeries(s, s.Bars[0].Date.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestInputsFromMap(t *testing.T) {
	in, err := InputsFromMap(map[string]float64{
		"trend":                       0.5,
		"valuation":                   0.3,
		"momentum_slope":              0.25,
		"momentum_slope_zscore":       1.2,
		"momentum_slope_acceleration": -0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, *in.Trend)
	assert.Equal(t, 0.3, *in.Valuation)
	require.NotNil(t, in.MomentumSlope)
	assert.Equal(t, 0.25, in.MomentumSlope.Annualized)
	assert.Equal(t, 1.2, *in.MomentumSlope.ZScore)
	assert.Equal(t, -0.1, *in.MomentumSlope.Acceleration)
	assert.Nil(t, in.Breadth)

	_, err = InputsFromMap(map[string]float64{"trend": 1, "moon_phase": 0.5})
	assert.ErrorContains(t, err, "moon_phase")

	_, err = InputsFromMap(map[string]float64{"momentum_slope_zscore": 1})
	assert.Error(t, err)

	_, err = InputsFromMap(map[string]float64{"breadth": math.NaN()})
	assert.Error(t, err)
}
