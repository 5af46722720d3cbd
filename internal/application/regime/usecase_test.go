package regime

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

type stubProvider struct {
	series marketdata.Series
}

func (s stubProvider) GetSeries(_ context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error) {
	if symbol != s.series.Symbol {
		return marketdata.Series{}, analysis.ErrSeriesNotFound
	}
	if end.IsZero() {
		return s.series, nil
	}
	return s.series.Until(end, limit), nil
}

func newTestUseCase(t *testing.T, p analysis.SeriesProvider, weights map[marketdata.Market]regime.WeightTable) *UseCase {
	t.Helper()
	return NewUseCase(p, newTestClassifier(t), weights, zerolog.Nop(), nil)
}

func TestUseCase_ExplicitInputs(t *testing.T) {
	uc := newTestUseCase(t, stubProvider{}, nil)
	in := neutralInputs()
	in.MomentumSlope = &SlopeInput{Annualized: 0.62}

	report, err := uc.Execute(context.Background(), Input{Market: marketdata.MarketCN, Inputs: &in})
	require.NoError(t, err)
	assert.InDelta(t, 0.016, report.Result.Composite, 1e-9)
	assert.Equal(t, regime.LabelOscillating, report.Result.Label)

	_, err = uc.Execute(context.Background(), Input{Market: "JP", Inputs: &in})
	assert.ErrorIs(t, err, analysis.ErrInvalidInput)
}

func TestUseCase_MarketWeightsDropUnsupportedDimensions(t *testing.T) {
	uc := newTestUseCase(t, stubProvider{}, nil)
	in := neutralInputs()
	in.Margin = nil
	in.Sentiment = nil

	report, err := uc.Execute(context.Background(), Input{Market: marketdata.MarketUS, Inputs: &in})
	require.NoError(t, err)
	for _, s := range report.Result.Scores {
		assert.NotEqual(t, regime.DimMargin, s.Dimension)
	}
	// US 表不含 margin/sentiment，不應列為缺漏
	assert.NotContains(t, report.Result.Missing, regime.DimMargin)
	assert.Contains(t, report.Result.Missing, regime.DimMomentumSlope)
}

func TestUseCase_FromSeries(t *testing.T) {
	s := indexSeries(300, false)
	uc := newTestUseCase(t, stubProvider{series: s}, nil)

	report, err := uc.Execute(context.Background(), Input{Symbol: "000300"})
	require.NoError(t, err)
	assert.Equal(t, marketdata.MarketCN, report.Market)
	assert.True(t, report.AsOf.Equal(s.Bars[299].Date))
	assert.Contains(t, regime.Labels, report.Result.Label)
	assert.NotEmpty(t, report.Result.Missing)

	// 推導時的具體原因會取代通用說明
	for _, w := range report.Result.Warnings {
		assert.NotEqual(t, "no input", w.Reason, "dimension %s", w.Dimension)
	}

	res, err := uc.ClassifySeries(s, s.Bars[299].Date)
	require.NoError(t, err)
	assert.Equal(t, report.Result, res)
}

func TestUseCase_Errors(t *testing.T) {
	uc := newTestUseCase(t, stubProvider{series: indexSeries(300, false)}, nil)

	_, err := uc.Execute(context.Background(), Input{})
	assert.ErrorIs(t, err, analysis.ErrInvalidInput)

	_, err = uc.Execute(context.Background(), Input{Symbol: "HSI"})
	assert.True(t, errors.Is(err, analysis.ErrSeriesNotFound), "got %v", err)
}

func TestUseCase_RejectsCorruptSeries(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(s *marketdata.Series)
		reason  string
	}{
		{"nan close", func(s *marketdata.Series) { s.Bars[250].Close = math.NaN() }, "bar 250: price fields must be finite"},
		{"unordered dates", func(s *marketdata.Series) { s.Bars[120].Date = s.Bars[100].Date }, "bar 120: dates must be strictly ascending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := indexSeries(300, false)
			tt.corrupt(&s)
			uc := newTestUseCase(t, stubProvider{series: s}, nil)

			_, err := uc.Execute(context.Background(), Input{Symbol: s.Symbol})
			require.Error(t, err)
			assert.True(t, marketdata.IsValidationError(err), "got %v", err)
			assert.ErrorContains(t, err, tt.reason)
		})
	}
}

func TestUseCase_CustomWeights(t *testing.T) {
	custom := map[marketdata.Market]regime.WeightTable{
		marketdata.MarketCN: {regime.DimTechnical: 1},
	}
	uc := newTestUseCase(t, stubProvider{}, custom)

	w, err := uc.Weights(marketdata.MarketCN)
	require.NoError(t, err)
	assert.Equal(t, regime.WeightTable{regime.DimTechnical: 1}, w)

	in := Inputs{Technical: f64(75)}
	report, err := uc.Execute(context.Background(), Input{Market: marketdata.MarketCN, Inputs: &in})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, report.Result.Composite, 1e-12)
	assert.Equal(t, regime.LabelBullMid, report.Result.Label)
	assert.Equal(t, []regime.Dimension{regime.DimTechnical}, report.Result.BullishSignals)
}
