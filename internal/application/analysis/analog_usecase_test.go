package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

// periodicSeries 每 50 筆重複一次，確保相同型態在歷史中反覆出現。
func periodicSeries(symbol string, n int) marketdata.Series {
	s := makeSeries(symbol, n, func(i int) float64 {
		return 100 * (1 + 0.08*math.Sin(2*math.Pi*float64(i)/50))
	})
	for i := range s.Bars {
		s.Bars[i].Volume = 1000 + 200*math.Cos(2*math.Pi*float64(i)/50)
	}
	return s
}

type fakeRegimes struct {
	label regime.Label
	err   error
}

func (f fakeRegimes) ClassifySeries(_ marketdata.Series, _ time.Time) (regime.Result, error) {
	if f.err != nil {
		return regime.Result{}, f.err
	}
	return regime.Result{Label: f.label}, nil
}

type recordingMetrics struct {
	statuses []string
	matches  []int
}

func (r *recordingMetrics) ObserveAnalysis(_, status string, _ time.Duration) {
	r.statuses = append(r.statuses, status)
}

func (r *recordingMetrics) ObserveMatches(n int, _ bool) { r.matches = append(r.matches, n) }

func newTestAnalog(p SeriesProvider, regimes RegimeLookup, m Metrics) *AnalogUseCase {
	return NewAnalogUseCase(p, regimes, DefaultAnalogConfig(), zerolog.Nop(), m)
}

func TestAnalogUseCase_Execute(t *testing.T) {
	s := periodicSeries("600519", 600)
	provider := &fakeProvider{series: map[string]marketdata.Series{"600519": s}}
	metrics := &recordingMetrics{}
	uc := newTestAnalog(provider, nil, metrics)

	asOf := s.Bars[540].Date
	report, err := uc.Execute(context.Background(), AnalogInput{Symbol: "600519", AsOf: asOf, Preset: PresetTechnical})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, marketdata.MarketCN, report.Market)
	assert.True(t, report.AsOf.Equal(asOf))
	require.NotEmpty(t, report.MatchDates)
	for _, d := range report.MatchDates {
		assert.True(t, d.Before(asOf), "match %v must precede as-of date", d)
	}

	require.Len(t, report.Statistics, 4)
	for i, h := range []int{5, 10, 20, 60} {
		st := report.Statistics[i]
		assert.Equal(t, h, st.Horizon)
		assert.LessOrEqual(t, st.SampleSize, len(report.MatchDates))
		assert.NotEmpty(t, st.Advice.Signal)
		assert.GreaterOrEqual(t, st.Advice.RecommendedPosition, 0.0)
		assert.LessOrEqual(t, st.Advice.RecommendedPosition, 1.0)
	}
	assert.Equal(t, []string{"ok"}, metrics.statuses)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestAnalogUseCase_NoLookAhead(t *testing.T) {
	s := periodicSeries("X", 600)
	provider := &fakeProvider{series: map[string]marketdata.Series{"X": s}, fullHistory: true}
	uc := newTestAnalog(provider, nil, nil)

	asOf := s.Bars[540].Date
	withFuture, err := uc.Execute(context.Background(), AnalogInput{Symbol: "X", AsOf: asOf})
	require.NoError(t, err)

	truncated := &fakeProvider{series: map[string]marketdata.Series{"X": s.Until(asOf, 0)}}
	withoutFuture, err := newTestAnalog(truncated, nil, nil).Execute(context.Background(), AnalogInput{Symbol: "X", AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, withoutFuture.Statistics, withFuture.Statistics)
	assert.Equal(t, withoutFuture.MatchDates, withFuture.MatchDates)
}

func TestAnalogUseCase_NoMatches(t *testing.T) {
	s := makeSeries("UP", 300, func(i int) float64 { return 100 + float64(i) })
	provider := &fakeProvider{series: map[string]marketdata.Series{"UP": s}}
	metrics := &recordingMetrics{}
	uc := newTestAnalog(provider, nil, metrics)

	exact := &FilterSet{Name: "exact price", Price: Tolerance{Enabled: true}}
	report, err := uc.Execute(context.Background(), AnalogInput{Symbol: "UP", Filters: exact, Horizons: []int{5, 20}})

	require.True(t, domain.IsNoMatches(err), "got %v", err)
	assert.Equal(t, StatusInsufficientData, report.Status)
	assert.True(t, report.Outcome.Relaxed)
	require.Len(t, report.Statistics, 2)
	for _, st := range report.Statistics {
		assert.Equal(t, domain.SignalNoData, st.Advice.Signal)
		assert.Zero(t, st.Advice.RecommendedPosition)
	}
	assert.Equal(t, []string{"no_matches"}, metrics.statuses)
}

func TestAnalogUseCase_Errors(t *testing.T) {
	s := periodicSeries("X", 100)
	provider := &fakeProvider{series: map[string]marketdata.Series{"X": s}}
	uc := newTestAnalog(provider, nil, nil)
	ctx := context.Background()

	_, err := uc.Execute(ctx, AnalogInput{Symbol: "MISSING"})
	assert.True(t, errors.Is(err, ErrSeriesNotFound), "got %v", err)

	_, err = uc.Execute(ctx, AnalogInput{Symbol: "X"})
	assert.True(t, domain.IsInsufficientHistory(err), "got %v", err)

	_, err = uc.Execute(ctx, AnalogInput{Symbol: "X", Preset: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Execute(ctx, AnalogInput{Symbol: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Execute(ctx, AnalogInput{Symbol: "X", Filters: &FilterSet{}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	failing := newTestAnalog(&fakeProvider{err: errors.New("connection refused")}, nil, nil)
	_, err = failing.Execute(ctx, AnalogInput{Symbol: "X"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestAnalogUseCase_ApplyRegime(t *testing.T) {
	s := periodicSeries("X", 600)
	provider := &fakeProvider{series: map[string]marketdata.Series{"X": s}}
	asOf := s.Bars[540].Date
	ctx := context.Background()

	plain, err := newTestAnalog(provider, nil, nil).Execute(ctx, AnalogInput{Symbol: "X", AsOf: asOf})
	require.NoError(t, err)

	uc := newTestAnalog(provider, fakeRegimes{label: regime.LabelBearDecline}, nil)
	adjusted, err := uc.Execute(ctx, AnalogInput{Symbol: "X", AsOf: asOf, ApplyRegime: true})
	require.NoError(t, err)
	require.NotNil(t, adjusted.Regime)
	assert.Equal(t, regime.LabelBearDecline, adjusted.Regime.Label)

	for i := range plain.Statistics {
		want := AdjustForRegime(plain.Statistics[i].Advice, regime.LabelBearDecline, 0.6)
		assert.Equal(t, want, adjusted.Statistics[i].Advice)
	}

	_, err = newTestAnalog(provider, nil, nil).Execute(ctx, AnalogInput{Symbol: "X", AsOf: asOf, ApplyRegime: true})
	assert.Error(t, err, "regime lookup is required")
}

func TestBatchUseCase_Execute(t *testing.T) {
	provider := &fakeProvider{series: map[string]marketdata.Series{
		"A": periodicSeries("A", 400),
		"B": periodicSeries("B", 400),
	}}
	batch := NewBatchUseCase(newTestAnalog(provider, nil, nil), 2)

	items, err := batch.Execute(context.Background(), []string{"A", "MISSING", "B"}, AnalogInput{Preset: PresetTechnical})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "A", items[0].Symbol)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, "A", items[0].Report.Symbol)

	assert.Equal(t, "MISSING", items[1].Symbol)
	assert.True(t, errors.Is(items[1].Err, ErrSeriesNotFound))

	assert.Equal(t, "B", items[2].Symbol)
	assert.NoError(t, items[2].Err)
}

func TestBatchUseCase_Cancelled(t *testing.T) {
	provider := &fakeProvider{series: map[string]marketdata.Series{"A": periodicSeries("A", 400)}}
	batch := NewBatchUseCase(newTestAnalog(provider, nil, nil), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items, err := batch.Execute(ctx, []string{"A", "A"}, AnalogInput{})
	assert.ErrorIs(t, err, context.Canceled)
	for _, it := range items {
		assert.ErrorIs(t, it.Err, context.Canceled)
	}
}

func TestAnalogUseCase_RejectsCorruptSeries(t *testing.T) {
	s := periodicSeries("BAD", 600)
	s.Bars[400].Close = math.NaN()
	uc := newTestAnalog(&fakeProvider{series: map[string]marketdata.Series{"BAD": s}}, nil, nil)

	_, err := uc.Execute(context.Background(), AnalogInput{Symbol: "BAD"})
	require.Error(t, err)
	assert.True(t, marketdata.IsValidationError(err), "got %v", err)
	assert.ErrorContains(t, err, "bar 400: price fields must be finite")
}

func TestNewAnalogUseCase_PartialTolerances(t *testing.T) {
	cfg := DefaultAnalogConfig()
	cfg.Tolerances = Tolerances{RSI: 8}
	uc := NewAnalogUseCase(&fakeProvider{}, nil, cfg, zerolog.Nop(), nil)

	want := DefaultTolerances()
	want.RSI = 8
	assert.Equal(t, want, uc.cfg.Tolerances)
}
