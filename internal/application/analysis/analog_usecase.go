package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

var (
	// ErrSeriesNotFound 表示資料來源沒有該代號。
	ErrSeriesNotFound = errors.New("series not found")
	// ErrInvalidInput 表示請求參數不合法，與資料或計算失敗區分。
	ErrInvalidInput = errors.New("invalid input")
)

// 報告狀態。
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// SeriesProvider 取得依日期遞增的價量序列。
// end 為零值時取到最新一筆；limit <= 0 表示不限筆數。
type SeriesProvider interface {
	GetSeries(ctx context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error)
}

// RegimeLookup 依同一序列判斷市場狀態，由 regime 用例實作。
type RegimeLookup interface {
	ClassifySeries(series marketdata.Series, asOf time.Time) (regime.Result, error)
}

// Metrics 記錄分析次數、耗時與比對數量。
type Metrics interface {
	ObserveAnalysis(kind, status string, d time.Duration)
	ObserveMatches(n int, relaxed bool)
}

// NopMetrics 不做任何記錄。
type NopMetrics struct{}

func (NopMetrics) ObserveAnalysis(string, string, time.Duration) {}
func (NopMetrics) ObserveMatches(int, bool)                      {}

// AnalogConfig 為相似日分析的引擎參數。
type AnalogConfig struct {
	Builder    BuilderConfig
	Tolerances Tolerances
	Policy     EscalationPolicy
	Horizons   []int
	// Lookback 為每個快照使用的最多資料筆數
	Lookback int
	// HistoryLimit 為向資料來源取得的最多筆數，0 表示全部
	HistoryLimit int
	Sizing       SizingConfig
	Factors      map[regime.Label]float64
}

// DefaultAnalogConfig 回傳預設參數。
func DefaultAnalogConfig() AnalogConfig {
	return AnalogConfig{
		Builder:    DefaultBuilderConfig(),
		Tolerances: DefaultTolerances(),
		Policy:     DefaultEscalationPolicy(),
		Horizons:   append([]int(nil), DefaultHorizons...),
		Lookback:   260,
		Sizing:     DefaultSizingConfig(),
		Factors:    regime.DefaultFactors(),
	}
}

// AnalogInput 為單一標的的分析請求。
type AnalogInput struct {
	Symbol string
	// AsOf 為零值時使用最新一筆資料
	AsOf time.Time
	// Preset 與 Filters 擇一；Filters 優先
	Preset      string
	Filters     *FilterSet
	Horizons    []int
	MinSamples  int
	ApplyRegime bool
}

// AnalogReport 為相似日分析的完整輸出。
type AnalogReport struct {
	Symbol     string                     `json:"symbol"`
	Market     marketdata.Market          `json:"market"`
	AsOf       time.Time                  `json:"as_of"`
	Status     string                     `json:"status"`
	Current    domain.MetricSnapshot      `json:"current"`
	Outcome    MatchOutcome               `json:"match"`
	MatchDates []time.Time                `json:"match_dates"`
	Statistics []domain.HorizonStatistics `json:"statistics"`
	Regime     *regime.Result             `json:"regime,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// AnalogUseCase 串接資料來源、快照、比對、統計與倉位建議。
type AnalogUseCase struct {
	provider SeriesProvider
	regimes  RegimeLookup
	builder  *Builder
	advisor  *Advisor
	cfg      AnalogConfig
	log      zerolog.Logger
	metrics  Metrics
}

// NewAnalogUseCase 建立相似日分析用例；regimes 與 metrics 可為 nil。
func NewAnalogUseCase(provider SeriesProvider, regimes RegimeLookup, cfg AnalogConfig, log zerolog.Logger, metrics Metrics) *AnalogUseCase {
	def := DefaultAnalogConfig()
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = def.Horizons
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.Policy.MinSamples <= 0 {
		cfg.Policy.MinSamples = def.Policy.MinSamples
	}
	if cfg.Policy.RelaxFactor == 0 {
		cfg.Policy.RelaxFactor = def.Policy.RelaxFactor
	}
	cfg.Tolerances = cfg.Tolerances.WithDefaults(def.Tolerances)
	if cfg.Factors == nil {
		cfg.Factors = def.Factors
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &AnalogUseCase{
		provider: provider,
		regimes:  regimes,
		builder:  NewBuilder(cfg.Builder),
		advisor:  NewAdvisor(cfg.Sizing),
		cfg:      cfg,
		log:      log.With().Str("component", "analog").Logger(),
		metrics:  metrics,
	}
}

// Execute 執行單一標的的相似日分析。
// 找不到相似日時同時回傳狀態為 insufficient_data 的報告與 *NoMatchesFoundError。
func (u *AnalogUseCase) Execute(ctx context.Context, in AnalogInput) (AnalogReport, error) {
	start := time.Now()
	report, err := u.execute(ctx, in)
	u.metrics.ObserveAnalysis("analog", statusLabel(err), time.Since(start))
	return report, err
}

func (u *AnalogUseCase) execute(ctx context.Context, in AnalogInput) (AnalogReport, error) {
	report := AnalogReport{Symbol: in.Symbol}
	if in.Symbol == "" {
		return report, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}

	filters, err := u.resolveFilters(in)
	if err != nil {
		return report, err
	}
	horizons := NormalizeHorizons(in.Horizons)
	if len(horizons) == 0 {
		horizons = NormalizeHorizons(u.cfg.Horizons)
	}
	policy := u.cfg.Policy
	if in.MinSamples > 0 {
		policy.MinSamples = in.MinSamples
	}

	series, err := u.provider.GetSeries(ctx, in.Symbol, in.AsOf, u.cfg.HistoryLimit)
	if err != nil {
		return report, fmt.Errorf("load series %s: %w", in.Symbol, err)
	}
	if err := series.Validate(); err != nil {
		return report, err
	}
	last, ok := series.Last()
	if !ok {
		return report, fmt.Errorf("load series %s: %w", in.Symbol, ErrSeriesNotFound)
	}

	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = last.Date
	}
	// 截斷至 asOf，歷史比對與遠期報酬都不使用之後的資料
	idx := series.IndexOf(asOf)
	if idx < 0 {
		return report, fmt.Errorf("%s %s: %w", in.Symbol, asOf.Format("2006-01-02"), ErrDateNotFound)
	}
	series = series.Until(series.Bars[idx].Date, 0)
	report.Market = series.Market
	report.AsOf = series.Bars[idx].Date

	current, warnings, err := u.builder.BuildSnapshot(series, report.AsOf, u.cfg.Lookback)
	if err != nil {
		return report, err
	}
	if err := current.Validate(); err != nil {
		return report, fmt.Errorf("snapshot %s %s: %w", in.Symbol, report.AsOf.Format("2006-01-02"), err)
	}
	report.Current = current
	for _, w := range warnings {
		u.log.Warn().Str("symbol", in.Symbol).Str("dimension", w.Dimension).Msg(w.Reason)
		report.Warnings = append(report.Warnings, w.String())
	}

	history := u.builder.BuildHistory(series, u.cfg.Lookback)
	// 最後一筆即為 asOf 本身
	if n := len(history); n > 0 && marketdata.SameDate(history[n-1].Date, report.AsOf) {
		history = history[:n-1]
	}

	outcome, matchErr := FindMatchesWithEscalation(history, current, filters, policy)
	report.Outcome = outcome
	u.metrics.ObserveMatches(len(outcome.Matches), outcome.Relaxed)
	if outcome.Relaxed {
		u.log.Info().
			Str("symbol", in.Symbol).
			Int("initial", outcome.InitialCount).
			Int("relaxed", len(outcome.Matches)).
			Float64("factor", policy.RelaxFactor).
			Msg("tolerances relaxed")
	}
	if matchErr != nil {
		report.Status = StatusInsufficientData
		report.Statistics = noDataStatistics(u.advisor, horizons)
		u.log.Warn().Str("symbol", in.Symbol).Err(matchErr).Msg("no historical precedent")
		return report, matchErr
	}

	matches := AttachForwardReturns(outcome.Matches, series, horizons)
	report.MatchDates = make([]time.Time, len(matches))
	for i, m := range matches {
		report.MatchDates[i] = m.Snapshot.Date
	}

	stats := Aggregate(matches, horizons)
	for i := range stats {
		stats[i].Advice = u.advisor.ForStatistics(stats[i])
	}

	if in.ApplyRegime {
		if err := u.applyRegime(&report, series, stats); err != nil {
			return report, err
		}
	}
	report.Statistics = stats
	report.Status = StatusOK
	return report, nil
}

func (u *AnalogUseCase) resolveFilters(in AnalogInput) (FilterSet, error) {
	var (
		fs  FilterSet
		err error
	)
	if in.Filters != nil {
		fs = *in.Filters
		if fs.ActiveCount() == 0 {
			err = errors.New("filter set has no active filter")
		} else {
			err = fs.Validate()
		}
	} else {
		fs, err = Preset(in.Preset, u.cfg.Tolerances)
	}
	if err != nil {
		return FilterSet{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fs, nil
}

func (u *AnalogUseCase) applyRegime(report *AnalogReport, series marketdata.Series, stats []domain.HorizonStatistics) error {
	if u.regimes == nil {
		return fmt.Errorf("regime classification is not configured")
	}
	res, err := u.regimes.ClassifySeries(series, report.AsOf)
	if err != nil {
		return fmt.Errorf("classify regime: %w", err)
	}
	report.Regime = &res
	factor, ok := u.cfg.Factors[res.Label]
	if !ok {
		factor = 1
	}
	for i := range stats {
		stats[i].Advice = AdjustForRegime(stats[i].Advice, res.Label, factor)
	}
	return nil
}

func noDataStatistics(advisor *Advisor, horizons []int) []domain.HorizonStatistics {
	out := make([]domain.HorizonStatistics, len(horizons))
	for i, h := range horizons {
		out[i] = domain.HorizonStatistics{Horizon: h}
		out[i].Advice = advisor.ForStatistics(out[i])
	}
	return out
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsNoMatches(err):
		return "no_matches"
	case domain.IsInsufficientHistory(err):
		return "insufficient_history"
	case errors.Is(err, ErrSeriesNotFound):
		return "not_found"
	}
	return "error"
}
