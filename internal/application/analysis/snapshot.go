package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

// ErrDateNotFound 表示 as-of 日期不在序列中。
var ErrDateNotFound = errors.New("as-of date not found in series")

// BuilderConfig 定義各指標視窗與必須計算的維度。
type BuilderConfig struct {
	RSIPeriod        int
	VolumeWindow     int
	MAShort          int
	MALong           int
	MATrendLag       int
	High52wWindow    int
	VolatilityWindow int
	SlopeShort       int
	SlopeLong        int
	ValuationMinObs  int
	FlowShort        int
	FlowLong         int

	// Dimensions 為必須計算的技術維度；視窗不足時整個快照失敗。
	// 未列出的技術維度在資料足夠時仍會計算。
	Dimensions []domain.Dimension
}

// DefaultBuilderConfig 回傳預設視窗設定，要求全部技術維度。
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		RSIPeriod:        14,
		VolumeWindow:     20,
		MAShort:          20,
		MALong:           60,
		MATrendLag:       5,
		High52wWindow:    252,
		VolatilityWindow: 20,
		SlopeShort:       60,
		SlopeLong:        120,
		ValuationMinObs:  60,
		FlowShort:        5,
		FlowLong:         20,
		Dimensions:       TechnicalDimensions(),
	}
}

// TechnicalDimensions 為只依賴價量即可計算的維度。
func TechnicalDimensions() []domain.Dimension {
	return []domain.Dimension{
		domain.DimVolumeRatio,
		domain.DimRSI,
		domain.DimMARegime,
		domain.DimHigh52w,
		domain.DimVolatility,
		domain.DimSlope60,
		domain.DimSlope120,
	}
}

// Builder 將價量序列轉為 MetricSnapshot，為純函式，不保留狀態。
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder 建立快照產生器，未設定的視窗套用預設值。
func NewBuilder(cfg BuilderConfig) *Builder {
	def := DefaultBuilderConfig()
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&cfg.RSIPeriod, def.RSIPeriod)
	fill(&cfg.VolumeWindow, def.VolumeWindow)
	fill(&cfg.MAShort, def.MAShort)
	fill(&cfg.MALong, def.MALong)
	fill(&cfg.MATrendLag, def.MATrendLag)
	fill(&cfg.High52wWindow, def.High52wWindow)
	fill(&cfg.VolatilityWindow, def.VolatilityWindow)
	fill(&cfg.SlopeShort, def.SlopeShort)
	fill(&cfg.SlopeLong, def.SlopeLong)
	fill(&cfg.ValuationMinObs, def.ValuationMinObs)
	fill(&cfg.FlowShort, def.FlowShort)
	fill(&cfg.FlowLong, def.FlowLong)
	if cfg.Dimensions == nil {
		cfg.Dimensions = def.Dimensions
	}
	return &Builder{cfg: cfg}
}

// Config 回傳生效中的設定。
func (b *Builder) Config() BuilderConfig {
	return b.cfg
}

// Required 回傳計算某技術維度所需的最少資料點；非技術維度回傳 0。
func (b *Builder) Required(dim domain.Dimension) int {
	switch dim {
	case domain.DimPrice:
		return 1
	case domain.DimRSI:
		return b.cfg.RSIPeriod + 1
	case domain.DimVolumeRatio:
		return b.cfg.VolumeWindow + 1
	case domain.DimMARegime:
		return maxInt(b.cfg.MAShort, b.cfg.MALong) + b.cfg.MATrendLag
	case domain.DimHigh52w:
		return b.cfg.High52wWindow
	case domain.DimVolatility:
		return b.cfg.VolatilityWindow + 1
	case domain.DimSlope60:
		return b.cfg.SlopeShort
	case domain.DimSlope120:
		return b.cfg.SlopeLong
	}
	return 0
}

// MinPoints 回傳所有必要維度中最長的視窗。
func (b *Builder) MinPoints() int {
	n := 1
	for _, d := range b.cfg.Dimensions {
		n = maxInt(n, b.Required(d))
	}
	return n
}

// BuildSnapshot 以 asOf（含）往前最多 lookback 筆資料建立快照；lookback <= 0 表示使用全部資料。
// 必要維度資料不足時回傳 *InsufficientHistoryError；次要來源缺漏只會以警告回報。
func (b *Builder) BuildSnapshot(series marketdata.Series, asOf time.Time, lookback int) (domain.MetricSnapshot, []domain.MissingDimensionWarning, error) {
	idx := series.IndexOf(asOf)
	if idx < 0 {
		return domain.MetricSnapshot{}, nil, fmt.Errorf("%s %s: %w", series.Symbol, asOf.Format("2006-01-02"), ErrDateNotFound)
	}
	window := trailing(series.Bars[:idx+1], lookback)
	for _, d := range b.cfg.Dimensions {
		if need := b.Required(d); len(window) < need {
			return domain.MetricSnapshot{}, nil, &domain.InsufficientHistoryError{Dimension: d, Required: need, Available: len(window)}
		}
	}
	snap, warnings := b.build(window)
	return snap, warnings, nil
}

// BuildHistory 為每個資料足夠的交易日建立快照（依日期遞增），前段資料不足的日期直接略過。
func (b *Builder) BuildHistory(series marketdata.Series, lookback int) []domain.MetricSnapshot {
	need := b.MinPoints()
	if lookback > 0 && lookback < need {
		return nil
	}
	out := make([]domain.MetricSnapshot, 0, maxInt(0, len(series.Bars)-need+1))
	for i := need - 1; i < len(series.Bars); i++ {
		snap, _ := b.build(trailing(series.Bars[:i+1], lookback))
		out = append(out, snap)
	}
	return out
}

func (b *Builder) build(bars []marketdata.Bar) (domain.MetricSnapshot, []domain.MissingDimensionWarning) {
	cfg := b.cfg
	last := bars[len(bars)-1]
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	snap := domain.MetricSnapshot{Date: last.Date, Price: last.Close}
	var warnings []domain.MissingDimensionWarning
	warn := func(d domain.Dimension, reason string) {
		warnings = append(warnings, domain.MissingDimensionWarning{Dimension: string(d), Reason: reason})
	}

	if v, ok := WilderRSI(closes, cfg.RSIPeriod); ok {
		snap.RSI = &v
	}

	if len(bars) >= b.Required(domain.DimVolumeRatio) {
		var sum float64
		for i := len(bars) - 1 - cfg.VolumeWindow; i < len(bars)-1; i++ {
			sum += bars[i].Volume
		}
		if avg := sum / float64(cfg.VolumeWindow); avg > 0 {
			snap.VolumeRatio = ptr(last.Volume / avg)
		} else {
			warn(domain.DimVolumeRatio, "no volume in averaging window")
		}
	}

	if len(bars) >= b.Required(domain.DimMARegime) {
		if r, ok := ClassifyMA(closes, cfg.MAShort, cfg.MALong, cfg.MATrendLag); ok {
			snap.MARegime = &r
		}
	}

	if len(bars) >= cfg.High52wWindow {
		high := 0.0
		for _, c := range closes[len(closes)-cfg.High52wWindow:] {
			high = math.Max(high, c)
		}
		if high > 0 {
			snap.PctFrom52wHigh = ptr(math.Min(0, last.Close/high-1))
		}
	}

	if v, ok := AnnualizedVolatility(closes, cfg.VolatilityWindow); ok {
		snap.VolatilityAnnualized = &v
	}
	if v, ok := LogRegressionSlope(closes, cfg.SlopeShort); ok {
		snap.Slope60dAnnualized = &v
	}
	if v, ok := LogRegressionSlope(closes, cfg.SlopeLong); ok {
		snap.Slope120dAnnualized = &v
	}

	// 次要來源：缺漏時設 nil 並記錄警告
	if v, reason := valuationPercentile(bars, cfg.ValuationMinObs); reason == "" {
		snap.ValuationPercentile = &v
	} else {
		warn(domain.DimValuation, reason)
	}

	flow5, ok5 := windowSum(bars, cfg.FlowShort, func(b marketdata.Bar) *float64 { return b.NetFlow })
	flow20, ok20 := windowSum(bars, cfg.FlowLong, func(b marketdata.Bar) *float64 { return b.NetFlow })
	if ok5 {
		snap.CapitalFlow5d = &flow5
	}
	if ok20 {
		snap.CapitalFlow20d = &flow20
	}
	if !ok5 || !ok20 {
		warn(domain.DimCapitalFlow, "net flow missing in window")
	}

	if last.Breadth != nil && last.Breadth.Advancers+last.Breadth.Decliners > 0 {
		total := float64(last.Breadth.Advancers + last.Breadth.Decliners)
		snap.BreadthRatio = ptr(float64(last.Breadth.Advancers) / total)
	} else {
		warn(domain.DimBreadth, "no breadth counts")
	}

	if last.Extremes != nil {
		snap.SentimentScore = ptr(SentimentScore(*last.Extremes))
	} else {
		warn(domain.DimSentiment, "no limit-up/limit-down counts")
	}

	return snap, warnings
}

// SentimentScore 為 (漲停-跌停)/(漲停+跌停)，兩者皆 0 時為 0。
func SentimentScore(e marketdata.ExtremeCount) float64 {
	total := e.LimitUp + e.LimitDown
	if total <= 0 {
		return 0
	}
	return float64(e.LimitUp-e.LimitDown) / float64(total)
}

func valuationPercentile(bars []marketdata.Bar, minObs int) (float64, string) {
	last := bars[len(bars)-1]
	if last.Valuation == nil {
		return 0, "no valuation on as-of date"
	}
	values := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Valuation != nil {
			values = append(values, *b.Valuation)
		}
	}
	if len(values) < minObs {
		return 0, fmt.Sprintf("only %d valuation observations, need %d", len(values), minObs)
	}
	return PercentRank(values, *last.Valuation), ""
}

// windowSum 加總最後 n 筆的欄位值；任何一筆缺漏即視為無法計算。
func windowSum(bars []marketdata.Bar, n int, field func(marketdata.Bar) *float64) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		v := field(b)
		if v == nil {
			return 0, false
		}
		sum += *v
	}
	return sum, true
}

func trailing(bars []marketdata.Bar, lookback int) []marketdata.Bar {
	if lookback > 0 && len(bars) > lookback {
		return bars[len(bars)-lookback:]
	}
	return bars
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
