package regime

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	analysisDomain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

// 由序列推導輸入時使用的視窗。
const (
	flowWindow        = 20
	returnWindow      = 20
	marginWindow      = 20
	volumeShortWindow = 5
	volumeLongWindow  = 20
	volatilityWindow  = 20
	rsiPeriod         = 14
	slopeShort        = 60
	slopeLong         = 120
	slopeZWindow      = 60
	valuationWindow   = 756
	valuationMinObs   = 60
)

// momentum_slope 的附加欄位。
const (
	keySlopeZScore       = "momentum_slope_zscore"
	keySlopeAcceleration = "momentum_slope_acceleration"
)

// SlopeInput 為動能斜率的原始值；ZScore 與 Acceleration 可省略。
type SlopeInput struct {
	Annualized   float64  `json:"annualized"`
	ZScore       *float64 `json:"zscore,omitempty"`
	Acceleration *float64 `json:"acceleration,omitempty"`
}

// Inputs 為各維度的原始值，nil 代表資料缺漏。
type Inputs struct {
	Trend           *float64    `json:"trend,omitempty"`
	ShortTermReturn *float64    `json:"short_term_return,omitempty"`
	Valuation       *float64    `json:"valuation,omitempty"`
	CapitalFlow     *float64    `json:"capital_flow,omitempty"`
	Sentiment       *float64    `json:"sentiment,omitempty"`
	Breadth         *float64    `json:"breadth,omitempty"`
	Margin          *float64    `json:"margin,omitempty"`
	LargeOrderFlow  *float64    `json:"large_order_flow,omitempty"`
	Institutional   *float64    `json:"institutional,omitempty"`
	Volatility      *float64    `json:"volatility,omitempty"`
	Volume          *float64    `json:"volume,omitempty"`
	Technical       *float64    `json:"technical,omitempty"`
	MomentumSlope   *SlopeInput `json:"momentum_slope,omitempty"`
}

func (in *Inputs) field(d regime.Dimension) **float64 {
	switch d {
	case regime.DimTrend:
		return &in.Trend
	case regime.DimShortTermReturn:
		return &in.ShortTermReturn
	case regime.DimValuation:
		return &in.Valuation
	case regime.DimCapitalFlow:
		return &in.CapitalFlow
	case regime.DimSentiment:
		return &in.Sentiment
	case regime.DimBreadth:
		return &in.Breadth
	case regime.DimMargin:
		return &in.Margin
	case regime.DimLargeOrderFlow:
		return &in.LargeOrderFlow
	case regime.DimInstitutional:
		return &in.Institutional
	case regime.DimVolatility:
		return &in.Volatility
	case regime.DimVolume:
		return &in.Volume
	case regime.DimTechnical:
		return &in.Technical
	}
	return nil
}

// Raw 回傳維度的原始值；動能斜率回傳年化斜率。
func (in Inputs) Raw(d regime.Dimension) (float64, bool) {
	if d == regime.DimMomentumSlope {
		if in.MomentumSlope == nil {
			return 0, false
		}
		return in.MomentumSlope.Annualized, true
	}
	p := in.field(d)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// InputsFromMap 解析 {維度: 原始值}；未知的鍵回傳錯誤。
func InputsFromMap(values map[string]float64) (Inputs, error) {
	var in Inputs
	var unknown []string
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Inputs{}, fmt.Errorf("dimension %s: value must be finite", k)
		}
		d := regime.Dimension(k)
		switch {
		case k == keySlopeZScore || k == keySlopeAcceleration:
			continue
		case d == regime.DimMomentumSlope:
			in.MomentumSlope = &SlopeInput{Annualized: v}
		case d.IsKnown():
			*in.field(d) = ptr(v)
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Inputs{}, fmt.Errorf("unknown dimensions: %s", strings.Join(unknown, ", "))
	}

	z, hasZ := values[keySlopeZScore]
	acc, hasAcc := values[keySlopeAcceleration]
	if hasZ || hasAcc {
		if in.MomentumSlope == nil {
			return Inputs{}, fmt.Errorf("%s requires %s", keySlopeZScore, regime.DimMomentumSlope)
		}
		if hasZ {
			in.MomentumSlope.ZScore = ptr(z)
		}
		if hasAcc {
			in.MomentumSlope.Acceleration = ptr(acc)
		}
	}
	return in, nil
}

// InputsFromSeries 由指數序列推導截至 asOf（含）的各維度原始值。
// 資料不足或來源缺漏的維度保持 nil，並以警告說明原因。
func InputsFromSeries(series marketdata.Series, asOf time.Time) (Inputs, []analysisDomain.MissingDimensionWarning, error) {
	idx := series.IndexOf(asOf)
	if idx < 0 {
		return Inputs{}, nil, fmt.Errorf("%s %s: %w", series.Symbol, asOf.Format("2006-01-02"), analysis.ErrDateNotFound)
	}
	bars := series.Bars[:idx+1]
	last := bars[len(bars)-1]
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var in Inputs
	var warnings []analysisDomain.MissingDimensionWarning
	missing := func(d regime.Dimension, reason string) {
		warnings = append(warnings, analysisDomain.MissingDimensionWarning{Dimension: string(d), Reason: reason})
	}

	if r, ok := analysis.ClassifyMA(closes, 20, 60, 5); ok {
		ma20, _ := analysis.SMA(closes, len(closes)-1, 20)
		in.Trend = ptr(trendAlignment(r, last.Close, ma20))
	} else {
		missing(regime.DimTrend, "not enough bars for moving averages")
	}

	if v, ok := analysis.PctReturn(closes, returnWindow); ok {
		in.ShortTermReturn = &v
	} else {
		missing(regime.DimShortTermReturn, "not enough bars for 20d return")
	}

	if v, reason := valuationPercentile(bars); reason == "" {
		in.Valuation = &v
	} else {
		missing(regime.DimValuation, reason)
	}

	flows := []struct {
		dim   regime.Dimension
		dst   **float64
		field func(marketdata.Bar) *float64
	}{
		{regime.DimCapitalFlow, &in.CapitalFlow, func(b marketdata.Bar) *float64 { return b.NetFlow }},
		{regime.DimLargeOrderFlow, &in.LargeOrderFlow, func(b marketdata.Bar) *float64 { return b.LargeOrderNet }},
		{regime.DimInstitutional, &in.Institutional, func(b marketdata.Bar) *float64 { return b.InstitutionalNet }},
	}
	for _, f := range flows {
		if v, ok := flowRatio(bars, flowWindow, f.field); ok {
			*f.dst = &v
		} else {
			missing(f.dim, "flow data missing in 20d window")
		}
	}

	if v, ok := marginChange(bars, marginWindow); ok {
		in.Margin = &v
	} else {
		missing(regime.DimMargin, "margin balance missing")
	}

	if last.Extremes != nil {
		in.Sentiment = ptr(analysis.SentimentScore(*last.Extremes))
	} else {
		missing(regime.DimSentiment, "no limit-up/limit-down counts")
	}

	if last.Breadth != nil && last.Breadth.Advancers+last.Breadth.Decliners > 0 {
		total := float64(last.Breadth.Advancers + last.Breadth.Decliners)
		in.Breadth = ptr(float64(last.Breadth.Advancers) / total)
	} else {
		missing(regime.DimBreadth, "no breadth counts")
	}

	if v, ok := analysis.AnnualizedVolatility(closes, volatilityWindow); ok {
		in.Volatility = &v
	} else {
		missing(regime.DimVolatility, "not enough bars for volatility")
	}

	if v, ok := volumeRatio(bars); ok {
		in.Volume = &v
	} else {
		missing(regime.DimVolume, "not enough volume history")
	}

	if v, ok := analysis.WilderRSI(closes, rsiPeriod); ok {
		in.Technical = &v
	} else {
		missing(regime.DimTechnical, "not enough bars for RSI")
	}

	if s, ok := momentumSlope(closes); ok {
		in.MomentumSlope = &s
	} else {
		missing(regime.DimMomentumSlope, "not enough bars for 60d slope")
	}

	return in, warnings, nil
}

// trendAlignment 將均線排列與收盤相對 MA20 的位置轉為 -1~1。
func trendAlignment(r analysisDomain.MARegime, price, ma20 float64) float64 {
	switch r {
	case analysisDomain.MABullishAligned:
		if price > ma20 {
			return 1
		}
		return 0.5
	case analysisDomain.MABearishAligned:
		if price < ma20 {
			return -1
		}
		return -0.5
	}
	return 0
}

func valuationPercentile(bars []marketdata.Bar) (float64, string) {
	last := bars[len(bars)-1]
	if last.Valuation == nil {
		return 0, "no valuation on as-of date"
	}
	start := 0
	if len(bars) > valuationWindow {
		start = len(bars) - valuationWindow
	}
	var values []float64
	for _, b := range bars[start:] {
		if b.Valuation != nil {
			values = append(values, *b.Valuation)
		}
	}
	if len(values) < valuationMinObs {
		return 0, fmt.Sprintf("only %d valuation observations, need %d", len(values), valuationMinObs)
	}
	return analysis.PercentRank(values, *last.Valuation), ""
}

// flowRatio 為 n 日淨流入 ÷ n 日流量絕對值總和，落在 [-1, 1]。
func flowRatio(bars []marketdata.Bar, n int, field func(marketdata.Bar) *float64) (float64, bool) {
	if len(bars) < n {
		return 0, false
	}
	var net, gross float64
	for _, b := range bars[len(bars)-n:] {
		v := field(b)
		if v == nil {
			return 0, false
		}
		net += *v
		gross += math.Abs(*v)
	}
	if gross == 0 {
		return 0, true
	}
	return net / gross, true
}

func marginChange(bars []marketdata.Bar, n int) (float64, bool) {
	if len(bars) < n+1 {
		return 0, false
	}
	cur := bars[len(bars)-1].MarginBalance
	prev := bars[len(bars)-1-n].MarginBalance
	if cur == nil || prev == nil || *prev <= 0 {
		return 0, false
	}
	return *cur / *prev - 1, true
}

func volumeRatio(bars []marketdata.Bar) (float64, bool) {
	if len(bars) < volumeLongWindow {
		return 0, false
	}
	avg := func(n int) float64 {
		sum := 0.0
		for _, b := range bars[len(bars)-n:] {
			sum += b.Volume
		}
		return sum / float64(n)
	}
	long := avg(volumeLongWindow)
	if long <= 0 {
		return 0, false
	}
	return avg(volumeShortWindow) / long, true
}

// momentumSlope 計算 60 日斜率、相對近 60 個斜率值的 z-score，以及 60 日與 120 日斜率差。
func momentumSlope(closes []float64) (SlopeInput, bool) {
	cur, ok := analysis.LogRegressionSlope(closes, slopeShort)
	if !ok {
		return SlopeInput{}, false
	}
	out := SlopeInput{Annualized: cur}

	if need := slopeShort + slopeZWindow - 1; len(closes) >= need {
		// 最近 slopeZWindow 個視窗結尾的斜率
		hist, ok := analysis.LogRegressionSlopes(closes[len(closes)-need:], slopeShort)
		if mean, std := analysis.MeanStd(hist); ok && std > 0 {
			out.ZScore = ptr((cur - mean) / std)
		}
	}
	if long, ok := analysis.LogRegressionSlope(closes, slopeLong); ok {
		out.Acceleration = ptr(cur - long)
	}
	return out, true
}

func ptr(v float64) *float64 { return &v }
