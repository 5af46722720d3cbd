package analysis

import (
	"math"

	"github.com/markcheno/go-talib"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

// TradingDaysPerYear 為年化換算使用的交易日數。
const TradingDaysPerYear = 252

// SMA 回傳 values[end-window+1 .. end] 的簡單平均。
func SMA(values []float64, end, window int) (float64, bool) {
	if window <= 0 || end < window-1 || end >= len(values) {
		return 0, false
	}
	return finite(talib.Sma(values[:end+1], window)[end])
}

// WilderRSI 以 Wilder 平滑法計算最後一點的 RSI，需要 period+1 筆收盤價。
func WilderRSI(closes []float64, period int) (float64, bool) {
	if period < 2 || len(closes) < period+1 {
		return 0, false
	}
	// 完全沒有漲跌時 talib 回傳 0，此處視為中性
	if flat(closes) {
		return 50, true
	}
	v, ok := finite(talib.Rsi(closes, period)[len(closes)-1])
	if !ok {
		return 0, false
	}
	return clamp(v, 0, 100), true
}

// LogRegressionSlope 對最後 window 筆 ln(價格) 做最小平方法迴歸，
// 回傳年化斜率 exp(b*252)-1。
func LogRegressionSlope(closes []float64, window int) (float64, bool) {
	if window < 2 || len(closes) < window {
		return 0, false
	}
	slopes, ok := LogRegressionSlopes(closes[len(closes)-window:], window)
	if !ok {
		return 0, false
	}
	return slopes[len(slopes)-1], true
}

// LogRegressionSlopes 回傳每個完整視窗結尾的年化斜率，共 len(closes)-window+1 筆。
// 任一價格非正或非有限值時回傳 false。
func LogRegressionSlopes(closes []float64, window int) ([]float64, bool) {
	if window < 2 || len(closes) < window {
		return nil, false
	}
	logs := make([]float64, len(closes))
	for i, p := range closes {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, false
		}
		logs[i] = math.Log(p)
	}
	raw := talib.LinearRegSlope(logs, window)
	out := make([]float64, 0, len(closes)-window+1)
	for _, b := range raw[window-1:] {
		v, ok := finite(math.Exp(b*TradingDaysPerYear) - 1)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// AnnualizedVolatility 為最後 window 個對數報酬的樣本標準差 × √252，需要 window+1 筆。
func AnnualizedVolatility(closes []float64, window int) (float64, bool) {
	if window < 2 || len(closes) < window+1 {
		return 0, false
	}
	rets := make([]float64, 0, window)
	for i := len(closes) - window; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			return 0, false
		}
		rets = append(rets, math.Log(cur/prev))
	}
	_, std := MeanStd(rets)
	return std * math.Sqrt(TradingDaysPerYear), true
}

// ClassifyMA 依短/長均線的相對位置與 lag 日前的變化判斷均線排列。
func ClassifyMA(closes []float64, short, long, lag int) (domain.MARegime, bool) {
	end := len(closes) - 1
	prev := end - lag
	if short <= 0 || long <= 0 || lag < 0 || prev < maxInt(short, long)-1 {
		return "", false
	}
	shortMA := talib.Sma(closes, short)
	longMA := talib.Sma(closes, long)
	sNow, ok1 := finite(shortMA[end])
	lNow, ok2 := finite(longMA[end])
	sPrev, ok3 := finite(shortMA[prev])
	lPrev, ok4 := finite(longMA[prev])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return "", false
	}
	switch {
	case sNow > lNow && sNow > sPrev && lNow > lPrev:
		return domain.MABullishAligned, true
	case sNow < lNow && sNow < sPrev && lNow < lPrev:
		return domain.MABearishAligned, true
	default:
		return domain.MAMixed, true
	}
}

// PctReturn 回傳 window 日報酬率。
func PctReturn(closes []float64, window int) (float64, bool) {
	if window <= 0 || len(closes) < window+1 {
		return 0, false
	}
	base := closes[len(closes)-1-window]
	if base == 0 {
		return 0, false
	}
	return closes[len(closes)-1]/base - 1, true
}

// PercentRank 回傳 values 中小於等於 v 的比例。
func PercentRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, x := range values {
		if x <= v {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

// MeanStd 回傳平均與樣本標準差（n-1）；少於兩筆時標準差為 0。
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}

// Percentile 以線性內插計算已排序切片的 p 分位（0~100）。
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func flat(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T { return &v }
