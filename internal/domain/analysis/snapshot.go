package analysis

import (
	"fmt"
	"math"
	"time"
)

// MARegime 表示多條均線的排列狀態。
type MARegime string

const (
	MABullishAligned MARegime = "bullish-aligned"
	MABearishAligned MARegime = "bearish-aligned"
	MAMixed          MARegime = "mixed"
)

// Dimension 為快照中的單一比對維度。
type Dimension string

const (
	DimPrice       Dimension = "price"
	DimVolumeRatio Dimension = "volume_ratio"
	DimRSI         Dimension = "rsi"
	DimMARegime    Dimension = "ma_regime"
	DimHigh52w     Dimension = "pct_from_52w_high"
	DimValuation   Dimension = "valuation_percentile"
	DimCapitalFlow Dimension = "capital_flow"
	DimBreadth     Dimension = "breadth_ratio"
	DimVolatility  Dimension = "volatility"
	DimSlope60     Dimension = "slope_60d"
	DimSlope120    Dimension = "slope_120d"
	DimSentiment   Dimension = "sentiment"
)

// MetricSnapshot 為「標的 × 日期」的多維指紋。
// 指標欄位皆可為 nil；nil 代表該維度不參與比對或評分，絕不視為 0。
type MetricSnapshot struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`

	// 技術面
	VolumeRatio    *float64  `json:"volume_ratio,omitempty"` // 當日量 / N 日均量
	RSI            *float64  `json:"rsi,omitempty"`          // 0~100
	MARegime       *MARegime `json:"ma_regime,omitempty"`
	PctFrom52wHigh *float64  `json:"pct_from_52w_high,omitempty"` // <= 0，-0.03 即 -3%

	// 次要來源
	ValuationPercentile *float64 `json:"valuation_percentile,omitempty"` // 0~1
	CapitalFlow5d       *float64 `json:"capital_flow_5d,omitempty"`
	CapitalFlow20d      *float64 `json:"capital_flow_20d,omitempty"`
	BreadthRatio        *float64 `json:"breadth_ratio,omitempty"`
	SentimentScore      *float64 `json:"sentiment_score,omitempty"` // -1~1

	// 波動與斜率（年化）
	VolatilityAnnualized *float64 `json:"volatility_annualized,omitempty"`
	Slope60dAnnualized   *float64 `json:"slope_60d_annualized,omitempty"`
	Slope120dAnnualized  *float64 `json:"slope_120d_annualized,omitempty"`
}

// Validate 檢查快照的值域不變式。
func (s MetricSnapshot) Validate() error {
	if s.Date.IsZero() {
		return fmt.Errorf("snapshot date is required")
	}
	if !isFinite(s.Price) {
		return fmt.Errorf("price must be finite")
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"volume_ratio", s.VolumeRatio},
		{"rsi", s.RSI},
		{"pct_from_52w_high", s.PctFrom52wHigh},
		{"valuation_percentile", s.ValuationPercentile},
		{"capital_flow_5d", s.CapitalFlow5d},
		{"capital_flow_20d", s.CapitalFlow20d},
		{"breadth_ratio", s.BreadthRatio},
		{"sentiment_score", s.SentimentScore},
		{"volatility_annualized", s.VolatilityAnnualized},
		{"slope_60d_annualized", s.Slope60dAnnualized},
		{"slope_120d_annualized", s.Slope120dAnnualized},
	} {
		if f.v != nil && !isFinite(*f.v) {
			return fmt.Errorf("%s must be finite", f.name)
		}
	}
	if s.RSI != nil && (*s.RSI < 0 || *s.RSI > 100) {
		return fmt.Errorf("rsi %.4f out of range [0,100]", *s.RSI)
	}
	if s.PctFrom52wHigh != nil && *s.PctFrom52wHigh > 0 {
		return fmt.Errorf("pct_from_52w_high %.4f must be <= 0", *s.PctFrom52wHigh)
	}
	if s.ValuationPercentile != nil && (*s.ValuationPercentile < 0 || *s.ValuationPercentile > 1) {
		return fmt.Errorf("valuation_percentile %.4f out of range [0,1]", *s.ValuationPercentile)
	}
	if s.MARegime != nil {
		switch *s.MARegime {
		case MABullishAligned, MABearishAligned, MAMixed:
		default:
			return fmt.Errorf("unknown ma_regime %q", *s.MARegime)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
