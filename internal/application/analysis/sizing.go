package analysis

import (
	"fmt"
	"math"
	"strings"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

const (
	baseBlendWeight  = 0.7
	kellyBlendWeight = 0.3
	// 調整幅度超過此值需附上警告
	regimeWarnThreshold = 0.2
)

// SizingConfig 為倉位建議的參數。
type SizingConfig struct {
	VarianceProxy float64 // 無樣本變異數時的 Kelly 分母
	VarianceFloor float64 // 樣本變異數下限
	LowConfidence float64 // 低於此信心值會附上警告
}

// DefaultSizingConfig 回傳預設倉位參數。
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		VarianceProxy: 0.04,
		VarianceFloor: 1e-4,
		LowConfidence: 0.3,
	}
}

// Advisor 將勝率、平均報酬與信心轉為建議倉位與訊號。
type Advisor struct {
	cfg SizingConfig
}

// NewAdvisor 建立倉位建議器，未設定的參數套用預設值。
func NewAdvisor(cfg SizingConfig) *Advisor {
	def := DefaultSizingConfig()
	if cfg.VarianceProxy <= 0 {
		cfg.VarianceProxy = def.VarianceProxy
	}
	if cfg.VarianceFloor <= 0 {
		cfg.VarianceFloor = def.VarianceFloor
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = def.LowConfidence
	}
	return &Advisor{cfg: cfg}
}

// Advise 以設定的變異數代理值計算建議倉位：0.7×勝率區間基礎倉位 + 0.3×Kelly 項。
func (a *Advisor) Advise(hitRate, meanReturn, confidence float64) domain.PositionAdvice {
	return a.advise(hitRate, meanReturn, a.cfg.VarianceProxy, confidence)
}

// AdviseWithVariance 以樣本變異數（不低於下限）取代代理值。
func (a *Advisor) AdviseWithVariance(hitRate, meanReturn, variance, confidence float64) domain.PositionAdvice {
	return a.advise(hitRate, meanReturn, math.Max(variance, a.cfg.VarianceFloor), confidence)
}

// ForStatistics 依持有期統計產生建議；沒有樣本時回傳 0 倉位與資料不足訊號。
func (a *Advisor) ForStatistics(s domain.HorizonStatistics) domain.PositionAdvice {
	if s.SampleSize == 0 {
		return domain.PositionAdvice{
			RecommendedPosition: 0,
			Signal:              domain.SignalNoData,
			Warning:             fmt.Sprintf("no analog has %d trading days of forward data", s.Horizon),
		}
	}
	if s.SampleSize < 2 {
		return a.Advise(s.HitRate, s.MeanReturn, s.Confidence)
	}
	return a.AdviseWithVariance(s.HitRate, s.MeanReturn, s.StdDev*s.StdDev, s.Confidence)
}

func (a *Advisor) advise(hitRate, meanReturn, variance, confidence float64) domain.PositionAdvice {
	kelly := 0.0
	if variance > 0 {
		kelly = clamp(meanReturn/variance, 0, 1)
	}
	position := clamp(baseBlendWeight*basePosition(hitRate)+kellyBlendWeight*kelly, 0, 1)

	advice := domain.PositionAdvice{
		RecommendedPosition: position,
		Signal:              SignalFor(position),
	}
	if confidence < a.cfg.LowConfidence {
		advice.Warning = fmt.Sprintf("low confidence %.2f: treat as observation only", confidence)
	}
	return advice
}

// basePosition 依勝率區間決定基礎倉位。
func basePosition(hitRate float64) float64 {
	switch {
	case hitRate > 0.75:
		return 0.8
	case hitRate > 0.6:
		return 0.6
	case hitRate >= 0.4:
		return 0.5
	case hitRate >= 0.3:
		return 0.3
	default:
		return 0.2
	}
}

// SignalFor 依混合後倉位決定訊號標籤。
func SignalFor(position float64) domain.Signal {
	switch {
	case position >= 0.75:
		return domain.SignalStrongBuy
	case position >= 0.55:
		return domain.SignalBuy
	case position >= 0.35:
		return domain.SignalHold
	default:
		return domain.SignalReduce
	}
}

// AdjustForRegime 以 regime 係數縮放倉位並重新決定訊號；
// 調整幅度超過 ±20% 時附上可讀的警告。
func AdjustForRegime(advice domain.PositionAdvice, label regime.Label, factor float64) domain.PositionAdvice {
	if advice.Signal == domain.SignalNoData {
		return advice
	}
	out := advice
	out.RecommendedPosition = clamp(advice.RecommendedPosition*factor, 0, 1)
	out.Signal = SignalFor(out.RecommendedPosition)
	if math.Abs(factor-1) > regimeWarnThreshold {
		msg := fmt.Sprintf("market regime %s scales position by %.2fx (%.0f%% -> %.0f%%)",
			label, factor, advice.RecommendedPosition*100, out.RecommendedPosition*100)
		out.Warning = joinWarnings(advice.Warning, msg)
	}
	return out
}

func joinWarnings(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
