package regime

import (
	"math"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

// Step 為區間規則的一段：原始值 >= Min 時得到 Score。
type Step struct {
	Min   float64
	Score float64
}

// BandRule 依原始值所在區間給子分數，Steps 須依 Min 遞減排列；全部不符時回傳 Floor。
type BandRule struct {
	Steps []Step
	Floor float64
}

// Score 回傳原始值對應的子分數。
func (r BandRule) Score(v float64) float64 {
	for _, s := range r.Steps {
		if v >= s.Min {
			return s.Score
		}
	}
	return r.Floor
}

// SlopeRule 為動能斜率的子分數規則，可依 z-score 與加速度微調。
type SlopeRule struct {
	Healthy    float64 // [0, FastFrom)
	Fast       float64 // [FastFrom, HotFrom]
	Overheated float64 // > HotFrom
	FastFrom   float64
	HotFrom    float64
	// 負斜率時 clamp(NegativeScale*slope, -1, 0)
	NegativeScale float64
	// 微調幅度上限
	MaxAdjust float64
}

// DefaultSlopeRule 回傳預設斜率規則。
func DefaultSlopeRule() SlopeRule {
	return SlopeRule{
		Healthy:       0.7,
		Fast:          0.5,
		Overheated:    0.2,
		FastFrom:      0.2,
		HotFrom:       0.4,
		NegativeScale: 2.5,
		MaxAdjust:     0.4,
	}
}

// Score 計算斜率子分數，結果落在 [-1, 1]。
func (r SlopeRule) Score(in SlopeInput) float64 {
	s := in.Annualized
	var base float64
	switch {
	case s < 0:
		base = clamp(r.NegativeScale*s, -1, 0)
	case s < r.FastFrom:
		base = r.Healthy
	case s <= r.HotFrom:
		base = r.Fast
	default:
		base = r.Overheated
	}

	adj := 0.0
	if in.ZScore != nil {
		z := *in.ZScore
		switch {
		case z >= 2:
			adj -= 0.2
		case z >= 1:
			adj -= 0.1
		case z <= -2:
			adj += 0.2
		case z <= -1:
			adj += 0.1
		}
	}
	if in.Acceleration != nil {
		a := *in.Acceleration
		switch {
		case a >= 0.2 && s > r.HotFrom:
			// 過熱時再加速
			adj -= 0.2
		case a >= 0.2:
			adj += 0.1
		case a <= -0.2:
			adj -= 0.1
		}
	}
	return clamp(base+clamp(adj, -r.MaxAdjust, r.MaxAdjust), -1, 1)
}

func flowRule(edge float64) BandRule {
	return BandRule{
		Steps: []Step{{edge, 0.8}, {edge / 3, 0.4}, {-edge / 3, 0}, {-edge, -0.4}},
		Floor: -0.8,
	}
}

// DefaultRules 回傳各維度的預設區間規則（動能斜率另由 SlopeRule 處理）。
func DefaultRules() map[regime.Dimension]BandRule {
	return map[regime.Dimension]BandRule{
		regime.DimTrend: {
			Steps: []Step{{0.75, 0.8}, {0.25, 0.5}, {-0.25, 0}, {-0.75, -0.5}},
			Floor: -0.8,
		},
		regime.DimShortTermReturn: {
			Steps: []Step{{0.08, 0.8}, {0.03, 0.5}, {-0.03, 0}, {-0.08, -0.5}},
			Floor: -0.8,
		},
		// 估值分位越高越偏空
		regime.DimValuation: {
			Steps: []Step{{0.8, -0.8}, {0.6, -0.4}, {0.4, 0}, {0.2, 0.4}},
			Floor: 0.8,
		},
		regime.DimCapitalFlow:    flowRule(0.3),
		regime.DimLargeOrderFlow: flowRule(0.3),
		regime.DimInstitutional:  flowRule(0.6),
		regime.DimSentiment: {
			Steps: []Step{{0.5, 0.7}, {0.2, 0.3}, {-0.2, 0}, {-0.5, -0.3}},
			Floor: -0.7,
		},
		regime.DimBreadth: {
			Steps: []Step{{0.65, 0.8}, {0.55, 0.4}, {0.45, 0}, {0.35, -0.4}},
			Floor: -0.8,
		},
		regime.DimMargin: {
			Steps: []Step{{0.05, 0.6}, {0.01, 0.3}, {-0.01, 0}, {-0.05, -0.3}},
			Floor: -0.6,
		},
		regime.DimVolatility: {
			Steps: []Step{{0.4, -0.8}, {0.3, -0.4}, {0.15, 0}},
			Floor: 0.3,
		},
		regime.DimVolume: {
			Steps: []Step{{1.5, 0.6}, {1.1, 0.3}, {0.9, 0}, {0.7, -0.3}},
			Floor: -0.5,
		},
		regime.DimTechnical: {
			Steps: []Step{{70, 0.6}, {55, 0.3}, {45, 0}, {30, -0.3}},
			Floor: -0.6,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
