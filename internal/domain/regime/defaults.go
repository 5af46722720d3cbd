package regime

import "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"

// DefaultWeights 回傳各市場預設權重表的複本。
// A 股支援全部 13 個維度；港股、美股缺少漲跌停與部分資金資料。
func DefaultWeights(m marketdata.Market) WeightTable {
	switch m {
	case marketdata.MarketHK:
		return WeightTable{
			DimTrend:           0.16,
			DimShortTermReturn: 0.10,
			DimValuation:       0.12,
			DimCapitalFlow:     0.14, // 南向資金
			DimBreadth:         0.08,
			DimLargeOrderFlow:  0.08,
			DimVolatility:      0.08,
			DimVolume:          0.07,
			DimTechnical:       0.07,
			DimMomentumSlope:   0.10,
		}
	case marketdata.MarketUS:
		return WeightTable{
			DimTrend:           0.20,
			DimShortTermReturn: 0.12,
			DimValuation:       0.15,
			DimCapitalFlow:     0.10, // 基金流向
			DimBreadth:         0.10,
			DimVolatility:      0.10,
			DimVolume:          0.07,
			DimTechnical:       0.06,
			DimMomentumSlope:   0.10,
		}
	default:
		return WeightTable{
			DimTrend:           0.14,
			DimShortTermReturn: 0.09,
			DimValuation:       0.11,
			DimCapitalFlow:     0.09,
			DimSentiment:       0.07,
			DimBreadth:         0.07,
			DimMargin:          0.07,
			DimLargeOrderFlow:  0.09,
			DimInstitutional:   0.05,
			DimVolatility:      0.05,
			DimVolume:          0.05,
			DimTechnical:       0.04,
			DimMomentumSlope:   0.08,
		}
	}
}

// DefaultBands 回傳各 regime 的預設倉位區間。
func DefaultBands() map[Label]PositionBand {
	return map[Label]PositionBand{
		LabelBullTop:     {Min: 0.4, Center: 0.5, Max: 0.6},
		LabelBullMid:     {Min: 0.6, Center: 0.7, Max: 0.8},
		LabelOscillating: {Min: 0.5, Center: 0.6, Max: 0.7},
		LabelBearRebound: {Min: 0.4, Center: 0.5, Max: 0.6},
		LabelBearDecline: {Min: 0.3, Center: 0.4, Max: 0.5},
	}
}

// DefaultFactors 回傳套用於相似日倉位建議的 regime 調整係數。
func DefaultFactors() map[Label]float64 {
	return map[Label]float64{
		LabelBullTop:     0.7,
		LabelBullMid:     1.1,
		LabelOscillating: 1.0,
		LabelBearRebound: 0.9,
		LabelBearDecline: 0.6,
	}
}
