package di

import (
	"fmt"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	regimeapp "github.com/FuNgaiKa/stock-analysis-sub000/internal/application/regime"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
)

// ProvideAnalogConfig 將引擎組態轉為相似日分析參數。
func ProvideAnalogConfig(cfg config.EngineConfig) (analysis.AnalogConfig, error) {
	out := analysis.DefaultAnalogConfig()
	out.Lookback = cfg.Lookback
	out.HistoryLimit = cfg.HistoryLimit
	out.Horizons = analysis.NormalizeHorizons(cfg.Horizons)
	out.Policy = analysis.EscalationPolicy{MinSamples: cfg.MinSamples, RelaxFactor: cfg.RelaxFactor}
	out.Tolerances = analysis.Tolerances{
		Price:       cfg.Tolerances.Price,
		VolumeRatio: cfg.Tolerances.VolumeRatio,
		RSI:         cfg.Tolerances.RSI,
		High52w:     cfg.Tolerances.High52w,
		Valuation:   cfg.Tolerances.Valuation,
	}
	out.Sizing = analysis.SizingConfig{
		VarianceProxy: cfg.Sizing.VarianceProxy,
		VarianceFloor: cfg.Sizing.VarianceFloor,
		LowConfidence: cfg.Sizing.LowConfidence,
	}

	factors, err := ProvideFactors(cfg.Regime.Factors)
	if err != nil {
		return analysis.AnalogConfig{}, err
	}
	out.Factors = factors
	return out, nil
}

// ProvideFactors 以組態覆寫預設的倉位係數。
func ProvideFactors(overrides map[string]float64) (map[regime.Label]float64, error) {
	out := regime.DefaultFactors()
	for name, f := range overrides {
		label, err := regime.ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("engine.regime.factors: %w", err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("engine.regime.factors.%s must be > 0", name)
		}
		out[label] = f
	}
	return out, nil
}

// ProvideWeights 解析各市場的權重表；未設定的市場交由用例使用預設值。
func ProvideWeights(overrides map[string]map[string]float64) (map[marketdata.Market]regime.WeightTable, error) {
	out := make(map[marketdata.Market]regime.WeightTable, len(overrides))
	for m, dims := range overrides {
		market, err := marketdata.ParseMarket(m)
		if err != nil {
			return nil, fmt.Errorf("engine.regime.weights: %w", err)
		}
		table := make(regime.WeightTable, len(dims))
		for name, w := range dims {
			d := regime.Dimension(name)
			if !d.IsKnown() {
				return nil, fmt.Errorf("engine.regime.weights.%s: unknown dimension %q", m, name)
			}
			table[d] = w
		}
		if err := table.Validate(); err != nil {
			return nil, fmt.Errorf("engine.regime.weights.%s: %w", m, err)
		}
		out[market] = table
	}
	return out, nil
}

// ProvideClassifier 建立使用預設規則的 regime 分類器。
func ProvideClassifier() (*regimeapp.Classifier, error) {
	return regimeapp.NewClassifier(regimeapp.DefaultConfig())
}
