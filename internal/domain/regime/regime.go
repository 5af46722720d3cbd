package regime

import (
	"fmt"
	"math"
	"sort"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

// Label 為市場狀態的離散標籤。
type Label string

const (
	LabelBullTop     Label = "bull-top"
	LabelBullMid     Label = "bull-mid"
	LabelOscillating Label = "oscillating"
	LabelBearRebound Label = "bear-rebound"
	LabelBearDecline Label = "bear-decline"
)

// Labels 依多空強弱排列的全部標籤。
var Labels = []Label{LabelBullTop, LabelBullMid, LabelOscillating, LabelBearRebound, LabelBearDecline}

// ParseLabel 解析標籤字串。
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown regime label %q", s)
}

// Dimension 為 regime 評分維度。
type Dimension string

const (
	DimTrend           Dimension = "trend"
	DimShortTermReturn Dimension = "short_term_return"
	DimValuation       Dimension = "valuation"
	DimCapitalFlow     Dimension = "capital_flow"
	DimSentiment       Dimension = "sentiment"
	DimBreadth         Dimension = "breadth"
	DimMargin          Dimension = "margin"
	DimLargeOrderFlow  Dimension = "large_order_flow"
	DimInstitutional   Dimension = "institutional"
	DimVolatility      Dimension = "volatility"
	DimVolume          Dimension = "volume"
	DimTechnical       Dimension = "technical"
	DimMomentumSlope   Dimension = "momentum_slope"
)

// Dimensions 為全部已知維度，順序固定以確保輸出穩定。
var Dimensions = []Dimension{
	DimTrend, DimShortTermReturn, DimValuation, DimCapitalFlow, DimSentiment,
	DimBreadth, DimMargin, DimLargeOrderFlow, DimInstitutional, DimVolatility,
	DimVolume, DimTechnical, DimMomentumSlope,
}

// IsKnown 檢查維度名稱是否合法。
func (d Dimension) IsKnown() bool {
	for _, k := range Dimensions {
		if k == d {
			return true
		}
	}
	return false
}

const weightSumTolerance = 1e-6

// WeightTable 為某市場支援的維度權重，總和須為 1。
type WeightTable map[Dimension]float64

// Validate 檢查維度合法、權重非負且總和為 1。
func (w WeightTable) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("weight table is empty")
	}
	total := 0.0
	for d, v := range w {
		if !d.IsKnown() {
			return fmt.Errorf("unknown dimension %q", d)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight for %s must be >= 0, got %v", d, v)
		}
		total += v
	}
	if math.Abs(total-1.0) > weightSumTolerance {
		return fmt.Errorf("weights sum to %.6f, want 1.0", total)
	}
	return nil
}

// Supports 回傳該表中權重為正的維度（依 Dimensions 順序）。
func (w WeightTable) Supports() []Dimension {
	var out []Dimension
	for _, d := range Dimensions {
		if w[d] > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Renormalize 僅保留 present 中的維度並重新正規化為總和 1。
// 缺席的維度直接移除，不以 0 分參與加權。
func (w WeightTable) Renormalize(present []Dimension) (WeightTable, error) {
	total := 0.0
	for _, d := range present {
		total += w[d]
	}
	if total <= 0 {
		return nil, fmt.Errorf("no weighted dimensions present")
	}
	out := make(WeightTable, len(present))
	for _, d := range present {
		if w[d] > 0 {
			out[d] = w[d] / total
		}
	}
	return out, nil
}

// Sum 回傳權重總和。
func (w WeightTable) Sum() float64 {
	keys := make([]string, 0, len(w))
	for d := range w {
		keys = append(keys, string(d))
	}
	// 依名稱排序加總，結果不受 map 迭代順序影響。
	sort.Strings(keys)
	total := 0.0
	for _, k := range keys {
		total += w[Dimension(k)]
	}
	return total
}

// Clone 複製權重表。
func (w WeightTable) Clone() WeightTable {
	out := make(WeightTable, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// PositionBand 為建議倉位區間。
type PositionBand struct {
	Min    float64 `json:"min"`
	Center float64 `json:"center"`
	Max    float64 `json:"max"`
}

// Valid 檢查 0 <= min <= center <= max <= 1。
func (b PositionBand) Valid() bool {
	return b.Min >= 0 && b.Min <= b.Center && b.Center <= b.Max && b.Max <= 1
}

// DimensionScore 為單一維度的原始值、子分數與權重。
type DimensionScore struct {
	Dimension       Dimension `json:"dimension"`
	Raw             float64   `json:"raw"`
	SubScore        float64   `json:"sub_score"`
	Weight          float64   `json:"weight"`
	EffectiveWeight float64   `json:"effective_weight"`
	Contribution    float64   `json:"contribution"`
}

// Result 為一次 regime 分類的完整輸出。
type Result struct {
	Composite      float64                            `json:"composite"`
	Label          Label                              `json:"label"`
	Confidence     float64                            `json:"confidence"`
	Band           PositionBand                       `json:"position_band"`
	Scores         []DimensionScore                   `json:"scores"`
	BullishSignals []Dimension                        `json:"bullish_signals"`
	BearishSignals []Dimension                        `json:"bearish_signals"`
	Missing        []Dimension                        `json:"missing,omitempty"`
	Warnings       []analysis.MissingDimensionWarning `json:"warnings,omitempty"`
}
