package analysis

import (
	"fmt"
	"math"
	"sort"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

// 浮點比較的寬容值，確保邊界值（含 0 容忍度）被視為符合。
const matchEpsilon = 1e-9

// 預設篩選組合名稱。
const (
	PresetPrice                  = "price"
	PresetPriceVolume            = "price_volume"
	PresetPriceVolumeValuation   = "price_volume_valuation"
	PresetPriceVolumeValuationCF = "price_volume_valuation_flow"
	PresetTechnical              = "technical"
)

// Tolerance 為單一維度的啟用狀態與容忍度。
type Tolerance struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
}

// Tolerances 為各維度的預設容忍度。
// Price、VolumeRatio 為相對比例；RSI 為絕對點數；High52w、Valuation 為絕對比例（0.15 即 15 個百分點）。
type Tolerances struct {
	Price       float64 `json:"price"`
	VolumeRatio float64 `json:"volume_ratio"`
	RSI         float64 `json:"rsi"`
	High52w     float64 `json:"high_52w"`
	Valuation   float64 `json:"valuation"`
}

// DefaultTolerances 回傳預設容忍度。
func DefaultTolerances() Tolerances {
	return Tolerances{
		Price:       0.05,
		VolumeRatio: 0.30,
		RSI:         15,
		High52w:     0.15,
		Valuation:   0.20,
	}
}

// WithDefaults 以 def 補上未設定（零值）的容忍度。
func (t Tolerances) WithDefaults(def Tolerances) Tolerances {
	fill := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	fill(&t.Price, def.Price)
	fill(&t.VolumeRatio, def.VolumeRatio)
	fill(&t.RSI, def.RSI)
	fill(&t.High52w, def.High52w)
	fill(&t.Valuation, def.Valuation)
	return t
}

// FilterSet 列出啟用的比對條件。
type FilterSet struct {
	Name        string    `json:"name,omitempty"`
	Price       Tolerance `json:"price"`
	VolumeRatio Tolerance `json:"volume_ratio"`
	RSI         Tolerance `json:"rsi"`
	High52w     Tolerance `json:"pct_from_52w_high"`
	Valuation   Tolerance `json:"valuation_percentile"`
	// MARegime 為類別比對，需完全相同，不使用容忍度。
	MARegime bool `json:"ma_regime"`
	// CapitalFlow 要求 5 日資金流向同號。
	CapitalFlow bool `json:"capital_flow"`
}

func on(v float64) Tolerance { return Tolerance{Enabled: true, Value: v} }

// PriceOnly 僅比對價格。
func PriceOnly(t Tolerances) FilterSet {
	return FilterSet{Name: PresetPrice, Price: on(t.Price)}
}

// PriceVolume 比對價格與量比。
func PriceVolume(t Tolerances) FilterSet {
	f := PriceOnly(t)
	f.Name = PresetPriceVolume
	f.VolumeRatio = on(t.VolumeRatio)
	return f
}

// PriceVolumeValuation 再加上估值分位。
func PriceVolumeValuation(t Tolerances) FilterSet {
	f := PriceVolume(t)
	f.Name = PresetPriceVolumeValuation
	f.Valuation = on(t.Valuation)
	return f
}

// PriceVolumeValuationFlow 再加上資金流向。
func PriceVolumeValuationFlow(t Tolerances) FilterSet {
	f := PriceVolumeValuation(t)
	f.Name = PresetPriceVolumeValuationCF
	f.CapitalFlow = true
	return f
}

// Technical 比對 RSI、距 52 週高點與均線排列。
func Technical(t Tolerances) FilterSet {
	return FilterSet{
		Name:     PresetTechnical,
		RSI:      on(t.RSI),
		High52w:  on(t.High52w),
		MARegime: true,
	}
}

// Preset 依名稱取得預設篩選組合。
func Preset(name string, t Tolerances) (FilterSet, error) {
	switch name {
	case PresetPrice:
		return PriceOnly(t), nil
	case PresetPriceVolume:
		return PriceVolume(t), nil
	case PresetPriceVolumeValuation:
		return PriceVolumeValuation(t), nil
	case PresetPriceVolumeValuationCF:
		return PriceVolumeValuationFlow(t), nil
	case PresetTechnical, "":
		return Technical(t), nil
	}
	return FilterSet{}, fmt.Errorf("unknown filter preset %q", name)
}

// Loosen 回傳所有容忍度乘上 factor 的新篩選組合；類別條件不受影響。
func (f FilterSet) Loosen(factor float64) FilterSet {
	out := f
	out.Price.Value *= factor
	out.VolumeRatio.Value *= factor
	out.RSI.Value *= factor
	out.High52w.Value *= factor
	out.Valuation.Value *= factor
	return out
}

// ActiveCount 回傳啟用的條件數。
func (f FilterSet) ActiveCount() int {
	n := 0
	for _, t := range []Tolerance{f.Price, f.VolumeRatio, f.RSI, f.High52w, f.Valuation} {
		if t.Enabled {
			n++
		}
	}
	if f.MARegime {
		n++
	}
	if f.CapitalFlow {
		n++
	}
	return n
}

// Validate 檢查容忍度不為負。
func (f FilterSet) Validate() error {
	for name, t := range map[string]Tolerance{
		"price": f.Price, "volume_ratio": f.VolumeRatio, "rsi": f.RSI,
		"pct_from_52w_high": f.High52w, "valuation_percentile": f.Valuation,
	} {
		if t.Enabled && (t.Value < 0 || math.IsNaN(t.Value)) {
			return fmt.Errorf("tolerance for %s must be >= 0", name)
		}
	}
	return nil
}

// Matches 檢查歷史快照 h 是否符合目前快照 c 的所有啟用條件。
// 任一側為 nil 的維度略過，不視為不符合。
func (f FilterSet) Matches(h, c domain.MetricSnapshot) bool {
	if f.Price.Enabled && !withinRelative(h.Price, c.Price, f.Price.Value) {
		return false
	}
	if f.VolumeRatio.Enabled && h.VolumeRatio != nil && c.VolumeRatio != nil &&
		!withinRelative(*h.VolumeRatio, *c.VolumeRatio, f.VolumeRatio.Value) {
		return false
	}
	if f.RSI.Enabled && h.RSI != nil && c.RSI != nil && !withinAbsolute(*h.RSI, *c.RSI, f.RSI.Value) {
		return false
	}
	if f.High52w.Enabled && h.PctFrom52wHigh != nil && c.PctFrom52wHigh != nil &&
		!withinAbsolute(*h.PctFrom52wHigh, *c.PctFrom52wHigh, f.High52w.Value) {
		return false
	}
	if f.Valuation.Enabled && h.ValuationPercentile != nil && c.ValuationPercentile != nil &&
		!withinAbsolute(*h.ValuationPercentile, *c.ValuationPercentile, f.Valuation.Value) {
		return false
	}
	if f.MARegime && h.MARegime != nil && c.MARegime != nil && *h.MARegime != *c.MARegime {
		return false
	}
	if f.CapitalFlow && h.CapitalFlow5d != nil && c.CapitalFlow5d != nil && sign(*h.CapitalFlow5d) != sign(*c.CapitalFlow5d) {
		return false
	}
	return true
}

// FindMatches 回傳符合所有啟用條件的歷史快照，依日期遞增排序。
// 純過濾、無提前中止，結果與 history 的掃描順序無關。
func FindMatches(history []domain.MetricSnapshot, current domain.MetricSnapshot, filters FilterSet) []domain.AnalogMatch {
	var out []domain.AnalogMatch
	for _, h := range history {
		if filters.Matches(h, current) {
			out = append(out, domain.AnalogMatch{Snapshot: h})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Snapshot.Date.Before(out[j].Snapshot.Date)
	})
	return out
}

// EscalationPolicy 定義樣本不足時的單次放寬規則。
type EscalationPolicy struct {
	MinSamples  int
	RelaxFactor float64
}

// DefaultEscalationPolicy 樣本少於 10 時將容忍度放寬 1.5 倍一次。
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{MinSamples: 10, RelaxFactor: 1.5}
}

// MatchOutcome 記錄最終使用的篩選組合與是否經過放寬。
type MatchOutcome struct {
	Matches      []domain.AnalogMatch `json:"-"`
	Filters      FilterSet            `json:"filters"`
	Relaxed      bool                 `json:"relaxed"`
	InitialCount int                  `json:"initial_count"`
}

// FindMatchesWithEscalation 先以原容忍度比對；少於 MinSamples 時放寬恰好一次。
// 放寬後仍為 0 筆時回傳 *NoMatchesFoundError。
func FindMatchesWithEscalation(history []domain.MetricSnapshot, current domain.MetricSnapshot, filters FilterSet, policy EscalationPolicy) (MatchOutcome, error) {
	matches := FindMatches(history, current, filters)
	outcome := MatchOutcome{Matches: matches, Filters: filters, InitialCount: len(matches)}

	if len(matches) < policy.MinSamples && policy.RelaxFactor > 1 {
		loosened := filters.Loosen(policy.RelaxFactor)
		outcome.Matches = FindMatches(history, current, loosened)
		outcome.Filters = loosened
		outcome.Relaxed = true
	}

	if len(outcome.Matches) == 0 {
		return outcome, &domain.NoMatchesFoundError{Date: current.Date, Relaxed: outcome.Relaxed}
	}
	return outcome, nil
}

func withinRelative(h, c, tol float64) bool {
	return math.Abs(h-c) <= tol*math.Abs(c)+matchEpsilon
}

func withinAbsolute(h, c, tol float64) bool {
	return math.Abs(h-c) <= tol+matchEpsilon
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
