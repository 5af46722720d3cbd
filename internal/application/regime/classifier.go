package regime

import (
	"errors"
	"fmt"
	"math"

	analysisDomain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

// ErrNoDimensions 表示沒有任何具權重的維度有輸入值。
var ErrNoDimensions = errors.New("no regime dimension has input")

// Thresholds 為綜合分數轉標籤的門檻。
type Thresholds struct {
	BullTop       float64 // 綜合分數高於此值才可能是 bull-top
	BullMid       float64
	BearEdge      float64 // 低於此值為空頭
	TrendStrong   float64 // bull-top 要求的趨勢子分數下限
	ValuationRich float64 // bull-top 要求的估值子分數上限
	Notable       float64 // |子分數| 超過此值列入多空訊號
}

// DefaultThresholds 回傳預設門檻。
func DefaultThresholds() Thresholds {
	return Thresholds{
		BullTop:       0.3,
		BullMid:       0.15,
		BearEdge:      -0.15,
		TrendStrong:   0.5,
		ValuationRich: -0.4,
		Notable:       0.5,
	}
}

// Config 為分類器的規則、門檻與各標籤的倉位區間。
type Config struct {
	Rules      map[regime.Dimension]BandRule
	Slope      SlopeRule
	Thresholds Thresholds
	Bands      map[regime.Label]regime.PositionBand
}

// DefaultConfig 回傳預設分類設定。
func DefaultConfig() Config {
	return Config{
		Rules:      DefaultRules(),
		Slope:      DefaultSlopeRule(),
		Thresholds: DefaultThresholds(),
		Bands:      regime.DefaultBands(),
	}
}

// Validate 檢查每個標籤都有合法的倉位區間。
func (c Config) Validate() error {
	for _, l := range regime.Labels {
		b, ok := c.Bands[l]
		if !ok {
			return fmt.Errorf("missing position band for %s", l)
		}
		if !b.Valid() {
			return fmt.Errorf("invalid position band for %s: %+v", l, b)
		}
	}
	return nil
}

// Classifier 為無狀態的市場狀態分類器。
type Classifier struct {
	cfg Config
}

// NewClassifier 建立分類器，未提供的規則與區間套用預設值。
func NewClassifier(cfg Config) (*Classifier, error) {
	def := DefaultConfig()
	if cfg.Rules == nil {
		cfg.Rules = def.Rules
	}
	if cfg.Slope == (SlopeRule{}) {
		cfg.Slope = def.Slope
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Bands == nil {
		cfg.Bands = def.Bands
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Classify 依權重表計算綜合分數與標籤。
// 缺漏的維度移出並重新正規化其餘權重，不以 0 分計入。
func (c *Classifier) Classify(in Inputs, weights regime.WeightTable) (regime.Result, error) {
	var res regime.Result
	if err := weights.Validate(); err != nil {
		return res, fmt.Errorf("invalid weight table: %w", err)
	}

	var present []regime.Dimension
	subs := make(map[regime.Dimension]float64)
	raws := make(map[regime.Dimension]float64)
	for _, d := range regime.Dimensions {
		if weights[d] <= 0 {
			continue
		}
		raw, ok := in.Raw(d)
		if !ok {
			res.Missing = append(res.Missing, d)
			res.Warnings = append(res.Warnings, analysisDomain.MissingDimensionWarning{Dimension: string(d), Reason: "no input"})
			continue
		}
		sub, err := c.score(d, raw, in)
		if err != nil {
			return res, err
		}
		present = append(present, d)
		raws[d] = raw
		subs[d] = sub
	}
	if len(present) == 0 {
		return res, ErrNoDimensions
	}

	effective, err := weights.Renormalize(present)
	if err != nil {
		return res, err
	}

	var composite, coverage float64
	values := make([]float64, 0, len(present))
	for _, d := range present {
		contribution := effective[d] * subs[d]
		composite += contribution
		coverage += weights[d]
		values = append(values, subs[d])
		res.Scores = append(res.Scores, regime.DimensionScore{
			Dimension:       d,
			Raw:             raws[d],
			SubScore:        subs[d],
			Weight:          weights[d],
			EffectiveWeight: effective[d],
			Contribution:    contribution,
		})
		switch {
		case subs[d] > c.cfg.Thresholds.Notable:
			res.BullishSignals = append(res.BullishSignals, d)
		case subs[d] < -c.cfg.Thresholds.Notable:
			res.BearishSignals = append(res.BearishSignals, d)
		}
	}

	res.Composite = clamp(composite, -1, 1)
	res.Label = c.label(res.Composite, subs)
	res.Band = c.cfg.Bands[res.Label]
	res.Confidence = confidence(coverage, values)
	return res, nil
}

func (c *Classifier) score(d regime.Dimension, raw float64, in Inputs) (float64, error) {
	if d == regime.DimMomentumSlope {
		return c.cfg.Slope.Score(*in.MomentumSlope), nil
	}
	rule, ok := c.cfg.Rules[d]
	if !ok {
		return 0, fmt.Errorf("no scoring rule for %s", d)
	}
	return clamp(rule.Score(raw), -1, 1), nil
}

func (c *Classifier) label(composite float64, subs map[regime.Dimension]float64) regime.Label {
	t := c.cfg.Thresholds
	switch {
	case composite > t.BullTop && hasAtLeast(subs, regime.DimTrend, t.TrendStrong) && hasAtMost(subs, regime.DimValuation, t.ValuationRich):
		return regime.LabelBullTop
	case composite > t.BullMid:
		return regime.LabelBullMid
	case composite >= t.BearEdge:
		return regime.LabelOscillating
	case hasAbove(subs, regime.DimBreadth, 0) || hasAbove(subs, regime.DimShortTermReturn, 0):
		return regime.LabelBearRebound
	}
	return regime.LabelBearDecline
}

// confidence 為 0.6×覆蓋率 + 0.4×(1 - min(1, 子分數標準差))。
func confidence(coverage float64, subs []float64) float64 {
	var mean float64
	for _, v := range subs {
		mean += v
	}
	mean /= float64(len(subs))
	var ss float64
	for _, v := range subs {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(subs)))
	return clamp(0.6*clamp(coverage, 0, 1)+0.4*(1-math.Min(1, std)), 0, 1)
}

func hasAtLeast(subs map[regime.Dimension]float64, d regime.Dimension, v float64) bool {
	s, ok := subs[d]
	return ok && s >= v
}

func hasAtMost(subs map[regime.Dimension]float64, d regime.Dimension, v float64) bool {
	s, ok := subs[d]
	return ok && s <= v
}

func hasAbove(subs map[regime.Dimension]float64, d regime.Dimension, v float64) bool {
	s, ok := subs[d]
	return ok && s > v
}
