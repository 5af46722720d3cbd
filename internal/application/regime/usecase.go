package regime

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	analysisDomain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/regime"
)

// Input 為 regime 分類請求。
// Inputs 不為 nil 時直接使用提供的原始值，否則由 Symbol 的序列推導。
type Input struct {
	Symbol string
	Market marketdata.Market
	AsOf   time.Time
	Inputs *Inputs
}

// Report 為分類結果與其來源。
type Report struct {
	Symbol string            `json:"symbol,omitempty"`
	Market marketdata.Market `json:"market"`
	AsOf   time.Time         `json:"as_of,omitempty"`
	Inputs Inputs            `json:"inputs"`
	Result regime.Result     `json:"result"`
}

// UseCase 串接資料來源與分類器；權重依市場選擇。
type UseCase struct {
	provider   analysis.SeriesProvider
	classifier *Classifier
	weights    map[marketdata.Market]regime.WeightTable
	log        zerolog.Logger
	metrics    analysis.Metrics
}

// NewUseCase 建立 regime 用例。weights 缺少的市場使用預設權重表。
func NewUseCase(provider analysis.SeriesProvider, classifier *Classifier, weights map[marketdata.Market]regime.WeightTable, log zerolog.Logger, metrics analysis.Metrics) *UseCase {
	table := make(map[marketdata.Market]regime.WeightTable, 3)
	for _, m := range []marketdata.Market{marketdata.MarketCN, marketdata.MarketHK, marketdata.MarketUS} {
		if w, ok := weights[m]; ok && len(w) > 0 {
			table[m] = w.Clone()
			continue
		}
		table[m] = regime.DefaultWeights(m)
	}
	if metrics == nil {
		metrics = analysis.NopMetrics{}
	}
	return &UseCase{
		provider:   provider,
		classifier: classifier,
		weights:    table,
		log:        log.With().Str("component", "regime").Logger(),
		metrics:    metrics,
	}
}

// Weights 回傳市場使用的權重表副本。
func (u *UseCase) Weights(m marketdata.Market) (regime.WeightTable, error) {
	w, ok := u.weights[m]
	if !ok {
		return nil, fmt.Errorf("unsupported market %q", m)
	}
	return w.Clone(), nil
}

// Execute 執行一次分類。
func (u *UseCase) Execute(ctx context.Context, in Input) (Report, error) {
	start := time.Now()
	report, err := u.execute(ctx, in)
	status := "ok"
	if err != nil {
		status = "error"
	}
	u.metrics.ObserveAnalysis("regime", status, time.Since(start))
	return report, err
}

func (u *UseCase) execute(ctx context.Context, in Input) (Report, error) {
	if in.Inputs != nil {
		report := Report{Symbol: in.Symbol, Market: in.Market, AsOf: in.AsOf, Inputs: *in.Inputs}
		weights, err := u.Weights(in.Market)
		if err != nil {
			return report, fmt.Errorf("%w: %v", analysis.ErrInvalidInput, err)
		}
		res, err := u.classifier.Classify(*in.Inputs, weights)
		if err != nil {
			return report, err
		}
		u.logMissing(in.Symbol, res.Warnings)
		report.Result = res
		return report, nil
	}

	if in.Symbol == "" {
		return Report{}, fmt.Errorf("%w: symbol or inputs is required", analysis.ErrInvalidInput)
	}
	series, err := u.provider.GetSeries(ctx, in.Symbol, in.AsOf, 0)
	if err != nil {
		return Report{Symbol: in.Symbol}, fmt.Errorf("load series %s: %w", in.Symbol, err)
	}
	if err := series.Validate(); err != nil {
		return Report{Symbol: in.Symbol}, err
	}
	last, ok := series.Last()
	if !ok {
		return Report{Symbol: in.Symbol}, fmt.Errorf("load series %s: %w", in.Symbol, analysis.ErrSeriesNotFound)
	}
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = last.Date
	}

	inputs, res, err := u.classify(series, asOf)
	report := Report{Symbol: in.Symbol, Market: series.Market, AsOf: asOf, Inputs: inputs, Result: res}
	if err != nil {
		return report, err
	}
	u.logMissing(in.Symbol, res.Warnings)
	return report, nil
}

// ClassifySeries 以序列本身的市場權重分類，供相似日分析套用 regime 係數。
func (u *UseCase) ClassifySeries(series marketdata.Series, asOf time.Time) (regime.Result, error) {
	_, res, err := u.classify(series, asOf)
	return res, err
}

func (u *UseCase) classify(series marketdata.Series, asOf time.Time) (Inputs, regime.Result, error) {
	weights, err := u.Weights(series.Market)
	if err != nil {
		return Inputs{}, regime.Result{}, err
	}
	inputs, reasons, err := InputsFromSeries(series, asOf)
	if err != nil {
		return Inputs{}, regime.Result{}, err
	}
	res, err := u.classifier.Classify(inputs, weights)
	if err != nil {
		return inputs, res, err
	}
	explain(&res, reasons)
	return inputs, res, nil
}

// explain 以推導時的具體原因取代分類器的通用缺漏說明。
func explain(res *regime.Result, reasons []analysisDomain.MissingDimensionWarning) {
	byDim := make(map[string]string, len(reasons))
	for _, r := range reasons {
		byDim[r.Dimension] = r.Reason
	}
	for i, w := range res.Warnings {
		if reason, ok := byDim[w.Dimension]; ok {
			res.Warnings[i].Reason = reason
		}
	}
}

func (u *UseCase) logMissing(symbol string, warnings []analysisDomain.MissingDimensionWarning) {
	for _, w := range warnings {
		u.log.Warn().Str("symbol", symbol).Str("dimension", w.Dimension).Msg(w.Reason)
	}
}
