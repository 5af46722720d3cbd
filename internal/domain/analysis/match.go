package analysis

// AnalogMatch 為通過所有啟用條件的歷史日期，計算後附帶其後 N 日報酬。
type AnalogMatch struct {
	Snapshot       MetricSnapshot  `json:"snapshot"`
	ForwardReturns map[int]float64 `json:"forward_returns,omitempty"`
}

// Signal 為倉位建議的離散標籤。
type Signal string

const (
	SignalStrongBuy Signal = "strong buy"
	SignalBuy       Signal = "buy"
	SignalHold      Signal = "hold/observe"
	SignalReduce    Signal = "reduce/sell"
	SignalNoData    Signal = "insufficient data"
)

// PositionAdvice 為建議倉位（0~1）與訊號。
type PositionAdvice struct {
	RecommendedPosition float64 `json:"recommended_position"`
	Signal              Signal  `json:"signal"`
	Warning             string  `json:"warning,omitempty"`
}

// ReturnRange 為報酬的最小與最大值。
type ReturnRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// HorizonStatistics 為單一持有期的報酬分布統計。
type HorizonStatistics struct {
	Horizon      int            `json:"horizon"`
	SampleSize   int            `json:"sample_size"`
	HitRate      float64        `json:"hit_rate"`
	MeanReturn   float64        `json:"mean_return"`
	MedianReturn float64        `json:"median_return"`
	ReturnRange  ReturnRange    `json:"return_range"`
	StdDev       float64        `json:"std_dev"`
	P10          float64        `json:"p10"`
	P90          float64        `json:"p90"`
	Confidence   float64        `json:"confidence"`
	Advice       PositionAdvice `json:"advice"`
}
