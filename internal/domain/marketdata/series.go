package marketdata

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Market 列舉支援的市場別，決定 regime 權重表。
type Market string

const (
	MarketCN Market = "CN"
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

// ParseMarket 不分大小寫解析市場代碼。
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case MarketCN:
		return MarketCN, nil
	case MarketHK:
		return MarketHK, nil
	case MarketUS:
		return MarketUS, nil
	}
	return "", fmt.Errorf("unsupported market %q", s)
}

// BreadthCount 為當日上漲/下跌家數。
type BreadthCount struct {
	Advancers int `json:"advancers"`
	Decliners int `json:"decliners"`
}

// ExtremeCount 為當日漲停/跌停家數（或其他極端波動計數）。
type ExtremeCount struct {
	LimitUp   int `json:"limit_up"`
	LimitDown int `json:"limit_down"`
}

// Bar 描述單一交易日的 OHLCV 與可選的估值、資金、廣度資料。
// 指標欄位為 nil 代表來源沒有提供，不可視為 0。
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	Valuation        *float64      `json:"valuation,omitempty"`         // 本益比等估值
	NetFlow          *float64      `json:"net_flow,omitempty"`          // 北向/外資淨流入
	LargeOrderNet    *float64      `json:"large_order_net,omitempty"`   // 大單淨額
	InstitutionalNet *float64      `json:"institutional_net,omitempty"` // 機構淨買
	MarginBalance    *float64      `json:"margin_balance,omitempty"`    // 融資餘額
	Breadth          *BreadthCount `json:"breadth,omitempty"`
	Extremes         *ExtremeCount `json:"extremes,omitempty"`
}

// Series 為單一標的依日期遞增的歷史資料。
type Series struct {
	Symbol string `json:"symbol"`
	Market Market `json:"market"`
	Bars   []Bar  `json:"bars"`
}

// ValidationError 收集多個驗證失敗原因。
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("series validation failed: %v", e.Reasons)
}

// Validate 檢查序列是否已排序、無重複日期且數值合理。
func (s Series) Validate() error {
	var reasons []string

	if s.Symbol == "" {
		reasons = append(reasons, "symbol is required")
	}

	switch s.Market {
	case MarketCN, MarketHK, MarketUS:
	default:
		reasons = append(reasons, "unsupported market")
	}

	for i, b := range s.Bars {
		if b.Date.IsZero() {
			reasons = append(reasons, fmt.Sprintf("bar %d: date is required", i))
			continue
		}
		if !allFinite(b.Open, b.High, b.Low, b.Close) {
			reasons = append(reasons, fmt.Sprintf("bar %d: price fields must be finite", i))
		} else if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
			reasons = append(reasons, fmt.Sprintf("bar %d: price fields must be >= 0", i))
		}
		if !allFinite(b.Volume) {
			reasons = append(reasons, fmt.Sprintf("bar %d: volume must be finite", i))
		} else if b.Volume < 0 {
			reasons = append(reasons, fmt.Sprintf("bar %d: volume must be >= 0", i))
		}
		for _, f := range []struct {
			name string
			v    *float64
		}{
			{"valuation", b.Valuation},
			{"net_flow", b.NetFlow},
			{"large_order_net", b.LargeOrderNet},
			{"institutional_net", b.InstitutionalNet},
			{"margin_balance", b.MarginBalance},
		} {
			if f.v != nil && !allFinite(*f.v) {
				reasons = append(reasons, fmt.Sprintf("bar %d: %s must be finite", i, f.name))
			}
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			reasons = append(reasons, fmt.Sprintf("bar %d: dates must be strictly ascending (%s after %s)",
				i, b.Date.Format("2006-01-02"), s.Bars[i-1].Date.Format("2006-01-02")))
		}
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

func allFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IndexOf 回傳指定日期所在的索引；找不到回傳 -1。
func (s Series) IndexOf(date time.Time) int {
	target := truncateDay(date)
	lo, hi := 0, len(s.Bars)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		d := truncateDay(s.Bars[mid].Date)
		switch {
		case d.Equal(target):
			return mid
		case d.Before(target):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// Until 回傳截至 end（含）的子序列，最多 lookback 筆；lookback <= 0 表示不限。
func (s Series) Until(end time.Time, lookback int) Series {
	n := 0
	for n < len(s.Bars) && !truncateDay(s.Bars[n].Date).After(truncateDay(end)) {
		n++
	}
	start := 0
	if lookback > 0 && n > lookback {
		start = n - lookback
	}
	return Series{Symbol: s.Symbol, Market: s.Market, Bars: s.Bars[start:n]}
}

// Closes 回傳收盤價切片。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Last 回傳最後一筆資料；序列為空時 ok 為 false。
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// SameDate 比較兩個時間是否為同一天（忽略時分秒）。
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsValidationError 檢查錯誤是否為序列驗證錯誤。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
