package analysis

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

var baseDate = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

// tradingDay 以週一到週五遞增，不處理假日。
func tradingDay(i int) time.Time {
	d := baseDate
	for n := 0; n < i; {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return d
}

// makeSeries 以 closeAt 產生 n 筆資料，成交量固定。
func makeSeries(symbol string, n int, closeAt func(i int) float64) marketdata.Series {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		c := closeAt(i)
		bars[i] = marketdata.Bar{
			Date:   tradingDay(i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return marketdata.Series{Symbol: symbol, Market: marketdata.MarketCN, Bars: bars}
}

// waveSeries 為帶趨勢的正弦走勢，讓各維度都有變化。
func waveSeries(symbol string, n int) marketdata.Series {
	s := makeSeries(symbol, n, func(i int) float64 {
		return 100 * math.Exp(0.0004*float64(i)) * (1 + 0.08*math.Sin(float64(i)/9))
	})
	for i := range s.Bars {
		s.Bars[i].Volume = 1000 + 300*math.Sin(float64(i)/5)
	}
	return s
}

type fakeProvider struct {
	series map[string]marketdata.Series
	err    error
	calls  atomic.Int32

	// fullHistory 忽略 end，連同之後的資料一起回傳
	fullHistory bool
}

func (f *fakeProvider) GetSeries(_ context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error) {
	f.calls.Add(1)
	if f.err != nil {
		return marketdata.Series{}, f.err
	}
	s, ok := f.series[symbol]
	if !ok {
		return marketdata.Series{}, ErrSeriesNotFound
	}
	if end.IsZero() || f.fullHistory {
		end = s.Bars[len(s.Bars)-1].Date
	}
	return s.Until(end, limit), nil
}
