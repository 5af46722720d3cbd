package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

// Store 為記憶體序列來源，未設定資料庫時使用；可併發讀取。
type Store struct {
	mu     sync.RWMutex
	series map[string]marketdata.Series // symbol -> series
}

// NewStore 建立新的記憶體 Store 實例。
func NewStore() *Store {
	return &Store{series: make(map[string]marketdata.Series)}
}

// UpsertSeries 寫入整段序列；同日期資料以新值覆蓋，回傳寫入筆數。
func (s *Store) UpsertSeries(_ context.Context, in marketdata.Series) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.series[in.Symbol]
	if !ok {
		bars := make([]marketdata.Bar, len(in.Bars))
		copy(bars, in.Bars)
		s.series[in.Symbol] = marketdata.Series{Symbol: in.Symbol, Market: in.Market, Bars: bars}
		return len(in.Bars), nil
	}

	byDate := make(map[string]marketdata.Bar, len(existing.Bars)+len(in.Bars))
	for _, b := range existing.Bars {
		byDate[dateKey(b.Date)] = b
	}
	for _, b := range in.Bars {
		byDate[dateKey(b.Date)] = b
	}
	merged := make([]marketdata.Bar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	s.series[in.Symbol] = marketdata.Series{Symbol: in.Symbol, Market: in.Market, Bars: merged}
	return len(in.Bars), nil
}

// GetSeries 取截至 end（含）的最近 limit 筆資料；end 為零值表示最新。
func (s *Store) GetSeries(_ context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, ok := s.series[symbol]
	if !ok {
		return marketdata.Series{}, fmt.Errorf("symbol %s: %w", symbol, analysis.ErrSeriesNotFound)
	}
	if end.IsZero() {
		if last, ok := full.Last(); ok {
			end = last.Date
		}
	}
	sub := full.Until(end, limit)
	bars := make([]marketdata.Bar, len(sub.Bars))
	copy(bars, sub.Bars)
	sub.Bars = bars
	return sub, nil
}

// ListSymbols 列出已載入的代號（依字母排序）。
func (s *Store) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
