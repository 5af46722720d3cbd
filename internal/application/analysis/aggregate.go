package analysis

import (
	"sort"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

// DefaultHorizons 為預設持有期（交易日）。
var DefaultHorizons = []int{5, 10, 20, 60}

// NormalizeHorizons 去除非正數與重複值並遞增排序。
func NormalizeHorizons(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// AttachForwardReturns 依 series 計算每個相似日在各持有期的報酬，回傳新的 match 切片。
// 日期後方資料不足 h 筆的持有期不寫入，只影響該持有期。
func AttachForwardReturns(matches []domain.AnalogMatch, series marketdata.Series, horizons []int) []domain.AnalogMatch {
	horizons = NormalizeHorizons(horizons)
	out := make([]domain.AnalogMatch, len(matches))
	for i, m := range matches {
		out[i] = domain.AnalogMatch{Snapshot: m.Snapshot}
		idx := series.IndexOf(m.Snapshot.Date)
		if idx < 0 {
			continue
		}
		base := series.Bars[idx].Close
		if base == 0 {
			continue
		}
		returns := make(map[int]float64, len(horizons))
		for _, h := range horizons {
			if idx+h >= len(series.Bars) {
				continue
			}
			returns[h] = (series.Bars[idx+h].Close - base) / base
		}
		if len(returns) > 0 {
			out[i].ForwardReturns = returns
		}
	}
	return out
}

// ReturnsFor 取出所有帶有持有期 h 報酬的值，保持 matches 的順序。
func ReturnsFor(matches []domain.AnalogMatch, h int) []float64 {
	var out []float64
	for _, m := range matches {
		if r, ok := m.ForwardReturns[h]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate 對每個持有期計算報酬分布統計與信心分數，依持有期遞增回傳。
// 倉位建議由 Advisor 另行填入。
func Aggregate(matches []domain.AnalogMatch, horizons []int) []domain.HorizonStatistics {
	horizons = NormalizeHorizons(horizons)
	out := make([]domain.HorizonStatistics, 0, len(horizons))
	for _, h := range horizons {
		out = append(out, summarize(h, ReturnsFor(matches, h)))
	}
	return out
}

func summarize(h int, returns []float64) domain.HorizonStatistics {
	stats := domain.HorizonStatistics{Horizon: h, SampleSize: len(returns)}
	if len(returns) == 0 {
		return stats
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	wins := 0
	for _, r := range sorted {
		// 0 報酬不算勝
		if r > 0 {
			wins++
		}
	}
	mean, std := MeanStd(sorted)

	stats.HitRate = float64(wins) / float64(len(sorted))
	stats.MeanReturn = mean
	stats.MedianReturn = Percentile(sorted, 50)
	stats.ReturnRange = domain.ReturnRange{Min: sorted[0], Max: sorted[len(sorted)-1]}
	stats.StdDev = std
	stats.P10 = Percentile(sorted, 10)
	stats.P90 = Percentile(sorted, 90)
	stats.Confidence = Confidence(stats.SampleSize, stats.HitRate)
	return stats
}
