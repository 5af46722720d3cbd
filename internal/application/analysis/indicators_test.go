package analysis

import (
	"math"
	"testing"

	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if v, ok := SMA(values, 4, 2); !ok || v != 4.5 {
		t.Fatalf("SMA = %v %v, want 4.5", v, ok)
	}
	if _, ok := SMA(values, 0, 2); ok {
		t.Fatalf("expected not enough data")
	}
}

func TestWilderRSI(t *testing.T) {
	up := make([]float64, 20)
	flat := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		flat[i] = 100
		down[i] = float64(100 - i)
	}

	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", up, 100},
		{"no movement", flat, 50},
		{"only losses", down, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WilderRSI(tt.closes, 14)
			if !ok || got != tt.want {
				t.Fatalf("WilderRSI = %v %v, want %v", got, ok, tt.want)
			}
		})
	}

	if _, ok := WilderRSI(up[:14], 14); ok {
		t.Fatalf("14 closes should be insufficient for period 14")
	}
}

func TestWilderRSI_Bounds(t *testing.T) {
	s := waveSeries("X", 200)
	closes := s.Closes()
	for end := 15; end <= len(closes); end++ {
		v, ok := WilderRSI(closes[:end], 14)
		if !ok || v < 0 || v > 100 {
			t.Fatalf("rsi at %d = %v %v", end, v, ok)
		}
	}
}

func TestLogRegressionSlope(t *testing.T) {
	const daily = 0.001
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 50 * math.Pow(1+daily, float64(i))
	}
	got, ok := LogRegressionSlope(closes, 60)
	if !ok {
		t.Fatalf("expected slope")
	}
	want := math.Pow(1+daily, TradingDaysPerYear) - 1
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("slope = %v, want %v", got, want)
	}

	if _, ok := LogRegressionSlope(closes[:59], 60); ok {
		t.Fatalf("expected insufficient data")
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10 * math.Pow(1.01, float64(i))
	}
	v, ok := AnnualizedVolatility(closes, 20)
	if !ok || math.Abs(v) > 1e-9 {
		t.Fatalf("constant growth volatility = %v %v, want 0", v, ok)
	}
	if _, ok := AnnualizedVolatility(closes[:20], 20); ok {
		t.Fatalf("20 closes should be insufficient for window 20")
	}
}

func TestClassifyMA(t *testing.T) {
	rising := make([]float64, 70)
	falling := make([]float64, 70)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
	}
	flat := make([]float64, 70)
	for i := range flat {
		flat[i] = 100
	}

	tests := []struct {
		name   string
		closes []float64
		want   domain.MARegime
	}{
		{"rising", rising, domain.MABullishAligned},
		{"falling", falling, domain.MABearishAligned},
		{"flat", flat, domain.MAMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassifyMA(tt.closes, 20, 60, 5)
			if !ok || got != tt.want {
				t.Fatalf("ClassifyMA = %v %v, want %v", got, ok, tt.want)
			}
		})
	}

	if _, ok := ClassifyMA(rising[:64], 20, 60, 5); ok {
		t.Fatalf("64 closes should be insufficient")
	}
}

func TestMeanStdAndPercentile(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 || math.Abs(std-math.Sqrt(32.0/7)) > 1e-12 {
		t.Fatalf("MeanStd = %v %v", mean, std)
	}

	sorted := []float64{1, 2, 3, 4}
	if got := Percentile(sorted, 50); got != 2.5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := Percentile(sorted, 0); got != 1 {
		t.Fatalf("p0 = %v", got)
	}
	if got := Percentile(sorted, 100); got != 4 {
		t.Fatalf("p100 = %v", got)
	}
	if got := PercentRank([]float64{1, 2, 3, 4}, 3); got != 0.75 {
		t.Fatalf("PercentRank = %v", got)
	}
}

func TestLogRegressionSlopes(t *testing.T) {
	closes := waveSeries("X", 150).Closes()
	slopes, ok := LogRegressionSlopes(closes, 60)
	if !ok || len(slopes) != 91 {
		t.Fatalf("slopes = %d %v, want 91", len(slopes), ok)
	}
	for _, end := range []int{60, 100, 150} {
		want, ok := LogRegressionSlope(closes[:end], 60)
		if !ok || math.Abs(slopes[end-60]-want) > 1e-9 {
			t.Fatalf("slope ending at %d = %v, want %v", end, slopes[end-60], want)
		}
	}

	bad := append([]float64(nil), closes...)
	bad[120] = math.NaN()
	if _, ok := LogRegressionSlopes(bad, 60); ok {
		t.Fatalf("NaN price should be rejected")
	}
	bad[120] = 0
	if _, ok := LogRegressionSlope(bad[:130], 60); ok {
		t.Fatalf("non-positive price should be rejected")
	}
}

func TestWilderRSI_NonFinite(t *testing.T) {
	closes := waveSeries("X", 40).Closes()
	closes[30] = math.NaN()
	if v, ok := WilderRSI(closes, 14); ok {
		t.Fatalf("NaN close should not yield an RSI, got %v", v)
	}
	if _, ok := SMA(closes, 35, 10); ok {
		t.Fatalf("NaN close should not yield an SMA")
	}
}
