package analysis

import "math"

const (
	confidenceSizeWeight        = 0.6
	confidenceConsistencyWeight = 0.4
	// 樣本數的飽和尺度：n=30 約 0.86、n=50 約 0.96
	confidenceSizeScale = 15.0
)

// Confidence 由樣本數與結果一致性估計信心分數（0~1）。
// 60% 來自樣本數的飽和函數，40% 來自 |hitRate-0.5|/0.5；樣本數為 0 時恆為 0。
func Confidence(sampleSize int, hitRate float64) float64 {
	if sampleSize <= 0 {
		return 0
	}
	size := 1 - math.Exp(-float64(sampleSize)/confidenceSizeScale)
	consistency := clamp(math.Abs(hitRate-0.5)/0.5, 0, 1)
	return clamp(confidenceSizeWeight*size+confidenceConsistencyWeight*consistency, 0, 1)
}
