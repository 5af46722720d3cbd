package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem 為批次中單一標的的結果；Err 只屬於該標的。
type BatchItem struct {
	Symbol string
	Report AnalogReport
	Err    error
}

// BatchUseCase 以固定併發數對多個標的執行相似日分析。
type BatchUseCase struct {
	analog  *AnalogUseCase
	workers int
}

// NewBatchUseCase 建立批次用例，workers <= 0 時使用 4。
func NewBatchUseCase(analog *AnalogUseCase, workers int) *BatchUseCase {
	if workers <= 0 {
		workers = 4
	}
	return &BatchUseCase{analog: analog, workers: workers}
}

// Execute 對每個代號套用同一組參數，結果依 symbols 原順序回傳。
// 單一標的失敗不影響其他標的；只有 ctx 被取消時才回傳錯誤。
func (b *BatchUseCase) Execute(ctx context.Context, symbols []string, tmpl AnalogInput) ([]BatchItem, error) {
	items := make([]BatchItem, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, symbol := range symbols {
		g.Go(func() error {
			items[i].Symbol = symbol
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			in := tmpl
			in.Symbol = symbol
			items[i].Report, items[i].Err = b.analog.Execute(gctx, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
