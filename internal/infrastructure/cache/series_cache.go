package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
)

const (
	keyPrefix = "series"
	// scanBatch 同時作為 SCAN 的 COUNT 與每次 DEL 的鍵數上限
	scanBatch = 100
)

// Recorder 記錄快取命中率；nil 時不記錄。
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheError()
}

// SeriesCache 以 Redis 快取序列查詢結果，包裝另一個 SeriesProvider。
// Redis 失敗時只記錄日誌並回退至底層來源。
type SeriesCache struct {
	client  redis.Cmdable
	inner   analysis.SeriesProvider
	ttl     time.Duration
	log     zerolog.Logger
	metrics Recorder
}

// NewClient 依設定建立 Redis 連線並 ping 確認可用。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewSeriesCache 建立快取裝飾器。
func NewSeriesCache(client redis.Cmdable, inner analysis.SeriesProvider, ttl time.Duration, log zerolog.Logger, metrics Recorder) *SeriesCache {
	return &SeriesCache{client: client, inner: inner, ttl: ttl, log: log, metrics: metrics}
}

// GetSeries 先查 Redis，未命中再查底層來源並回填。
func (c *SeriesCache) GetSeries(ctx context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error) {
	key := Key(symbol, end, limit)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s marketdata.Series
		if err := json.Unmarshal(data, &s); err == nil {
			c.hit()
			return s, nil
		}
		c.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		c.miss()
	case errors.Is(err, redis.Nil):
		c.miss()
	default:
		c.fail()
		c.log.Warn().Err(err).Str("key", key).Msg("series cache read failed")
	}

	s, err := c.inner.GetSeries(ctx, symbol, end, limit)
	if err != nil {
		return marketdata.Series{}, err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return s, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.fail()
		c.log.Warn().Err(err).Str("key", key).Msg("series cache write failed")
	}
	return s, nil
}

// Invalidate 刪除某代號的所有快取項目，匯入新資料後呼叫。
// 以 SCAN 逐頁列舉並分批刪除，不阻塞 Redis。
func (c *SeriesCache) Invalidate(ctx context.Context, symbol string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, symbol)
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	deleted := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("delete cache keys: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}
	c.log.Debug().Str("symbol", symbol).Int("keys", deleted).Msg("series cache invalidated")
	return nil
}

// Key 組合快取鍵；end 為零值時以 latest 表示。
func Key(symbol string, end time.Time, limit int) string {
	day := "latest"
	if !end.IsZero() {
		day = end.Format("2006-01-02")
	}
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, symbol, day, limit)
}

func (c *SeriesCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHit()
	}
}

func (c *SeriesCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMiss()
	}
}

func (c *SeriesCache) fail() {
	if c.metrics != nil {
		c.metrics.CacheError()
	}
}
