package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	regimeapp "github.com/FuNgaiKa/stock-analysis-sub000/internal/application/regime"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infra/memory"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/cache"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
	dbinfra "github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/db"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/metrics"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/persistence/postgres"
)

// 資料來源名稱。
const (
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// SeriesStore 為可讀寫的序列儲存，由 Postgres 或記憶體實作。
type SeriesStore interface {
	analysis.SeriesProvider
	UpsertSeries(ctx context.Context, s marketdata.Series) (int, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// App 持有 API 與 CLI 共用的依賴。
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Metrics  *metrics.Recorder
	DB       *sql.DB
	Store    SeriesStore
	Provider analysis.SeriesProvider
	Analog   *analysis.AnalogUseCase
	Batch    *analysis.BatchUseCase
	Regime   *regimeapp.UseCase

	source string
	redis  *redis.Client
	cache  *cache.SeriesCache
}

// New 依組態建立全部依賴。資料庫連線失敗時退回記憶體儲存，Redis 失敗時停用快取。
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	pool, err := dbinfra.Connect(ctx, cfg.DB)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("database connection failed, falling back to in-memory store")
	case pool == nil:
		log.Info().Msg("no DB_DSN provided, running with in-memory store")
	default:
		log.Info().Msg("database connected")
		app.DB = pool
	}

	if app.DB != nil {
		app.Store = postgres.NewSeriesRepo(app.DB)
		app.source = SourcePostgres
	} else {
		mem := memory.NewStore()
		if cfg.Data.CSVDir != "" {
			n, err := mem.LoadDir(ctx, cfg.Data.CSVDir)
			if err != nil {
				return nil, fmt.Errorf("load csv dir: %w", err)
			}
			log.Info().Str("dir", cfg.Data.CSVDir).Int("symbols", n).Msg("csv series loaded")
		}
		app.Store = mem
		app.source = SourceMemory
	}
	app.Provider = app.Store

	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, series cache disabled")
		} else {
			app.redis = client
			app.cache = cache.NewSeriesCache(client, app.Store, cfg.Redis.TTL, log, app.Metrics)
			app.Provider = app.cache
		}
	}

	if err := app.wireUseCases(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wireUseCases() error {
	classifier, err := ProvideClassifier()
	if err != nil {
		return fmt.Errorf("regime classifier: %w", err)
	}
	weights, err := ProvideWeights(a.Config.Engine.Regime.Weights)
	if err != nil {
		return err
	}
	analogCfg, err := ProvideAnalogConfig(a.Config.Engine)
	if err != nil {
		return err
	}

	a.Regime = regimeapp.NewUseCase(a.Provider, classifier, weights, a.Log, a.Metrics)
	a.Analog = analysis.NewAnalogUseCase(a.Provider, a.Regime, analogCfg, a.Log, a.Metrics)
	a.Batch = analysis.NewBatchUseCase(a.Analog, a.Config.Engine.Workers)
	return nil
}

// Source 回傳目前使用的資料來源名稱。
func (a *App) Source() string { return a.source }

// Import 寫入序列並清除該代號的快取。
func (a *App) Import(ctx context.Context, s marketdata.Series) (int, error) {
	n, err := a.Store.UpsertSeries(ctx, s)
	if err != nil {
		return 0, err
	}
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, s.Symbol); err != nil {
			a.Log.Warn().Err(err).Str("symbol", s.Symbol).Msg("cache invalidation failed")
		}
	}
	return n, nil
}

// Ping 檢查資料庫連線；使用記憶體儲存時回傳 nil。
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return dbinfra.Ping(ctx, a.DB)
}

// Close 釋放資料庫與 Redis 連線。
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
